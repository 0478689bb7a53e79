// Package session implements the HiSLIP per-session shared state: the
// record two concurrent channel handlers (sync and async) cooperate
// through, plus the registry and status fan-out that sit above it.
package session

import (
	"sync"

	"github.com/google/uuid"
)

// State is the session's handshake progress.
type State int

const (
	// Handshake is the state of a freshly allocated session, before the
	// sync side completes DeviceClearComplete negotiation.
	Handshake State = iota
	// Normal is the state once both channels have agreed feature bits.
	Normal
)

// String renders the handshake state for logs and the admin session table.
func (st State) String() string {
	if st == Normal {
		return "normal"
	}
	return "handshake"
}

// Mode selects whether the sync channel processes one in-flight operation
// at a time (Synchronized) or allows overlapped pipelining (Overlapped).
type Mode int

const (
	Synchronized Mode = iota
	Overlapped
)

// String renders the mode for logs and the admin session table.
func (m Mode) String() string {
	if m == Overlapped {
		return "overlapped"
	}
	return "synchronized"
}

// Protocol is a negotiated HiSLIP protocol version.
type Protocol struct {
	Major uint8
	Minor uint8
}

// Shared is the mutable record two channel handlers of one HiSLIP session
// cooperate through. All field access beyond construction goes through its
// methods, which take a short-lived mutex; callers must never hold it
// across I/O (spec's async-mutex discipline for session-level fields,
// mirroring the non-blocking SharedLock fast path).
type Shared struct {
	mu sync.Mutex

	id       uint16
	traceID  uuid.UUID
	protocol Protocol
	state    State
	mode     Mode

	maxMessageSize uint64
	enableRemote   bool

	readMessageID uint32
	sentMessageID uint32

	serviceRequestPosted bool

	asyncConnected bool

	clear chan struct{}
}

// NewShared allocates a fresh session record in Handshake state for id,
// negotiated to protocol and preferring mode.
func NewShared(id uint16, protocol Protocol, mode Mode, maxMessageSize uint64) *Shared {
	return &Shared{
		id:             id,
		traceID:        uuid.New(),
		protocol:       protocol,
		state:          Handshake,
		mode:           mode,
		maxMessageSize: maxMessageSize,
		clear:          make(chan struct{}, 1),
	}
}

// ID returns the session's 16-bit identifier.
func (s *Shared) ID() uint16 {
	return s.id
}

// TraceID returns a process-lifetime-unique identifier for this session,
// for log/trace correlation that survives the 16-bit wire id being reused
// by a later session.
func (s *Shared) TraceID() uuid.UUID {
	return s.traceID
}

// SetID assigns the session's identifier once the registry has allocated
// one. Must be called before the Shared is published to the registry or
// any other goroutine.
func (s *Shared) SetID(id uint16) {
	s.id = id
}

// Protocol returns the negotiated protocol version.
func (s *Shared) Protocol() Protocol {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.protocol
}

// State returns the current handshake state.
func (s *Shared) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetNormal transitions the session to Normal state, called once the sync
// side completes DeviceClearComplete negotiation.
func (s *Shared) SetNormal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Normal
}

// Mode returns the session's preferred synchronization mode.
func (s *Shared) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// MaxMessageSize returns the negotiated maximum payload size.
func (s *Shared) MaxMessageSize() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxMessageSize
}

// SetMaxMessageSize updates the negotiated maximum payload size, called when
// the async channel processes AsyncMaximumMessageSize.
func (s *Shared) SetMaxMessageSize(v uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxMessageSize = v
}

// EnableRemote reports whether data/trigger operations should implicitly
// put the device in remote mode.
func (s *Shared) EnableRemote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enableRemote
}

// SetEnableRemote updates the remote-enable flag.
func (s *Shared) SetEnableRemote(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enableRemote = v
}

// ReadMessageID returns the last message id observed on the sync channel's
// inbound direction.
func (s *Shared) ReadMessageID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMessageID
}

// SetReadMessageID records the id of the most recently received Data/DataEnd
// message.
func (s *Shared) SetReadMessageID(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readMessageID = id
}

// SentMessageID returns the last message id sent on the sync channel's
// outbound direction.
func (s *Shared) SentMessageID() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sentMessageID
}

// SetSentMessageID records the id of the most recently sent Data/DataEnd
// message.
func (s *Shared) SetSentMessageID(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sentMessageID = id
}

// MessageAvailable reports whether sentMessageID has advanced past
// requestedID, the MAV bit patched into status replies.
func (s *Shared) MessageAvailable(requestedID uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int32(s.sentMessageID-requestedID) > 0
}

// ServiceRequestPosted reports whether an AsyncServiceRequest has been sent
// since the last AsyncStatusResponse.
func (s *Shared) ServiceRequestPosted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serviceRequestPosted
}

// SetServiceRequestPosted updates the service-request bit.
func (s *Shared) SetServiceRequestPosted(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.serviceRequestPosted = v
}

// AsyncConnected reports whether the async side of this session has
// completed its handshake.
func (s *Shared) AsyncConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.asyncConnected
}

// SetAsyncConnected marks the async side as attached.
func (s *Shared) SetAsyncConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asyncConnected = true
}

// SignalClear pushes a device-clear token to the sync channel. The slot is
// one deep and non-blocking from the sender's side: if a prior token has
// not yet been consumed, the new one is coalesced with it.
func (s *Shared) SignalClear() {
	select {
	case s.clear <- struct{}{}:
	default:
	}
}

// ClearChannel returns the channel the sync handler selects on to observe
// device-clear tokens sent by the async handler.
func (s *Shared) ClearChannel() <-chan struct{} {
	return s.clear
}
