package wire

import "encoding/binary"

// InitializeParameter decodes the Parameter field of an Initialize message:
// the high 16 bits are the client's protocol minor version, the low 16 bits
// select either "vendor ID" framing (client-defined) per spec §6.1.
type InitializeParameter struct {
	ProtocolMinorVersion uint16
	VendorID             uint16
}

// Decode unpacks p from a raw 32-bit Parameter value.
func (p *InitializeParameter) Decode(raw uint32) {
	p.ProtocolMinorVersion = uint16(raw >> 16)
	p.VendorID = uint16(raw)
}

// Encode packs p into a raw 32-bit Parameter value.
func (p InitializeParameter) Encode() uint32 {
	return uint32(p.ProtocolMinorVersion)<<16 | uint32(p.VendorID)
}

// InitializeResponseParameter decodes the Parameter field of an
// InitializeResponse message: high 16 bits protocol minor version granted
// by the server, low 16 bits the session id.
type InitializeResponseParameter struct {
	ProtocolMinorVersion uint16
	SessionID            uint16
}

func (p *InitializeResponseParameter) Decode(raw uint32) {
	p.ProtocolMinorVersion = uint16(raw >> 16)
	p.SessionID = uint16(raw)
}

func (p InitializeResponseParameter) Encode() uint32 {
	return uint32(p.ProtocolMinorVersion)<<16 | uint32(p.SessionID)
}

// InitializeResponseControl is the Control byte of an InitializeResponse
// message: bit 0 selects Overlapped (set) vs Synchronized (clear) mode;
// bit 1 advertises encryption support; bit 2 advertises that the
// connection is already encrypted (initial encryption).
type InitializeResponseControl struct {
	Overlapped        bool
	EncryptionSupport bool
	InitialEncryption bool
}

func (c *InitializeResponseControl) Decode(raw uint8) {
	c.Overlapped = raw&FeatureOverlapped != 0
	c.EncryptionSupport = raw&FeatureEncryption != 0
	c.InitialEncryption = raw&FeatureInitialEncryption != 0
}

func (c InitializeResponseControl) Encode() uint8 {
	var v uint8
	if c.Overlapped {
		v |= FeatureOverlapped
	}
	if c.EncryptionSupport {
		v |= FeatureEncryption
	}
	if c.InitialEncryption {
		v |= FeatureInitialEncryption
	}
	return v
}

// AsyncInitializeResponseParameter decodes the Parameter field of an
// AsyncInitializeResponse message: the server's 32-bit vendor ID / device
// sub-address, echoed back so the client can correlate sync and async
// channels belonging to the same device.
type AsyncInitializeResponseParameter struct {
	ServerVendorID uint32
}

func (p *AsyncInitializeResponseParameter) Decode(raw uint32) {
	p.ServerVendorID = raw
}

func (p AsyncInitializeResponseParameter) Encode() uint32 {
	return p.ServerVendorID
}

// AsyncInitializeResponseControl is the Control byte of an
// AsyncInitializeResponse: bit 0 indicates the server requires encryption
// before any other traffic is accepted on this connection.
type AsyncInitializeResponseControl struct {
	EncryptionMandatory bool
}

func (c *AsyncInitializeResponseControl) Decode(raw uint8) {
	c.EncryptionMandatory = raw&0x1 != 0
}

func (c AsyncInitializeResponseControl) Encode() uint8 {
	var v uint8
	if c.EncryptionMandatory {
		v |= 0x1
	}
	return v
}

// RmtDeliveredControl is the Control byte carried by messages that report
// how many bytes of a prior partial write were actually delivered before an
// interrupt (AsyncRemoteLocalResponse / Interrupted family): bit 0 set
// means the RMT (remote) bit state is included in Parameter.
type RmtDeliveredControl struct {
	RemoteEnabled bool
}

func (c *RmtDeliveredControl) Decode(raw uint8) {
	c.RemoteEnabled = raw&0x1 != 0
}

func (c RmtDeliveredControl) Encode() uint8 {
	if c.RemoteEnabled {
		return 0x1
	}
	return 0
}

// MessageIDParameter packs/unpacks the monotonically increasing message id
// carried in the Parameter field of Data, DataEnd, Trigger and the various
// Async* request messages.
type MessageIDParameter struct {
	MessageID uint32
}

func (p *MessageIDParameter) Decode(raw uint32) {
	p.MessageID = raw
}

func (p MessageIDParameter) Encode() uint32 {
	return p.MessageID
}

// putUint32 and getUint32 are small helpers kept for callers that already
// hold a header's raw Parameter as a byte slice (e.g. vendor-specific
// extensions that only need the integer, not a typed view).
func putUint32(buf []byte, v uint32) { binary.BigEndian.PutUint32(buf, v) }
func getUint32(buf []byte) uint32    { return binary.BigEndian.Uint32(buf) }
