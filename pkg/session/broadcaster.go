package session

import "sync"

// Subscriber is one async channel's mailbox for status-byte events. It
// holds at most one pending byte: a publish that finds the mailbox full
// overwrites the stale value rather than blocking, since only the most
// recent status matters once an AsyncServiceRequest has not yet been sent.
//
// The channel returned by C is closed on Broadcaster.Shutdown, so a
// receiver distinguishes "new status" from "server is shutting down" with
// the ordinary comma-ok receive form.
type Subscriber struct {
	ch   chan byte
	b    *Broadcaster
	once sync.Once
}

// C returns the channel the async handler selects on alongside its message
// read.
func (s *Subscriber) C() <-chan byte {
	return s.ch
}

// Close unsubscribes s from its broadcaster. Safe to call more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		s.b.unsubscribe(s)
	})
}

// Broadcaster fans a device's status-byte events out to every live async
// channel. Publishers never block on a slow or stalled subscriber; a full
// mailbox just has its value replaced.
type Broadcaster struct {
	mu          sync.Mutex
	subscribers map[*Subscriber]struct{}
	closed      bool
}

// NewBroadcaster returns an empty status broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subscribers: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new mailbox. Returns nil if the broadcaster has
// already been shut down, which the caller should treat the same as a
// later channel closure: exit the async handler's loop cleanly.
func (b *Broadcaster) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	s := &Subscriber{ch: make(chan byte, 1), b: b}
	b.subscribers[s] = struct{}{}
	return s
}

func (b *Broadcaster) unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[s]; !ok {
		return
	}
	delete(b.subscribers, s)
}

// Publish delivers status to every live subscriber without blocking,
// coalescing with whatever value a slow subscriber hasn't yet drained.
func (b *Broadcaster) Publish(status byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for s := range b.subscribers {
		select {
		case s.ch <- status:
		default:
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- status:
			default:
			}
		}
	}
}

// Shutdown closes every live subscriber's mailbox and marks the broadcaster
// closed, so that both existing selects on Subscriber.C and any later
// Subscribe call observe termination.
func (b *Broadcaster) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subscribers {
		close(s.ch)
	}
	b.subscribers = make(map[*Subscriber]struct{})
}
