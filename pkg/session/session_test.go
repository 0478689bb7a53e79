package session

import "testing"

func TestShared_MessageAvailable(t *testing.T) {
	s := NewShared(2, Protocol{Major: 1, Minor: 0}, Overlapped, 1024)

	if s.MessageAvailable(0) {
		t.Fatal("expected no message available before any send")
	}

	s.SetSentMessageID(5)
	if !s.MessageAvailable(0) {
		t.Fatal("expected message available after sentMessageID advanced")
	}
	if s.MessageAvailable(5) {
		t.Fatal("expected no message available once requested id catches up")
	}
}

func TestShared_StateTransition(t *testing.T) {
	s := NewShared(2, Protocol{}, Synchronized, 1024)
	if s.State() != Handshake {
		t.Fatalf("expected Handshake, got %v", s.State())
	}
	s.SetNormal()
	if s.State() != Normal {
		t.Fatalf("expected Normal, got %v", s.State())
	}
}

func TestShared_SignalClearCoalesces(t *testing.T) {
	s := NewShared(2, Protocol{}, Synchronized, 1024)

	s.SignalClear()
	s.SignalClear() // should not block even though the slot is full

	select {
	case <-s.ClearChannel():
	default:
		t.Fatal("expected a pending clear token")
	}

	select {
	case <-s.ClearChannel():
		t.Fatal("expected only one coalesced token")
	default:
	}
}

func TestShared_ServiceRequestBit(t *testing.T) {
	s := NewShared(2, Protocol{}, Synchronized, 1024)
	if s.ServiceRequestPosted() {
		t.Fatal("expected service-request bit clear initially")
	}
	s.SetServiceRequestPosted(true)
	if !s.ServiceRequestPosted() {
		t.Fatal("expected service-request bit set")
	}
}
