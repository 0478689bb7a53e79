package metrics

import (
	"net/http/httptest"
	"testing"
)

func TestInitDisabled_NewHislipReturnsNil(t *testing.T) {
	Init(false)

	if IsEnabled() {
		t.Fatal("expected IsEnabled() false after Init(false)")
	}
	if m := NewHislip(); m != nil {
		t.Error("expected NewHislip() to return nil when metrics are disabled")
	}
}

func TestHislip_NilReceiver_NoPanic(t *testing.T) {
	var m *Hislip

	m.SessionEstablished()
	m.SessionDestroyed()
	m.MessageProcessed("sync", "Data")
	m.ErrorSent("sync", "fatal:1")
	m.ObserveLockWait(0.1, true)
	m.DataBytes("in", 128)
}

// TestHislip exercises every recording method against the one enabled
// *Hislip this test binary ever constructs: NewHislip registers collectors
// on the process-wide registry by name, so a second call while enabled
// would panic on duplicate registration.
func TestHislip(t *testing.T) {
	Init(true)
	if !IsEnabled() {
		t.Fatal("expected IsEnabled() true after Init(true)")
	}

	m := NewHislip()
	if m == nil {
		t.Fatal("expected non-nil Hislip when metrics are enabled")
	}

	m.SessionEstablished()
	m.SessionEstablished()
	m.SessionDestroyed()
	m.MessageProcessed("sync", "Data")
	m.MessageProcessed("async", "AsyncLock")
	m.ErrorSent("sync", "fatal:2")
	m.ObserveLockWait(0.05, false)
	m.ObserveLockWait(0.2, true)
	m.DataBytes("in", 64)
	m.DataBytes("out", 0) // non-positive byte counts are ignored

	mfs, err := GetRegistry().Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	want := map[string]bool{
		"hislip_sessions_active":        false,
		"hislip_sessions_total":         false,
		"hislip_messages_total":         false,
		"hislip_errors_total":           false,
		"hislip_lock_wait_seconds":      false,
		"hislip_lock_contentions_total": false,
		"hislip_data_bytes_total":       false,
	}
	for _, mf := range mfs {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected metric %s to be registered", name)
		}
	}
}

func TestHandler_ServesExpositionFormat(t *testing.T) {
	Init(true)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.Len() == 0 {
		t.Error("expected non-empty metrics body")
	}
}
