package device

import (
	"context"
	"testing"
)

func TestDemoDevice_IDN(t *testing.T) {
	d := NewDemoDevice("HISLIP,demo-instrument,0,1.0")

	resp, err := d.Execute(context.Background(), []byte("*IDN?\n"))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if string(resp) != "HISLIP,demo-instrument,0,1.0" {
		t.Errorf("unexpected IDN response: %q", resp)
	}
}

func TestDemoDevice_StatusAfterReset(t *testing.T) {
	d := NewDemoDevice("demo")
	d.SetSTB(0x40)

	stb, err := d.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if stb != 0x40 {
		t.Fatalf("expected stb 0x40, got 0x%x", stb)
	}

	if err := d.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}

	stb, err = d.Status(context.Background())
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if stb != 0 {
		t.Fatalf("expected stb 0 after clear, got 0x%x", stb)
	}
}

func TestDemoDevice_RemoteAndLockoutAreIndependentOfCommands(t *testing.T) {
	d := NewDemoDevice("demo")

	if err := d.SetRemote(context.Background(), true); err != nil {
		t.Fatalf("set remote: %v", err)
	}
	if err := d.SetLocalLockout(context.Background(), true); err != nil {
		t.Fatalf("set lockout: %v", err)
	}

	if !d.remote || !d.lockout {
		t.Fatal("expected remote and lockout to be set")
	}
}

func TestIsNotSupported(t *testing.T) {
	if !IsNotSupported(NotSupported) {
		t.Fatal("expected NotSupported to be recognized")
	}
	if IsNotSupported(IoError) {
		t.Fatal("did not expect IoError to be recognized as NotSupported")
	}
}
