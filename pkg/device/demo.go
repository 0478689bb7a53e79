package device

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
)

// DemoDevice is a small in-memory instrument simulation used by the
// standalone hislipd binary and by tests that need a Device without real
// hardware. It understands a handful of SCPI-style queries well enough to
// exercise the full session state machine.
type DemoDevice struct {
	mu sync.Mutex

	idn     string
	stb     byte
	remote  bool
	lockout bool
}

// NewDemoDevice returns a DemoDevice that reports idn in response to "*IDN?".
func NewDemoDevice(idn string) *DemoDevice {
	return &DemoDevice{idn: idn}
}

// Execute implements Device.
func (d *DemoDevice) Execute(_ context.Context, payload []byte) ([]byte, error) {
	cmd := strings.TrimSpace(string(bytes.TrimRight(payload, "\n")))

	d.mu.Lock()
	defer d.mu.Unlock()

	switch strings.ToUpper(cmd) {
	case "*IDN?":
		return []byte(d.idn), nil
	case "*RST":
		d.stb = 0
		return nil, nil
	case "*STB?":
		return []byte(fmt.Sprintf("%d", d.stb)), nil
	case "":
		return nil, nil
	default:
		// Unknown commands are accepted but produce no response, matching
		// a permissive demo instrument rather than raising a protocol error.
		return nil, nil
	}
}

// Status implements Device.
func (d *DemoDevice) Status(_ context.Context) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stb, nil
}

// Trigger implements Device.
func (d *DemoDevice) Trigger(_ context.Context) error {
	return nil
}

// Clear implements Device.
func (d *DemoDevice) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stb = 0
	return nil
}

// SetRemote implements Device.
func (d *DemoDevice) SetRemote(_ context.Context, remote bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.remote = remote
	return nil
}

// SetLocalLockout implements Device.
func (d *DemoDevice) SetLocalLockout(_ context.Context, lockout bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lockout = lockout
	return nil
}

// SetSTB sets the simulated status byte, e.g. to raise a service request bit
// for tests of the status broadcaster.
func (d *DemoDevice) SetSTB(stb byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stb = stb
}
