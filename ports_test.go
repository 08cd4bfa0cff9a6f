package main

import "testing"

// fakeVDPPort is a minimal vdpPortDevice stand-in for exercising the port
// decode table in isolation from the real VDP.
type fakeVDPPort struct {
	dataRead      byte
	statusRead    byte
	dataWritten   byte
	controlWritten byte
	vCounter      byte
	hCounter      byte
	latchCalls    int
}

func (f *fakeVDPPort) ReadData() byte         { return f.dataRead }
func (f *fakeVDPPort) WriteData(v byte)       { f.dataWritten = v }
func (f *fakeVDPPort) ReadStatus() byte       { return f.statusRead }
func (f *fakeVDPPort) WriteControl(v byte)    { f.controlWritten = v }
func (f *fakeVDPPort) ReadVCounter() byte     { return f.vCounter }
func (f *fakeVDPPort) ReadHCounter() byte     { return f.hCounter }
func (f *fakeVDPPort) LatchHCounter()         { f.latchCalls++ }

type fakePSGPort struct {
	written []byte
}

func (f *fakePSGPort) Write(v byte) { f.written = append(f.written, v) }

func newTestPorts() (*Ports, *fakeVDPPort, *fakePSGPort, *memControlBits) {
	ctrl := &memControlBits{}
	vdp := &fakeVDPPort{}
	psg := &fakePSGPort{}
	return NewPorts(ctrl, vdp, psg), vdp, psg, ctrl
}

// TestPortsMemoryControlWrite checks that port $3E writes reach the shared
// memory-control register.
func TestPortsMemoryControlWrite(t *testing.T) {
	p, _, _, ctrl := newTestPorts()
	p.Out(0x3E, 0x48)
	if !ctrl.cartDisable || !ctrl.biosDisable {
		t.Fatalf("memory control register not applied: raw=0x%02X", ctrl.raw)
	}
}

// TestPortsJoypadActiveLowInversion checks that SetButtons' active-high
// external encoding is inverted to the hardware's active-low convention,
// with bits 6/7 pinned high.
func TestPortsJoypadActiveLowInversion(t *testing.T) {
	p, _, _, _ := newTestPorts()
	p.SetButtons(0x01) // Up pressed

	got := p.In(0xDC)
	want := byte(0xFE) // bit0 low (pressed), all others high
	if got != want {
		t.Fatalf("joypad A = 0x%02X, want 0x%02X", got, want)
	}
}

// TestPortsTHRisingEdgeLatchesHCounter checks that a rising edge on either
// TH output latches the VDP's H counter exactly once per edge.
func TestPortsTHRisingEdgeLatchesHCounter(t *testing.T) {
	p, vdp, _, _ := newTestPorts()

	p.Out(0x3F, 0x00) // both TH low
	if vdp.latchCalls != 0 {
		t.Fatalf("latch called on non-rising write: %d", vdp.latchCalls)
	}

	p.Out(0x3F, 0x20) // TH-A rising edge
	if vdp.latchCalls != 1 {
		t.Fatalf("latchCalls = %d, want 1 after TH-A rising edge", vdp.latchCalls)
	}

	p.Out(0x3F, 0x20) // no change: not a new edge
	if vdp.latchCalls != 1 {
		t.Fatalf("latchCalls = %d, want 1 (no new edge)", vdp.latchCalls)
	}

	p.Out(0x3F, 0xA0) // TH-B also rises
	if vdp.latchCalls != 2 {
		t.Fatalf("latchCalls = %d, want 2 after TH-B rising edge", vdp.latchCalls)
	}
}

// TestPortsVDPAndPSGRouting checks that the VDP and PSG ports decode to the
// right device and register.
func TestPortsVDPAndPSGRouting(t *testing.T) {
	p, vdp, psg, _ := newTestPorts()

	p.Out(0xBE, 0x77)
	if vdp.dataWritten != 0x77 {
		t.Fatalf("VDP data write not routed: got 0x%02X", vdp.dataWritten)
	}
	p.Out(0xBF, 0x88)
	if vdp.controlWritten != 0x88 {
		t.Fatalf("VDP control write not routed: got 0x%02X", vdp.controlWritten)
	}
	p.Out(0x7F, 0x9A)
	if len(psg.written) != 1 || psg.written[0] != 0x9A {
		t.Fatalf("PSG write not routed: got %v", psg.written)
	}
}
