package main

import (
	"testing"
	"time"
)

// TestNewMachineWiresDevices checks that the bus correctly routes ROM reads
// through the mapper and RAM reads/writes through the work-RAM window.
func TestNewMachineWiresDevices(t *testing.T) {
	rom := make([]byte, romBankLen)
	rom[0x0000] = 0x3E // LD A,n
	m := newTestMachine(rom)

	if got := m.bus.Read8(0x0000); got != 0x3E {
		t.Fatalf("bus.Read8(0) = 0x%02X, want 0x3E", got)
	}

	m.bus.Write8(0xC000, 0x55)
	if got := m.bus.Read8(0xC000); got != 0x55 {
		t.Fatalf("RAM round trip through bus failed, got 0x%02X", got)
	}
	if got := m.bus.Read8(0xE000); got != 0x55 {
		t.Fatalf("RAM mirror through bus failed, got 0x%02X", got)
	}
}

// TestMachineSetButtonsUnderStepLock checks that SetButtons is visible
// immediately to the ports device.
func TestMachineSetButtonsUnderStepLock(t *testing.T) {
	m := newTestMachine(make([]byte, romBankLen))
	m.SetButtons(0x01)
	if got := m.ports.In(0xDC); got != 0xFE {
		t.Fatalf("joypad state = 0x%02X, want 0xFE", got)
	}
}

// TestMachineResetPreservesROM checks that Reset reinitializes the CPU and
// memory-control register without touching the loaded cartridge image.
func TestMachineResetPreservesROM(t *testing.T) {
	rom := make([]byte, romBankLen)
	rom[0] = 0x76 // HALT
	m := newTestMachine(rom)

	m.cpu.PC = 0x1234
	m.ctrl.Set(0x48)

	m.Reset()

	if m.cpu.PC != 0 {
		t.Fatalf("PC after Reset = 0x%04X, want 0", m.cpu.PC)
	}
	if m.ctrl.raw != 0 {
		t.Fatalf("memory control after Reset = 0x%02X, want 0", m.ctrl.raw)
	}
	if got := m.bus.Read8(0x0000); got != 0x76 {
		t.Fatalf("ROM contents disturbed by Reset: 0x%02X", got)
	}
}

// TestMachineStartStop checks that the worker goroutine launches, advances
// the CPU clock, and joins cleanly within the stop bound.
func TestMachineStartStop(t *testing.T) {
	m := newTestMachine(make([]byte, romBankLen)) // all-zero ROM: a stream of NOPs

	m.Start()
	time.Sleep(20 * time.Millisecond)
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if m.cpu.TStates() == 0 {
		t.Fatalf("CPU never advanced while running")
	}
}

// TestMachinePauseResume checks that Pause halts T-state progress and
// Resume lets it continue.
func TestMachinePauseResume(t *testing.T) {
	m := newTestMachine(make([]byte, romBankLen))

	m.Start()
	defer m.Stop()
	time.Sleep(10 * time.Millisecond)

	m.Pause()
	time.Sleep(5 * time.Millisecond)
	frozen := m.cpu.TStates()
	time.Sleep(20 * time.Millisecond)
	if m.cpu.TStates() != frozen {
		t.Fatalf("T-states advanced while paused: %d -> %d", frozen, m.cpu.TStates())
	}

	m.Resume()
	time.Sleep(10 * time.Millisecond)
	if m.cpu.TStates() == frozen {
		t.Fatalf("T-states did not advance after Resume")
	}
}
