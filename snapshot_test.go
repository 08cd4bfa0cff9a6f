package main

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestMachine(rom []byte) *Machine {
	return NewMachine(MachineConfig{}, rom, nil)
}

// TestSnapshotRoundTrip checks that Snapshot/Restore preserve CPU registers,
// RAM contents, and bank-register state exactly.
func TestSnapshotRoundTrip(t *testing.T) {
	rom := make([]byte, 4*romBankLen)
	m := newTestMachine(rom)

	m.cpu.PC = 0x1234
	m.cpu.A = 0x42
	m.cpu.SP = 0xDFF0
	m.cpu.IM = 2
	m.ram.data[0x10] = 0x99
	m.mapper.SetBanks(2, 1, 3)
	m.ports.SetButtons(0x05)
	m.vdp.registers[0] = 0x10
	m.psg.tone[0].period = 0x155

	data, err := m.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	fresh := newTestMachine(rom)
	if err := fresh.Restore(data); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if fresh.cpu.PC != 0x1234 || fresh.cpu.A != 0x42 || fresh.cpu.SP != 0xDFF0 || fresh.cpu.IM != 2 {
		t.Fatalf("cpu state not restored: PC=0x%04X A=0x%02X SP=0x%04X IM=%d",
			fresh.cpu.PC, fresh.cpu.A, fresh.cpu.SP, fresh.cpu.IM)
	}
	if fresh.ram.data[0x10] != 0x99 {
		t.Fatalf("ram not restored")
	}
	if fresh.mapper.Bank0() != 2 || fresh.mapper.Bank1() != 1 || fresh.mapper.Bank2() != 3 {
		t.Fatalf("bank registers not restored: %d %d %d", fresh.mapper.Bank0(), fresh.mapper.Bank1(), fresh.mapper.Bank2())
	}
	if fresh.ports.joypadA != m.ports.joypadA {
		t.Fatalf("ports not restored")
	}
	if fresh.vdp.registers[0] != 0x10 {
		t.Fatalf("vdp registers not restored")
	}
	if fresh.psg.tone[0].period != 0x155 {
		t.Fatalf("psg state not restored")
	}
}

// TestSnapshotRestoreBadMagic checks that restoring garbage data reports the
// bad-magic sentinel error rather than panicking.
func TestSnapshotRestoreBadMagic(t *testing.T) {
	m := newTestMachine(make([]byte, romBankLen))
	err := m.Restore([]byte("XXXX\x01\x00\x00\x00"))
	if !errors.Is(err, errBadMagic) {
		t.Fatalf("Restore(garbage) error = %v, want errBadMagic", err)
	}
}

// TestSnapshotSaveLoadFile checks that the SMSV file container round-trips
// through gzip compression and restores cleanly into a fresh machine.
func TestSnapshotSaveLoadFile(t *testing.T) {
	rom := make([]byte, romBankLen)
	m := newTestMachine(rom)
	m.cpu.PC = 0x4242
	m.ram.data[0] = 0xAB

	path := filepath.Join(t.TempDir(), "test.sav")
	if err := m.SaveFile(path, "game.sms"); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	romPath, state, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if romPath != "game.sms" {
		t.Fatalf("romPath = %q, want %q", romPath, "game.sms")
	}

	fresh := newTestMachine(rom)
	if err := fresh.Restore(state); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if fresh.cpu.PC != 0x4242 {
		t.Fatalf("PC = 0x%04X, want 0x4242", fresh.cpu.PC)
	}
	if fresh.ram.data[0] != 0xAB {
		t.Fatalf("ram not restored from file")
	}
}

// TestSnapshotHistoryRollback checks that observing samples across the
// configured period populates the ring and that Rollback restores an
// earlier CPU state and trims later samples.
func TestSnapshotHistoryRollback(t *testing.T) {
	rom := make([]byte, romBankLen)
	m := newTestMachine(rom)
	m.history = NewSnapshotHistory(m, 4)

	period := m.history.period

	m.cpu.PC = 0x1000
	m.history.observe(period)
	if m.history.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after first observe", m.history.Len())
	}

	m.cpu.PC = 0x2000
	m.history.observe(2 * period)
	if m.history.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after second observe", m.history.Len())
	}

	m.cpu.PC = 0x3000 // state diverges after the last sample

	if err := m.history.Rollback(0); err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if m.cpu.PC != 0x1000 {
		t.Fatalf("PC after rollback to index 0 = 0x%04X, want 0x1000", m.cpu.PC)
	}
	if m.history.Len() != 1 {
		t.Fatalf("Len() after rollback = %d, want 1 (later samples trimmed)", m.history.Len())
	}
}
