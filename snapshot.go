// snapshot.go - full machine state capture/restore and the rolling
// snapshot-history ring used for preview and rollback.

package main

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	snapMagicState = "SMST"
	snapMagicFile  = "SMSV"
	snapVersion    = uint16(1)
)

// Snapshot serializes the full machine state: CPU, RAM, memory controller,
// optional BIOS and cartridge ROM images, port device, VDP, PSG. The caller
// must hold m.stepLock (Stop the machine, or call under Pause, before
// taking or restoring a snapshot) — see the Machine API.
func (m *Machine) Snapshot() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(snapMagicState)
	writeLE(&buf, snapVersion)
	writeLE(&buf, uint16(0)) // reserved

	writeCPU(&buf, m.cpu)
	buf.Write(m.ram.data[:])
	writeLE(&buf, m.ctrl.raw)

	writeROMSection(&buf, m.mapper.bios)
	writeROMSection(&buf, m.mapper.rom)
	writeLE(&buf, m.mapper.bank0)
	writeLE(&buf, m.mapper.bank1)
	writeLE(&buf, m.mapper.bank2)

	writePorts(&buf, m.ports)
	writeVDP(&buf, m.vdp)
	writePSG(&buf, m.psg)

	return buf.Bytes(), nil
}

// Restore replaces the machine's full state from data produced by
// Snapshot. Bank registers on the Mapper are restored directly; ROM image
// bytes are only restored when present in the snapshot and non-empty (an
// empty ROM section, written when the machine had no image loaded, keeps the
// machine's already-loaded image).
func (m *Machine) Restore(data []byte) error {
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := r.Read(magic); err != nil || string(magic) != snapMagicState {
		return fmt.Errorf("snapshot: bad magic %q: %w", magic, errBadMagic)
	}
	var version, reserved uint16
	if err := readLE(r, &version); err != nil {
		return fmt.Errorf("snapshot: reading version: %w", err)
	}
	if version != snapVersion {
		return fmt.Errorf("snapshot: unsupported version %d: %w", version, errBadVersion)
	}
	if err := readLE(r, &reserved); err != nil {
		return fmt.Errorf("snapshot: reading reserved field: %w", err)
	}

	if err := readCPU(r, m.cpu); err != nil {
		return fmt.Errorf("snapshot: reading cpu: %w", err)
	}
	if _, err := r.Read(m.ram.data[:]); err != nil {
		return fmt.Errorf("snapshot: reading ram: %w", err)
	}
	var ctrl byte
	if err := readLE(r, &ctrl); err != nil {
		return fmt.Errorf("snapshot: reading memory control: %w", err)
	}
	m.ctrl.Set(ctrl)

	bios, err := readROMSection(r)
	if err != nil {
		return fmt.Errorf("snapshot: reading bios section: %w", err)
	}
	rom, err := readROMSection(r)
	if err != nil {
		return fmt.Errorf("snapshot: reading rom section: %w", err)
	}
	if len(bios) > 0 {
		m.mapper.LoadBIOS(bios)
	}
	if len(rom) > 0 {
		m.mapper.LoadROM(rom)
	}
	var b0, b1, b2 byte
	if err := readLE(r, &b0); err != nil {
		return err
	}
	if err := readLE(r, &b1); err != nil {
		return err
	}
	if err := readLE(r, &b2); err != nil {
		return err
	}
	m.mapper.SetBanks(b0, b1, b2)

	if err := readPorts(r, m.ports); err != nil {
		return fmt.Errorf("snapshot: reading ports: %w", err)
	}
	if err := readVDP(r, m.vdp); err != nil {
		return fmt.Errorf("snapshot: reading vdp: %w", err)
	}
	if err := readPSG(r, m.psg); err != nil {
		return fmt.Errorf("snapshot: reading psg: %w", err)
	}
	return nil
}

// SaveFile wraps Snapshot's output in the SMSV container with the
// cartridge ROM path recorded alongside it. The state blob is gzip
// compressed on the way to disk: an uncompressed-length prefix followed
// by a gzip stream. The in-memory Snapshot/Restore pair and the history
// ring stay uncompressed since they never touch disk and run on the hot
// path.
func (m *Machine) SaveFile(path, romPath string) error {
	state, err := m.Snapshot()
	if err != nil {
		return err
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(state); err != nil {
		return fmt.Errorf("snapshot file: compressing state: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("snapshot file: closing gzip writer: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(snapMagicFile)
	writeLE(&buf, snapVersion)
	writeLE(&buf, uint16(0)) // reserved
	writeLE(&buf, int32(len(romPath)))
	writeLE(&buf, int32(len(state)))
	buf.WriteString(romPath)
	buf.Write(compressed.Bytes())

	return os.WriteFile(path, buf.Bytes(), 0644)
}

// LoadFile reads an SMSV container and returns the embedded ROM path
// alongside the decompressed state bytes (for Restore).
func LoadFile(path string) (romPath string, state []byte, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	r := bytes.NewReader(data)

	magic := make([]byte, 4)
	if _, err := r.Read(magic); err != nil || string(magic) != snapMagicFile {
		return "", nil, fmt.Errorf("snapshot file: bad magic %q: %w", magic, errBadMagic)
	}
	var version, reserved uint16
	if err := readLE(r, &version); err != nil {
		return "", nil, err
	}
	if version != snapVersion {
		return "", nil, fmt.Errorf("snapshot file: unsupported version %d: %w", version, errBadVersion)
	}
	if err := readLE(r, &reserved); err != nil {
		return "", nil, err
	}
	var pathLen, stateLen int32
	if err := readLE(r, &pathLen); err != nil {
		return "", nil, err
	}
	if err := readLE(r, &stateLen); err != nil {
		return "", nil, err
	}
	pathBytes := make([]byte, pathLen)
	if _, err := r.Read(pathBytes); err != nil {
		return "", nil, fmt.Errorf("snapshot file: reading rom path: %w", err)
	}

	gz, err := gzip.NewReader(r)
	if err != nil {
		return "", nil, fmt.Errorf("snapshot file: opening gzip reader: %w", err)
	}
	defer gz.Close()
	state, err = io.ReadAll(gz)
	if err != nil {
		return "", nil, fmt.Errorf("snapshot file: decompressing state: %w", err)
	}
	if int32(len(state)) != stateLen {
		return "", nil, fmt.Errorf("snapshot file: %w", errLengthMismatch)
	}
	return string(pathBytes), state, nil
}

func writeLE(buf *bytes.Buffer, v any) {
	binary.Write(buf, binary.LittleEndian, v)
}

func readLE(r *bytes.Reader, v any) error {
	return binary.Read(r, binary.LittleEndian, v)
}

func writeROMSection(buf *bytes.Buffer, rom []byte) {
	if len(rom) == 0 {
		buf.WriteByte(0)
		return
	}
	buf.WriteByte(1)
	writeLE(buf, int32(len(rom)))
	buf.Write(rom)
}

func readROMSection(r *bytes.Reader) ([]byte, error) {
	present, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	var length int32
	if err := readLE(r, &length); err != nil {
		return nil, err
	}
	data := make([]byte, length)
	if _, err := r.Read(data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeCPU(buf *bytes.Buffer, c *CPU_Z80) {
	for _, v := range []byte{c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L,
		c.A2, c.F2, c.B2, c.C2, c.D2, c.E2, c.H2, c.L2, c.I, c.R, c.IM} {
		writeLE(buf, v)
	}
	for _, v := range []uint16{c.IX, c.IY, c.SP, c.PC, c.WZ} {
		writeLE(buf, v)
	}
	writeLE(buf, c.IFF1)
	writeLE(buf, c.IFF2)
	writeLE(buf, c.Halted)
	writeLE(buf, c.Cycles)
	writeLE(buf, c.irqLine)
	writeLE(buf, c.nmiLine)
	writeLE(buf, c.nmiPending)
	writeLE(buf, c.nmiPrev)
	writeLE(buf, c.irqVector)
}

func readCPU(r *bytes.Reader, c *CPU_Z80) error {
	bytesTargets := []*byte{&c.A, &c.F, &c.B, &c.C, &c.D, &c.E, &c.H, &c.L,
		&c.A2, &c.F2, &c.B2, &c.C2, &c.D2, &c.E2, &c.H2, &c.L2, &c.I, &c.R, &c.IM}
	for _, t := range bytesTargets {
		if err := readLE(r, t); err != nil {
			return err
		}
	}
	wordTargets := []*uint16{&c.IX, &c.IY, &c.SP, &c.PC, &c.WZ}
	for _, t := range wordTargets {
		if err := readLE(r, t); err != nil {
			return err
		}
	}
	if err := readLE(r, &c.IFF1); err != nil {
		return err
	}
	if err := readLE(r, &c.IFF2); err != nil {
		return err
	}
	if err := readLE(r, &c.Halted); err != nil {
		return err
	}
	if err := readLE(r, &c.Cycles); err != nil {
		return err
	}
	if err := readLE(r, &c.irqLine); err != nil {
		return err
	}
	if err := readLE(r, &c.nmiLine); err != nil {
		return err
	}
	if err := readLE(r, &c.nmiPending); err != nil {
		return err
	}
	if err := readLE(r, &c.nmiPrev); err != nil {
		return err
	}
	if err := readLE(r, &c.irqVector); err != nil {
		return err
	}
	c.prefixMode = z80PrefixNone
	return nil
}

func writePorts(buf *bytes.Buffer, p *Ports) {
	writeLE(buf, p.ioControl)
	writeLE(buf, p.prevTHA)
	writeLE(buf, p.prevTHB)
	writeLE(buf, p.joypadA)
	writeLE(buf, p.joypadB)
	writeLE(buf, p.f2Latch)
}

func readPorts(r *bytes.Reader, p *Ports) error {
	for _, t := range []any{&p.ioControl, &p.prevTHA, &p.prevTHB, &p.joypadA, &p.joypadB, &p.f2Latch} {
		if err := readLE(r, t); err != nil {
			return err
		}
	}
	return nil
}

func writeVDP(buf *bytes.Buffer, v *VDP) {
	buf.Write(v.vram[:])
	buf.Write(v.cram[:])
	buf.Write(v.registers[:])
	for _, f := range []any{v.addr, v.addrLatch, v.writeLatch, v.codeReg, v.readBuffer,
		v.status, v.statusIndex, int32(v.vCounter), int32(v.cyclePos), v.hCounterLatch,
		int32(v.lineCounter), v.irqPending, int32(v.totalScanlines)} {
		writeLE(buf, f)
	}
}

func readVDP(r *bytes.Reader, v *VDP) error {
	if _, err := r.Read(v.vram[:]); err != nil {
		return err
	}
	if _, err := r.Read(v.cram[:]); err != nil {
		return err
	}
	if _, err := r.Read(v.registers[:]); err != nil {
		return err
	}
	var vCounter, cyclePos, lineCounter, totalScanlines int32
	targets := []any{&v.addr, &v.addrLatch, &v.writeLatch, &v.codeReg, &v.readBuffer,
		&v.status, &v.statusIndex, &vCounter, &cyclePos, &v.hCounterLatch,
		&lineCounter, &v.irqPending, &totalScanlines}
	for _, t := range targets {
		if err := readLE(r, t); err != nil {
			return err
		}
	}
	v.vCounter = int(vCounter)
	v.cyclePos = int(cyclePos)
	v.lineCounter = int(lineCounter)
	v.totalScanlines = int(totalScanlines)
	return nil
}

func writePSG(buf *bytes.Buffer, p *PSG) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.tone {
		t := &p.tone[i]
		writeLE(buf, t.period)
		writeLE(buf, t.counter)
		writeLE(buf, t.volume)
		writeLE(buf, t.polarity)
	}
	writeLE(buf, p.noise.control)
	writeLE(buf, p.noise.volume)
	writeLE(buf, p.noise.lfsr)
	writeLE(buf, p.noise.counter)
	writeLE(buf, p.noise.polarity)
	writeLE(buf, p.latched)
	writeLE(buf, int32(p.clockAccum))
	writeLE(buf, int32(p.sampleAccum))
}

func readPSG(r *bytes.Reader, p *PSG) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.tone {
		t := &p.tone[i]
		if err := readLE(r, &t.period); err != nil {
			return err
		}
		if err := readLE(r, &t.counter); err != nil {
			return err
		}
		if err := readLE(r, &t.volume); err != nil {
			return err
		}
		if err := readLE(r, &t.polarity); err != nil {
			return err
		}
	}
	if err := readLE(r, &p.noise.control); err != nil {
		return err
	}
	if err := readLE(r, &p.noise.volume); err != nil {
		return err
	}
	if err := readLE(r, &p.noise.lfsr); err != nil {
		return err
	}
	if err := readLE(r, &p.noise.counter); err != nil {
		return err
	}
	if err := readLE(r, &p.noise.polarity); err != nil {
		return err
	}
	if err := readLE(r, &p.latched); err != nil {
		return err
	}
	var clockAccum, sampleAccum int32
	if err := readLE(r, &clockAccum); err != nil {
		return err
	}
	if err := readLE(r, &sampleAccum); err != nil {
		return err
	}
	p.clockAccum = int(clockAccum)
	p.sampleAccum = int(sampleAccum)
	return nil
}

// HistorySample is one entry of a SnapshotHistory ring: a full state plus a
// framebuffer copy captured at the moment of the sample, for preview UIs.
type HistorySample struct {
	TStates uint64
	State   []byte
	Frame   [screenWidth * 192 * 4]byte
}

// SnapshotHistory maintains a fixed-depth ring of periodic full-state
// samples (default: one per emulated second) so the Machine can roll back
// to a recent point without needing a separate record/replay log.
type SnapshotHistory struct {
	mu      sync.RWMutex
	m       *Machine
	samples []HistorySample
	next    int
	count   int
	period  uint64
	lastAt  uint64
}

func NewSnapshotHistory(m *Machine, depth int) *SnapshotHistory {
	period := uint64(float64(m.cfg.CPUHz) * m.cfg.HistoryPeriod.Seconds())
	if period == 0 {
		period = uint64(m.cfg.CPUHz)
	}
	return &SnapshotHistory{
		m:       m,
		samples: make([]HistorySample, depth),
		period:  period,
	}
}

// observe is called by the worker goroutine under the step lock after every
// instruction; it is a cheap no-op except once per sampling period.
func (h *SnapshotHistory) observe(tstates uint64) {
	if tstates-h.lastAt < h.period {
		return
	}
	h.lastAt = tstates

	state, err := h.m.Snapshot()
	if err != nil {
		h.m.cfg.Logger.Printf("snapshot history: capture failed: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	sample := &h.samples[h.next]
	sample.TStates = tstates
	sample.State = state
	copy(sample.Frame[:], h.m.vdp.framebuffer[:screenWidth*192*4])
	h.next = (h.next + 1) % len(h.samples)
	if h.count < len(h.samples) {
		h.count++
	}
}

// Len reports how many samples are currently available.
func (h *SnapshotHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Preview returns a copy of the framebuffer of the i-th held sample,
// counting from the oldest still held (i=0).
func (h *SnapshotHistory) Preview(i int) ([screenWidth * 192 * 4]byte, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if i < 0 || i >= h.count {
		return [screenWidth * 192 * 4]byte{}, false
	}
	start := (h.next - h.count + len(h.samples)) % len(h.samples)
	idx := (start + i) % len(h.samples)
	return h.samples[idx].Frame, true
}

// Rollback restores the i-th held sample (i=0 is the oldest held), trims
// every later sample from the ring, and resyncs the machine's real-time
// clock so playback resumes smoothly from the restored point.
func (h *SnapshotHistory) Rollback(i int) error {
	h.mu.Lock()
	if i < 0 || i >= h.count {
		h.mu.Unlock()
		return fmt.Errorf("snapshot history: index %d out of range (have %d)", i, h.count)
	}
	start := (h.next - h.count + len(h.samples)) % len(h.samples)
	idx := (start + i) % len(h.samples)
	state := h.samples[idx].State
	h.count = i + 1
	h.next = (idx + 1) % len(h.samples)
	h.mu.Unlock()

	h.m.stepLock.Lock()
	err := h.m.Restore(state)
	h.m.stepLock.Unlock()
	if err != nil {
		return fmt.Errorf("snapshot history: rollback restore: %w", err)
	}

	h.m.stepLock.Lock()
	h.m.resyncClock()
	h.m.stepLock.Unlock()
	return nil
}
