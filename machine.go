// machine.go - wires CPU, bus, memory, VDP, PSG, and ports together and
// drives the real-time scheduling loop on a dedicated worker goroutine.

package main

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Region selects the VDP's scanline count and nominal refresh rate.
type Region int

const (
	RegionNTSC Region = iota
	RegionPAL
)

func (r Region) totalScanlines() int {
	if r == RegionPAL {
		return 313
	}
	return 262
}

// MachineConfig carries every tunable the Machine needs; there is no
// global mutable configuration anywhere in this core.
type MachineConfig struct {
	CPUHz          int
	SampleRate     int
	Region         Region
	HistoryDepth   int
	HistoryPeriod  time.Duration
	Logger         *log.Logger
}

func (cfg *MachineConfig) fillDefaults() {
	if cfg.CPUHz == 0 {
		cfg.CPUHz = 3579545
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 44100
	}
	if cfg.HistoryDepth == 0 {
		cfg.HistoryDepth = 30
	}
	if cfg.HistoryPeriod == 0 {
		cfg.HistoryPeriod = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
}

// Machine owns the full device graph and the single worker goroutine that
// steps it. All cross-goroutine interaction happens through the step lock,
// the pause flag, and the snapshot API; nothing else touches CPU or device
// state concurrently.
type Machine struct {
	cfg MachineConfig

	bus     *Bus
	ctrl    *memControlBits
	ram     *WorkRAM
	mirror  *RAMMirror
	mapper  *Mapper
	cpu     *CPU_Z80
	vdp     *VDP
	psg     *PSG
	ports   *Ports
	history *SnapshotHistory

	stepLock sync.Mutex
	paused   atomic.Bool
	shutdown atomic.Bool

	startTStates uint64
	startWall    time.Time
	sinceSync    int

	execMu     sync.Mutex
	execActive bool
	execDone   chan struct{}

	OnFrame func(frame []byte)
	OnAudio func(left, right float32)
	OnError func(err error)
}

// NewMachine builds the device graph and loads rom (and, if non-empty,
// bios) into it. No emulation runs until Start launches the worker
// goroutine.
func NewMachine(cfg MachineConfig, rom, bios []byte) *Machine {
	cfg.fillDefaults()

	m := &Machine{cfg: cfg}

	m.bus = NewBus()
	m.ctrl = &memControlBits{}
	m.ram = NewWorkRAM(m.ctrl)
	m.mirror = NewRAMMirror(m.ram)
	m.mapper = NewMapper(rom, m.ctrl, m.ram)
	if len(bios) > 0 {
		m.mapper.LoadBIOS(bios)
	}
	regs := NewMapperRegisters(m.mirror, m.mapper)

	m.bus.Attach(0x0000, 0xBFFF, m.mapper)
	m.bus.Attach(0xC000, 0xDFFF, m.ram)
	m.bus.Attach(0xE000, 0xFFFB, m.mirror)
	m.bus.Attach(0xFFFC, 0xFFFF, regs)

	m.vdp = NewVDP()
	m.vdp.SetTotalScanlines(cfg.Region.totalScanlines())
	m.vdp.OnFrame = func(frame []byte) {
		if m.OnFrame != nil {
			m.OnFrame(frame)
		}
	}

	m.psg = NewPSG(cfg.CPUHz, cfg.SampleRate)
	m.psg.SetSink(func(left, right float32) {
		if m.OnAudio != nil {
			m.OnAudio(left, right)
		}
	})

	m.ports = NewPorts(m.ctrl, m.vdp, m.psg)
	m.bus.AttachPorts(m.ports)

	m.cpu = NewCPU_Z80(newZ80BusAdapter(m.bus))
	m.history = NewSnapshotHistory(m, cfg.HistoryDepth)

	return m
}

func (m *Machine) CPU() *CPU_Z80 { return m.cpu }
func (m *Machine) VDP() *VDP     { return m.vdp }
func (m *Machine) PSG() *PSG     { return m.psg }

func (m *Machine) CPUHz() int { return m.cfg.CPUHz }

func (m *Machine) SetButtons(state byte) {
	m.stepLock.Lock()
	defer m.stepLock.Unlock()
	m.ports.SetButtons(state)
}

func (m *Machine) Pause()  { m.paused.Store(true) }
func (m *Machine) Resume() {
	m.paused.Store(false)
	m.stepLock.Lock()
	m.resyncClock()
	m.stepLock.Unlock()
}

func (m *Machine) resyncClock() {
	m.startTStates = m.cpu.TStates()
	m.startWall = time.Now()
	m.sinceSync = 0
}

// Start launches the worker goroutine. Calling Start twice without an
// intervening Stop is a no-op.
func (m *Machine) Start() {
	m.execMu.Lock()
	defer m.execMu.Unlock()
	if m.execActive {
		return
	}
	m.shutdown.Store(false)
	m.resyncClock()
	m.execActive = true
	m.execDone = make(chan struct{})
	go func() {
		defer close(m.execDone)
		m.run()
	}()
}

// Stop signals the worker to exit and joins it with a 2s bound, matching
// the core's stated cancellation contract. Returns an error rather than
// blocking forever if the goroutine fails to join in time.
func (m *Machine) Stop() error {
	m.execMu.Lock()
	defer m.execMu.Unlock()
	if !m.execActive {
		return nil
	}
	m.shutdown.Store(true)
	select {
	case <-m.execDone:
		m.execActive = false
		return nil
	case <-time.After(2 * time.Second):
		m.cfg.Logger.Printf("machine: worker goroutine failed to join within 2s")
		return fmt.Errorf("machine: stop timed out waiting for worker goroutine")
	}
}

// run is the scheduling loop body; it owns the single worker goroutine for
// the lifetime of one Start/Stop cycle.
func (m *Machine) run() {
	for !m.shutdown.Load() {
		if m.paused.Load() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		m.stepLock.Lock()
		delta := m.cpu.Step()
		m.vdp.Advance(delta)
		m.psg.Advance(delta)
		if m.vdp.TryConsumeIRQ() {
			m.cpu.RequestIRQ()
		}
		m.history.observe(m.cpu.TStates())
		m.stepLock.Unlock()

		m.sinceSync += delta
		if m.sinceSync >= 2048 {
			m.syncClock()
			m.sinceSync = 0
		}
	}
}

// syncClock spin-waits (yielding) until real elapsed time catches up with
// emulated elapsed time, amortized over ≥2048 T-state batches so the wait
// isn't recomputed every single instruction.
func (m *Machine) syncClock() {
	elapsedTStates := m.cpu.TStates() - m.startTStates
	target := time.Duration(float64(elapsedTStates) / float64(m.cfg.CPUHz) * float64(time.Second))
	for {
		actual := time.Since(m.startWall)
		if actual >= target {
			return
		}
		if m.shutdown.Load() || m.paused.Load() {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Reset reinitializes the CPU and clears the memory-control register. The
// mapper's bank registers and the loaded ROM image are left as they are.
func (m *Machine) Reset() {
	m.stepLock.Lock()
	defer m.stepLock.Unlock()
	m.cpu.Reset()
	m.ctrl.Set(0)
}
