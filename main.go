// main.go - smsbench: a command-line harness that loads a cartridge image,
// runs it for a fixed duration, and optionally dumps a disassembly instead
// of executing.

package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

func main() {
	region := flag.String("region", "ntsc", "video region: ntsc or pal")
	duration := flag.Duration("duration", 5*time.Second, "how long to run the machine before exiting")
	biosPath := flag.String("bios", "", "optional BIOS ROM path")
	disasmAddr := flag.Uint("disasm", 0, "disassemble starting at this address and exit (use with -disasm-count)")
	disasmCount := flag.Int("disasm-count", 32, "number of instructions to disassemble with -disasm")
	snapshotOut := flag.String("snapshot-out", "", "write a snapshot file at exit")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: smsbench [options] rom.sms\n\nRuns a Master System cartridge image headlessly for a fixed duration.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	romPath := flag.Arg(0)

	rom, err := os.ReadFile(romPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: reading rom: %v\n", err)
		os.Exit(1)
	}
	if len(rom) == 0 {
		fmt.Fprintf(os.Stderr, "error: %v\n", errEmptyROM)
		os.Exit(1)
	}

	var bios []byte
	if *biosPath != "" {
		bios, err = os.ReadFile(*biosPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: reading bios: %v\n", err)
			os.Exit(1)
		}
	}

	var reg Region
	switch *region {
	case "ntsc":
		reg = RegionNTSC
	case "pal":
		reg = RegionPAL
	default:
		fmt.Fprintf(os.Stderr, "error: -region must be ntsc or pal\n")
		os.Exit(1)
	}

	cfg := MachineConfig{Region: reg}
	m := NewMachine(cfg, rom, bios)

	if isDisasmRequested() {
		dumpDisassembly(m, uint16(*disasmAddr), *disasmCount)
		return
	}

	frames := 0
	m.OnFrame = func(frame []byte) { frames++ }

	m.Start()
	time.Sleep(*duration)
	if err := m.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	fmt.Printf("ran %s, %d frames, %d T-states\n", *duration, frames, m.CPU().TStates())

	if *snapshotOut != "" {
		if err := m.SaveFile(*snapshotOut, romPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: saving snapshot: %v\n", err)
			os.Exit(1)
		}
	}
}

// isDisasmRequested reports whether -disasm was actually passed on the
// command line, since flag.Uint can't distinguish "0" default from an
// explicit "-disasm 0".
func isDisasmRequested() bool {
	requested := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "disasm" {
			requested = true
		}
	})
	return requested
}

func dumpDisassembly(m *Machine, addr uint16, count int) {
	readMem := func(a uint64, size int) []byte {
		out := make([]byte, size)
		for i := range out {
			out[i] = m.bus.Read8(uint16(a) + uint16(i))
		}
		return out
	}
	lines := disassembleZ80(readMem, uint64(addr), count)
	for _, l := range lines {
		fmt.Printf("%04X  %-12s %s\n", l.Address, l.HexBytes, l.Mnemonic)
	}
}
