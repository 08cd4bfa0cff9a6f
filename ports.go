// ports.go - SMS I/O port space: memory control, I/O control (TH latch),
// VDP/PSG port routing, joypad ports.

package main

// vdpPortDevice is the subset of the VDP the port layer drives directly.
type vdpPortDevice interface {
	ReadData() byte
	WriteData(v byte)
	ReadStatus() byte
	WriteControl(v byte)
	ReadVCounter() byte
	ReadHCounter() byte
	LatchHCounter()
}

// psgPortDevice is the subset of the PSG the port layer drives directly.
type psgPortDevice interface {
	Write(v byte)
}

// Ports implements PortDevice for the full SMS port map, decoding by the
// low address byte per the port table; a handful of addresses (VDP/PSG
// mirrors) alias to the same device.
type Ports struct {
	ctrl *memControlBits
	vdp  vdpPortDevice
	psg  psgPortDevice

	ioControl byte
	prevTHA   bool
	prevTHB   bool

	joypadA byte // active-low: bit0 Up,1 Down,2 Left,3 Right,4 B1,5 B2
	joypadB byte

	f2Latch byte
}

func NewPorts(ctrl *memControlBits, vdp vdpPortDevice, psg psgPortDevice) *Ports {
	return &Ports{
		ctrl:      ctrl,
		vdp:       vdp,
		psg:       psg,
		ioControl: 0xFF,
		joypadA:   0xFF,
		joypadB:   0xFF,
		f2Latch:   0x02,
	}
}

// SetButtons encodes bits 0..5 as Up/Down/Left/Right/Button1/Button2,
// active-high at the external interface; the port read inverts to the
// hardware's active-low convention.
func (p *Ports) SetButtons(state byte) {
	p.joypadA = (^state) | 0xC0
}

func (p *Ports) In(port uint16) byte {
	low := byte(port)
	switch {
	case low == 0x3E:
		return p.ctrl.raw
	case low == 0x3F:
		return p.ioControl
	case low == 0x7E:
		return p.vdp.ReadVCounter()
	case low == 0x7F:
		return p.vdp.ReadHCounter()
	case low == 0xBE || low == 0xBC:
		return p.vdp.ReadData()
	case low == 0xBF || low == 0xBD:
		return p.vdp.ReadStatus()
	case low == 0xDC || low == 0xC0:
		return p.joypadA
	case low == 0xDD || low == 0xC1:
		return p.joypadB
	case low == 0xF0 || low == 0xF1:
		return 0xFF
	case low == 0xF2:
		return p.f2Latch
	default:
		return byte(port >> 8)
	}
}

func (p *Ports) Out(port uint16, value byte) {
	low := byte(port)
	switch {
	case low == 0x3E:
		p.ctrl.Set(value)
	case low == 0x3F:
		p.writeIOControl(value)
	case low == 0x7E, low == 0x7F:
		p.psg.Write(value)
	case low == 0xBE, low == 0xBC:
		p.vdp.WriteData(value)
	case low == 0xBF, low == 0xBD:
		p.vdp.WriteControl(value)
	case low == 0xDC, low == 0xC0, low == 0xDD, low == 0xC1:
		// joypad ports are read-only from software's perspective
	case low == 0xF0, low == 0xF1, low == 0xF2:
		p.f2Latch = 0x02
	case port&0xC1 == 0x40 || port&0xC1 == 0x41:
		p.psg.Write(value)
	default:
		// unmapped write: ignored
	}
}

// writeIOControl tracks TH line state on both joypad ports; a rising edge
// on either TH output asks the VDP to latch its H counter, the mechanism
// light-gun and some multitap peripherals rely on.
func (p *Ports) writeIOControl(value byte) {
	p.ioControl = value
	thA := value&0x20 != 0
	thB := value&0x80 != 0
	if (thA && !p.prevTHA) || (thB && !p.prevTHB) {
		p.vdp.LatchHCounter()
	}
	p.prevTHA = thA
	p.prevTHB = thB
}
