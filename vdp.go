// vdp.go - SMS VDP (Mode 4): port protocol, scanline timing, frame
// rendering into a BGRA framebuffer.

package main

const (
	vdpCyclesPerScanline = 228
	screenWidth          = 256
	maxScreenHeight      = 224
)

var vdpPaletteScale = [4]byte{0, 85, 170, 255}

// VDP implements the Sega Master System Mode 4 video display processor.
type VDP struct {
	vram      [vramSize]byte
	cram      [cramSize]byte
	registers [16]byte

	addr        uint16
	addrLatch   byte
	writeLatch  bool
	codeReg     byte
	readBuffer  byte
	status      byte
	statusIndex byte

	vCounter       int
	cyclePos       int
	hCounterLatch  byte
	lineCounter    int
	irqPending     bool
	totalScanlines int

	bgPriority [screenWidth]bool
	framebuffer [screenWidth * maxScreenHeight * 4]byte

	OnFrame func(frame []byte)
}

func NewVDP() *VDP {
	v := &VDP{
		totalScanlines: 262,
		lineCounter:    255,
	}
	return v
}

func (v *VDP) SetTotalScanlines(n int) { v.totalScanlines = n }

func (v *VDP) activeHeight() int {
	m2 := v.registers[0]&0x02 != 0
	m1 := v.registers[1]&0x10 != 0
	if m2 && m1 {
		return 224
	}
	return 192
}

// WriteControl implements the two-byte control-port latch protocol.
func (v *VDP) WriteControl(value byte) {
	if !v.writeLatch {
		v.addrLatch = value
		v.addr = v.addr&0x3F00 | uint16(value)
		v.writeLatch = true
		return
	}
	v.writeLatch = false
	v.addr = uint16(v.addrLatch) | uint16(value&0x3F)<<8
	v.codeReg = (value >> 6) & 0x03

	switch v.codeReg {
	case 0:
		v.readBuffer = v.vram[v.addr&(vramSize-1)]
		v.addr = (v.addr + 1) & (vramSize - 1)
	case 1:
		// VRAM write mode: address already set.
	case 2:
		regNum := value & 0x0F
		v.registers[regNum] = v.addrLatch
		if regNum == 10 {
			v.lineCounter = int(v.registers[10])
		}
	case 3:
		// CRAM write mode: address already set, masked to 0x1F on write.
	}
}

func (v *VDP) ReadStatus() byte {
	result := v.status | v.statusIndex
	v.status &^= 0xE0
	v.statusIndex = 0
	v.irqPending = false
	v.writeLatch = false
	return result
}

func (v *VDP) ReadData() byte {
	v.writeLatch = false
	data := v.readBuffer
	v.readBuffer = v.vram[v.addr&(vramSize-1)]
	v.addr = (v.addr + 1) & (vramSize - 1)
	return data
}

func (v *VDP) WriteData(value byte) {
	v.writeLatch = false
	v.readBuffer = value
	if v.codeReg == 3 {
		v.cram[v.addr&(cramSize-1)] = value
	} else {
		v.vram[v.addr&(vramSize-1)] = value
	}
	v.addr = (v.addr + 1) & (vramSize - 1)
}

// ReadVCounter maps the internal scanline count to the 8-bit value real
// hardware exposes, which skips a run of values during VBlank so 262/313
// scanlines fit in a byte.
func (v *VDP) ReadVCounter() byte {
	line := v.vCounter
	height := v.activeHeight()
	if v.totalScanlines == 313 {
		switch height {
		case 192:
			if line <= 242 {
				return byte(line)
			}
			return byte(line - 57)
		case 224:
			if line <= 258 {
				return byte(line)
			}
			return byte(line - 57)
		}
	} else {
		switch height {
		case 192:
			if line <= 218 {
				return byte(line)
			}
			return byte(line - 6)
		case 224:
			if line <= 234 {
				return byte(line)
			}
			return byte(line - 6)
		}
	}
	return byte(line)
}

func (v *VDP) ReadHCounter() byte { return v.hCounterLatch }

// LatchHCounter captures the current within-scanline position scaled to a
// byte, called by the port layer on a TH rising edge.
func (v *VDP) LatchHCounter() {
	v.hCounterLatch = byte(v.cyclePos * 256 / vdpCyclesPerScanline)
}

func (v *VDP) TryConsumeIRQ() bool {
	if v.irqPending {
		v.irqPending = false
		return true
	}
	return false
}

// Advance consumes delta T-states of VDP timing, crossing scanline
// boundaries as needed and rendering the full frame when VBlank starts.
func (v *VDP) Advance(delta int) {
	v.cyclePos += delta
	for v.cyclePos >= vdpCyclesPerScanline {
		v.cyclePos -= vdpCyclesPerScanline
		v.advanceScanline()
	}
}

func (v *VDP) advanceScanline() {
	v.vCounter++
	height := v.activeHeight()

	if v.vCounter <= height {
		v.lineCounter--
		if v.lineCounter < 0 {
			v.lineCounter = int(v.registers[10])
			if v.registers[0]&0x10 != 0 {
				v.irqPending = true
			}
		}
	} else {
		v.lineCounter = int(v.registers[10])
	}

	if v.vCounter == height {
		v.status |= 0x80
		if v.registers[1]&0x20 != 0 {
			v.irqPending = true
		}
		v.renderFrame()
		if v.OnFrame != nil {
			// The external video sink contract is a fixed 256x192 BGRA frame
			// regardless of the 224-line extended mode; the extra rows render
			// internally but are never exposed across the callback boundary.
			v.OnFrame(v.framebuffer[:screenWidth*192*4])
		}
	}

	if v.vCounter >= v.totalScanlines {
		v.vCounter = 0
	}
}

func (v *VDP) cramColorBGRA(index byte) (b, g, r, a byte) {
	entry := v.cram[index&(cramSize-1)]
	rr := entry & 0x03
	gg := (entry >> 2) & 0x03
	bb := (entry >> 4) & 0x03
	return vdpPaletteScale[bb], vdpPaletteScale[gg], vdpPaletteScale[rr], 255
}

func (v *VDP) setPixel(x, y int, index byte) {
	b, g, r, a := v.cramColorBGRA(index)
	off := (y*screenWidth + x) * 4
	v.framebuffer[off+0] = b
	v.framebuffer[off+1] = g
	v.framebuffer[off+2] = r
	v.framebuffer[off+3] = a
}

func (v *VDP) renderFrame() {
	height := v.activeHeight()

	if v.registers[1]&0x40 == 0 {
		backdrop := 16 + v.registers[7]&0x0F
		for y := 0; y < height; y++ {
			for x := 0; x < screenWidth; x++ {
				v.setPixel(x, y, backdrop)
			}
		}
		return
	}

	for y := 0; y < height; y++ {
		for i := range v.bgPriority {
			v.bgPriority[i] = false
		}
		v.renderBackgroundLine(y, height)
		v.renderSpriteLine(y, height)

		if v.registers[0]&0x20 != 0 {
			backdrop := 16 + v.registers[7]&0x0F
			for x := 0; x < 8; x++ {
				v.setPixel(x, y, backdrop)
			}
		}
	}
}

func (v *VDP) renderBackgroundLine(line, height int) {
	reg2 := v.registers[2]
	var nameTableBase uint16
	if height == 192 {
		nameTableBase = uint16(reg2&0x0E) << 10
	} else {
		nameTableBase = uint16(reg2&0x0C)<<10 | 0x0700
	}

	hScroll := v.registers[8]
	vScroll := v.registers[9]
	topRowLock := v.registers[0]&0x40 != 0
	rightColLock := v.registers[0]&0x80 != 0

	for x := 0; x < screenWidth; x++ {
		effHScroll := hScroll
		effVScroll := vScroll
		if topRowLock && line < 16 {
			effHScroll = 0
		}
		if rightColLock && x >= 192 {
			effVScroll = 0
		}

		effY := (uint16(line) + uint16(effVScroll)) & 0xFF
		if height == 192 && effY >= 224 {
			effY -= 224
		}
		tileRow := effY / 8
		tileLine := effY % 8

		effX := (uint16(x) - uint16(effHScroll)) & 0xFF
		tileCol := effX / 8
		tilePixel := effX % 8

		nameAddr := (nameTableBase + (tileRow*32+tileCol)*2) & (vramSize - 1)
		lo := v.vram[nameAddr]
		hi := v.vram[(nameAddr+1)&(vramSize-1)]

		patternIndex := uint16(lo) | uint16(hi&0x01)<<8
		hFlip := hi&0x02 != 0
		vFlip := hi&0x04 != 0
		paletteSelect := (hi & 0x08) >> 3
		priority := hi&0x10 != 0

		patternLine := tileLine
		if vFlip {
			patternLine = 7 - tileLine
		}
		pixelPos := tilePixel
		if hFlip {
			pixelPos = 7 - tilePixel
		}

		patternAddr := (patternIndex*32 + patternLine*4) & (vramSize - 1)
		bp0 := v.vram[patternAddr]
		bp1 := v.vram[(patternAddr+1)&(vramSize-1)]
		bp2 := v.vram[(patternAddr+2)&(vramSize-1)]
		bp3 := v.vram[(patternAddr+3)&(vramSize-1)]

		shift := 7 - pixelPos
		colorIndex := (bp0>>shift)&1 | (bp1>>shift&1)<<1 | (bp2>>shift&1)<<2 | (bp3>>shift&1)<<3

		var cramIndex byte
		if colorIndex == 0 {
			cramIndex = 16 + v.registers[7]&0x0F
		} else {
			cramIndex = paletteSelect*16 + colorIndex
		}
		v.setPixel(x, line, cramIndex)

		if priority && colorIndex != 0 {
			v.bgPriority[x] = true
		}
	}
}

func (v *VDP) renderSpriteLine(line, height int) {
	satBase := uint16(v.registers[5]&0x7E) << 7

	spriteHeight := 8
	if v.registers[1]&0x02 != 0 {
		spriteHeight = 16
	}
	zoom := 1
	zoomShift := 0
	if v.registers[1]&0x01 != 0 {
		zoom = 2
		zoomShift = 1
	}
	effectiveHeight := spriteHeight * zoom

	patternBase := uint16(v.registers[6]&0x04) << 11

	spriteShift := 0
	if v.registers[0]&0x08 != 0 {
		spriteShift = 8
	}

	type spriteHit struct {
		index   int
		x       int
		pattern byte
		line    int
	}
	var hits [8]spriteHit
	hitCount := 0
	overflowed := false

	for i := 0; i < 64; i++ {
		y := int(v.vram[(satBase+uint16(i))&(vramSize-1)])
		if height == 192 && y == 0xD0 {
			break
		}
		spriteY := y + 1
		if line < spriteY || line >= spriteY+effectiveHeight {
			continue
		}
		if hitCount >= 8 {
			if !overflowed {
				v.status |= 0x40
				v.statusIndex = byte(i) & 0x1F
				overflowed = true
			}
			break
		}
		satAddr2 := satBase + 0x80 + uint16(i)*2
		spriteX := int(v.vram[satAddr2&(vramSize-1)]) - spriteShift
		pattern := v.vram[(satAddr2+1)&(vramSize-1)]
		if spriteHeight == 16 {
			pattern &= 0xFE
		}
		hits[hitCount] = spriteHit{
			index:   i,
			x:       spriteX,
			pattern: pattern,
			line:    (line - spriteY) >> zoomShift,
		}
		hitCount++
	}

	var linePixels [screenWidth]bool
	collided := false

	for i := hitCount - 1; i >= 0; i-- {
		h := hits[i]
		pattern := uint16(h.pattern)
		spriteLine := h.line
		if spriteHeight == 16 && spriteLine >= 8 {
			pattern++
			spriteLine -= 8
		}
		patternAddr := (patternBase + pattern*32 + uint16(spriteLine)*4) & (vramSize - 1)
		bp0 := v.vram[patternAddr]
		bp1 := v.vram[(patternAddr+1)&(vramSize-1)]
		bp2 := v.vram[(patternAddr+2)&(vramSize-1)]
		bp3 := v.vram[(patternAddr+3)&(vramSize-1)]

		for px := 0; px < 8*zoom; px++ {
			screenX := h.x + px
			if screenX < 0 || screenX >= screenWidth {
				continue
			}
			patternPx := px >> zoomShift
			shift := uint(7 - patternPx)
			colorIndex := (bp0>>shift)&1 | (bp1>>shift&1)<<1 | (bp2>>shift&1)<<2 | (bp3>>shift&1)<<3
			if colorIndex == 0 {
				continue
			}
			if linePixels[screenX] {
				if !collided {
					v.status |= 0x20
					collided = true
				}
			}
			linePixels[screenX] = true
			if v.bgPriority[screenX] {
				continue
			}
			v.setPixel(screenX, line, colorIndex+16)
		}
	}
}
