// cpu_z80_ops_ed.go - ED-prefixed opcode table: extended loads, block
// transfer/search/IO instructions, interrupt mode control, NEG/RRD/RLD.

package main

func (c *CPU_Z80) initEDOps() {
	for i := range c.edOps {
		c.edOps[i] = edNop
	}

	regPairs := [4]func(*CPU_Z80) uint16{
		func(c *CPU_Z80) uint16 { return c.BC() },
		func(c *CPU_Z80) uint16 { return c.DE() },
		func(c *CPU_Z80) uint16 { return c.HL() },
		func(c *CPU_Z80) uint16 { return c.SP },
	}
	setRegPairs := [4]func(*CPU_Z80, uint16){
		func(c *CPU_Z80, v uint16) { c.SetBC(v) },
		func(c *CPU_Z80, v uint16) { c.SetDE(v) },
		func(c *CPU_Z80, v uint16) { c.SetHL(v) },
		func(c *CPU_Z80, v uint16) { c.SP = v },
	}

	for i := byte(0); i < 4; i++ {
		get, set := regPairs[i], setRegPairs[i]
		c.edOps[0x42+i<<4] = func(c *CPU_Z80) {
			c.tick(7)
			set(c, c.sbc16(c.HL(), get(c)))
		}
		c.edOps[0x4A+i<<4] = func(c *CPU_Z80) {
			c.tick(7)
			set(c, c.adc16(c.HL(), get(c)))
		}
		c.edOps[0x43+i<<4] = func(c *CPU_Z80) {
			addr := c.fetchWord()
			v := get(c)
			c.write(addr, byte(v))
			c.write(addr+1, byte(v>>8))
			c.WZ = addr + 1
		}
		c.edOps[0x4B+i<<4] = func(c *CPU_Z80) {
			addr := c.fetchWord()
			lo := c.read(addr)
			hi := c.read(addr + 1)
			set(c, uint16(lo)|uint16(hi)<<8)
			c.WZ = addr + 1
		}
	}

	c.edOps[0x44] = edNeg
	c.edOps[0x4C] = edNeg
	c.edOps[0x54] = edNeg
	c.edOps[0x5C] = edNeg
	c.edOps[0x64] = edNeg
	c.edOps[0x6C] = edNeg
	c.edOps[0x74] = edNeg
	c.edOps[0x7C] = edNeg

	c.edOps[0x45] = edRetn
	c.edOps[0x55] = edRetn
	c.edOps[0x65] = edRetn
	c.edOps[0x75] = edRetn
	c.edOps[0x5D] = edRetn
	c.edOps[0x6D] = edRetn
	c.edOps[0x7D] = edRetn
	c.edOps[0x4D] = edReti

	c.edOps[0x46] = func(c *CPU_Z80) { c.IM = 0 }
	c.edOps[0x4E] = func(c *CPU_Z80) { c.IM = 0 }
	c.edOps[0x56] = func(c *CPU_Z80) { c.IM = 1 }
	c.edOps[0x66] = func(c *CPU_Z80) { c.IM = 1 }
	c.edOps[0x5E] = func(c *CPU_Z80) { c.IM = 2 }
	c.edOps[0x7E] = func(c *CPU_Z80) { c.IM = 2 }

	c.edOps[0x47] = func(c *CPU_Z80) { c.I = c.A; c.tick(1) }
	c.edOps[0x4F] = func(c *CPU_Z80) { c.R = c.A; c.tick(1) }
	c.edOps[0x57] = func(c *CPU_Z80) {
		c.A = c.I
		c.tick(1)
		f := szFlags(c.A) & (z80FlagS | z80FlagZ | z80FlagY | z80FlagX)
		if c.IFF2 {
			f |= z80FlagPV
		}
		c.F = f | c.F&z80FlagC
	}
	c.edOps[0x5F] = func(c *CPU_Z80) {
		c.A = c.R
		c.tick(1)
		f := szFlags(c.A) & (z80FlagS | z80FlagZ | z80FlagY | z80FlagX)
		if c.IFF2 {
			f |= z80FlagPV
		}
		c.F = f | c.F&z80FlagC
	}

	c.edOps[0x67] = edRRD
	c.edOps[0x6F] = edRLD

	c.edOps[0xA0] = edLDI
	c.edOps[0xA8] = edLDD
	c.edOps[0xB0] = edLDIR
	c.edOps[0xB8] = edLDDR

	c.edOps[0xA1] = edCPI
	c.edOps[0xA9] = edCPD
	c.edOps[0xB1] = edCPIR
	c.edOps[0xB9] = edCPDR

	c.edOps[0xA2] = edINI
	c.edOps[0xAA] = edIND
	c.edOps[0xB2] = edINIR
	c.edOps[0xBA] = edINDR

	c.edOps[0xA3] = edOUTI
	c.edOps[0xAB] = edOUTD
	c.edOps[0xB3] = edOTIR
	c.edOps[0xBB] = edOTDR

	for _, reg := range []byte{0, 1, 2, 3, 4, 5, 7} {
		r := reg
		c.edOps[0x40+r<<3] = func(c *CPU_Z80) {
			v := c.in(c.BC())
			c.WZ = c.BC() + 1
			c.writeReg8Plain(r, v)
			c.F = (c.F & z80FlagC) | szFlags(v)
			if parity8(v) {
				c.F |= z80FlagPV
			}
		}
		c.edOps[0x41+r<<3] = func(c *CPU_Z80) {
			c.out(c.BC(), c.readReg8Plain(r))
			c.WZ = c.BC() + 1
		}
	}
	// IN F,(C) / OUT (C),0 — the undocumented flags-only form (r=6).
	c.edOps[0x70] = func(c *CPU_Z80) {
		v := c.in(c.BC())
		c.WZ = c.BC() + 1
		c.F = (c.F & z80FlagC) | szFlags(v)
		if parity8(v) {
			c.F |= z80FlagPV
		}
	}
	c.edOps[0x71] = func(c *CPU_Z80) {
		c.out(c.BC(), 0)
		c.WZ = c.BC() + 1
	}
}

func edNop(c *CPU_Z80) {}

func edNeg(c *CPU_Z80) {
	a := c.A
	c.A = 0
	c.A = c.sub8(c.A, a, false)
}

func edRetn(c *CPU_Z80) {
	c.PC = c.popWord()
	c.WZ = c.PC
	c.IFF1 = c.IFF2
}

func edReti(c *CPU_Z80) {
	c.PC = c.popWord()
	c.WZ = c.PC
	c.IFF1 = c.IFF2
}

// edRRD/edRLD rotate a BCD digit between A's low nibble and (HL), 4 bits at
// a time.
func edRRD(c *CPU_Z80) {
	hl := c.HL()
	m := c.read(hl)
	c.tick(4)
	result := (c.A&0x0F)<<4 | m>>4
	c.A = c.A&0xF0 | m&0x0F
	c.write(hl, result)
	c.WZ = hl + 1
	f := szFlags(c.A) & (z80FlagS | z80FlagZ | z80FlagY | z80FlagX)
	if parity8(c.A) {
		f |= z80FlagPV
	}
	c.F = f | c.F&z80FlagC
}

func edRLD(c *CPU_Z80) {
	hl := c.HL()
	m := c.read(hl)
	c.tick(4)
	result := m<<4 | c.A&0x0F
	c.A = c.A&0xF0 | m>>4
	c.write(hl, result)
	c.WZ = hl + 1
	f := szFlags(c.A) & (z80FlagS | z80FlagZ | z80FlagY | z80FlagX)
	if parity8(c.A) {
		f |= z80FlagPV
	}
	c.F = f | c.F&z80FlagC
}

func edLDI(c *CPU_Z80) {
	hl, de, bc := c.HL(), c.DE(), c.BC()
	v := c.read(hl)
	c.write(de, v)
	c.tick(2)
	c.SetHL(hl + 1)
	c.SetDE(de + 1)
	bc--
	c.SetBC(bc)

	f := c.F & (z80FlagS | z80FlagZ | z80FlagC)
	n := v + c.A
	if n&0x02 != 0 {
		f |= z80FlagY
	}
	if n&0x08 != 0 {
		f |= z80FlagX
	}
	if bc != 0 {
		f |= z80FlagPV
	}
	c.F = f
}

func edLDD(c *CPU_Z80) {
	hl, de, bc := c.HL(), c.DE(), c.BC()
	v := c.read(hl)
	c.write(de, v)
	c.tick(2)
	c.SetHL(hl - 1)
	c.SetDE(de - 1)
	bc--
	c.SetBC(bc)

	f := c.F & (z80FlagS | z80FlagZ | z80FlagC)
	n := v + c.A
	if n&0x02 != 0 {
		f |= z80FlagY
	}
	if n&0x08 != 0 {
		f |= z80FlagX
	}
	if bc != 0 {
		f |= z80FlagPV
	}
	c.F = f
}

func edLDIR(c *CPU_Z80) {
	edLDI(c)
	if c.BC() != 0 {
		c.tick(5)
		c.PC -= 2
		c.WZ = c.PC + 1
	}
}

func edLDDR(c *CPU_Z80) {
	edLDD(c)
	if c.BC() != 0 {
		c.tick(5)
		c.PC -= 2
		c.WZ = c.PC + 1
	}
}

func edCPI(c *CPU_Z80) {
	hl, bc := c.HL(), c.BC()
	v := c.read(hl)
	c.tick(5)
	result := c.A - v
	c.SetHL(hl + 1)
	bc--
	c.SetBC(bc)

	f := c.F & z80FlagC
	f |= szFlags(result) & (z80FlagS | z80FlagZ)
	f |= z80FlagN
	if c.A&0x0F < v&0x0F {
		f |= z80FlagH
		result--
	}
	if result&0x02 != 0 {
		f |= z80FlagY
	}
	if result&0x08 != 0 {
		f |= z80FlagX
	}
	if bc != 0 {
		f |= z80FlagPV
	}
	c.F = f
	c.WZ++
}

func edCPD(c *CPU_Z80) {
	hl, bc := c.HL(), c.BC()
	v := c.read(hl)
	c.tick(5)
	result := c.A - v
	c.SetHL(hl - 1)
	bc--
	c.SetBC(bc)

	f := c.F & z80FlagC
	f |= szFlags(result) & (z80FlagS | z80FlagZ)
	f |= z80FlagN
	if c.A&0x0F < v&0x0F {
		f |= z80FlagH
		result--
	}
	if result&0x02 != 0 {
		f |= z80FlagY
	}
	if result&0x08 != 0 {
		f |= z80FlagX
	}
	if bc != 0 {
		f |= z80FlagPV
	}
	c.F = f
	c.WZ--
}

func edCPIR(c *CPU_Z80) {
	edCPI(c)
	if c.BC() != 0 && !c.Flag(z80FlagZ) {
		c.tick(5)
		c.PC -= 2
		c.WZ = c.PC + 1
	}
}

func edCPDR(c *CPU_Z80) {
	edCPD(c)
	if c.BC() != 0 && !c.Flag(z80FlagZ) {
		c.tick(5)
		c.PC -= 2
		c.WZ = c.PC + 1
	}
}

func edINI(c *CPU_Z80) {
	hl := c.HL()
	v := c.in(c.BC())
	c.tick(1)
	c.write(hl, v)
	c.SetHL(hl + 1)
	c.B--
	c.WZ = c.BC() + 1

	f := byte(z80FlagN)
	if c.B == 0 {
		f |= z80FlagZ
	}
	f |= c.B & (z80FlagS | z80FlagY | z80FlagX)
	c.F = f
}

func edIND(c *CPU_Z80) {
	hl := c.HL()
	v := c.in(c.BC())
	c.tick(1)
	c.write(hl, v)
	c.SetHL(hl - 1)
	c.B--
	c.WZ = c.BC() - 1

	f := byte(z80FlagN)
	if c.B == 0 {
		f |= z80FlagZ
	}
	f |= c.B & (z80FlagS | z80FlagY | z80FlagX)
	c.F = f
}

func edINIR(c *CPU_Z80) {
	edINI(c)
	if c.B != 0 {
		c.tick(5)
		c.PC -= 2
	}
}

func edINDR(c *CPU_Z80) {
	edIND(c)
	if c.B != 0 {
		c.tick(5)
		c.PC -= 2
	}
}

func edOUTI(c *CPU_Z80) {
	hl := c.HL()
	v := c.read(hl)
	c.tick(1)
	c.B--
	c.out(c.BC(), v)
	c.SetHL(hl + 1)
	c.WZ = c.BC() + 1

	f := byte(z80FlagN)
	if c.B == 0 {
		f |= z80FlagZ
	}
	f |= c.B & (z80FlagS | z80FlagY | z80FlagX)
	c.F = f
}

func edOUTD(c *CPU_Z80) {
	hl := c.HL()
	v := c.read(hl)
	c.tick(1)
	c.B--
	c.out(c.BC(), v)
	c.SetHL(hl - 1)
	c.WZ = c.BC() - 1

	f := byte(z80FlagN)
	if c.B == 0 {
		f |= z80FlagZ
	}
	f |= c.B & (z80FlagS | z80FlagY | z80FlagX)
	c.F = f
}

func edOTIR(c *CPU_Z80) {
	edOUTI(c)
	if c.B != 0 {
		c.tick(5)
		c.PC -= 2
	}
}

func edOTDR(c *CPU_Z80) {
	edOUTD(c)
	if c.B != 0 {
		c.tick(5)
		c.PC -= 2
	}
}
