// cpu_z80_ops_cb.go - CB-prefixed bit/rotate/shift opcode table, plus the
// DDCB/FDCB indexed form.

package main

func (c *CPU_Z80) initCBOps() {
	// Rotate/shift group (0x00-0x3F): 8 operations x 8 operands.
	shiftFns := [8]func(*CPU_Z80, byte) byte{
		(*CPU_Z80).rlc8, (*CPU_Z80).rrc8, (*CPU_Z80).rl8, (*CPU_Z80).rr8,
		(*CPU_Z80).sla8, (*CPU_Z80).sra8, (*CPU_Z80).sll8, (*CPU_Z80).srl8,
	}
	for op := byte(0); op < 8; op++ {
		for reg := byte(0); reg < 8; reg++ {
			opcode := op<<3 + reg
			fn, r := shiftFns[op], reg
			c.cbOps[opcode] = func(c *CPU_Z80) {
				v := c.readReg8Plain(r)
				if r == 6 {
					c.tick(1)
				}
				c.writeReg8Plain(r, fn(c, v))
			}
		}
	}

	// BIT n,r (0x40-0x7F).
	for n := byte(0); n < 8; n++ {
		for reg := byte(0); reg < 8; reg++ {
			opcode := 0x40 + n<<3 + reg
			bitN, r := n, reg
			c.cbOps[opcode] = func(c *CPU_Z80) {
				c.bit(bitN, c.readReg8Plain(r))
				if r == 6 {
					c.tick(1)
				}
			}
		}
	}

	// RES n,r (0x80-0xBF).
	for n := byte(0); n < 8; n++ {
		for reg := byte(0); reg < 8; reg++ {
			opcode := 0x80 + n<<3 + reg
			bitN, r := n, reg
			c.cbOps[opcode] = func(c *CPU_Z80) {
				v := c.readReg8Plain(r)
				if r == 6 {
					c.tick(1)
				}
				c.writeReg8Plain(r, resBit(bitN, v))
			}
		}
	}

	// SET n,r (0xC0-0xFF).
	for n := byte(0); n < 8; n++ {
		for reg := byte(0); reg < 8; reg++ {
			opcode := 0xC0 + n<<3 + reg
			bitN, r := n, reg
			c.cbOps[opcode] = func(c *CPU_Z80) {
				v := c.readReg8Plain(r)
				if r == 6 {
					c.tick(1)
				}
				c.writeReg8Plain(r, setBit(bitN, v))
			}
		}
	}
}

// indexedCBOp executes a CB-class opcode against addr = (IX+d)/(IY+d). The
// displacement byte and opcode byte were already consumed by the caller; the
// 2-cycle indexed-address penalty was also already charged there. Every
// operand slot operates on the same memory cell; when the low 3 bits select
// a register (0-5, 7) the result is additionally written back to that
// register, the well-known undocumented DDCB/FDCB side effect.
func (c *CPU_Z80) indexedCBOp(opcode byte, addr uint16) {
	v := c.read(addr)
	c.tick(1)
	reg := opcode & 0x07
	group := opcode >> 6

	switch group {
	case 0: // rotate/shift
		shiftFns := [8]func(*CPU_Z80, byte) byte{
			(*CPU_Z80).rlc8, (*CPU_Z80).rrc8, (*CPU_Z80).rl8, (*CPU_Z80).rr8,
			(*CPU_Z80).sla8, (*CPU_Z80).sra8, (*CPU_Z80).sll8, (*CPU_Z80).srl8,
		}
		op := (opcode >> 3) & 0x07
		result := shiftFns[op](c, v)
		c.write(addr, result)
		if reg != 6 {
			c.writeReg8Plain(reg, result)
		}
	case 1: // BIT n,(addr)
		n := (opcode >> 3) & 0x07
		c.bitIndexed(n, v, byte(addr>>8))
	case 2: // RES n,(addr)
		n := (opcode >> 3) & 0x07
		result := resBit(n, v)
		c.write(addr, result)
		if reg != 6 {
			c.writeReg8Plain(reg, result)
		}
	case 3: // SET n,(addr)
		n := (opcode >> 3) & 0x07
		result := setBit(n, v)
		c.write(addr, result)
		if reg != 6 {
			c.writeReg8Plain(reg, result)
		}
	}
}
