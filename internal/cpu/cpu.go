// Package cpu implements the 6502-family CPU core: registers, the
// addressing-mode/opcode dispatch table, and the cycle-driven stepping
// contract the bus drives one master tick at a time.
//
// Rather than executing a whole instruction per call (the common
// emulator shape), Tick does all of an instruction's work on its first
// cycle and idles for the remainder, matching how the bus paces CPU,
// video and audio against the same master clock.
package cpu

// AddressingMode identifies how an opcode's operand address is formed.
type AddressingMode int

const (
	Implied AddressingMode = iota
	Accumulator
	Immediate
	ZeroPage
	ZeroPageX
	ZeroPageY
	Relative
	Absolute
	AbsoluteX
	AbsoluteY
	Indirect
	IndexedIndirect // (zp,X)
	IndirectIndexed // (zp),Y
)

const (
	stackBase = 0x0100

	nFlagMask  = 0x80
	vFlagMask  = 0x40
	unusedMask = 0x20
	bFlagMask  = 0x10
	dFlagMask  = 0x08
	iFlagMask  = 0x04
	zFlagMask  = 0x02
	cFlagMask  = 0x01

	zeroPageMask = 0xFF
	pageMask     = 0xFF00

	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE
)

// instruction describes one opcode: its mnemonic (for diagnostics only),
// byte length, base cycle count and addressing mode.
type instruction struct {
	name   string
	bytes  uint8
	cycles uint8
	mode   AddressingMode
}

// Bus is the address-space the CPU reads and writes; internal/bus.Bus
// satisfies it directly.
type Bus interface {
	Read(addr uint16) uint8
	Write(addr uint16, value uint8)
}

// CPU is a MOS 6502 core (decimal mode wired off, as on the NES's 2A03).
type CPU struct {
	A  uint8
	X  uint8
	Y  uint8
	SP uint8
	PC uint16

	C bool
	Z bool
	I bool
	D bool
	B bool
	V bool
	N bool

	bus Bus

	pendingCycles int
	halted        bool // true while OAM-DMA owns the bus

	nmiLine    bool
	nmiPending bool
	irqLine    bool
}

var opcodes [256]instruction

// New creates a CPU wired to bus. Call Reset before the first Tick.
func New(bus Bus) *CPU {
	return &CPU{bus: bus, SP: 0xFD}
}

// Reset performs the 6502 power-up/reset sequence: registers to their
// documented reset state, SP down by 3 (simulated via direct set), PC
// loaded from the reset vector. Spends the full 7-cycle sequence
// immediately rather than across Tick calls, since nothing can observe
// bus state during reset.
func (c *CPU) Reset() {
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0xFD
	c.C, c.Z, c.V, c.N, c.D = false, false, false, false, false
	c.I = true
	c.B = true

	low := uint16(c.bus.Read(resetVector))
	high := uint16(c.bus.Read(resetVector + 1))
	c.PC = (high << 8) | low

	c.pendingCycles = 0
	c.halted = false
	c.nmiPending = false
	c.nmiLine = false
	c.irqLine = false
}

// Halt suspends instruction execution (used while OAM-DMA owns the bus).
func (c *CPU) Halt(halted bool) { c.halted = halted }

// SetNMI latches the NMI line; the edge (true->false transition,
// matching the NES's active-low /NMI) schedules an NMI sequence.
func (c *CPU) SetNMI(asserted bool) {
	if c.nmiLine && !asserted {
		c.nmiPending = true
	}
	c.nmiLine = asserted
}

// SetIRQ sets the level-triggered IRQ line state.
func (c *CPU) SetIRQ(asserted bool) { c.irqLine = asserted }

// Tick spends one master-rate CPU cycle. On an instruction's first
// cycle it fetches, decodes and fully executes it, then idles for the
// instruction's remaining cycles; pending NMI/IRQ are serviced at
// instruction boundaries, NMI taking priority.
func (c *CPU) Tick() {
	if c.halted {
		return
	}
	if c.pendingCycles > 0 {
		c.pendingCycles--
		return
	}

	if c.nmiPending {
		c.nmiPending = false
		c.serviceInterrupt(nmiVector)
		c.pendingCycles = 6
		return
	}
	if c.irqLine && !c.I {
		c.serviceInterrupt(irqVector)
		c.pendingCycles = 6
		return
	}

	c.step()
}

// step fetches, decodes and executes one instruction, leaving
// pendingCycles set to the remainder of its cycle budget.
func (c *CPU) step() {
	opcode := c.bus.Read(c.PC)
	in := opcodes[opcode]

	addr, pageCrossed, branchTaken := c.operandAddress(opcode, in.mode)
	extra := c.execute(opcode, addr, branchTaken)

	total := uint16(in.cycles) + uint16(extra)
	if pageCrossed && pageCrossPenalty(opcode) {
		total++
	}
	if total == 0 {
		total = 2
	}
	c.pendingCycles = int(total) - 1
}

// pageCrossPenalty reports whether opcode pays an extra cycle when its
// indexed addressing crosses a page boundary (read-type instructions
// only; indexed stores and read-modify-write always pay the full cost
// already baked into their base cycle count).
func pageCrossPenalty(opcode uint8) bool {
	switch opcode {
	case 0xBD, 0xB9, 0xB1, 0xBE, 0xBC, 0x7D, 0x79, 0x71, 0x3D, 0x39, 0x31,
		0x1D, 0x19, 0x11, 0x5D, 0x59, 0x51, 0xDD, 0xD9, 0xD1,
		0x1C, 0x3C, 0x5C, 0x7C, 0xDC, 0xFC,
		0xBF, 0xB3:
		return true
	}
	return false
}

// operandAddress resolves an opcode's effective address per its
// addressing mode, advancing PC past the instruction's bytes. Relative
// mode additionally returns the branch target as branchTarget; whether
// the branch is taken, and the extra cycles that costs, is decided by
// the branch instruction itself in execute.
func (c *CPU) operandAddress(opcode uint8, mode AddressingMode) (addr uint16, pageCrossed bool, branchTarget uint16) {
	switch mode {
	case Implied, Accumulator:
		c.PC++
		return 0, false, 0

	case Immediate:
		addr = c.PC + 1
		c.PC += 2
		return addr, false, 0

	case ZeroPage:
		addr = uint16(c.bus.Read(c.PC + 1))
		c.PC += 2
		return addr, false, 0

	case ZeroPageX:
		base := c.bus.Read(c.PC + 1)
		addr = uint16((base + c.X) & zeroPageMask)
		c.PC += 2
		return addr, false, 0

	case ZeroPageY:
		base := c.bus.Read(c.PC + 1)
		addr = uint16((base + c.Y) & zeroPageMask)
		c.PC += 2
		return addr, false, 0

	case Relative:
		offset := int8(c.bus.Read(c.PC + 1))
		next := c.PC + 2
		target := uint16(int32(next) + int32(offset))
		c.PC = next
		return target, (next & pageMask) != (target & pageMask), target

	case Absolute:
		low := uint16(c.bus.Read(c.PC + 1))
		high := uint16(c.bus.Read(c.PC + 2))
		addr = (high << 8) | low
		c.PC += 3
		return addr, false, 0

	case AbsoluteX:
		low := uint16(c.bus.Read(c.PC + 1))
		high := uint16(c.bus.Read(c.PC + 2))
		base := (high << 8) | low
		addr = base + uint16(c.X)
		c.PC += 3
		return addr, (base & pageMask) != (addr & pageMask), 0

	case AbsoluteY:
		low := uint16(c.bus.Read(c.PC + 1))
		high := uint16(c.bus.Read(c.PC + 2))
		base := (high << 8) | low
		addr = base + uint16(c.Y)
		c.PC += 3
		return addr, (base & pageMask) != (addr & pageMask), 0

	case Indirect: // JMP only: reproduces the page-wrap bug at xxFF.
		lowPtr := uint16(c.bus.Read(c.PC + 1))
		highPtr := uint16(c.bus.Read(c.PC + 2))
		ptr := (highPtr << 8) | lowPtr

		var low, high uint16
		if ptr&zeroPageMask == zeroPageMask {
			low = uint16(c.bus.Read(ptr))
			high = uint16(c.bus.Read(ptr & pageMask))
		} else {
			low = uint16(c.bus.Read(ptr))
			high = uint16(c.bus.Read(ptr + 1))
		}
		c.PC += 3
		return (high << 8) | low, false, 0

	case IndexedIndirect:
		base := c.bus.Read(c.PC + 1)
		ptr := (base + c.X) & zeroPageMask
		low := uint16(c.bus.Read(uint16(ptr)))
		high := uint16(c.bus.Read(uint16((ptr + 1) & zeroPageMask)))
		c.PC += 2
		return (high << 8) | low, false, 0

	case IndirectIndexed:
		ptr := uint16(c.bus.Read(c.PC + 1))
		low := uint16(c.bus.Read(ptr))
		high := uint16(c.bus.Read((ptr + 1) & zeroPageMask))
		base := (high << 8) | low
		addr = base + uint16(c.Y)
		c.PC += 2
		return addr, (base & pageMask) != (addr & pageMask), 0

	default:
		return 0, false, 0
	}
}

func (c *CPU) push(v uint8) {
	c.bus.Write(stackBase+uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pop() uint8 {
	c.SP++
	return c.bus.Read(stackBase + uint16(c.SP))
}

func (c *CPU) pushWord(v uint16) {
	c.push(uint8(v >> 8))
	c.push(uint8(v))
}

func (c *CPU) popWord() uint16 {
	low := uint16(c.pop())
	high := uint16(c.pop())
	return (high << 8) | low
}

func (c *CPU) setZN(v uint8) {
	c.Z = v == 0
	c.N = v&nFlagMask != 0
}

// StatusByte packs the flags into the 6502 status register layout.
func (c *CPU) StatusByte() uint8 {
	var s uint8
	if c.N {
		s |= nFlagMask
	}
	if c.V {
		s |= vFlagMask
	}
	s |= unusedMask
	if c.B {
		s |= bFlagMask
	}
	if c.D {
		s |= dFlagMask
	}
	if c.I {
		s |= iFlagMask
	}
	if c.Z {
		s |= zFlagMask
	}
	if c.C {
		s |= cFlagMask
	}
	return s
}

// SetStatusByte unpacks the status register layout into the flags.
func (c *CPU) SetStatusByte(s uint8) {
	c.N = s&nFlagMask != 0
	c.V = s&vFlagMask != 0
	c.B = s&bFlagMask != 0
	c.D = s&dFlagMask != 0
	c.I = s&iFlagMask != 0
	c.Z = s&zFlagMask != 0
	c.C = s&cFlagMask != 0
}

// serviceInterrupt pushes PC and status (B cleared, unused set, as a
// hardware-triggered push always does) and loads PC from vector.
func (c *CPU) serviceInterrupt(vector uint16) {
	c.pushWord(c.PC)
	status := c.StatusByte()&^uint8(bFlagMask) | unusedMask
	c.push(status)
	c.I = true
	low := uint16(c.bus.Read(vector))
	high := uint16(c.bus.Read(vector + 1))
	c.PC = (high << 8) | low
}
