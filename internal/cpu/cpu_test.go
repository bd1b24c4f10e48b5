package cpu

import "testing"

// fakeBus is a flat 64KB address space for isolated CPU testing.
type fakeBus struct {
	mem [65536]uint8
}

func (b *fakeBus) Read(addr uint16) uint8       { return b.mem[addr] }
func (b *fakeBus) Write(addr uint16, v uint8)   { b.mem[addr] = v }
func (b *fakeBus) setResetVector(addr uint16)   { b.mem[0xFFFC] = uint8(addr); b.mem[0xFFFD] = uint8(addr >> 8) }
func (b *fakeBus) load(addr uint16, bytes ...uint8) {
	for i, v := range bytes {
		b.mem[int(addr)+i] = v
	}
}

func newTestCPU() (*CPU, *fakeBus) {
	bus := &fakeBus{}
	bus.setResetVector(0x8000)
	c := New(bus)
	c.Reset()
	return c, bus
}

// runInstruction ticks the CPU until pendingCycles drains back to zero
// after fetching the next opcode, i.e. exactly one instruction.
func runInstruction(c *CPU) {
	c.Tick() // cycle 0: fetch+execute
	for c.pendingCycles > 0 {
		c.Tick()
	}
}

func TestResetLoadsVectorAndPowerUpState(t *testing.T) {
	bus := &fakeBus{}
	bus.setResetVector(0xC000)
	c := New(bus)
	c.Reset()
	if c.PC != 0xC000 {
		t.Fatalf("PC = %04X, want C000", c.PC)
	}
	if !c.I {
		t.Fatalf("I flag should be set after reset")
	}
	if c.SP != 0xFD {
		t.Fatalf("SP = %02X, want FD", c.SP)
	}
}

func TestLDAImmediateSetsFlags(t *testing.T) {
	c, bus := newTestCPU()
	bus.load(0x8000, 0xA9, 0x00) // LDA #$00
	runInstruction(c)
	if c.A != 0 || !c.Z || c.N {
		t.Fatalf("A=%02X Z=%v N=%v, want 0/true/false", c.A, c.Z, c.N)
	}

	c.PC = 0x8000
	bus.load(0x8000, 0xA9, 0x80) // LDA #$80
	runInstruction(c)
	if c.A != 0x80 || c.Z || !c.N {
		t.Fatalf("A=%02X Z=%v N=%v, want 80/false/true", c.A, c.Z, c.N)
	}
}

func TestIndirectJMPPageWrapBug(t *testing.T) {
	c, bus := newTestCPU()
	bus.load(0x8000, 0x6C, 0xFF, 0x02) // JMP ($02FF)
	bus.mem[0x02FF] = 0x34
	bus.mem[0x0200] = 0x12 // high byte wrongly read from 0x0200, not 0x0300
	bus.mem[0x0300] = 0xFF
	runInstruction(c)
	if c.PC != 0x1234 {
		t.Fatalf("PC = %04X, want 1234 (page-wrap bug)", c.PC)
	}
}

func TestAbsoluteXPageCrossExtraCycle(t *testing.T) {
	c, bus := newTestCPU()
	c.X = 0xFF
	bus.load(0x8000, 0xBD, 0x01, 0x00) // LDA $0001,X -> crosses into page 1
	bus.mem[0x0100] = 0x42
	c.Tick()
	if c.pendingCycles != 4 { // base 4 + 1 page-cross, minus the cycle just spent
		t.Fatalf("pendingCycles after page-cross LDA = %d, want 4", c.pendingCycles)
	}
}

func TestJSRRTSRoundTrip(t *testing.T) {
	c, bus := newTestCPU()
	bus.load(0x8000, 0x20, 0x00, 0x90) // JSR $9000
	bus.load(0x9000, 0x60)             // RTS
	runInstruction(c)
	if c.PC != 0x9000 {
		t.Fatalf("PC after JSR = %04X, want 9000", c.PC)
	}
	runInstruction(c)
	if c.PC != 0x8003 {
		t.Fatalf("PC after RTS = %04X, want 8003", c.PC)
	}
}

func TestBRKPushesStatusWithBSetAndDisablesIRQ(t *testing.T) {
	c, bus := newTestCPU()
	bus.mem[0xFFFE] = 0x00
	bus.mem[0xFFFF] = 0x91
	bus.load(0x8000, 0x00) // BRK
	runInstruction(c)

	if c.PC != 0x9100 {
		t.Fatalf("PC after BRK = %04X, want 9100", c.PC)
	}
	if !c.I {
		t.Fatalf("I flag should be set after BRK")
	}
	status := bus.mem[0x01FB] // PCH at $01FD, PCL at $01FC, status at $01FB
	if status&bFlagMask == 0 {
		t.Fatalf("status pushed by BRK must have B set, got %02X", status)
	}
}

// TestNMIPushesStatusWithBClear exercises the hardware-interrupt push:
// B must be clear (unlike BRK/PHP), unused bit always set.
func TestNMIPushesStatusWithBClear(t *testing.T) {
	c, bus := newTestCPU()
	bus.mem[0xFFFA] = 0x00
	bus.mem[0xFFFB] = 0x80
	bus.load(0x8000, 0xEA) // NOP, so an instruction boundary exists
	runInstruction(c)

	c.SetNMI(true)
	c.SetNMI(false) // falling edge schedules NMI
	c.Tick()         // services the NMI on this boundary

	if c.PC != 0x8000 {
		t.Fatalf("PC after NMI = %04X, want 8000", c.PC)
	}
	sp := c.SP
	status := bus.mem[0x0100+int(sp)+1]
	if status&bFlagMask != 0 {
		t.Fatalf("NMI-pushed status must have B clear, got %02X", status)
	}
	if status&unusedMask == 0 {
		t.Fatalf("NMI-pushed status must have unused bit set, got %02X", status)
	}
	if !c.I {
		t.Fatalf("I flag should be set after servicing NMI")
	}
}

func TestIRQMaskedByIFlag(t *testing.T) {
	c, bus := newTestCPU()
	bus.load(0x8000, 0x78, 0xEA) // SEI, NOP
	runInstruction(c)            // SEI: I=true
	c.SetIRQ(true)
	runInstruction(c) // NOP: IRQ must stay pending, not serviced
	if c.PC != 0x8002 {
		t.Fatalf("PC = %04X, want 8002 (IRQ must be masked by I)", c.PC)
	}
}

func TestBranchNotTakenCostsNoExtraCycle(t *testing.T) {
	c, bus := newTestCPU()
	c.Z = false
	bus.load(0x8000, 0xF0, 0x10) // BEQ +16, not taken since Z=false
	c.Tick()
	if c.pendingCycles != 1 {
		t.Fatalf("pendingCycles = %d, want 1 (base 2 cycles, not taken)", c.pendingCycles)
	}
}

// jumpOpcodes redirect PC somewhere other than startPC+bytes and so are
// excluded from TestOpcodeTableByteAndCycleCoverage's straight-line PC
// check. Branches are not in this set: the test forces every branch's
// flag condition to "not taken" below, so they fall through like any
// other instruction and get the full PC+cycle check.
var jumpOpcodes = map[uint8]bool{
	0x00: true, // BRK
	0x20: true, // JSR
	0x40: true, // RTI
	0x4C: true, // JMP absolute
	0x60: true, // RTS
	0x6C: true, // JMP indirect
}

// forceBranchNotTaken sets the one flag each branch opcode tests so
// that, from the reset power-up flag state, the branch falls through
// instead of jumping — letting it join the generic byte/cycle check.
func forceBranchNotTaken(c *CPU, op uint8) {
	switch op {
	case 0x90: // BCC: branches if C=0
		c.C = true
	case 0xB0: // BCS: branches if C=1
		c.C = false
	case 0xD0: // BNE: branches if Z=0
		c.Z = true
	case 0xF0: // BEQ: branches if Z=1
		c.Z = false
	case 0x10: // BPL: branches if N=0
		c.N = true
	case 0x30: // BMI: branches if N=1
		c.N = false
	case 0x50: // BVC: branches if V=0
		c.V = true
	case 0x70: // BVS: branches if V=1
		c.V = false
	}
}

// TestOpcodeTableByteAndCycleCoverage runs every one of the 256 opcode
// bytes once and checks PC advanced by the table's declared byte length
// and the instruction spent exactly its declared base cycle count, with
// no page-crossing and every branch forced not-taken. This is the sense
// in which the official/unofficial split is "covered": every byte must
// decode to a real, correctly-sized, correctly-timed instruction (the
// unofficial kitchen-sink opcodes are only required to behave as
// well-formed NOPs of the right shape, not to reproduce their combined
// side effects).
func TestOpcodeTableByteAndCycleCoverage(t *testing.T) {
	for op := 0; op < 256; op++ {
		op := uint8(op)
		in := opcodes[op]
		if in.bytes == 0 {
			t.Fatalf("opcode 0x%02X has no table entry (bytes=0)", op)
		}

		c, bus := newTestCPU()
		forceBranchNotTaken(c, op)
		// Zero-fill the operand bytes so indexed/indirect modes don't
		// wander onto a page boundary and pick up a spurious cycle.
		for i := uint8(0); i < in.bytes; i++ {
			bus.mem[0x8000+uint16(i)] = 0
		}
		bus.mem[0x8000] = op
		startPC := c.PC

		c.Tick() // fetch + execute
		spent := 1
		for c.pendingCycles > 0 {
			c.Tick()
			spent++
		}

		if !jumpOpcodes[op] {
			if wantPC := startPC + uint16(in.bytes); c.PC != wantPC {
				t.Errorf("opcode 0x%02X (%s): PC = %04X, want %04X (bytes=%d)", op, in.name, c.PC, wantPC, in.bytes)
			}
		}
		if spent != int(in.cycles) {
			t.Errorf("opcode 0x%02X (%s): spent %d cycles, want %d", op, in.name, spent, in.cycles)
		}
	}
}

func TestUnofficialLAXLoadsBothAAndX(t *testing.T) {
	c, bus := newTestCPU()
	bus.load(0x8000, 0xA7, 0x10) // LAX $10
	bus.mem[0x0010] = 0x55
	runInstruction(c)
	if c.A != 0x55 || c.X != 0x55 {
		t.Fatalf("A=%02X X=%02X, want both 55", c.A, c.X)
	}
}
