package mapper

import (
	"testing"

	"nescore/internal/cartridge"
)

// fakeCart builds a Cartridge directly (bypassing iNES parsing). PRG-ROM
// is filled in 8KB chunks (the mapper core's PRG window granularity) and
// CHR in 1KB chunks (its CHR window granularity), each chunk's bytes set
// to the chunk's own index, so a read through a bank window always
// yields that window's bank number directly.
func fakeCart(mapperID uint8, prgBanks16K, chrBanks8K int, chrRAM bool) *cartridge.Cartridge {
	prg := make([]uint8, prgBanks16K*16384)
	for chunk := 0; chunk*8192 < len(prg); chunk++ {
		for i := 0; i < 8192; i++ {
			prg[chunk*8192+i] = uint8(chunk)
		}
	}

	var chr []uint8
	if chrRAM {
		chr = make([]uint8, 8192)
	} else {
		chr = make([]uint8, chrBanks8K*8192)
		for chunk := 0; chunk*1024 < len(chr); chunk++ {
			for i := 0; i < 1024; i++ {
				chr[chunk*1024+i] = uint8(chunk)
			}
		}
	}

	return &cartridge.Cartridge{
		PRGROM:      prg,
		CHR:         chr,
		PRGRAM:      make([]uint8, 8192),
		MapperID:    mapperID,
		HasCHRRAM:   chrRAM,
		PRGBanks16K: uint8(prgBanks16K),
		CHRBanks8K:  uint8(chrBanks8K),
	}
}

func TestMapper0NROM(t *testing.T) {
	m, err := New(fakeCart(0, 2, 1, false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := m.ReadROM(0x8000); got != 0 {
		t.Fatalf("bank0 first byte = %d, want 0", got)
	}
	if got := m.ReadROM(0xC000); got != 2 {
		t.Fatalf("bank1 first byte = %d, want 2", got)
	}
	// writes to ROM space are no-ops
	m.WriteROM(0x8000, 0xFF)
	if got := m.ReadROM(0x8000); got != 0 {
		t.Fatalf("NROM write mutated ROM: got %d", got)
	}
}

func TestMapper0NROMMirrored16K(t *testing.T) {
	m, _ := New(fakeCart(0, 1, 1, false))
	if got := m.ReadROM(0x8000); got != 0 {
		t.Fatalf("bank0 = %d, want 0", got)
	}
	if got := m.ReadROM(0xC000); got != 0 {
		t.Fatalf("mirrored bank at 0xC000 = %d, want 0", got)
	}
}

// TestMapper1MMC1 exercises spec's concrete scenario 5: five single-bit
// writes select PRG mode 3 / CHR mode 1, then the next write switches
// the bank; a write with bit 7 set resets the shift register mid-sequence.
func TestMapper1MMC1(t *testing.T) {
	m, err := New(fakeCart(1, 4, 2, false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	writeSerial := func(addr uint16, value uint8) {
		for i := 0; i < 5; i++ {
			bit := (value >> i) & 1
			m.WriteROM(addr, bit)
		}
	}

	// Control register: PRG mode 3 (0x0C | mirror bits), CHR mode 1 (bit4).
	writeSerial(0x8000, 0x1C)
	// Select CHR bank 0 = 1 (4KB mode).
	writeSerial(0xA000, 0x01)
	// Select PRG bank = 1.
	writeSerial(0xE000, 0x01)

	if got := m.ReadROM(0x8000); got != 2 {
		t.Fatalf("switchable 0x8000 window = %d, want bank 2", got)
	}
	if got := m.ReadROM(0xC000); got != 6 {
		t.Fatalf("fixed last bank at 0xC000 = %d, want bank 6 (last)", got)
	}
	if got := m.ReadCHR(0x0000); got != 4 {
		t.Fatalf("CHR bank0 = %d, want 4", got)
	}

	// A bit-7-set write resets the shift register regardless of sequence
	// position and forces control to PRG-mode-3 again.
	m.WriteROM(0x8000, 0x80)
	if got := m.ReadROM(0xC000); got != 6 {
		t.Fatalf("after reset, fixed last bank at 0xC000 = %d, want bank 6", got)
	}
}

func TestMapper2UxROM(t *testing.T) {
	m, _ := New(fakeCart(2, 4, 1, true))
	if got := m.ReadROM(0xC000); got != 6 {
		t.Fatalf("fixed last bank at 0xC000 = %d, want bank 6", got)
	}
	m.WriteROM(0x8000, 2)
	if got := m.ReadROM(0x8000); got != 4 {
		t.Fatalf("switchable bank at 0x8000 = %d, want bank 4", got)
	}
	if got := m.ReadROM(0xC000); got != 6 {
		t.Fatalf("fixed bank at 0xC000 changed after switch: got %d", got)
	}
}

func TestMapper3CNROM(t *testing.T) {
	m, _ := New(fakeCart(3, 2, 4, false))
	m.WriteROM(0x8000, 2)
	if got := m.ReadCHR(0x0000); got != 16 {
		t.Fatalf("CHR bank = %d, want 16", got)
	}
	if got := m.ReadROM(0x8000); got != 0 {
		t.Fatalf("CNROM PRG must stay fixed: got %d", got)
	}
}

// TestMapper4MMC3BankSelect covers the register-select/data-write
// protocol and the scanline-driven IRQ counter.
func TestMapper4MMC3BankSelect(t *testing.T) {
	m, err := New(fakeCart(4, 8, 8, false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Bank-select: target R6 (PRG, prg-mode 0).
	m.WriteROM(0x8000, 0x06)
	m.WriteROM(0x8001, 2)
	if got := m.ReadROM(0x8000); got != 2 {
		t.Fatalf("R6 window at 0x8000 = %d, want bank 2", got)
	}
	last := m.prgBanks8K() - 1
	if got := m.ReadROM(0xE000); got != uint8(last) {
		t.Fatalf("fixed last bank at 0xE000 = %d, want %d", got, last)
	}

	// IRQ: latch 4, reload on next trigger, then count down to zero.
	m.WriteROM(0xC000, 4)
	m.WriteROM(0xC001, 0) // clear counter, force reload on next trigger
	m.WriteROM(0xE001, 0) // enable IRQ

	for i := 0; i < 5; i++ {
		m.Scanline()
	}
	if !m.IRQPending() {
		t.Fatalf("expected MMC3 IRQ pending after counter reaches zero")
	}
	m.ClearIRQ()
	if m.IRQPending() {
		t.Fatalf("IRQ still pending after ClearIRQ")
	}
}

func TestMapper4MMC3Mirroring(t *testing.T) {
	m, _ := New(fakeCart(4, 8, 8, false))
	m.WriteROM(0xA000, 0) // even address, bit0=0 -> vertical
	if m.Mirror != cartridge.MirrorVertical {
		t.Fatalf("mirror = %v, want vertical", m.Mirror)
	}
	m.WriteROM(0xA000, 1) // bit0=1 -> horizontal
	if m.Mirror != cartridge.MirrorHorizontal {
		t.Fatalf("mirror = %v, want horizontal", m.Mirror)
	}
}

func TestMapper30OneScreenAndBanks(t *testing.T) {
	m, err := New(fakeCart(30, 4, 2, false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// program=1, character=1, one_screen=1: raw = 0b1_01_00001 = 0xA1
	m.WriteROM(0x8000, 0xA1)
	if got := m.ReadROM(0x8000); got != 2 {
		t.Fatalf("PRG bank = %d, want 2", got)
	}
	if got := m.ReadROM(0xC000); got != 6 {
		t.Fatalf("fixed last bank = %d, want 6", got)
	}
	if got := m.ReadCHR(0x0000); got != 8 {
		t.Fatalf("CHR base = %d, want 8 (bank 1 of 8KB = offset 8x1K)", got)
	}
	if m.Mirror != cartridge.MirrorSingleScreenHigh {
		t.Fatalf("mirror = %v, want single-screen-high", m.Mirror)
	}

	m.WriteROM(0x8000, 0x21) // one_screen=0, character=1, program=1
	if m.Mirror != cartridge.MirrorSingleScreenLow {
		t.Fatalf("mirror = %v, want single-screen-low", m.Mirror)
	}
}

func TestMapper66GxROM(t *testing.T) {
	m, err := New(fakeCart(66, 8, 4, false))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// character=2, program=1: raw = (1<<4) | 2 = 0x12
	m.WriteROM(0x8000, 0x12)
	if got := m.ReadROM(0x8000); got != 4 {
		t.Fatalf("PRG window base = %d, want bank 4 (32KB bank 1 * 4)", got)
	}
	if got := m.ReadROM(0xFFFF); got != 7 {
		t.Fatalf("PRG window top = %d, want bank 7", got)
	}
	if got := m.ReadCHR(0x0000); got != 16 {
		t.Fatalf("CHR base = %d, want 16 (8KB bank 2 * 8)", got)
	}
}

func TestUnsupportedMapperID(t *testing.T) {
	_, err := New(fakeCart(99, 2, 1, false))
	if err == nil {
		t.Fatalf("expected error for unsupported mapper id")
	}
}
