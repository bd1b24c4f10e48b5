// Package mapper implements cartridge bank-switching hardware: the
// dispatch layer that virtualises CPU/video bus addresses into
// cartridge-bank offsets, plus the seven supported mapper variants.
//
// Rather than the C source's per-mapper function-pointer table, each
// mapper is a small tagged variant selected at New by cartridge mapper
// ID; Mapper holds the shared bank-offset state and borrows the
// cartridge, and dispatch is a Go interface method call instead of a
// function pointer indirection.
package mapper

import (
	"nescore/internal/cartridge"
	"nescore/internal/neserr"
)

const (
	prgWindowSize = 0x2000 // 8KB PRG window
	chrWindowSize = 0x0400 // 1KB CHR window
	prgWindows    = 4      // covers 0x8000-0xFFFF
	chrWindows    = 8      // covers 0x0000-0x1FFF
)

// variant is the per-mapper-ID behaviour: resetting its bank registers
// to their power-up state, handling program-ROM-space writes (bank
// select protocols), and reacting to the video's scanline trigger
// (only MMC3 uses this for its A12 IRQ counter).
type variant interface {
	reset(m *Mapper)
	writePRG(m *Mapper, addr uint16, value uint8)
	scanline(m *Mapper)
}

// Mapper owns the cartridge, the mutable mirror-mode field the video
// core reads every access, and the byte-offset window tables every
// variant recomputes on bank-register writes. All offsets are byte
// offsets into Cart.PRGROM / Cart.CHR / Cart.PRGRAM.
type Mapper struct {
	Cart   *cartridge.Cartridge
	Mirror cartridge.MirrorMode
	ID     uint8

	prgRAMOffset int
	prgOffset    [prgWindows]int
	chrOffset    [chrWindows]int

	variant    variant
	irqPending bool
}

// New selects and initialises the mapper variant for the cartridge's
// declared mapper ID. Unknown IDs are a load-time failure.
func New(cart *cartridge.Cartridge) (*Mapper, error) {
	m := &Mapper{Cart: cart, Mirror: cart.Mirror, ID: cart.MapperID}

	switch cart.MapperID {
	case 0:
		m.variant = &mapper0{}
	case 1:
		m.variant = &mapper1{}
	case 2:
		m.variant = &mapper2{}
	case 3:
		m.variant = &mapper3{}
	case 4:
		m.variant = &mapper4{}
	case 30:
		m.variant = &mapper30{}
	case 66:
		m.variant = &mapper66{}
	default:
		return nil, neserr.New(neserr.KindUnsupportedMapper, "unsupported mapper id %d", cart.MapperID)
	}

	m.Reset()
	return m, nil
}

// Reset re-initialises the mapper's bank registers to power-up state.
func (m *Mapper) Reset() {
	m.irqPending = false
	m.prgRAMOffset = 0
	m.variant.reset(m)
}

// prgBanks8K / chrBanks1K are the cartridge's bank counts expressed in
// the window granularity the offset tables use.
func (m *Mapper) prgBanks8K() int { return len(m.Cart.PRGROM) / prgWindowSize }
func (m *Mapper) chrBanks1K() int { return len(m.Cart.CHR) / chrWindowSize }

// setPRGWindow8K maps logical 8KB PRG bank number `bank` (wrapped to the
// cartridge's actual bank count) into window `slot` (0-3).
func (m *Mapper) setPRGWindow8K(slot, bank int) {
	n := m.prgBanks8K()
	if n == 0 {
		m.prgOffset[slot] = 0
		return
	}
	bank = ((bank % n) + n) % n
	m.prgOffset[slot] = bank * prgWindowSize
}

// setCHRWindow1K maps logical 1KB CHR bank number `bank` into window
// `slot` (0-7).
func (m *Mapper) setCHRWindow1K(slot, bank int) {
	n := m.chrBanks1K()
	if n == 0 {
		m.chrOffset[slot] = 0
		return
	}
	bank = ((bank % n) + n) % n
	m.chrOffset[slot] = bank * chrWindowSize
}

// ReadRAM reads cartridge program RAM (processor-space 0x6000-0x7FFF).
func (m *Mapper) ReadRAM(addr uint16) uint8 {
	if len(m.Cart.PRGRAM) == 0 {
		return 0
	}
	offset := (m.prgRAMOffset + int(addr-0x6000)) % len(m.Cart.PRGRAM)
	return m.Cart.PRGRAM[offset]
}

// ramProtector is implemented by variants (MMC3) that can write-protect
// program RAM through a register bit ($A001 on MMC3); variants without one
// (the other six) always allow the write.
type ramProtector interface {
	ramWritable() bool
}

// WriteRAM writes cartridge program RAM, honouring a variant's write
// protection (MMC3's $A001 bit 6) when it implements one.
func (m *Mapper) WriteRAM(addr uint16, value uint8) {
	if len(m.Cart.PRGRAM) == 0 {
		return
	}
	if p, ok := m.variant.(ramProtector); ok && !p.ramWritable() {
		return
	}
	offset := (m.prgRAMOffset + int(addr-0x6000)) % len(m.Cart.PRGRAM)
	m.Cart.PRGRAM[offset] = value
}

// ReadROM reads cartridge program ROM (processor-space 0x8000-0xFFFF)
// through the current bank-window table.
func (m *Mapper) ReadROM(addr uint16) uint8 {
	rel := addr - 0x8000
	window := rel / prgWindowSize
	offset := m.prgOffset[window] + int(rel%prgWindowSize)
	if offset < 0 || offset >= len(m.Cart.PRGROM) {
		return 0
	}
	return m.Cart.PRGROM[offset]
}

// WriteROM handles writes to processor-space 0x8000-0xFFFF, which on
// real cartridges targets bank-select registers rather than memory.
func (m *Mapper) WriteROM(addr uint16, value uint8) {
	m.variant.writePRG(m, addr, value)
}

// ReadCHR reads cartridge character memory (video-space 0x0000-0x1FFF)
// through the current bank-window table.
func (m *Mapper) ReadCHR(addr uint16) uint8 {
	window := addr / chrWindowSize
	offset := m.chrOffset[window] + int(addr%chrWindowSize)
	if offset < 0 || offset >= len(m.Cart.CHR) {
		return 0
	}
	return m.Cart.CHR[offset]
}

// WriteCHR writes character memory when it is CHR-RAM; CHR-ROM writes
// are silently ignored.
func (m *Mapper) WriteCHR(addr uint16, value uint8) {
	if !m.Cart.HasCHRRAM {
		return
	}
	window := addr / chrWindowSize
	offset := m.chrOffset[window] + int(addr%chrWindowSize)
	if offset < 0 || offset >= len(m.Cart.CHR) {
		return
	}
	m.Cart.CHR[offset] = value
}

// Scanline is the video core's per-scanline A12 trigger (dot 260 of
// each visible scanline and of the pre-render line, rendering enabled):
// only MMC3 reacts to it.
func (m *Mapper) Scanline() {
	m.variant.scanline(m)
}

// IRQPending reports whether the mapper is asserting its IRQ line.
func (m *Mapper) IRQPending() bool { return m.irqPending }

// ClearIRQ acknowledges (clears) the mapper's IRQ line.
func (m *Mapper) ClearIRQ() { m.irqPending = false }
