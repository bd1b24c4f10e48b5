package mapper

import "nescore/internal/cartridge"

// mapper1 implements MMC1 (mapper 1): a 5-bit serial shift register
// feeding four control domains (control, CHR bank 0, CHR bank 1, PRG
// bank). Grounded on spec.md §4.4 "MMC1 write protocol" and
// andrewthecodertx-go-nes-emulator/pkg/cartridge/mapper1.go.
type mapper1 struct {
	shift      uint8
	shiftCount uint8

	control uint8 // mirror:2, prgMode:2, chrMode:1
	chrBank0 uint8
	chrBank1 uint8
	prgBank  uint8

	prgRAMEnabled bool
}

func (v *mapper1) reset(m *Mapper) {
	v.shift = 0
	v.shiftCount = 0
	v.control = 0x0C // power-on: PRG mode 3 (fix last bank at 0xC000)
	v.chrBank0 = 0
	v.chrBank1 = 0
	v.prgBank = 0
	v.prgRAMEnabled = true
	v.apply(m)
}

func (v *mapper1) mirror() cartridge.MirrorMode {
	switch v.control & 0x03 {
	case 0:
		return cartridge.MirrorSingleScreenLow
	case 1:
		return cartridge.MirrorSingleScreenHigh
	case 2:
		return cartridge.MirrorVertical
	default:
		return cartridge.MirrorHorizontal
	}
}

func (v *mapper1) prgMode() uint8 { return (v.control >> 2) & 0x03 }
func (v *mapper1) chrMode() uint8 { return (v.control >> 4) & 0x01 }

// apply recomputes the shared bank-offset tables from the current
// control/chr/prg registers, in 16KB PRG-window and 4KB CHR-window
// granularity (each expressed as two of the shared 8KB/1KB windows).
func (v *mapper1) apply(m *Mapper) {
	m.Mirror = v.mirror()

	prg16 := int(v.prgBank & 0x0F)
	n16 := m.prgBanks8K() / 2
	if n16 == 0 {
		n16 = 1
	}
	switch v.prgMode() {
	case 0, 1:
		// 32KB mode: ignore bit 0 of the bank number.
		bank32 := (prg16 &^ 1)
		m.setPRGWindow8K(0, bank32*2)
		m.setPRGWindow8K(1, bank32*2+1)
		m.setPRGWindow8K(2, bank32*2+2)
		m.setPRGWindow8K(3, bank32*2+3)
	case 2:
		// Fix first 16KB bank at 0x8000, switch 0xC000.
		m.setPRGWindow8K(0, 0)
		m.setPRGWindow8K(1, 1)
		m.setPRGWindow8K(2, prg16*2)
		m.setPRGWindow8K(3, prg16*2+1)
	case 3:
		// Switch 0x8000, fix last 16KB bank at 0xC000.
		m.setPRGWindow8K(0, prg16*2)
		m.setPRGWindow8K(1, prg16*2+1)
		m.setPRGWindow8K(2, (n16-1)*2)
		m.setPRGWindow8K(3, (n16-1)*2+1)
	}

	if v.chrMode() == 0 {
		// 8KB mode: chrBank0 (even bank forced) selects the whole window.
		base := int(v.chrBank0 &^ 1)
		for i := 0; i < chrWindows; i++ {
			m.setCHRWindow1K(i, base*4+i)
		}
	} else {
		// 4KB mode: chrBank0 covers 0x0000-0x0FFF, chrBank1 covers 0x1000-0x1FFF.
		for i := 0; i < 4; i++ {
			m.setCHRWindow1K(i, int(v.chrBank0)*4+i)
		}
		for i := 0; i < 4; i++ {
			m.setCHRWindow1K(4+i, int(v.chrBank1)*4+i)
		}
	}
}

func (v *mapper1) writePRG(m *Mapper, addr uint16, value uint8) {
	if addr&0x8000 == 0 {
		return
	}

	if value&0x80 != 0 {
		v.shift = 0
		v.shiftCount = 0
		v.control |= 0x0C
		v.apply(m)
		return
	}

	v.shift = (v.shift >> 1) | ((value & 1) << 4)
	v.shiftCount++
	if v.shiftCount < 5 {
		return
	}

	result := v.shift
	v.shift = 0
	v.shiftCount = 0

	switch {
	case addr < 0xA000:
		v.control = result & 0x1F
	case addr < 0xC000:
		v.chrBank0 = result & 0x1F
	case addr < 0xE000:
		v.chrBank1 = result & 0x1F
	default:
		v.prgBank = result & 0x0F
		v.prgRAMEnabled = result&0x10 == 0
	}
	v.apply(m)
}

func (v *mapper1) scanline(m *Mapper) {}
