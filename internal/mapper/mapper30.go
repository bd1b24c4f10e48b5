package mapper

import "nescore/internal/cartridge"

// mapper30 implements UNROM-512 (mapper 30): a single bank register
// packing a 5-bit PRG bank, a 2-bit CHR bank, and a 1-bit one-screen
// mirroring override, written by any store to 0x8000-0xFFFF. Grounded
// on original_source/include/system/mapper/NESL_mapper_30.h's
// nesl_mapper_30_bank_t bitfield (program:5, character:2, one_screen:1)
// and the UxROM bank-switch shape in
// andrewthecodertx-go-nes-emulator/pkg/cartridge/mapper2.go.
type mapper30 struct {
	bank uint8
}

func (v *mapper30) program() uint8   { return v.bank & 0x1F }
func (v *mapper30) character() uint8 { return (v.bank >> 5) & 0x03 }
func (v *mapper30) oneScreen() bool  { return v.bank&0x80 != 0 }

func (v *mapper30) reset(m *Mapper) {
	v.bank = 0
	v.apply(m)
}

func (v *mapper30) apply(m *Mapper) {
	n16 := m.prgBanks8K() / 2
	if n16 == 0 {
		n16 = 1
	}
	bank := int(v.program()) % n16
	m.setPRGWindow8K(0, bank*2)
	m.setPRGWindow8K(1, bank*2+1)
	m.setPRGWindow8K(2, (n16-1)*2)
	m.setPRGWindow8K(3, (n16-1)*2+1)

	n8k := m.chrBanks1K() / 8
	if n8k == 0 {
		n8k = 1
	}
	base := (int(v.character()) % n8k) * 8
	for i := 0; i < chrWindows; i++ {
		m.setCHRWindow1K(i, base+i)
	}

	if v.oneScreen() {
		m.Mirror = cartridge.MirrorSingleScreenHigh
	} else {
		m.Mirror = cartridge.MirrorSingleScreenLow
	}
}

func (v *mapper30) writePRG(m *Mapper, addr uint16, value uint8) {
	if addr < 0x8000 {
		return
	}
	v.bank = value
	v.apply(m)
}

func (v *mapper30) scanline(m *Mapper) {}
