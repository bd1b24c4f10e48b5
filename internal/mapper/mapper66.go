package mapper

// mapper66 implements GxROM (mapper 66): a single bank register packing
// a 2-bit CHR bank and a 2-bit PRG bank, written by any store to
// 0x8000-0xFFFF, switching a full 32KB PRG window and 8KB CHR window at
// once. Grounded on original_source/include/system/mapper/NESL_mapper_66.h's
// nesl_mapper_66_bank_t bitfield (character:2, unused:2, program:2) and
// the single-register whole-bank switch shape in
// andrewthecodertx-go-nes-emulator/pkg/cartridge/mapper7.go (AxROM).
type mapper66 struct {
	bank uint8
}

func (v *mapper66) character() uint8 { return v.bank & 0x03 }
func (v *mapper66) program() uint8   { return (v.bank >> 4) & 0x03 }

func (v *mapper66) reset(m *Mapper) {
	v.bank = 0
	v.apply(m)
}

func (v *mapper66) apply(m *Mapper) {
	n32 := m.prgBanks8K() / 4
	if n32 == 0 {
		n32 = 1
	}
	bank := int(v.program()) % n32
	for i := 0; i < prgWindows; i++ {
		m.setPRGWindow8K(i, bank*4+i)
	}

	n8k := m.chrBanks1K() / 8
	if n8k == 0 {
		n8k = 1
	}
	base := (int(v.character()) % n8k) * 8
	for i := 0; i < chrWindows; i++ {
		m.setCHRWindow1K(i, base+i)
	}
}

func (v *mapper66) writePRG(m *Mapper, addr uint16, value uint8) {
	if addr < 0x8000 {
		return
	}
	v.bank = value
	v.apply(m)
}

func (v *mapper66) scanline(m *Mapper) {}
