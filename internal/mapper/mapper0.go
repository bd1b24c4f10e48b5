package mapper

// mapper0 implements NROM (mapper 0): fixed PRG-ROM (16KB mirrored to
// fill 32KB, or 32KB direct), fixed CHR-ROM/RAM, no bank registers.
// Grounded on andrewthecodertx-go-nes-emulator/pkg/cartridge/mapper0.go
// and the teacher's internal/cartridge/mapper000.go.
type mapper0 struct{}

func (v *mapper0) reset(m *Mapper) {
	n := m.prgBanks8K()
	for slot := 0; slot < prgWindows; slot++ {
		if n <= 2 {
			// 16KB ROM: mirror bank 0 across both halves.
			m.setPRGWindow8K(slot, slot%n)
		} else {
			m.setPRGWindow8K(slot, slot)
		}
	}
	for slot := 0; slot < chrWindows; slot++ {
		m.setCHRWindow1K(slot, slot)
	}
}

func (v *mapper0) writePRG(m *Mapper, addr uint16, value uint8) {
	// NROM has no bank registers; writes to ROM space are ignored.
}

func (v *mapper0) scanline(m *Mapper) {}
