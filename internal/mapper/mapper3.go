package mapper

// mapper3 implements CNROM (mapper 3): fixed PRG-ROM, a writable 2-bit
// CHR bank register selecting the 8KB window at 0x0000. Grounded on
// andrewthecodertx-go-nes-emulator/pkg/cartridge/mapper3.go.
type mapper3 struct {
	chrBank uint8
}

func (v *mapper3) reset(m *Mapper) {
	v.chrBank = 0
	v.apply(m)
}

func (v *mapper3) apply(m *Mapper) {
	n := m.prgBanks8K()
	for slot := 0; slot < prgWindows; slot++ {
		if n <= 2 {
			m.setPRGWindow8K(slot, slot%n)
		} else {
			m.setPRGWindow8K(slot, slot)
		}
	}

	n8k := m.chrBanks1K() / 8
	if n8k == 0 {
		n8k = 1
	}
	base := (int(v.chrBank) % n8k) * 8
	for i := 0; i < chrWindows; i++ {
		m.setCHRWindow1K(i, base+i)
	}
}

func (v *mapper3) writePRG(m *Mapper, addr uint16, value uint8) {
	if addr < 0x8000 {
		return
	}
	v.chrBank = value & 0x03
	v.apply(m)
}

func (v *mapper3) scanline(m *Mapper) {}
