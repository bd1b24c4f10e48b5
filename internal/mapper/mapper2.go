package mapper

// mapper2 implements UxROM (mapper 2): a writable 4-bit PRG-low bank
// register selecting the 16KB window at 0x8000, with the last bank
// fixed at 0xC000 and CHR backed by fixed 8KB RAM. Grounded on
// andrewthecodertx-go-nes-emulator/pkg/cartridge/mapper2.go.
type mapper2 struct {
	prgBank uint8
}

func (v *mapper2) reset(m *Mapper) {
	v.prgBank = 0
	v.apply(m)
}

func (v *mapper2) apply(m *Mapper) {
	n16 := m.prgBanks8K() / 2
	if n16 == 0 {
		n16 = 1
	}
	bank := int(v.prgBank) % n16
	m.setPRGWindow8K(0, bank*2)
	m.setPRGWindow8K(1, bank*2+1)
	m.setPRGWindow8K(2, (n16-1)*2)
	m.setPRGWindow8K(3, (n16-1)*2+1)

	for i := 0; i < chrWindows; i++ {
		m.setCHRWindow1K(i, i)
	}
}

func (v *mapper2) writePRG(m *Mapper, addr uint16, value uint8) {
	if addr < 0x8000 {
		return
	}
	v.prgBank = value & 0x0F
	v.apply(m)
}

func (v *mapper2) scanline(m *Mapper) {}
