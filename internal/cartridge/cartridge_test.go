package cartridge

import "testing"

func buildINES(prgBanks, chrBanks uint8, flags6, flags7, ramBanks uint8, trainer bool) []byte {
	header := make([]byte, headerSize)
	copy(header, []byte{'N', 'E', 'S', 0x1A})
	header[4] = prgBanks
	header[5] = chrBanks
	header[6] = flags6
	header[7] = flags7
	header[8] = ramBanks

	buf := append([]byte{}, header...)
	if trainer {
		buf = append(buf, make([]byte, trainerSize)...)
	}
	buf = append(buf, make([]byte, int(prgBanks)*prgBankSize)...)
	buf = append(buf, make([]byte, int(chrBanks)*chrBankSize)...)
	return buf
}

func TestLoadValidNROM(t *testing.T) {
	data := buildINES(2, 1, 0x01, 0x00, 0, false)
	cart, err := Load(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.MapperID != 0 {
		t.Fatalf("expected mapper 0, got %d", cart.MapperID)
	}
	if cart.Mirror != MirrorVertical {
		t.Fatalf("expected vertical mirror")
	}
	if len(cart.PRGROM) != 2*prgBankSize {
		t.Fatalf("expected %d PRG bytes, got %d", 2*prgBankSize, len(cart.PRGROM))
	}
	if cart.HasCHRRAM {
		t.Fatalf("CHR-ROM present, should not be CHR-RAM")
	}
	if len(cart.PRGRAM) != minPRGRAM {
		t.Fatalf("expected default 8KB PRG-RAM, got %d", len(cart.PRGRAM))
	}
}

func TestLoadCHRRAM(t *testing.T) {
	data := buildINES(1, 0, 0, 0, 0, false)
	cart, err := Load(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cart.HasCHRRAM {
		t.Fatalf("expected CHR-RAM when CHR bank count is zero")
	}
	if len(cart.CHR) != 32*1024 {
		t.Fatalf("expected 32KB CHR-RAM, got %d", len(cart.CHR))
	}
}

func TestLoadWithTrainer(t *testing.T) {
	data := buildINES(1, 1, 0x04, 0, 0, true)
	cart, err := Load(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.PRGROM) != prgBankSize {
		t.Fatalf("trainer bytes leaked into PRG-ROM")
	}
}

func TestLoadBadMagic(t *testing.T) {
	data := buildINES(1, 1, 0, 0, 0, false)
	data[0] = 'X'
	if _, err := Load(data); err == nil {
		t.Fatalf("expected error for bad magic")
	}
}

func TestLoadLengthMismatch(t *testing.T) {
	data := buildINES(1, 1, 0, 0, 0, false)
	data = data[:len(data)-1]
	if _, err := Load(data); err == nil {
		t.Fatalf("expected error for length mismatch")
	}
}

func TestLoadRejectsVSUnisystem(t *testing.T) {
	data := buildINES(1, 0, 0, 0x01, 0, false)
	if _, err := Load(data); err == nil {
		t.Fatalf("expected error for VS-Unisystem flag")
	}
}

func TestLoadRejectsVersion2(t *testing.T) {
	data := buildINES(1, 0, 0, 0x08, 0, false)
	if _, err := Load(data); err == nil {
		t.Fatalf("expected error for unsupported iNES version")
	}
}

func TestLoadMapperIDFromBothNibbles(t *testing.T) {
	data := buildINES(1, 0, 0x10, 0x40, 0, false) // mapper low nibble 1, high nibble 4 -> 0x41
	cart, err := Load(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.MapperID != 0x41 {
		t.Fatalf("expected mapper 0x41, got 0x%02X", cart.MapperID)
	}
}

func TestLoadFourScreenMirror(t *testing.T) {
	data := buildINES(1, 0, 0x08, 0, 0, false)
	cart, err := Load(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.Mirror != MirrorFourScreen {
		t.Fatalf("expected four-screen mirror")
	}
}
