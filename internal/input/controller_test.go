package input

import "testing"

func TestResetSuppressesReadsUntilStrobe(t *testing.T) {
	in := New()
	if got := in.Read(0x4016); got&0x01 == 0 {
		t.Fatalf("read after reset = %02X, want bit0 set (position past end)", got)
	}
}

func TestStrobeFallingEdgeLoadsButtonsAndRewindsPosition(t *testing.T) {
	in := New()
	pressed := map[Button]bool{ButtonA: true, ButtonUp: true}
	in.GetButton = func(controller int, b Button) bool {
		if controller != 0 {
			return false
		}
		return pressed[b]
	}

	in.Write(0x4016, 1) // strobe high
	in.Write(0x4016, 0) // falling edge: latch + rewind to ButtonA

	for i, want := range []bool{true, false, false, false, true, false, false, false} {
		got := in.Read(0x4016)
		if (got&0x01 != 0) != want {
			t.Fatalf("button %d = %v, want %v", i, got&0x01 != 0, want)
		}
	}

	// past the 8th button, reads return the idle pattern (bit0 set)
	if got := in.Read(0x4016); got&0x01 == 0 {
		t.Fatalf("9th read = %02X, want bit0 set", got)
	}
}

func TestBothPortsAlwaysReportBit6(t *testing.T) {
	in := New()
	if in.Read(0x4016)&0x40 == 0 {
		t.Fatalf("controller1 read should have bit6 set")
	}
	if in.Read(0x4017)&0x40 == 0 {
		t.Fatalf("controller2 read should have bit6 set")
	}
}

func TestControllersAreIndependent(t *testing.T) {
	in := New()
	in.GetButton = func(controller int, b Button) bool {
		return controller == 1 && b == ButtonB
	}
	in.Write(0x4016, 1)
	in.Write(0x4016, 0)

	if in.Read(0x4016)&0x01 != 0 {
		t.Fatalf("controller1 ButtonA should read unpressed")
	}
	in.Read(0x4017) // ButtonA on pad 2, unpressed
	if in.Read(0x4017)&0x01 == 0 {
		t.Fatalf("controller2 ButtonB should read pressed")
	}
}
