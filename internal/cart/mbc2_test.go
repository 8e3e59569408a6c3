package cart

import "testing"

func TestMBC2_ROMBanking(t *testing.T) {
	rom := make([]byte, 256*1024)
	for bank := 0; bank < 16; bank++ {
		rom[bank*0x4000] = byte(bank)
	}
	m := NewMBC2(rom)

	if got := m.Read(0x0000); got != 0x00 {
		t.Fatalf("bank0 read got %02X want 00", got)
	}
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("default bank1 read got %02X want 01", got)
	}

	// Select bank 5 via bit8 of the address set.
	m.Write(0x0100, 0x05)
	if got := m.Read(0x4000); got != 0x05 {
		t.Fatalf("bank5 read got %02X want 05", got)
	}

	// Writing 0 maps to 1.
	m.Write(0x0100, 0x00)
	if got := m.Read(0x4000); got != 0x01 {
		t.Fatalf("bank0->1 remap failed: got %02X", got)
	}
}

func TestMBC2_BuiltinRAMIsFourBitAndAlwaysUnlockedOnce(t *testing.T) {
	rom := make([]byte, 256*1024)
	m := NewMBC2(rom)

	// RAM reads as 0xFF when not enabled.
	if got := m.Read(0xA000); got != 0xFF {
		t.Fatalf("RAM read before enable got %02X want FF", got)
	}

	m.Write(0x0000, 0x0A) // enable (bit8 of address clear)
	m.Write(0xA000, 0xF7) // only low nibble stored
	if got := m.Read(0xA000); got != 0xF7 {
		t.Fatalf("RAM nibble read got %02X want F7 (upper nibble forced to 1s)", got)
	}
	m.Write(0xA000, 0x03)
	if got := m.Read(0xA000); got != 0xF3 {
		t.Fatalf("RAM nibble read got %02X want F3", got)
	}

	// The 512-entry RAM mirrors across the A000-BFFF window.
	m.Write(0xA201, 0x0C)
	if got := m.Read(0xA001); got != 0xFC {
		t.Fatalf("mirrored RAM read got %02X want FC", got)
	}
}

func TestMBC2_SaveLoadRAMRoundTrip(t *testing.T) {
	rom := make([]byte, 256*1024)
	m := NewMBC2(rom)
	m.Write(0x0000, 0x0A)
	m.Write(0xA000, 0x0A)
	m.Write(0xA001, 0x0B)

	saved := m.SaveRAM()

	n := NewMBC2(rom)
	n.LoadRAM(saved)
	n.Write(0x0000, 0x0A)
	if got := n.Read(0xA000); got != 0xFA {
		t.Fatalf("restored RAM[0] got %02X want FA", got)
	}
	if got := n.Read(0xA001); got != 0xFB {
		t.Fatalf("restored RAM[1] got %02X want FB", got)
	}
}
