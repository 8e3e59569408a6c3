package cart

import "testing"

func TestLoadCartridge_PicksMBCByType(t *testing.T) {
	rom := buildROM("MBC5GAME", 0x19, 0x05, 0x03, 1024*1024) // MBC5, 1MiB, 32KiB RAM
	c, err := LoadCartridge(rom)
	if err != nil {
		t.Fatalf("LoadCartridge error: %v", err)
	}
	if _, ok := c.(*MBC5); !ok {
		t.Fatalf("got %T, want *MBC5", c)
	}
}

func TestLoadCartridge_RejectsBadChecksum(t *testing.T) {
	rom := buildROM("BROKEN", 0x00, 0x00, 0x00, 32*1024)
	rom[0x0134] ^= 0xFF // corrupt title without fixing the header checksum
	_, err := LoadCartridge(rom)
	if err == nil {
		t.Fatalf("expected error for bad header checksum, got nil")
	}
	if _, ok := err.(*InvalidCartridgeError); !ok {
		t.Fatalf("got error type %T, want *InvalidCartridgeError", err)
	}
}

func TestLoadCartridge_RejectsShortROM(t *testing.T) {
	short := make([]byte, 0x80)
	if _, err := LoadCartridge(short); err == nil {
		t.Fatalf("expected error for undersized ROM, got nil")
	}
}

func TestNewCartridge_FallsBackToROMOnlyForUnknownType(t *testing.T) {
	rom := buildROM("WEIRD", 0xFE, 0x00, 0x00, 32*1024) // unassigned cart type
	c := NewCartridge(rom)
	if _, ok := c.(*ROMOnly); !ok {
		t.Fatalf("got %T, want *ROMOnly fallback", c)
	}
}
