package cart

// Cartridge defines the minimal interface the Bus needs for ROM/RAM banking.
// Implementations can be ROM-only or MBC variants. Addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000–0x7FFF) and external RAM (0xA000–0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000–0x7FFF) and external RAM writes (0xA000–0xBFFF).
	Write(addr uint16, value byte)
	// SaveState/LoadState serialize internal banking registers and external RAM for save states.
	SaveState() []byte
	LoadState(data []byte)
}

// BatteryBacked is an optional interface for cartridges with external RAM to be persisted.
// Implementations should return a copy of RAM bytes (may be empty if no RAM), and accept data to load.
type BatteryBacked interface {
	SaveRAM() []byte
	LoadRAM(data []byte)
}

// NewCartridge picks an implementation based on the ROM header, falling
// back to ROM-only for anything it can't parse or recognize. Used where a
// best-effort cartridge is acceptable (tests, the DMG/CGB Bus convenience
// constructors); hosts that need to surface bad ROMs to a user should call
// LoadCartridge instead.
func NewCartridge(rom []byte) Cartridge {
	c, _ := buildCartridge(rom)
	return c
}

// InvalidCartridgeError reports a ROM that failed header or checksum
// validation, or names an MBC type this emulator doesn't implement.
type InvalidCartridgeError struct {
	Reason string
}

func (e *InvalidCartridgeError) Error() string { return "invalid cartridge: " + e.Reason }

// LoadCartridge validates the ROM header and checksum before constructing
// a cartridge, returning InvalidCartridgeError rather than silently
// degrading to ROM-only the way NewCartridge does.
func LoadCartridge(rom []byte) (Cartridge, error) {
	h, err := ParseHeader(rom)
	if err != nil {
		return nil, &InvalidCartridgeError{Reason: err.Error()}
	}
	if !HeaderChecksumOK(rom) {
		return nil, &InvalidCartridgeError{Reason: "header checksum mismatch"}
	}
	c, ok := cartridgeForType(rom, h)
	if !ok {
		return nil, &InvalidCartridgeError{Reason: "unsupported cartridge type"}
	}
	return c, nil
}

func buildCartridge(rom []byte) (Cartridge, bool) {
	h, err := ParseHeader(rom)
	if err != nil {
		return NewROMOnly(rom), false
	}
	return cartridgeForType(rom, h)
}

func cartridgeForType(rom []byte, h *Header) (Cartridge, bool) {
	switch h.CartType {
	case 0x00:
		return NewROMOnly(rom), true
	case 0x01, 0x02, 0x03: // MBC1 variants (RAM, RAM+BAT are transparent here)
		return NewMBC1(rom, h.RAMSizeBytes), true
	case 0x05, 0x06: // MBC2, MBC2+BATTERY
		return NewMBC2(rom), true
	case 0x0F, 0x10, 0x11, 0x12, 0x13: // MBC3 variants; 0x0F/0x10 carry the RTC
		return NewMBC3(rom, h.RAMSizeBytes), true
	case 0x19, 0x1A, 0x1B, 0x1C, 0x1D, 0x1E: // MBC5 variants
		return NewMBC5(rom, h.RAMSizeBytes), true
	default:
		// Fallback to ROM-only for unknown types to allow some homebrew/tests to run
		return NewROMOnly(rom), false
	}
}
