package emu

// HardwareMode selects which LR35902 variant the Bus/CPU emulate.
type HardwareMode int

const (
	// HardwareAuto picks DMG or CGB from the cartridge's CGB flag at LoadROM time.
	HardwareAuto HardwareMode = iota
	HardwareDMG
	HardwareCGB
)

// Palette selects the DMG shade ramp applied to monochrome games. Ignored
// in CGB mode, where the cartridge's own palette data is used instead.
type Palette int

const (
	PaletteGrayscale Palette = iota
	PaletteGreen
	PalettePocket
	PalettePocketInverted
	PalettePokemonRed
	PalettePokemonBlue
)

// Config contains settings that affect emulation behavior, mirroring §6's
// new_emulator(rom_bytes, opts) contract. Presentation-only settings
// (window scale, key bindings) stay in ui.Config, not here.
type Config struct {
	HardwareMode HardwareMode
	Palette      Palette
	BootROM      []byte // optional; if empty, ResetNoBoot drives post-boot state directly
	SaveRAM      []byte // optional battery RAM to preload for battery-backed cartridges

	Trace        bool // log a diagnostic line when a ROM is loaded
	LimitFPS     bool // throttle to ~60 Hz (useful for headless test mode)
	UseFetcherBG bool // render BG via fetcher/FIFO scanline path
}

// Defaults fills the zero-value Config with the values New already assumes,
// in the style of ui.Config.Defaults.
func (c *Config) Defaults() {
	// HardwareAuto and PaletteGrayscale are already the zero values; nothing
	// to fill in beyond what the zero Config already means.
}
