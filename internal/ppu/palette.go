package ppu

// DMG shade ramps: 4 RGBA8888 colors, index 0 = lightest. Selected by the
// host via Machine/Config.Palette (spec §6 new_emulator opts.palette);
// CGB output ignores this and uses the cartridge's own palette RAM.
var (
	PaletteGrayscale = [4][4]byte{
		{0xFF, 0xFF, 0xFF, 0xFF},
		{0xAA, 0xAA, 0xAA, 0xFF},
		{0x55, 0x55, 0x55, 0xFF},
		{0x00, 0x00, 0x00, 0xFF},
	}
	PaletteGreen = [4][4]byte{
		{0xE0, 0xF8, 0xD0, 0xFF},
		{0x88, 0xC0, 0x70, 0xFF},
		{0x34, 0x68, 0x56, 0xFF},
		{0x08, 0x18, 0x20, 0xFF},
	}
	PalettePocket = [4][4]byte{
		{0xC4, 0xCF, 0xA1, 0xFF},
		{0x8B, 0x95, 0x6D, 0xFF},
		{0x4D, 0x53, 0x3C, 0xFF},
		{0x1F, 0x1F, 0x1F, 0xFF},
	}
	PalettePocketInverted = [4][4]byte{
		{0x1F, 0x1F, 0x1F, 0xFF},
		{0x4D, 0x53, 0x3C, 0xFF},
		{0x8B, 0x95, 0x6D, 0xFF},
		{0xC4, 0xCF, 0xA1, 0xFF},
	}
	PalettePokemonRed = [4][4]byte{
		{0xF8, 0xC8, 0x78, 0xFF},
		{0xD0, 0x88, 0x58, 0xFF},
		{0x98, 0x50, 0x48, 0xFF},
		{0x40, 0x28, 0x28, 0xFF},
	}
	PalettePokemonBlue = [4][4]byte{
		{0xD0, 0xE8, 0xF8, 0xFF},
		{0x88, 0xB0, 0xD8, 0xFF},
		{0x50, 0x68, 0xA8, 0xFF},
		{0x20, 0x28, 0x50, 0xFF},
	}
)

// SetDMGPalette installs the 4-shade ramp used to render DMG output.
func (p *PPU) SetDMGPalette(ramp [4][4]byte) { p.dmgRamp = ramp }

// DMGPalette returns the ramp currently installed by SetDMGPalette.
func (p *PPU) DMGPalette() [4][4]byte { return p.dmgRamp }

// dmgColor maps a 2-bit color index through a DMG palette register (BGP,
// OBP0, OBP1) into a 0..3 shade, then through the active ramp.
func (p *PPU) dmgColor(paletteReg byte, colorIdx byte) [4]byte {
	shade := (paletteReg >> (colorIdx * 2)) & 0x03
	return p.dmgRamp[shade]
}

// cgbColor decodes a 15-bit BGR555 color from the given 8-palette memory.
func cgbColor(mem *[64]byte, palette byte, colorIdx byte) [4]byte {
	off := int(palette&0x07)*8 + int(colorIdx&0x03)*2
	lo := mem[off]
	hi := mem[off+1]
	v := uint16(lo) | uint16(hi)<<8
	r := byte(v & 0x1F)
	g := byte((v >> 5) & 0x1F)
	b := byte((v >> 10) & 0x1F)
	// 5-bit to 8-bit: replicate top bits for a closer analog response.
	expand := func(c byte) byte { return (c << 3) | (c >> 2) }
	return [4]byte{expand(r), expand(g), expand(b), 0xFF}
}
