package ppu

// Sprite is a decoded OAM entry ready for line compositing: X/Y already
// adjusted for the hardware's +8/+16 OAM offset, Tile/Attr already resolved
// to the single 8-row tile that covers this scanline (8x16 mode folds the
// top/bottom half and any Y-flip into Y/Tile before compositing, so the
// low-level compositor only ever deals with 8x8 rows).
type Sprite struct {
	X, Y     int
	Tile     byte
	Attr     byte
	OAMIndex int
}

// ComposeSpriteLine draws up to len(sprites) sprites onto one scanline,
// returning the resulting color indices (0 = no sprite pixel). bgci is the
// background/window color index already resolved for this line, consulted
// for the OBJ-behind-BG priority bit. cgbMode switches the overlap
// tie-breaker from DMG's smallest-X-wins rule to CGB's OAM-index-only rule.
func ComposeSpriteLine(mem VRAMReader, sprites []Sprite, ly byte, bgci [160]byte, cgbMode bool) [160]byte {
	var out [160]byte
	var drawnFrom [160]int
	var drawnX [160]int
	for i := range drawnFrom {
		drawnFrom[i] = -1
	}

	for _, sp := range sprites {
		xFlip := sp.Attr&0x20 != 0
		yFlip := sp.Attr&0x40 != 0
		behindBG := sp.Attr&0x80 != 0

		row := int(ly) - sp.Y
		if row < 0 || row > 7 {
			continue
		}
		if yFlip {
			row = 7 - row
		}
		base := uint16(sp.Tile)*16 + uint16(row)*2
		lo := mem.Read(0x8000 + base)
		hi := mem.Read(0x8000 + base + 1)

		for px := 0; px < 8; px++ {
			sx := sp.X + px
			if sx < 0 || sx >= 160 {
				continue
			}
			bit := px
			if !xFlip {
				bit = 7 - px
			}
			ci := ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
			if ci == 0 {
				continue
			}
			if behindBG && bgci[sx] != 0 {
				continue
			}
			if drawnFrom[sx] != -1 {
				if cgbMode {
					if drawnFrom[sx] <= sp.OAMIndex {
						continue
					}
				} else {
					if drawnX[sx] < sp.X {
						continue
					}
					if drawnX[sx] == sp.X && drawnFrom[sx] <= sp.OAMIndex {
						continue
					}
				}
			}
			out[sx] = ci
			drawnFrom[sx] = sp.OAMIndex
			drawnX[sx] = sp.X
		}
	}
	return out
}

// scanSprites performs the per-line OAM scan (max 10 sprites), folding 8x16
// mode and Y-flip down to a single 8-row Sprite so downstream compositing
// never has to think about sprite height.
func (p *PPU) scanSprites(ly int) []Sprite {
	tall := p.lcdc&0x04 != 0
	height := 8
	if tall {
		height = 16
	}

	var found []Sprite
	for i := 0; i < 40 && len(found) < 10; i++ {
		off := i * 4
		y := int(p.oam[off]) - 16
		x := int(p.oam[off+1]) - 8
		tile := p.oam[off+2]
		attr := p.oam[off+3]

		row := ly - y
		if row < 0 || row >= height {
			continue
		}
		if attr&0x40 != 0 {
			row = height - 1 - row
		}
		tileIdx := tile
		if tall {
			tileIdx = (tile &^ 1) | byte(row/8)
		}
		effRow := row % 8
		spriteY := ly - effRow

		found = append(found, Sprite{
			X:        x,
			Y:        spriteY,
			Tile:     tileIdx,
			Attr:     attr &^ 0x40, // row flip already applied above
			OAMIndex: i,
		})
	}
	return found
}

// composeSprites is the bank-aware compositor used by the live PPU: it reads
// tile data from VRAM bank 0 or 1 per-sprite (CGB attr bit 3) and tracks
// which DMG/CGB palette drew each pixel, which the tested ComposeSpriteLine
// helper (single flat VRAMReader, no palette tracking) can't do on its own.
func (p *PPU) composeSprites(sprites []Sprite, ly byte, bgci [Width]byte) (ci [Width]byte, pal [Width]byte) {
	var drawnFrom [Width]int
	var drawnX [Width]int
	for i := range drawnFrom {
		drawnFrom[i] = -1
	}

	for _, sp := range sprites {
		xFlip := sp.Attr&0x20 != 0
		behindBG := sp.Attr&0x80 != 0
		bank := 0
		if p.cgb && sp.Attr&0x08 != 0 {
			bank = 1
		}

		row := int(ly) - sp.Y
		if row < 0 || row > 7 {
			continue
		}
		base := uint16(sp.Tile)*16 + uint16(row)*2
		lo := p.ReadBank(bank, 0x8000+base)
		hi := p.ReadBank(bank, 0x8000+base+1)

		for px := 0; px < 8; px++ {
			sx := sp.X + px
			if sx < 0 || sx >= Width {
				continue
			}
			bit := px
			if !xFlip {
				bit = 7 - px
			}
			pixel := ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
			if pixel == 0 {
				continue
			}
			if behindBG && bgci[sx] != 0 {
				continue
			}
			if drawnFrom[sx] != -1 {
				if p.cgb {
					if drawnFrom[sx] <= sp.OAMIndex {
						continue
					}
				} else {
					if drawnX[sx] < sp.X {
						continue
					}
					if drawnX[sx] == sp.X && drawnFrom[sx] <= sp.OAMIndex {
						continue
					}
				}
			}
			ci[sx] = pixel
			if p.cgb {
				pal[sx] = sp.Attr & 0x07
			} else if sp.Attr&0x10 != 0 {
				pal[sx] = 1 // selects OBP1 over OBP0
			} else {
				pal[sx] = 0
			}
			drawnFrom[sx] = sp.OAMIndex
			drawnX[sx] = sp.X
		}
	}
	return ci, pal
}
