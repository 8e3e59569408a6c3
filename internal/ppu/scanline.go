package ppu

// cgbTileRow reads one 8-pixel tile row honoring a CGB attribute byte's bank,
// flip and priority bits, returning 8 color indices MSB(leftmost)-first.
func cgbTileRow(mem CGBVRAMReader, tileData8000 bool, tileNum, attr byte, fineY byte) [8]byte {
	bank := int((attr >> 4) & 1)
	xFlip := attr&0x20 != 0
	yFlip := attr&0x40 != 0
	if yFlip {
		fineY = 7 - fineY
	}
	var base uint16
	if tileData8000 {
		base = 0x8000 + uint16(tileNum)*16 + uint16(fineY)*2
	} else {
		base = 0x9000 + uint16(int8(tileNum))*16 + uint16(fineY)*2
	}
	lo := mem.ReadBank(bank, base)
	hi := mem.ReadBank(bank, base+1)
	var row [8]byte
	for px := 0; px < 8; px++ {
		bit := 7 - px
		if xFlip {
			bit = px
		}
		row[px] = ((hi>>uint(bit))&1)<<1 | ((lo >> uint(bit)) & 1)
	}
	return row
}

// RenderBGScanlineCGB renders one CGB background scanline, returning color
// indices, the per-pixel palette number (attr bits 2:0) and the BG-to-OBJ
// master priority bit (attr bit 7). mapBase addresses the tile index (bank
// 0); attrBase addresses the attribute byte (bank 1) — on real hardware
// these are numerically the same tilemap address, split here only so the
// helper can be driven by tests independently of PPU wiring.
func RenderBGScanlineCGB(mem CGBVRAMReader, mapBase, attrBase uint16, tileData8000 bool, scx, scy, ly byte) (ci [160]byte, pal [160]byte, pri [160]bool) {
	bgY := uint16(ly) + uint16(scy)
	mapY := (bgY >> 3) & 31
	fineY := byte(bgY & 7)

	startX := uint16(scx)
	fineX := int(startX & 7)
	tileX := (startX >> 3) & 31

	x := 0
	for x < 160 {
		idxAddr := mapBase + mapY*32 + tileX
		attrAddr := attrBase + mapY*32 + tileX
		tileNum := mem.ReadBank(0, idxAddr)
		attr := mem.ReadBank(1, attrAddr)
		row := cgbTileRow(mem, tileData8000, tileNum, attr, fineY)

		start := 0
		if x == 0 {
			start = fineX
		}
		for px := start; px < 8 && x < 160; px++ {
			ci[x] = row[px]
			pal[x] = attr & 0x07
			pri[x] = attr&0x80 != 0
			x++
		}
		tileX = (tileX + 1) & 31
	}
	return ci, pal, pri
}

// RenderWindowScanlineCGB is the window-layer counterpart to
// RenderBGScanlineCGB; pixels left of wxStart are zero so callers can
// overlay only the visible portion onto the background.
func RenderWindowScanlineCGB(mem CGBVRAMReader, mapBase, attrBase uint16, tileData8000 bool, wxStart int, winLine byte) (ci [160]byte, pal [160]byte, pri [160]bool) {
	if wxStart >= 160 {
		return ci, pal, pri
	}
	if wxStart < 0 {
		wxStart = 0
	}
	mapY := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7
	tileX := uint16(0)

	x := wxStart
	for x < 160 {
		idxAddr := mapBase + mapY*32 + tileX
		attrAddr := attrBase + mapY*32 + tileX
		tileNum := mem.ReadBank(0, idxAddr)
		attr := mem.ReadBank(1, attrAddr)
		row := cgbTileRow(mem, tileData8000, tileNum, attr, fineY)

		for px := 0; px < 8 && x < 160; px++ {
			ci[x] = row[px]
			pal[x] = attr & 0x07
			pri[x] = attr&0x80 != 0
			x++
		}
		tileX = (tileX + 1) & 31
	}
	return ci, pal, pri
}

// renderBGScanlineUsingFetcher renders 160 BG pixels for the given LY using the isolated fetcher.
// Inputs:
// - mem: VRAM reader
// - mapBase: 0x9800 or 0x9C00
// - tileData8000: true -> 0x8000 addressing; false -> 0x8800 signed addressing
// - scx, scy: scroll registers
// - ly: current scanline (0..143)
// Output: 160 color indices (0..3)
func RenderBGScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, scx, scy, ly byte) [160]byte {
	var out [160]byte

	// Compute BG coordinates.
	bgY := uint16(ly) + uint16(scy)
	fineY := byte(bgY & 7)
	mapY := (bgY >> 3) & 31 // 0..31 rows

	startX := uint16(scx)
	tileX := (startX >> 3) & 31
	fineX := int(startX & 7)

	// Map index address for the first tile column.
	tileIndexAddr := mapBase + mapY*32 + tileX

	var q fifo
	f := newBGFetcher(mem, &q)
	f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
	f.Fetch()
	// Discard scx fractional pixels.
	for i := 0; i < fineX; i++ {
		_, _ = q.Pop()
	}

	// Produce 160 pixels, fetching new tiles as the FIFO empties.
	for x := 0; x < 160; x++ {
		if q.Len() == 0 {
			// Advance to next tile in map row (wrap at 32 tiles).
			tileX = (tileX + 1) & 31
			tileIndexAddr = mapBase + mapY*32 + tileX
			f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
			f.Fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}

// RenderWindowScanlineUsingFetcher renders the window layer for a scanline using the fetcher.
// It fills pixels starting at wxStart (WX-7) using winLine as the vertical line within the window.
// Pixels before wxStart are left as 0 (BG color index 0) so callers can blend.
func RenderWindowScanlineUsingFetcher(mem VRAMReader, mapBase uint16, tileData8000 bool, wxStart int, winLine byte) [160]byte {
	var out [160]byte
	if wxStart >= 160 {
		return out
	}
	if wxStart < 0 {
		wxStart = 0
	}
	// Compute window tile row and fineY
	mapY := (uint16(winLine) >> 3) & 31
	fineY := winLine & 7
	tileX := uint16(0)
	tileIndexAddr := mapBase + mapY*32 + tileX
	var q fifo
	f := newBGFetcher(mem, &q)
	f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
	f.Fetch()
	for x := wxStart; x < 160; x++ {
		if q.Len() == 0 {
			tileX = (tileX + 1) & 31
			tileIndexAddr = mapBase + mapY*32 + tileX
			f.Configure(mapBase, tileData8000, tileIndexAddr, fineY)
			f.Fetch()
		}
		px, _ := q.Pop()
		out[x] = px
	}
	return out
}
