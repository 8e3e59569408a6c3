// Package ppu implements the DMG/CGB pixel processing unit: VRAM/OAM
// storage, the LCDC/STAT/LY scanline state machine, background/window/
// sprite compositing, and DMG+CGB palettes. It produces a double-buffered
// 160x144 RGBA framebuffer and raises VBlank/STAT interrupts through an
// InterruptRequester, following the same callback shape the teacher project
// used to keep the Bus from needing mutually recursive ownership (spec §9).
package ppu

import (
	"bytes"
	"encoding/gob"
)

const (
	Width  = 160
	Height = 144

	dotsPerLine   = 456
	linesPerFrame = 154
	oamScanDots   = 80
	minDrawDots   = 172
)

// Mode is the PPU's STAT mode (bits 1:0).
type Mode byte

const (
	ModeHBlank Mode = 0
	ModeVBlank Mode = 1
	ModeOAM    Mode = 2
	ModeDraw   Mode = 3
)

// InterruptRequester lets the PPU raise IF bits without owning the
// interrupt controller directly.
type InterruptRequester func(bit int)

type PPU struct {
	vram     [2][0x2000]byte // bank 0 always; bank 1 used on CGB
	vramBank byte
	oam      [0xA0]byte

	lcdc, stat      byte
	scy, scx        byte
	ly, lyc         byte
	bgp, obp0, obp1 byte
	wy, wx          byte

	// CGB palette memories: 8 palettes * 4 colors * 2 bytes (15-bit BGR555).
	bgPalRAM, objPalRAM [64]byte
	bcps, ocps          byte // index/auto-increment registers

	cgb bool

	dot        int
	windowLine int // internal window line counter, increments only when the window was drawn on a line

	statLine bool // previous OR-of-sources value, for rising-edge detection

	front, back [Width * Height * 4]byte // RGBA8888
	frameReady  bool

	dmgRamp [4][4]byte

	lineRegsLog [Height]LineRegs

	req InterruptRequester
}

// LineRegs captures per-scanline derived state for introspection (tests,
// debuggers) that isn't otherwise visible through the MMIO registers.
type LineRegs struct {
	WinLine int
}

// LineRegs returns the captured state for scanline ly, valid once that line
// has entered Draw mode.
func (p *PPU) LineRegs(ly int) LineRegs { return p.lineRegsLog[ly] }

// Read implements VRAMReader against VRAM bank 0.
func (p *PPU) Read(addr uint16) byte { return p.ReadBank(0, addr) }

// ReadBank implements CGBVRAMReader, used by the CGB-aware scanline helpers
// to pull tile indices from bank 0 and attributes from bank 1.
func (p *PPU) ReadBank(bank int, addr uint16) byte {
	if addr < 0x8000 || addr > 0x9FFF {
		return 0xFF
	}
	return p.vram[bank&1][addr-0x8000]
}

// New constructs a PPU. cgb selects CGB-specific palette/VRAM-bank behavior.
func New(req InterruptRequester, cgb bool) *PPU {
	p := &PPU{req: req, cgb: cgb, dmgRamp: PaletteGrayscale}
	return p
}

// Reset restores post-boot register values (DMG, no boot ROM).
func (p *PPU) Reset() {
	p.lcdc = 0x91
	p.stat = 0x85
	p.scy, p.scx = 0, 0
	p.ly, p.lyc = 0, 0
	p.bgp, p.obp0, p.obp1 = 0xFC, 0xFF, 0xFF
	p.wy, p.wx = 0, 0
	p.dot = 0
	p.windowLine = 0
	p.statLine = false
}

// CPURead services VRAM, OAM and the PPU's MMIO registers.
func (p *PPU) CPURead(addr uint16) byte {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == ModeDraw && p.lcdOn() {
			return 0xFF
		}
		return p.vram[p.vramBank][addr-0x8000]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.mode()
		if p.lcdOn() && (m == ModeOAM || m == ModeDraw) {
			return 0xFF
		}
		return p.oam[addr-0xFE00]
	case addr == 0xFF40:
		return p.lcdc
	case addr == 0xFF41:
		return 0x80 | (p.stat & 0x7F)
	case addr == 0xFF42:
		return p.scy
	case addr == 0xFF43:
		return p.scx
	case addr == 0xFF44:
		return p.ly
	case addr == 0xFF45:
		return p.lyc
	case addr == 0xFF47:
		return p.bgp
	case addr == 0xFF48:
		return p.obp0
	case addr == 0xFF49:
		return p.obp1
	case addr == 0xFF4A:
		return p.wy
	case addr == 0xFF4B:
		return p.wx
	case addr == 0xFF4F: // VBK
		return 0xFE | p.vramBank
	case addr == 0xFF68: // BCPS/BGPI
		return p.bcps
	case addr == 0xFF69: // BCPD/BGPD
		return p.bgPalRAM[p.bcps&0x3F]
	case addr == 0xFF6A: // OCPS/OBPI
		return p.ocps
	case addr == 0xFF6B: // OCPD/OBPD
		return p.objPalRAM[p.ocps&0x3F]
	default:
		return 0xFF
	}
}

// CPUWrite services VRAM, OAM and the PPU's MMIO registers.
func (p *PPU) CPUWrite(addr uint16, v byte) {
	switch {
	case addr >= 0x8000 && addr <= 0x9FFF:
		if p.mode() == ModeDraw && p.lcdOn() {
			return
		}
		p.vram[p.vramBank][addr-0x8000] = v
	case addr >= 0xFE00 && addr <= 0xFE9F:
		m := p.mode()
		if p.lcdOn() && (m == ModeOAM || m == ModeDraw) {
			return
		}
		p.oam[addr-0xFE00] = v
	case addr == 0xFF40:
		prev := p.lcdc
		p.lcdc = v
		if prev&0x80 != 0 && v&0x80 == 0 {
			p.ly, p.dot = 0, 0
			p.setMode(ModeHBlank)
			p.windowLine = 0
		} else if prev&0x80 == 0 && v&0x80 != 0 {
			p.ly, p.dot = 0, 0
			p.setMode(ModeOAM)
		}
	case addr == 0xFF41:
		p.stat = (p.stat & 0x07) | (v & 0x78)
		p.evalStat()
	case addr == 0xFF42:
		p.scy = v
	case addr == 0xFF43:
		p.scx = v
	case addr == 0xFF44:
		// LY is read-only on hardware; writes are ignored.
	case addr == 0xFF45:
		p.lyc = v
		p.evalStat()
	case addr == 0xFF47:
		p.bgp = v
	case addr == 0xFF48:
		p.obp0 = v
	case addr == 0xFF49:
		p.obp1 = v
	case addr == 0xFF4A:
		p.wy = v
	case addr == 0xFF4B:
		p.wx = v
	case addr == 0xFF4F:
		if p.cgb {
			p.vramBank = v & 0x01
		}
	case addr == 0xFF68:
		p.bcps = v & 0xBF
	case addr == 0xFF69:
		idx := p.bcps & 0x3F
		p.bgPalRAM[idx] = v
		if p.bcps&0x80 != 0 {
			p.bcps = 0x80 | ((idx + 1) & 0x3F)
		}
	case addr == 0xFF6A:
		p.ocps = v & 0xBF
	case addr == 0xFF6B:
		idx := p.ocps & 0x3F
		p.objPalRAM[idx] = v
		if p.ocps&0x80 != 0 {
			p.ocps = 0x80 | ((idx + 1) & 0x3F)
		}
	}
}

func (p *PPU) lcdOn() bool { return p.lcdc&0x80 != 0 }
func (p *PPU) mode() Mode  { return Mode(p.stat & 0x03) }

func (p *PPU) setMode(m Mode) {
	if p.mode() == m {
		return
	}
	p.stat = (p.stat &^ 0x03) | byte(m)
	p.evalStat()
}

// evalStat recomputes the OR-of-sources STAT line and requests STAT on a
// 0->1 rising edge, matching real hardware's glitchy-but-edge-triggered
// behavior (spec §4.4).
func (p *PPU) evalStat() {
	m := p.mode()
	line := false
	if p.stat&(1<<3) != 0 && m == ModeHBlank {
		line = true
	}
	if p.stat&(1<<4) != 0 && m == ModeVBlank {
		line = true
	}
	if p.stat&(1<<5) != 0 && m == ModeOAM {
		line = true
	}
	coincidence := p.ly == p.lyc
	if coincidence {
		p.stat |= 1 << 2
	} else {
		p.stat &^= 1 << 2
	}
	if p.stat&(1<<6) != 0 && coincidence {
		line = true
	}
	if line && !p.statLine {
		if p.req != nil {
			p.req(1)
		}
	}
	p.statLine = line
}

// Tick advances the PPU by n T-cycles (1 dot == 1 T-cycle).
func (p *PPU) Tick(n int) {
	for i := 0; i < n; i++ {
		p.tickOne()
	}
}

func (p *PPU) tickOne() {
	if !p.lcdOn() {
		return
	}
	p.dot++

	if p.ly < Height {
		switch {
		case p.dot == oamScanDots:
			p.renderScanline()
			p.setMode(ModeDraw)
		case p.dot == oamScanDots+minDrawDots:
			p.setMode(ModeHBlank)
		}
	}

	if p.dot >= dotsPerLine {
		p.dot = 0
		p.ly++
		if p.ly == Height {
			p.setMode(ModeVBlank)
			p.swapBuffers()
			if p.req != nil {
				p.req(0) // VBlank IF
			}
		} else if p.ly > 153 {
			p.ly = 0
			p.windowLine = 0
			p.setMode(ModeOAM)
		} else if p.ly < Height {
			p.setMode(ModeOAM)
		}
		p.evalStat()
	}
}

// renderScanline composes background, window and sprites for the current LY
// and writes RGBA8888 pixels into the back buffer. It is called once per
// line, at the OAM-scan-to-draw transition, the way the teacher's fetcher
// and scanline helpers were designed to be driven but never wired up.
func (p *PPU) renderScanline() {
	ly := p.ly
	windowActive := p.lcdc&0x20 != 0 && p.wx <= 166 && int(ly) >= int(p.wy)

	var lr LineRegs
	if windowActive {
		lr.WinLine = p.windowLine
	}
	p.lineRegsLog[ly] = lr

	tileData8000 := p.lcdc&0x10 != 0
	bgMapBase := uint16(0x9800)
	if p.lcdc&0x08 != 0 {
		bgMapBase = 0x9C00
	}
	winMapBase := uint16(0x9800)
	if p.lcdc&0x40 != 0 {
		winMapBase = 0x9C00
	}

	var ci [Width]byte
	var pal [Width]byte
	var pri [Width]bool

	bgWinEnabled := p.lcdc&0x01 != 0 || p.cgb
	if bgWinEnabled {
		if p.cgb {
			ci, pal, pri = RenderBGScanlineCGB(p, bgMapBase, bgMapBase, tileData8000, p.scx, p.scy, ly)
		} else {
			ci = RenderBGScanlineUsingFetcher(p, bgMapBase, tileData8000, p.scx, p.scy, ly)
		}
	}

	if windowActive && (p.lcdc&0x01 != 0 || p.cgb) {
		wxStart := int(p.wx) - 7
		start := wxStart
		if start < 0 {
			start = 0
		}
		if p.cgb {
			wci, wpal, wpri := RenderWindowScanlineCGB(p, winMapBase, winMapBase, tileData8000, wxStart, byte(p.windowLine))
			for x := start; x < Width; x++ {
				ci[x], pal[x], pri[x] = wci[x], wpal[x], wpri[x]
			}
		} else {
			wci := RenderWindowScanlineUsingFetcher(p, winMapBase, tileData8000, wxStart, byte(p.windowLine))
			for x := start; x < Width; x++ {
				ci[x] = wci[x]
			}
		}
		p.windowLine++
	}

	var objCi [Width]byte
	var objPal [Width]byte
	if p.lcdc&0x02 != 0 {
		sprites := p.scanSprites(int(ly))
		objCi, objPal = p.composeSprites(sprites, ly, ci)
	}

	for x := 0; x < Width; x++ {
		var color [4]byte
		spriteWins := objCi[x] != 0
		if spriteWins && p.cgb && pri[x] && ci[x] != 0 {
			// CGB master BG-to-OBJ priority bit: BG wins over any sprite.
			spriteWins = false
		}
		if spriteWins {
			if p.cgb {
				color = cgbColor(&p.objPalRAM, objPal[x], objCi[x])
			} else {
				reg := p.obp0
				if objPal[x] != 0 {
					reg = p.obp1
				}
				color = p.dmgColor(reg, objCi[x])
			}
		} else if p.cgb {
			color = cgbColor(&p.bgPalRAM, pal[x], ci[x])
		} else {
			color = p.dmgColor(p.bgp, ci[x])
		}
		off := (int(ly)*Width + x) * 4
		copy(p.back[off:off+4], color[:])
	}
}

func (p *PPU) swapBuffers() {
	p.front, p.back = p.back, p.front
	p.frameReady = true
}

// Framebuffer returns the most recently completed frame (RGBA8888, stride
// Width*4). The slice is only valid until the next Tick call that crosses a
// VBlank boundary.
func (p *PPU) Framebuffer() []byte { return p.front[:] }

// FrameReady reports (and clears) whether a new frame completed since the
// last check.
func (p *PPU) FrameReady() bool {
	r := p.frameReady
	p.frameReady = false
	return r
}

// ppuState is the gob-serializable snapshot used by SaveState/LoadState.
// The framebuffers are deliberately excluded: a loaded state resumes mid
// frame and simply renders forward from the next Tick.
type ppuState struct {
	VRAM                [2][0x2000]byte
	VRAMBank            byte
	OAM                 [0xA0]byte
	LCDC, STAT          byte
	SCY, SCX            byte
	LY, LYC             byte
	BGP, OBP0, OBP1     byte
	WY, WX              byte
	BGPalRAM, ObjPalRAM [64]byte
	BCPS, OCPS          byte
	CGB                 bool
	Dot                 int
	WindowLine          int
	StatLine            bool
	DMGRamp             [4][4]byte
}

// SaveState returns a gob-encoded snapshot of all PPU registers and memory.
func (p *PPU) SaveState() []byte {
	s := ppuState{
		VRAM: p.vram, VRAMBank: p.vramBank, OAM: p.oam,
		LCDC: p.lcdc, STAT: p.stat, SCY: p.scy, SCX: p.scx,
		LY: p.ly, LYC: p.lyc, BGP: p.bgp, OBP0: p.obp0, OBP1: p.obp1,
		WY: p.wy, WX: p.wx, BGPalRAM: p.bgPalRAM, ObjPalRAM: p.objPalRAM,
		BCPS: p.bcps, OCPS: p.ocps, CGB: p.cgb,
		Dot: p.dot, WindowLine: p.windowLine, StatLine: p.statLine,
		DMGRamp: p.dmgRamp,
	}
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(s)
	return buf.Bytes()
}

// LoadState restores a snapshot produced by SaveState.
func (p *PPU) LoadState(data []byte) {
	var s ppuState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	p.vram, p.vramBank, p.oam = s.VRAM, s.VRAMBank, s.OAM
	p.lcdc, p.stat, p.scy, p.scx = s.LCDC, s.STAT, s.SCY, s.SCX
	p.ly, p.lyc, p.bgp, p.obp0, p.obp1 = s.LY, s.LYC, s.BGP, s.OBP0, s.OBP1
	p.wy, p.wx = s.WY, s.WX
	p.bgPalRAM, p.objPalRAM = s.BGPalRAM, s.ObjPalRAM
	p.bcps, p.ocps, p.cgb = s.BCPS, s.OCPS, s.CGB
	p.dot, p.windowLine, p.statLine = s.Dot, s.WindowLine, s.StatLine
	p.dmgRamp = s.DMGRamp
}
