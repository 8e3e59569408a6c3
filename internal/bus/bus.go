// Package bus wires CPU-visible address space to cartridge, WRAM, HRAM, and
// every memory-mapped peripheral: PPU, APU, Timer, Joypad and OAM DMA. Each
// peripheral owns its own state and only talks back to the Bus through the
// small InterruptRequester callback shape, so nothing below the Bus needs a
// cyclic reference to it.
package bus

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/gbcore/gbcore/internal/apu"
	"github.com/gbcore/gbcore/internal/cart"
	"github.com/gbcore/gbcore/internal/dma"
	"github.com/gbcore/gbcore/internal/interrupt"
	"github.com/gbcore/gbcore/internal/joypad"
	"github.com/gbcore/gbcore/internal/ppu"
	"github.com/gbcore/gbcore/internal/timer"
)

// Bus composes every peripheral into one CPU-addressable memory map.
type Bus struct {
	cart cart.Cartridge

	wram     [0x8000]byte // 8 banks of 4 KiB; bank 0 fixed, 1-7 switchable on CGB
	wramBank byte         // SVBK, CGB only (0..7; 0 maps bank 1 but reads back as 0)
	hram     [0x7F]byte

	irq   *interrupt.Controller
	timer *timer.Timer
	joyp  *joypad.Joypad
	dma   *dma.DMA
	ppu   *ppu.PPU
	apu   *apu.APU

	cgb         bool
	doubleSpeed bool
	speedSwitchArmed bool // KEY1 bit0 armed, toggles on next STOP

	sb byte      // FF01 serial data
	sc byte      // FF02 serial control
	sw io.Writer // optional sink for serial output

	bootROM     []byte
	bootEnabled bool

	debugTimer bool
}

// New constructs a DMG Bus with a ROM-only cartridge for convenience.
func New(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom), false)
}

// NewCGB constructs a CGB-mode Bus with a ROM-only cartridge.
func NewCGB(rom []byte) *Bus {
	return NewWithCartridge(cart.NewCartridge(rom), true)
}

// NewWithCartridge wires a provided cartridge implementation.
func NewWithCartridge(c cart.Cartridge, cgb bool) *Bus {
	b := &Bus{cart: c, cgb: cgb, wramBank: 1}
	b.irq = interrupt.New()
	b.timer = timer.New(b.irq)
	b.joyp = joypad.New(b.irq)
	b.dma = dma.New()
	b.ppu = ppu.New(func(bit int) { b.irq.Request(bit) }, cgb)
	b.ppu.Reset()
	b.apu = apu.New(48000)
	if os.Getenv("GB_DEBUG_TIMER") != "" {
		b.debugTimer = true
	}
	return b
}

// PPU returns the internal PPU for read-only rendering/audio helpers.
func (b *Bus) PPU() *ppu.PPU { return b.ppu }

// APU returns the internal APU so a host frontend can pull samples.
func (b *Bus) APU() *apu.APU { return b.apu }

// Cart returns the underlying cartridge for optional battery operations.
func (b *Bus) Cart() cart.Cartridge { return b.cart }

// Interrupts exposes the interrupt controller for the CPU's dispatch loop.
func (b *Bus) Interrupts() *interrupt.Controller { return b.irq }

func (b *Bus) wramOffset(addr uint16) (int, bool) {
	switch {
	case addr >= 0xC000 && addr <= 0xCFFF:
		return int(addr - 0xC000), true
	case addr >= 0xD000 && addr <= 0xDFFF:
		bank := int(b.wramBank)
		if bank == 0 {
			bank = 1
		}
		return bank*0x1000 + int(addr-0xD000), true
	}
	return 0, false
}

func (b *Bus) Read(addr uint16) byte {
	// While OAM DMA runs the CPU only sees HRAM, IE and IF; every other
	// address reads back 0xFF.
	if b.dma.Active() && addr < 0xFF80 && addr != 0xFF0F {
		return 0xFF
	}
	switch {
	case addr < 0x8000:
		if b.bootEnabled && addr < 0x0100 && len(b.bootROM) >= 0x100 {
			return b.bootROM[addr]
		}
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		off, _ := b.wramOffset(addr)
		return b.wram[off]
	case addr >= 0xE000 && addr <= 0xFDFF:
		off, _ := b.wramOffset(addr - 0x2000)
		return b.wram[off]
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dma.Active() {
			return 0xFF
		}
		return b.ppu.CPURead(addr)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		return 0xFF // unusable region
	case addr == 0xFF00:
		return b.joyp.Read()
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | (b.sc & 0x81)
	case addr == 0xFF04:
		return b.timer.ReadDIV()
	case addr == 0xFF05:
		return b.timer.ReadTIMA()
	case addr == 0xFF06:
		return b.timer.ReadTMA()
	case addr == 0xFF07:
		return b.timer.ReadTAC()
	case addr == 0xFF0F:
		return b.irq.ReadIF()
	case addr >= 0xFF10 && addr <= 0xFF3F:
		return b.apu.CPURead(addr)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B, addr == 0xFF4F,
		addr == 0xFF68, addr == 0xFF69, addr == 0xFF6A, addr == 0xFF6B:
		return b.ppu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma.Register()
	case addr == 0xFF4D: // KEY1
		if !b.cgb {
			return 0xFF
		}
		v := byte(0x7E)
		if b.doubleSpeed {
			v |= 0x80
		}
		if b.speedSwitchArmed {
			v |= 0x01
		}
		return v
	case addr == 0xFF70: // SVBK
		if !b.cgb {
			return 0xFF
		}
		return 0xF8 | (b.wramBank & 0x07)
	case addr == 0xFF50:
		return 0xFF
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.irq.ReadIE()
	}
	return 0xFF
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr >= 0x8000 && addr <= 0x9FFF:
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xA000 && addr <= 0xBFFF:
		b.cart.Write(addr, value)
	case addr >= 0xC000 && addr <= 0xDFFF:
		if off, ok := b.wramOffset(addr); ok {
			b.wram[off] = value
		}
	case addr >= 0xE000 && addr <= 0xFDFF:
		if off, ok := b.wramOffset(addr - 0x2000); ok {
			b.wram[off] = value
		}
	case addr >= 0xFE00 && addr <= 0xFE9F:
		if b.dma.Active() {
			return
		}
		b.ppu.CPUWrite(addr, value)
	case addr >= 0xFEA0 && addr <= 0xFEFF:
		// unusable, ignored
	case addr == 0xFF00:
		b.joyp.Write(value)
	case addr == 0xFF01:
		b.sb = value
	case addr == 0xFF02:
		b.sc = value & 0x81
		if b.sc&0x80 != 0 {
			if b.sw != nil {
				_, _ = b.sw.Write([]byte{b.sb})
			}
			b.irq.Request(interrupt.Serial)
			b.sc &^= 0x80
		}
	case addr == 0xFF04:
		if b.debugTimer {
			fmt.Printf("[TMR] DIV write -> reset\n")
		}
		b.timer.WriteDIV()
	case addr == 0xFF05:
		b.timer.WriteTIMA(value)
	case addr == 0xFF06:
		b.timer.WriteTMA(value)
	case addr == 0xFF07:
		b.timer.WriteTAC(value)
	case addr == 0xFF0F:
		b.irq.WriteIF(value)
	case addr >= 0xFF10 && addr <= 0xFF3F:
		b.apu.CPUWrite(addr, value)
	case addr == 0xFF40, addr == 0xFF41, addr == 0xFF42, addr == 0xFF43,
		addr == 0xFF44, addr == 0xFF45,
		addr == 0xFF47, addr == 0xFF48, addr == 0xFF49,
		addr == 0xFF4A, addr == 0xFF4B, addr == 0xFF4F,
		addr == 0xFF68, addr == 0xFF69, addr == 0xFF6A, addr == 0xFF6B:
		b.ppu.CPUWrite(addr, value)
	case addr == 0xFF46:
		b.dma.Trigger(value)
	case addr == 0xFF4D:
		if b.cgb {
			b.speedSwitchArmed = value&0x01 != 0
		}
	case addr == 0xFF70:
		if b.cgb {
			b.wramBank = value & 0x07
		}
	case addr == 0xFF50:
		if value != 0x00 {
			b.bootEnabled = false
		}
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFFFF:
		b.irq.WriteIE(value)
	}
}

// ReadDMA services DMA's own source reads, which bypass the CPU-read gate
// the Bus applies while a transfer is in flight. VRAM sources still go
// through the PPU, so they read 0xFF while the PPU is in mode 3.
func (b *Bus) ReadDMA(addr uint16) byte {
	switch {
	case addr < 0x8000:
		return b.cart.Read(addr)
	case addr >= 0x8000 && addr <= 0x9FFF:
		return b.ppu.CPURead(addr)
	case addr >= 0xA000 && addr <= 0xBFFF:
		return b.cart.Read(addr)
	case addr >= 0xC000 && addr <= 0xDFFF:
		off, _ := b.wramOffset(addr)
		return b.wram[off]
	case addr >= 0xE000 && addr <= 0xFDFF:
		off, _ := b.wramOffset(addr - 0x2000)
		return b.wram[off]
	default:
		return 0xFF
	}
}

// WriteOAMDMA is the DMA engine's OAM sink.
func (b *Bus) WriteOAMDMA(offset int, v byte) {
	b.ppu.CPUWrite(0xFE00+uint16(offset), v)
}

// Joypad button bitmasks for SetJoypadState, aliasing the joypad package's.
const (
	JoypRight  = joypad.Right
	JoypLeft   = joypad.Left
	JoypUp     = joypad.Up
	JoypDown   = joypad.Down
	JoypA      = joypad.A
	JoypB      = joypad.B
	JoypSelect = joypad.Select
	JoypStart  = joypad.Start
)

// SetJoypadState sets which buttons are currently pressed (joypad.* masks).
func (b *Bus) SetJoypadState(mask byte) {
	for _, bit := range []byte{joypad.Right, joypad.Left, joypad.Up, joypad.Down, joypad.A, joypad.B, joypad.Select, joypad.Start} {
		b.joyp.SetButton(bit, mask&bit != 0)
	}
}

// SetSerialWriter sets a sink that receives bytes written via the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.sw = w }

// SetBootROM loads a DMG boot ROM mapped at 0x0000-0x00FF until 0xFF50 is written.
func (b *Bus) SetBootROM(data []byte) {
	b.bootROM = nil
	b.bootEnabled = false
	if len(data) >= 0x100 {
		b.bootROM = make([]byte, 0x100)
		copy(b.bootROM, data[:0x100])
		b.bootEnabled = true
	}
}

// DoubleSpeed reports whether the CPU is currently running at 2x clock.
func (b *Bus) DoubleSpeed() bool { return b.doubleSpeed }

// ApplySpeedSwitch toggles double-speed mode if KEY1 was armed; called by
// the CPU when it processes a STOP instruction. Returns whether a switch
// occurred; the CPU's STOP handler ignores the result and charges no extra
// switch delay.
func (b *Bus) ApplySpeedSwitch() bool {
	if !b.cgb || !b.speedSwitchArmed {
		return false
	}
	b.doubleSpeed = !b.doubleSpeed
	b.speedSwitchArmed = false
	b.timer.SetDoubleSpeed(b.doubleSpeed)
	return true
}

// Tick advances every ticked peripheral by the given number of T-cycles,
// one cycle at a time so the timer's frame-sequencer edges and the DMA
// engine's byte boundaries are observed exactly as they'd occur on hardware.
func (b *Bus) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		seqEdges := b.timer.Tick(1)
		b.dma.Tick(1, b, b)
		b.ppu.Tick(1)
		b.apu.Tick(1, seqEdges)
	}
}

type busState struct {
	WRAM        [0x8000]byte
	WRAMBank    byte
	HRAM        [0x7F]byte
	SB, SC      byte
	BootEn      bool
	CGB         bool
	DoubleSpeed bool
	SwitchArmed bool
}

func (b *Bus) SaveState() []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	s := busState{
		WRAM: b.wram, WRAMBank: b.wramBank, HRAM: b.hram,
		SB: b.sb, SC: b.sc, BootEn: b.bootEnabled,
		CGB: b.cgb, DoubleSpeed: b.doubleSpeed, SwitchArmed: b.speedSwitchArmed,
	}
	_ = enc.Encode(s)
	_ = enc.Encode(b.irq.SaveState())
	_ = enc.Encode(b.timer.SaveState())
	_ = enc.Encode(b.joyp.SaveState())
	_ = enc.Encode(b.dma.SaveState())
	_ = enc.Encode(b.ppu.SaveState())
	_ = enc.Encode(b.apu.SaveState())
	_ = enc.Encode(b.cart.SaveState())
	return buf.Bytes()
}

func (b *Bus) LoadState(data []byte) {
	dec := gob.NewDecoder(bytes.NewReader(data))
	var s busState
	if err := dec.Decode(&s); err != nil {
		return
	}
	b.wram, b.wramBank, b.hram = s.WRAM, s.WRAMBank, s.HRAM
	b.sb, b.sc, b.bootEnabled = s.SB, s.SC, s.BootEn
	b.cgb, b.doubleSpeed, b.speedSwitchArmed = s.CGB, s.DoubleSpeed, s.SwitchArmed

	var irqState interrupt.State
	if err := dec.Decode(&irqState); err == nil {
		b.irq.LoadState(irqState)
	}
	var timerState timer.State
	if err := dec.Decode(&timerState); err == nil {
		b.timer.LoadState(timerState)
	}
	var joypState joypad.State
	if err := dec.Decode(&joypState); err == nil {
		b.joyp.LoadState(joypState)
	}
	var dmaState dma.State
	if err := dec.Decode(&dmaState); err == nil {
		b.dma.LoadState(dmaState)
	}
	var ppuBlob []byte
	if err := dec.Decode(&ppuBlob); err == nil {
		b.ppu.LoadState(ppuBlob)
	}
	var apuBlob []byte
	if err := dec.Decode(&apuBlob); err == nil {
		b.apu.LoadState(apuBlob)
	}
	var cartBlob []byte
	if err := dec.Decode(&cartBlob); err == nil {
		b.cart.LoadState(cartBlob)
	}
}
