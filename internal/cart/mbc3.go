package cart

import (
	"bytes"
	"encoding/gob"
	"time"
)

// nowUnix is the one place this package touches wall-clock time; no library
// in the retrieval pack models a cartridge RTC, so time.Now is the only
// reasonable stdlib source for it (documented in DESIGN.md as a deliberate
// stdlib choice). It's a var, not a plain call, so tests can freeze time.
var nowUnix = func() int64 { return time.Now().Unix() }

// MBC3 implements ROM/RAM banking plus the MBC3 real-time clock.
// Banking behavior:
// - 0000-1FFF: RAM/RTC enable (0x0A in low nibble)
// - 2000-3FFF: ROM bank low 7 bits (0 maps to 1)
// - 4000-5FFF: RAM bank (0-3) or RTC register select (08-0C)
// - 6000-7FFF: Latch clock: write 0x00 then 0x01 copies live registers into
//   the latched snapshot CPU reads observe.
// - A000-BFFF: External RAM, or the selected latched RTC register, when
//   enabled.
// ROM: bank 0 fixed at 0000-3FFF; switchable 4000-7FFF uses bank (1..127).
//
// The live registers (rtcSec..rtcDay) are updated lazily: every access
// re-derives them from the wall-clock delta since the last access rather
// than ticking on a timer, since the cartridge keeps real time even while
// the emulator isn't running.
type MBC3 struct {
	rom []byte
	ram []byte

	ramEnabled bool
	romBank    byte // 7 bits (1..127)
	ramBank    byte // 0..3, or an RTC register select (0x08..0x0C)

	rtcSec, rtcMin, rtcHour byte
	rtcDay                  uint16 // 9 bits
	rtcHalt, rtcCarry       bool
	lastRTCWallSec          int64

	latched   [5]byte // sec, min, hour, day-lo, day-hi(bit0)+halt(bit6)+carry(bit7)
	latchPrev byte
}

func NewMBC3(rom []byte, ramSize int) *MBC3 {
	m := &MBC3{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	m.romBank = 1
	m.lastRTCWallSec = nowUnix()
	return m
}

// updateRTC folds elapsed wall-clock time into the live registers. Called
// on every access so the clock advances correctly whether or not the
// emulator was running continuously.
func (m *MBC3) updateRTC() {
	now := nowUnix()
	delta := now - m.lastRTCWallSec
	m.lastRTCWallSec = now
	if m.rtcHalt || delta <= 0 {
		return
	}
	total := int64(m.rtcSec) + int64(m.rtcMin)*60 + int64(m.rtcHour)*3600 + int64(m.rtcDay)*86400 + delta
	days := total / 86400
	rem := total % 86400
	hour := rem / 3600
	rem %= 3600
	min := rem / 60
	sec := rem % 60
	if days >= 0x200 {
		m.rtcCarry = true
		days %= 0x200
	}
	m.rtcDay = uint16(days)
	m.rtcHour = byte(hour)
	m.rtcMin = byte(min)
	m.rtcSec = byte(sec)
}

func (m *MBC3) latch() {
	m.updateRTC()
	hi := byte(m.rtcDay>>8) & 0x01
	if m.rtcHalt {
		hi |= 0x40
	}
	if m.rtcCarry {
		hi |= 0x80
	}
	m.latched = [5]byte{m.rtcSec, m.rtcMin, m.rtcHour, byte(m.rtcDay & 0xFF), hi}
}

func (m *MBC3) Read(addr uint16) byte {
	m.updateRTC()
	switch {
	case addr < 0x4000:
		if int(addr) < len(m.rom) {
			return m.rom[addr]
		}
		return 0xFF
	case addr < 0x8000:
		bank := int(m.romBank & 0x7F)
		if bank == 0 {
			bank = 1
		}
		off := bank*0x4000 + int(addr-0x4000)
		if off >= 0 && off < len(m.rom) {
			return m.rom[off]
		}
		return 0xFF
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return 0xFF
		}
		if m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			return m.latched[m.ramBank-0x08]
		}
		if len(m.ram) == 0 {
			return 0xFF
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			return m.ram[off]
		}
		return 0xFF
	default:
		return 0xFF
	}
}

func (m *MBC3) Write(addr uint16, value byte) {
	m.updateRTC()
	switch {
	case addr < 0x2000:
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		v := value & 0x7F
		if v == 0 {
			v = 1
		}
		m.romBank = v
	case addr < 0x6000:
		if value <= 0x03 || (value >= 0x08 && value <= 0x0C) {
			m.ramBank = value
		} else {
			m.ramBank = 0
		}
	case addr < 0x8000:
		if m.latchPrev == 0x00 && value == 0x01 {
			m.latch()
		}
		m.latchPrev = value
	case addr >= 0xA000 && addr <= 0xBFFF:
		if !m.ramEnabled {
			return
		}
		if m.ramBank >= 0x08 && m.ramBank <= 0x0C {
			m.writeRTCReg(value)
			return
		}
		if len(m.ram) == 0 {
			return
		}
		rb := int(m.ramBank & 0x03)
		off := rb*0x2000 + int(addr-0xA000)
		if off >= 0 && off < len(m.ram) {
			m.ram[off] = value
		}
	}
}

// writeRTCReg applies a CPU write to the currently selected live RTC
// register (not the latched snapshot).
func (m *MBC3) writeRTCReg(v byte) {
	switch m.ramBank {
	case 0x08:
		m.rtcSec = v % 60
	case 0x09:
		m.rtcMin = v % 60
	case 0x0A:
		m.rtcHour = v % 24
	case 0x0B:
		m.rtcDay = (m.rtcDay &^ 0xFF) | uint16(v)
	case 0x0C:
		m.rtcDay = (m.rtcDay &^ 0x100) | (uint16(v&0x01) << 8)
		m.rtcHalt = v&0x40 != 0
		m.rtcCarry = v&0x80 != 0
	}
}

// SaveRAM returns external RAM plus the live RTC registers, for
// battery-backed persistence across sessions.
func (m *MBC3) SaveRAM() []byte {
	m.updateRTC()
	out := make([]byte, len(m.ram)+16)
	copy(out, m.ram)
	tail := out[len(m.ram):]
	tail[0] = m.rtcSec
	tail[1] = m.rtcMin
	tail[2] = m.rtcHour
	tail[3] = byte(m.rtcDay & 0xFF)
	tail[4] = byte(m.rtcDay >> 8)
	if m.rtcHalt {
		tail[5] = 1
	}
	if m.rtcCarry {
		tail[6] = 1
	}
	var wall [8]byte
	w := uint64(m.lastRTCWallSec)
	for i := 0; i < 8; i++ {
		wall[i] = byte(w >> (8 * i))
	}
	copy(tail[7:15], wall[:])
	return out
}

func (m *MBC3) LoadRAM(data []byte) {
	if len(data) < 16 {
		if len(m.ram) > 0 && len(data) > 0 {
			copy(m.ram, data)
		}
		return
	}
	ramLen := len(data) - 16
	if ramLen > 0 && len(m.ram) > 0 {
		copy(m.ram, data[:ramLen])
	}
	tail := data[ramLen:]
	m.rtcSec = tail[0]
	m.rtcMin = tail[1]
	m.rtcHour = tail[2]
	m.rtcDay = uint16(tail[3]) | uint16(tail[4])<<8
	m.rtcHalt = tail[5] != 0
	m.rtcCarry = tail[6] != 0
	var w uint64
	for i := 0; i < 8; i++ {
		w |= uint64(tail[7+i]) << (8 * i)
	}
	m.lastRTCWallSec = int64(w)
}

type mbc3State struct {
	RAM            []byte
	RamEnabled     bool
	RomBank        byte
	RamBank        byte
	RTCSec         byte
	RTCMin         byte
	RTCHour        byte
	RTCDay         uint16
	RTCHalt        bool
	RTCCarry       bool
	LastRTCWallSec int64
	Latched        [5]byte
	LatchPrev      byte
}

func (m *MBC3) SaveState() []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(mbc3State{
		RAM: m.ram, RamEnabled: m.ramEnabled, RomBank: m.romBank, RamBank: m.ramBank,
		RTCSec: m.rtcSec, RTCMin: m.rtcMin, RTCHour: m.rtcHour, RTCDay: m.rtcDay,
		RTCHalt: m.rtcHalt, RTCCarry: m.rtcCarry, LastRTCWallSec: m.lastRTCWallSec,
		Latched: m.latched, LatchPrev: m.latchPrev,
	})
	return buf.Bytes()
}

func (m *MBC3) LoadState(data []byte) {
	var s mbc3State
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return
	}
	if len(s.RAM) > 0 {
		m.ram = s.RAM
	}
	m.ramEnabled, m.romBank, m.ramBank = s.RamEnabled, s.RomBank, s.RamBank
	m.rtcSec, m.rtcMin, m.rtcHour, m.rtcDay = s.RTCSec, s.RTCMin, s.RTCHour, s.RTCDay
	m.rtcHalt, m.rtcCarry, m.lastRTCWallSec = s.RTCHalt, s.RTCCarry, s.LastRTCWallSec
	m.latched, m.latchPrev = s.Latched, s.LatchPrev
}
