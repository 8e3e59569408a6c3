// Package joypad models the FF00 JOYP register: button/d-pad selection and
// the high-to-low edge that raises the Joypad interrupt.
package joypad

import "github.com/gbcore/gbcore/internal/interrupt"

// Button bitmasks for SetButton. A set bit means pressed.
const (
	Right = 1 << iota
	Left
	Up
	Down
	A
	B
	Select
	Start
)

type Joypad struct {
	selectBits byte // bits 5:4 as last written (0 = group selected)
	pressed    byte // Button* bitmask, set = pressed
	lowerNibLast byte

	irq *interrupt.Controller
}

func New(irq *interrupt.Controller) *Joypad {
	return &Joypad{irq: irq, lowerNibLast: 0x0F}
}

// SetButton updates a single button's pressed state and evaluates the edge.
func (j *Joypad) SetButton(mask byte, pressed bool) {
	if pressed {
		j.pressed |= mask
	} else {
		j.pressed &^= mask
	}
	j.refresh()
}

func (j *Joypad) lowerNibble() byte {
	n := byte(0x0F)
	if j.selectBits&0x10 == 0 { // P14 low selects D-pad
		if j.pressed&Right != 0 {
			n &^= 0x01
		}
		if j.pressed&Left != 0 {
			n &^= 0x02
		}
		if j.pressed&Up != 0 {
			n &^= 0x04
		}
		if j.pressed&Down != 0 {
			n &^= 0x08
		}
	}
	if j.selectBits&0x20 == 0 { // P15 low selects buttons
		if j.pressed&A != 0 {
			n &^= 0x01
		}
		if j.pressed&B != 0 {
			n &^= 0x02
		}
		if j.pressed&Select != 0 {
			n &^= 0x04
		}
		if j.pressed&Start != 0 {
			n &^= 0x08
		}
	}
	return n
}

func (j *Joypad) refresh() {
	n := j.lowerNibble()
	if falling := j.lowerNibLast &^ n; falling != 0 {
		j.irq.Request(interrupt.Joypad)
	}
	j.lowerNibLast = n
}

// Read returns the FF00 value: bits 7:6 read as 1, bits 5:4 echo selection,
// bits 3:0 the active-low selected nibble.
func (j *Joypad) Read() byte {
	return 0xC0 | (j.selectBits & 0x30) | j.lowerNibble()
}

// Write stores the select bits (5:4) and re-evaluates the edge, since
// changing selection can itself expose a pressed button as a falling edge.
func (j *Joypad) Write(v byte) {
	j.selectBits = v & 0x30
	j.refresh()
}

type State struct {
	SelectBits, Pressed, LowerNibLast byte
}

func (j *Joypad) SaveState() State {
	return State{SelectBits: j.selectBits, Pressed: j.pressed, LowerNibLast: j.lowerNibLast}
}

func (j *Joypad) LoadState(s State) {
	j.selectBits, j.pressed, j.lowerNibLast = s.SelectBits, s.Pressed, s.LowerNibLast
}
