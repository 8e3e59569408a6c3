package emu

import (
	"github.com/gbcore/gbcore/internal/bus"
	"github.com/gbcore/gbcore/internal/cpu"
)

// cyclesPerFrame is the T-cycle budget of one Game Boy video frame:
// 70224 = 154 scanlines * 456 T-cycles, at the base (single-speed) clock.
const cyclesPerFrame = 70224

// FrameStepper drives the CPU/Bus for exactly one frame's worth of
// T-cycles, carrying any cycle overshoot from an instruction that crossed
// the frame boundary into the next frame's budget (§8's accounting
// invariant), rather than truncating or padding it away. Grounded on the
// teacher's Machine.StepFrame, which drew a placeholder test pattern in
// place of a real drive loop; this is that loop.
type FrameStepper struct {
	cpu      *cpu.CPU
	bus      *bus.Bus
	overshot int
}

func NewFrameStepper(c *cpu.CPU, b *bus.Bus) *FrameStepper {
	return &FrameStepper{cpu: c, bus: b}
}

// Run executes one frame. budget stays fixed at cyclesPerFrame regardless
// of CGB double-speed mode: Bus.Tick forwards the CPU's cycle count to the
// PPU one-for-one, and the PPU must see exactly one video frame's worth of
// dot-clock ticks per call no matter how fast the CPU itself is running.
// It returns the CpuTrap latch state so the caller can stop driving frames.
func (s *FrameStepper) Run() (trap bool) {
	const budget = cyclesPerFrame

	remaining := budget - s.overshot
	consumed := 0
	for consumed < remaining {
		cycles, trapped := s.cpu.Step()
		s.bus.Tick(cycles)
		consumed += cycles
		if trapped {
			s.overshot = 0
			return true
		}
	}
	s.overshot = consumed - remaining
	return false
}
