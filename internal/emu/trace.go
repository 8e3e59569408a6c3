package emu

import (
	"log"
	"os"
)

// tracer is the teacher's ad-hoc Printf-gated debug idiom formalized as a
// tiny wrapper instead of a structured logging library, matching the
// teacher's own choice (cmd/gbemu and cmd/cpurunner use stdlib "log" too).
type tracer struct {
	*log.Logger
	enabled bool
}

func newTracer(enabled bool) *tracer {
	if os.Getenv("GBCORE_DEBUG_TIMER") != "" {
		enabled = true
	}
	return &tracer{Logger: log.New(os.Stderr, "gbcore: ", log.Ltime|log.Lmicroseconds), enabled: enabled}
}

func (t *tracer) Printf(format string, args ...any) {
	if t == nil || !t.enabled {
		return
	}
	t.Logger.Printf(format, args...)
}
