// Package tas implements the host-side recorder/player for the TAS
// (tool-assisted-speedrun) input file contract: a JSON document listing,
// per frame, only the frames where the active button set changed. The
// core itself stays decoupled from recording — it just reports which
// buttons are down on a given frame; this package turns that stream into
// the on-disk format and back.
package tas

import (
	"encoding/json"
	"fmt"
	"sort"
)

const schemaVersion = "1.0"

// validButtons mirrors internal/bus's Joyp* constants by name, since the
// JSON schema names buttons as strings rather than bitmasks.
var validButtons = map[string]bool{
	"A": true, "B": true, "Start": true, "Select": true,
	"Up": true, "Down": true, "Left": true, "Right": true,
}

// InvalidTasRecordingError reports a malformed recording: bad JSON shape,
// an unknown button name, or non-monotonic frame indices.
type InvalidTasRecordingError struct {
	Reason string
}

func (e *InvalidTasRecordingError) Error() string { return "invalid tas recording: " + e.Reason }

// InputRow is one change-only entry: the active button set as of Frame,
// held until the next row (or end of recording).
type InputRow struct {
	Frame   int      `json:"frame"`
	Buttons []string `json:"buttons"`
}

// Recording is the full JSON document described by the TAS file contract.
type Recording struct {
	Version string     `json:"version"`
	Frames  int        `json:"frames"`
	Inputs  []InputRow `json:"inputs"`
}

// Recorder accumulates change-only rows as the host steps frames forward.
// Record must be called with non-decreasing frame numbers.
type Recorder struct {
	rows   []InputRow
	last   []string
	frames int
}

func NewRecorder() *Recorder { return &Recorder{} }

// Record reports the set of buttons active on frame. A row is only
// appended when the active set differs from the previous call; buttons
// is sorted and de-duplicated before comparison and storage so recordings
// are stable regardless of the order the host polled them in.
func (r *Recorder) Record(frame int, active []string) {
	sorted := sortedUnique(active)
	if r.frames < frame+1 {
		r.frames = frame + 1
	}
	if equalStrings(sorted, r.last) {
		return
	}
	r.rows = append(r.rows, InputRow{Frame: frame, Buttons: sorted})
	r.last = sorted
}

// JSON renders the accumulated recording in the schema's wire format.
func (r *Recorder) JSON() ([]byte, error) {
	rec := Recording{Version: schemaVersion, Frames: r.frames, Inputs: r.rows}
	return json.Marshal(rec)
}

// Player replays a loaded recording, expanding its change-only rows into
// a per-frame active-button query.
type Player struct {
	rec      Recording
	rowIdx   int
	active   map[string]bool
	lastRead int
}

// Load parses and validates data against the TAS schema: well-formed
// JSON, every button name recognized, and frame indices strictly
// non-decreasing across rows.
func Load(data []byte) (*Player, error) {
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &InvalidTasRecordingError{Reason: err.Error()}
	}
	if rec.Version != schemaVersion {
		return nil, &InvalidTasRecordingError{Reason: fmt.Sprintf("unsupported version %q", rec.Version)}
	}
	lastFrame := -1
	for _, row := range rec.Inputs {
		if row.Frame < lastFrame {
			return nil, &InvalidTasRecordingError{Reason: "non-monotonic frame index"}
		}
		lastFrame = row.Frame
		seen := make(map[string]bool, len(row.Buttons))
		for _, btn := range row.Buttons {
			if !validButtons[btn] {
				return nil, &InvalidTasRecordingError{Reason: fmt.Sprintf("unknown button %q", btn)}
			}
			if seen[btn] {
				return nil, &InvalidTasRecordingError{Reason: fmt.Sprintf("duplicate button %q in one row", btn)}
			}
			seen[btn] = true
		}
	}
	return &Player{rec: rec, active: map[string]bool{}, lastRead: -1}, nil
}

// ActiveButtons returns the sorted set of buttons held on frame. frame
// must be non-decreasing across calls, mirroring the recorder's contract.
func (p *Player) ActiveButtons(frame int) ([]string, error) {
	if frame < p.lastRead {
		return nil, &InvalidTasRecordingError{Reason: "playback frame went backwards"}
	}
	p.lastRead = frame
	for p.rowIdx < len(p.rec.Inputs) && p.rec.Inputs[p.rowIdx].Frame <= frame {
		row := p.rec.Inputs[p.rowIdx]
		p.active = make(map[string]bool, len(row.Buttons))
		for _, btn := range row.Buttons {
			p.active[btn] = true
		}
		p.rowIdx++
	}
	out := make([]string, 0, len(p.active))
	for btn := range p.active {
		out = append(out, btn)
	}
	sort.Strings(out)
	return out, nil
}

// TotalFrames reports the recording's declared frame count.
func (p *Player) TotalFrames() int { return p.rec.Frames }

func sortedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
