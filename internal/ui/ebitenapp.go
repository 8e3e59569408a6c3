package ui

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"encoding/binary"

	"github.com/gbcore/gbcore/internal/emu"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// keymap mirrors the teacher's fixed Z/X/Enter/RightShift/arrows layout.
var keymap = map[ebiten.Key]string{
	ebiten.KeyRight:      "Right",
	ebiten.KeyLeft:       "Left",
	ebiten.KeyUp:         "Up",
	ebiten.KeyDown:       "Down",
	ebiten.KeyZ:          "A",
	ebiten.KeyX:          "B",
	ebiten.KeyEnter:      "Start",
	ebiten.KeyShiftRight: "Select",
}

type App struct {
	cfg Config
	m   *emu.Machine
	tex *ebiten.Image

	paused bool
	fast   bool

	audioCtx    *audio.Context
	audioPlayer *audio.Player
	pcm         *pcmQueue

	showMenu bool
	romList  []string
	romSel   int

	toastMsg   string
	toastUntil time.Time
}

func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(160*cfg.Scale, 144*cfg.Scale)
	a := &App{cfg: cfg, m: m}

	a.audioCtx = audio.NewContext(48000)
	a.pcm = newPCMQueue(!cfg.AudioStereo)
	if p, err := a.audioCtx.NewPlayer(a.pcm); err == nil {
		a.audioPlayer = p
		a.audioPlayer.Play()
	}

	if m != nil && m.ROMPath() == "" {
		a.showMenu = true
		a.romList = a.findROMs()
	}
	return a
}

func (a *App) Run() error { return ebiten.RunGame(a) }

// SaveSettings is a no-op hook kept for cmd/gbemu's best-effort call site.
func (a *App) SaveSettings() {}

func (a *App) Update() error {
	if a.showMenu {
		a.updateMenu()
		return nil
	}

	for key, name := range keymap {
		a.m.SetButton(name, ebiten.IsKeyPressed(key))
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	a.fast = ebiten.IsKeyPressed(ebiten.KeyTab)
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.showMenu = true
		a.romList = a.findROMs()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		ebiten.SetFullscreen(!ebiten.IsFullscreen())
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF12) {
		_ = a.saveScreenshot()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		if err := a.m.SaveStateToFile(a.statePath()); err == nil {
			a.toast("Saved state")
		} else {
			a.toast("Save failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		if err := a.m.LoadStateFromFile(a.statePath()); err == nil {
			a.toast("Loaded state")
		} else {
			a.toast("Load failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketLeft) && a.m.IsCGBCompat() {
		a.m.CycleCompatPalette(-1)
		a.toast("Palette: " + a.m.CompatPaletteName(a.m.CurrentCompatPalette()))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBracketRight) && a.m.IsCGBCompat() {
		a.m.CycleCompatPalette(+1)
		a.toast("Palette: " + a.m.CompatPaletteName(a.m.CurrentCompatPalette()))
	}

	if !a.paused && a.m.Err() == nil {
		speed := 1
		if a.fast {
			speed = 4
		}
		for i := 0; i < speed; i++ {
			a.m.RunFrame()
			a.pcm.push(a.m.AudioSamples())
		}
	}
	return nil
}

func (a *App) updateMenu() {
	n := len(a.romList)
	if n == 0 {
		if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
			a.showMenu = false
		}
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.romSel > 0 {
		a.romSel--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.romSel < n-1 {
		a.romSel++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		path := a.romList[a.romSel]
		if err := a.m.LoadROMFromFile(path); err == nil {
			if strings.HasSuffix(strings.ToLower(path), ".gb") {
				sav := strings.TrimSuffix(path, ".gb") + ".sav"
				if data, err := os.ReadFile(sav); err == nil {
					_ = a.m.LoadSaveRAM(data)
				}
			}
			title := a.cfg.Title
			if t := a.m.ROMTitle(); t != "" {
				title = a.cfg.Title + " - [" + t + "]"
			}
			ebiten.SetWindowTitle(title)
			a.showMenu = false
		} else {
			a.toast("ROM load failed: " + err.Error())
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.showMenu = false
	}
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.tex == nil {
		a.tex = ebiten.NewImage(160, 144)
	}
	a.tex.WritePixels(a.m.Framebuffer())
	screen.DrawImage(a.tex, nil)

	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 6, 4)
	}
	if err := a.m.Err(); err != nil {
		ebitenutil.DebugPrintAt(screen, "ERROR: "+err.Error(), 4, 4)
	}

	if a.showMenu {
		overlay := ebiten.NewImage(160, 144)
		overlay.Fill(color.RGBA{0, 0, 0, 160})
		screen.DrawImage(overlay, nil)
		if len(a.romList) == 0 {
			ebitenutil.DebugPrintAt(screen, "No ROMs found", 10, 10)
			return
		}
		ebitenutil.DebugPrintAt(screen, "Select ROM (Enter to load, Esc to close)", 10, 10)
		for i, p := range a.romList {
			prefix := "  "
			if i == a.romSel {
				prefix = "> "
			}
			ebitenutil.DebugPrintAt(screen, prefix+filepath.Base(p), 10, 24+i*14)
		}
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return 160, 144 }

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(2 * time.Second)
}

func (a *App) statePath() string {
	base := "unknown"
	if a.m.ROMPath() != "" {
		base = a.m.ROMPath()
	}
	return base + ".savestate"
}

func (a *App) findROMs() []string {
	var files []string
	entries, err := os.ReadDir(a.cfg.ROMsDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ln := strings.ToLower(e.Name())
			if strings.HasSuffix(ln, ".gb") || strings.HasSuffix(ln, ".gbc") {
				files = append(files, filepath.Join(a.cfg.ROMsDir, e.Name()))
			}
		}
	}
	sort.Strings(files)
	return files
}

func (a *App) saveScreenshot() error {
	fb := a.m.Framebuffer()
	img := &image.RGBA{Pix: append([]byte(nil), fb...), Stride: 4 * 160, Rect: image.Rect(0, 0, 160, 144)}
	name := fmt.Sprintf("screenshot_%s.png", time.Now().Format("20060102_150405"))
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// pcmQueue is a small thread-safe byte queue implementing io.Reader, fed by
// Machine.AudioSamples()'s int16 stereo pairs and drained by ebiten's audio
// player on its own goroutine.
type pcmQueue struct {
	mu   sync.Mutex
	buf  []byte
	mono bool
}

func newPCMQueue(mono bool) *pcmQueue { return &pcmQueue{mono: mono} }

func (q *pcmQueue) push(samples []int16) {
	if len(samples) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := 0; i+1 < len(samples); i += 2 {
		l, r := samples[i], samples[i+1]
		if q.mono {
			m := int16((int32(l) + int32(r)) / 2)
			l, r = m, m
		}
		var frame [4]byte
		binary.LittleEndian.PutUint16(frame[0:], uint16(l))
		binary.LittleEndian.PutUint16(frame[2:], uint16(r))
		q.buf = append(q.buf, frame[:]...)
	}
	// cap buffered audio to ~200ms to avoid unbounded latency growth
	const maxBytes = 48000 * 4 * 200 / 1000
	if len(q.buf) > maxBytes {
		q.buf = q.buf[len(q.buf)-maxBytes:]
	}
}

func (q *pcmQueue) Read(p []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := copy(p, q.buf)
	q.buf = q.buf[n:]
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}
