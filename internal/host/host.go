// Package host wires the emulation core to a real window, keyboard and
// audio backend, splitting responsibility between "the emulator" and
// "the GUI shell": the core (internal/bus and everything under it) never
// imports this package, only narrow function-object interfaces (pixel
// sink, button-poll, audio pull-callback).
package host

import (
	"errors"
	"image"
	"image/color"
	"log"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"nescore/internal/bus"
	"nescore/internal/input"
	"nescore/internal/neserr"
)

// errQuit is returned from Update to unwind ebiten.RunGame cleanly on
// Escape or a window close request, a distinguished sentinel error that
// stops the loop.
var errQuit = errors.New("host: quit requested")

// Config collects the CLI-level presentation options: scale, fullscreen,
// and filtering.
type Config struct {
	Scale      int
	Fullscreen bool
	Linear     bool
	Debug      bool
}

// pad1Keys binds one NES pad button to a keyboard key. Controller 2 has
// no keyboard binding; it is reachable only for automated tests.
var pad1Keys = map[ebiten.Key]input.Button{
	ebiten.KeyZ:          input.ButtonA,
	ebiten.KeyX:          input.ButtonB,
	ebiten.KeyShiftRight: input.ButtonSelect,
	ebiten.KeyEnter:      input.ButtonStart,
	ebiten.KeyArrowUp:    input.ButtonUp,
	ebiten.KeyArrowDown:  input.ButtonDown,
	ebiten.KeyArrowLeft:  input.ButtonLeft,
	ebiten.KeyArrowRight: input.ButtonRight,
}

// Host owns the bus and implements ebiten.Game: one Update per host
// frame runs the core until it signals frame-complete, one Draw blits
// the resulting framebuffer.
type Host struct {
	Bus *bus.Bus
	cfg Config

	heldKeys map[ebiten.Key]bool
	frame    *ebiten.Image
	pixels   *image.RGBA

	quitRequested bool
	debug         bool
}

// New constructs a Host around an already-Init'd bus and wires the
// button-poll query.
func New(b *bus.Bus, cfg Config) *Host {
	h := &Host{
		Bus:      b,
		cfg:      cfg,
		heldKeys: make(map[ebiten.Key]bool),
		frame:    ebiten.NewImage(256, 240),
		pixels:   image.NewRGBA(image.Rect(0, 0, 256, 240)),
		debug:    cfg.Debug,
	}
	b.SetButtonSource(h.getButton)
	return h
}

// getButton implements input.GetButtonFunc: controller 1 reads the
// live keyboard state; controller 2 has no keyboard binding and always
// reads released.
func (h *Host) getButton(controller int, button input.Button) bool {
	if controller != 0 {
		return false
	}
	for key, b := range pad1Keys {
		if b == button {
			return h.heldKeys[key]
		}
	}
	return false
}

// pollHotkeys handles host-level hotkeys: F11 toggles fullscreen, R
// triggers a RESET. Both are handled here rather than surfaced to the
// core.
func (h *Host) pollHotkeys() {
	if inpututil.IsKeyJustPressed(ebiten.KeyF11) {
		h.cfg.Fullscreen = !h.cfg.Fullscreen
		ebiten.SetFullscreen(h.cfg.Fullscreen)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		h.Bus.Reset()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		h.quitRequested = true
	}
}

// Update implements ebiten.Game.Update: runs the core one host frame at
// a time. Ebiten's own fixed-tick game loop supplies the 60Hz pacing, so
// Update does no sleeping of its own.
func (h *Host) Update() error {
	for key := range pad1Keys {
		h.heldKeys[key] = ebiten.IsKeyPressed(key)
	}
	h.pollHotkeys()

	if h.quitRequested {
		return errQuit
	}

	for !h.Bus.Cycle() {
	}
	return nil
}

// Draw implements ebiten.Game.Draw: presents the current framebuffer
// (pacing itself is ebiten's job, see Update).
func (h *Host) Draw(screen *ebiten.Image) {
	fb := h.Bus.FrameBuffer()
	for i, pixel := range fb {
		r := uint8(pixel >> 16)
		g := uint8(pixel >> 8)
		b := uint8(pixel)
		h.pixels.Pix[i*4+0] = r
		h.pixels.Pix[i*4+1] = g
		h.pixels.Pix[i*4+2] = b
		h.pixels.Pix[i*4+3] = 0xFF
	}
	h.frame.ReplacePixels(h.pixels.Pix)

	op := &ebiten.DrawImageOptions{}
	scale := float64(h.cfg.Scale)
	if scale < 1 {
		scale = 1
	}
	op.GeoM.Scale(scale, scale)
	if h.cfg.Linear {
		op.Filter = ebiten.FilterLinear
	} else {
		op.Filter = ebiten.FilterNearest
	}
	screen.Fill(color.Black)
	screen.DrawImage(h.frame, op)
}

// Layout implements ebiten.Game.Layout: a fixed 256x240 logical
// resolution scaled by cfg.Scale.
func (h *Host) Layout(outsideWidth, outsideHeight int) (int, int) {
	scale := h.cfg.Scale
	if scale < 1 {
		scale = 1
	}
	return 256 * scale, 240 * scale
}

// Run boots the ebiten window and blocks until the window closes or a
// quit is requested (Escape, or the window's own close button). It
// translates ebiten's return into the three-way neserr.Outcome.
func (h *Host) Run(title string) (neserr.Outcome, error) {
	ebiten.SetWindowTitle(title)
	w, ht := h.Layout(0, 0)
	ebiten.SetWindowSize(w, ht)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetFullscreen(h.cfg.Fullscreen)

	err := ebiten.RunGame(h)
	if h.debug {
		log.Printf("host: stopped at frame %d, master cycle %d", h.Bus.PPU.GetFrameCount(), h.Bus.MasterCycle())
	}
	if err == nil || errors.Is(err, errQuit) {
		return neserr.Quit, nil
	}
	return neserr.Failure, neserr.Wrap(neserr.KindHostService, err, "running ebiten game loop")
}
