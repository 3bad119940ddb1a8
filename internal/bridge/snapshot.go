package bridge

import (
	"sync"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/proboterror/SMD2GC/hidcore"
	"github.com/proboterror/SMD2GC/internal/joybussim"
)

// Canonical gamepad control IDs this bridge's presets.yml entries are
// expected to target with their "control" field. Control-ID meaning
// is left entirely up to the caller; these constants are this
// bridge's concretization of that caller (see DESIGN.md).
const (
	ControlStickX uint32 = iota + 1
	ControlStickY
	ControlCStickX
	ControlCStickY
	ControlLTrigger
	ControlRTrigger
	ControlButtonA
	ControlButtonB
	ControlButtonX
	ControlButtonY
	ControlButtonStart
	ControlButtonL
	ControlButtonR
	ControlButtonZ
	ControlDPadUp
	ControlDPadDown
	ControlDPadLeft
	ControlDPadRight
)

// MouseState is the last-flushed mouse delta/button state.
type MouseState struct {
	DX, DY, DZ int16
	Buttons    uint8
}

// Snapshot is the process-wide published state hidcore.Parser's
// callbacks write into and joybussim.Console's poll reads back out
// of. Grounded on internal/hidsvc.Service's use of
// xsync.MapOf for concurrently-updated device state.
type Snapshot struct {
	gamepad  *xsync.MapOf[uint32, uint32]
	keyboard *xsync.MapOf[uint8, bool]

	mu    sync.Mutex
	mouse MouseState
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		gamepad:  xsync.NewMapOf[uint32, uint32](),
		keyboard: xsync.NewMapOf[uint8, bool](),
	}
}

func (s *Snapshot) onGamepad(control uint32, value uint32) {
	s.gamepad.Store(control, value)
}

func (s *Snapshot) onKeyboard(scancode uint8, pressed bool) {
	if pressed {
		s.keyboard.Store(scancode, true)
	} else {
		s.keyboard.Delete(scancode)
	}
}

func (s *Snapshot) onMouse(dx, dy, dz int16, buttons uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mouse.DX += dx
	s.mouse.DY += dy
	s.mouse.DZ += dz
	s.mouse.Buttons = buttons
}

// Callbacks returns the hidcore.Callbacks this Snapshot answers to;
// hand it to every Parser reading from any connected USB HID source.
func (s *Snapshot) Callbacks() hidcore.Callbacks {
	return hidcore.Callbacks{
		Gamepad:  s.onGamepad,
		Keyboard: s.onKeyboard,
		Mouse:    s.onMouse,
	}
}

func (s *Snapshot) gamepadValue(control uint32) uint8 {
	v, _ := s.gamepad.Load(control)
	return uint8(v)
}

func (s *Snapshot) gamepadPressed(control uint32) bool {
	v, _ := s.gamepad.Load(control)
	return v != 0
}

// GCReport translates the currently published gamepad control values
// into a joybussim.GCReport, ready for Console.EnterMode's poll
// callback.
func (s *Snapshot) GCReport() joybussim.GCReport {
	return joybussim.GCReport{
		A:     s.gamepadPressed(ControlButtonA),
		B:     s.gamepadPressed(ControlButtonB),
		X:     s.gamepadPressed(ControlButtonX),
		Y:     s.gamepadPressed(ControlButtonY),
		Start: s.gamepadPressed(ControlButtonStart),
		L:     s.gamepadPressed(ControlButtonL),
		R:     s.gamepadPressed(ControlButtonR),
		Z:     s.gamepadPressed(ControlButtonZ),

		DPadUp:    s.gamepadPressed(ControlDPadUp),
		DPadDown:  s.gamepadPressed(ControlDPadDown),
		DPadLeft:  s.gamepadPressed(ControlDPadLeft),
		DPadRight: s.gamepadPressed(ControlDPadRight),

		StickX:   s.gamepadValue(ControlStickX),
		StickY:   s.gamepadValue(ControlStickY),
		CStickX:  s.gamepadValue(ControlCStickX),
		CStickY:  s.gamepadValue(ControlCStickY),
		LTrigger: s.gamepadValue(ControlLTrigger),
		RTrigger: s.gamepadValue(ControlRTrigger),
	}
}

func (s *Snapshot) KeyPressed(scancode uint8) bool {
	v, _ := s.keyboard.Load(scancode)
	return v
}

func (s *Snapshot) MouseState() MouseState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mouse
}
