package engine

import "keyway/internal/chord"

// PauseState is Capturing or Paused.
type PauseState uint8

const (
	Capturing PauseState = iota
	Paused
)

func (s PauseState) String() string {
	if s == Paused {
		return "paused"
	}
	return "capturing"
}

// PauseController toggles capture when the pause hotkey chord is finalized.
// The hotkey itself is never displayed.
type PauseController struct {
	state    PauseState
	hotkey   chord.Chord
	listener func(PauseState)
}

// NewPauseController returns a capturing controller for hotkey.
func NewPauseController(hotkey chord.Chord) *PauseController {
	return &PauseController{hotkey: hotkey}
}

// SetHotkey replaces the hotkey. The pause state is kept.
func (p *PauseController) SetHotkey(c chord.Chord) { p.hotkey = c }

// Hotkey returns the configured hotkey.
func (p *PauseController) Hotkey() chord.Chord { return p.hotkey }

// OnChange registers fn to be called after every state change.
func (p *PauseController) OnChange(fn func(PauseState)) { p.listener = fn }

// State returns the current state.
func (p *PauseController) State() PauseState { return p.state }

// Paused reports whether capture is off.
func (p *PauseController) Paused() bool { return p.state == Paused }

// Check toggles the state if c is exactly the hotkey and reports whether c
// was consumed.
func (p *PauseController) Check(c chord.Chord) bool {
	if !p.hotkey.Complete() || c != p.hotkey {
		return false
	}
	p.Toggle()
	return true
}

// Toggle flips the state and notifies the listener.
func (p *PauseController) Toggle() {
	p.Set(p.state != Paused)
}

// Set forces the state and notifies the listener if it changed.
func (p *PauseController) Set(paused bool) {
	next := Capturing
	if paused {
		next = Paused
	}
	if next == p.state {
		return
	}
	p.state = next
	if p.listener != nil {
		p.listener(next)
	}
}
