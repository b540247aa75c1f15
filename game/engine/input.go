package engine

import (
	"sync"
)

// Button is a logical control
type Button string

const (
	ButtonForward  Button = "forward"
	ButtonBackward Button = "backward"
	ButtonLeft     Button = "left"
	ButtonRight    Button = "right"
	ButtonSprint   Button = "sprint"
	ButtonPause    Button = "pause"
	ButtonCenter   Button = "center"
)

// KeyMap maps key codes, as reported by browsers in KeyboardEvent.code, to
// logical buttons
type KeyMap map[string]Button

// DefaultKeyMap is WASD plus the arrow keys
func DefaultKeyMap() KeyMap {
	return KeyMap{
		"KeyW":       ButtonForward,
		"ArrowUp":    ButtonForward,
		"KeyS":       ButtonBackward,
		"ArrowDown":  ButtonBackward,
		"KeyA":       ButtonLeft,
		"ArrowLeft":  ButtonLeft,
		"KeyD":       ButtonRight,
		"ArrowRight": ButtonRight,
		"ShiftLeft":  ButtonSprint,
		"ShiftRight": ButtonSprint,
		"Escape":     ButtonPause,
		"KeyC":       ButtonCenter,
	}
}

// Snapshot builds an InputSnapshot from the keys currently held. Unknown
// codes are ignored; logical button names are accepted as well.
func (m KeyMap) Snapshot(pressed []string) InputSnapshot {
	var in InputSnapshot
	for _, code := range pressed {
		b, ok := m[code]
		if !ok {
			b = Button(code)
		}
		in = in.With(b)
	}
	return in
}

// With returns a copy of the snapshot with b held
func (in InputSnapshot) With(b Button) InputSnapshot {
	switch b {
	case ButtonForward:
		in.Forward = true
	case ButtonBackward:
		in.Backward = true
	case ButtonLeft:
		in.Left = true
	case ButtonRight:
		in.Right = true
	case ButtonSprint:
		in.Sprint = true
	case ButtonPause:
		in.Pause = true
	case ButtonCenter:
		in.Center = true
	}
	return in
}

// LatchedInput holds the most recent snapshot set by a transport. Each frame
// reads a copy.
type LatchedInput struct {
	mu   sync.RWMutex
	snap InputSnapshot
}

// NewLatchedInput creates an input source with nothing held
func NewLatchedInput() *LatchedInput {
	return &LatchedInput{}
}

// Set replaces the held buttons
func (l *LatchedInput) Set(in InputSnapshot) {
	l.mu.Lock()
	l.snap = in
	l.mu.Unlock()
}

// Release clears every button
func (l *LatchedInput) Release() {
	l.Set(InputSnapshot{})
}

// Snapshot returns the held buttons
func (l *LatchedInput) Snapshot() InputSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snap
}
