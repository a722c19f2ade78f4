package tui

import (
	"sync"
	"time"
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/signalsfoundry/orrery/core"
)

// DefaultHold is how long a single key press keeps its input held.
// Terminals report key repeats but never key releases, so a held key is
// one that was pressed recently.
const DefaultHold = 150 * time.Millisecond

type direction int

const (
	dirTurnLeft direction = iota
	dirTurnRight
	dirForward
	dirBack
	numDirections
)

// Latch turns terminal key presses into the four held walker inputs.
// It is safe for concurrent use: keys arrive on the event goroutine and
// Input is read on the simulation goroutine.
type Latch struct {
	mu      sync.Mutex
	hold    time.Duration
	pressed [numDirections]time.Time
	now     func() time.Time
}

// NewLatch returns a latch that holds each input for hold after its last
// press. A non-positive hold uses DefaultHold.
func NewLatch(hold time.Duration) *Latch {
	if hold <= 0 {
		hold = DefaultHold
	}
	return &Latch{hold: hold, now: time.Now}
}

// Press records a key event. It reports whether the key is a movement key.
func (l *Latch) Press(ev *tcell.EventKey) bool {
	d, ok := directionOf(ev)
	if !ok {
		return false
	}
	l.mu.Lock()
	l.pressed[d] = l.now()
	l.mu.Unlock()
	return true
}

// Release drops every held input.
func (l *Latch) Release() {
	l.mu.Lock()
	l.pressed = [numDirections]time.Time{}
	l.mu.Unlock()
}

// Input returns the inputs currently held.
func (l *Latch) Input() core.WalkInput {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	held := func(d direction) bool {
		t := l.pressed[d]
		return !t.IsZero() && now.Sub(t) < l.hold
	}
	return core.WalkInput{
		TurnLeft:  held(dirTurnLeft),
		TurnRight: held(dirTurnRight),
		Forward:   held(dirForward),
		Back:      held(dirBack),
	}
}

func directionOf(ev *tcell.EventKey) (direction, bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		return dirForward, true
	case tcell.KeyDown:
		return dirBack, true
	case tcell.KeyLeft:
		return dirTurnLeft, true
	case tcell.KeyRight:
		return dirTurnRight, true
	case tcell.KeyRune:
		switch unicode.ToLower(ev.Rune()) {
		case 'w':
			return dirForward, true
		case 's':
			return dirBack, true
		case 'a':
			return dirTurnLeft, true
		case 'd':
			return dirTurnRight, true
		}
	}
	return 0, false
}
