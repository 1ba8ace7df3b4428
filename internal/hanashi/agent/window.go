package agent

import "github.com/bdobrica/Hanashi/internal/hanashi/store"

// WindowSize is the number of turns kept in memory and sent as prompt history.
const WindowSize = 10

// Window is a bounded, chronologically ordered list of turns. Appending to a
// full window drops the oldest turn. It is owned by one actor goroutine and is
// not safe for concurrent use.
type Window struct {
	turns []store.Turn
	max   int
}

// NewWindow returns a window of capacity max seeded with the most recent of
// initial.
func NewWindow(max int, initial []store.Turn) *Window {
	if max < 1 {
		max = 1
	}
	w := &Window{turns: make([]store.Turn, 0, max), max: max}
	for _, t := range initial {
		w.Append(t)
	}
	return w
}

// Append adds t as the newest turn.
func (w *Window) Append(t store.Turn) {
	if len(w.turns) == w.max {
		copy(w.turns, w.turns[1:])
		w.turns = w.turns[:w.max-1]
	}
	w.turns = append(w.turns, t)
}

// Turns returns a copy of the turns, oldest first.
func (w *Window) Turns() []store.Turn {
	out := make([]store.Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

func (w *Window) Len() int { return len(w.turns) }

// Clear drops every turn.
func (w *Window) Clear() { w.turns = w.turns[:0] }
