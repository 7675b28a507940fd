// Package trigger turns per-frame key occupancy into discrete note triggers.
package trigger

import "time"

// State is the persisted trigger state of one key.
type State struct {
	// Armed is true while no fingertip rests on the key; an armed key fires
	// on the next contact.
	Armed bool
	// LastTrigger is the time the key last fired. Zero means never.
	LastTrigger time.Time
}

// Gate tracks the Armed/Held state of every key.
//
// A key fires only on the Armed to Held transition. It re-arms once a frame
// ends with no fingertip on it and the cooldown since its last trigger has
// elapsed. Gate is not safe for concurrent use; the frame loop owns it.
type Gate struct {
	cooldown time.Duration
	states   []State
	occupied []bool
}

// NewGate creates a gate for notes keys, all armed.
func NewGate(notes int, cooldown time.Duration) *Gate {
	if notes < 0 {
		notes = 0
	}
	if cooldown < 0 {
		cooldown = 0
	}
	g := &Gate{
		cooldown: cooldown,
		states:   make([]State, notes),
		occupied: make([]bool, notes),
	}
	g.Reset()
	return g
}

// Evaluate reports a fingertip inside the key for note and returns whether
// the key fires. Unknown notes never fire.
func (g *Gate) Evaluate(note int, now time.Time) bool {
	if note < 0 || note >= len(g.states) {
		return false
	}
	g.occupied[note] = true

	s := &g.states[note]
	if !s.Armed {
		return false
	}
	s.Armed = false
	s.LastTrigger = now
	return true
}

// EndFrame closes the current frame: every held key that saw no fingertip
// re-arms if its cooldown has elapsed.
func (g *Gate) EndFrame(now time.Time) {
	for i := range g.states {
		if g.occupied[i] {
			g.occupied[i] = false
			continue
		}
		s := &g.states[i]
		if s.Armed {
			continue
		}
		if now.Sub(s.LastTrigger) >= g.cooldown {
			s.Armed = true
		}
	}
}

// State returns the state of the key for note.
func (g *Gate) State(note int) State {
	if note < 0 || note >= len(g.states) {
		return State{}
	}
	return g.states[note]
}

// Held returns the notes currently held, in ascending order.
func (g *Gate) Held() []int {
	var held []int
	for i, s := range g.states {
		if !s.Armed {
			held = append(held, i)
		}
	}
	return held
}

// Cooldown returns the minimum time between a trigger and re-arming.
func (g *Gate) Cooldown() time.Duration {
	return g.cooldown
}

// Reset re-arms every key and forgets occupancy.
func (g *Gate) Reset() {
	for i := range g.states {
		g.states[i].Armed = true
		g.occupied[i] = false
	}
}
