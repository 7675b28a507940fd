// Package voice decides which audio voice plays, stops or restarts when a
// key fires.
package voice

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/ayusman/airpiano/internal/audio"
)

// Policy selects how many voices may sound at once.
type Policy int

const (
	// Monophonic keeps a single global voice: firing a key stops whatever
	// other voice is playing.
	Monophonic Policy = iota
	// Polyphonic gives every key its own independent voice.
	Polyphonic
)

func (p Policy) String() string {
	if p == Polyphonic {
		return "poly"
	}
	return "mono"
}

// ParsePolicy parses "mono" or "poly", ignoring case.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "mono":
		return Monophonic, nil
	case "poly":
		return Polyphonic, nil
	default:
		return Monophonic, fmt.Errorf("unknown voice policy %q (must be 'mono' or 'poly')", s)
	}
}

// Slot is the voice resource of one note.
type Slot struct {
	Note    int
	Path    string
	Handle  audio.Handle
	Loaded  bool
	Playing bool // best-effort mirror of the engine state
}

// Outcome describes what the arbiter did for one fire event.
type Outcome struct {
	Note    int
	Stopped int // note whose voice was stopped first, -1 if none
	Played  bool
	Err     error
}

// Arbiter maps fired notes to voice slots and issues engine commands.
// It is not safe for concurrent use; the frame loop owns it.
type Arbiter struct {
	engine audio.Engine
	policy Policy
	slots  []Slot
	active int
}

// NewArbiter creates an arbiter with one empty slot per note.
func NewArbiter(engine audio.Engine, policy Policy, notes int) *Arbiter {
	if notes < 0 {
		notes = 0
	}
	slots := make([]Slot, notes)
	for i := range slots {
		slots[i].Note = i
	}
	return &Arbiter{
		engine: engine,
		policy: policy,
		slots:  slots,
		active: -1,
	}
}

// Policy returns the arbiter's voice policy.
func (a *Arbiter) Policy() Policy {
	return a.policy
}

// Load assigns the resource at path to the slot for note. On failure the
// slot stays unloaded; the key still works for hit-testing but never sounds.
func (a *Arbiter) Load(note int, path string) error {
	if note < 0 || note >= len(a.slots) {
		return fmt.Errorf("load note %d: out of range", note)
	}

	s := &a.slots[note]
	s.Path = path
	s.Loaded = false
	s.Playing = false

	h, err := a.engine.Load(path)
	if err != nil {
		return fmt.Errorf("load note %d from %s: %w", note, path, err)
	}
	s.Handle = h
	s.Loaded = true
	return nil
}

// LoadBank loads every note to path assignment and returns how many slots
// loaded. Failures are logged and skipped.
func (a *Arbiter) LoadBank(bank map[int]string) int {
	notes := make([]int, 0, len(bank))
	for n := range bank {
		notes = append(notes, n)
	}
	sort.Ints(notes)

	loaded := 0
	for _, n := range notes {
		if err := a.Load(n, bank[n]); err != nil {
			log.Printf("Voice unavailable: %v", err)
			continue
		}
		loaded++
	}
	return loaded
}

// OnFire plays the voice for note.
//
// Under Monophonic, a different voice marked playing is stopped first and
// the fired voice becomes the only active one. A note firing again while its
// own voice plays restarts it. An unloaded slot or a failed play drops the
// event and leaves the slot silent.
func (a *Arbiter) OnFire(note int) Outcome {
	out := Outcome{Note: note, Stopped: -1}

	if note < 0 || note >= len(a.slots) {
		out.Err = fmt.Errorf("fire note %d: %w", note, audio.ErrUnavailable)
		return out
	}
	s := &a.slots[note]
	if !s.Loaded {
		out.Err = fmt.Errorf("fire note %d: %w", note, audio.ErrUnavailable)
		return out
	}

	if a.policy == Monophonic && a.active >= 0 && a.active != note {
		prev := &a.slots[a.active]
		if prev.Playing {
			if err := a.engine.Stop(prev.Handle); err != nil {
				log.Printf("Error stopping note %d: %v", prev.Note, err)
			}
			prev.Playing = false
			out.Stopped = prev.Note
		}
		a.active = -1
	}

	if err := a.engine.Play(s.Handle); err != nil {
		s.Playing = false
		if a.active == note {
			a.active = -1
		}
		out.Err = fmt.Errorf("play note %d: %w", note, err)
		return out
	}

	s.Playing = true
	out.Played = true
	if a.policy == Monophonic {
		a.active = note
	}
	return out
}

// Sync clears the playing mark of voices the engine reports as finished.
func (a *Arbiter) Sync() {
	for i := range a.slots {
		s := &a.slots[i]
		if s.Playing && !a.engine.IsPlaying(s.Handle) {
			s.Playing = false
			if a.active == i {
				a.active = -1
			}
		}
	}
}

// Active returns the note of the active voice under Monophonic, or -1.
func (a *Arbiter) Active() int {
	return a.active
}

// Slot returns a copy of the slot for note.
func (a *Arbiter) Slot(note int) (Slot, bool) {
	if note < 0 || note >= len(a.slots) {
		return Slot{}, false
	}
	return a.slots[note], true
}

// Slots returns a copy of every slot.
func (a *Arbiter) Slots() []Slot {
	out := make([]Slot, len(a.slots))
	copy(out, a.slots)
	return out
}

// Playing returns the notes currently marked playing.
func (a *Arbiter) Playing() []int {
	var notes []int
	for _, s := range a.slots {
		if s.Playing {
			notes = append(notes, s.Note)
		}
	}
	return notes
}

// Close stops every playing voice. The engine itself stays open.
func (a *Arbiter) Close() error {
	var firstErr error
	for i := range a.slots {
		s := &a.slots[i]
		if !s.Playing {
			continue
		}
		if err := a.engine.Stop(s.Handle); err != nil && firstErr == nil {
			firstErr = err
		}
		s.Playing = false
	}
	a.active = -1
	return firstErr
}
