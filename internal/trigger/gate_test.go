package trigger

import (
	"testing"
	"time"
)

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

// frame simulates one frame in which the given notes are occupied and
// returns the notes that fired.
func frame(g *Gate, now time.Time, notes ...int) []int {
	var fired []int
	for _, n := range notes {
		if g.Evaluate(n, now) {
			fired = append(fired, n)
		}
	}
	g.EndFrame(now)
	return fired
}

func TestNewGate(t *testing.T) {
	g := NewGate(24, 0)

	for i := 0; i < 24; i++ {
		s := g.State(i)
		if !s.Armed {
			t.Errorf("key %d should start armed", i)
		}
		if !s.LastTrigger.IsZero() {
			t.Errorf("key %d should start with no trigger time", i)
		}
	}
	if len(g.Held()) != 0 {
		t.Errorf("expected no held keys, got %v", g.Held())
	}
}

func TestGate_FiresOncePerDwell(t *testing.T) {
	g := NewGate(24, 0)

	var fires int
	for i := 0; i < 30; i++ {
		now := t0.Add(time.Duration(i) * 33 * time.Millisecond)
		fires += len(frame(g, now, 7))
		if i == 0 && fires != 1 {
			t.Fatalf("expected fire on the first frame of contact")
		}
	}

	if fires != 1 {
		t.Errorf("expected exactly 1 fire over a continuous dwell, got %d", fires)
	}
	if g.State(7).Armed {
		t.Error("key should be held while the finger rests on it")
	}
	if !g.State(7).LastTrigger.Equal(t0) {
		t.Errorf("expected last trigger at %v, got %v", t0, g.State(7).LastTrigger)
	}
}

func TestGate_ReentryFiresAgain(t *testing.T) {
	g := NewGate(24, 0)

	frame(g, t0, 3)
	frame(g, t0.Add(33*time.Millisecond), 3)
	frame(g, t0.Add(66*time.Millisecond)) // finger leaves

	if !g.State(3).Armed {
		t.Fatal("key should re-arm after an empty frame")
	}

	fired := frame(g, t0.Add(99*time.Millisecond), 3)
	if len(fired) != 1 || fired[0] != 3 {
		t.Errorf("expected re-entry to fire key 3, got %v", fired)
	}
}

func TestGate_Scenario(t *testing.T) {
	// Key 0 for 5 frames, key 2 for 3 frames, then back to key 0.
	g := NewGate(24, 0)

	var sequence []int
	step := 0
	run := func(note, frames int) {
		for i := 0; i < frames; i++ {
			now := t0.Add(time.Duration(step) * 33 * time.Millisecond)
			sequence = append(sequence, frame(g, now, note)...)
			step++
		}
	}

	run(0, 5)
	run(2, 3)
	run(0, 1)

	want := []int{0, 2, 0}
	if len(sequence) != len(want) {
		t.Fatalf("expected fires %v, got %v", want, sequence)
	}
	for i := range want {
		if sequence[i] != want[i] {
			t.Errorf("fire %d: expected key %d, got %d", i, want[i], sequence[i])
		}
	}
}

func TestGate_Cooldown(t *testing.T) {
	g := NewGate(24, 200*time.Millisecond)

	frame(g, t0, 5)

	t.Run("exit before cooldown keeps key held", func(t *testing.T) {
		frame(g, t0.Add(50*time.Millisecond))
		if g.State(5).Armed {
			t.Error("key should stay held until the cooldown elapses")
		}

		fired := frame(g, t0.Add(100*time.Millisecond), 5)
		if len(fired) != 0 {
			t.Errorf("expected no fire during cooldown, got %v", fired)
		}
	})

	t.Run("finger still inside after cooldown keeps key held", func(t *testing.T) {
		frame(g, t0.Add(300*time.Millisecond), 5)
		if g.State(5).Armed {
			t.Error("key should stay held while occupied")
		}
	})

	t.Run("exit after cooldown re-arms", func(t *testing.T) {
		frame(g, t0.Add(400*time.Millisecond))
		if !g.State(5).Armed {
			t.Fatal("key should re-arm once empty and the cooldown has elapsed")
		}

		fired := frame(g, t0.Add(433*time.Millisecond), 5)
		if len(fired) != 1 {
			t.Errorf("expected re-entry to fire, got %v", fired)
		}
	})
}

func TestGate_KeysAreIndependent(t *testing.T) {
	g := NewGate(24, 0)

	frame(g, t0, 1)
	fired := frame(g, t0.Add(33*time.Millisecond), 1, 4)

	if len(fired) != 1 || fired[0] != 4 {
		t.Errorf("expected only key 4 to fire, got %v", fired)
	}
	if g.State(1).Armed || g.State(4).Armed {
		t.Error("both occupied keys should be held")
	}
	for _, n := range []int{0, 2, 3, 5} {
		if !g.State(n).Armed {
			t.Errorf("untouched key %d should stay armed", n)
		}
	}
}

func TestGate_SameKeyTwiceInOneFrame(t *testing.T) {
	g := NewGate(24, 0)

	if !g.Evaluate(9, t0) {
		t.Fatal("first fingertip should fire")
	}
	if g.Evaluate(9, t0) {
		t.Error("second fingertip on the same key in the same frame should not fire")
	}
	g.EndFrame(t0)

	if g.State(9).Armed {
		t.Error("key should be held after the frame")
	}
}

func TestGate_UnknownNotes(t *testing.T) {
	g := NewGate(12, 0)

	for _, n := range []int{-1, 12, 100} {
		if g.Evaluate(n, t0) {
			t.Errorf("note %d should never fire", n)
		}
		if s := g.State(n); s.Armed || !s.LastTrigger.IsZero() {
			t.Errorf("note %d should report a zero state, got %+v", n, s)
		}
	}
	g.EndFrame(t0)
}

func TestGate_Reset(t *testing.T) {
	g := NewGate(12, time.Hour)

	frame(g, t0, 0, 4, 7)
	if got := g.Held(); len(got) != 3 {
		t.Fatalf("expected 3 held keys, got %v", got)
	}

	g.Reset()
	if got := g.Held(); len(got) != 0 {
		t.Errorf("expected no held keys after reset, got %v", got)
	}
}
