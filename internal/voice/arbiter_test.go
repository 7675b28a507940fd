package voice

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ayusman/airpiano/internal/audio"
)

func newTestArbiter(t *testing.T, policy Policy, notes int) (*Arbiter, *audio.MockEngine) {
	t.Helper()

	engine := audio.NewMockEngine()
	a := NewArbiter(engine, policy, notes)
	for n := 0; n < notes; n++ {
		if err := a.Load(n, fmt.Sprintf("voice%d", n)); err != nil {
			t.Fatalf("Load(%d) error = %v", n, err)
		}
	}
	return a, engine
}

func assertCommands(t *testing.T, engine *audio.MockEngine, want ...string) {
	t.Helper()

	got := engine.Commands()
	if len(got) != len(want) {
		t.Fatalf("expected commands %v, got %v", want, got)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("command %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"mono", Monophonic, false},
		{"Poly", Polyphonic, false},
		{"", Monophonic, true},
		{"monophonic", Monophonic, true},
		{"polyphonic", Monophonic, true},
		{"stereo", Monophonic, true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestArbiter_Monophonic(t *testing.T) {
	t.Run("first fire only plays", func(t *testing.T) {
		a, engine := newTestArbiter(t, Monophonic, 12)

		out := a.OnFire(0)
		if !out.Played || out.Stopped != -1 || out.Err != nil {
			t.Errorf("unexpected outcome %+v", out)
		}
		assertCommands(t, engine, "play(voice0)")
		if a.Active() != 0 {
			t.Errorf("expected active voice 0, got %d", a.Active())
		}
	})

	t.Run("new key stops the playing voice first", func(t *testing.T) {
		a, engine := newTestArbiter(t, Monophonic, 12)

		a.OnFire(1)
		engine.ResetCommands()

		out := a.OnFire(0)
		if out.Stopped != 1 || !out.Played {
			t.Errorf("unexpected outcome %+v", out)
		}
		assertCommands(t, engine, "stop(voice1)", "play(voice0)")
	})

	t.Run("same key restarts without a stop", func(t *testing.T) {
		a, engine := newTestArbiter(t, Monophonic, 12)

		a.OnFire(4)
		out := a.OnFire(4)
		if out.Stopped != -1 || !out.Played {
			t.Errorf("unexpected outcome %+v", out)
		}
		assertCommands(t, engine, "play(voice4)", "play(voice4)")
	})

	t.Run("finished voice is not stopped", func(t *testing.T) {
		a, engine := newTestArbiter(t, Monophonic, 12)

		a.OnFire(2)
		slot, _ := a.Slot(2)
		engine.Finish(slot.Handle)
		a.Sync()
		engine.ResetCommands()

		out := a.OnFire(3)
		if out.Stopped != -1 {
			t.Errorf("expected no stop for a finished voice, got %+v", out)
		}
		assertCommands(t, engine, "play(voice3)")
	})

	t.Run("at most one voice marked playing", func(t *testing.T) {
		a, _ := newTestArbiter(t, Monophonic, 24)

		for _, n := range []int{0, 5, 5, 7, 23, 1, 0, 12, 12, 3} {
			a.OnFire(n)
			if playing := a.Playing(); len(playing) > 1 {
				t.Fatalf("after firing %d: %d voices marked playing: %v", n, len(playing), playing)
			}
		}
		if playing := a.Playing(); len(playing) != 1 || playing[0] != 3 {
			t.Errorf("expected only voice 3 playing, got %v", playing)
		}
	})
}

func TestArbiter_Polyphonic(t *testing.T) {
	a, engine := newTestArbiter(t, Polyphonic, 12)

	a.OnFire(0)
	a.OnFire(4)
	a.OnFire(7)
	a.OnFire(4)

	assertCommands(t, engine, "play(voice0)", "play(voice4)", "play(voice7)", "play(voice4)")

	playing := a.Playing()
	if len(playing) != 3 {
		t.Errorf("expected 3 voices playing, got %v", playing)
	}
	if a.Active() != -1 {
		t.Errorf("expected no single active voice, got %d", a.Active())
	}
}

func TestArbiter_Unavailable(t *testing.T) {
	engine := audio.NewMockEngine()
	engine.SetMissing("missing.wav")
	a := NewArbiter(engine, Monophonic, 12)

	loaded := a.LoadBank(map[int]string{
		0: "C.wav",
		1: "missing.wav",
		2: "D.wav",
	})
	if loaded != 2 {
		t.Errorf("expected 2 loaded slots, got %d", loaded)
	}

	t.Run("failed slot stays unloaded", func(t *testing.T) {
		slot, ok := a.Slot(1)
		if !ok {
			t.Fatal("slot 1 should exist")
		}
		if slot.Loaded {
			t.Error("slot 1 should not be loaded")
		}
		if slot.Path != "missing.wav" {
			t.Errorf("expected path to be kept, got %q", slot.Path)
		}
	})

	t.Run("firing an unloaded slot is dropped", func(t *testing.T) {
		a.OnFire(0)
		engine.ResetCommands()

		out := a.OnFire(1)
		if out.Played {
			t.Error("unloaded slot should not play")
		}
		if !errors.Is(out.Err, audio.ErrUnavailable) {
			t.Errorf("expected ErrUnavailable, got %v", out.Err)
		}
		assertCommands(t, engine)
		if a.Active() != 0 {
			t.Errorf("previous voice should keep playing, got active %d", a.Active())
		}
	})

	t.Run("never-assigned slot is dropped", func(t *testing.T) {
		out := a.OnFire(9)
		if out.Played || out.Err == nil {
			t.Errorf("unexpected outcome %+v", out)
		}
	})

	t.Run("out of range note", func(t *testing.T) {
		out := a.OnFire(99)
		if out.Played || out.Err == nil {
			t.Errorf("unexpected outcome %+v", out)
		}
		if err := a.Load(-1, "C.wav"); err == nil {
			t.Error("expected Load to reject a negative note")
		}
	})
}

func TestArbiter_PlayError(t *testing.T) {
	a, engine := newTestArbiter(t, Monophonic, 12)

	a.OnFire(0)
	engine.SetPlayError(errors.New("device busy"))

	out := a.OnFire(2)
	if out.Played || out.Err == nil {
		t.Errorf("unexpected outcome %+v", out)
	}
	if slot, _ := a.Slot(2); slot.Playing {
		t.Error("slot should be left non-playing after a failed play")
	}
	if len(a.Playing()) != 0 {
		t.Errorf("expected no voice playing, got %v", a.Playing())
	}
}

func TestArbiter_Close(t *testing.T) {
	a, engine := newTestArbiter(t, Polyphonic, 12)

	a.OnFire(1)
	a.OnFire(2)
	engine.ResetCommands()

	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	assertCommands(t, engine, "stop(voice1)", "stop(voice2)")
	if len(a.Playing()) != 0 {
		t.Errorf("expected no voice playing after Close, got %v", a.Playing())
	}
}
