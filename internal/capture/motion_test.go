package capture

import (
	"image"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func filled(w, h int, v float64) gocv.Mat {
	m := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	if v != 0 {
		m.SetTo(gocv.NewScalar(v, v, v, 0))
	}
	return m
}

func TestMotionDetector_Detect(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black := filled(640, 480, 0)
	defer black.Close()
	white := filled(640, 480, 255)
	defer white.Close()

	// White bottom half, black top half.
	bottom := filled(640, 480, 0)
	defer bottom.Close()
	half := bottom.Region(image.Rect(0, 240, 640, 480))
	half.SetTo(gocv.NewScalar(255, 255, 255, 0))
	half.Close()

	tests := []struct {
		name    string
		region  image.Rectangle
		frames  []*gocv.Mat
		want    bool
		minPerc float64
	}{
		{"first frame sets baseline", image.Rectangle{}, []*gocv.Mat{&white}, false, 0},
		{"identical frames", image.Rectangle{}, []*gocv.Mat{&black, &black}, false, 0},
		{"black to white", image.Rectangle{}, []*gocv.Mat{&black, &white}, true, 50},
		{"change outside the region", image.Rect(0, 0, 640, 150), []*gocv.Mat{&black, &bottom}, false, 0},
		{"change inside the region", image.Rect(0, 300, 640, 480), []*gocv.Mat{&black, &bottom}, true, 50},
		{"region off the frame", image.Rect(700, 0, 800, 100), []*gocv.Mat{&black, &white}, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := NewMotionDetector(1.0, tt.region)
			defer md.Close()

			var detected bool
			var changed float64
			for _, f := range tt.frames {
				detected, changed = md.Detect(f)
			}
			if detected != tt.want {
				t.Errorf("detected = %v, want %v (changed %.1f%%)", detected, tt.want, changed)
			}
			if changed < tt.minPerc {
				t.Errorf("changed = %.1f%%, want at least %.1f%%", changed, tt.minPerc)
			}
		})
	}
}

func TestMotionDetector_Baseline(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	t.Run("close drops the baseline", func(t *testing.T) {
		md := NewMotionDetector(1.0, image.Rectangle{})
		frame := filled(640, 480, 0)
		defer frame.Close()

		md.Detect(&frame)
		md.Close()
		md.Close()

		if detected, _ := md.Detect(&frame); detected {
			t.Error("first frame after close should not detect motion")
		}
		md.Close()
	})

	t.Run("size change resets the baseline", func(t *testing.T) {
		md := NewMotionDetector(1.0, image.Rectangle{})
		defer md.Close()

		small := filled(320, 240, 0)
		defer small.Close()
		large := filled(640, 480, 255)
		defer large.Close()

		md.Detect(&small)
		if detected, changed := md.Detect(&large); detected || changed != 0 {
			t.Errorf("size change should reset baseline, got detected=%v changed=%f", detected, changed)
		}
	})
}

func TestMotionGate_Disabled(t *testing.T) {
	g := NewMotionGate(0, DefaultMotionHold, image.Rectangle{})
	defer g.Close()

	if g.Enabled() {
		t.Error("gate with zero threshold should be disabled")
	}
	if !g.Active(nil, time.Now()) {
		t.Error("disabled gate should always be open")
	}
}

func TestMotionGate_HoldsAfterMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	g := NewMotionGate(1.0, 100*time.Millisecond, image.Rect(0, 0, 640, 200))
	defer g.Close()

	black := filled(640, 480, 0)
	defer black.Close()
	white := filled(640, 480, 255)
	defer white.Close()

	start := time.Unix(0, 0)
	steps := []struct {
		frame *gocv.Mat
		at    time.Duration
		want  bool
	}{
		{&black, 0, false},                      // baseline, no motion yet
		{&white, 10 * time.Millisecond, true},   // motion opens the gate
		{&white, 60 * time.Millisecond, true},   // still within the hold
		{&white, 200 * time.Millisecond, false}, // hold expired
		{&black, 210 * time.Millisecond, true},  // motion again
	}
	for i, s := range steps {
		if got := g.Active(s.frame, start.Add(s.at)); got != s.want {
			t.Errorf("step %d at %v: Active() = %v, want %v", i, s.at, got, s.want)
		}
	}
}
