package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Motion detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
	// DefaultMotionHold keeps a gate open this long after the last motion.
	DefaultMotionHold = 500 * time.Millisecond
)

// MotionDetector detects motion between consecutive video frames
// using frame differencing with Gaussian blur for noise reduction.
// With a region set, only pixels inside it are compared.
type MotionDetector struct {
	threshold   float64
	region      image.Rectangle
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a MotionDetector. threshold is the percentage of
// pixels that must change, e.g. 1.0 for 1%. An empty region watches the
// whole frame.
func NewMotionDetector(threshold float64, region image.Rectangle) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		region:    region.Canon(),
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether motion
// was detected and the percentage of watched pixels that changed. The first
// frame only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	src := *frame
	if !m.region.Empty() {
		r := m.region.Intersect(image.Rect(0, 0, frame.Cols(), frame.Rows()))
		if r.Empty() {
			return false, 0
		}
		src = frame.Region(r)
		defer src.Close()
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if src.Channels() > 1 {
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	} else {
		src.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(GaussianBlurSize, GaussianBlurSize), 0, 0, gocv.BorderDefault)

	// A resized feed invalidates the baseline.
	if !m.initialized || m.prevGray.Rows() != blurred.Rows() || m.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&m.prevGray)

	return changed > m.threshold, changed
}

// Close releases resources used by the motion detector. A closed detector
// starts over with a new baseline if used again.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
}

// MotionGate decides whether a frame is worth running hand inference on.
// It opens on motion and stays open for the hold period after the last
// motion. A gate built with a zero threshold is always open.
type MotionGate struct {
	detector *MotionDetector
	hold     time.Duration
	last     time.Time
	moved    bool
}

// NewMotionGate creates a gate watching region. threshold <= 0 disables
// gating.
func NewMotionGate(threshold float64, hold time.Duration, region image.Rectangle) *MotionGate {
	g := &MotionGate{hold: hold}
	if threshold > 0 {
		g.detector = NewMotionDetector(threshold, region)
	}
	return g
}

// Enabled reports whether the gate filters frames at all.
func (g *MotionGate) Enabled() bool {
	return g.detector != nil
}

// Active feeds frame to the gate and reports whether it is open at now.
func (g *MotionGate) Active(frame *gocv.Mat, now time.Time) bool {
	if g.detector == nil {
		return true
	}
	if moved, _ := g.detector.Detect(frame); moved {
		g.last = now
		g.moved = true
	}
	return g.moved && now.Sub(g.last) <= g.hold
}

// Close releases the underlying detector.
func (g *MotionGate) Close() {
	if g.detector != nil {
		g.detector.Close()
	}
}
