package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu       sync.Mutex
	hands    []HandLandmarks
	sequence [][]HandLandmarks
	err      error
	calls    int
	closed   bool
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetSequence queues per-call results. Each Detect consumes one entry;
// once the queue is empty Detect falls back to the hands set by SetHands.
func (m *MockDetector) SetSequence(frames [][]HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = frames
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the next queued result, the pre-configured hands, or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.sequence) > 0 {
		next := m.sequence[0]
		m.sequence = m.sequence[1:]
		return next, nil
	}
	return m.hands, nil
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// PointingLandmarks returns a right hand whose index fingertip is at the
// normalized position (x, y). The middle finger is curled below it so only
// the index tip reaches forward.
func PointingLandmarks(x, y float64) HandLandmarks {
	hand := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	// Palm and knuckles sit below the fingertip.
	hand.Points[Wrist] = Point3D{X: x, Y: y + 0.40}
	hand.Points[ThumbCMC] = Point3D{X: x + 0.05, Y: y + 0.36}
	hand.Points[ThumbMCP] = Point3D{X: x + 0.08, Y: y + 0.31}
	hand.Points[ThumbIP] = Point3D{X: x + 0.09, Y: y + 0.27}
	hand.Points[ThumbTip] = Point3D{X: x + 0.08, Y: y + 0.24}

	// Index finger extended to the target.
	hand.Points[IndexMCP] = Point3D{X: x, Y: y + 0.22}
	hand.Points[IndexPIP] = Point3D{X: x, Y: y + 0.14}
	hand.Points[IndexDIP] = Point3D{X: x, Y: y + 0.07}
	hand.Points[IndexTip] = Point3D{X: x, Y: y}

	// Remaining fingers curled into the palm.
	for i, base := range []int{MiddleMCP, RingMCP, PinkyMCP} {
		dx := -0.03 * float64(i+1)
		hand.Points[base] = Point3D{X: x + dx, Y: y + 0.23}
		hand.Points[base+1] = Point3D{X: x + dx, Y: y + 0.20, Z: -0.04}
		hand.Points[base+2] = Point3D{X: x + dx, Y: y + 0.24, Z: -0.04}
		hand.Points[base+3] = Point3D{X: x + dx, Y: y + 0.27, Z: -0.02}
	}

	return hand
}

// TwoFingerLandmarks returns a right hand with the index and middle
// fingertips at the given normalized positions.
func TwoFingerLandmarks(index, middle Point3D) HandLandmarks {
	hand := PointingLandmarks(index.X, index.Y)
	hand.Points[MiddleDIP] = Point3D{X: middle.X, Y: middle.Y + 0.07}
	hand.Points[MiddlePIP] = Point3D{X: middle.X, Y: middle.Y + 0.14}
	hand.Points[MiddleTip] = middle
	return hand
}
