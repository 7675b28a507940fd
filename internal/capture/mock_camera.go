package capture

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera replays a fixed list of frames. It owns the frames it is
// given; Release frees them. Each read hands out a clone.
type MockCamera struct {
	mu     sync.Mutex
	frames []gocv.Mat
	next   int
	reads  int
	fps    int
	loop   bool
	open   bool
}

// NewMockCamera returns a camera that yields frames in order and then
// ErrEndOfStream.
func NewMockCamera(frames ...gocv.Mat) *MockCamera {
	return &MockCamera{frames: frames, fps: DefaultFPS}
}

// NewBlankCamera returns a camera yielding count black frames of the given
// size.
func NewBlankCamera(width, height, count int) *MockCamera {
	frames := make([]gocv.Mat, count)
	for i := range frames {
		frames[i] = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	}
	return NewMockCamera(frames...)
}

// SetLoop makes playback wrap around instead of ending.
func (c *MockCamera) SetLoop(loop bool) {
	c.mu.Lock()
	c.loop = loop
	c.mu.Unlock()
}

// Open rewinds playback.
func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	c.next = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case !c.open:
		return nil, ErrCameraNotOpen
	case len(c.frames) == 0:
		return nil, ErrEndOfStream
	case c.next == len(c.frames) && !c.loop:
		return nil, ErrEndOfStream
	}

	frame := c.frames[c.next%len(c.frames)].Clone()
	c.next = c.next%len(c.frames) + 1
	c.reads++
	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fps > 0 {
		c.fps = fps
	}
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// Reads returns how many frames were handed out.
func (c *MockCamera) Reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

// Release frees the frames.
func (c *MockCamera) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.frames {
		c.frames[i].Close()
	}
	c.frames = nil
}
