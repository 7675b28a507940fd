package overlay

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Snapshot holds the latest composed frame as JPEG for streaming.
type Snapshot struct {
	mu      sync.RWMutex
	jpeg    []byte
	seq     uint64
	updated chan struct{}
}

// NewSnapshot creates an empty Snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{updated: make(chan struct{})}
}

// Publish encodes img and makes it the latest frame.
func (s *Snapshot) Publish(img *gocv.Mat) error {
	buf, err := gocv.IMEncode(".jpg", *img)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	s.Set(data)
	return nil
}

// Set stores an already encoded JPEG.
func (s *Snapshot) Set(jpeg []byte) {
	s.mu.Lock()
	s.jpeg = jpeg
	s.seq++
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()
}

// Latest returns the latest JPEG, its sequence number and a channel closed
// on the next update. The JPEG is nil before the first frame.
func (s *Snapshot) Latest() ([]byte, uint64, <-chan struct{}) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jpeg, s.seq, s.updated
}
