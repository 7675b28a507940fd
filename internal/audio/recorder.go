package audio

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

// Recording defaults.
const (
	DefaultTempoBPM   = 120.0
	DefaultResolution = smf.MetricTicks(960)
)

// Recorder captures note on / note off events as a single-track Standard
// MIDI File.
type Recorder struct {
	mu         sync.Mutex
	channel    uint8
	tempo      float64
	resolution smf.MetricTicks
	track      smf.Track
	last       time.Time
	sounding   map[uint8]bool
	events     int
}

// NewRecorder creates a recorder whose first event is timed from start.
func NewRecorder(channel uint8, start time.Time) *Recorder {
	r := &Recorder{
		channel:    channel,
		tempo:      DefaultTempoBPM,
		resolution: DefaultResolution,
		last:       start,
		sounding:   make(map[uint8]bool),
	}
	r.track.Add(0, smf.MetaTempo(r.tempo))
	return r
}

// NoteOn records a key press at the given time. A key that is already
// sounding is released first so the file never holds overlapping notes on
// the same key.
func (r *Recorder) NoteOn(key, velocity uint8, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sounding[key] {
		r.add(at, midi.NoteOff(r.channel, key))
	}
	r.add(at, midi.NoteOn(r.channel, key, velocity))
	r.sounding[key] = true
}

// NoteOff records a key release. Releasing a silent key is ignored.
func (r *Recorder) NoteOff(key uint8, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.sounding[key] {
		return
	}
	r.add(at, midi.NoteOff(r.channel, key))
	delete(r.sounding, key)
}

// Len returns the number of note events recorded.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events
}

// WriteTo writes the recording, releasing any sounding keys at the end of
// the take.
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	track := make(smf.Track, len(r.track))
	copy(track, r.track)
	for key := range r.sounding {
		track.Add(0, midi.NoteOff(r.channel, key))
	}
	track.Close(0)

	s := smf.New()
	s.TimeFormat = r.resolution
	if err := s.Add(track); err != nil {
		return 0, fmt.Errorf("add track: %w", err)
	}
	return s.WriteTo(w)
}

// WriteFile writes the recording to path.
func (r *Recorder) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := r.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func (r *Recorder) add(at time.Time, msg midi.Message) {
	d := at.Sub(r.last)
	if d < 0 {
		d = 0
	}
	ticks := math.Round(d.Seconds() * r.tempo / 60 * float64(r.resolution))
	r.track.Add(uint32(ticks), msg)
	r.last = at
	r.events++
}
