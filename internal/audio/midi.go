package audio

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver
)

// DefaultOctave is the octave used for pitch names that omit one.
const DefaultOctave = 4

var pitchClasses = map[string]int{
	"C": 0, "C#": 1, "DB": 1, "D": 2, "D#": 3, "EB": 3, "E": 4, "F": 5,
	"F#": 6, "GB": 6, "G": 7, "G#": 8, "AB": 8, "A": 9, "A#": 10, "BB": 10, "B": 11,
}

// ParsePitch converts a voice path into a MIDI key number.
//
// Accepted forms are "midi:<n>", a pitch name such as "C#4" or "Eb", and a
// file path whose base name is a pitch name ("tones/F#.wav"). Names without
// an octave use DefaultOctave. C4 is key 60.
func ParsePitch(path string) (uint8, error) {
	if rest, ok := strings.CutPrefix(path, "midi:"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil || n < 0 || n > 127 {
			return 0, fmt.Errorf("invalid midi key %q", rest)
		}
		return uint8(n), nil
	}

	name := filepath.Base(path)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ToUpper(name)

	split := len(name)
	for i, r := range name {
		if r == '-' || (r >= '0' && r <= '9') {
			split = i
			break
		}
	}

	class, ok := pitchClasses[name[:split]]
	if !ok {
		return 0, fmt.Errorf("unknown pitch %q", path)
	}

	octave := DefaultOctave
	if split < len(name) {
		o, err := strconv.Atoi(name[split:])
		if err != nil {
			return 0, fmt.Errorf("invalid octave in %q", path)
		}
		octave = o
	}

	key := (octave+1)*12 + class
	if key < 0 || key > 127 {
		return 0, fmt.Errorf("pitch %q out of midi range", path)
	}
	return uint8(key), nil
}

type midiVoice struct {
	key     uint8
	on      bool
	started time.Time
}

// MIDIEngine plays voices as note on / note off messages on a MIDI output.
type MIDIEngine struct {
	mu       sync.Mutex
	send     func(midi.Message) error
	closeFn  func() error
	channel  uint8
	velocity uint8
	hold     time.Duration
	voices   []midiVoice
	now      func() time.Time
}

// NewMIDIEngine creates an engine that writes messages through send.
// A positive hold releases notes automatically once they have sounded that
// long; zero keeps them on until stopped.
func NewMIDIEngine(send func(midi.Message) error, channel, velocity uint8, hold time.Duration) *MIDIEngine {
	return &MIDIEngine{
		send:     send,
		channel:  channel,
		velocity: velocity,
		hold:     hold,
		now:      time.Now,
	}
}

// OpenMIDIEngine opens the named MIDI output port, or the first port when
// name is empty.
func OpenMIDIEngine(name string, channel, velocity uint8, hold time.Duration) (*MIDIEngine, error) {
	var out drivers.Out
	var err error
	if name == "" {
		out, err = midi.OutPort(0)
	} else {
		out, err = midi.FindOutPort(name)
	}
	if err != nil {
		return nil, fmt.Errorf("find midi output %q: %w", name, err)
	}

	send, err := midi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open midi output %q: %w", out.String(), err)
	}

	e := NewMIDIEngine(send, channel, velocity, hold)
	e.closeFn = func() error {
		err := out.Close()
		midi.CloseDriver()
		return err
	}
	return e, nil
}

// Load resolves path to a MIDI key. See ParsePitch.
func (e *MIDIEngine) Load(path string) (Handle, error) {
	key, err := ParsePitch(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.voices = append(e.voices, midiVoice{key: key})
	return Handle(len(e.voices) - 1), nil
}

// Play sends note on, preceded by note off when the key is already sounding.
func (e *MIDIEngine) Play(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.voice(h)
	if err != nil {
		return err
	}
	if v.on {
		if err := e.send(midi.NoteOff(e.channel, v.key)); err != nil {
			return fmt.Errorf("note off %d: %w", v.key, err)
		}
		v.on = false
	}
	if err := e.send(midi.NoteOn(e.channel, v.key, e.velocity)); err != nil {
		return fmt.Errorf("note on %d: %w", v.key, err)
	}
	v.on = true
	v.started = e.now()
	return nil
}

// Stop sends note off if the key is sounding.
func (e *MIDIEngine) Stop(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.voice(h)
	if err != nil {
		return err
	}
	return e.release(v)
}

// IsPlaying reports whether the key is sounding. A note whose hold time has
// elapsed is released here and reported as finished.
func (e *MIDIEngine) IsPlaying(h Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.voice(h)
	if err != nil || !v.on {
		return false
	}
	if e.hold > 0 && e.now().Sub(v.started) >= e.hold {
		_ = e.release(v)
		return false
	}
	return true
}

// Close releases every sounding key and closes the output port.
func (e *MIDIEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for i := range e.voices {
		if err := e.release(&e.voices[i]); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.closeFn != nil {
		if err := e.closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
		e.closeFn = nil
	}
	return firstErr
}

func (e *MIDIEngine) release(v *midiVoice) error {
	if !v.on {
		return nil
	}
	v.on = false
	if err := e.send(midi.NoteOff(e.channel, v.key)); err != nil {
		return fmt.Errorf("note off %d: %w", v.key, err)
	}
	return nil
}

func (e *MIDIEngine) voice(h Handle) (*midiVoice, error) {
	if h < 0 || int(h) >= len(e.voices) {
		return nil, ErrUnavailable
	}
	return &e.voices[h], nil
}
