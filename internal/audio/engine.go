// Package audio provides the playback engines that voice slots drive.
package audio

import "errors"

// ErrUnavailable is returned when a voice resource cannot be loaded or a
// handle does not refer to a loaded voice.
var ErrUnavailable = errors.New("audio resource unavailable")

// Handle identifies a voice loaded into an Engine.
type Handle int

// Engine plays and stops preloaded voices.
type Engine interface {
	// Load prepares the resource at path and returns a handle for it.
	Load(path string) (Handle, error)

	// Play starts the voice from the beginning, restarting it if it is
	// already playing.
	Play(h Handle) error

	// Stop silences the voice. Stopping a silent voice is not an error.
	Stop(h Handle) error

	// IsPlaying reports whether the voice is still sounding.
	IsPlaying(h Handle) bool

	// Close stops every voice and releases the engine.
	Close() error
}
