package audio

import (
	"fmt"
	"sync"
)

// Op is a command issued to an engine.
type Op string

const (
	OpPlay Op = "play"
	OpStop Op = "stop"
)

// Command is a recorded engine call.
type Command struct {
	Op     Op
	Handle Handle
	Path   string
}

func (c Command) String() string {
	return fmt.Sprintf("%s(%s)", c.Op, c.Path)
}

// MockEngine is a test Engine that records every play and stop call.
type MockEngine struct {
	mu       sync.Mutex
	paths    []string
	playing  map[Handle]bool
	missing  map[string]bool
	playErr  error
	commands []Command
	closed   bool
}

// NewMockEngine creates a new MockEngine.
func NewMockEngine() *MockEngine {
	return &MockEngine{
		playing: make(map[Handle]bool),
		missing: make(map[string]bool),
	}
}

// SetMissing makes Load fail for path.
func (m *MockEngine) SetMissing(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.missing[path] = true
}

// SetPlayError makes every subsequent Play fail with err.
func (m *MockEngine) SetPlayError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playErr = err
}

// Finish marks a voice as having played to the end.
func (m *MockEngine) Finish(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.playing, h)
}

// Load returns a new handle unless path was marked missing.
func (m *MockEngine) Load(path string) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.missing[path] {
		return 0, fmt.Errorf("load %s: %w", path, ErrUnavailable)
	}
	m.paths = append(m.paths, path)
	return Handle(len(m.paths) - 1), nil
}

// Play records a play command.
func (m *MockEngine) Play(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.path(h)
	if err != nil {
		return err
	}
	if m.playErr != nil {
		return m.playErr
	}
	m.commands = append(m.commands, Command{Op: OpPlay, Handle: h, Path: path})
	m.playing[h] = true
	return nil
}

// Stop records a stop command.
func (m *MockEngine) Stop(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path, err := m.path(h)
	if err != nil {
		return err
	}
	m.commands = append(m.commands, Command{Op: OpStop, Handle: h, Path: path})
	delete(m.playing, h)
	return nil
}

// IsPlaying reports whether the handle was played and not yet stopped or finished.
func (m *MockEngine) IsPlaying(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing[h]
}

// Close marks the engine closed and silences every voice.
func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.playing = make(map[Handle]bool)
	return nil
}

// Commands returns the recorded commands in call order.
func (m *MockEngine) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// ResetCommands clears the recorded commands.
func (m *MockEngine) ResetCommands() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = nil
}

// Closed reports whether Close was called.
func (m *MockEngine) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockEngine) path(h Handle) (string, error) {
	if h < 0 || int(h) >= len(m.paths) {
		return "", ErrUnavailable
	}
	return m.paths[h], nil
}
