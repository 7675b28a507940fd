package audio

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
)

// DefaultPlayer returns the sample player command for the current platform.
func DefaultPlayer() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"afplay"}
	case "windows":
		return []string{"powershell", "-c", "(New-Object Media.SoundPlayer $args[0]).PlaySync()"}
	default:
		return []string{"aplay", "-q"}
	}
}

type processVoice struct {
	path string
	cmd  *exec.Cmd
	done chan struct{}
}

// ProcessEngine plays sample files by running an external player per note.
// Each voice owns at most one player process; playing a voice again kills
// the previous process first.
type ProcessEngine struct {
	mu      sync.Mutex
	command []string
	voices  []*processVoice
}

// NewProcessEngine creates an engine that runs command with the sample path
// appended as the last argument. An empty command uses DefaultPlayer.
func NewProcessEngine(command []string) *ProcessEngine {
	if len(command) == 0 {
		command = DefaultPlayer()
	}
	return &ProcessEngine{command: command}
}

// Load checks that the sample exists and is readable.
func (e *ProcessEngine) Load(path string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%w: %s is a directory", ErrUnavailable, path)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.voices = append(e.voices, &processVoice{path: path})
	return Handle(len(e.voices) - 1), nil
}

// Play starts the player for the voice, killing any previous run.
func (e *ProcessEngine) Play(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.voice(h)
	if err != nil {
		return err
	}
	e.kill(v)

	args := append(append([]string{}, e.command[1:]...), v.path)
	cmd := exec.Command(e.command[0], args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player for %s: %w", v.path, err)
	}

	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()

	v.cmd = cmd
	v.done = done
	return nil
}

// Stop kills the player for the voice and waits for it to exit.
func (e *ProcessEngine) Stop(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.voice(h)
	if err != nil {
		return err
	}
	e.kill(v)
	return nil
}

// IsPlaying reports whether the player process is still running.
func (e *ProcessEngine) IsPlaying(h Handle) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	v, err := e.voice(h)
	if err != nil || v.done == nil {
		return false
	}
	select {
	case <-v.done:
		return false
	default:
		return true
	}
}

// Close kills every running player.
func (e *ProcessEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, v := range e.voices {
		e.kill(v)
	}
	return nil
}

func (e *ProcessEngine) kill(v *processVoice) {
	if v.cmd == nil {
		return
	}
	select {
	case <-v.done:
	default:
		if v.cmd.Process != nil {
			v.cmd.Process.Kill()
		}
		<-v.done
	}
	v.cmd = nil
	v.done = nil
}

func (e *ProcessEngine) voice(h Handle) (*processVoice, error) {
	if h < 0 || int(h) >= len(e.voices) {
		return nil, ErrUnavailable
	}
	return e.voices[h], nil
}
