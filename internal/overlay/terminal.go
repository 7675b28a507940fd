package overlay

import (
	"errors"
	"io"
	"log"
	"os"
	"sync/atomic"

	"gocv.io/x/gocv"
	"golang.org/x/term"
)

// ctrlC is the byte a raw terminal sends for Ctrl+C.
const ctrlC = 3

// ErrNotTerminal is returned by NewTerminal when in is not a terminal.
var ErrNotTerminal = errors.New("not a terminal")

// Terminal is a headless Renderer that watches a terminal for the exit key.
// The terminal is in raw mode until Close, so the key arrives without Enter;
// Ctrl+C also exits since raw mode stops it from raising SIGINT.
type Terminal struct {
	in      *os.File
	state   *term.State
	logOut  io.Writer
	exitKey int
	exit    atomic.Bool
}

// NewTerminal puts in into raw mode and starts watching it for exitKey.
func NewTerminal(in *os.File, exitKey int) (*Terminal, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return nil, ErrNotTerminal
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}

	t := &Terminal{in: in, state: state, logOut: log.Writer(), exitKey: exitKey}
	// Raw mode no longer turns \n into \r\n.
	log.SetOutput(crlfWriter{t.logOut})
	go t.watch()
	return t, nil
}

// watch reads keys until the terminal is closed. A key that arrives as part
// of a longer escape sequence (arrows, function keys) does not count.
func (t *Terminal) watch() {
	buf := make([]byte, 16)
	for {
		n, err := t.in.Read(buf)
		if err != nil {
			return
		}
		if isExit(buf[:n], t.exitKey) {
			t.exit.Store(true)
		}
	}
}

func isExit(chunk []byte, exitKey int) bool {
	return len(chunk) == 1 && (int(chunk[0]) == exitKey || chunk[0] == ctrlC)
}

// Show reports whether the exit key has been pressed.
func (t *Terminal) Show(*gocv.Mat) bool {
	return t.exit.Load()
}

// Close restores the terminal and the log output.
func (t *Terminal) Close() error {
	log.SetOutput(t.logOut)
	return term.Restore(int(t.in.Fd()), t.state)
}

// crlfWriter writes \r\n for every \n.
type crlfWriter struct {
	w io.Writer
}

func (c crlfWriter) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)+8)
	for _, b := range p {
		if b == '\n' {
			out = append(out, '\r')
		}
		out = append(out, b)
	}
	if _, err := c.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
