package overlay

import (
	"gocv.io/x/gocv"
)

// EscapeKey is the key code of Escape as reported by WaitKey.
const EscapeKey = 27

// Renderer shows a composed frame and reports whether the user asked to
// exit.
type Renderer interface {
	Show(img *gocv.Mat) (exit bool)
	Close() error
}

// Window renders into a native OpenCV window.
type Window struct {
	win     *gocv.Window
	exitKey int
}

// NewWindow opens a window titled title. Pressing exitKey ends the session.
func NewWindow(title string, exitKey int) *Window {
	return &Window{
		win:     gocv.NewWindow(title),
		exitKey: exitKey,
	}
}

// Show displays img and polls the keyboard for one millisecond. Closing the
// window counts as exit.
func (w *Window) Show(img *gocv.Mat) bool {
	w.win.IMShow(*img)
	key := w.win.WaitKey(1)
	if key == w.exitKey {
		return true
	}
	return !w.win.IsOpen()
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}

// Headless is a Renderer that shows nothing and never exits.
type Headless struct{}

// Show does nothing.
func (Headless) Show(*gocv.Mat) bool { return false }

// Close does nothing.
func (Headless) Close() error { return nil }
