// Package tray provides a system tray menu for airpiano: mute toggle, last
// note display, stream shortcut and quit.
package tray

import (
	"sync"
	"time"

	"github.com/bep/debounce"
	"github.com/getlantern/systray"
)

const (
	appName = "airpiano"
	// noteSettle coalesces rapid note updates into one redraw.
	noteSettle = 150 * time.Millisecond
)

// Handlers are the callbacks fired by menu items. Any may be nil; the
// stream item is only shown when Open is set.
type Handlers struct {
	Toggle func(enabled bool)
	Open   func()
	Quit   func()
}

// Tray is the menu bar entry. It starts unmuted.
type Tray struct {
	handlers Handlers
	settle   func(func())

	mu      sync.RWMutex
	enabled bool
	note    string
	toggle  *systray.MenuItem
	last    *systray.MenuItem
}

// New creates a tray that reports clicks to h.
func New(h Handlers) *Tray {
	return &Tray{
		handlers: h,
		settle:   debounce.New(noteSettle),
		enabled:  true,
	}
}

// Run shows the tray and blocks until Quit. It must be called from the
// main goroutine on macOS.
func (t *Tray) Run() {
	systray.Run(t.build, func() {})
}

// Quit removes the tray and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) build() {
	systray.SetTitle(appName)
	systray.SetTooltip("airpiano virtual keyboard")

	t.mu.Lock()
	t.toggle = systray.AddMenuItem(toggleTitle(t.enabled), "Mute or unmute the keyboard")
	t.last = systray.AddMenuItem(lastNoteTitle(t.note), "Last played note")
	t.last.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	var open <-chan struct{}
	if t.handlers.Open != nil {
		open = systray.AddMenuItem("Open Stream...", "Open the overlay stream in a browser").ClickedCh
	}
	quit := systray.AddMenuItem("Quit", "Quit airpiano").ClickedCh

	go func() {
		for {
			select {
			case <-t.toggle.ClickedCh:
				t.flip()
			case <-open:
				t.handlers.Open()
			case <-quit:
				if t.handlers.Quit != nil {
					t.handlers.Quit()
				}
				systray.Quit()
				return
			}
		}
	}()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Playing"
	}
	return "○ Muted"
}

func lastNoteTitle(name string) string {
	if name == "" {
		return "Last: none"
	}
	return "Last: " + name
}

// flip toggles the mute state and reports the new state outside the lock.
func (t *Tray) flip() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.toggle != nil {
		t.toggle.SetTitle(toggleTitle(enabled))
	}
	t.mu.Unlock()

	if t.handlers.Toggle != nil {
		t.handlers.Toggle(enabled)
	}
}

// SetLastNote records the last played note. The menu is redrawn once the
// updates settle.
func (t *Tray) SetLastNote(name string) {
	t.mu.Lock()
	t.note = name
	t.mu.Unlock()

	t.settle(t.redraw)
}

func (t *Tray) redraw() {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.last != nil {
		t.last.SetTitle(lastNoteTitle(t.note))
	}
}

// LastNote returns the last recorded note name.
func (t *Tray) LastNote() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.note
}

// IsEnabled reports whether the keyboard is unmuted.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
