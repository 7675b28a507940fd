// Package app wires the camera, hand detector and piano session into the
// frame loop.
package app

import (
	"log"
	"sync"
	"time"

	"github.com/ayusman/airpiano/internal/audio"
	"github.com/ayusman/airpiano/internal/capture"
	"github.com/ayusman/airpiano/internal/config"
	"github.com/ayusman/airpiano/internal/detector"
	"github.com/ayusman/airpiano/internal/keyboard"
	"github.com/ayusman/airpiano/internal/metrics"
	"github.com/ayusman/airpiano/internal/overlay"
	"github.com/ayusman/airpiano/internal/piano"
	"github.com/ayusman/airpiano/internal/server"
	"github.com/ayusman/airpiano/internal/store"
	"github.com/ayusman/airpiano/internal/trigger"
	"github.com/ayusman/airpiano/internal/voice"
)

// Loop constants.
const (
	// WindowTitle is the title of the overlay window.
	WindowTitle = "airpiano"
	// MaxReadErrors is the number of consecutive failed camera reads after
	// which the loop gives up.
	MaxReadErrors = 30
	// MotionMargin pads the keyboard when watching for motion, so a hand
	// moving in toward the keys opens the gate before it lands.
	MotionMargin = 80
)

// Config holds configuration options for the application.
type Config struct {
	Settings *config.Config
	// Store is the source of named voice banks. Optional.
	Store *store.Store
	// Engine replaces the engine selected by Settings.Voice.Engine.
	Engine audio.Engine
}

// App is the main application that turns camera frames into notes.
type App struct {
	settings *config.Config
	store    *store.Store

	layout   *keyboard.Layout
	engine   audio.Engine
	session  *piano.Session
	camera   capture.Camera
	motion   *capture.MotionGate
	detector detector.Detector
	renderer overlay.Renderer
	painter  *overlay.Painter
	snapshot *overlay.Snapshot
	hub      *server.Hub
	metrics  *metrics.Metrics
	recorder *audio.Recorder
	sounding map[int]bool

	hands  []detector.HandLandmarks
	seq    uint64
	now    func() time.Time
	onNote func(name string)
	closed bool
	// detectFailing is set while detection errors repeat, so they are
	// logged once per run of failures.
	detectFailing bool

	enabled bool
	mu      sync.RWMutex
}

// New creates a new App instance with the given configuration.
func New(cfg Config) (*App, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	policy, err := voice.ParsePolicy(settings.Voice.Policy)
	if err != nil {
		return nil, err
	}
	roles, err := piano.ParseRoles(settings.Trigger.Fingertips)
	if err != nil {
		return nil, err
	}

	engine := cfg.Engine
	if engine == nil {
		engine = newEngine(settings.Voice)
	}

	layout := keyboard.Build(settings.Keyboard.Layout())
	gate := trigger.NewGate(layout.Notes(), settings.Trigger.Cooldown)
	arbiter := voice.NewArbiter(engine, policy, layout.Notes())

	camera := capture.NewCamera(capture.Options{
		Device: settings.Camera.Device,
		Width:  settings.Camera.Width,
		Height: settings.Camera.Height,
		FPS:    settings.Camera.FPS,
		Mirror: settings.Camera.Mirror,
	})

	a := &App{
		settings: settings,
		store:    cfg.Store,
		layout:   layout,
		engine:   engine,
		session:  piano.NewSession(layout, gate, arbiter, roles),
		camera:   camera,
		motion:   capture.NewMotionGate(settings.MotionThreshold, capture.DefaultMotionHold, layout.Bounds().Inset(-MotionMargin)),
		painter:  overlay.NewPainter(layout, settings.Keyboard.BaseOctave),
		snapshot: overlay.NewSnapshot(),
		hub:      server.NewHub(),
		metrics:  metrics.New(),
		sounding: make(map[int]bool),
		now:      time.Now,
		enabled:  true,
	}

	bank, err := a.resolveBank()
	if err != nil {
		a.engine.Close()
		return nil, err
	}
	loaded := arbiter.LoadBank(bank)
	log.Printf("Loaded %d of %d voices (%s, %s)", loaded, layout.Notes(), settings.Voice.Engine, policy)

	// Try MediaPipe first, fall back to mock detector
	dcfg := detector.DefaultConfig()
	dcfg.MaxHands = settings.Detector.MaxHands
	dcfg.MinConfidence = settings.Detector.MinConfidence
	dcfg.Script = settings.Detector.Script
	dcfg.Python = settings.Detector.Python
	dcfg.InferenceWidth = settings.Detector.InferenceWidth
	if mp, err := detector.NewMediaPipeDetector(dcfg); err == nil {
		a.detector = mp
		log.Println("Using MediaPipe hand detection")
	} else {
		log.Printf("MediaPipe not available (%v), using mock detector", err)
		a.detector = detector.NewMockDetector()
	}

	if settings.Record != "" {
		a.recorder = audio.NewRecorder(uint8(settings.Voice.MIDI.Channel), a.now())
	}

	return a, nil
}

// newEngine builds the engine named by the voice configuration. A MIDI
// output that cannot be opened falls back to the silent mock engine.
func newEngine(v config.VoiceConfig) audio.Engine {
	switch v.Engine {
	case config.EngineSample:
		return audio.NewProcessEngine(v.Player)
	case config.EngineMock:
		return audio.NewMockEngine()
	default:
		e, err := audio.OpenMIDIEngine(v.MIDI.Port, uint8(v.MIDI.Channel), uint8(v.MIDI.Velocity), v.MIDI.Hold)
		if err != nil {
			log.Printf("MIDI output not available (%v), notes will be silent", err)
			return audio.NewMockEngine()
		}
		return e
	}
}

// SetEnabled mutes or unmutes the keyboard. A muted keyboard still draws
// but observes no fingertips.
func (a *App) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.enabled = enabled
}

// IsEnabled returns whether the keyboard is playing.
func (a *App) IsEnabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.enabled
}

// OnNote sets a callback that receives the name of every note that sounds.
// It is called from the frame loop and must not block.
func (a *App) OnNote(fn func(name string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onNote = fn
}

// SetCamera replaces the frame source. Call before Run.
func (a *App) SetCamera(c capture.Camera) {
	a.camera = c
}

// SetDetector sets the hand detector implementation to use. Call before Run.
func (a *App) SetDetector(d detector.Detector) {
	a.detector = d
}

// SetRenderer replaces the output window. Call before Run.
func (a *App) SetRenderer(r overlay.Renderer) {
	a.renderer = r
}

// ServerConfig returns the server parts fed by this app.
func (a *App) ServerConfig(staticDir string) server.Config {
	return server.Config{
		StaticDir:  staticDir,
		Store:      a.store,
		Layout:     a.layout,
		BaseOctave: a.settings.Keyboard.BaseOctave,
		Hub:        a.hub,
		Snapshot:   a.snapshot,
		Metrics:    a.metrics,
	}
}

// Settings returns the effective configuration.
func (a *App) Settings() *config.Config {
	return a.settings
}

// Layout returns the keyboard layout.
func (a *App) Layout() *keyboard.Layout {
	return a.layout
}

// Session returns the piano session. Only the frame loop may use it while
// Run is active.
func (a *App) Session() *piano.Session {
	return a.session
}

// Hub returns the live key state hub.
func (a *App) Hub() *server.Hub {
	return a.hub
}

// Snapshot returns the latest rendered frame.
func (a *App) Snapshot() *overlay.Snapshot {
	return a.snapshot
}

// Metrics returns the frame loop metrics.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Recorder returns the take recorder, or nil when recording is off.
func (a *App) Recorder() *audio.Recorder {
	return a.recorder
}

// midiKey returns the MIDI key number of a keyboard note.
func (a *App) midiKey(note int) uint8 {
	return uint8((a.settings.Keyboard.BaseOctave+1)*12 + note)
}

func (a *App) noteName(note int) string {
	return keyboard.NoteName(note, a.settings.Keyboard.BaseOctave)
}
