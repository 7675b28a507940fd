// Package config loads the airpiano YAML configuration.
package config

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/airpiano/internal/keyboard"
	"github.com/ayusman/airpiano/internal/voice"
)

// Engine names accepted by voice.engine.
const (
	EngineMIDI   = "midi"
	EngineSample = "sample"
	EngineMock   = "mock"
)

// Config is the top-level configuration.
type Config struct {
	Camera          CameraConfig   `yaml:"camera"`
	Keyboard        KeyboardConfig `yaml:"keyboard"`
	Trigger         TriggerConfig  `yaml:"trigger"`
	Voice           VoiceConfig    `yaml:"voice"`
	Detector        DetectorConfig `yaml:"detector"`
	Server          ServerConfig   `yaml:"server"`
	MotionThreshold float64        `yaml:"motion_threshold"` // percent of changed pixels, 0 disables gating
	DataDir         string         `yaml:"data_dir"`
	ExitKey         int            `yaml:"exit_key"`
	Window          bool           `yaml:"window"`
	Tray            bool           `yaml:"tray"`
	Record          string         `yaml:"record,omitempty"` // .mid output path
}

// CameraConfig selects and sizes the capture device.
type CameraConfig struct {
	Device int  `yaml:"device"`
	Width  int  `yaml:"width"`
	Height int  `yaml:"height"`
	FPS    int  `yaml:"fps"`
	Mirror bool `yaml:"mirror"`
}

// KeyboardConfig is the on-screen keyboard geometry in pixels.
type KeyboardConfig struct {
	Octaves     int `yaml:"octaves"`
	OriginX     int `yaml:"origin_x"`
	OriginY     int `yaml:"origin_y"`
	WhiteWidth  int `yaml:"white_width"`
	WhiteHeight int `yaml:"white_height"`
	BlackWidth  int `yaml:"black_width"`
	BlackHeight int `yaml:"black_height"`
	BaseOctave  int `yaml:"base_octave"` // octave number of note 0
}

// TriggerConfig tunes key triggering.
type TriggerConfig struct {
	Cooldown   time.Duration `yaml:"cooldown"`
	Fingertips []string      `yaml:"fingertips"` // "index", "middle"
}

// VoiceConfig selects the audio engine and voice bank.
type VoiceConfig struct {
	Policy   string     `yaml:"policy"` // "mono" or "poly"
	Engine   string     `yaml:"engine"` // "midi", "sample" or "mock"
	Bank     string     `yaml:"bank,omitempty"`
	TonesDir string     `yaml:"tones_dir"`
	Player   []string   `yaml:"player,omitempty"`
	MIDI     MIDIConfig `yaml:"midi"`
}

// MIDIConfig configures the MIDI output engine.
type MIDIConfig struct {
	Port     string        `yaml:"port,omitempty"` // substring of the port name, empty for the first port
	Channel  int           `yaml:"channel"`
	Velocity int           `yaml:"velocity"`
	Hold     time.Duration `yaml:"hold"`
}

// DetectorConfig configures the hand landmark service.
type DetectorConfig struct {
	Script        string  `yaml:"script,omitempty"`
	Python        string  `yaml:"python,omitempty"`
	MaxHands       int     `yaml:"max_hands"`
	MinConfidence  float64 `yaml:"min_confidence"`
	InferenceWidth int     `yaml:"inference_width"` // 0 sends full frames
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Default returns the default configuration: two octaves at the top-left of
// a mirrored 1280x480 feed.
func Default() *Config {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".airpiano")

	return &Config{
		Camera: CameraConfig{
			Device: 0,
			Width:  1280,
			Height: 480,
			FPS:    30,
			Mirror: true,
		},
		Keyboard: KeyboardConfig{
			Octaves:     2,
			OriginX:     30,
			OriginY:     0,
			WhiteWidth:  40,
			WhiteHeight: 150,
			BlackWidth:  20,
			BlackHeight: 100,
			BaseOctave:  4,
		},
		Trigger: TriggerConfig{
			Cooldown:   0,
			Fingertips: []string{"index", "middle"},
		},
		Voice: VoiceConfig{
			Policy:   "mono",
			Engine:   EngineMIDI,
			TonesDir: "tones",
			MIDI: MIDIConfig{
				Channel:  0,
				Velocity: 100,
				Hold:     time.Second,
			},
		},
		Detector: DetectorConfig{
			MaxHands:       2,
			MinConfidence:  0.8,
			InferenceWidth: 640,
		},
		Server: ServerConfig{
			Enabled: true,
			Addr:    "127.0.0.1:8080",
		},
		MotionThreshold: 0,
		DataDir:         dataDir,
		ExitKey:         27,
		Window:          true,
		Tray:            false,
	}
}

// DefaultPath returns the configuration file location under the user's home.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".airpiano", "config.yaml")
}

// Load reads path over the defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOptional behaves like Load but falls back to the defaults when path
// does not exist.
func LoadOptional(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Load("")
	}
	return Load(path)
}

// Layout returns the keyboard geometry.
func (k KeyboardConfig) Layout() keyboard.Config {
	return keyboard.Config{
		Octaves:     k.Octaves,
		Origin:      image.Pt(k.OriginX, k.OriginY),
		WhiteWidth:  k.WhiteWidth,
		WhiteHeight: k.WhiteHeight,
		BlackWidth:  k.BlackWidth,
		BlackHeight: k.BlackHeight,
	}
}

// FrameSize returns the capture size.
func (c CameraConfig) FrameSize() image.Point {
	return image.Pt(c.Width, c.Height)
}

// DBPath returns the SQLite database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "airpiano.db")
}

// Validate checks the configuration for values the keyboard and engines
// cannot work with.
func (c *Config) Validate() error {
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("camera size must be positive, got %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("camera.fps must be positive, got %d", c.Camera.FPS)
	}

	if err := c.Keyboard.validate(c.Camera.FrameSize()); err != nil {
		return err
	}

	if c.Trigger.Cooldown < 0 {
		return fmt.Errorf("trigger.cooldown must be >= 0, got %s", c.Trigger.Cooldown)
	}
	if len(c.Trigger.Fingertips) == 0 {
		return fmt.Errorf("trigger.fingertips must name at least one fingertip")
	}
	for _, f := range c.Trigger.Fingertips {
		switch strings.ToLower(f) {
		case "index", "middle":
		default:
			return fmt.Errorf("invalid fingertip: %s (must be 'index' or 'middle')", f)
		}
	}

	if err := c.Voice.validate(c.Record != ""); err != nil {
		return err
	}

	if c.Detector.MaxHands < 1 {
		return fmt.Errorf("detector.max_hands must be >= 1, got %d", c.Detector.MaxHands)
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be within 0..1, got %g", c.Detector.MinConfidence)
	}
	if c.Detector.InferenceWidth < 0 {
		return fmt.Errorf("detector.inference_width must be >= 0, got %d", c.Detector.InferenceWidth)
	}
	if c.MotionThreshold < 0 || c.MotionThreshold > 100 {
		return fmt.Errorf("motion_threshold must be within 0..100, got %g", c.MotionThreshold)
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required when the server is enabled")
	}
	if c.Record != "" && !strings.HasSuffix(strings.ToLower(c.Record), ".mid") {
		return fmt.Errorf("record path must end in .mid: %s", c.Record)
	}
	return nil
}

func (k KeyboardConfig) validate(frame image.Point) error {
	if k.Octaves < 1 {
		return fmt.Errorf("keyboard.octaves must be >= 1, got %d", k.Octaves)
	}
	if k.WhiteWidth <= 0 || k.WhiteHeight <= 0 || k.BlackWidth <= 0 || k.BlackHeight <= 0 {
		return fmt.Errorf("keyboard key sizes must be positive")
	}
	if k.BlackHeight >= k.WhiteHeight {
		return fmt.Errorf("keyboard.black_height (%d) must be less than white_height (%d)", k.BlackHeight, k.WhiteHeight)
	}
	if k.BlackWidth >= k.WhiteWidth {
		return fmt.Errorf("keyboard.black_width (%d) must be less than white_width (%d)", k.BlackWidth, k.WhiteWidth)
	}
	if k.OriginX < 0 || k.OriginY < 0 {
		return fmt.Errorf("keyboard origin must not be negative")
	}
	if k.BaseOctave < -1 || (k.BaseOctave+1)*12+k.Octaves*keyboard.NotesPerOctave > 128 {
		return fmt.Errorf("keyboard.base_octave %d with %d octaves leaves the MIDI note range", k.BaseOctave, k.Octaves)
	}

	bounds := keyboard.Build(k.Layout()).Bounds()
	if !bounds.In(image.Rectangle{Max: frame}) {
		return fmt.Errorf("keyboard %v does not fit in a %dx%d frame", bounds, frame.X, frame.Y)
	}
	return nil
}

// validate checks the voice settings. The MIDI channel and velocity are
// also used by the recorder, so they are checked whenever recording.
func (v VoiceConfig) validate(recording bool) error {
	if _, err := voice.ParsePolicy(v.Policy); err != nil {
		return fmt.Errorf("invalid voice.policy: %w", err)
	}

	if v.Engine == EngineMIDI || recording {
		if v.MIDI.Channel < 0 || v.MIDI.Channel > 15 {
			return fmt.Errorf("voice.midi.channel must be within 0..15, got %d", v.MIDI.Channel)
		}
		if v.MIDI.Velocity < 1 || v.MIDI.Velocity > 127 {
			return fmt.Errorf("voice.midi.velocity must be within 1..127, got %d", v.MIDI.Velocity)
		}
	}

	switch v.Engine {
	case EngineMIDI:
		if v.MIDI.Hold <= 0 {
			return fmt.Errorf("voice.midi.hold must be positive, got %s", v.MIDI.Hold)
		}
	case EngineSample:
		if v.TonesDir == "" && v.Bank == "" {
			return fmt.Errorf("voice.engine 'sample' needs tones_dir or bank")
		}
	case EngineMock:
	default:
		return fmt.Errorf("invalid voice.engine: %s (must be 'midi', 'sample' or 'mock')", v.Engine)
	}
	return nil
}
