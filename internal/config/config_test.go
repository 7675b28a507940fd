package config

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	layout := cfg.Keyboard.Layout()
	if layout.Octaves != 2 || layout.Origin != image.Pt(30, 0) {
		t.Errorf("unexpected default layout: %+v", layout)
	}
	if layout.WhiteWidth != 40 || layout.WhiteHeight != 150 {
		t.Errorf("unexpected white key size %dx%d", layout.WhiteWidth, layout.WhiteHeight)
	}
	if cfg.ExitKey != 27 {
		t.Errorf("expected Escape as exit key, got %d", cfg.ExitKey)
	}
}

func TestLoad(t *testing.T) {
	t.Run("empty path returns defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Voice.Policy != "mono" {
			t.Errorf("expected mono policy, got %s", cfg.Voice.Policy)
		}
	})

	t.Run("file overlays defaults", func(t *testing.T) {
		path := writeConfig(t, `
keyboard:
  octaves: 1
trigger:
  cooldown: 150ms
  fingertips: [index]
voice:
  policy: poly
  engine: mock
`)
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Keyboard.Octaves != 1 {
			t.Errorf("expected 1 octave, got %d", cfg.Keyboard.Octaves)
		}
		if cfg.Keyboard.WhiteWidth != 40 {
			t.Errorf("expected default white width to survive, got %d", cfg.Keyboard.WhiteWidth)
		}
		if cfg.Trigger.Cooldown != 150*time.Millisecond {
			t.Errorf("expected 150ms cooldown, got %s", cfg.Trigger.Cooldown)
		}
		if len(cfg.Trigger.Fingertips) != 1 || cfg.Trigger.Fingertips[0] != "index" {
			t.Errorf("expected [index], got %v", cfg.Trigger.Fingertips)
		}
		if cfg.Voice.Policy != "poly" || cfg.Voice.Engine != EngineMock {
			t.Errorf("unexpected voice config %+v", cfg.Voice)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/config.yaml")
		if err == nil || !strings.Contains(err.Error(), "failed to read config") {
			t.Errorf("expected read error, got %v", err)
		}
	})

	t.Run("invalid YAML", func(t *testing.T) {
		path := writeConfig(t, "keyboard: [unclosed\n")
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "failed to parse YAML") {
			t.Errorf("expected parse error, got %v", err)
		}
	})

	t.Run("invalid values", func(t *testing.T) {
		path := writeConfig(t, "keyboard:\n  black_height: 200\n")
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "invalid configuration") {
			t.Errorf("expected validation error, got %v", err)
		}
	})
}

func TestLoadOptional(t *testing.T) {
	cfg, err := LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Keyboard.Octaves != Default().Keyboard.Octaves {
		t.Errorf("expected defaults, got %+v", cfg.Keyboard)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero octaves", func(c *Config) { c.Keyboard.Octaves = 0 }, "octaves"},
		{"black taller than white", func(c *Config) { c.Keyboard.BlackHeight = 150 }, "black_height"},
		{"black wider than white", func(c *Config) { c.Keyboard.BlackWidth = 40 }, "black_width"},
		{"keyboard wider than frame", func(c *Config) { c.Keyboard.Octaves = 5 }, "does not fit"},
		{"keyboard below frame", func(c *Config) { c.Keyboard.OriginY = 400 }, "does not fit"},
		{"negative origin", func(c *Config) { c.Keyboard.OriginX = -1 }, "origin"},
		{"octave out of MIDI range", func(c *Config) { c.Keyboard.BaseOctave = 9 }, "MIDI note range"},
		{"negative cooldown", func(c *Config) { c.Trigger.Cooldown = -time.Second }, "cooldown"},
		{"no fingertips", func(c *Config) { c.Trigger.Fingertips = nil }, "fingertips"},
		{"unknown fingertip", func(c *Config) { c.Trigger.Fingertips = []string{"thumb"} }, "thumb"},
		{"unknown policy", func(c *Config) { c.Voice.Policy = "stereo" }, "voice.policy"},
		{"long policy name", func(c *Config) { c.Voice.Policy = "polyphonic" }, "voice.policy"},
		{"unknown engine", func(c *Config) { c.Voice.Engine = "fm" }, "voice.engine"},
		{"midi channel", func(c *Config) { c.Voice.MIDI.Channel = 16 }, "channel"},
		{"midi velocity", func(c *Config) { c.Voice.MIDI.Velocity = 0 }, "velocity"},
		{"midi hold", func(c *Config) { c.Voice.MIDI.Hold = 0 }, "hold"},
		{"sample without source", func(c *Config) {
			c.Voice.Engine = EngineSample
			c.Voice.TonesDir = ""
		}, "tones_dir"},
		{"camera size", func(c *Config) { c.Camera.Width = 0 }, "camera size"},
		{"camera fps", func(c *Config) { c.Camera.FPS = 0 }, "fps"},
		{"max hands", func(c *Config) { c.Detector.MaxHands = 0 }, "max_hands"},
		{"confidence", func(c *Config) { c.Detector.MinConfidence = 1.5 }, "min_confidence"},
		{"motion threshold", func(c *Config) { c.MotionThreshold = 101 }, "motion_threshold"},
		{"server addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"record extension", func(c *Config) { c.Record = "take.wav" }, ".mid"},
		{"recording with a bad channel", func(c *Config) {
			c.Voice.Engine = EngineMock
			c.Voice.MIDI.Channel = 16
			c.Record = "take.mid"
		}, "channel"},
		{"recording with zero velocity", func(c *Config) {
			c.Voice.Engine = EngineMock
			c.Voice.MIDI.Velocity = 0
			c.Record = "take.mid"
		}, "velocity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_DBPath(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/tmp/airpiano"
	if got := cfg.DBPath(); got != "/tmp/airpiano/airpiano.db" {
		t.Errorf("unexpected db path %s", got)
	}
}

func TestValidate_MIDIFieldsOnlyWhenUsed(t *testing.T) {
	cfg := Default()
	cfg.Voice.Engine = EngineMock
	cfg.Voice.MIDI.Channel = 16
	cfg.Voice.MIDI.Velocity = 0

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected MIDI fields to be ignored without midi output or recording, got %v", err)
	}
}
