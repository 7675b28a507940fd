package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector finds hands in a video frame.
type Detector interface {
	// Detect analyzes a video frame and returns detected hand landmarks.
	// Returns an empty slice if no hands are detected.
	Detect(frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64

	// Script overrides the location of the landmark service script.
	Script string

	// Python overrides the interpreter used to run Script.
	Python string

	// IdleTimeout stops the service after this long without a frame.
	IdleTimeout time.Duration

	// InferenceWidth scales wider frames down to this width before they are
	// sent. Zero sends frames as captured.
	InferenceWidth int
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.8,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
		InferenceWidth:  640,
	}
}
