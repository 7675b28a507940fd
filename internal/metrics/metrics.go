// Package metrics exposes Prometheus collectors for the frame loop.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "airpiano"

// Metrics holds the collectors of one running session on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	frames        *prometheus.CounterVec
	frameDuration prometheus.Histogram
	hands         prometheus.Gauge
	heldKeys      prometheus.Gauge
	fires         *prometheus.CounterVec
	voiceErrors   prometheus.Counter
}

// New creates the collectors and registers them, plus the Go runtime
// collectors, on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Frames read from the camera, by outcome.",
			},
			[]string{"outcome"},
		),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Time spent processing one frame.",
			Buckets:   []float64{.001, .0025, .005, .01, .02, .033, .05, .1, .25},
		}),
		hands: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hands",
			Help:      "Hands detected in the last processed frame.",
		}),
		heldKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "held_keys",
			Help:      "Keys held by the trigger gate after the last processed frame.",
		}),
		fires: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "key_fires_total",
				Help:      "Key triggers, by note index.",
			},
			[]string{"note"},
		),
		voiceErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_errors_total",
			Help:      "Fires that could not be played.",
		}),
	}

	m.registry.MustRegister(
		m.frames, m.frameDuration, m.hands, m.heldKeys, m.fires, m.voiceErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Frame outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeReused    = "reused" // no motion, previous hands reused
	OutcomeError     = "error"
)

// ObserveFrame records one frame.
func (m *Metrics) ObserveFrame(outcome string, d time.Duration) {
	m.frames.WithLabelValues(outcome).Inc()
	if outcome != OutcomeError {
		m.frameDuration.Observe(d.Seconds())
	}
}

// SetHands records the hand count of the last frame.
func (m *Metrics) SetHands(n int) {
	m.hands.Set(float64(n))
}

// SetHeld records how many keys the trigger gate holds, including keys
// waiting out their cooldown.
func (m *Metrics) SetHeld(n int) {
	m.heldKeys.Set(float64(n))
}

// Fire records a key trigger. failed marks a fire that did not sound.
func (m *Metrics) Fire(note int, failed bool) {
	m.fires.WithLabelValues(strconv.Itoa(note)).Inc()
	if failed {
		m.voiceErrors.Inc()
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
