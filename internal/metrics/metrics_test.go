package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveFrame(OutcomeProcessed, 10*time.Millisecond)
	m.ObserveFrame(OutcomeProcessed, 12*time.Millisecond)
	m.ObserveFrame(OutcomeReused, time.Millisecond)
	m.ObserveFrame(OutcomeError, 0)

	if got := testutil.ToFloat64(m.frames.WithLabelValues(OutcomeProcessed)); got != 2 {
		t.Errorf("processed frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.frames.WithLabelValues(OutcomeError)); got != 1 {
		t.Errorf("error frames = %v, want 1", got)
	}

	m.Fire(0, false)
	m.Fire(0, false)
	m.Fire(4, true)

	if got := testutil.ToFloat64(m.fires.WithLabelValues("0")); got != 2 {
		t.Errorf("fires for note 0 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.voiceErrors); got != 1 {
		t.Errorf("voice errors = %v, want 1", got)
	}

	m.SetHands(2)
	m.SetHeld(3)
	if got := testutil.ToFloat64(m.hands); got != 2 {
		t.Errorf("hands = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.heldKeys); got != 3 {
		t.Errorf("held keys = %v, want 3", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Fire(7, false)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}

	for _, want := range []string{
		`airpiano_key_fires_total{note="7"} 1`,
		"airpiano_frame_duration_seconds",
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected metrics output to contain %q", want)
		}
	}
}
