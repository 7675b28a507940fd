package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/airpiano/internal/app"
	"github.com/ayusman/airpiano/internal/audio"
	"github.com/ayusman/airpiano/internal/capture"
	"github.com/ayusman/airpiano/internal/config"
	"github.com/ayusman/airpiano/internal/detector"
	"github.com/ayusman/airpiano/internal/overlay"
	"github.com/ayusman/airpiano/internal/server"
	"github.com/ayusman/airpiano/internal/store"
)

const frameSide = 1024

func pointAt(x, y int) []detector.HandLandmarks {
	return []detector.HandLandmarks{detector.PointingLandmarks(float64(x)/frameSide, float64(y)/frameSide)}
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	admin := httptest.NewServer(server.New(server.Config{Store: s}))
	defer admin.Close()
	client := admin.Client()

	t.Run("CreateAndActivateBank", func(t *testing.T) {
		resp, err := client.Post(
			admin.URL+"/api/voices",
			"application/json",
			strings.NewReader(`{"name": "bells", "engine": "midi", "samples": {"0": "midi:84"}}`),
		)
		if err != nil {
			t.Fatalf("create bank error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
		}

		resp, err = client.Post(admin.URL+"/api/voices/bells/activate", "application/json", nil)
		if err != nil {
			t.Fatalf("activate error = %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
	})

	settings := config.Default()
	settings.Window = false
	settings.DataDir = tmpDir
	settings.Voice.Engine = config.EngineMock

	engine := audio.NewMockEngine()
	application, err := app.New(app.Config{Settings: settings, Store: s, Engine: engine})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}

	cam := capture.NewBlankCamera(frameSide, frameSide, 3)
	defer cam.Release()
	det := detector.NewMockDetector()
	// C (banked), held, then E (white key 2, x 110..150).
	det.SetSequence([][]detector.HandLandmarks{pointAt(50, 10), pointAt(50, 10), pointAt(130, 120)})

	application.SetCamera(cam)
	application.SetDetector(det)
	application.SetRenderer(overlay.Headless{})

	live := httptest.NewServer(server.New(application.ServerConfig("")))
	defer live.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	t.Run("EngineCommands", func(t *testing.T) {
		var got []string
		for _, c := range engine.Commands() {
			got = append(got, c.String())
		}
		want := []string{"play(midi:84)", "stop(midi:84)", "play(midi:64)", "stop(midi:64)"}
		if strings.Join(got, " ") != strings.Join(want, " ") {
			t.Errorf("expected %v, got %v", want, got)
		}
	})

	t.Run("StateReplay", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(live.URL, "http") + "/api/state"
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			t.Fatalf("dial error = %v", err)
		}
		defer conn.Close()

		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var state server.State
		if err := conn.ReadJSON(&state); err != nil {
			t.Fatalf("read state error = %v", err)
		}

		if state.Seq != 3 {
			t.Errorf("expected last state seq 3, got %d", state.Seq)
		}
		if len(state.Highlighted) != 1 || state.Highlighted[0] != 4 {
			t.Errorf("expected E highlighted, got %v", state.Highlighted)
		}
		if len(state.Fired) != 1 || state.Fired[0].Name != "E4" || state.Fired[0].Stopped != 0 {
			t.Errorf("unexpected fires %+v", state.Fired)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := live.Client().Get(live.URL + "/metrics")
		if err != nil {
			t.Fatalf("metrics error = %v", err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)

		for _, want := range []string{
			`airpiano_frames_total{outcome="processed"} 3`,
			`airpiano_key_fires_total{note="0"} 1`,
			`airpiano_key_fires_total{note="4"} 1`,
		} {
			if !strings.Contains(string(body), want) {
				t.Errorf("expected metrics to contain %q", want)
			}
		}
	})

	t.Run("Layout", func(t *testing.T) {
		resp, err := live.Client().Get(live.URL + "/api/layout")
		if err != nil {
			t.Fatalf("layout error = %v", err)
		}
		defer resp.Body.Close()

		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if len(body) == 0 {
			t.Error("expected a layout document")
		}
	})
}
