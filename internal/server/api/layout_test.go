package api

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ayusman/airpiano/internal/keyboard"
)

func TestLayoutHandler(t *testing.T) {
	layout := keyboard.Build(keyboard.Config{
		Octaves:     2,
		Origin:      image.Pt(30, 0),
		WhiteWidth:  40,
		WhiteHeight: 150,
		BlackWidth:  20,
		BlackHeight: 100,
	})

	rec := httptest.NewRecorder()
	NewLayoutHandler(layout, 4).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/layout", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %s", ct)
	}

	var resp layoutResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if resp.Octaves != 2 || resp.Notes != 24 {
		t.Errorf("expected 2 octaves and 24 notes, got %d and %d", resp.Octaves, resp.Notes)
	}
	if len(resp.White) != 14 || len(resp.Black) != 10 {
		t.Fatalf("expected 14 white and 10 black keys, got %d and %d", len(resp.White), len(resp.Black))
	}

	first := resp.White[0]
	if first.X != 30 || first.Y != 0 || first.Width != 40 || first.Height != 150 {
		t.Errorf("unexpected first key geometry %+v", first)
	}
	if first.Name != "C4" || first.Kind != "white" {
		t.Errorf("expected white C4, got %s %s", first.Kind, first.Name)
	}
	if resp.Black[0].Name != "C#4" || resp.Black[0].X != 60 {
		t.Errorf("unexpected first black key %+v", resp.Black[0])
	}
}
