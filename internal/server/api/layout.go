package api

import (
	"net/http"

	"github.com/ayusman/airpiano/internal/keyboard"
)

// LayoutHandler serves the keyboard geometry so clients can draw it.
type LayoutHandler struct {
	resp layoutResponse
}

type keyResponse struct {
	Note   int    `json:"note"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type layoutResponse struct {
	Octaves    int           `json:"octaves"`
	Notes      int           `json:"notes"`
	BaseOctave int           `json:"base_octave"`
	White      []keyResponse `json:"white"`
	Black      []keyResponse `json:"black"`
}

// NewLayoutHandler creates a handler for layout. The layout is immutable, so
// the response is built once.
func NewLayoutHandler(layout *keyboard.Layout, baseOctave int) *LayoutHandler {
	resp := layoutResponse{
		Octaves:    layout.Octaves(),
		Notes:      layout.Notes(),
		BaseOctave: baseOctave,
		White:      make([]keyResponse, 0, len(layout.White)),
		Black:      make([]keyResponse, 0, len(layout.Black)),
	}
	for _, k := range layout.White {
		resp.White = append(resp.White, toKeyResponse(k, baseOctave))
	}
	for _, k := range layout.Black {
		resp.Black = append(resp.Black, toKeyResponse(k, baseOctave))
	}
	return &LayoutHandler{resp: resp}
}

func toKeyResponse(k keyboard.Key, baseOctave int) keyResponse {
	return keyResponse{
		Note:   k.Note,
		Name:   keyboard.NoteName(k.Note, baseOctave),
		Kind:   k.Kind.String(),
		X:      k.Rect.Min.X,
		Y:      k.Rect.Min.Y,
		Width:  k.Rect.Dx(),
		Height: k.Rect.Dy(),
	}
}

// ServeHTTP handles GET /api/layout.
func (h *LayoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resp)
}
