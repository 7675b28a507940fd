// Package overlay draws the keyboard and fingertips over camera frames and
// shows them in a window.
package overlay

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/airpiano/internal/keyboard"
	"github.com/ayusman/airpiano/internal/piano"
)

// Palette holds the overlay colors.
type Palette struct {
	White       color.RGBA
	Black       color.RGBA
	Border      color.RGBA
	Highlight   color.RGBA
	HighlightBk color.RGBA
	Label       color.RGBA
	Fingertip   color.RGBA
	FingertipOn color.RGBA
}

// DefaultPalette returns the standard colors.
func DefaultPalette() Palette {
	return Palette{
		White:       color.RGBA{255, 255, 255, 0},
		Black:       color.RGBA{0, 0, 0, 0},
		Border:      color.RGBA{60, 60, 60, 0},
		Highlight:   color.RGBA{120, 200, 255, 0},
		HighlightBk: color.RGBA{40, 110, 200, 0},
		Label:       color.RGBA{90, 90, 90, 0},
		Fingertip:   color.RGBA{255, 0, 255, 0},
		FingertipOn: color.RGBA{0, 255, 0, 0},
	}
}

// MarkerRadius is the radius of a fingertip marker in pixels.
const MarkerRadius = 8

// Painter draws a layout and the state of one frame onto an image.
type Painter struct {
	layout     *keyboard.Layout
	palette    Palette
	baseOctave int
	labels     bool
}

// NewPainter creates a Painter. baseOctave names note 0 in key labels.
func NewPainter(layout *keyboard.Layout, baseOctave int) *Painter {
	return &Painter{
		layout:     layout,
		palette:    DefaultPalette(),
		baseOctave: baseOctave,
		labels:     true,
	}
}

// SetLabels turns note labels on white keys on or off.
func (p *Painter) SetLabels(on bool) {
	p.labels = on
}

// Draw paints white keys, then black keys on top, then fingertip markers.
// Touched keys are filled with the highlight colors.
func (p *Painter) Draw(img *gocv.Mat, f piano.Frame) {
	touched := make(map[int]bool, len(f.Highlighted))
	for _, n := range f.Highlighted {
		touched[n] = true
	}

	for _, k := range p.layout.White {
		fill := p.palette.White
		if touched[k.Note] {
			fill = p.palette.Highlight
		}
		gocv.Rectangle(img, k.Rect, fill, -1)
		gocv.Rectangle(img, k.Rect, p.palette.Border, 1)

		if p.labels && k.Note%keyboard.NotesPerOctave == 0 {
			org := image.Pt(k.Rect.Min.X+4, k.Rect.Max.Y-8)
			gocv.PutText(img, keyboard.NoteName(k.Note, p.baseOctave), org, gocv.FontHersheySimplex, 0.4, p.palette.Label, 1)
		}
	}

	for _, k := range p.layout.Black {
		fill := p.palette.Black
		if touched[k.Note] {
			fill = p.palette.HighlightBk
		}
		gocv.Rectangle(img, k.Rect, fill, -1)
	}

	for _, fp := range f.Points {
		c := p.palette.Fingertip
		if fp.Note >= 0 {
			c = p.palette.FingertipOn
		}
		gocv.Circle(img, fp.Point, MarkerRadius, c, -1)
	}
}
