// Package keyboard builds the static piano key geometry and resolves which
// key a screen point falls on.
package keyboard

import (
	"fmt"
	"image"
)

// Kind distinguishes white keys from black keys.
type Kind int

const (
	// White is a natural key.
	White Kind = iota
	// Black is an accidental key, drawn and hit-tested above the white keys.
	Black
)

func (k Kind) String() string {
	if k == Black {
		return "black"
	}
	return "white"
}

// Octave geometry.
const (
	WhitePerOctave = 7
	NotesPerOctave = 12
)

// whiteSemitones maps a white key's position inside its octave to a semitone offset from C.
var whiteSemitones = [WhitePerOctave]int{0, 2, 4, 5, 7, 9, 11}

var noteNames = [NotesPerOctave]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Key is a single piano key.
type Key struct {
	Note int // chromatic index, 0-based across all octaves
	Kind Kind
	Rect image.Rectangle
}

// Config describes the geometry of the keyboard in pixels.
type Config struct {
	Octaves     int
	Origin      image.Point // top-left corner of the first white key
	WhiteWidth  int
	WhiteHeight int
	BlackWidth  int
	BlackHeight int
}

// Layout is the immutable set of keys for a keyboard.
// White and Black are ordered left to right.
type Layout struct {
	White   []Key
	Black   []Key
	octaves int
}

// Build lays out white and black keys for cfg.Octaves octaves.
//
// White keys sit side by side with a pitch of WhiteWidth. A black key
// straddles the boundary after every white key except E and B, and is
// shorter than the white keys so their lower part is never covered.
func Build(cfg Config) *Layout {
	l := &Layout{}
	if cfg.Octaves <= 0 {
		return l
	}
	l.octaves = cfg.Octaves

	numWhite := cfg.Octaves * WhitePerOctave
	l.White = make([]Key, 0, numWhite)
	l.Black = make([]Key, 0, cfg.Octaves*5)

	for i := 0; i < numWhite; i++ {
		octave, pos := i/WhitePerOctave, i%WhitePerOctave
		note := octave*NotesPerOctave + whiteSemitones[pos]

		x := cfg.Origin.X + i*cfg.WhiteWidth
		l.White = append(l.White, Key{
			Note: note,
			Kind: White,
			Rect: image.Rect(x, cfg.Origin.Y, x+cfg.WhiteWidth, cfg.Origin.Y+cfg.WhiteHeight),
		})

		// No black key between E-F and B-C.
		if pos == 2 || pos == 6 {
			continue
		}
		bx := cfg.Origin.X + (i+1)*cfg.WhiteWidth - cfg.BlackWidth/2
		l.Black = append(l.Black, Key{
			Note: note + 1,
			Kind: Black,
			Rect: image.Rect(bx, cfg.Origin.Y, bx+cfg.BlackWidth, cfg.Origin.Y+cfg.BlackHeight),
		})
	}

	return l
}

// Octaves returns the number of octaves in the layout.
func (l *Layout) Octaves() int {
	return l.octaves
}

// Notes returns the number of chromatic note indexes covered by the layout.
func (l *Layout) Notes() int {
	return l.octaves * NotesPerOctave
}

// Key returns the key for a note index.
func (l *Layout) Key(note int) (Key, bool) {
	for _, k := range l.Black {
		if k.Note == note {
			return k, true
		}
	}
	for _, k := range l.White {
		if k.Note == note {
			return k, true
		}
	}
	return Key{}, false
}

// Bounds returns the smallest rectangle containing every key.
func (l *Layout) Bounds() image.Rectangle {
	var r image.Rectangle
	for _, k := range l.White {
		r = r.Union(k.Rect)
	}
	for _, k := range l.Black {
		r = r.Union(k.Rect)
	}
	return r
}

// NoteName returns the scientific pitch name of a note index, e.g. "C#4".
// baseOctave is the octave number of note 0.
func NoteName(note, baseOctave int) string {
	if note < 0 {
		return fmt.Sprintf("?%d", note)
	}
	return fmt.Sprintf("%s%d", noteNames[note%NotesPerOctave], baseOctave+note/NotesPerOctave)
}

// PitchClass returns the note name without octave, e.g. "F#".
func PitchClass(note int) string {
	if note < 0 {
		return ""
	}
	return noteNames[note%NotesPerOctave]
}
