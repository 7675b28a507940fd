package keyboard

import "image"

// HitTest returns the topmost key containing p.
//
// Black keys are checked before white keys. Containment is half-open:
// Min is inside, Max is not. Points outside every key, including negative
// or off-frame coordinates, report false.
func (l *Layout) HitTest(p image.Point) (Key, bool) {
	for _, k := range l.Black {
		if p.In(k.Rect) {
			return k, true
		}
	}
	for _, k := range l.White {
		if p.In(k.Rect) {
			return k, true
		}
	}
	return Key{}, false
}
