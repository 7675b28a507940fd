// Package piano turns per-frame fingertip positions into key highlights and
// note triggers.
package piano

import (
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/ayusman/airpiano/internal/detector"
	"github.com/ayusman/airpiano/internal/keyboard"
	"github.com/ayusman/airpiano/internal/trigger"
	"github.com/ayusman/airpiano/internal/voice"
)

// Role identifies which fingertip of a hand is tracked.
type Role int

const (
	Index Role = iota
	Middle
)

// Landmark returns the landmark index of the fingertip.
func (r Role) Landmark() int {
	if r == Middle {
		return detector.MiddleTip
	}
	return detector.IndexTip
}

func (r Role) String() string {
	if r == Middle {
		return "middle"
	}
	return "index"
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(text []byte) error {
	v, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// ParseRole parses "index" or "middle".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "index":
		return Index, nil
	case "middle":
		return Middle, nil
	default:
		return Index, fmt.Errorf("unknown fingertip %q", s)
	}
}

// ParseRoles parses a list of fingertip names, keeping order and dropping
// duplicates.
func ParseRoles(names []string) ([]Role, error) {
	var roles []Role
	seen := make(map[Role]bool)
	for _, name := range names {
		r, err := ParseRole(name)
		if err != nil {
			return nil, err
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		roles = append(roles, r)
	}
	return roles, nil
}

// FingerPoint is one tracked fingertip in pixel coordinates.
type FingerPoint struct {
	Hand  int         `json:"hand"`
	Role  Role        `json:"role"`
	Point image.Point `json:"point"`
	Note  int         `json:"note"` // -1 when over no key
}

// Frame is the result of processing one frame.
type Frame struct {
	Points      []FingerPoint
	Highlighted []int // touched notes, first-touch order
	Fired       []voice.Outcome
}

// Session owns the layout, trigger gate and voice arbiter for one run.
// It is not safe for concurrent use.
type Session struct {
	layout  *keyboard.Layout
	gate    *trigger.Gate
	arbiter *voice.Arbiter
	roles   []Role
}

// NewSession creates a session. With no roles, only the index fingertip is
// tracked.
func NewSession(layout *keyboard.Layout, gate *trigger.Gate, arbiter *voice.Arbiter, roles []Role) *Session {
	if len(roles) == 0 {
		roles = []Role{Index}
	}
	return &Session{
		layout:  layout,
		gate:    gate,
		arbiter: arbiter,
		roles:   roles,
	}
}

// ProcessFrame runs hit-testing, gating and voice arbitration for the
// fingertips of every hand, in hand order then role order. Landmarks are
// normalized and scaled by size. Keys nobody touched this frame re-arm
// once their cooldown has elapsed.
func (s *Session) ProcessFrame(hands []detector.HandLandmarks, size image.Point, now time.Time) Frame {
	var f Frame
	touched := make(map[int]bool)

	for h := range hands {
		hand := &hands[h]
		for _, role := range s.roles {
			p, ok := hand.Pixel(role.Landmark(), size)
			if !ok {
				continue
			}
			fp := FingerPoint{Hand: h, Role: role, Point: p, Note: -1}

			key, hit := s.layout.HitTest(p)
			if hit {
				fp.Note = key.Note
				if !touched[key.Note] {
					touched[key.Note] = true
					f.Highlighted = append(f.Highlighted, key.Note)
				}
				if s.gate.Evaluate(key.Note, now) {
					f.Fired = append(f.Fired, s.arbiter.OnFire(key.Note))
				}
			}
			f.Points = append(f.Points, fp)
		}
	}

	s.gate.EndFrame(now)
	s.arbiter.Sync()
	return f
}

// Layout returns the session's keyboard layout.
func (s *Session) Layout() *keyboard.Layout {
	return s.layout
}

// Gate returns the session's trigger gate.
func (s *Session) Gate() *trigger.Gate {
	return s.gate
}

// Arbiter returns the session's voice arbiter.
func (s *Session) Arbiter() *voice.Arbiter {
	return s.arbiter
}

// Roles returns the tracked fingertips.
func (s *Session) Roles() []Role {
	return s.roles
}

// Close stops every playing voice.
func (s *Session) Close() error {
	return s.arbiter.Close()
}
