package event

import (
	"errors"
	"fmt"
)

// Kind identifies the interaction channel an event belongs to.
type Kind string

const (
	PointerMove      Kind = "pointer-move"
	Scroll           Kind = "scroll"
	KeyPress         Kind = "key-press"
	Click            Kind = "click"
	Copy             Kind = "copy"
	Paste            Kind = "paste"
	VisibilityChange Kind = "visibility-change"
)

var (
	ErrUnknownKind  = errors.New("event: unknown kind")
	ErrBadTimestamp = errors.New("event: negative timestamp")
)

// Event is a single timestamped interaction delivered by the host page.
// Only the payload fields relevant to Kind are meaningful.
type Event struct {
	Kind Kind    `json:"type"`
	TS   float64 `json:"ts"` // milliseconds

	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	ScrollY float64 `json:"scrollY,omitempty"`
	Key     string  `json:"key,omitempty"`
	Visible bool    `json:"visible,omitempty"`
}

// Validate reports whether the event can be recorded.
func (e Event) Validate() error {
	switch e.Kind {
	case PointerMove, Scroll, KeyPress, Click, Copy, Paste, VisibilityChange:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if e.TS < 0 {
		return ErrBadTimestamp
	}
	return nil
}

func PointerAt(ts, x, y float64) Event {
	return Event{Kind: PointerMove, TS: ts, X: x, Y: y}
}

func ScrollTo(ts, offset float64) Event {
	return Event{Kind: Scroll, TS: ts, ScrollY: offset}
}

func KeyAt(ts float64, key string) Event {
	return Event{Kind: KeyPress, TS: ts, Key: key}
}

func ClickAt(ts, x, y float64) Event {
	return Event{Kind: Click, TS: ts, X: x, Y: y}
}

func Visibility(ts float64, visible bool) Event {
	return Event{Kind: VisibilityChange, TS: ts, Visible: visible}
}
