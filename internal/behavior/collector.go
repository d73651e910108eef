package behavior

import (
	"sync"
	"time"

	"github.com/shortontech/botsense/internal/event"
)

const (
	interactionClick = "click"
	interactionKey   = "key"
	interactionCopy  = "copy"
	interactionPaste = "paste"
)

// State is the mutable behavioral record of one page session.
type State struct {
	Pointer      *History[Point]
	Scrolls      *History[ScrollSample]
	Keys         *History[Keystroke]
	Interactions *History[Interaction]

	CopyPaste      int
	FocusedSeconds float64
	LastActivity   float64 // unix milliseconds
	Visible        bool
}

// Collector ingests interaction events and answers per-channel verdicts.
// It is safe for concurrent use; the focus ticker and the event feed may run
// on different goroutines.
type Collector struct {
	mu    sync.Mutex
	th    Thresholds
	now   func() time.Time
	state State
}

// NewCollector builds an empty collector. A nil clock means time.Now.
func NewCollector(th Thresholds, now func() time.Time) *Collector {
	if now == nil {
		now = time.Now
	}
	return &Collector{
		th:  th,
		now: now,
		state: State{
			Pointer:      NewHistory[Point](PointerCap),
			Scrolls:      NewHistory[ScrollSample](ScrollCap),
			Keys:         NewHistory[Keystroke](KeystrokeCap),
			Interactions: NewHistory[Interaction](InteractionCap),
			LastActivity: millis(now()),
			Visible:      true,
		},
	}
}

// Record appends ev to its channel history and refreshes last activity.
func (c *Collector) Record(ev event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.state
	switch ev.Kind {
	case event.PointerMove:
		s.Pointer.Push(Point{X: ev.X, Y: ev.Y, TS: ev.TS})
	case event.Scroll:
		s.Scrolls.Push(ScrollSample{Offset: ev.ScrollY, TS: ev.TS})
	case event.KeyPress:
		s.Keys.Push(Keystroke{Key: ev.Key, TS: ev.TS})
		s.Interactions.Push(Interaction{Kind: interactionKey, TS: ev.TS})
	case event.Click:
		s.Interactions.Push(Interaction{Kind: interactionClick, TS: ev.TS})
	case event.Copy:
		s.CopyPaste++
		s.Interactions.Push(Interaction{Kind: interactionCopy, TS: ev.TS})
	case event.Paste:
		s.CopyPaste++
		s.Interactions.Push(Interaction{Kind: interactionPaste, TS: ev.TS})
	case event.VisibilityChange:
		s.Visible = ev.Visible
	default:
		return
	}
	s.LastActivity = millis(c.now())
}

// Tick credits one second of focused time if the page is visible.
func (c *Collector) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Visible {
		c.state.FocusedSeconds++
	}
}

// Assess evaluates a single channel against the current state.
func (c *Collector) Assess(ch Channel) ChannelVerdict {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assess(ch)
}

// AssessAll evaluates every channel and the aggregate verdict.
func (c *Collector) AssessAll() Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := Report{
		Pointer:     c.assess(ChannelPointer),
		Scroll:      c.assess(ChannelScroll),
		Keystroke:   c.assess(ChannelKeystroke),
		Interaction: c.assess(ChannelInteraction),
		CopyPaste:   c.assess(ChannelCopyPaste),
		Focus:       c.assess(ChannelFocus),
	}
	for _, v := range r.Verdicts() {
		if v.Passed {
			r.PassedChecks++
		}
	}
	// Checks that defaulted for lack of data still count toward the majority.
	r.OK = r.PassedChecks >= MinPassing
	return r
}

func (c *Collector) assess(ch Channel) ChannelVerdict {
	s := &c.state
	v := ChannelVerdict{Channel: ch}

	switch ch {
	case ChannelPointer:
		pts := s.Pointer.Items()
		v.Value, v.Evaluated = pointerNaturalness(pts)
		v.Threshold, v.Samples = c.th.Pointer, len(pts)
	case ChannelScroll:
		v.Value, v.Samples, v.Evaluated = scrollNaturalness(s.Scrolls.Items())
		v.Threshold = c.th.Scroll
	case ChannelKeystroke:
		v.Value, v.Samples, v.Evaluated = keystrokeNaturalness(s.Keys.Items())
		v.Threshold = c.th.Keystroke
	case ChannelInteraction:
		v.Value, v.Samples, v.Evaluated = interactionNaturalness(s.Interactions.Items())
		v.Threshold = c.th.Interaction
	case ChannelCopyPaste:
		v.Value = float64(s.CopyPaste)
		v.Threshold = float64(c.th.MaxCopyPaste)
		v.Samples, v.Evaluated = s.CopyPaste, true
		v.Passed = s.CopyPaste <= c.th.MaxCopyPaste
		return v
	case ChannelFocus:
		v.Value = focusRatio(s.FocusedSeconds, s.LastActivity, millis(c.now()))
		v.Threshold = c.th.MinFocusRatio
		v.Samples, v.Evaluated = int(s.FocusedSeconds), true
		v.Passed = v.Value >= c.th.MinFocusRatio
		return v
	default:
		return v
	}

	v.Passed = !v.Evaluated || v.Value >= v.Threshold
	return v
}

// Snapshot returns a copy of the scalar counters for reporting.
func (c *Collector) Snapshot() (copyPaste int, focusedSeconds float64, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CopyPaste, c.state.FocusedSeconds, c.state.Visible
}

func millis(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e6
}
