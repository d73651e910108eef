package behavior

// History caps per channel.
const (
	PointerCap     = 100
	ScrollCap      = 50
	KeystrokeCap   = 50
	InteractionCap = 50
)

// Channel names one of the six behavioral checks.
type Channel string

const (
	ChannelPointer     Channel = "pointer"
	ChannelScroll      Channel = "scroll"
	ChannelKeystroke   Channel = "keystroke"
	ChannelInteraction Channel = "interaction"
	ChannelCopyPaste   Channel = "copy_paste"
	ChannelFocus       Channel = "focus"
)

// Channels lists every check in reporting order.
var Channels = []Channel{
	ChannelPointer, ChannelScroll, ChannelKeystroke,
	ChannelInteraction, ChannelCopyPaste, ChannelFocus,
}

// MinPassing is how many of the six checks must pass for behavior to look human.
const MinPassing = 3

// Thresholds configures the per-channel verdicts.
type Thresholds struct {
	Pointer       float64 // minimum pointer naturalness
	Scroll        float64 // minimum scroll naturalness
	Keystroke     float64 // minimum keystroke naturalness
	Interaction   float64 // minimum click timing naturalness
	MaxCopyPaste  int
	MinFocusRatio float64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Pointer:       0.6,
		Scroll:        0.4,
		Keystroke:     0.7,
		Interaction:   0.5,
		MaxCopyPaste:  5,
		MinFocusRatio: 0.4,
	}
}

// Point is a recorded pointer position.
type Point struct {
	X, Y float64
	TS   float64
}

// ScrollSample is a recorded scroll offset.
type ScrollSample struct {
	Offset float64
	TS     float64
}

// Keystroke is a recorded key press.
type Keystroke struct {
	Key string
	TS  float64
}

// Interaction is a recorded discrete interaction (click, key press, copy, paste).
type Interaction struct {
	Kind string
	TS   float64
}

// ChannelVerdict is the outcome of one check. Evaluated is false when the
// check passed by default for lack of data.
type ChannelVerdict struct {
	Channel   Channel `json:"channel"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Evaluated bool    `json:"evaluated"`
	Samples   int     `json:"samples"`
}

// Report holds all six verdicts plus the aggregate.
type Report struct {
	Pointer     ChannelVerdict `json:"pointer"`
	Scroll      ChannelVerdict `json:"scroll"`
	Keystroke   ChannelVerdict `json:"keystroke"`
	Interaction ChannelVerdict `json:"interaction"`
	CopyPaste   ChannelVerdict `json:"copyPaste"`
	Focus       ChannelVerdict `json:"focus"`

	PassedChecks int  `json:"passedChecks"`
	OK           bool `json:"ok"`
}

// Verdicts returns the six verdicts in reporting order.
func (r Report) Verdicts() []ChannelVerdict {
	return []ChannelVerdict{r.Pointer, r.Scroll, r.Keystroke, r.Interaction, r.CopyPaste, r.Focus}
}
