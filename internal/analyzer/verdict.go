package analyzer

import "github.com/shortontech/botsense/internal/behavior"

// Verdict is the human-readable summary of a Result.
type Verdict struct {
	IsHuman  bool    `json:"isHuman"`
	BotScore float64 `json:"botScore"`
	Details  Labels  `json:"details"`
}

// Labels describes each signal in one word.
type Labels struct {
	Pointer     string `json:"pointer"`
	Scroll      string `json:"scroll"`
	Keystroke   string `json:"keystroke"`
	Interaction string `json:"interaction"`
	CopyPaste   string `json:"copyPaste"`
	Focus       string `json:"focus"`
	Fingerprint string `json:"fingerprint"`
	Network     string `json:"network"`
}

// Verdict builds the labelled summary for r.
func (r Result) Verdict() Verdict {
	b := r.Details.Behavior
	return Verdict{
		IsHuman:  !r.IsBot,
		BotScore: r.Score,
		Details: Labels{
			Pointer:     naturalLabel(b.Pointer),
			Scroll:      naturalLabel(b.Scroll),
			Keystroke:   naturalLabel(b.Keystroke),
			Interaction: naturalLabel(b.Interaction),
			CopyPaste:   label(b.CopyPaste.Passed, "Normal", "Excessive"),
			Focus:       label(b.Focus.Passed, "Focused", "Distracted"),
			Fingerprint: label(r.FingerprintOK, "Consistent", "Inconsistent"),
			Network:     label(r.NetworkOK, "Clean", "Suspicious"),
		},
	}
}

func naturalLabel(v behavior.ChannelVerdict) string {
	return label(v.Passed, "Natural", "Suspicious")
}

func label(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
