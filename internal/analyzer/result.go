package analyzer

import (
	"time"

	"github.com/shortontech/botsense/internal/behavior"
	"github.com/shortontech/botsense/internal/fingerprint"
	"github.com/shortontech/botsense/internal/network"
	"github.com/shortontech/botsense/internal/report"
)

// Dimension weights in tenths of the score.
const (
	behaviorCredit    = 6
	fingerprintCredit = 3
	networkCredit     = 1
	fullCredit        = 10

	// A session earning less credit than this scores above 0.7 and is a bot.
	humanCredit = 3
)

// Result is a fresh analysis of a session. It is never cached.
type Result struct {
	Score         float64 `json:"score"`
	IsBot         bool    `json:"isBot"`
	BehaviorOK    bool    `json:"behaviorOk"`
	FingerprintOK bool    `json:"fingerprintOk"`
	NetworkOK     bool    `json:"networkOk"`
	Details       Details `json:"details"`
}

// Details mirrors every signal behind a Result.
type Details struct {
	SessionID string          `json:"sessionId"`
	Behavior  behavior.Report `json:"behavior"`

	Fingerprint FingerprintDetails `json:"fingerprint"`
	Network     NetworkDetails     `json:"network"`
}

type FingerprintDetails struct {
	Consistency             fingerprint.Consistency `json:"consistency"`
	Summary                 fingerprint.Summary     `json:"summary"`
	Hash                    string                  `json:"hash"`
	PreviousFingerprintHash string                  `json:"previousFingerprintHash,omitempty"`
}

type NetworkDetails struct {
	Report            network.Report          `json:"report"`
	Connection        *network.ConnectionInfo `json:"connection,omitempty"`
	ReportedIP        string                  `json:"reportedIp,omitempty"`
	PublicIP          string                  `json:"publicIp,omitempty"`
	LocalIP           string                  `json:"localIp,omitempty"`
	ProxyHeaders      *bool                   `json:"proxyHeaders,omitempty"`
	TCPSuspicious     *bool                   `json:"tcpSuspicious,omitempty"`
	AutomationHeaders []string                `json:"automationHeaders"`
}

// Score combines the three dimension verdicts. Behavior is worth 0.6,
// fingerprint 0.3 and network 0.1; the score is 1 minus the earned credit and
// a score above 0.7 is a bot. Credit is summed in integer tenths so the 0.7
// boundary is exact.
func Score(behaviorOK, fingerprintOK, networkOK bool) (score float64, isBot bool) {
	credit := 0
	if behaviorOK {
		credit += behaviorCredit
	}
	if fingerprintOK {
		credit += fingerprintCredit
	}
	if networkOK {
		credit += networkCredit
	}
	return float64(fullCredit-credit) / fullCredit, credit < humanCredit
}

// Report flattens r into the record sent to sinks.
func (r Result) Report(id string, ts time.Time) report.Report {
	return report.Report{
		ID:              id,
		TS:              ts.UTC(),
		SessionID:       r.Details.SessionID,
		Score:           r.Score,
		IsBot:           r.IsBot,
		BehaviorOK:      r.BehaviorOK,
		FingerprintOK:   r.FingerprintOK,
		NetworkOK:       r.NetworkOK,
		PassedChecks:    r.Details.Behavior.PassedChecks,
		FailedChecks:    r.failedChecks(),
		FingerprintHash: r.Details.Fingerprint.Hash,
		ClientIP:        r.Details.Network.ReportedIP,
	}
}

func (r Result) failedChecks() []string {
	failed := []string{}
	for _, v := range r.Details.Behavior.Verdicts() {
		if !v.Passed {
			failed = append(failed, "behavior."+string(v.Channel))
		}
	}
	for _, name := range r.Details.Fingerprint.Consistency.Failed {
		failed = append(failed, "fingerprint."+name)
	}
	for _, name := range r.Details.Network.Report.Failed {
		failed = append(failed, "network."+name)
	}
	return failed
}
