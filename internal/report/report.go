// Package report defines the flattened analysis record emitted to sinks.
package report

import "time"

// Schema versions the Report wire format.
const Schema = "v1"

// Report is one analysis outcome. Optional fields are omitted when empty.
type Report struct {
	ID        string    `json:"report_id"`
	TS        time.Time `json:"ts"`
	SessionID string    `json:"session_id"`

	Score         float64 `json:"score"`
	IsBot         bool    `json:"is_bot"`
	BehaviorOK    bool    `json:"behavior_ok"`
	FingerprintOK bool    `json:"fingerprint_ok"`
	NetworkOK     bool    `json:"network_ok"`

	PassedChecks int      `json:"passed_checks"`
	FailedChecks []string `json:"failed_checks,omitempty"`

	FingerprintHash string `json:"fingerprint_hash,omitempty"`
	ClientIP        string `json:"client_ip,omitempty"`
}

// Classification is "bot" or "human".
func (r Report) Classification() string {
	if r.IsBot {
		return "bot"
	}
	return "human"
}
