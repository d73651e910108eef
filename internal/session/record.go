// Package session persists the per-session fingerprint record and manages
// the signed session cookie.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Record is the persisted state of one session.
type Record struct {
	FingerprintHash string `json:"fingerprintHash"`
	SessionID       string `json:"sessionId"`
	Timestamp       int64  `json:"timestamp"` // unix milliseconds
}

// NewRecord stamps a record for id at t.
func NewRecord(id, fingerprintHash string, t time.Time) Record {
	return Record{
		FingerprintHash: fingerprintHash,
		SessionID:       id,
		Timestamp:       t.UnixMilli(),
	}
}

// NewID returns a fresh opaque session identifier.
func NewID() string {
	return uuid.NewString()
}
