package session

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

const keyPrefix = "botsense:session:"

// Store reads and writes session records. Every failure is logged at debug
// level and swallowed; callers only see "found" or "not found".
type Store struct {
	kv  KV
	log *zap.Logger
}

func NewStore(kv KV, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{kv: kv, log: log}
}

// Load returns the record saved under sessionID, if any.
func (s *Store) Load(ctx context.Context, sessionID string) (Record, bool) {
	if s == nil || s.kv == nil || sessionID == "" {
		return Record{}, false
	}

	raw, found, err := s.kv.Get(ctx, keyPrefix+sessionID)
	if err != nil {
		s.log.Debug("session: load failed", zap.String("session_id", sessionID), zap.Error(err))
		return Record{}, false
	}
	if !found {
		return Record{}, false
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.log.Debug("session: corrupt record", zap.String("session_id", sessionID), zap.Error(err))
		return Record{}, false
	}
	return rec, true
}

// Save persists rec under its session id and reports whether it was written.
func (s *Store) Save(ctx context.Context, rec Record) bool {
	if s == nil || s.kv == nil || rec.SessionID == "" {
		return false
	}

	b, err := json.Marshal(rec)
	if err != nil {
		s.log.Debug("session: encode failed", zap.Error(err))
		return false
	}
	if err := s.kv.Set(ctx, keyPrefix+rec.SessionID, string(b)); err != nil {
		s.log.Debug("session: save failed", zap.String("session_id", rec.SessionID), zap.Error(err))
		return false
	}
	return true
}

// Ping reports whether the backing KV is reachable. A KV without a health
// check is assumed ready.
func (s *Store) Ping(ctx context.Context) error {
	if p, ok := s.kv.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
