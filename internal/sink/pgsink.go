package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/shortontech/botsense/internal/report"
)

// PGConfig holds configuration for the Postgres sink
type PGConfig struct {
	DSN       string
	Table     string
	BatchSize int
	FlushMS   int
	UseCopy   bool
}

// PGSink batches reports into a JSONB table. A batch is written when it
// reaches BatchSize or every FlushMS, whichever comes first.
type PGSink struct {
	config PGConfig
	db     *sql.DB
	log    *zap.Logger

	mu    sync.Mutex
	batch []report.Report

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var pgColumns = []string{"report_id", "ts", "session_id", "score", "is_bot", "payload"}

// NewPGSinkFromEnv creates a PGSink from environment variables
func NewPGSinkFromEnv(log *zap.Logger) *PGSink {
	return &PGSink{
		config: PGConfig{
			DSN:       getEnvOr("PG_DSN", "postgres://localhost:5432/botsense?sslmode=disable"),
			Table:     getEnvOr("PG_TABLE", "analysis_reports"),
			BatchSize: getIntEnv("PG_BATCH_SIZE", 500),
			FlushMS:   getIntEnv("PG_FLUSH_MS", 500),
			UseCopy:   getBoolEnv("PG_COPY", true),
		},
		log: orNop(log),
	}
}

// NewPGSink creates a PGSink for dsn with default batching
func NewPGSink(dsn string, log *zap.Logger) *PGSink {
	return &PGSink{
		config: PGConfig{
			DSN:       dsn,
			Table:     "analysis_reports",
			BatchSize: 500,
			FlushMS:   500,
			UseCopy:   true,
		},
		log: orNop(log),
	}
}

// NewPGSinkWithDB uses an already opened handle; Start skips connecting.
func NewPGSinkWithDB(db *sql.DB, config PGConfig, log *zap.Logger) *PGSink {
	return &PGSink{config: config, db: db, log: orNop(log)}
}

func (s *PGSink) Start(ctx context.Context) error {
	if err := validateTableName(s.config.Table); err != nil {
		return err
	}
	if s.config.BatchSize <= 0 {
		s.config.BatchSize = 500
	}
	if s.config.FlushMS <= 0 {
		s.config.FlushMS = 500
	}

	if s.db == nil {
		db, err := sql.Open("postgres", s.config.DSN)
		if err != nil {
			return fmt.Errorf("failed to open postgres: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s.db = db
	}

	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.batch = make([]report.Report, 0, s.config.BatchSize)

	if err := s.ensureSchema(); err != nil {
		return err
	}

	s.wg.Add(1)
	go s.flushRoutine()
	return nil
}

func (s *PGSink) ensureSchema() error {
	t := s.config.Table
	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	report_id  TEXT PRIMARY KEY,
	ts         TIMESTAMPTZ NOT NULL,
	session_id TEXT NOT NULL,
	score      DOUBLE PRECISION NOT NULL,
	is_bot     BOOLEAN NOT NULL,
	payload    JSONB NOT NULL
)`, t)
	if _, err := s.db.ExecContext(s.ctx, create); err != nil {
		return fmt.Errorf("failed to create table %s: %w", t, err)
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_ts ON %s (ts)", t, t),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_gin ON %s USING GIN (payload)", t, t),
	}
	for _, q := range indexes {
		if _, err := s.db.ExecContext(s.ctx, q); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", t, err)
		}
	}
	return nil
}

func (s *PGSink) Enqueue(r report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.batch = append(s.batch, r)
	if len(s.batch) < s.config.BatchSize || s.db == nil {
		return nil
	}
	return s.flushBatch()
}

func (s *PGSink) flushRoutine() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Duration(s.config.FlushMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if err := s.flushBatch(); err != nil {
				s.log.Warn("postgres: flush failed", zap.Int("pending", len(s.batch)), zap.Error(err))
			}
			s.mu.Unlock()
		}
	}
}

// flushBatch writes the pending batch. Caller holds s.mu. On failure the
// batch is kept for the next attempt, trimmed to four batches of backlog.
func (s *PGSink) flushBatch() error {
	if len(s.batch) == 0 {
		return nil
	}

	var err error
	if s.config.UseCopy {
		err = s.flushWithCopy()
	} else {
		err = s.flushWithInsert()
	}
	if err != nil {
		if limit := 4 * s.config.BatchSize; limit > 0 && len(s.batch) > limit {
			dropped := len(s.batch) - limit
			s.batch = append(s.batch[:0], s.batch[dropped:]...)
			s.log.Warn("postgres: backlog trimmed", zap.Int("dropped", dropped))
		}
		return err
	}
	s.batch = s.batch[:0]
	return nil
}

func (s *PGSink) flushWithInsert() error {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", s.config.Table, strings.Join(pgColumns, ", "))

	args := make([]any, 0, len(s.batch)*len(pgColumns))
	for i, r := range s.batch {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to serialize report %s: %w", r.ID, err)
		}
		if i > 0 {
			b.WriteString(", ")
		}
		n := i * len(pgColumns)
		fmt.Fprintf(&b, "($%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6)
		args = append(args, r.ID, r.TS, r.SessionID, r.Score, r.IsBot, string(payload))
	}
	b.WriteString(" ON CONFLICT (report_id) DO NOTHING")

	if _, err := s.db.ExecContext(s.ctx, b.String(), args...); err != nil {
		return fmt.Errorf("failed to insert %d reports: %w", len(s.batch), err)
	}
	return nil
}

func (s *PGSink) flushWithCopy() error {
	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(s.ctx, pq.CopyIn(s.config.Table, pgColumns...))
	if err != nil {
		return fmt.Errorf("failed to prepare copy: %w", err)
	}

	for _, r := range s.batch {
		payload, err := json.Marshal(r)
		if err != nil {
			stmt.Close()
			return fmt.Errorf("failed to serialize report %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(s.ctx, r.ID, r.TS, r.SessionID, r.Score, r.IsBot, string(payload)); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy report %s: %w", r.ID, err)
		}
	}
	if _, err := stmt.ExecContext(s.ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to finish copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit copy: %w", err)
	}
	return nil
}

func (s *PGSink) Close() error {
	if s.db == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
	}

	// final flush outside the cancelled context
	s.mu.Lock()
	s.ctx = context.Background()
	err := s.flushBatch()
	s.mu.Unlock()

	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *PGSink) Name() string { return "postgres" }

// validateTableName accepts unquoted Postgres identifiers: a letter or
// underscore followed by letters, digits or underscores, at most 63 bytes.
func validateTableName(name string) error {
	if name == "" || len(name) > 63 {
		return fmt.Errorf("invalid table name %q: length must be 1-63", name)
	}
	for i, c := range name {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return fmt.Errorf("invalid table name %q: unexpected character %q", name, c)
		}
	}
	return nil
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
