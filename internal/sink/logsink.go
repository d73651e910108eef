package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/shortontech/botsense/internal/report"
)

// LogSink writes each report as a structured log line.
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSink{log: log.Named("report")}
}

func (s *LogSink) Start(ctx context.Context) error { return nil }

func (s *LogSink) Enqueue(r report.Report) error {
	s.log.Info("analysis",
		zap.String("report_id", r.ID),
		zap.String("session_id", r.SessionID),
		zap.String("classification", r.Classification()),
		zap.Float64("score", r.Score),
		zap.Int("passed_checks", r.PassedChecks),
		zap.Strings("failed_checks", r.FailedChecks),
		zap.String("fingerprint_hash", r.FingerprintHash),
		zap.String("client_ip", r.ClientIP),
	)
	return nil
}

func (s *LogSink) Close() error { return nil }

func (s *LogSink) Name() string { return "log" }
