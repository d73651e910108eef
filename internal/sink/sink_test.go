package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shortontech/botsense/internal/metrics"
	"github.com/shortontech/botsense/internal/report"
)

type fakeSink struct {
	name     string
	startErr error
	enqErr   error
	closeErr error
	got      []report.Report
	closed   bool
}

func (f *fakeSink) Start(ctx context.Context) error { return f.startErr }
func (f *fakeSink) Enqueue(r report.Report) error {
	if f.enqErr != nil {
		return f.enqErr
	}
	f.got = append(f.got, r)
	return nil
}
func (f *fakeSink) Close() error { f.closed = true; return f.closeErr }
func (f *fakeSink) Name() string { return f.name }

func sampleReport(id string) report.Report {
	return report.Report{
		ID:           id,
		TS:           time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		SessionID:    "s-1",
		Score:        0.9,
		IsBot:        true,
		PassedChecks: 1,
		FailedChecks: []string{"behavior.pointer"},
	}
}

func TestFanoutEmit(t *testing.T) {
	m := metrics.New(nil)
	good := &fakeSink{name: "log"}
	bad := &fakeSink{name: "kafka", enqErr: errors.New("broker down")}
	f := NewFanout(m, nil, good, bad)

	if n := f.Emit(sampleReport("r-1")); n != 1 {
		t.Errorf("Emit() accepted by %d sinks, want 1", n)
	}
	if len(good.got) != 1 || good.got[0].ID != "r-1" {
		t.Errorf("good sink got %+v", good.got)
	}
	if got := testutil.ToFloat64(m.SinkErrors.WithLabelValues("kafka", "enqueue_error")); got != 1 {
		t.Errorf("kafka sink errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ReportsEmitted.WithLabelValues("log")); got != 1 {
		t.Errorf("log reports emitted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Analyses.WithLabelValues("bot")); got != 1 {
		t.Errorf("bot analyses = %v, want 1", got)
	}
}

func TestFanoutLifecycle(t *testing.T) {
	t.Run("start stops at first failure", func(t *testing.T) {
		a := &fakeSink{name: "log"}
		b := &fakeSink{name: "postgres", startErr: errors.New("no db")}
		f := NewFanout(nil, nil, a, b)
		err := f.Start(context.Background())
		if err == nil || !contains(err.Error(), "start postgres sink") {
			t.Errorf("Start() error = %v", err)
		}
	})

	t.Run("close joins errors", func(t *testing.T) {
		a := &fakeSink{name: "log"}
		b := &fakeSink{name: "kafka", closeErr: errors.New("flush timeout")}
		f := NewFanout(nil, nil, a, b)
		err := f.Close()
		if err == nil || !contains(err.Error(), "close kafka sink") {
			t.Errorf("Close() error = %v", err)
		}
		if !a.closed || !b.closed {
			t.Error("every sink should be closed")
		}
	})

	t.Run("names", func(t *testing.T) {
		f := NewFanout(nil, nil, &fakeSink{name: "log"}, &fakeSink{name: "kafka"})
		names := f.Names()
		if len(names) != 2 || names[0] != "log" || names[1] != "kafka" {
			t.Errorf("Names() = %v", names)
		}
	})
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewLogSink(zap.New(core))

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Enqueue(sampleReport("r-9")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if s.Name() != "log" {
		t.Errorf("Name() = %q, want log", s.Name())
	}

	entries := logs.FilterMessage("analysis").All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["report_id"] != "r-9" || fields["classification"] != "bot" {
		t.Errorf("fields = %v", fields)
	}
	if entries[0].LoggerName != "report" {
		t.Errorf("LoggerName = %q, want report", entries[0].LoggerName)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
