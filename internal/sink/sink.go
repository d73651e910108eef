package sink

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/shortontech/botsense/internal/metrics"
	"github.com/shortontech/botsense/internal/report"
)

type Sink interface {
	Start(ctx context.Context) error
	Enqueue(r report.Report) error
	Close() error
	Name() string // Returns the sink name for metrics and logging
}

// Fanout hands every report to each configured sink. A failing sink is
// logged and counted; it never blocks the others.
type Fanout struct {
	sinks   []Sink
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewFanout wraps sinks. m and log may be nil.
func NewFanout(m *metrics.Metrics, log *zap.Logger, sinks ...Sink) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fanout{sinks: sinks, metrics: m, log: log}
}

// Names lists the wrapped sinks in order.
func (f *Fanout) Names() []string {
	names := make([]string, 0, len(f.sinks))
	for _, s := range f.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Start starts every sink and stops at the first failure.
func (f *Fanout) Start(ctx context.Context) error {
	for _, s := range f.sinks {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("start %s sink: %w", s.Name(), err)
		}
		f.log.Info("sink: started", zap.String("sink", s.Name()))
	}
	return nil
}

// Emit enqueues r into every sink and returns how many accepted it.
func (f *Fanout) Emit(r report.Report) int {
	if f.metrics != nil {
		f.metrics.ObserveReport(r)
	}
	ok := 0
	for _, s := range f.sinks {
		if err := s.Enqueue(r); err != nil {
			f.log.Warn("sink: enqueue failed",
				zap.String("sink", s.Name()),
				zap.String("report_id", r.ID),
				zap.Error(err))
			if f.metrics != nil {
				f.metrics.IncrementSinkErrors(s.Name(), "enqueue_error")
			}
			continue
		}
		ok++
		if f.metrics != nil {
			f.metrics.IncrementReportsEmitted(s.Name())
		}
	}
	return ok
}

// Close closes every sink and joins their errors.
func (f *Fanout) Close() error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s sink: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
