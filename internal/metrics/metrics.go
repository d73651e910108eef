package metrics

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shortontech/botsense/internal/report"
)

// Metrics holds all the Prometheus metrics for botsense
type Metrics struct {
	// Counters
	Analyses       *prometheus.CounterVec
	FailedChecks   *prometheus.CounterVec
	EventsRecorded *prometheus.CounterVec
	InvalidEvents  *prometheus.CounterVec
	ReportsEmitted *prometheus.CounterVec
	SinkErrors     *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec

	// Gauges
	ActiveSessions prometheus.Gauge

	// Histograms
	Scores       prometheus.Histogram
	HTTPDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// Config holds configuration for the metrics server
type Config struct {
	Enabled    bool
	Addr       string
	TLSCert    string
	TLSKey     string
	ClientCA   string
	RequireTLS bool
}

// LoadConfig loads metrics configuration from environment variables
func LoadConfig() Config {
	return Config{
		Enabled:    getBool("METRICS_ENABLED", false),
		Addr:       getOr("METRICS_ADDR", "127.0.0.1:9090"),
		TLSCert:    getOr("METRICS_TLS_CERT", ""),
		TLSKey:     getOr("METRICS_TLS_KEY", ""),
		ClientCA:   getOr("METRICS_CLIENT_CA", ""),
		RequireTLS: getBool("METRICS_REQUIRE_TLS", false),
	}
}

// New creates the metrics and registers them with reg. A nil reg gets a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		Analyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botsense_analyses_total",
				Help: "Total session analyses by classification",
			},
			[]string{"classification"},
		),

		FailedChecks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botsense_failed_checks_total",
				Help: "Total failed checks by name across analyses",
			},
			[]string{"check"},
		),

		EventsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botsense_events_recorded_total",
				Help: "Total interaction events recorded by kind",
			},
			[]string{"kind"},
		),

		InvalidEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botsense_invalid_events_total",
				Help: "Total interaction events rejected by reason",
			},
			[]string{"reason"},
		),

		ReportsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botsense_reports_emitted_total",
				Help: "Total analysis reports handed to a sink",
			},
			[]string{"sink"},
		),

		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botsense_sink_errors_total",
				Help: "Total errors writing to a sink",
			},
			[]string{"sink", "error_type"},
		),

		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botsense_http_requests_total",
				Help: "Total HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "method", "status"},
		),

		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "botsense_active_sessions",
				Help: "Sessions currently held in the registry",
			},
		),

		Scores: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "botsense_score",
				Help:    "Distribution of composite bot scores",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
		),

		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "botsense_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"endpoint", "method"},
		),

		gatherer: reg,
	}

	reg.MustRegister(
		m.Analyses,
		m.FailedChecks,
		m.EventsRecorded,
		m.InvalidEvents,
		m.ReportsEmitted,
		m.SinkErrors,
		m.HTTPRequests,
		m.ActiveSessions,
		m.Scores,
		m.HTTPDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveReport records one analysis outcome.
func (m *Metrics) ObserveReport(r report.Report) {
	m.Analyses.WithLabelValues(r.Classification()).Inc()
	m.Scores.Observe(r.Score)
	for _, c := range r.FailedChecks {
		m.FailedChecks.WithLabelValues(c).Inc()
	}
}

func (m *Metrics) IncrementEventsRecorded(kind string) {
	m.EventsRecorded.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementInvalidEvents(reason string) {
	m.InvalidEvents.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncrementReportsEmitted(sink string) {
	m.ReportsEmitted.WithLabelValues(sink).Inc()
}

func (m *Metrics) IncrementSinkErrors(sink, errorType string) {
	m.SinkErrors.WithLabelValues(sink, errorType).Inc()
}

func (m *Metrics) IncrementHTTPRequests(endpoint, method, status string) {
	m.HTTPRequests.WithLabelValues(endpoint, method, status).Inc()
}

func (m *Metrics) ObserveHTTPDuration(endpoint, method string, duration time.Duration) {
	m.HTTPDuration.WithLabelValues(endpoint, method).Observe(duration.Seconds())
}

func (m *Metrics) SetActiveSessions(n int) {
	m.ActiveSessions.Set(float64(n))
}

// Server represents the metrics HTTP server
type Server struct {
	server *http.Server
	config Config
	log    *zap.Logger
}

// NewServer creates a new metrics server for m
func NewServer(config Config, m *Metrics, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:         config.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if config.RequireTLS && config.TLSCert != "" && config.TLSKey != "" {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}

		if config.ClientCA != "" {
			clientCAs, err := loadCertPool(config.ClientCA)
			if err != nil {
				log.Warn("metrics: failed to load client CA", zap.Error(err))
			} else {
				tlsConfig.ClientCAs = clientCAs
				tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
				log.Info("metrics: mTLS enabled", zap.String("client_ca", config.ClientCA))
			}
		}
		srv.TLSConfig = tlsConfig
	}

	return &Server{server: srv, config: config, log: log}
}

// Start starts the metrics server in a separate goroutine
func (s *Server) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("metrics: disabled (METRICS_ENABLED=false)")
		return nil
	}

	go func() {
		var err error
		if s.config.RequireTLS && s.config.TLSCert != "" && s.config.TLSKey != "" {
			s.log.Info("metrics: HTTPS server listening", zap.String("addr", s.config.Addr))
			err = s.server.ListenAndServeTLS(s.config.TLSCert, s.config.TLSKey)
		} else {
			s.log.Info("metrics: HTTP server listening", zap.String("addr", s.config.Addr))
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics: server error", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the metrics server
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}
	s.log.Info("metrics: shutting down server")
	return s.server.Shutdown(ctx)
}

func getOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func loadCertPool(certFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(certFile)
	if err != nil {
		return nil, fmt.Errorf("read client CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", certFile)
	}
	return pool, nil
}
