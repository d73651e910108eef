package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shortontech/botsense/internal/analyzer"
	"github.com/shortontech/botsense/internal/assets"
	"github.com/shortontech/botsense/internal/ingredient"
	"github.com/shortontech/botsense/internal/metrics"
	"github.com/shortontech/botsense/internal/report"
	"github.com/shortontech/botsense/internal/session"
	cfg "github.com/shortontech/botsense/pkg/config"
)

type Env struct {
	Cfg cfg.Config

	// Defaults seeds every new session: thresholds, network toggles and
	// the peer address timeout.
	Defaults analyzer.Options

	Sessions    *analyzer.Registry
	Store       *session.Store
	Signer      *session.Signer
	Ingredients ingredient.Store

	Emit    func(report.Report) // injected sink fan-out
	Metrics *metrics.Metrics
	Log     *zap.Logger
	Now     func() time.Time
}

func (e Env) log() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e Env) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Readyz reports 503 while the session store's backend is unreachable.
func (e Env) Readyz(w http.ResponseWriter, r *http.Request) {
	if e.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := e.Store.Ping(ctx); err != nil {
			e.log().Warn("http: readiness check failed", zap.Error(err))
			http.Error(w, "session store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (e Env) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(assets.IndexHTML)
}

func (e Env) AnalyzerScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(assets.AnalyzerJS)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads at most Cfg.MaxBodyBytes of JSON into v. It writes the
// error response itself and reports whether decoding succeeded.
func (e Env) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	limit := e.Cfg.MaxBodyBytes
	if limit <= 0 {
		limit = 1 << 20
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
