package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shortontech/botsense/internal/analyzer"
	"github.com/shortontech/botsense/internal/behavior"
	httpx "github.com/shortontech/botsense/internal/http"
	"github.com/shortontech/botsense/internal/ingredient"
	"github.com/shortontech/botsense/internal/logging"
	"github.com/shortontech/botsense/internal/metrics"
	"github.com/shortontech/botsense/internal/network"
	"github.com/shortontech/botsense/internal/report"
	"github.com/shortontech/botsense/internal/session"
	"github.com/shortontech/botsense/internal/sink"
	"github.com/shortontech/botsense/pkg/config"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		host, port := "127.0.0.1", "19890"
		if addr := os.Getenv("SERVER_ADDR"); addr != "" {
			if h, p, err := net.SplitHostPort(addr); err == nil {
				if h != "" {
					host = h
				}
				port = p
			}
		}
		if err := performHealthCheck(host, port); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("botsense: exiting", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appMetrics := metrics.New(nil)
	metricsServer := metrics.NewServer(metrics.LoadConfig(), appMetrics, log)
	if err := metricsServer.Start(ctx); err != nil {
		return fmt.Errorf("start metrics server: %w", err)
	}

	fanout := sink.NewFanout(appMetrics, log, initializeSinks(cfg.Outputs, log)...)
	if err := fanout.Start(ctx); err != nil {
		return err
	}

	if cfg.TestMode {
		runTestMode(ctx, fanout.Emit, log)
		_ = metricsServer.Shutdown(context.Background())
		return fanout.Close()
	}

	kv, closeKV, err := newSessionKV(cfg)
	if err != nil {
		return err
	}
	defer closeKV()

	ingredients, closeIngredients, err := newIngredientStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeIngredients()

	registry := analyzer.NewRegistry(cfg.SessionIdleTimeout, log)
	go registry.Run(ctx, time.Minute)

	env := httpx.Env{
		Cfg:         cfg,
		Defaults:    analyzerDefaults(cfg),
		Sessions:    registry,
		Store:       session.NewStore(kv, log),
		Signer:      session.NewSigner(cfg.CookieSecret),
		Ingredients: ingredients,
		Emit:        func(r report.Report) { fanout.Emit(r) },
		Metrics:     appMetrics,
		Log:         log,
	}
	if cfg.CookieSecret == "" {
		log.Warn("botsense: COOKIE_SECRET not set, session cookies will not survive a restart")
	}

	srv := startHTTPServer(cfg, httpx.NewRouter(env), log)
	waitForShutdown(srv, metricsServer, fanout, cancel, registry, log)
	return nil
}

// initializeSinks builds the sinks named in outputs, skipping unknown names.
func initializeSinks(outputs []string, log *zap.Logger) []sink.Sink {
	var sinks []sink.Sink
	for _, out := range outputs {
		switch strings.ToLower(strings.TrimSpace(out)) {
		case "log":
			sinks = append(sinks, sink.NewLogSink(log))
		case "kafka":
			sinks = append(sinks, sink.NewKafkaSinkFromEnv(log))
		case "postgres", "pg":
			sinks = append(sinks, sink.NewPGSinkFromEnv(log))
		default:
			log.Warn("botsense: unknown output skipped", zap.String("output", out))
		}
	}
	return sinks
}

// newSessionKV returns Redis when REDIS_URL is set, otherwise an in-process
// store.
func newSessionKV(cfg config.Config) (session.KV, func(), error) {
	if cfg.RedisURL == "" {
		return session.NewMemoryKV(session.DefaultTTL), func() {}, nil
	}
	kv, err := session.NewRedisKV(cfg.RedisURL, session.DefaultTTL)
	if err != nil {
		return nil, nil, fmt.Errorf("session store: %w", err)
	}
	return kv, func() { _ = kv.Close() }, nil
}

func newIngredientStore(ctx context.Context, cfg config.Config) (ingredient.Store, func(), error) {
	switch cfg.IngredientStore {
	case "", "memory":
		return ingredient.NewMemoryStore(), func() {}, nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, errors.New("ingredient store: DATABASE_URL is required for postgres")
		}
		s, err := ingredient.OpenPGStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("ingredient store: unknown backend %q", cfg.IngredientStore)
	}
}

func analyzerDefaults(cfg config.Config) analyzer.Options {
	d := cfg.Detector
	opts := analyzer.DefaultOptions()
	opts.Thresholds = behavior.Thresholds{
		Pointer:       d.PointerThreshold,
		Scroll:        d.ScrollThreshold,
		Keystroke:     d.KeystrokeThreshold,
		Interaction:   d.InteractionThreshold,
		MaxCopyPaste:  d.MaxCopyPaste,
		MinFocusRatio: d.MinFocusRatio,
	}
	opts.Network = network.Options{
		BlockKnownProxies:       d.BlockKnownProxies,
		CheckWebRTC:             d.CheckWebRTC,
		TCPFingerprintingStrict: d.TCPFingerprintingStrict,
		CheckConnectionSpeed:    d.CheckConnectionSpeed,
	}
	if cfg.PeerIPTimeout > 0 {
		opts.ProbeTimeout = cfg.PeerIPTimeout
	}
	return opts
}

func startHTTPServer(cfg config.Config, handler http.Handler, log *zap.Logger) *http.Server {
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("botsense: listening", zap.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("botsense: server error", zap.Error(err))
		}
	}()
	return srv
}

// performHealthCheck probes /healthz of a running instance.
func performHealthCheck(host, port string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://" + net.JoinHostPort(host, port) + "/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if strings.TrimSpace(string(body)) != "ok" {
		return fmt.Errorf("unexpected response %q", body)
	}
	return nil
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

// waitForShutdown blocks until SIGINT or SIGTERM, then drains the servers,
// disposes every session and closes the sinks.
func waitForShutdown(srv, metricsServer shutdowner, sinks io.Closer, cancel context.CancelFunc, registry *analyzer.Registry, log *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	shutdown(srv, metricsServer, sinks, cancel, registry, log)
}

func shutdown(srv, metricsServer shutdowner, sinks io.Closer, cancel context.CancelFunc, registry *analyzer.Registry, log *zap.Logger) {
	log.Info("botsense: shutting down")
	ctx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("botsense: http shutdown", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Warn("botsense: metrics shutdown", zap.Error(err))
		}
	}
	cancel()
	registry.Close()
	if err := sinks.Close(); err != nil {
		log.Warn("botsense: sink close", zap.Error(err))
	}
}
