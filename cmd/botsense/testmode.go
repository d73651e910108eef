package main

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shortontech/botsense/internal/analyzer"
	"github.com/shortontech/botsense/internal/event"
	"github.com/shortontech/botsense/internal/fingerprint"
	"github.com/shortontech/botsense/internal/report"
	"github.com/shortontech/botsense/internal/session"
)

// testVisitor is one synthetic session replayed in test mode.
type testVisitor struct {
	name     string
	snapshot fingerprint.Snapshot
	headers  map[string]string
	publish  func(bus *event.Bus)
	elapsed  time.Duration // page time simulated after the input is replayed
}

// testClock lets a replayed session pretend time has passed.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func desktopSnapshot() fingerprint.Snapshot {
	canvas := "9f2c1e0b"
	cores, memory := 8, 16.0
	return fingerprint.Snapshot{
		WebGL:     &fingerprint.WebGLInfo{Vendor: "NVIDIA Corporation", Renderer: "GeForce RTX 3060", Version: "WebGL 1.0"},
		Canvas:    &canvas,
		Audio:     &fingerprint.AudioInfo{Digest: "35.73833", SampleRate: 48000},
		Screen:    &fingerprint.ScreenInfo{Width: 1920, Height: 1080, AvailWidth: 1920, AvailHeight: 1040, ColorDepth: 24, PixelRatio: 1},
		Fonts:     []string{"Arial", "Calibri", "Segoe UI"},
		Plugins:   []fingerprint.Plugin{{Name: "PDF Viewer", MimeTypes: []string{"application/pdf"}}},
		Languages: []string{"en-US", "en"},
		System:    fingerprint.SystemInfo{Cores: &cores, DeviceMemory: &memory},
	}
}

func headlessSnapshot() fingerprint.Snapshot {
	canvas := "00000000"
	return fingerprint.Snapshot{Canvas: &canvas}
}

// publishHumanInput replays a curved pointer path, uneven typing and a few
// spaced-out clicks.
func publishHumanInput(bus *event.Bus) {
	for i := 0; i < 24; i++ {
		x := float64(i * 12)
		y := 300 + 80*math.Sin(float64(i)/3)
		bus.Publish(event.PointerAt(float64(i*16+i%3*7), x, y))
	}
	ts := 600.0
	for i, gap := range []float64{140, 95, 230, 120, 310, 88, 175, 260} {
		ts += gap
		bus.Publish(event.KeyAt(ts, string(rune('a'+i))))
	}
	offset := 0.0
	for i, step := range []float64{120, 40, 310, 15, 220} {
		offset += step
		bus.Publish(event.ScrollTo(2400+float64(i*170+i*i*30), offset))
	}
	for _, at := range []float64{4100, 6900, 8200} {
		bus.Publish(event.ClickAt(at, 640, 410))
	}
}

// publishScriptedInput replays evenly spaced input along straight lines.
func publishScriptedInput(bus *event.Bus) {
	for i := 0; i < 20; i++ {
		bus.Publish(event.PointerAt(float64(i*10), float64(i*5), float64(i*5)))
	}
	for i := 0; i < 10; i++ {
		bus.Publish(event.KeyAt(float64(300+i*100), "a"))
		bus.Publish(event.ScrollTo(float64(300+i*100), float64(i*200)))
	}
	for i := 0; i < 6; i++ {
		bus.Publish(event.ClickAt(float64(2000+i*250), 10, 10))
	}
}

func testVisitors() []testVisitor {
	return []testVisitor{
		{
			name:     "human",
			snapshot: desktopSnapshot(),
			publish:  publishHumanInput,
			elapsed:  12 * time.Second,
		},
		{
			name:     "human behind proxy",
			snapshot: desktopSnapshot(),
			headers:  map[string]string{"via": "1.1 corp-proxy"},
			publish:  publishHumanInput,
			elapsed:  12 * time.Second,
		},
		{
			name:     "scripted headless",
			snapshot: headlessSnapshot(),
			headers:  map[string]string{"via": "1.1 squid", "x-forwarded-for": "198.51.100.7"},
			publish:  publishScriptedInput,
			elapsed:  30 * time.Second,
		},
	}
}

// runTestMode replays the synthetic visitors through the analyzer and hands
// each report to emit.
func runTestMode(ctx context.Context, emit func(report.Report) int, log *zap.Logger) []report.Report {
	log.Info("🧪 test mode: replaying synthetic sessions")
	store := session.NewStore(session.NewMemoryKV(session.DefaultTTL), log)

	var reports []report.Report
	for _, v := range testVisitors() {
		clk := &testClock{t: time.Now().UTC()}
		bus := event.NewBus()

		opts := analyzer.DefaultOptions()
		opts.Provider = fingerprint.Submit(v.snapshot)
		opts.Feed = bus
		opts.Store = store
		opts.Logger = log
		opts.Now = clk.now
		opts.ProbeTimeout = 100 * time.Millisecond

		s, err := analyzer.Create(ctx, opts)
		if err != nil {
			log.Error("❌ test mode: create session failed", zap.String("visitor", v.name), zap.Error(err))
			return reports
		}
		if v.headers != nil {
			s.ApplyHeaders(v.headers)
		}
		v.publish(bus)
		clk.advance(v.elapsed)

		r := s.Analyze().Report(uuid.NewString(), clk.now())
		s.Dispose()

		delivered := emit(r)
		log.Info("📤 test mode: report emitted",
			zap.String("visitor", v.name),
			zap.String("classification", r.Classification()),
			zap.Float64("score", r.Score),
			zap.Int("sinks", delivered))
		reports = append(reports, r)
	}

	log.Info("✅ test mode: done", zap.Int("reports", len(reports)))
	return reports
}
