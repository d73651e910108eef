package fingerprint

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrUnavailable is returned by a provider when a capability is not supported.
var ErrUnavailable = errors.New("capability unavailable")

// Provider queries the client environment. Each method is called at most
// once per capture; a non-nil error marks that field absent.
type Provider interface {
	WebGL(ctx context.Context) (WebGLInfo, error)
	Canvas(ctx context.Context) (string, error)
	Audio(ctx context.Context) (AudioInfo, error)
	Screen(ctx context.Context) (ScreenInfo, error)
	Fonts(ctx context.Context) ([]string, error)
	Plugins(ctx context.Context) ([]Plugin, error)
	Languages(ctx context.Context) ([]string, error)
	System(ctx context.Context) (SystemInfo, error)
}

// Capture builds a snapshot from p. Provider errors and panics are logged at
// debug level and leave the corresponding field empty; Capture never fails.
func Capture(ctx context.Context, p Provider, log *zap.Logger) Snapshot {
	if log == nil {
		log = zap.NewNop()
	}
	var s Snapshot

	if v, ok := query(ctx, log, "webgl", p.WebGL); ok {
		s.WebGL = &v
	}
	if v, ok := query(ctx, log, "canvas", p.Canvas); ok {
		s.Canvas = &v
	}
	if v, ok := query(ctx, log, "audio", p.Audio); ok {
		s.Audio = &v
	}
	if v, ok := query(ctx, log, "screen", p.Screen); ok {
		s.Screen = &v
	}
	s.Fonts, _ = query(ctx, log, "fonts", p.Fonts)
	s.Plugins, _ = query(ctx, log, "plugins", p.Plugins)
	s.Languages, _ = query(ctx, log, "languages", p.Languages)
	s.System, _ = query(ctx, log, "system", p.System)

	return s
}

func query[T any](ctx context.Context, log *zap.Logger, name string, fn func(context.Context) (T, error)) (v T, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Debug("fingerprint: capability panicked",
				zap.String("capability", name), zap.String("panic", fmt.Sprint(r)))
			var zero T
			v, ok = zero, false
		}
	}()

	v, err := fn(ctx)
	if err != nil {
		log.Debug("fingerprint: capability unavailable",
			zap.String("capability", name), zap.Error(err))
		var zero T
		return zero, false
	}
	return v, true
}

// Submitted serves a snapshot the browser already collected and posted.
// Absent sections report ErrUnavailable.
type Submitted struct {
	snap Snapshot
}

func Submit(s Snapshot) *Submitted { return &Submitted{snap: s} }

func (p *Submitted) WebGL(context.Context) (WebGLInfo, error) {
	if p.snap.WebGL == nil {
		return WebGLInfo{}, ErrUnavailable
	}
	return *p.snap.WebGL, nil
}

func (p *Submitted) Canvas(context.Context) (string, error) {
	if p.snap.Canvas == nil {
		return "", ErrUnavailable
	}
	return *p.snap.Canvas, nil
}

func (p *Submitted) Audio(context.Context) (AudioInfo, error) {
	if p.snap.Audio == nil {
		return AudioInfo{}, ErrUnavailable
	}
	return *p.snap.Audio, nil
}

func (p *Submitted) Screen(context.Context) (ScreenInfo, error) {
	if p.snap.Screen == nil {
		return ScreenInfo{}, ErrUnavailable
	}
	return *p.snap.Screen, nil
}

func (p *Submitted) Fonts(context.Context) ([]string, error) {
	return p.snap.Fonts, nil
}

func (p *Submitted) Plugins(context.Context) ([]Plugin, error) {
	return p.snap.Plugins, nil
}

func (p *Submitted) Languages(context.Context) ([]string, error) {
	return p.snap.Languages, nil
}

func (p *Submitted) System(context.Context) (SystemInfo, error) {
	return p.snap.System, nil
}
