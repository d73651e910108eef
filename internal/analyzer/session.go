// Package analyzer ties the behavioral, fingerprint and network signals of
// one page session into a bot score.
package analyzer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shortontech/botsense/internal/behavior"
	"github.com/shortontech/botsense/internal/event"
	"github.com/shortontech/botsense/internal/fingerprint"
	"github.com/shortontech/botsense/internal/network"
	"github.com/shortontech/botsense/internal/session"
)

const focusTick = time.Second

// Options configures a Session. Start from DefaultOptions: zero thresholds
// pass everything and zero network toggles disable the network checks.
type Options struct {
	SessionID         string // generated when empty
	PreviousSessionID string // prior session whose record is loaded

	Thresholds behavior.Thresholds
	Network    network.Options

	Provider fingerprint.Provider
	Feed     event.Feed
	Store    *session.Store

	// Prober discovers peer addresses. When nil the session creates a
	// network.Relay fed through DeliverPeerIPs.
	Prober       network.Prober
	ProbeTimeout time.Duration

	// NetworkContext seeds connection data and the reported address.
	NetworkContext    network.Context
	AutomationHeaders []string

	Logger *zap.Logger
	Now    func() time.Time
}

// DefaultOptions returns the stock thresholds and network toggles.
func DefaultOptions() Options {
	return Options{
		Thresholds:   behavior.DefaultThresholds(),
		Network:      network.DefaultOptions(),
		ProbeTimeout: network.DefaultProbeTimeout,
	}
}

// Session is one analyzed page session. Create starts its background work
// and Dispose stops it.
type Session struct {
	id        string
	opts      Options
	log       *zap.Logger
	collector *behavior.Collector

	snapshot     fingerprint.Snapshot
	hash         string
	previousHash string

	mu  sync.Mutex
	net network.Context

	relay       *network.Relay
	probe       *network.Probe
	unsubscribe func()
	done        chan struct{}
	wg          sync.WaitGroup
	disposeOnce sync.Once
}

// Create captures the fingerprint, loads and replaces the persisted record,
// and starts the focus ticker, the peer address probe and the event feed
// subscription. It only fails if ctx is already done.
func Create(ctx context.Context, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SessionID == "" {
		opts.SessionID = session.NewID()
	}

	s := &Session{
		id:        opts.SessionID,
		opts:      opts,
		log:       opts.Logger.With(zap.String("session_id", opts.SessionID)),
		collector: behavior.NewCollector(opts.Thresholds, opts.Now),
		net:       opts.NetworkContext,
		done:      make(chan struct{}),
	}

	if opts.Provider != nil {
		s.snapshot = fingerprint.Capture(ctx, opts.Provider, s.log)
	}
	hash, err := fingerprint.Hash(s.snapshot)
	if err != nil {
		s.log.Debug("analyzer: fingerprint hash unavailable", zap.Error(err))
	}
	s.hash = hash

	if prev, ok := opts.Store.Load(ctx, opts.PreviousSessionID); ok {
		s.previousHash = prev.FingerprintHash
	}
	opts.Store.Save(ctx, session.NewRecord(s.id, s.hash, opts.Now()))

	s.wg.Add(1)
	go s.runFocusTicker()

	prober := opts.Prober
	if prober == nil {
		s.relay = network.NewRelay()
		prober = s.relay
	}
	// The probe outlives the request that created the session.
	s.probe = network.StartProbe(context.WithoutCancel(ctx), prober, opts.ProbeTimeout, s.setPeerIPs)

	if opts.Feed != nil {
		s.unsubscribe = opts.Feed.Subscribe(func(ev event.Event) { _ = s.Record(ev) })
	}

	s.log.Debug("analyzer: session created",
		zap.String("fingerprint_hash", s.hash),
		zap.Bool("returning", s.previousHash != ""))
	return s, nil
}

func (s *Session) ID() string { return s.id }

// FingerprintHash is the hash of the snapshot captured at creation.
func (s *Session) FingerprintHash() string { return s.hash }

// Record validates ev and feeds it to the behavioral collector.
func (s *Session) Record(ev event.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	s.collector.Record(ev)
	return nil
}

// ApplyHeaders derives the proxy indicator from lower-cased request headers.
func (s *Session) ApplyHeaders(headers map[string]string) {
	proxied := network.ProxyIndicator(headers)
	s.mu.Lock()
	s.net.ProxyHeaders = &proxied
	s.mu.Unlock()
}

// SetTCPSuspicious records the verdict of an external TCP fingerprinting
// system.
func (s *Session) SetTCPSuspicious(suspicious bool) {
	s.mu.Lock()
	s.net.TCPSuspicious = &suspicious
	s.mu.Unlock()
}

// DeliverPeerIPs completes the built-in relay probe. It reports false when
// the session uses a custom prober or a delivery was already accepted.
func (s *Session) DeliverPeerIPs(ips network.PeerIPs) bool {
	if s.relay == nil {
		return false
	}
	return s.relay.Deliver(ips)
}

func (s *Session) setPeerIPs(ips network.PeerIPs) {
	s.mu.Lock()
	s.net.LocalIP, s.net.PublicIP = ips.Local, ips.Public
	s.mu.Unlock()
	s.log.Debug("analyzer: peer address discovered", zap.Bool("public", ips.Public != ""))
}

func (s *Session) runFocusTicker() {
	defer s.wg.Done()
	t := time.NewTicker(focusTick)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.collector.Tick()
		case <-s.done:
			return
		}
	}
}

// Analyze computes a fresh Result from the current state. It never waits on
// the peer address probe.
func (s *Session) Analyze() Result {
	beh := s.collector.AssessAll()
	cons := fingerprint.Check(s.snapshot)

	s.mu.Lock()
	nc := s.net
	s.mu.Unlock()
	netRep := network.Analyze(nc, s.opts.Network)

	score, isBot := Score(beh.OK, cons.OK, netRep.OK)
	return Result{
		Score:         score,
		IsBot:         isBot,
		BehaviorOK:    beh.OK,
		FingerprintOK: cons.OK,
		NetworkOK:     netRep.OK,
		Details: Details{
			SessionID: s.id,
			Behavior:  beh,
			Fingerprint: FingerprintDetails{
				Consistency:             cons,
				Summary:                 fingerprint.Summarize(s.snapshot),
				Hash:                    s.hash,
				PreviousFingerprintHash: s.previousHash,
			},
			Network: NetworkDetails{
				Report:            netRep,
				Connection:        nc.Connection,
				ReportedIP:        nc.ReportedIP,
				PublicIP:          nc.PublicIP,
				LocalIP:           nc.LocalIP,
				ProxyHeaders:      nc.ProxyHeaders,
				TCPSuspicious:     nc.TCPSuspicious,
				AutomationHeaders: append([]string{}, s.opts.AutomationHeaders...),
			},
		},
	}
}

func (s *Session) IsLikelyBot() bool { return s.Analyze().IsBot }

func (s *Session) DetectionScore() float64 { return s.Analyze().Score }

func (s *Session) DetailedAnalysis() Result { return s.Analyze() }

func (s *Session) Verdict() Verdict { return s.Analyze().Verdict() }

// Dispose stops the feed subscription, the probe and the focus ticker.
func (s *Session) Dispose() {
	s.disposeOnce.Do(func() {
		if s.unsubscribe != nil {
			s.unsubscribe()
		}
		s.probe.Stop()
		close(s.done)
		s.wg.Wait()
		s.log.Debug("analyzer: session disposed")
	})
}
