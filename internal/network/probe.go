package network

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultProbeTimeout bounds peer address discovery.
const DefaultProbeTimeout = 5 * time.Second

// ErrNoPeerIP is returned when a probe completes without any address.
var ErrNoPeerIP = errors.New("network: no peer address discovered")

// PeerIPs are the addresses leaked during peer connection negotiation.
type PeerIPs struct {
	Local  string `json:"local,omitempty"`
	Public string `json:"public,omitempty"`
}

// Prober discovers peer addresses. Implementations must return once ctx is
// done.
type Prober interface {
	Probe(ctx context.Context) (PeerIPs, error)
}

// Probe is a running discovery task.
type Probe struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartProbe runs p in the background with a hard timeout. onResult is called
// at most once, only on success and only if the probe was not cancelled.
func StartProbe(ctx context.Context, p Prober, timeout time.Duration, onResult func(PeerIPs)) *Probe {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	pr := &Probe{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(pr.done)
		defer cancel()

		ips, err := p.Probe(ctx)
		if err != nil || ctx.Err() != nil {
			return
		}
		if ips.Local == "" && ips.Public == "" {
			return
		}
		onResult(ips)
	}()

	return pr
}

// Stop cancels the probe and waits for it to finish. Safe to call repeatedly.
func (p *Probe) Stop() {
	p.cancel()
	<-p.done
}

// Done is closed once the probe has finished for any reason.
func (p *Probe) Done() <-chan struct{} { return p.done }

// Relay is a Prober fed from outside, typically by the browser posting the
// addresses it discovered. Only the first delivery is kept.
type Relay struct {
	once sync.Once
	ch   chan PeerIPs
}

func NewRelay() *Relay {
	return &Relay{ch: make(chan PeerIPs, 1)}
}

// Deliver hands ips to the waiting probe. It reports false if an earlier
// delivery was already accepted.
func (r *Relay) Deliver(ips PeerIPs) bool {
	accepted := false
	r.once.Do(func() {
		r.ch <- ips
		accepted = true
	})
	return accepted
}

func (r *Relay) Probe(ctx context.Context) (PeerIPs, error) {
	select {
	case ips := <-r.ch:
		if ips.Local == "" && ips.Public == "" {
			return PeerIPs{}, ErrNoPeerIP
		}
		return ips, nil
	case <-ctx.Done():
		return PeerIPs{}, ctx.Err()
	}
}
