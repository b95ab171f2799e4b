package heatmap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

// Poller drives periodic refreshes of the heatmap service. It owns its
// timer: Start launches the loop, Stop tears it down and cancels any
// in-flight refresh. Manual refreshes go through TriggerNow and are
// coalesced; the service's generation counter guarantees a slow manual
// fetch can never clobber a newer scheduled one.
type Poller struct {
	service  *Service
	metrics  *telemetry.Metrics
	interval time.Duration
	timeout  time.Duration

	trigger chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewPoller creates a poller for the given service.
func NewPoller(service *Service, metrics *telemetry.Metrics, interval, timeout time.Duration) *Poller {
	return &Poller{
		service:  service,
		metrics:  metrics,
		interval: interval,
		timeout:  timeout,
		trigger:  make(chan struct{}, 1),
	}
}

// Start launches the poll loop: one immediate refresh, then one per
// interval until Stop or parent context cancellation.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true

	go p.run(ctx)
}

// Stop halts the loop and waits for it to exit. In-flight refreshes are
// cancelled through their context.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()
	<-done
}

// TriggerNow requests an immediate refresh. Returns false when one is
// already queued.
func (p *Poller) TriggerNow() bool {
	select {
	case p.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("poll loop stopped")
			return
		case <-ticker.C:
			p.service.ObserveSnapshotAge()
			p.refresh(ctx)
		case <-p.trigger:
			p.refresh(ctx)
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	p.metrics.PollTicks.Inc()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.service.Refresh(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrStaleResult):
		// A newer refresh won the race; nothing to do.
	case errors.Is(err, context.Canceled):
	default:
		// No retry here: the next tick is the retry policy.
		log.Warn().Err(err).Dur("next_attempt_in", p.interval).Msg("scheduled refresh failed")
	}
}
