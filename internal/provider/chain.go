package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sectorpulse/sectorpulse/internal/model"
	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

// Chain tries providers in priority order until one returns a usable
// category set. Breaker-open and budget errors fall through to the next
// provider instead of failing the refresh.
type Chain struct {
	providers []CategoryProvider
	metrics   *telemetry.Metrics
}

// NewChain creates a fallback chain. Providers are tried in the order
// given; metrics may be nil in tests.
func NewChain(metrics *telemetry.Metrics, providers ...CategoryProvider) *Chain {
	return &Chain{providers: providers, metrics: metrics}
}

// Providers returns the chain members in fallback order.
func (c *Chain) Providers() []CategoryProvider {
	return c.providers
}

// Fetch returns categories from the first provider that succeeds, along
// with that provider's name.
func (c *Chain) Fetch(ctx context.Context, limit int) ([]model.Category, string, error) {
	if len(c.providers) == 0 {
		return nil, "", fmt.Errorf("no providers configured")
	}

	var lastErr error
	for _, p := range c.providers {
		start := time.Now()
		cats, err := p.Categories(ctx, limit)
		duration := time.Since(start)

		result := "success"
		if err != nil {
			result = "error"
		}
		if c.metrics != nil {
			c.metrics.FetchDuration.WithLabelValues(p.Name(), result).Observe(duration.Seconds())
			c.metrics.FetchTotal.WithLabelValues(p.Name(), result).Inc()
		}

		if err == nil {
			return cats, p.Name(), nil
		}

		lastErr = err
		log.Warn().
			Err(err).
			Str("provider", p.Name()).
			Msg("provider failed, trying next in chain")

		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
	}

	return nil, "", fmt.Errorf("all providers failed: %w", lastErr)
}
