package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// requestGate combines a token bucket with a hard requests-per-minute
// budget. The bucket smooths request pacing; the budget is the upstream
// free-tier contract and is never exceeded.
type requestGate struct {
	limiter *rate.Limiter

	mu        sync.Mutex
	rpmBudget int
	rpmUsed   int
	windowAt  time.Time
}

func newRequestGate(rps float64, burst, rpmBudget int) *requestGate {
	return &requestGate{
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		rpmBudget: rpmBudget,
		windowAt:  time.Now(),
	}
}

// Acquire blocks until a token is available, then consumes budget. Returns
// a budget error without blocking when the minute window is exhausted.
func (g *requestGate) Acquire(ctx context.Context, provider string) error {
	g.mu.Lock()
	now := time.Now()
	if now.Sub(g.windowAt) >= time.Minute {
		g.rpmUsed = 0
		g.windowAt = now
	}
	if g.rpmUsed >= g.rpmBudget {
		used, budget := g.rpmUsed, g.rpmBudget
		g.mu.Unlock()
		return &ProviderError{
			Provider:  provider,
			Code:      ErrCodeBudget,
			Message:   fmt.Sprintf("rpm budget exceeded: %d/%d", used, budget),
			Temporary: true,
		}
	}
	g.rpmUsed++
	g.mu.Unlock()

	if err := g.limiter.Wait(ctx); err != nil {
		return &ProviderError{
			Provider:  provider,
			Code:      ErrCodeTimeout,
			Message:   "rate limiter wait cancelled",
			Temporary: true,
			Err:       err,
		}
	}
	return nil
}
