package provider

import (
	"github.com/sony/gobreaker"

	"github.com/sectorpulse/sectorpulse/internal/config"
	"github.com/sectorpulse/sectorpulse/internal/model"
)

// breakerFor builds a gobreaker instance from provider config. Trips on a
// short run of consecutive failures, or on failure ratio once enough
// requests have been seen.
func breakerFor(name string, cfg config.BreakerConfig, onStateChange func(name string, from, to gobreaker.State)) *gobreaker.CircuitBreaker {
	st := gobreaker.Settings{
		Name:    name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.ConsecutiveFailures {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureRatio
		},
		OnStateChange: onStateChange,
	}
	return gobreaker.NewCircuitBreaker(st)
}

// execute runs fn behind the breaker and normalizes a rejected call into a
// ProviderError so the fallback chain can skip to the next provider.
func execute(cb *gobreaker.CircuitBreaker, provider string, fn func() ([]model.Category, error)) ([]model.Category, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &ProviderError{
				Provider:  provider,
				Code:      ErrCodeBreakerOpen,
				Message:   "circuit breaker rejected request",
				Temporary: true,
				Err:       err,
			}
		}
		return nil, err
	}
	return out.([]model.Category), nil
}

// BreakerStateValue maps a gobreaker state onto the metric encoding
// (0=closed, 1=half-open, 2=open).
func BreakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
