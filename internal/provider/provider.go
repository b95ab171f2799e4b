package provider

import (
	"context"
	"fmt"

	"github.com/sectorpulse/sectorpulse/internal/model"
	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

// CategoryProvider fetches the market sector universe from one upstream
// data source.
type CategoryProvider interface {
	// Categories returns up to limit categories ordered by market cap
	// descending. Records are raw provider output; callers validate.
	Categories(ctx context.Context, limit int) ([]model.Category, error)

	// Name identifies the provider in logs, metrics and snapshots.
	Name() string

	// Health exposes the provider's request-level health tracker.
	Health() *telemetry.ProviderHealth
}

// Error codes attached to ProviderError.
const (
	ErrCodeHTTP        = "http_error"
	ErrCodeDecode      = "decode_error"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeBudget      = "budget_exceeded"
	ErrCodeBreakerOpen = "breaker_open"
	ErrCodeTimeout     = "timeout"
)

// ProviderError wraps upstream failures with a stable code so the fallback
// chain can distinguish transient conditions from hard failures.
type ProviderError struct {
	Provider  string
	Code      string
	Message   string
	Temporary bool
	Err       error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Provider, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsTemporary reports whether err is a ProviderError marked temporary.
func IsTemporary(err error) bool {
	if pe, ok := err.(*ProviderError); ok {
		return pe.Temporary
	}
	return false
}
