package telemetry

import (
	"sync"
	"time"
)

// ProviderHealth tracks request outcomes for a single upstream provider.
type ProviderHealth struct {
	mu             sync.RWMutex
	provider       string
	totalRequests  int64
	failedRequests int64
	lastSuccess    time.Time
	lastFailure    time.Time
	lastLatency    time.Duration
	degraded       bool
	degradedReason string
}

// NewProviderHealth creates a health tracker for the named provider.
func NewProviderHealth(provider string) *ProviderHealth {
	return &ProviderHealth{provider: provider}
}

// RecordRequest records one request outcome and its latency.
func (h *ProviderHealth) RecordRequest(ok bool, latency time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.lastLatency = latency
	now := time.Now()
	if ok {
		h.lastSuccess = now
		h.degraded = false
		h.degradedReason = ""
	} else {
		h.failedRequests++
		h.lastFailure = now
	}
}

// SetDegraded marks the provider degraded with a reason.
func (h *ProviderHealth) SetDegraded(degraded bool, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.degraded = degraded
	h.degradedReason = reason
}

// IsHealthy reports whether the provider is currently usable.
func (h *ProviderHealth) IsHealthy() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.degraded
}

// Stats returns a point-in-time view of the tracker.
func (h *ProviderHealth) Stats() ProviderHealthStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var errorRate float64
	if h.totalRequests > 0 {
		errorRate = float64(h.failedRequests) / float64(h.totalRequests)
	}
	return ProviderHealthStats{
		Provider:       h.provider,
		TotalRequests:  h.totalRequests,
		FailedRequests: h.failedRequests,
		ErrorRate:      errorRate,
		LastSuccess:    h.lastSuccess,
		LastFailure:    h.lastFailure,
		LastLatencyMS:  h.lastLatency.Milliseconds(),
		Degraded:       h.degraded,
		DegradedReason: h.degradedReason,
	}
}

// ProviderHealthStats is the JSON view served by the health endpoint.
type ProviderHealthStats struct {
	Provider       string    `json:"provider"`
	TotalRequests  int64     `json:"total_requests"`
	FailedRequests int64     `json:"failed_requests"`
	ErrorRate      float64   `json:"error_rate"`
	LastSuccess    time.Time `json:"last_success,omitempty"`
	LastFailure    time.Time `json:"last_failure,omitempty"`
	LastLatencyMS  int64     `json:"last_latency_ms"`
	Degraded       bool      `json:"degraded"`
	DegradedReason string    `json:"degraded_reason,omitempty"`
}
