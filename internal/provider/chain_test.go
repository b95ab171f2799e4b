package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectorpulse/sectorpulse/internal/model"
	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

type stubProvider struct {
	name  string
	cats  []model.Category
	err   error
	calls int
}

func (s *stubProvider) Categories(ctx context.Context, limit int) ([]model.Category, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.cats, nil
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Health() *telemetry.ProviderHealth {
	return telemetry.NewProviderHealth(s.name)
}

func TestChain_FirstProviderWins(t *testing.T) {
	primary := &stubProvider{name: "primary", cats: []model.Category{{ID: "defi", Name: "DeFi"}}}
	fallback := &stubProvider{name: "fallback"}
	chain := NewChain(telemetry.NewMetrics(), primary, fallback)

	cats, name, err := chain.Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "primary", name)
	assert.Len(t, cats, 1)
	assert.Zero(t, fallback.calls, "fallback untouched when primary succeeds")
}

func TestChain_FallsThroughOnError(t *testing.T) {
	primary := &stubProvider{name: "primary", err: &ProviderError{
		Provider: "primary", Code: ErrCodeBreakerOpen, Temporary: true,
	}}
	fallback := &stubProvider{name: "fallback", cats: []model.Category{{ID: "nft", Name: "NFT"}}}
	chain := NewChain(telemetry.NewMetrics(), primary, fallback)

	cats, name, err := chain.Fetch(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, "fallback", name)
	assert.Len(t, cats, 1)
	assert.Equal(t, 1, primary.calls)
}

func TestChain_AllProvidersFail(t *testing.T) {
	a := &stubProvider{name: "a", err: errors.New("down")}
	b := &stubProvider{name: "b", err: errors.New("also down")}
	chain := NewChain(telemetry.NewMetrics(), a, b)

	_, _, err := chain.Fetch(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
	assert.Contains(t, err.Error(), "also down")
}

func TestChain_NoProviders(t *testing.T) {
	chain := NewChain(telemetry.NewMetrics())
	_, _, err := chain.Fetch(context.Background(), 10)
	require.Error(t, err)
}

func TestChain_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	failing := &stubProvider{name: "a", err: errors.New("down")}
	never := &stubProvider{name: "b", cats: []model.Category{{ID: "x", Name: "X"}}}
	chain := NewChain(telemetry.NewMetrics(), failing, never)

	cancel()
	_, _, err := chain.Fetch(ctx, 10)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, never.calls, "cancelled context stops the chain walk")
}

func TestProviderError_Formatting(t *testing.T) {
	wrapped := errors.New("boom")
	pe := &ProviderError{Provider: "coingecko", Code: ErrCodeHTTP, Message: "request failed", Temporary: true, Err: wrapped}

	assert.Contains(t, pe.Error(), "coingecko")
	assert.Contains(t, pe.Error(), "http_error")
	assert.ErrorIs(t, pe, wrapped)
	assert.True(t, IsTemporary(pe))
	assert.False(t, IsTemporary(errors.New("plain")))
}
