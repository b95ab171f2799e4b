package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectorpulse/sectorpulse/internal/config"
)

func testProviderConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		Enabled:        true,
		BaseURL:        baseURL,
		RPS:            1000,
		Burst:          1000,
		RPMBudget:      1000,
		RequestTimeout: 2 * time.Second,
		Breaker: config.BreakerConfig{
			ConsecutiveFailures: 3,
			MinRequests:         100,
			FailureRatio:        0.9,
			OpenTimeout:         time.Minute,
		},
	}
}

const categoriesFixture = `[
	{"id":"decentralized-finance-defi","name":"DeFi","market_cap":95000000000,
	 "market_cap_change_24h":3.4,"volume_24h":8000000000,
	 "top_3_coins":["https://img.example/uni.png","https://img.example/aave.png","https://img.example/mkr.png"]},
	{"id":"non-fungible-tokens-nft","name":"NFT","market_cap":42000000000,
	 "market_cap_change_24h":-1.2,"volume_24h":3000000000,"top_3_coins":[]},
	{"id":"layer-2","name":"Layer 2","market_cap":30000000000,
	 "market_cap_change_24h":0.0,"volume_24h":2000000000,"top_3_coins":[]}
]`

func TestCoinGecko_Categories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/categories", r.URL.Path)
		assert.Equal(t, "market_cap_desc", r.URL.Query().Get("order"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(categoriesFixture))
	}))
	defer srv.Close()

	p := NewCoinGecko(testProviderConfig(srv.URL), nil)
	cats, err := p.Categories(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, cats, 3)

	assert.Equal(t, "decentralized-finance-defi", cats[0].ID)
	assert.Equal(t, "DeFi", cats[0].Name)
	assert.Equal(t, 95000000000.0, cats[0].MarketCap)
	assert.Equal(t, 3.4, cats[0].MarketCapChange24h)
	assert.Len(t, cats[0].Top3Coins, 3)
	assert.True(t, p.Health().IsHealthy())
}

func TestCoinGecko_LimitSlices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(categoriesFixture))
	}))
	defer srv.Close()

	p := NewCoinGecko(testProviderConfig(srv.URL), nil)
	cats, err := p.Categories(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, cats, 2)
}

func TestCoinGecko_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "60")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewCoinGecko(testProviderConfig(srv.URL), nil)
	_, err := p.Categories(context.Background(), 0)
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrCodeRateLimited, pe.Code)
	assert.True(t, pe.Temporary)
}

func TestCoinGecko_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewCoinGecko(testProviderConfig(srv.URL), nil)
	_, err := p.Categories(context.Background(), 0)
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrCodeHTTP, pe.Code)
	assert.True(t, pe.Temporary, "5xx is transient")
}

func TestCoinGecko_DecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer srv.Close()

	p := NewCoinGecko(testProviderConfig(srv.URL), nil)
	_, err := p.Categories(context.Background(), 0)
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrCodeDecode, pe.Code)
}

func TestCoinGecko_BudgetExhaustion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cfg := testProviderConfig(srv.URL)
	cfg.RPMBudget = 1
	p := NewCoinGecko(cfg, nil)

	_, err := p.Categories(context.Background(), 0)
	require.NoError(t, err)

	_, err = p.Categories(context.Background(), 0)
	require.Error(t, err)

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrCodeBudget, pe.Code)
	assert.False(t, p.Health().IsHealthy(), "budget exhaustion marks the provider degraded")
}

func TestCoinGecko_BreakerOpensOnConsecutiveFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testProviderConfig(srv.URL)
	cfg.Breaker.ConsecutiveFailures = 2

	var opened bool
	p := NewCoinGecko(cfg, func(name string, from, to gobreaker.State) {
		if to == gobreaker.StateOpen {
			opened = true
		}
	})

	for i := 0; i < 2; i++ {
		_, err := p.Categories(context.Background(), 0)
		require.Error(t, err)
	}
	assert.True(t, opened, "breaker must open after two consecutive failures")

	_, err := p.Categories(context.Background(), 0)
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, ErrCodeBreakerOpen, pe.Code)
}
