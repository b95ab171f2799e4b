package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sectorpulse/sectorpulse/internal/config"
	"github.com/sectorpulse/sectorpulse/internal/model"
	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

const userAgent = "sectorpulse/1.0"

// CoinGecko serves the category universe from the CoinGecko
// /coins/categories endpoint. Free-tier budgets are enforced locally so a
// misconfigured poll interval cannot burn through the monthly allowance.
type CoinGecko struct {
	baseURL string
	client  *http.Client
	gate    *requestGate
	breaker *gobreaker.CircuitBreaker
	health  *telemetry.ProviderHealth
}

// coinGeckoCategory mirrors the upstream JSON shape.
type coinGeckoCategory struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	MarketCap          float64  `json:"market_cap"`
	MarketCapChange24h float64  `json:"market_cap_change_24h"`
	Volume24h          float64  `json:"volume_24h"`
	Top3Coins          []string `json:"top_3_coins"`
}

// NewCoinGecko creates the CoinGecko category provider.
func NewCoinGecko(cfg config.ProviderConfig, onBreakerChange func(name string, from, to gobreaker.State)) *CoinGecko {
	return &CoinGecko{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		gate:    newRequestGate(cfg.RPS, cfg.Burst, cfg.RPMBudget),
		breaker: breakerFor("coingecko", cfg.Breaker, onBreakerChange),
		health:  telemetry.NewProviderHealth("coingecko"),
	}
}

func (p *CoinGecko) Name() string { return "coingecko" }

func (p *CoinGecko) Health() *telemetry.ProviderHealth { return p.health }

// Categories fetches up to limit categories ordered by market cap.
func (p *CoinGecko) Categories(ctx context.Context, limit int) ([]model.Category, error) {
	if err := p.gate.Acquire(ctx, p.Name()); err != nil {
		p.health.SetDegraded(true, ErrCodeBudget)
		return nil, err
	}

	return execute(p.breaker, p.Name(), func() ([]model.Category, error) {
		return p.fetch(ctx, limit)
	})
}

func (p *CoinGecko) fetch(ctx context.Context, limit int) ([]model.Category, error) {
	url := fmt.Sprintf("%s/coins/categories?order=market_cap_desc", p.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	duration := time.Since(start)
	p.health.RecordRequest(err == nil, duration)

	if err != nil {
		log.Error().Err(err).Str("url", url).Msg("CoinGecko request failed")
		return nil, &ProviderError{
			Provider:  p.Name(),
			Code:      ErrCodeHTTP,
			Message:   "request failed",
			Temporary: true,
			Err:       err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := resp.Header.Get("Retry-After")
		log.Warn().Str("retry_after", retryAfter).Msg("CoinGecko rate limit hit")
		return nil, &ProviderError{
			Provider:  p.Name(),
			Code:      ErrCodeRateLimited,
			Message:   "rate limited upstream",
			Temporary: true,
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider:  p.Name(),
			Code:      ErrCodeHTTP,
			Message:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status),
			Temporary: resp.StatusCode >= 500,
		}
	}

	var raw []coinGeckoCategory
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &ProviderError{
			Provider: p.Name(),
			Code:     ErrCodeDecode,
			Message:  "failed to decode categories",
			Err:      err,
		}
	}

	if limit > 0 && len(raw) > limit {
		raw = raw[:limit]
	}

	cats := make([]model.Category, 0, len(raw))
	for _, r := range raw {
		cats = append(cats, model.Category{
			ID:                 r.ID,
			Name:               r.Name,
			MarketCap:          r.MarketCap,
			MarketCapChange24h: r.MarketCapChange24h,
			Volume24h:          r.Volume24h,
			Top3Coins:          r.Top3Coins,
		})
	}

	log.Debug().
		Int("categories", len(cats)).
		Dur("duration", duration).
		Msg("CoinGecko categories retrieved")

	return cats, nil
}
