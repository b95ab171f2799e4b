package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/sectorpulse/sectorpulse/internal/config"
	"github.com/sectorpulse/sectorpulse/internal/model"
	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

// DefiLlama is the fallback category source. DeFi Llama has no category
// endpoint, so the protocol list is aggregated by its category field with
// TVL standing in for market cap. Coarser than CoinGecko but keeps the
// heatmap alive when the primary is down.
type DefiLlama struct {
	baseURL string
	client  *http.Client
	gate    *requestGate
	breaker *gobreaker.CircuitBreaker
	health  *telemetry.ProviderHealth
}

type llamaProtocol struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	TVL      float64 `json:"tvl"`
	Change1d float64 `json:"change_1d"`
}

// NewDefiLlama creates the DeFi Llama category provider.
func NewDefiLlama(cfg config.ProviderConfig, onBreakerChange func(name string, from, to gobreaker.State)) *DefiLlama {
	return &DefiLlama{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		gate:    newRequestGate(cfg.RPS, cfg.Burst, cfg.RPMBudget),
		breaker: breakerFor("defillama", cfg.Breaker, onBreakerChange),
		health:  telemetry.NewProviderHealth("defillama"),
	}
}

func (p *DefiLlama) Name() string { return "defillama" }

func (p *DefiLlama) Health() *telemetry.ProviderHealth { return p.health }

// Categories aggregates the protocol list into TVL-weighted categories.
func (p *DefiLlama) Categories(ctx context.Context, limit int) ([]model.Category, error) {
	if err := p.gate.Acquire(ctx, p.Name()); err != nil {
		p.health.SetDegraded(true, ErrCodeBudget)
		return nil, err
	}

	return execute(p.breaker, p.Name(), func() ([]model.Category, error) {
		return p.fetch(ctx, limit)
	})
}

func (p *DefiLlama) fetch(ctx context.Context, limit int) ([]model.Category, error) {
	url := fmt.Sprintf("%s/protocols", p.baseURL)

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
		log.Error().Err(err).Str("url", url).Msg("DeFi Llama request failed")
		return nil, &ProviderError{
			Provider:  p.Name(),
			Code:      ErrCodeHTTP,
			Message:   "request failed",
			Temporary: true,
			Err:       err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Provider:  p.Name(),
			Code:      ErrCodeHTTP,
			Message:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status),
			Temporary: resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
	}

	var protocols []llamaProtocol
	if err := json.NewDecoder(resp.Body).Decode(&protocols); err != nil {
		return nil, &ProviderError{
			Provider: p.Name(),
			Code:     ErrCodeDecode,
			Message:  "failed to decode protocols",
			Err:      err,
		}
	}

	cats := aggregateByCategory(protocols)
	if limit > 0 && len(cats) > limit {
		cats = cats[:limit]
	}

	log.Debug().
		Int("protocols", len(protocols)).
		Int("categories", len(cats)).
		Dur("duration", duration).
		Msg("DeFi Llama categories aggregated")

	return cats, nil
}

// aggregateByCategory rolls protocols up into categories. Change is the
// TVL-weighted mean of per-protocol 1d changes; top coins are the three
// largest protocols by TVL.
func aggregateByCategory(protocols []llamaProtocol) []model.Category {
	type bucket struct {
		tvl       float64
		changeSum float64 // sum of change_1d * tvl
		members   []llamaProtocol
	}
	buckets := make(map[string]*bucket)

	for _, proto := range protocols {
		if proto.Category == "" || proto.TVL <= 0 {
			continue
		}
		b, ok := buckets[proto.Category]
		if !ok {
			b = &bucket{}
			buckets[proto.Category] = b
		}
		b.tvl += proto.TVL
		b.changeSum += proto.Change1d * proto.TVL
		b.members = append(b.members, proto)
	}

	cats := make([]model.Category, 0, len(buckets))
	for name, b := range buckets {
		sort.Slice(b.members, func(i, j int) bool {
			return b.members[i].TVL > b.members[j].TVL
		})
		top := make([]string, 0, 3)
		for i := 0; i < len(b.members) && i < 3; i++ {
			top = append(top, b.members[i].Name)
		}
		cats = append(cats, model.Category{
			ID:                 slugify(name),
			Name:               name,
			MarketCap:          b.tvl,
			MarketCapChange24h: b.changeSum / b.tvl,
			Top3Coins:          top,
		})
	}

	sort.Slice(cats, func(i, j int) bool {
		return cats[i].MarketCap > cats[j].MarketCap
	})
	return cats
}

func slugify(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}
