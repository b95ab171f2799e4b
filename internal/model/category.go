package model

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Category is a single market sector as reported by an upstream provider.
// Records are immutable once they pass boundary validation; each poll tick
// replaces the full set.
type Category struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	MarketCap          float64  `json:"market_cap"`
	MarketCapChange24h float64  `json:"market_cap_change_24h"`
	Volume24h          float64  `json:"volume_24h"`
	Top3Coins          []string `json:"top_3_coins,omitempty"`
}

// Snapshot is one complete fetch of the category universe. Generation is a
// monotonically increasing counter assigned when the fetch starts; the
// service uses it to reject stale in-flight results.
type Snapshot struct {
	Categories []Category `json:"categories"`
	Provider   string     `json:"provider"`
	FetchedAt  time.Time  `json:"fetched_at"`
	Generation uint64     `json:"generation"`
}

// TotalMarketCap sums the market caps of all categories in the snapshot.
func (s *Snapshot) TotalMarketCap() float64 {
	var total float64
	for _, c := range s.Categories {
		total += c.MarketCap
	}
	return total
}

// Validate checks a single category record from an upstream provider.
// Provider responses are untrusted input; anything that would poison the
// layout stage (NaN, Inf, negative caps) is rejected here.
func (c *Category) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("category id cannot be empty")
	}
	if c.Name == "" {
		return fmt.Errorf("category %s: name cannot be empty", c.ID)
	}
	if math.IsNaN(c.MarketCap) || math.IsInf(c.MarketCap, 0) {
		return fmt.Errorf("category %s: market_cap is not finite", c.ID)
	}
	if c.MarketCap < 0 {
		return fmt.Errorf("category %s: market_cap is negative: %f", c.ID, c.MarketCap)
	}
	if math.IsNaN(c.MarketCapChange24h) || math.IsInf(c.MarketCapChange24h, 0) {
		return fmt.Errorf("category %s: market_cap_change_24h is not finite", c.ID)
	}
	if math.IsNaN(c.Volume24h) || math.IsInf(c.Volume24h, 0) {
		return fmt.Errorf("category %s: volume_24h is not finite", c.ID)
	}
	return nil
}

// SanitizeCategories drops invalid records and returns the survivors sorted
// by market cap descending. The number of dropped records is returned so
// callers can surface it in telemetry.
func SanitizeCategories(cats []Category) ([]Category, int) {
	valid := make([]Category, 0, len(cats))
	dropped := 0
	for _, c := range cats {
		if err := c.Validate(); err != nil {
			dropped++
			continue
		}
		valid = append(valid, c)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].MarketCap > valid[j].MarketCap
	})
	return valid, dropped
}
