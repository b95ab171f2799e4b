package heatmap

import "github.com/sectorpulse/sectorpulse/internal/model"

// FilterMode selects the category subset entering the layout.
type FilterMode string

const (
	FilterAll     FilterMode = "all"
	FilterGainers FilterMode = "gainers"
	FilterLosers  FilterMode = "losers"
)

// ParseFilterMode maps a query string value onto a FilterMode, defaulting
// to FilterAll for empty or unknown values.
func ParseFilterMode(s string) FilterMode {
	switch FilterMode(s) {
	case FilterGainers:
		return FilterGainers
	case FilterLosers:
		return FilterLosers
	default:
		return FilterAll
	}
}

// Filter returns the subset of cats matching mode, capped at max entries.
// Gainers require change strictly above zero and losers strictly below;
// a category with exactly zero change belongs to neither bucket.
func Filter(cats []model.Category, mode FilterMode, max int) []model.Category {
	out := make([]model.Category, 0, len(cats))
	for _, c := range cats {
		switch mode {
		case FilterGainers:
			if c.MarketCapChange24h <= 0 {
				continue
			}
		case FilterLosers:
			if c.MarketCapChange24h >= 0 {
				continue
			}
		}
		out = append(out, c)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}
