package heatmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sectorpulse/sectorpulse/internal/model"
)

func filterFixture() []model.Category {
	return []model.Category{
		{ID: "defi", MarketCap: 100, MarketCapChange24h: 5.2},
		{ID: "nft", MarketCap: 80, MarketCapChange24h: -3.1},
		{ID: "l2", MarketCap: 60, MarketCapChange24h: 0},
		{ID: "gaming", MarketCap: 40, MarketCapChange24h: 0.01},
		{ID: "meme", MarketCap: 20, MarketCapChange24h: -0.01},
	}
}

func TestFilter_All(t *testing.T) {
	out := Filter(filterFixture(), FilterAll, 0)
	assert.Len(t, out, 5)
}

func TestFilter_GainersLosersPartition(t *testing.T) {
	cats := filterFixture()
	gainers := Filter(cats, FilterGainers, 0)
	losers := Filter(cats, FilterLosers, 0)

	gainerIDs := make(map[string]bool)
	for _, c := range gainers {
		require.Greater(t, c.MarketCapChange24h, 0.0)
		gainerIDs[c.ID] = true
	}
	for _, c := range losers {
		require.Less(t, c.MarketCapChange24h, 0.0)
		assert.False(t, gainerIDs[c.ID], "gainers and losers must be disjoint")
	}

	// Zero change belongs to neither bucket.
	assert.Len(t, gainers, 2)
	assert.Len(t, losers, 2)
	for _, c := range append(gainers, losers...) {
		assert.NotEqual(t, "l2", c.ID)
	}
}

func TestFilter_Cap(t *testing.T) {
	out := Filter(filterFixture(), FilterAll, 3)
	require.Len(t, out, 3)
	// Input order is preserved; the cap truncates, it does not reorder.
	assert.Equal(t, "defi", out[0].ID)
	assert.Equal(t, "l2", out[2].ID)
}

func TestFilter_EmptyInput(t *testing.T) {
	assert.Empty(t, Filter(nil, FilterGainers, 10))
}

func TestParseFilterMode(t *testing.T) {
	assert.Equal(t, FilterGainers, ParseFilterMode("gainers"))
	assert.Equal(t, FilterLosers, ParseFilterMode("losers"))
	assert.Equal(t, FilterAll, ParseFilterMode("all"))
	assert.Equal(t, FilterAll, ParseFilterMode(""))
	assert.Equal(t, FilterAll, ParseFilterMode("bogus"))
}
