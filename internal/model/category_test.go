package model

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_Validate(t *testing.T) {
	valid := Category{ID: "defi", Name: "DeFi", MarketCap: 100, MarketCapChange24h: 1.5, Volume24h: 10}
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name string
		mut  func(c *Category)
	}{
		{"empty id", func(c *Category) { c.ID = "" }},
		{"empty name", func(c *Category) { c.Name = "" }},
		{"nan cap", func(c *Category) { c.MarketCap = math.NaN() }},
		{"inf cap", func(c *Category) { c.MarketCap = math.Inf(1) }},
		{"negative cap", func(c *Category) { c.MarketCap = -1 }},
		{"nan change", func(c *Category) { c.MarketCapChange24h = math.NaN() }},
		{"inf volume", func(c *Category) { c.Volume24h = math.Inf(-1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mut(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestSanitizeCategories(t *testing.T) {
	cats := []Category{
		{ID: "small", Name: "Small", MarketCap: 5},
		{ID: "", Name: "Invalid", MarketCap: 50},
		{ID: "big", Name: "Big", MarketCap: 500},
		{ID: "mid", Name: "Mid", MarketCap: 50},
	}
	valid, dropped := SanitizeCategories(cats)

	assert.Equal(t, 1, dropped)
	require.Len(t, valid, 3)
	assert.Equal(t, "big", valid[0].ID)
	assert.Equal(t, "mid", valid[1].ID)
	assert.Equal(t, "small", valid[2].ID)
}

func TestSnapshot_TotalMarketCap(t *testing.T) {
	snap := Snapshot{
		Categories: []Category{
			{ID: "a", Name: "A", MarketCap: 100},
			{ID: "b", Name: "B", MarketCap: 50.5},
		},
		FetchedAt: time.Now(),
	}
	assert.InDelta(t, 150.5, snap.TotalMarketCap(), 1e-9)

	empty := Snapshot{}
	assert.Zero(t, empty.TotalMarketCap())
}
