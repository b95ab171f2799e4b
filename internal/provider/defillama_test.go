package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefiLlama_Categories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/protocols", r.URL.Path)
		w.Write([]byte(`[
			{"name":"Uniswap","category":"Dexes","tvl":4000000000,"change_1d":2.0},
			{"name":"Curve","category":"Dexes","tvl":2000000000,"change_1d":-1.0},
			{"name":"Aave","category":"Lending","tvl":9000000000,"change_1d":0.5},
			{"name":"Ghost","category":"","tvl":1000000,"change_1d":9.9},
			{"name":"Dust","category":"Dexes","tvl":0,"change_1d":5.0}
		]`))
	}))
	defer srv.Close()

	p := NewDefiLlama(testProviderConfig(srv.URL), nil)
	cats, err := p.Categories(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, cats, 2, "empty categories and zero-TVL protocols are skipped")

	// Sorted by aggregate TVL descending.
	assert.Equal(t, "Lending", cats[0].Name)
	assert.Equal(t, 9000000000.0, cats[0].MarketCap)

	dexes := cats[1]
	assert.Equal(t, "dexes", dexes.ID)
	assert.Equal(t, 6000000000.0, dexes.MarketCap)
	// TVL-weighted change: (2.0*4e9 + -1.0*2e9) / 6e9 = 1.0
	assert.InDelta(t, 1.0, dexes.MarketCapChange24h, 1e-9)
	assert.Equal(t, []string{"Uniswap", "Curve"}, dexes.Top3Coins)
}

func TestDefiLlama_LimitSlices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"name":"A","category":"CatA","tvl":3,"change_1d":0},
			{"name":"B","category":"CatB","tvl":2,"change_1d":0},
			{"name":"C","category":"CatC","tvl":1,"change_1d":0}
		]`))
	}))
	defer srv.Close()

	p := NewDefiLlama(testProviderConfig(srv.URL), nil)
	cats, err := p.Categories(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, "CatA", cats[0].Name)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "liquid-staking", slugify("Liquid Staking"))
	assert.Equal(t, "cdp-lending", slugify("CDP/Lending"))
}
