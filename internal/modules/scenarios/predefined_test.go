package scenarios

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	entries := Catalog()
	require.Len(t, entries, 6)

	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Slug, entries[i].Slug)
	}
	for _, e := range entries {
		assert.NotEmpty(t, e.Parameters.Name)
		assert.NotEmpty(t, e.Parameters.Assets)
		assert.Greater(t, e.Parameters.CorrelationMultiplier, 1.0)
	}
}

func TestLookup(t *testing.T) {
	e, err := Lookup("financial-crisis-2008")
	require.NoError(t, err)
	assert.Equal(t, "2008 Financial Crisis", e.Parameters.Name)
	assert.Equal(t, 1.5, e.Parameters.CorrelationMultiplier)

	e, err = Lookup("covid-19 market crash")
	require.NoError(t, err)
	assert.Equal(t, "covid-19-crash", e.Slug)

	_, err = Lookup("alien invasion")
	assert.Error(t, err)
}

func TestLookup_ReturnsCopies(t *testing.T) {
	e, err := Lookup("oil-shock")
	require.NoError(t, err)
	e.Parameters.Assets[0].ReturnShock = 42
	e.Parameters.CorrelationMultiplier = 9

	again, err := Lookup("oil-shock")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Parameters.Assets[0].ReturnShock)
	assert.Equal(t, 1.1, again.Parameters.CorrelationMultiplier)
}

func TestRestrict(t *testing.T) {
	e, err := Lookup("financial-crisis-2008")
	require.NoError(t, err)

	restricted := e.Parameters.Restrict([]string{"SPY", "TLT", "ABC"})
	assert.Equal(t, []string{"SPY", "TLT"}, restricted.Tickers())
	assert.Len(t, e.Parameters.Assets, 11)

	r, err := restricted.Resolve([]string{"SPY", "TLT", "ABC"})
	require.NoError(t, err)
	assert.Equal(t, []float64{-0.50, 0.15, 0}, r.ReturnShocks)
	assert.Equal(t, []float64{2.5, 1.5, 1}, r.VolatilityMultipliers)

	assert.Nil(t, (*Parameters)(nil).Restrict([]string{"SPY"}))
}
