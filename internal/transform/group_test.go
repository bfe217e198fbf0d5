package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupByStrike_MergesSides(t *testing.T) {
	quotes := map[string]Quote{
		"NIFTYCE": {"strike": 18000, "option_type": "CE"},
		"NIFTYPE": {"strike": 18000, "option_type": "PE"},
	}

	groups := GroupByStrike(quotes)

	require.Len(t, groups, 1)
	g, ok := groups[18000.0]
	require.True(t, ok)
	assert.Equal(t, 18000.0, g.Strike)
	assert.NotNil(t, g.CE)
	assert.NotNil(t, g.PE)
}

func TestGroupByStrike_InfersSideFromSymbol(t *testing.T) {
	quotes := map[string]Quote{
		"NIFTY24JAN18000ce": {"strike": "18000", "last_price": 101.5},
		"NIFTY24JAN18000PE": {"strike": 18000.0, "last_price": 88.0},
		"NIFTY24JAN18050CE": {"strike": 18050, "option_type": "call"},
	}

	groups := GroupByStrike(quotes)

	require.Len(t, groups, 2)
	assert.Equal(t, 101.5, groups[18000].CE["last_price"])
	assert.Equal(t, 88.0, groups[18000].PE["last_price"])
	assert.NotNil(t, groups[18050].CE)
	assert.Nil(t, groups[18050].PE)
}

func TestGroupByStrike_SkipsBadRecords(t *testing.T) {
	quotes := map[string]Quote{
		"NOSTRIKECE":   {"option_type": "CE"},
		"BADSTRIKECE":  {"strike": "abc"},
		"NOSIDE18000":  {"strike": 18000},
		"NILQUOTE":     nil,
		"GOOD18100CE":  {"strike": 18100},
	}

	groups := GroupByStrike(quotes)

	require.Len(t, groups, 1)
	assert.Contains(t, groups, 18100.0)
}

func TestGroupByStrike_ExplicitTypeWins(t *testing.T) {
	groups := GroupByStrike(map[string]Quote{
		"ODDSYMBOLCE": {"strike": 100, "option_type": "PE"},
	})

	require.Contains(t, groups, 100.0)
	assert.Nil(t, groups[100].CE)
	assert.NotNil(t, groups[100].PE)
}

func TestSortedStrikes(t *testing.T) {
	groups := map[float64]*StrikeGroup{300: {}, 100: {}, 200: {}}
	assert.Equal(t, []float64{100, 200, 300}, SortedStrikes(groups))
}

func TestStrikeGroup_ToMap(t *testing.T) {
	g := StrikeGroup{Strike: 100, PE: Quote{"oi": 5}}

	m := g.ToMap()
	assert.Equal(t, 100.0, m["strike"])
	assert.NotContains(t, m, "CE")
	assert.Equal(t, map[string]any{"oi": 5}, m["PE"])
	assert.Equal(t, g.PE, g.Side(SidePut))
	assert.Nil(t, g.Side(SideCall))
}
