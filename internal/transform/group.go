package transform

import (
	"sort"
	"strings"
)

// Side identifies the call or put leg of a strike.
type Side string

const (
	SideCall Side = "CE"
	SidePut  Side = "PE"
)

// Quote is one instrument's raw quote attributes as delivered by the
// provider (strike, option_type, last_price, oi, iv, greeks, ...).
type Quote map[string]any

// StrikeGroup merges the call and put quotes listed at one strike.
type StrikeGroup struct {
	Strike float64
	CE     Quote
	PE     Quote
}

// ToMap renders the group in its wire shape: {"strike", "CE"?, "PE"?}.
func (g StrikeGroup) ToMap() map[string]any {
	m := map[string]any{"strike": g.Strike}
	if g.CE != nil {
		m[string(SideCall)] = map[string]any(g.CE)
	}
	if g.PE != nil {
		m[string(SidePut)] = map[string]any(g.PE)
	}
	return m
}

// Side returns the quote for s, or nil.
func (g StrikeGroup) Side(s Side) Quote {
	if s == SideCall {
		return g.CE
	}
	return g.PE
}

// GroupByStrike merges per-instrument quotes keyed by trading symbol into
// one group per strike. Quotes without a numeric strike are skipped. The
// side comes from option_type when it names a call or put, otherwise from
// a case-insensitive CE/PE match on the symbol; quotes with neither are
// skipped.
func GroupByStrike(quotes map[string]Quote) map[float64]*StrikeGroup {
	groups := make(map[float64]*StrikeGroup)

	// stable order so that a symbol collision resolves the same way each run
	symbols := make([]string, 0, len(quotes))
	for sym := range quotes {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	for _, sym := range symbols {
		q := quotes[sym]
		if q == nil {
			continue
		}
		strike, ok := ToFloat(q["strike"])
		if !ok {
			continue
		}
		side, ok := resolveSide(sym, q)
		if !ok {
			continue
		}

		g, exists := groups[strike]
		if !exists {
			g = &StrikeGroup{Strike: strike}
			groups[strike] = g
		}
		if side == SideCall {
			g.CE = q
		} else {
			g.PE = q
		}
	}

	return groups
}

// SortedStrikes returns the group keys ascending.
func SortedStrikes(groups map[float64]*StrikeGroup) []float64 {
	strikes := make([]float64, 0, len(groups))
	for s := range groups {
		strikes = append(strikes, s)
	}
	sort.Float64s(strikes)
	return strikes
}

func resolveSide(symbol string, q Quote) (Side, bool) {
	if raw, ok := q["option_type"].(string); ok {
		switch strings.ToUpper(strings.TrimSpace(raw)) {
		case "CE", "CALL", "C":
			return SideCall, true
		case "PE", "PUT", "P":
			return SidePut, true
		}
	}

	upper := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(upper, "CE"):
		return SideCall, true
	case strings.HasSuffix(upper, "PE"):
		return SidePut, true
	case strings.Contains(upper, "CE"):
		return SideCall, true
	case strings.Contains(upper, "PE"):
		return SidePut, true
	}
	return "", false
}
