package expiry

import (
	"math"
	"sort"
	"strings"
	"time"

	"optchain/internal/config"
	"optchain/internal/transform"
)

// ExtractOptions narrows expiry extraction.
type ExtractOptions struct {
	// ATMStrike restricts extraction to instruments whose strike lies
	// within StrikeWindow of it. Nil disables the restriction.
	ATMStrike *float64
	// StrikeWindow defaults to config.DefaultStrikeWindow when <= 0.
	StrikeWindow float64
	// Today defaults to the current market date when zero.
	Today time.Time
}

// Extract returns the sorted, unique expiry dates on or after today found
// among option instruments whose trading symbol contains index. When an
// ATM strike is given, instruments with a non-numeric strike are skipped
// rather than treated as unbounded. Malformed expiries are skipped.
func Extract(index string, instruments []Instrument, opts ExtractOptions) []time.Time {
	today := opts.Today
	if today.IsZero() {
		today = time.Now().In(config.MarketLocation())
	}
	today = transform.CivilDate(today)

	window := opts.StrikeWindow
	if window <= 0 {
		window = config.DefaultStrikeWindow
	}

	symbol := strings.ToUpper(strings.TrimSpace(index))
	seen := make(map[time.Time]struct{})
	dates := make([]time.Time, 0)

	for _, inst := range instruments {
		if !inst.IsOption() || !strings.Contains(strings.ToUpper(inst.TradingSymbol), symbol) {
			continue
		}

		if opts.ATMStrike != nil {
			strike, ok := transform.ToFloat(inst.Strike)
			if !ok || math.Abs(strike-*opts.ATMStrike) > window {
				continue
			}
		}

		d, err := parseExpiry(inst.Expiry)
		if err != nil || d.Before(today) {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		dates = append(dates, d)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Fabricate returns the next two weekly anchors (Thursdays) on or after
// today, seven days apart. It exists only to keep legacy consumers
// running when a provider lists instruments without usable expiries.
func Fabricate(today time.Time) []time.Time {
	if today.IsZero() {
		today = time.Now().In(config.MarketLocation())
	}
	today = transform.CivilDate(today)

	ahead := (int(config.WeeklyAnchorWeekday) - int(today.Weekday()) + 7) % 7
	first := today.AddDate(0, 0, ahead)

	dates := make([]time.Time, 0, config.FabricatedExpiryCount)
	for i := 0; i < config.FabricatedExpiryCount; i++ {
		dates = append(dates, first.Add(time.Duration(i)*config.FabricatedExpirySpacing))
	}
	return dates
}
