package transform

import (
	"math"
	"strings"
	"time"

	"optchain/internal/config"
)

// ExpiryCode buckets an expiry by how far away it is.
type ExpiryCode string

const (
	ExpiryExpired     ExpiryCode = "EXP"
	ExpiryWeekCurrent ExpiryCode = "W0"
	ExpiryWeekNext    ExpiryCode = "W1"
	ExpiryMonthCurr   ExpiryCode = "M0"
	ExpiryMonthNext   ExpiryCode = "M1"
	ExpiryFar         ExpiryCode = "MF"
)

// ComputeATMStrike rounds price to the nearest listed strike for index.
// Ties round to even, matching banker's rounding on the quotient.
func ComputeATMStrike(index string, price float64) float64 {
	interval := config.StrikeIntervalFor(strings.ToUpper(strings.TrimSpace(index)))
	return math.RoundToEven(price/interval) * interval
}

// DetermineExpiryCode classifies expiry relative to today by whole
// calendar days: <0 EXP, <=7 W0, <=14 W1, <=30 M0, <=60 M1, else MF.
// A zero today means the current date in market time.
func DetermineExpiryCode(expiry, today time.Time) ExpiryCode {
	if today.IsZero() {
		today = time.Now().In(config.MarketLocation())
	}

	days := DaysBetween(today, expiry)
	switch {
	case days < 0:
		return ExpiryExpired
	case days <= 7:
		return ExpiryWeekCurrent
	case days <= 14:
		return ExpiryWeekNext
	case days <= 30:
		return ExpiryMonthCurr
	case days <= 60:
		return ExpiryMonthNext
	default:
		return ExpiryFar
	}
}

// DaysBetween returns the number of calendar days from a to b, ignoring
// clock time and location.
func DaysBetween(a, b time.Time) int {
	return int(CivilDate(b).Sub(CivilDate(a)).Hours() / 24)
}

// CivilDate strips t to midnight UTC of its own calendar date.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ComputeDayWidth returns how much of the expiry day remains at
// timestamp: 1 before the expiry date, 0 after it, and on the expiry date
// the share of the 09:15-15:30 session still ahead, clamped to [0, 1].
// An unparseable expiry or a zero timestamp yields 1.
func ComputeDayWidth(expiryISO string, timestamp time.Time) float64 {
	if timestamp.IsZero() {
		return 1.0
	}
	key := FormatDateKey(expiryISO)
	if len(key) > len(time.DateOnly) {
		key = key[:len(time.DateOnly)]
	}
	expiry, err := time.Parse(time.DateOnly, key)
	if err != nil {
		return 1.0
	}

	loc := config.MarketLocation()
	ts := timestamp.In(loc)
	days := DaysBetween(ts, expiry)
	switch {
	case days > 0:
		return 1.0
	case days < 0:
		return 0.0
	}

	y, m, d := ts.Date()
	closeAt := time.Date(y, m, d, config.MarketCloseHour, config.MarketCloseMinute, 0, 0, loc)
	remaining := closeAt.Sub(ts).Minutes()

	width := remaining / float64(config.TradingMinutes)
	return math.Max(0, math.Min(1, width))
}
