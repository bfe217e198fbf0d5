package config

import (
	"sync"
	"time"
)

// Application constants for the option chain collector
const (
	// Application Info
	AppName    = "optchain"
	AppVersion = "1.0.0"
	EnvPrefix  = "OPTCHAIN"

	// Market session (exchange local time)
	MarketTimezone    = "Asia/Kolkata"
	MarketOpenHour    = 9
	MarketOpenMinute  = 15
	MarketCloseHour   = 15
	MarketCloseMinute = 30
	TradingMinutes    = 375

	// Strike handling
	DefaultStrikeInterval = 50.0
	StrikeScale           = 100
	DefaultStrikeWindow   = 500.0

	// Expiry resolution
	DefaultExpiryTTL        = 600 * time.Second
	ExpiryWarnInterval      = 5 * time.Second
	WeeklyAnchorWeekday     = time.Thursday
	FabricatedExpiryCount   = 2
	FabricatedExpirySpacing = 7 * 24 * time.Hour

	// Collection
	DefaultCollectInterval = time.Minute
	DefaultOffsetRange     = 2
	DefaultMaxExpiries     = 2

	// Storage layout (relative to the storage base dir)
	DefaultBaseDir   = "data/csv"
	DefaultLogsDir   = "logs"
	QuarantineSubdir = "quarantine"
	OverviewSubdir   = "overview"
	CSVPattern       = "*.csv"

	// Metrics
	DefaultMetricsNamespace  = "optchain"
	DefaultMetricsListenAddr = ":9108"
)

// StrikeIntervals maps an index symbol to its listed strike spacing.
var StrikeIntervals = map[string]float64{
	"NIFTY":      50,
	"BANKNIFTY":  100,
	"FINNIFTY":   50,
	"SENSEX":     100,
	"BANKEX":     100,
	"MIDCPNIFTY": 25,
}

// StrikeIntervalFor returns the strike spacing for index, or the default
// spacing when the symbol is unknown.
func StrikeIntervalFor(index string) float64 {
	if v, ok := StrikeIntervals[index]; ok {
		return v
	}
	return DefaultStrikeInterval
}

// MarketLocation returns the exchange time zone, falling back to a fixed
// +05:30 offset when the tz database is unavailable.
// The zone is loaded once.
func MarketLocation() *time.Location {
	return marketLocation()
}

var marketLocation = sync.OnceValue(func() *time.Location {
	loc, err := time.LoadLocation(MarketTimezone)
	if err != nil {
		return time.FixedZone("IST", 5*3600+30*60)
	}
	return loc
})
