// Package provider defines the market-data collaborator the collector
// pulls from, plus a replay implementation backed by a JSON snapshot file.
package provider

import (
	"context"
	"time"

	"optchain/internal/expiry"
	"optchain/internal/transform"
)

// Chain is the set of quotes for one index and expiry at one instant.
type Chain struct {
	// Timestamp is when the quotes were taken. Zero means "now" to the
	// caller.
	Timestamp time.Time
	// Quotes is keyed by trading symbol.
	Quotes map[string]transform.Quote
}

// Provider supplies instruments and quotes. Implementations own their
// network timeouts and retry policy.
type Provider interface {
	// Instruments returns the instrument master.
	Instruments(ctx context.Context) ([]expiry.Instrument, error)
	// ExpiryDates returns authoritative expiries for index, or none when
	// the provider has no direct source.
	ExpiryDates(ctx context.Context, index string) ([]time.Time, error)
	// IndexPrice returns the current index level.
	IndexPrice(ctx context.Context, index string) (float64, error)
	// Quotes returns the option chain for index and expiry.
	Quotes(ctx context.Context, index string, expiry time.Time) (Chain, error)
}
