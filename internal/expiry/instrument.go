package expiry

import (
	"strings"
	"time"

	apperrors "optchain/internal/errors"
	"optchain/internal/transform"
)

// Instrument is one row of the provider's instrument master. Strike and
// Expiry are left loosely typed because providers disagree on their
// encoding; malformed values are skipped during extraction.
type Instrument struct {
	Segment        string `json:"segment"`
	TradingSymbol  string `json:"tradingsymbol"`
	InstrumentType string `json:"instrument_type,omitempty"`
	Strike         any    `json:"strike"`
	Expiry         any    `json:"expiry"`
}

// IsOption reports whether the instrument belongs to an options segment
// (NFO-OPT, BFO-OPT, ...).
func (i Instrument) IsOption() bool {
	return strings.Contains(strings.ToUpper(i.Segment), "OPT")
}

// parseExpiry accepts a time value or a string starting with YYYY-MM-DD
// and returns the calendar date.
func parseExpiry(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, apperrors.NewParsingError("zero expiry", nil)
		}
		return transform.CivilDate(val), nil
	case *time.Time:
		if val == nil || val.IsZero() {
			return time.Time{}, apperrors.NewParsingError("empty expiry", nil)
		}
		return transform.CivilDate(*val), nil
	case string:
		s := strings.TrimSpace(val)
		if len(s) < len(time.DateOnly) {
			return time.Time{}, apperrors.NewParsingError("short expiry string", nil).WithContext("value", val)
		}
		d, err := time.Parse(time.DateOnly, s[:len(time.DateOnly)])
		if err != nil {
			return time.Time{}, apperrors.NewParsingError("malformed expiry string", err).WithContext("value", val)
		}
		return d, nil
	default:
		return time.Time{}, apperrors.NewParsingError("unsupported expiry type", nil).WithContext("value", v)
	}
}
