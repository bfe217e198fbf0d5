package sink

import (
	"encoding/json"
	"math"

	"optchain/internal/exporter"
	"optchain/internal/transform"
)

// QuoteFields are the per-side quote attributes copied into chain rows,
// in column order.
var QuoteFields = []string{"ltp", "bid", "ask", "volume", "oi", "iv", "delta", "gamma", "theta", "vega"}

// ChainHeader is the header of every <CODE>_<OFFSET>.csv file.
var ChainHeader = buildChainHeader()

func buildChainHeader() []string {
	header := []string{"timestamp", "index", "expiry", "expiry_code", "offset", "strike", "atm", "index_price", "day_width"}
	for _, side := range []transform.Side{transform.SideCall, transform.SidePut} {
		prefix := lower(side) + "_"
		for _, f := range QuoteFields {
			header = append(header, prefix+f)
		}
	}
	return header
}

// QuarantineHeader is the header of quarantine/<INDEX>/<DATE>.csv.
var QuarantineHeader = []string{"timestamp", "index", "expiry", "expiry_code", "offset", "strike", "reason", "payload"}

// OverviewHeader is the header of overview/<INDEX>/<DATE>.csv.
var OverviewHeader = []string{
	"timestamp", "index", "expiry", "expiry_code", "atm", "index_price", "day_width",
	"requested", "realized", "coverage", "missing", "extra",
}

// Junk reasons
const (
	ReasonMissingStrike = "missing_strike"
	ReasonNoSides       = "no_sides"
	ReasonBadLTP        = "bad_ltp"
)

// ltpKeys are checked in order when reading a side's last traded price.
var ltpKeys = []string{"ltp", "last_price"}

func lower(s transform.Side) string {
	if s == transform.SideCall {
		return "ce"
	}
	return "pe"
}

// quoteValue reads field from q, accepting last_price for ltp.
func quoteValue(q transform.Quote, field string) any {
	if q == nil {
		return nil
	}
	if field == "ltp" {
		for _, k := range ltpKeys {
			if v, ok := q[k]; ok {
				return v
			}
		}
		return nil
	}
	return q[field]
}

// classify returns the junk reason for group, or "" if the group is fit
// for the primary store.
func classify(group *transform.StrikeGroup) string {
	if group == nil {
		return ReasonMissingStrike
	}
	if group.CE == nil && group.PE == nil {
		return ReasonNoSides
	}
	for _, side := range []transform.Side{transform.SideCall, transform.SidePut} {
		q := group.Side(side)
		if q == nil {
			continue
		}
		if ltp, ok := transform.ToFloat(quoteValue(q, "ltp")); ok && ltp > 0 && !math.IsNaN(ltp) {
			return ""
		}
	}
	return ReasonBadLTP
}

// sideCells renders the QuoteFields of one side.
func sideCells(q transform.Quote) []string {
	cells := make([]string, len(QuoteFields))
	for i, f := range QuoteFields {
		cells[i] = exporter.FormatValue(transform.CleanForJSON(quoteValue(q, f)))
	}
	return cells
}

// payload renders group as JSON for the quarantine store.
func payload(group *transform.StrikeGroup) string {
	if group == nil {
		return ""
	}
	data, err := json.Marshal(transform.CleanForJSON(group))
	if err != nil {
		return ""
	}
	return string(data)
}
