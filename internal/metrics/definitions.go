package metrics

// Kind enumerates the domain events the tracker reports.
type Kind int

const (
	RowsWritten Kind = iota
	BatchFlushes
	BatchRows
	DuplicatesSuppressed
	JunkFiltered
	QuarantineWrites
	OverviewWrites
	AggregationUpdates
	ExpiryDailyRows
)

// Type is the instrument type backing a Kind.
type Type int

const (
	Counter Type = iota
	Gauge
)

// Definition fixes the name, type and label keys of one metric.
type Definition struct {
	Kind   Kind
	Name   string
	Help   string
	Type   Type
	Labels []string
}

// Definitions lists every metric the tracker can emit. Backends register
// exactly these.
var Definitions = []Definition{
	{RowsWritten, "rows_written_total", "Option chain rows appended to CSV stores", Counter, []string{"index", "expiry_code"}},
	{BatchFlushes, "batch_flushes_total", "Batched CSV appends", Counter, []string{"index"}},
	{BatchRows, "batch_rows_total", "Rows written through batched appends", Counter, []string{"index"}},
	{DuplicatesSuppressed, "duplicates_suppressed_total", "Rows skipped because their timestamp was already stored", Counter, []string{"index"}},
	{JunkFiltered, "junk_filtered_total", "Rows diverted from the primary store as junk", Counter, []string{"index", "reason"}},
	{QuarantineWrites, "quarantine_writes_total", "Rows appended to quarantine files", Counter, []string{"index"}},
	{OverviewWrites, "overview_writes_total", "Rows appended to overview files", Counter, []string{"index"}},
	{AggregationUpdates, "aggregation_updates_total", "Aggregation bookkeeping updates", Counter, []string{"index", "expiry_code"}},
	{ExpiryDailyRows, "expiry_daily_rows", "Rows stored today per index and expiry code", Gauge, []string{"index", "date", "expiry_code"}},
}

func (k Kind) definition() (Definition, bool) {
	for _, d := range Definitions {
		if d.Kind == k {
			return d, true
		}
	}
	return Definition{}, false
}

// String returns the metric name for k.
func (k Kind) String() string {
	if d, ok := k.definition(); ok {
		return d.Name
	}
	return "unknown"
}
