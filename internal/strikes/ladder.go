// Package strikes indexes a strike ladder for tolerant membership,
// diffing and coverage checks against the strikes a snapshot realized.
package strikes

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"optchain/internal/config"
	"optchain/internal/transform"
)

// Ladder is an immutable strike ladder. Values are held both as sorted
// floats and as integers scaled by config.StrikeScale so that membership
// tests are insensitive to float jitter at two-decimal precision.
type Ladder struct {
	original []float64
	values   []float64
	scaled   map[int64]struct{}
	minStep  float64
}

// Description summarizes a ladder for logs and overview rows.
type Description struct {
	Count   int       `json:"count"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Step    float64   `json:"step"`
	Sample  []float64 `json:"sample"`
	MinStep float64   `json:"min_step"`
}

// DiffResult lists ladder strikes absent from a realized set and realized
// strikes absent from the ladder, both ascending.
type DiffResult struct {
	Missing []float64 `json:"missing"`
	Extra   []float64 `json:"extra"`
}

// Build constructs a ladder. Non-positive, NaN and infinite strikes are
// dropped; construction never fails.
func Build(strikes []float64) *Ladder {
	l := &Ladder{
		original: append([]float64(nil), strikes...),
		scaled:   make(map[int64]struct{}, len(strikes)),
	}

	for _, s := range strikes {
		if !valid(s) {
			continue
		}
		key := Key(s)
		if _, dup := l.scaled[key]; dup {
			continue
		}
		l.scaled[key] = struct{}{}
		l.values = append(l.values, s)
	}

	sort.Float64s(l.values)
	l.minStep = minPositiveGap(l.values)
	return l
}

// BuildRaw constructs a ladder from loosely typed input, silently skipping
// entries that cannot be coerced to a number.
func BuildRaw(raw []any) *Ladder {
	strikes := make([]float64, 0, len(raw))
	for _, r := range raw {
		if f, ok := transform.ToFloat(r); ok {
			strikes = append(strikes, f)
		}
	}
	return Build(strikes)
}

// Original returns the input the ladder was built from.
func (l *Ladder) Original() []float64 {
	return append([]float64(nil), l.original...)
}

// Values returns the sorted, filtered strikes.
func (l *Ladder) Values() []float64 {
	return append([]float64(nil), l.values...)
}

// Len returns the number of distinct strikes in the ladder.
func (l *Ladder) Len() int {
	return len(l.values)
}

// MinStep returns the smallest positive gap between adjacent strikes.
func (l *Ladder) MinStep() float64 {
	return l.minStep
}

// Contains reports whether value matches a ladder strike within one
// scaled unit (0.01).
func (l *Ladder) Contains(value float64) bool {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return false
	}
	return hasWithin(l.scaled, Key(value))
}

// ContainsRaw is Contains for loosely typed input; non-numeric input
// returns false.
func (l *Ladder) ContainsRaw(value any) bool {
	f, ok := transform.ToFloat(value)
	if !ok {
		return false
	}
	return l.Contains(f)
}

// Diff compares the ladder with realized strikes using exact scaled
// matching, unlike Contains and RealizedCoverage which tolerate one unit
// of jitter.
func (l *Ladder) Diff(realized []float64) DiffResult {
	realizedSet := scaledSet(realized)

	missing := make([]int64, 0)
	for key := range l.scaled {
		if _, ok := realizedSet[key]; !ok {
			missing = append(missing, key)
		}
	}

	extra := make([]int64, 0)
	for key := range realizedSet {
		if _, ok := l.scaled[key]; !ok {
			extra = append(extra, key)
		}
	}

	return DiffResult{
		Missing: unscaleSorted(missing),
		Extra:   unscaleSorted(extra),
	}
}

// Describe summarizes the ladder. Sample holds every strike when there
// are at most sample of them, otherwise the first two, the middle one and
// the last two.
func (l *Ladder) Describe(sample int) Description {
	d := Description{
		Count:   len(l.values),
		Step:    l.minStep,
		MinStep: l.minStep,
		Sample:  []float64{},
	}
	if len(l.values) == 0 {
		return d
	}

	d.Min = l.values[0]
	d.Max = l.values[len(l.values)-1]

	n := len(l.values)
	if n <= sample {
		d.Sample = l.Values()
		return d
	}

	d.Sample = []float64{
		l.values[0], l.values[1],
		l.values[n/2],
		l.values[n-2], l.values[n-1],
	}
	return d
}

// RealizedCoverage returns the fraction of ladder strikes present in
// realized, using the same one-unit tolerance as Contains. An empty ladder
// has zero coverage.
func (l *Ladder) RealizedCoverage(realized []float64) float64 {
	if len(l.scaled) == 0 {
		return 0.0
	}

	realizedSet := scaledSet(realized)
	matched := 0
	for key := range l.scaled {
		if hasWithin(realizedSet, key) {
			matched++
		}
	}
	return float64(matched) / float64(len(l.scaled))
}

func valid(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

var scaleFactor = decimal.NewFromInt(config.StrikeScale)

// Key scales a strike by config.StrikeScale and rounds it to an integer,
// the form strikes are matched in. NaN and infinities map to 0.
func Key(v float64) int64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Mul(scaleFactor).Round(0).IntPart()
}

func unscale(key int64) float64 {
	return decimal.NewFromInt(key).Div(scaleFactor).InexactFloat64()
}

func scaledSet(values []float64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(values))
	for _, v := range values {
		if valid(v) {
			set[Key(v)] = struct{}{}
		}
	}
	return set
}

func hasWithin(set map[int64]struct{}, key int64) bool {
	for _, k := range [3]int64{key, key - 1, key + 1} {
		if _, ok := set[k]; ok {
			return true
		}
	}
	return false
}

func unscaleSorted(keys []int64) []float64 {
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = unscale(k)
	}
	return out
}

func minPositiveGap(sorted []float64) float64 {
	if len(sorted) < 2 {
		return 0
	}
	step := 0.0
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i] - sorted[i-1]
		if gap > 0 && (step == 0 || gap < step) {
			step = gap
		}
	}
	return step
}
