package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// FormatDateKey renders a date-like value as YYYY-MM-DD. Strings are
// trimmed and cut at the first whitespace; they are not reparsed.
func FormatDateKey(v any) string {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.DateOnly)
	case *time.Time:
		if val == nil {
			return ""
		}
		return val.Format(time.DateOnly)
	case string:
		return firstField(val)
	case nil:
		return ""
	default:
		return firstField(fmt.Sprint(val))
	}
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ParseOffsetLabel normalizes a strike offset: strings pass through
// trimmed, 0 becomes "ATM", positive n becomes "+n" and negative n keeps
// its sign.
func ParseOffsetLabel(offset any) string {
	switch v := offset.(type) {
	case string:
		return strings.TrimSpace(v)
	case int:
		return intLabel(int64(v))
	case int8:
		return intLabel(int64(v))
	case int16:
		return intLabel(int64(v))
	case int32:
		return intLabel(int64(v))
	case int64:
		return intLabel(v)
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return intLabel(int64(v))
		}
	case float32:
		if f := float64(v); f == math.Trunc(f) && !math.IsInf(f, 0) {
			return intLabel(int64(f))
		}
	}
	return strings.TrimSpace(fmt.Sprint(offset))
}

func intLabel(n int64) string {
	switch {
	case n == 0:
		return "ATM"
	case n > 0:
		return "+" + strconv.FormatInt(n, 10)
	default:
		return strconv.FormatInt(n, 10)
	}
}
