package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDateKey(t *testing.T) {
	ts := time.Date(2024, 1, 4, 9, 15, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"time", ts, "2024-01-04"},
		{"time pointer", &ts, "2024-01-04"},
		{"plain date string", "2024-01-04", "2024-01-04"},
		{"date time string", "2024-01-04 09:15:00", "2024-01-04"},
		{"padded string", "  2024-01-04\t", "2024-01-04"},
		{"empty string", "", ""},
		{"nil", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDateKey(tt.in))
		})
	}
}

func TestParseOffsetLabel(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"zero", 0, "ATM"},
		{"positive", 2, "+2"},
		{"negative", -3, "-3"},
		{"int64", int64(5), "+5"},
		{"integral float", 1.0, "+1"},
		{"string passthrough", "  +1 ", "+1"},
		{"label passthrough", "ATM", "ATM"},
		{"fractional float", 1.5, "1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOffsetLabel(tt.in))
		})
	}
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in     any
		want   float64
		wantOK bool
	}{
		{1, 1, true},
		{int64(2), 2, true},
		{float32(2.5), 2.5, true},
		{"3.25", 3.25, true},
		{" 4 ", 4, true},
		{"x", 0, false},
		{nil, 0, false},
		{"NaN", 0, false},
		{[]int{1}, 0, false},
	}

	for _, tt := range tests {
		got, ok := ToFloat(tt.in)
		assert.Equal(t, tt.wantOK, ok, "%v", tt.in)
		if tt.wantOK {
			assert.Equal(t, tt.want, got)
		}
	}
}
