// Package coerce provides best-effort conversion of raw CRM export values
// into numeric and date semantics. Coercion never fails hard: values that
// cannot be parsed yield a sentinel and are excluded from aggregates.
package coerce

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Money parses a raw string into a float64, tolerating currency symbols and
// thousands separators ("$1,250.50" → 1250.50). The second return is false
// for empty, missing, or unparseable input.
func Money(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	s = strings.ReplaceAll(s, ",", "")
	for _, sym := range []string{"$", "€", "£", "¥"} {
		s = strings.TrimPrefix(s, sym)
		s = strings.TrimSuffix(s, sym)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// NumericColumn coerces every value of a column. Unparseable rows are dropped
// (not zeroed); ok is the count of values that parsed.
func NumericColumn(values []string) (parsed []float64, ok int) {
	parsed = make([]float64, 0, len(values))
	for _, v := range values {
		if f, good := Money(v); good {
			parsed = append(parsed, f)
		}
	}
	return parsed, len(parsed)
}

// SumColumn sums the coercible values of a column, ignoring the rest.
// ok reports how many values contributed.
func SumColumn(values []string) (sum float64, ok int) {
	for _, v := range values {
		if f, good := Money(v); good {
			sum += f
			ok++
		}
	}
	return sum, ok
}

// AvgColumn averages the coercible values of a column. ok is false when no
// value parsed; callers surface an "insufficient data" outcome instead of
// dividing by zero.
func AvgColumn(values []string) (avg float64, ok bool) {
	sum, n := SumColumn(values)
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

var dateFormats = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"02/01/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

// Date parses a raw string into a time, trying the common CRM export formats
// in order. Rows that fail are silently excluded from date filters.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateColumn coerces a column of raw values into times. Indexes with
// unparseable values are absent from the result; ok counts the parsed rows.
func DateColumn(values []string) (parsed []time.Time, ok int) {
	parsed = make([]time.Time, 0, len(values))
	for _, v := range values {
		if t, good := Date(v); good {
			parsed = append(parsed, t)
		}
	}
	return parsed, len(parsed)
}
