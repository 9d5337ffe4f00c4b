package query

import (
	"math"
	"strings"
	"testing"

	"cubitai/pkg/core/dataset"
)

func TestDescribeNumericColumn(t *testing.T) {
	ds := &dataset.Dataset{
		Columns: []string{"value"},
		Records: []dataset.Record{
			{"value": "10"}, {"value": "20"}, {"value": "30"}, {"value": "40"},
		},
	}

	out := Describe(ds)
	if !strings.HasPrefix(out, "Summary of 4 records across 1 columns.") {
		t.Errorf("Unexpected header: %q", out)
	}

	want := "value — count: 4, mean: 25, min: 10, 25%: 17.5, 50%: 25, 75%: 32.5, max: 40"
	if !strings.Contains(out, want) {
		t.Errorf("Expected %q in summary, got %q", want, out)
	}
}

func TestDescribeCategoricalColumn(t *testing.T) {
	ds := &dataset.Dataset{
		Columns: []string{"region"},
		Records: []dataset.Record{
			{"region": "East"}, {"region": "West"}, {"region": "East"}, {"region": ""},
		},
	}

	out := Describe(ds)
	if !strings.Contains(out, "region — count: 3, unique: 2") {
		t.Errorf("Expected categorical stats, got %q", out)
	}
}

func TestDescribeNumericThreshold(t *testing.T) {
	// 3 of 4 non-missing values coerce: 75% is under the 80% bar, so the
	// column is treated as categorical.
	ds := &dataset.Dataset{
		Columns: []string{"mixed"},
		Records: []dataset.Record{
			{"mixed": "1"}, {"mixed": "2"}, {"mixed": "3"}, {"mixed": "n/a"},
		},
	}

	out := Describe(ds)
	if !strings.Contains(out, "mixed — count: 4, unique: 4") {
		t.Errorf("Expected categorical fallback under threshold, got %q", out)
	}
}

func TestPercentileInterpolation(t *testing.T) {
	sorted := []float64{10, 20, 30, 40}

	cases := []struct {
		p    float64
		want float64
	}{
		{0.25, 17.5},
		{0.50, 25},
		{0.75, 32.5},
		{0, 10},
		{1, 40},
	}
	for _, c := range cases {
		got := percentile(sorted, c.p)
		if math.Abs(got-c.want) > 0.0001 {
			t.Errorf("percentile(%v): expected %f, got %f", c.p, c.want, got)
		}
	}

	if got := percentile([]float64{42}, 0.75); got != 42 {
		t.Errorf("Single-value percentile should be that value, got %f", got)
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Errorf("Empty percentile should be 0, got %f", got)
	}
}
