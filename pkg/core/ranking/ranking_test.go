package ranking

import (
	"math"
	"testing"

	"cubitai/pkg/core/dataset"
)

func TestTopSalesRepsAccumulates(t *testing.T) {
	records := []dataset.Record{
		{"rep": "A", "amount": "100"},
		{"rep": "B", "amount": "$300"},
		{"rep": "A", "amount": "50"},
	}

	ranked := TopSalesReps(records, 5)
	if len(ranked) != 2 {
		t.Fatalf("Expected 2 reps, got %d", len(ranked))
	}
	if ranked[0].SalesRep != "B" || math.Abs(ranked[0].TotalRevenue-300) > 0.0001 {
		t.Errorf("Expected B with 300 first, got %+v", ranked[0])
	}
	if ranked[1].SalesRep != "A" || math.Abs(ranked[1].TotalRevenue-150) > 0.0001 {
		t.Errorf("Expected A with 150 second, got %+v", ranked[1])
	}
}

func TestTopSalesRepsSkipsBadRows(t *testing.T) {
	records := []dataset.Record{
		{"rep": "A", "amount": "100"},
		{"rep": "", "amount": "999"},     // no rep: dropped
		{"rep": "C", "amount": "N/A"},    // unparseable amount: dropped, not zeroed
		{"rep": "  ", "amount": "500"},   // whitespace rep: dropped
		{"notes": "no relevant columns"}, // nothing resolvable
	}

	ranked := TopSalesReps(records, 5)
	if len(ranked) != 1 {
		t.Fatalf("Expected only A to survive, got %+v", ranked)
	}
	if ranked[0].SalesRep != "A" || ranked[0].TotalRevenue != 100 {
		t.Errorf("Unexpected entry: %+v", ranked[0])
	}
}

func TestTopSalesRepsCanonicalKeysFirst(t *testing.T) {
	// Canonical keys win over keyword-detected columns in the same record.
	records := []dataset.Record{
		{"sales_rep": "Dana", "deal_value": "250", "owner": "wrong", "price": "1"},
	}

	ranked := TopSalesReps(records, 5)
	if len(ranked) != 1 || ranked[0].SalesRep != "Dana" || ranked[0].TotalRevenue != 250 {
		t.Errorf("Expected Dana with 250, got %+v", ranked)
	}
}

func TestTopSalesRepsStableTies(t *testing.T) {
	records := []dataset.Record{
		{"rep": "X", "amount": "100"},
		{"rep": "Y", "amount": "100"},
		{"rep": "Z", "amount": "100"},
	}

	ranked := TopSalesReps(records, 5)
	got := []string{ranked[0].SalesRep, ranked[1].SalesRep, ranked[2].SalesRep}
	want := []string{"X", "Y", "Z"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Ties must keep first-appearance order: expected %v, got %v", want, got)
		}
	}
}

func TestTopSalesRepsTruncatesAndDefaults(t *testing.T) {
	var records []dataset.Record
	for _, r := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		records = append(records, dataset.Record{"rep": r, "amount": "100"})
	}

	if got := TopSalesReps(records, 3); len(got) != 3 {
		t.Errorf("Expected 3 entries, got %d", len(got))
	}
	// Non-positive N falls back to the default leaderboard size.
	if got := TopSalesReps(records, 0); len(got) != DefaultTopN {
		t.Errorf("Expected %d entries for topN=0, got %d", DefaultTopN, len(got))
	}
}

func TestTopSalesRepsRoundsTotals(t *testing.T) {
	records := []dataset.Record{
		{"rep": "A", "amount": "10.105"},
		{"rep": "A", "amount": "10.101"},
	}

	ranked := TopSalesReps(records, 1)
	if math.Abs(ranked[0].TotalRevenue-20.21) > 0.0001 {
		t.Errorf("Expected total rounded to 20.21, got %f", ranked[0].TotalRevenue)
	}
}

func TestLooksLikeSalesData(t *testing.T) {
	sales := []dataset.Record{
		{"Sales Rep": "Alice", "Deal Amount": "100", "Stage": "Won"},
	}
	if !LooksLikeSalesData(sales) {
		t.Error("Expected rep+amount headers to look like sales data")
	}

	notSales := []dataset.Record{
		{"city": "Paris", "population": "2000000"},
	}
	if LooksLikeSalesData(notSales) {
		t.Error("City/population data must not pass the plausibility check")
	}

	// A rep column alone is not enough.
	repOnly := []dataset.Record{
		{"rep": "Alice", "notes": "called twice"},
	}
	if LooksLikeSalesData(repOnly) {
		t.Error("Rep without any value-like column must not pass")
	}
}
