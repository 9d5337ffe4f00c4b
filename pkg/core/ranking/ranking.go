// Package ranking builds a revenue leaderboard per sales representative from
// loosely-structured records. It works directly on records (not resolved
// dataset columns) because exports sometimes vary column sets row to row.
package ranking

import (
	"sort"
	"strings"

	"cubitai/pkg/core/coerce"
	"cubitai/pkg/core/dataset"
	"cubitai/pkg/core/fields"
)

// DefaultTopN is the leaderboard size when the caller doesn't specify one.
const DefaultTopN = 5

// Entry is one leaderboard row.
type Entry struct {
	SalesRep     string  `json:"sales_rep"`
	TotalRevenue float64 `json:"total_revenue"`
}

// Fallback keyword families used when the canonical keys are absent from a
// record. Narrower than the registry on purpose: these mirror what real
// exports actually use for these two concepts.
var (
	repKeywords    = []string{"rep", "sales_rep", "agent", "salesperson", "owner"}
	amountKeywords = []string{"amount", "value", "revenue", "price", "total"}
)

// TopSalesReps accumulates total revenue per representative and returns the
// top N, descending by total. Ties keep the representative's first-appearance
// order. Records without a resolvable rep are skipped; records whose amount
// does not parse are skipped too, never counted as zero.
func TopSalesReps(records []dataset.Record, topN int) []Entry {
	if topN <= 0 {
		topN = DefaultTopN
	}

	totals := make(map[string]float64)
	var order []string

	for _, rec := range records {
		// Canonical keys first, keyword detection second.
		rep := rec[fields.SalesRep]
		if rep == "" {
			rep, _ = fields.FindValueByKeywords(rec, repKeywords)
		}
		if strings.TrimSpace(rep) == "" {
			continue
		}

		amount, ok := rec[fields.DealValue]
		if !ok || amount == "" {
			amount, _ = fields.FindValueByKeywords(rec, amountKeywords)
		}
		parsed, good := coerce.Money(amount)
		if !good {
			continue
		}

		key := strings.TrimSpace(rep)
		if _, seen := totals[key]; !seen {
			order = append(order, key)
		}
		totals[key] += parsed
	}

	// Stable sort keeps first-appearance order for equal totals.
	sort.SliceStable(order, func(i, j int) bool {
		return totals[order[i]] > totals[order[j]]
	})

	if len(order) > topN {
		order = order[:topN]
	}

	ranked := make([]Entry, 0, len(order))
	for _, rep := range order {
		ranked = append(ranked, Entry{SalesRep: rep, TotalRevenue: round2(totals[rep])})
	}
	return ranked
}

// LooksLikeSalesData checks a sample of records for both a representative-like
// and a value-like header so callers can short-circuit with guidance instead
// of ranking clearly unrelated data.
func LooksLikeSalesData(sample []dataset.Record) bool {
	headers := make(map[string]bool)
	for _, rec := range sample {
		for k := range rec {
			headers[k] = true
		}
	}
	columns := make([]string, 0, len(headers))
	for k := range headers {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	hasRep := headers[fields.SalesRep] || fields.MatchesKeywords(columns, repKeywords)
	hasAmount := headers[fields.DealValue] || fields.MatchesKeywords(columns, amountKeywords)
	return hasRep && hasAmount
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
