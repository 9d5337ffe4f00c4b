package query

import (
	"fmt"
	"sort"
	"strings"

	"cubitai/pkg/core/coerce"
	"cubitai/pkg/core/dataset"
)

// Describe produces per-column descriptive statistics over a mixed-type
// table, one line per column in the dataset's column order:
//   - numeric columns: count, mean, min, 25%/50%/75% quartiles, max
//   - everything else: count, unique
//
// A column counts as numeric when at least 80% of its non-missing values
// coerce to a number.
func Describe(ds *dataset.Dataset) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Summary of %d records across %d columns.", len(ds.Records), len(ds.Columns))

	for _, col := range ds.Columns {
		values := ds.ColumnValues(col)

		nonMissing := 0
		for _, v := range values {
			if strings.TrimSpace(v) != "" {
				nonMissing++
			}
		}

		parsed, numericCount := coerce.NumericColumn(values)
		if nonMissing > 0 && float64(numericCount) >= 0.8*float64(nonMissing) && numericCount > 0 {
			sort.Float64s(parsed)
			mean := 0.0
			for _, v := range parsed {
				mean += v
			}
			mean /= float64(numericCount)
			fmt.Fprintf(&sb, "\n%s — count: %d, mean: %s, min: %s, 25%%: %s, 50%%: %s, 75%%: %s, max: %s",
				col, numericCount,
				formatFloat(round2(mean)),
				formatFloat(parsed[0]),
				formatFloat(round2(percentile(parsed, 0.25))),
				formatFloat(round2(percentile(parsed, 0.50))),
				formatFloat(round2(percentile(parsed, 0.75))),
				formatFloat(parsed[numericCount-1]))
			continue
		}

		uniq := make(map[string]bool)
		for _, v := range values {
			if strings.TrimSpace(v) != "" {
				uniq[v] = true
			}
		}
		fmt.Fprintf(&sb, "\n%s — count: %d, unique: %d", col, nonMissing, len(uniq))
	}
	return sb.String()
}

// percentile computes the p-quantile of sorted values using linear
// interpolation between closest ranks.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := p * float64(n-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
