package query

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"cubitai/pkg/core/coerce"
	"cubitai/pkg/core/dataset"
	"cubitai/pkg/core/fields"
)

// Engine evaluates the rule cascade and delegates to the generative fallback
// when no rule fires. All evaluation is pure and request-scoped; the only
// blocking call is the fallback itself.
type Engine struct {
	Fallback Completer
	Now      func() time.Time // defaults to time.Now
}

// NewEngine creates an engine with a wall-clock Now.
func NewEngine(fallback Completer) *Engine {
	return &Engine{Fallback: fallback, Now: time.Now}
}

// rule pairs a predicate+handler. run returns (answer, fired, err):
// fired=false means the predicate did not match and the next rule is tried;
// err means the rule matched but evaluation faulted.
type rule struct {
	name string
	run  func(in *Input) (string, bool, error)
}

// cascade is the fixed rule order. First match wins; nothing runs after a
// rule has produced an answer.
var cascade = []rule{
	{"contains_count", ruleContainsCount},
	{"unique_listing", ruleUniqueListing},
	{"sum_total", ruleSumTotal},
	{"average", ruleAverage},
	{"year_count", ruleYearCount},
	{"dataset_summary", ruleDatasetSummary},
	{"pipeline_total", rulePipelineTotal},
	{"by_stage", ruleByStage},
	{"closing_this_month", ruleClosingThisMonth},
	{"close_rate", ruleCloseRate},
}

// Answer runs the cascade over the question and dataset. It always returns a
// usable answer string for deterministic outcomes; the error return is
// reserved for the fallback service being unavailable, which callers surface
// distinctly from deterministic failures.
func (e *Engine) Answer(ctx context.Context, question string, ds *dataset.Dataset) (string, error) {
	now := time.Now()
	if e.Now != nil {
		now = e.Now()
	}

	in := &Input{
		Question: strings.ToLower(question),
		Raw:      question,
		Data:     ds,
		Resolved: fields.ResolveAll(ds.Columns),
		Now:      now,
	}

	for _, r := range cascade {
		answer, fired, err := evalRule(r, in)
		if err != nil {
			// A faulting rule still yields a structured answer, never a
			// raw fault escaping the request.
			log.Printf("[Query] rule %s failed: %v", r.name, err)
			return fmt.Sprintf("%sCould not compute an answer for this question (%v). Try rephrasing it.", WarnPrefix, err), nil
		}
		if fired {
			return answer, nil
		}
	}

	return e.invokeFallback(ctx, in)
}

// evalRule isolates one rule so an unexpected fault inside it is recovered
// and reported as that rule's error.
func evalRule(r rule, in *Input) (answer string, fired bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("rule %s panicked: %v", r.name, rec)
		}
	}()
	return r.run(in)
}

// mentionedColumn returns the first dataset column, in original order, whose
// lowercase name appears in the question text.
func mentionedColumn(in *Input) (string, bool) {
	for _, col := range in.Data.Columns {
		lc := strings.ToLower(strings.TrimSpace(col))
		if lc != "" && strings.Contains(in.Question, lc) {
			return col, true
		}
	}
	return "", false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ---------------------------------------------------------------------------
// Rule 1: contains-count
// "how many <rows in> <column> contain '<keyword>'"
// ---------------------------------------------------------------------------

func ruleContainsCount(in *Input) (string, bool, error) {
	q := in.Question
	if !strings.Contains(q, "how many") || !strings.Contains(q, "contain") {
		return "", false, nil
	}
	col, ok := mentionedColumn(in)
	if !ok {
		return "", false, nil
	}

	// Keyword = text after the LAST "contain", stripped of quotes,
	// whitespace and trailing punctuation.
	idx := strings.LastIndex(q, "contain")
	kw := strings.Trim(q[idx+len("contain"):], " '\"?.")
	kw = strings.TrimPrefix(kw, "s ") // tolerate "contains"
	kw = strings.Trim(kw, " '\"?.")

	count := 0
	for _, rec := range in.Data.Records {
		if strings.Contains(strings.ToLower(rec[col]), kw) {
			count++
		}
	}
	return fmt.Sprintf("%s%d rows in '%s' contain '%s'.", LogicPrefix, count, col, kw), true, nil
}

// ---------------------------------------------------------------------------
// Rule 2: unique-listing
// "list all unique <column>"
// ---------------------------------------------------------------------------

func ruleUniqueListing(in *Input) (string, bool, error) {
	if !strings.Contains(in.Question, "list all unique") {
		return "", false, nil
	}
	col, ok := mentionedColumn(in)
	if !ok {
		return "", false, nil
	}

	seen := make(map[string]bool)
	var uniq []string
	for _, rec := range in.Data.Records {
		v := rec[col]
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		uniq = append(uniq, v)
	}
	return fmt.Sprintf("%sUnique values in '%s': %s (Total %d)",
		LogicPrefix, col, strings.Join(uniq, ", "), len(uniq)), true, nil
}

// ---------------------------------------------------------------------------
// Rule 3: sum/total of a column
// ---------------------------------------------------------------------------

func ruleSumTotal(in *Input) (string, bool, error) {
	if !strings.Contains(in.Question, "total") && !strings.Contains(in.Question, "sum") {
		return "", false, nil
	}
	col, ok := mentionedColumn(in)
	if !ok {
		return "", false, nil
	}
	sum, _ := coerce.SumColumn(in.Data.ColumnValues(col))
	return fmt.Sprintf("%sTotal of '%s': %s", LogicPrefix, col, formatFloat(sum)), true, nil
}

// ---------------------------------------------------------------------------
// Rule 4: average of a column
// ---------------------------------------------------------------------------

func ruleAverage(in *Input) (string, bool, error) {
	if !strings.Contains(in.Question, "average") {
		return "", false, nil
	}
	col, ok := mentionedColumn(in)
	if !ok {
		return "", false, nil
	}
	avg, ok := coerce.AvgColumn(in.Data.ColumnValues(col))
	if !ok {
		// Zero coercible values: a defined outcome, not a silent NaN.
		return fmt.Sprintf("%sNo numeric values found in '%s' to average.", LogicPrefix, col), true, nil
	}
	return fmt.Sprintf("%sAverage of '%s': %s", LogicPrefix, col, formatFloat(avg)), true, nil
}

// ---------------------------------------------------------------------------
// Rule 5: year-count
// "how many ... 2023": counts rows in the first date-like column whose
// parsed year matches. Stops at that column.
// ---------------------------------------------------------------------------

var supportedYears = []int{2021, 2022, 2023, 2024, 2025}

func ruleYearCount(in *Input) (string, bool, error) {
	if !strings.Contains(in.Question, "how many") {
		return "", false, nil
	}
	year := 0
	for _, y := range supportedYears {
		if strings.Contains(in.Question, strconv.Itoa(y)) {
			year = y
			break
		}
	}
	if year == 0 {
		return "", false, nil
	}

	for _, col := range in.Data.Columns {
		parsed, n := coerce.DateColumn(in.Data.ColumnValues(col))
		if n == 0 {
			continue
		}
		count := 0
		for _, t := range parsed {
			if t.Year() == year {
				count++
			}
		}
		return fmt.Sprintf("%s%d rows in year %d.", LogicPrefix, count, year), true, nil
	}
	return "", false, nil
}

// ---------------------------------------------------------------------------
// Rule 6: dataset summary ("describe")
// ---------------------------------------------------------------------------

func ruleDatasetSummary(in *Input) (string, bool, error) {
	if !strings.Contains(in.Question, "summary") {
		return "", false, nil
	}
	return LogicPrefix + Describe(in.Data), true, nil
}

// ---------------------------------------------------------------------------
// Rule 7: pipeline/forecast total over the resolved deal-value column
// ---------------------------------------------------------------------------

func rulePipelineTotal(in *Input) (string, bool, error) {
	if !strings.Contains(in.Question, "pipeline") && !strings.Contains(in.Question, "forecast") {
		return "", false, nil
	}
	col, ok := in.Resolved[fields.DealValue]
	if !ok {
		return "", false, nil
	}
	sum, _ := coerce.SumColumn(in.Data.ColumnValues(col))
	return fmt.Sprintf("%sTotal pipeline value ('%s'): %s", LogicPrefix, col, formatFloat(sum)), true, nil
}

// ---------------------------------------------------------------------------
// Rule 8: deal value grouped by stage, descending by total
// ---------------------------------------------------------------------------

func ruleByStage(in *Input) (string, bool, error) {
	if !strings.Contains(in.Question, "by stage") && !strings.Contains(in.Question, "per stage") {
		return "", false, nil
	}
	valueCol, ok1 := in.Resolved[fields.DealValue]
	stageCol, ok2 := in.Resolved[fields.DealStage]
	if !ok1 || !ok2 {
		return "", false, nil
	}

	totals := make(map[string]float64)
	var order []string
	for _, rec := range in.Data.Records {
		stage := strings.TrimSpace(rec[stageCol])
		if stage == "" {
			stage = "(blank)"
		}
		if _, seen := totals[stage]; !seen {
			order = append(order, stage)
		}
		if v, good := coerce.Money(rec[valueCol]); good {
			totals[stage] += v
		}
	}

	// Descending by total; first-seen order breaks ties.
	sort.SliceStable(order, func(i, j int) bool {
		return totals[order[i]] > totals[order[j]]
	})

	parts := make([]string, 0, len(order))
	for _, stage := range order {
		parts = append(parts, fmt.Sprintf("%s: %s", stage, formatFloat(totals[stage])))
	}
	return fmt.Sprintf("%sDeal value by stage: %s", LogicPrefix, strings.Join(parts, ", ")), true, nil
}

// ---------------------------------------------------------------------------
// Rule 9: deals closing in the current calendar month
// ---------------------------------------------------------------------------

func ruleClosingThisMonth(in *Input) (string, bool, error) {
	q := in.Question
	if !strings.Contains(q, "this month") {
		return "", false, nil
	}
	if !strings.Contains(q, "closing") && !strings.Contains(q, "close") {
		return "", false, nil
	}
	col, ok := in.Resolved[fields.CloseDate]
	if !ok {
		return "", false, nil
	}

	count := 0
	for _, rec := range in.Data.Records {
		if t, good := coerce.Date(rec[col]); good {
			if t.Year() == in.Now.Year() && t.Month() == in.Now.Month() {
				count++
			}
		}
	}
	return fmt.Sprintf("%s%d deals are closing this month (%s %d).",
		LogicPrefix, count, in.Now.Month(), in.Now.Year()), true, nil
}

// ---------------------------------------------------------------------------
// Rule 10: close/win rate from the resolved deal-stage column
// ---------------------------------------------------------------------------

func ruleCloseRate(in *Input) (string, bool, error) {
	q := in.Question
	if !strings.Contains(q, "close rate") && !strings.Contains(q, "win rate") && !strings.Contains(q, "conversion rate") {
		return "", false, nil
	}

	stageCol, ok := in.Resolved[fields.DealStage]
	if !ok {
		// Guidance rather than falling through to AI: the question is
		// answerable in principle, the dataset just lacks the column.
		label := fields.Lookup(fields.DealStage).Label
		return fmt.Sprintf("%sI couldn't find a '%s' column (e.g. stage, status) in your data, which is needed to compute a close rate.",
			LogicPrefix, label), true, nil
	}

	won, lost := 0, 0
	for _, rec := range in.Data.Records {
		stage := strings.ToLower(rec[stageCol])
		switch {
		case strings.Contains(stage, "won"):
			won++
		case strings.Contains(stage, "lost"):
			lost++
		}
	}

	closed := won + lost
	if closed == 0 {
		return LogicPrefix + "No closed deals found, so a close rate cannot be computed yet.", true, nil
	}
	rate := float64(won) / float64(closed) * 100
	return fmt.Sprintf("%sClose rate: %.2f%% (%d won / %d closed deals)",
		LogicPrefix, rate, won, closed), true, nil
}
