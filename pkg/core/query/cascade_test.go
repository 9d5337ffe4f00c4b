package query

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"cubitai/pkg/core/dataset"
)

// fakeCompleter records calls and replies (or fails) on demand.
type fakeCompleter struct {
	calls    int
	failures int // fail this many calls before succeeding
	reply    string
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", fmt.Errorf("connection reset")
	}
	return f.reply, nil
}

func salesDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Columns: []string{"rep", "Amount", "Stage", "close_date", "product"},
		Records: []dataset.Record{
			{"rep": "Alice", "Amount": "$100", "Stage": "Closed Won", "close_date": "2023-01-15", "product": "Widget Pro"},
			{"rep": "Bob", "Amount": "200.5", "Stage": "Closed Lost", "close_date": "2022-11-02", "product": "Gadget"},
			{"rep": "Alice", "Amount": "N/A", "Stage": "Negotiation", "close_date": "2023-06-30", "product": "Widget Mini"},
			{"rep": "Cara", "Amount": "50", "Stage": "Closed Won", "close_date": "garbage", "product": ""},
		},
	}
}

func newTestEngine() *Engine {
	e := NewEngine(&fakeCompleter{reply: "ai says hi"})
	e.Now = func() time.Time { return time.Date(2023, time.June, 15, 12, 0, 0, 0, time.UTC) }
	return e
}

func answerOrFail(t *testing.T, e *Engine, question string, ds *dataset.Dataset) string {
	t.Helper()
	answer, err := e.Answer(context.Background(), question, ds)
	if err != nil {
		t.Fatalf("Answer(%q) returned error: %v", question, err)
	}
	return answer
}

func TestContainsCountRule(t *testing.T) {
	e := newTestEngine()
	answer := answerOrFail(t, e, "How many rows in product contain 'widget'?", salesDataset())

	want := LogicPrefix + "2 rows in 'product' contain 'widget'."
	if answer != want {
		t.Errorf("Expected %q, got %q", want, answer)
	}
}

func TestUniqueListingRule(t *testing.T) {
	e := newTestEngine()
	answer := answerOrFail(t, e, "list all unique stage values", salesDataset())

	// Distinct non-missing values in first-seen order.
	want := LogicPrefix + "Unique values in 'Stage': Closed Won, Closed Lost, Negotiation (Total 3)"
	if answer != want {
		t.Errorf("Expected %q, got %q", want, answer)
	}
}

func TestUniqueListingOmitsMissing(t *testing.T) {
	ds := &dataset.Dataset{
		Columns: []string{"region"},
		Records: []dataset.Record{
			{"region": "East"}, {"region": ""}, {"region": "West"}, {"region": "East"},
		},
	}
	e := newTestEngine()
	answer := answerOrFail(t, e, "list all unique region values", ds)

	want := LogicPrefix + "Unique values in 'region': East, West (Total 2)"
	if answer != want {
		t.Errorf("Expected %q, got %q", want, answer)
	}
}

func TestSumRuleIgnoresUnparseable(t *testing.T) {
	e := newTestEngine()
	answer := answerOrFail(t, e, "what is the total amount?", salesDataset())

	// 100 + 200.5 + 50; the N/A row is excluded, not zeroed or fatal.
	want := LogicPrefix + "Total of 'Amount': 350.5"
	if answer != want {
		t.Errorf("Expected %q, got %q", want, answer)
	}
}

func TestAverageRule(t *testing.T) {
	e := newTestEngine()
	answer := answerOrFail(t, e, "what is the average amount?", salesDataset())

	// (100 + 200.5 + 50) / 3 = 116.83333...
	if !strings.HasPrefix(answer, LogicPrefix+"Average of 'Amount': 116.8333") {
		t.Errorf("Unexpected average answer: %q", answer)
	}
}

func TestAverageRuleNoNumericValues(t *testing.T) {
	ds := &dataset.Dataset{
		Columns: []string{"notes"},
		Records: []dataset.Record{{"notes": "call back"}, {"notes": "sent quote"}},
	}
	e := newTestEngine()
	answer := answerOrFail(t, e, "average notes?", ds)

	want := LogicPrefix + "No numeric values found in 'notes' to average."
	if answer != want {
		t.Errorf("Expected the defined zero-coercible outcome, got %q", answer)
	}
}

func TestYearCountRule(t *testing.T) {
	e := newTestEngine()
	answer := answerOrFail(t, e, "how many deals closed in 2023?", salesDataset())

	// close_date is the first column with parseable dates; 2 rows are 2023.
	want := LogicPrefix + "2 rows in year 2023."
	if answer != want {
		t.Errorf("Expected %q, got %q", want, answer)
	}
}

func TestSummaryRule(t *testing.T) {
	e := newTestEngine()
	answer := answerOrFail(t, e, "give me a summary", salesDataset())

	if !strings.HasPrefix(answer, LogicPrefix+"Summary of 4 records across 5 columns.") {
		t.Errorf("Unexpected summary answer: %q", answer)
	}
	if !strings.Contains(answer, "Stage — count: 4, unique: 3") {
		t.Errorf("Summary missing Stage stats: %q", answer)
	}
	// Only 3 of 4 non-missing Amount values coerce, which is under the 80%
	// numeric threshold, so Amount is described categorically.
	if !strings.Contains(answer, "Amount — count: 4, unique: 4") {
		t.Errorf("Summary missing Amount stats: %q", answer)
	}
}

func TestPipelineRule(t *testing.T) {
	e := newTestEngine()
	answer := answerOrFail(t, e, "how big is our pipeline?", salesDataset())

	want := LogicPrefix + "Total pipeline value ('Amount'): 350.5"
	if answer != want {
		t.Errorf("Expected %q, got %q", want, answer)
	}
}

func TestByStageRule(t *testing.T) {
	e := newTestEngine()
	answer := answerOrFail(t, e, "show deal value by stage", salesDataset())

	// Closed Won: 100 + 50 = 150, Closed Lost: 200.5, Negotiation: 0
	want := LogicPrefix + "Deal value by stage: Closed Lost: 200.5, Closed Won: 150, Negotiation: 0"
	if answer != want {
		t.Errorf("Expected %q, got %q", want, answer)
	}
}

func TestClosingThisMonthRule(t *testing.T) {
	e := newTestEngine() // clock pinned to June 2023
	answer := answerOrFail(t, e, "how many deals are closing this month?", salesDataset())

	// Only the 2023-06-30 row; the garbage date row is silently excluded.
	want := LogicPrefix + "1 deals are closing this month (June 2023)."
	if answer != want {
		t.Errorf("Expected %q, got %q", want, answer)
	}
}

func TestCloseRateRule(t *testing.T) {
	ds := &dataset.Dataset{
		Columns: []string{"Stage"},
		Records: []dataset.Record{
			{"Stage": "Closed Won"}, {"Stage": "Closed Won"}, {"Stage": "won"},
			{"Stage": "Closed Lost"},
			{"Stage": "Negotiation"}, {"Stage": "Prospecting"}, {"Stage": "Demo"},
			{"Stage": "Qualified"}, {"Stage": "Proposal"}, {"Stage": "Discovery"},
		},
	}
	e := newTestEngine()
	answer := answerOrFail(t, e, "what is our close rate?", ds)

	// 3 won, 1 lost, 6 open: 3/4 = 75.00%
	want := LogicPrefix + "Close rate: 75.00% (3 won / 4 closed deals)"
	if answer != want {
		t.Errorf("Expected %q, got %q", want, answer)
	}
}

func TestCloseRateNoClosedDeals(t *testing.T) {
	ds := &dataset.Dataset{
		Columns: []string{"Stage"},
		Records: []dataset.Record{{"Stage": "Negotiation"}, {"Stage": "Demo"}},
	}
	e := newTestEngine()
	answer := answerOrFail(t, e, "what is our win rate?", ds)

	want := LogicPrefix + "No closed deals found, so a close rate cannot be computed yet."
	if answer != want {
		t.Errorf("Expected the no-closed-deals outcome, got %q", answer)
	}
}

func TestCloseRateMissingStageColumn(t *testing.T) {
	ds := &dataset.Dataset{
		Columns: []string{"rep", "Amount"},
		Records: []dataset.Record{{"rep": "Alice", "Amount": "100"}},
	}
	e := newTestEngine()
	answer := answerOrFail(t, e, "what is our close rate?", ds)

	// Guidance naming the needed field, not an AI fallback.
	if !strings.Contains(answer, "Deal Stage") {
		t.Errorf("Expected guidance naming the missing Deal Stage column, got %q", answer)
	}
	if strings.HasPrefix(answer, AIPrefix) {
		t.Errorf("Close rate without a stage column must not fall through to AI: %q", answer)
	}
}

func TestCascadePrecedenceFirstMatchWins(t *testing.T) {
	// Matches both contains-count (rule 1) and summary (rule 6);
	// the earlier rule must win.
	e := newTestEngine()
	answer := answerOrFail(t, e, "summary: how many rows in product contain 'widget'?", salesDataset())

	if !strings.Contains(answer, "rows in 'product' contain") {
		t.Errorf("Expected contains-count to fire before summary, got %q", answer)
	}
}

func TestEvalRuleRecoversPanic(t *testing.T) {
	r := rule{name: "exploding", run: func(in *Input) (string, bool, error) {
		panic("stage totals corrupted")
	}}

	_, fired, err := evalRule(r, &Input{})
	if err == nil {
		t.Fatal("Expected a recovered panic to come back as an error")
	}
	if fired {
		t.Error("A faulting rule must not report as fired")
	}
	if !strings.Contains(err.Error(), "exploding") || !strings.Contains(err.Error(), "stage totals corrupted") {
		t.Errorf("Error should name the rule and the fault, got %q", err)
	}
}

func TestFaultingRuleYieldsWarningAnswer(t *testing.T) {
	// A rule that matches but faults mid-evaluation must degrade to a
	// warning answer on a normal response, never a raw fault or an error.
	saved := cascade
	defer func() { cascade = saved }()
	cascade = append([]rule{{
		name: "bad_totals",
		run: func(in *Input) (string, bool, error) {
			var rows []int
			_ = rows[3] // out of range
			return "", true, nil
		},
	}}, saved...)

	e := newTestEngine()
	answer, err := e.Answer(context.Background(), "show deal value by stage", salesDataset())
	if err != nil {
		t.Fatalf("A rule fault must not surface as an engine error, got %v", err)
	}
	if !strings.HasPrefix(answer, WarnPrefix) {
		t.Errorf("Expected a %q answer, got %q", WarnPrefix, answer)
	}
	if e.Fallback.(*fakeCompleter).calls != 0 {
		t.Error("A faulting rule must not fall through to the AI fallback")
	}
}

func TestCascadeIdempotent(t *testing.T) {
	e := newTestEngine()
	ds := salesDataset()

	first := answerOrFail(t, e, "show deal value by stage", ds)
	second := answerOrFail(t, e, "show deal value by stage", ds)
	if first != second {
		t.Errorf("Deterministic answers must be byte-identical:\n%q\n%q", first, second)
	}
}

func TestFallbackCarriesAIMarker(t *testing.T) {
	fake := &fakeCompleter{reply: "The capital of France is Paris."}
	e := NewEngine(fake)
	answer, err := e.Answer(context.Background(), "what is the capital of France?", salesDataset())
	if err != nil {
		t.Fatalf("Answer returned error: %v", err)
	}

	want := AIPrefix + "The capital of France is Paris."
	if answer != want {
		t.Errorf("Expected %q, got %q", want, answer)
	}
	if fake.calls != 1 {
		t.Errorf("Expected exactly 1 fallback call, got %d", fake.calls)
	}
}

func TestFallbackRetriesOnceOnTransportFailure(t *testing.T) {
	fake := &fakeCompleter{reply: "recovered", failures: 1}
	e := NewEngine(fake)
	answer, err := e.Answer(context.Background(), "tell me something interesting", salesDataset())
	if err != nil {
		t.Fatalf("Expected retry to recover, got error: %v", err)
	}
	if answer != AIPrefix+"recovered" {
		t.Errorf("Unexpected answer after retry: %q", answer)
	}
	if fake.calls != 2 {
		t.Errorf("Expected 2 calls (original + one retry), got %d", fake.calls)
	}
}

func TestFallbackUnavailableSurfacesError(t *testing.T) {
	fake := &fakeCompleter{failures: 10}
	e := NewEngine(fake)
	_, err := e.Answer(context.Background(), "tell me something interesting", salesDataset())
	if err == nil {
		t.Fatal("Expected an error when the fallback stays down")
	}
	if fake.calls != 2 {
		t.Errorf("Expected exactly 2 attempts, got %d", fake.calls)
	}
}

func TestFallbackDoesNotRetryProviderStatusError(t *testing.T) {
	// A non-2xx provider response fails identically on a second attempt,
	// so the single retry is reserved for transport failures.
	calls := 0
	e := NewEngine(completerFunc(func(ctx context.Context, system, user string) (string, error) {
		calls++
		return "", fmt.Errorf("OPENAI_API_ERROR: status=429 body=quota exceeded")
	}))

	_, err := e.Answer(context.Background(), "tell me something interesting", salesDataset())
	if err == nil {
		t.Fatal("Expected the provider status error to surface")
	}
	if calls != 1 {
		t.Errorf("Provider status errors must not be retried: got %d calls", calls)
	}
}

func TestFallbackContextIsBounded(t *testing.T) {
	// 600 records: only the first 500 may appear in the prompt.
	ds := &dataset.Dataset{Columns: []string{"id"}}
	for i := 0; i < 600; i++ {
		ds.Records = append(ds.Records, dataset.Record{"id": fmt.Sprintf("row-%04d", i)})
	}

	var captured string
	e := NewEngine(completerFunc(func(ctx context.Context, system, user string) (string, error) {
		captured = user
		return "ok", nil
	}))

	answerOrFail(t, e, "anything unusual here?", ds)

	if !strings.Contains(captured, "row-0499") {
		t.Error("Expected record 499 in the fallback context")
	}
	if strings.Contains(captured, "row-0500") {
		t.Error("Record 500 must be cut off by the context bound")
	}
	if !strings.Contains(captured, "anything unusual here?") {
		t.Error("Expected the verbatim question in the fallback prompt")
	}
}

type completerFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}
