package evaluation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/datatalk-core/server/internal/agent/model"
	"github.com/datatalk-core/server/internal/dataset"
)

type fakeRunner struct {
	answers       map[string]*model.Answer
	err           error
	conversations []string
}

func (f *fakeRunner) Ask(ctx context.Context, in model.QueryInput) (*model.Answer, error) {
	f.conversations = append(f.conversations, in.ConversationID)
	if f.err != nil {
		return nil, f.err
	}
	return f.answers[in.Query], nil
}

func almost(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestEntityMetrics(t *testing.T) {
	cases := []struct {
		name                  string
		predicted, expected   []string
		precision, recall, f1 float64
	}{
		{"exact", []string{"Symbol", "Market_Cap"}, []string{"symbol", "market_cap"}, 1, 1, 1},
		{"partial", []string{"Symbol", "Sector"}, []string{"Symbol", "Market_Cap"}, 0.5, 0.5, 0.5},
		{"nothing predicted", nil, []string{"Symbol"}, 0, 0, 0},
		{"nothing expected", []string{"Symbol"}, nil, 1, 1, 1},
	}
	for _, c := range cases {
		p, r, f1 := entityMetrics(c.predicted, c.expected)
		if !almost(p, c.precision) || !almost(r, c.recall) || !almost(f1, c.f1) {
			t.Errorf("%s: got %v/%v/%v, want %v/%v/%v", c.name, p, r, f1, c.precision, c.recall, c.f1)
		}
	}
}

func TestRunComputesReport(t *testing.T) {
	runner := &fakeRunner{answers: map[string]*model.Answer{
		"q1": {
			Response:       "Apple's market cap is 3000",
			DetectedIntent: "lookup",
			QueryResults: []*dataset.QueryResult{
				{Columns: []string{"Symbol", "Market_Cap"}, RowCount: 1},
			},
		},
		"q2": {
			Response:       "something went wrong",
			DetectedIntent: "lookup",
			Errors:         []string{"query failed"},
		},
	}}

	ev := New(runner, []Case{
		{Query: "q1", ExpectedIntent: model.IntentLookup, ExpectedEntities: []string{"Symbol", "Market_Cap"}, Category: "lookup"},
		{Query: "q2", ExpectedIntent: model.IntentRanking, ExpectedEntities: []string{"Market_Cap"}, Category: "ranking"},
	})
	report := ev.Run(context.Background())

	if report.TotalQueries != 2 {
		t.Fatalf("total = %d", report.TotalQueries)
	}
	if !almost(report.IntentAccuracy, 0.5) {
		t.Errorf("intent accuracy = %v, want 0.5", report.IntentAccuracy)
	}
	if !almost(report.SuccessRate, 0.5) {
		t.Errorf("success rate = %v, want 0.5", report.SuccessRate)
	}
	if !almost(report.NumericalResponseRate, 0.5) {
		t.Errorf("numerical response rate = %v", report.NumericalResponseRate)
	}
	if !almost(report.AvgQueriesPerCase, 0.5) {
		t.Errorf("avg queries = %v", report.AvgQueriesPerCase)
	}

	lookup := report.ByCategory["lookup"]
	if lookup.Count != 1 || !almost(lookup.IntentAccuracy, 1) || !almost(lookup.SuccessRate, 1) {
		t.Errorf("lookup category = %+v", lookup)
	}
	ranking := report.ByCategory["ranking"]
	if ranking.Count != 1 || !almost(ranking.IntentAccuracy, 0) || !almost(ranking.SuccessRate, 0) {
		t.Errorf("ranking category = %+v", ranking)
	}

	if report.Results[0].EntityF1 != 1 {
		t.Errorf("q1 entity f1 = %v", report.Results[0].EntityF1)
	}
}

func TestRunUsesFreshConversationPerCase(t *testing.T) {
	runner := &fakeRunner{answers: map[string]*model.Answer{
		"a": {DetectedIntent: "lookup"},
		"b": {DetectedIntent: "lookup"},
	}}
	ev := New(runner, []Case{
		{Query: "a", ExpectedIntent: model.IntentLookup},
		{Query: "b", ExpectedIntent: model.IntentLookup},
	})
	ev.Run(context.Background())

	if len(runner.conversations) != 2 || runner.conversations[0] == runner.conversations[1] {
		t.Fatalf("each case must run in its own conversation: %v", runner.conversations)
	}
}

func TestRunSurvivesRunnerError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("model unreachable")}
	ev := New(runner, []Case{
		{Query: "q", ExpectedIntent: model.IntentLookup, ExpectedEntities: []string{"Symbol"}, Category: "lookup"},
	})
	report := ev.Run(context.Background())

	if report.TotalQueries != 1 {
		t.Fatalf("failed case must still be reported: %+v", report)
	}
	res := report.Results[0]
	if res.IntentCorrect || res.ExecutedSuccessfully || res.EntityF1 != 0 {
		t.Errorf("failed case must score zero: %+v", res)
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "model unreachable") {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestDefaultCasesCoverCategories(t *testing.T) {
	cases := DefaultCases()
	if len(cases) == 0 {
		t.Fatal("no default cases")
	}
	seen := make(map[model.QueryIntent]bool)
	for _, c := range cases {
		if c.Query == "" || c.Category == "" {
			t.Errorf("incomplete case: %+v", c)
		}
		seen[c.ExpectedIntent] = true
	}
	for _, intent := range []model.QueryIntent{
		model.IntentLookup, model.IntentComparison, model.IntentAggregation,
		model.IntentRanking, model.IntentFilter, model.IntentCorrelation,
	} {
		if !seen[intent] {
			t.Errorf("default set misses intent %q", intent)
		}
	}
}

func TestLoadCasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.yaml")
	content := `- query: "What is Apple's market cap?"
  expected_intent: lookup
  expected_entities: [Symbol, Market_Cap]
  category: lookup
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cases, err := LoadCasesFile(path)
	if err != nil {
		t.Fatalf("LoadCasesFile: %v", err)
	}
	if len(cases) != 1 || cases[0].ExpectedIntent != model.IntentLookup || len(cases[0].ExpectedEntities) != 2 {
		t.Fatalf("cases = %+v", cases)
	}
}

func TestLoadCasesFileRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCasesFile(empty); err == nil {
		t.Error("empty case set should error")
	}

	noQuery := filepath.Join(dir, "noquery.yaml")
	if err := os.WriteFile(noQuery, []byte("- category: lookup\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCasesFile(noQuery); err == nil {
		t.Error("case without query should error")
	}

	if _, err := LoadCasesFile(filepath.Join(dir, "absent.yaml")); err == nil {
		t.Error("missing file should error")
	}
}

func TestReportRoundTripAndRender(t *testing.T) {
	runner := &fakeRunner{answers: map[string]*model.Answer{
		"q": {Response: "42", DetectedIntent: "lookup"},
	}}
	ev := New(runner, []Case{{Query: "q", ExpectedIntent: model.IntentLookup, Category: "lookup"}})
	report := ev.Run(context.Background())

	path := filepath.Join(t.TempDir(), "out", "eval_results.json")
	if err := report.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	loaded, err := LoadReportFile(path)
	if err != nil {
		t.Fatalf("LoadReportFile: %v", err)
	}
	if loaded.TotalQueries != 1 || !almost(loaded.IntentAccuracy, 1) {
		t.Fatalf("round trip lost data: %+v", loaded)
	}

	out := report.Render()
	for _, want := range []string{"EVALUATION RESULTS", "Intent Detection", "Success Rate", "LOOKUP"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q", want)
		}
	}
	cmp := report.RenderComparison(loaded)
	if !strings.Contains(cmp, "baseline") {
		t.Errorf("comparison output: %q", cmp)
	}
}
