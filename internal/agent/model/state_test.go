package model

import (
	"sync"
	"testing"

	"github.com/datatalk-core/server/internal/dataset"
)

func TestBeginQueryImmutable(t *testing.T) {
	s := NewQueryState()
	s.Begin("c1", "first question")
	s.Begin("c1", "second question")

	if got := s.Query(); got != "first question" {
		t.Fatalf("query rewritten: got %q", got)
	}
}

func TestAppendOnlyFieldsAccumulate(t *testing.T) {
	s := NewQueryState()

	s.AppendGeneratedQuery("SELECT a FROM t")
	s.AppendGeneratedQuery("SELECT b FROM t")
	if got := s.GeneratedQueries(); len(got) != 2 {
		t.Fatalf("expected 2 generated queries, got %d", len(got))
	}

	s.AppendError("first")
	s.AppendError("second")
	if got := s.Errors(); len(got) != 2 || got[0] != "first" {
		t.Fatalf("errors not accumulated in order: %v", got)
	}

	s.AppendInsight("i1")
	if got := s.Insights(); len(got) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(got))
	}
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := NewQueryState()
	s.AppendError("original")

	errs := s.Errors()
	errs[0] = "mutated"

	if got := s.Errors()[0]; got != "original" {
		t.Fatalf("accessor leaked internal slice: %q", got)
	}
}

func TestMergeMetricsAdditive(t *testing.T) {
	s := NewQueryState()
	s.MergeMetrics(map[string]any{"a": 1.0, "b": 2.0})
	s.MergeMetrics(map[string]any{"b": 3.0, "c": 4.0})

	m := s.Metrics()
	if m["a"] != 1.0 {
		t.Errorf("existing key a lost: %v", m["a"])
	}
	if m["b"] != 3.0 {
		t.Errorf("key b not overwritten: %v", m["b"])
	}
	if m["c"] != 4.0 {
		t.Errorf("new key c missing: %v", m["c"])
	}
}

func TestOverwriteFields(t *testing.T) {
	s := NewQueryState()

	s.SetIntent(IntentLookup)
	s.SetIntent(IntentRanking)
	if got := s.Intent(); got != IntentRanking {
		t.Fatalf("intent not overwritten: %v", got)
	}

	s.SetChart(&ChartDescriptor{Kind: ChartBar})
	s.SetChart(&ChartDescriptor{Kind: ChartScatter})
	if got := s.Chart().Kind; got != ChartScatter {
		t.Fatalf("chart not overwritten: %v", got)
	}
}

func TestPlanStepsShared(t *testing.T) {
	s := NewQueryState()
	plan := ExecutionPlan{
		{StepID: 1, AgentType: AgentDataRetrieval},
	}
	s.SetPlan(plan)

	s.Plan()[0].Completed = true
	if !plan[0].Completed {
		t.Fatal("plan steps should be shared pointers, not copies")
	}
}

func TestLatestQueryResult(t *testing.T) {
	s := NewQueryState()
	if s.LatestQueryResult() != nil {
		t.Fatal("expected nil before any result")
	}

	s.AppendQueryResult(&dataset.QueryResult{Query: "q1", RowCount: 1})
	s.AppendQueryResult(&dataset.QueryResult{Query: "q2", RowCount: 2})

	if got := s.LatestQueryResult().Query; got != "q2" {
		t.Fatalf("expected latest result q2, got %q", got)
	}
}

func TestConcurrentMerges(t *testing.T) {
	s := NewQueryState()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.AppendError("e")
		}()
		go func() {
			defer wg.Done()
			s.MergeMetrics(map[string]any{"k": 1})
			s.AddCost(0.001)
		}()
	}
	wg.Wait()

	if got := len(s.Errors()); got != 20 {
		t.Fatalf("lost appends under concurrency: %d", got)
	}
	if got := s.TotalCostUSD(); got < 0.0199 || got > 0.0201 {
		t.Fatalf("lost cost updates under concurrency: %f", got)
	}
}
