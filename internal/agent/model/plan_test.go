package model

import "testing"

func TestParseAgentType(t *testing.T) {
	cases := []struct {
		in   string
		want AgentType
	}{
		{"analysis", AgentAnalysis},
		{" Visualization ", AgentVisualization},
		{"SYNTHESIS", AgentSynthesis},
		{"data_retrieval", AgentDataRetrieval},
		{"nonsense", AgentDataRetrieval},
		{"", AgentDataRetrieval},
	}
	for _, c := range cases {
		if got := ParseAgentType(c.in); got != c.want {
			t.Errorf("ParseAgentType(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseQueryIntentFallback(t *testing.T) {
	if got := ParseQueryIntent("Ranking"); got != IntentRanking {
		t.Errorf("expected ranking, got %v", got)
	}
	if got := ParseQueryIntent("made-up"); got != IntentUnclear {
		t.Errorf("unknown intent should fall back to unclear, got %v", got)
	}
}

func TestPlanSortedByStepID(t *testing.T) {
	plan := ExecutionPlan{
		{StepID: 3},
		{StepID: 1},
		{StepID: 2},
	}
	sorted := plan.Sorted()
	for i, want := range []int{1, 2, 3} {
		if sorted[i].StepID != want {
			t.Fatalf("position %d: got step %d, want %d", i, sorted[i].StepID, want)
		}
	}
	// the receiver's order is untouched
	if plan[0].StepID != 3 {
		t.Fatal("Sorted mutated the plan")
	}
}

func TestPlanStepLookup(t *testing.T) {
	plan := ExecutionPlan{{StepID: 7}}
	if plan.Step(7) == nil {
		t.Fatal("existing step not found")
	}
	if plan.Step(9) != nil {
		t.Fatal("missing step should be nil")
	}
}

func TestClarificationPlanShape(t *testing.T) {
	plan := ClarificationPlan([]string{"which year", "which metric"})
	if len(plan) != 1 {
		t.Fatalf("expected single step, got %d", len(plan))
	}
	step := plan[0]
	if step.AgentType != AgentSynthesis {
		t.Errorf("expected synthesis step, got %v", step.AgentType)
	}
	if step.Description != "Request clarification: which year, which metric" {
		t.Errorf("unexpected description: %q", step.Description)
	}
}

func TestNeedsClarification(t *testing.T) {
	clear := IntentAnalysis{Intent: IntentLookup}
	if clear.NeedsClarification() {
		t.Error("clear lookup should not need clarification")
	}
	unclear := IntentAnalysis{Intent: IntentUnclear}
	if !unclear.NeedsClarification() {
		t.Error("unclear intent needs clarification")
	}
	ambiguous := IntentAnalysis{Intent: IntentLookup, Ambiguities: []string{"which one"}}
	if !ambiguous.NeedsClarification() {
		t.Error("ambiguities need clarification regardless of intent")
	}
}
