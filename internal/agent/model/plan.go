package model

import (
	"sort"
	"strings"
)

// AgentType identifies which step handler executes a plan step.
type AgentType string

const (
	AgentDataRetrieval AgentType = "data_retrieval"
	AgentAnalysis      AgentType = "analysis"
	AgentVisualization AgentType = "visualization"
	AgentSynthesis     AgentType = "synthesis"
)

// ParseAgentType converts free-text model output into an AgentType,
// defaulting to AgentDataRetrieval when the value is unknown.
func ParseAgentType(v string) AgentType {
	switch AgentType(strings.ToLower(strings.TrimSpace(v))) {
	case AgentAnalysis:
		return AgentAnalysis
	case AgentVisualization:
		return AgentVisualization
	case AgentSynthesis:
		return AgentSynthesis
	default:
		return AgentDataRetrieval
	}
}

// ExecutionStep is one node of the execution plan.
//
// For data retrieval steps Result initially holds the query string produced
// by the planner; after execution it holds the retrieval result. Completed is
// set exactly once, on success or failure; a completed step is never retried.
type ExecutionStep struct {
	StepID       int
	AgentType    AgentType
	Description  string
	Dependencies []int
	Completed    bool
	Result       any
	Error        string
}

// Failed reports whether the step completed with an error.
func (s *ExecutionStep) Failed() bool {
	return s.Error != ""
}

// ExecutionPlan is an ordered sequence of steps. Slice order is advisory;
// dependency edges are authoritative for execution order, with StepID as the
// scheduling tie-break.
type ExecutionPlan []*ExecutionStep

// Sorted returns the plan's steps in ascending StepID order.
func (p ExecutionPlan) Sorted() []*ExecutionStep {
	out := make([]*ExecutionStep, len(p))
	copy(out, p)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StepID < out[j].StepID
	})
	return out
}

// Step returns the step with the given id, nil when absent.
func (p ExecutionPlan) Step(id int) *ExecutionStep {
	for _, s := range p {
		if s.StepID == id {
			return s
		}
	}
	return nil
}

// ClarificationPlan builds the single-step plan produced when the detected
// intent is unclear or ambiguities remain: synthesis asks the user to
// disambiguate instead of touching the dataset.
func ClarificationPlan(ambiguities []string) ExecutionPlan {
	return ExecutionPlan{
		{
			StepID:      1,
			AgentType:   AgentSynthesis,
			Description: "Request clarification: " + strings.Join(ambiguities, ", "),
		},
	}
}

// FallbackPlan is the defined default when the planner model output cannot be
// parsed: a single synthesis step producing a basic response.
func FallbackPlan() ExecutionPlan {
	return ExecutionPlan{
		{
			StepID:      1,
			AgentType:   AgentSynthesis,
			Description: "Provide basic response",
		},
	}
}
