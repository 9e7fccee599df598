package model

import (
	"github.com/datatalk-core/server/internal/dataset"
)

// ChartKind names a supported visualization shape.
type ChartKind string

const (
	ChartBar       ChartKind = "bar"
	ChartLine      ChartKind = "line"
	ChartPie       ChartKind = "pie"
	ChartScatter   ChartKind = "scatter"
	ChartHistogram ChartKind = "histogram"
	ChartTable     ChartKind = "table"
)

// ChartDescriptor is the single visualization payload of an invocation.
// Rendering is left to the caller; the descriptor carries everything a chart
// front-end needs.
type ChartDescriptor struct {
	Kind     ChartKind        `json:"kind"`
	Title    string           `json:"title"`
	XColumn  string           `json:"x_column,omitempty"`
	YColumns []string         `json:"y_columns,omitempty"`
	Rows     []map[string]any `json:"rows"`
}

// QueryInput is the public input for processing one user query.
type QueryInput struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
}

// Answer is the response envelope returned to the caller.
type Answer struct {
	Response       string                 `json:"response"`
	Metadata       map[string]any         `json:"metadata"`
	Chart          *ChartDescriptor       `json:"chart,omitempty"`
	QueryResults   []*dataset.QueryResult `json:"query_results"`
	Errors         []string               `json:"errors"`
	DetectedIntent string                 `json:"detected_intent,omitempty"`
}

// BuildAnswer assembles the response envelope from the final state.
func BuildAnswer(s *QueryState) *Answer {
	results := s.QueryResults()

	rows := 0
	for _, r := range results {
		rows += r.RowCount
	}
	metadata := map[string]any{
		"queries_executed":  len(results),
		"rows_processed":    rows,
		"has_visualization": s.Chart() != nil,
	}
	s.SetResponseMetadata(metadata)

	intent := ""
	if s.Intent() != "" {
		intent = s.Intent().String()
	}

	return &Answer{
		Response:       s.FinalResponse(),
		Metadata:       metadata,
		Chart:          s.Chart(),
		QueryResults:   results,
		Errors:         s.Errors(),
		DetectedIntent: intent,
	}
}

// ExecutionReport summarises one executor pass for logging and routing.
type ExecutionReport struct {
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}
