package model

import "strings"

// QueryIntent classifies what the user is asking for.
type QueryIntent string

const (
	IntentLookup        QueryIntent = "lookup"
	IntentComparison    QueryIntent = "comparison"
	IntentAggregation   QueryIntent = "aggregation"
	IntentRanking       QueryIntent = "ranking"
	IntentTrend         QueryIntent = "trend"
	IntentCorrelation   QueryIntent = "correlation"
	IntentFilter        QueryIntent = "filter"
	IntentVisualization QueryIntent = "visualization"
	IntentUnclear       QueryIntent = "unclear"
)

// ParseQueryIntent converts free-text model output into a QueryIntent,
// defaulting to IntentUnclear when the value is unknown.
func ParseQueryIntent(v string) QueryIntent {
	switch QueryIntent(strings.ToLower(strings.TrimSpace(v))) {
	case IntentLookup:
		return IntentLookup
	case IntentComparison:
		return IntentComparison
	case IntentAggregation:
		return IntentAggregation
	case IntentRanking:
		return IntentRanking
	case IntentTrend:
		return IntentTrend
	case IntentCorrelation:
		return IntentCorrelation
	case IntentFilter:
		return IntentFilter
	case IntentVisualization:
		return IntentVisualization
	default:
		return IntentUnclear
	}
}

// String returns the wire form of the intent.
func (i QueryIntent) String() string {
	return string(i)
}

// IntentAnalysis is the structured result of the intent understanding stage.
type IntentAnalysis struct {
	Intent          QueryIntent `json:"intent"`
	Entities        []string    `json:"entities"`
	Ambiguities     []string    `json:"ambiguities"`
	RequiresContext bool        `json:"requires_context"`
}

// NeedsClarification reports whether planning should be skipped in favor of
// asking the user to disambiguate.
func (a IntentAnalysis) NeedsClarification() bool {
	return a.Intent == IntentUnclear || len(a.Ambiguities) > 0
}

// FallbackIntentAnalysis is the defined default when the intent model output
// cannot be parsed.
func FallbackIntentAnalysis() *IntentAnalysis {
	return &IntentAnalysis{
		Intent:      IntentUnclear,
		Entities:    []string{},
		Ambiguities: []string{"Failed to understand query"},
	}
}
