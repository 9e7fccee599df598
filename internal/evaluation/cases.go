package evaluation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/datatalk-core/server/internal/agent/model"
)

// DefaultCases is the built-in golden set covering every intent category the
// pipeline classifies, phrased against the bundled S&P 500 dataset.
func DefaultCases() []Case {
	return []Case{
		{
			Query:            "What is Apple's market cap?",
			ExpectedIntent:   model.IntentLookup,
			ExpectedEntities: []string{"Symbol", "Market_Cap"},
			Category:         "lookup",
		},
		{
			Query:            "Show me Microsoft's PE ratio",
			ExpectedIntent:   model.IntentLookup,
			ExpectedEntities: []string{"Symbol", "PE_Ratio"},
			Category:         "lookup",
		},
		{
			Query:            "Compare the PE ratios of Apple and Microsoft",
			ExpectedIntent:   model.IntentComparison,
			ExpectedEntities: []string{"Symbol", "PE_Ratio"},
			Category:         "comparison",
		},
		{
			Query:            "What's the average market cap in the technology sector?",
			ExpectedIntent:   model.IntentAggregation,
			ExpectedEntities: []string{"Sector", "Market_Cap"},
			Category:         "aggregation",
		},
		{
			Query:            "How many companies are in the healthcare sector?",
			ExpectedIntent:   model.IntentAggregation,
			ExpectedEntities: []string{"Sector"},
			Category:         "aggregation",
		},
		{
			Query:            "Show me the top 5 companies by market cap",
			ExpectedIntent:   model.IntentRanking,
			ExpectedEntities: []string{"Security", "Market_Cap"},
			Category:         "ranking",
		},
		{
			Query:            "List all companies with market cap over 1 trillion",
			ExpectedIntent:   model.IntentFilter,
			ExpectedEntities: []string{"Security", "Market_Cap"},
			Category:         "filter",
		},
		{
			Query:            "Which tech companies have a PE ratio under 20?",
			ExpectedIntent:   model.IntentFilter,
			ExpectedEntities: []string{"Sector", "PE_Ratio"},
			Category:         "filter",
		},
		{
			Query:            "Is there a correlation between market cap and PE ratio?",
			ExpectedIntent:   model.IntentCorrelation,
			ExpectedEntities: []string{"Market_Cap", "PE_Ratio"},
			Category:         "correlation",
		},
	}
}

// LoadCasesFile reads a golden case set from a YAML file.
func LoadCasesFile(path string) ([]Case, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read evaluation cases: %w", err)
	}
	var cases []Case
	if err := yaml.Unmarshal(raw, &cases); err != nil {
		return nil, fmt.Errorf("parse evaluation cases: %w", err)
	}
	if len(cases) == 0 {
		return nil, fmt.Errorf("evaluation case file %s is empty", path)
	}
	for i, c := range cases {
		if c.Query == "" {
			return nil, fmt.Errorf("evaluation case %d has no query", i+1)
		}
	}
	return cases, nil
}
