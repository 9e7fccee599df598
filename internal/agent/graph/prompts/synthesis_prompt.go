package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/datatalk-core/server/internal/dataset"
)

//go:embed template/synthesis_prompt.txt
var synthesisSystemPrompt string

// synthesisPreviewRows limits how many rows of each result the synthesis
// model sees. Enough to answer, small enough to keep the prompt bounded.
const synthesisPreviewRows = 10

// RenderSynthesis renders the answer synthesis prompt from the accumulated
// query results, metrics and insights.
func RenderSynthesis(ctx context.Context, datasetDesc, query string, results []*dataset.QueryResult, metrics map[string]any, insights []string) (string, error) {
	content := strings.NewReplacer(
		"{dataset_description}", datasetDesc,
		"{query}", query,
		"{results}", formatResults(results),
		"{metrics}", formatMetrics(metrics),
		"{insights}", formatInsights(insights),
	).Replace(synthesisSystemPrompt)

	return renderPassthrough(ctx, content)
}

func formatResults(results []*dataset.QueryResult) string {
	if len(results) == 0 {
		return "No query results available."
	}
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "\nQuery %d:\nSQL: %s\n", i+1, r.Query)
		if r.RowCount == 0 {
			b.WriteString("No results returned.\n")
			continue
		}
		fmt.Fprintf(&b, "Results (%d rows):\n", r.RowCount)
		b.WriteString(strings.Join(r.Columns, " | "))
		b.WriteString("\n")
		limit := len(r.Rows)
		if limit > synthesisPreviewRows {
			limit = synthesisPreviewRows
		}
		for _, row := range r.Rows[:limit] {
			cells := make([]string, len(r.Columns))
			for j, col := range r.Columns {
				cells[j] = fmt.Sprint(row[col])
			}
			b.WriteString(strings.Join(cells, " | "))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func formatMetrics(metrics map[string]any) string {
	if len(metrics) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Computed Metrics:\n")
	for _, key := range sortedKeys(metrics) {
		fmt.Fprintf(&b, "%s: %v\n", key, metrics[key])
	}
	return b.String()
}

func formatInsights(insights []string) string {
	if len(insights) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Analysis Insights:\n")
	for _, insight := range insights {
		b.WriteString("- " + insight + "\n")
	}
	return b.String()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
