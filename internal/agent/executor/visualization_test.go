package executor

import (
	"fmt"
	"testing"

	"github.com/datatalk-core/server/internal/agent/model"
	"github.com/datatalk-core/server/internal/dataset"
)

func TestChartFromDescription(t *testing.T) {
	cases := []struct {
		description string
		want        model.ChartKind
	}{
		{"show a bar chart of sectors", model.ChartBar},
		{"scatter plot of PE vs yield", model.ChartScatter},
		{"histogram of market caps", model.ChartHistogram},
		{"show the distribution of revenue", model.ChartHistogram},
		{"line chart of the trend", model.ChartLine},
		{"pie of sector weights", model.ChartPie},
		{"visualize the data", ""},
	}
	for _, c := range cases {
		if got := chartFromDescription(c.description); got != c.want {
			t.Errorf("chartFromDescription(%q) = %q, want %q", c.description, got, c.want)
		}
	}
}

func TestChartFromShape(t *testing.T) {
	categoricalNumeric := numericResult() // security + market_cap
	if got := chartFromShape(categoricalNumeric); got != model.ChartBar {
		t.Errorf("categorical+numeric should infer bar, got %q", got)
	}

	twoNumeric := &dataset.QueryResult{
		Columns:  []string{"x", "y"},
		Rows:     []map[string]any{{"x": 1.0, "y": 2.0}},
		RowCount: 1,
	}
	if got := chartFromShape(twoNumeric); got != model.ChartScatter {
		t.Errorf("two numeric should infer scatter, got %q", got)
	}

	oneNumeric := &dataset.QueryResult{
		Columns:  []string{"x"},
		Rows:     []map[string]any{{"x": 1.0}},
		RowCount: 1,
	}
	if got := chartFromShape(oneNumeric); got != model.ChartHistogram {
		t.Errorf("single numeric should infer histogram, got %q", got)
	}

	textOnly := &dataset.QueryResult{
		Columns:  []string{"name"},
		Rows:     []map[string]any{{"name": "a"}},
		RowCount: 1,
	}
	if got := chartFromShape(textOnly); got != model.ChartTable {
		t.Errorf("text-only should fall back to table, got %q", got)
	}
}

func TestRunVisualization(t *testing.T) {
	s := analysisState(numericResult())
	step := &model.ExecutionStep{StepID: 3, AgentType: model.AgentVisualization, Description: "chart the companies"}

	runVisualization(s, step)

	if step.Failed() {
		t.Fatalf("unexpected failure: %s", step.Error)
	}
	chart := s.Chart()
	if chart == nil {
		t.Fatal("chart not set on state")
	}
	if chart.Kind != model.ChartBar {
		t.Errorf("expected bar chart, got %q", chart.Kind)
	}
	if chart.XColumn != "security" {
		t.Errorf("x column = %q, want security", chart.XColumn)
	}
	if len(chart.YColumns) != 1 || chart.YColumns[0] != "market_cap" {
		t.Errorf("y columns = %v, want [market_cap]", chart.YColumns)
	}
	if len(chart.Rows) != 3 {
		t.Errorf("chart rows = %d, want 3", len(chart.Rows))
	}
}

func TestRunVisualizationKeywordWins(t *testing.T) {
	s := analysisState(numericResult())
	step := &model.ExecutionStep{StepID: 3, AgentType: model.AgentVisualization, Description: "pie chart of market caps"}

	runVisualization(s, step)

	if got := s.Chart().Kind; got != model.ChartPie {
		t.Errorf("explicit keyword should override shape inference, got %q", got)
	}
}

func TestRunVisualizationUnsupportedKeywordFallsBack(t *testing.T) {
	oneNumeric := &dataset.QueryResult{
		Columns:  []string{"market_cap"},
		Rows:     []map[string]any{{"market_cap": 3000.0}},
		RowCount: 1,
	}
	s := analysisState(oneNumeric)
	step := &model.ExecutionStep{StepID: 3, AgentType: model.AgentVisualization, Description: "scatter plot of market caps"}

	runVisualization(s, step)

	chart := s.Chart()
	if chart.Kind == model.ChartScatter {
		t.Fatalf("scatter needs two numeric columns, got %q", chart.Kind)
	}
	if chart.Kind != model.ChartHistogram {
		t.Errorf("single numeric column should fall back to histogram, got %q", chart.Kind)
	}
	if chart.XColumn == "" {
		t.Error("fallback chart must have populated axes")
	}
}

func TestRunVisualizationTextOnlyKeywordFallsBack(t *testing.T) {
	textOnly := &dataset.QueryResult{
		Columns:  []string{"sector"},
		Rows:     []map[string]any{{"sector": "Tech"}},
		RowCount: 1,
	}
	s := analysisState(textOnly)
	step := &model.ExecutionStep{StepID: 3, AgentType: model.AgentVisualization, Description: "bar chart of sectors"}

	runVisualization(s, step)

	if got := s.Chart().Kind; got != model.ChartTable {
		t.Errorf("bar without a numeric column should fall back to table, got %q", got)
	}
}

func TestRunVisualizationNoData(t *testing.T) {
	s := analysisState(nil)
	step := &model.ExecutionStep{StepID: 3, AgentType: model.AgentVisualization, Description: "chart something"}

	runVisualization(s, step)

	if !step.Failed() {
		t.Fatal("visualization without data must fail")
	}
	if s.Chart() != nil {
		t.Fatal("no chart should be set")
	}
}

func TestRunVisualizationRowCap(t *testing.T) {
	rows := make([]map[string]any, 120)
	for i := range rows {
		rows[i] = map[string]any{"security": fmt.Sprintf("c%d", i), "market_cap": float64(i)}
	}
	r := &dataset.QueryResult{
		Columns:  []string{"security", "market_cap"},
		Rows:     rows,
		RowCount: len(rows),
	}
	s := analysisState(r)
	step := &model.ExecutionStep{StepID: 3, AgentType: model.AgentVisualization, Description: "bar chart"}

	runVisualization(s, step)

	if got := len(s.Chart().Rows); got != chartRowLimit {
		t.Fatalf("chart rows = %d, want %d", got, chartRowLimit)
	}
}
