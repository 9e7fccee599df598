package executor

import (
	"fmt"
	"strings"

	"github.com/datatalk-core/server/internal/agent/model"
	"github.com/datatalk-core/server/internal/dataset"
)

// chartRowLimit caps how many rows a chart descriptor carries.
const chartRowLimit = 50

// runVisualization builds a chart descriptor from the most recent query
// result. The chart kind comes from the step description when it names one,
// otherwise from the shape of the result's columns.
func runVisualization(s *model.QueryState, step *model.ExecutionStep) {
	result := s.LatestQueryResult()
	if result == nil || result.RowCount == 0 {
		fail(s, step, fmt.Sprintf("step %d: no data available for visualization", step.StepID))
		return
	}

	kind := chartFromDescription(step.Description)
	if kind == "" || !chartSupported(kind, result) {
		kind = chartFromShape(result)
	}

	chart := buildChart(kind, result, step.Description)
	s.SetChart(chart)

	step.Result = map[string]any{"chart_kind": string(kind)}
	step.Completed = true
}

// chartFromDescription returns a chart kind the description explicitly asks
// for, or empty.
func chartFromDescription(description string) model.ChartKind {
	d := strings.ToLower(description)
	switch {
	case containsAny(d, "bar"):
		return model.ChartBar
	case containsAny(d, "scatter"):
		return model.ChartScatter
	case containsAny(d, "histogram", "distribution"):
		return model.ChartHistogram
	case containsAny(d, "line", "trend", "over time"):
		return model.ChartLine
	case containsAny(d, "pie"):
		return model.ChartPie
	}
	return ""
}

// chartSupported reports whether the result has the columns the kind's axes
// need. A requested kind the data cannot populate falls back to shape
// inference rather than producing a descriptor with empty axes.
func chartSupported(kind model.ChartKind, r *dataset.QueryResult) bool {
	nums := r.NumericColumns()
	switch kind {
	case model.ChartBar, model.ChartPie, model.ChartLine:
		return len(nums) >= 1
	case model.ChartScatter:
		return len(nums) >= 2
	case model.ChartHistogram:
		return len(nums) >= 1
	}
	return true
}

// chartFromShape infers a chart kind from the column mix: a categorical and
// a numeric column make a bar chart, two or more numerics a scatter plot,
// a single numeric a histogram, anything else a plain table.
func chartFromShape(r *dataset.QueryResult) model.ChartKind {
	nums := r.NumericColumns()
	cats := r.CategoricalColumns()
	switch {
	case len(cats) > 0 && len(nums) > 0:
		return model.ChartBar
	case len(nums) >= 2:
		return model.ChartScatter
	case len(nums) == 1:
		return model.ChartHistogram
	default:
		return model.ChartTable
	}
}

// buildChart assembles the descriptor, picking axis columns to match the
// chosen kind and truncating rows to the chart limit.
func buildChart(kind model.ChartKind, r *dataset.QueryResult, title string) *model.ChartDescriptor {
	chart := &model.ChartDescriptor{Kind: kind, Title: strings.TrimSpace(title)}
	nums := r.NumericColumns()
	cats := r.CategoricalColumns()

	switch kind {
	case model.ChartBar, model.ChartPie, model.ChartLine:
		if len(cats) > 0 {
			chart.XColumn = cats[0]
		} else if len(r.Columns) > 0 {
			chart.XColumn = r.Columns[0]
		}
		if len(nums) > 0 {
			chart.YColumns = nums[:1]
		}
	case model.ChartScatter:
		if len(nums) >= 2 {
			chart.XColumn = nums[0]
			chart.YColumns = nums[1:2]
		}
	case model.ChartHistogram:
		if len(nums) > 0 {
			chart.XColumn = nums[0]
		}
	default:
		// Table charts carry the full column list through the rows.
	}

	limit := len(r.Rows)
	if limit > chartRowLimit {
		limit = chartRowLimit
	}
	chart.Rows = make([]map[string]any, limit)
	copy(chart.Rows, r.Rows[:limit])
	return chart
}
