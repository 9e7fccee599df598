package executor

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/datatalk-core/server/internal/agent/model"
	"github.com/datatalk-core/server/internal/dataset"
)

// analysisKind is the sub-task inferred from a step description.
type analysisKind string

const (
	analysisStatistics  analysisKind = "statistics"
	analysisComparison  analysisKind = "comparison"
	analysisCorrelation analysisKind = "correlation"
	analysisRanking     analysisKind = "ranking"
	analysisGeneral     analysisKind = "general"
)

// classifyAnalysis picks the sub-task by keyword, first match wins.
func classifyAnalysis(description string) analysisKind {
	d := strings.ToLower(description)
	switch {
	case containsAny(d, "statistic", "mean", "average", "summary", "describe"):
		return analysisStatistics
	case containsAny(d, "compar", "versus", " vs "):
		return analysisComparison
	case containsAny(d, "correlat", "relationship"):
		return analysisCorrelation
	case containsAny(d, "rank", "top ", "bottom ", "highest", "lowest"):
		return analysisRanking
	default:
		return analysisGeneral
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// runAnalysis derives metrics and insight strings from the most recent query
// result. It never queries the backend itself; retrieval steps feed it.
func runAnalysis(s *model.QueryState, step *model.ExecutionStep) {
	result := s.LatestQueryResult()
	if result == nil || result.RowCount == 0 {
		fail(s, step, fmt.Sprintf("step %d: no data available for analysis", step.StepID))
		return
	}

	kind := classifyAnalysis(step.Description)
	metrics := map[string]any{}
	var insights []string

	switch kind {
	case analysisStatistics:
		insights = describeNumeric(result, metrics)
	case analysisComparison:
		insights = compareGroups(result, metrics)
	case analysisCorrelation:
		insights = correlate(result, metrics)
	case analysisRanking:
		insights = rank(result, metrics)
	default:
		metrics["row_count"] = result.RowCount
		insights = []string{fmt.Sprintf("Result set contains %d rows across %d columns.", result.RowCount, len(result.Columns))}
	}

	s.MergeMetrics(metrics)
	for _, insight := range insights {
		s.AppendInsight(insight)
	}

	step.Result = map[string]any{"kind": string(kind), "insights": insights}
	step.Completed = true
}

// describeNumeric summarizes every numeric column.
func describeNumeric(r *dataset.QueryResult, metrics map[string]any) []string {
	cols := r.NumericColumns()
	if len(cols) == 0 {
		return []string{"No numeric columns to summarize."}
	}
	var insights []string
	for _, col := range cols {
		values := r.NumericColumn(col)
		if len(values) == 0 {
			continue
		}
		mean, std := meanStd(values)
		lo, hi := minMax(values)
		metrics[col+"_mean"] = mean
		metrics[col+"_std"] = std
		metrics[col+"_min"] = lo
		metrics[col+"_max"] = hi
		insights = append(insights, fmt.Sprintf(
			"%s: mean %.2f, std %.2f, range %.2f to %.2f over %d values.",
			col, mean, std, lo, hi, len(values)))
	}
	return insights
}

// compareGroups groups the first numeric column by the first categorical
// column and reports the extremes of the group means.
func compareGroups(r *dataset.QueryResult, metrics map[string]any) []string {
	cats := r.CategoricalColumns()
	nums := r.NumericColumns()
	if len(cats) == 0 || len(nums) == 0 {
		return describeNumeric(r, metrics)
	}
	catCol, numCol := cats[0], nums[0]

	sums := map[string]float64{}
	counts := map[string]int{}
	for _, row := range r.Rows {
		key, ok := row[catCol].(string)
		if !ok {
			continue
		}
		v, ok := dataset.AsFloat(row[numCol])
		if !ok {
			continue
		}
		sums[key] += v
		counts[key]++
	}
	if len(counts) == 0 {
		return []string{fmt.Sprintf("No comparable groups in %s.", catCol)}
	}

	type group struct {
		name string
		mean float64
	}
	groups := make([]group, 0, len(counts))
	for name, n := range counts {
		groups = append(groups, group{name, sums[name] / float64(n)})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].mean > groups[j].mean })

	top, bottom := groups[0], groups[len(groups)-1]
	metrics["comparison_groups"] = len(groups)
	metrics["comparison_top_"+numCol] = top.mean
	return []string{
		fmt.Sprintf("Across %d %s groups, %s has the highest average %s (%.2f) and %s the lowest (%.2f).",
			len(groups), catCol, top.name, numCol, top.mean, bottom.name, bottom.mean),
	}
}

// correlate computes Pearson coefficients for every numeric column pair and
// reports the strongest relationships, up to five.
func correlate(r *dataset.QueryResult, metrics map[string]any) []string {
	nums := r.NumericColumns()
	if len(nums) < 2 {
		return []string{"Correlation needs at least two numeric columns."}
	}

	type pair struct {
		a, b string
		r    float64
	}
	var pairs []pair
	for i := 0; i < len(nums); i++ {
		for j := i + 1; j < len(nums); j++ {
			xs, ys := pairedColumns(r, nums[i], nums[j])
			if len(xs) < 3 {
				continue
			}
			if coeff, ok := pearson(xs, ys); ok {
				pairs = append(pairs, pair{nums[i], nums[j], coeff})
			}
		}
	}
	if len(pairs) == 0 {
		return []string{"Not enough paired numeric data to correlate."}
	}

	sort.Slice(pairs, func(i, j int) bool { return math.Abs(pairs[i].r) > math.Abs(pairs[j].r) })
	if len(pairs) > 5 {
		pairs = pairs[:5]
	}

	var insights []string
	for _, p := range pairs {
		metrics[fmt.Sprintf("corr_%s_%s", p.a, p.b)] = p.r
		insights = append(insights, fmt.Sprintf(
			"%s and %s have a %s correlation (r=%.3f).", p.a, p.b, strength(p.r), p.r))
	}
	return insights
}

// rank orders rows by the first numeric column descending and reports the
// leaders.
func rank(r *dataset.QueryResult, metrics map[string]any) []string {
	nums := r.NumericColumns()
	if len(nums) == 0 {
		return []string{"No numeric column to rank by."}
	}
	numCol := nums[0]

	label := ""
	if cats := r.CategoricalColumns(); len(cats) > 0 {
		label = cats[0]
	}

	type entry struct {
		label string
		value float64
	}
	var entries []entry
	for _, row := range r.Rows {
		v, ok := dataset.AsFloat(row[numCol])
		if !ok {
			continue
		}
		name := fmt.Sprintf("row %d", len(entries)+1)
		if label != "" {
			if s, ok := row[label].(string); ok {
				name = s
			}
		}
		entries = append(entries, entry{name, v})
	}
	if len(entries) == 0 {
		return []string{fmt.Sprintf("No values to rank in %s.", numCol)}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].value > entries[j].value })

	limit := 5
	if len(entries) < limit {
		limit = len(entries)
	}
	parts := make([]string, 0, limit)
	for _, e := range entries[:limit] {
		parts = append(parts, fmt.Sprintf("%s (%.2f)", e.label, e.value))
	}
	metrics["ranked_by"] = numCol
	return []string{fmt.Sprintf("Top %d by %s: %s.", limit, numCol, strings.Join(parts, ", "))}
}

// pairedColumns extracts rows where both columns hold numeric values.
func pairedColumns(r *dataset.QueryResult, a, b string) (xs, ys []float64) {
	for _, row := range r.Rows {
		x, okX := dataset.AsFloat(row[a])
		y, okY := dataset.AsFloat(row[b])
		if okX && okY {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	return xs, ys
}

// pearson returns the sample correlation coefficient. ok is false when
// either series has zero variance.
func pearson(xs, ys []float64) (float64, bool) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range xs {
		dx, dy := xs[i]-meanX, ys[i]-meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varX*varY), true
}

func strength(r float64) string {
	switch abs := math.Abs(r); {
	case abs >= 0.7:
		return "strong"
	case abs >= 0.4:
		return "moderate"
	default:
		return "weak"
	}
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	for _, v := range values {
		mean += v
	}
	mean /= n
	for _, v := range values {
		std += (v - mean) * (v - mean)
	}
	if len(values) > 1 {
		std = math.Sqrt(std / (n - 1))
	} else {
		std = 0
	}
	return mean, std
}

func minMax(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
