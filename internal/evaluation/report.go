package evaluation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// CategoryMetrics summarises the cases of one category.
type CategoryMetrics struct {
	Count          int     `json:"count"`
	IntentAccuracy float64 `json:"intent_accuracy"`
	SuccessRate    float64 `json:"success_rate"`
}

// Report aggregates an evaluation run.
type Report struct {
	Timestamp    time.Time     `json:"timestamp"`
	TotalQueries int           `json:"total_queries"`
	TotalTime    time.Duration `json:"total_time_ns"`

	IntentAccuracy  float64 `json:"intent_accuracy"`
	EntityPrecision float64 `json:"avg_entity_precision"`
	EntityRecall    float64 `json:"avg_entity_recall"`
	EntityF1        float64 `json:"avg_entity_f1"`

	SuccessRate       float64 `json:"success_rate"`
	AvgQueriesPerCase float64 `json:"avg_queries_per_case"`

	AvgResponseLength     float64 `json:"avg_response_length"`
	NumericalResponseRate float64 `json:"numerical_response_rate"`

	ByCategory map[string]CategoryMetrics `json:"by_category"`
	Results    []Result                   `json:"results"`
}

func buildReport(results []Result, total time.Duration) *Report {
	r := &Report{
		Timestamp:    time.Now().UTC(),
		TotalQueries: len(results),
		TotalTime:    total,
		ByCategory:   make(map[string]CategoryMetrics),
		Results:      results,
	}
	if len(results) == 0 {
		return r
	}

	n := float64(len(results))
	for _, res := range results {
		if res.IntentCorrect {
			r.IntentAccuracy++
		}
		if res.ExecutedSuccessfully {
			r.SuccessRate++
		}
		if res.HasNumbers {
			r.NumericalResponseRate++
		}
		r.EntityPrecision += res.EntityPrecision
		r.EntityRecall += res.EntityRecall
		r.EntityF1 += res.EntityF1
		r.AvgQueriesPerCase += float64(res.QueriesGenerated)
		r.AvgResponseLength += float64(res.ResponseLength)
	}
	r.IntentAccuracy /= n
	r.SuccessRate /= n
	r.NumericalResponseRate /= n
	r.EntityPrecision /= n
	r.EntityRecall /= n
	r.EntityF1 /= n
	r.AvgQueriesPerCase /= n
	r.AvgResponseLength /= n

	for _, res := range results {
		cm := r.ByCategory[res.Category]
		cm.Count++
		if res.IntentCorrect {
			cm.IntentAccuracy++
		}
		if res.ExecutedSuccessfully {
			cm.SuccessRate++
		}
		r.ByCategory[res.Category] = cm
	}
	for cat, cm := range r.ByCategory {
		cm.IntentAccuracy /= float64(cm.Count)
		cm.SuccessRate /= float64(cm.Count)
		r.ByCategory[cat] = cm
	}
	return r
}

// Render formats the report for the console.
func (r *Report) Render() string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintf(&b, "%s\nEVALUATION RESULTS\n%s\n\n", rule, rule)
	fmt.Fprintf(&b, "Overall:\n")
	fmt.Fprintf(&b, "  Total Queries: %d\n", r.TotalQueries)
	fmt.Fprintf(&b, "  Total Time: %.2fs\n", r.TotalTime.Seconds())
	if r.TotalQueries > 0 {
		fmt.Fprintf(&b, "  Avg Time/Query: %.2fs\n", r.TotalTime.Seconds()/float64(r.TotalQueries))
	}
	fmt.Fprintf(&b, "\nIntent Detection:\n")
	fmt.Fprintf(&b, "  Accuracy: %.1f%%\n", r.IntentAccuracy*100)
	fmt.Fprintf(&b, "\nEntity Extraction:\n")
	fmt.Fprintf(&b, "  Precision: %.1f%%\n", r.EntityPrecision*100)
	fmt.Fprintf(&b, "  Recall: %.1f%%\n", r.EntityRecall*100)
	fmt.Fprintf(&b, "  F1 Score: %.1f%%\n", r.EntityF1*100)
	fmt.Fprintf(&b, "\nExecution:\n")
	fmt.Fprintf(&b, "  Success Rate: %.1f%%\n", r.SuccessRate*100)
	fmt.Fprintf(&b, "  Avg Queries/Case: %.1f\n", r.AvgQueriesPerCase)
	fmt.Fprintf(&b, "\nResponse Quality:\n")
	fmt.Fprintf(&b, "  Avg Length: %.0f chars\n", r.AvgResponseLength)
	fmt.Fprintf(&b, "  Numerical Response Rate: %.1f%%\n", r.NumericalResponseRate*100)

	fmt.Fprintf(&b, "\nBy Category:\n")
	categories := make([]string, 0, len(r.ByCategory))
	for cat := range r.ByCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)
	for _, cat := range categories {
		cm := r.ByCategory[cat]
		fmt.Fprintf(&b, "  %s:\n", strings.ToUpper(cat))
		fmt.Fprintf(&b, "    Count: %d\n", cm.Count)
		fmt.Fprintf(&b, "    Intent Accuracy: %.1f%%\n", cm.IntentAccuracy*100)
		fmt.Fprintf(&b, "    Success Rate: %.1f%%\n", cm.SuccessRate*100)
	}
	fmt.Fprintf(&b, "\n%s\n", rule)
	return b.String()
}

// RenderComparison formats the headline metrics against a baseline report.
func (r *Report) RenderComparison(baseline *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Comparison with baseline (%s):\n", baseline.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "  Intent Accuracy: %.1f%% (baseline %.1f%%)\n",
		r.IntentAccuracy*100, baseline.IntentAccuracy*100)
	fmt.Fprintf(&b, "  Success Rate: %.1f%% (baseline %.1f%%)\n",
		r.SuccessRate*100, baseline.SuccessRate*100)
	fmt.Fprintf(&b, "  Entity F1: %.1f%% (baseline %.1f%%)\n",
		r.EntityF1*100, baseline.EntityF1*100)
	return b.String()
}

// WriteFile saves the report as JSON, creating parent directories.
func (r *Report) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// LoadReportFile reads a previously saved report, typically the baseline.
func LoadReportFile(path string) (*Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &r, nil
}
