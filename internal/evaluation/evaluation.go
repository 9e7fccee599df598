// Package evaluation measures pipeline quality against a golden query set:
// intent detection accuracy, entity extraction precision/recall/F1, execution
// success rate, and response quality, overall and per category.
package evaluation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/datatalk-core/server/internal/agent/graph"
	"github.com/datatalk-core/server/internal/agent/model"
	logx "github.com/datatalk-core/server/pkg/logger"
)

// Case is one golden query with its expected classification.
type Case struct {
	Query            string            `yaml:"query" json:"query"`
	ExpectedIntent   model.QueryIntent `yaml:"expected_intent" json:"expected_intent"`
	ExpectedEntities []string          `yaml:"expected_entities" json:"expected_entities"`
	Category         string            `yaml:"category" json:"category"`
}

// Result holds the measured outcome of one case.
type Result struct {
	Query    string `json:"query"`
	Category string `json:"category"`

	PredictedIntent model.QueryIntent `json:"predicted_intent"`
	ExpectedIntent  model.QueryIntent `json:"expected_intent"`
	IntentCorrect   bool              `json:"intent_correct"`

	PredictedEntities []string `json:"predicted_entities"`
	EntityPrecision   float64  `json:"entity_precision"`
	EntityRecall      float64  `json:"entity_recall"`
	EntityF1          float64  `json:"entity_f1"`

	ExecutedSuccessfully bool     `json:"executed_successfully"`
	QueriesGenerated     int      `json:"queries_generated"`
	Errors               []string `json:"errors"`

	ResponseLength int  `json:"response_length"`
	HasNumbers     bool `json:"has_numbers"`

	Duration time.Duration `json:"duration_ns"`
}

// Evaluator drives the pipeline over a case set and aggregates the results.
type Evaluator struct {
	runner graph.Runner
	cases  []Case
}

func New(runner graph.Runner, cases []Case) *Evaluator {
	return &Evaluator{runner: runner, cases: cases}
}

// Run evaluates every case against a fresh conversation and returns the
// aggregated report. A failed invocation scores zero for its case rather
// than aborting the run.
func (e *Evaluator) Run(ctx context.Context) *Report {
	started := time.Now()
	results := make([]Result, 0, len(e.cases))

	for i, c := range e.cases {
		logx.Info().Str("query", c.Query).Str("category", c.Category).Msg("evaluating case")

		// one conversation per case so history never leaks between cases
		conversationID := fmt.Sprintf("eval-%d", i+1)
		results = append(results, e.evaluateCase(ctx, conversationID, c))
	}

	return buildReport(results, time.Since(started))
}

func (e *Evaluator) evaluateCase(ctx context.Context, conversationID string, c Case) Result {
	start := time.Now()

	answer, err := e.runner.Ask(ctx, model.QueryInput{
		ConversationID: conversationID,
		Query:          c.Query,
	})
	if err != nil {
		logx.Error().Err(err).Str("query", c.Query).Msg("evaluation case failed to run")
		return Result{
			Query:          c.Query,
			Category:       c.Category,
			ExpectedIntent: c.ExpectedIntent,
			Errors:         []string{err.Error()},
			Duration:       time.Since(start),
		}
	}

	predicted := model.ParseQueryIntent(answer.DetectedIntent)
	entities := entitiesFromAnswer(answer)
	precision, recall, f1 := entityMetrics(entities, c.ExpectedEntities)

	return Result{
		Query:                c.Query,
		Category:             c.Category,
		PredictedIntent:      predicted,
		ExpectedIntent:       c.ExpectedIntent,
		IntentCorrect:        predicted == c.ExpectedIntent,
		PredictedEntities:    entities,
		EntityPrecision:      precision,
		EntityRecall:         recall,
		EntityF1:             f1,
		ExecutedSuccessfully: len(answer.Errors) == 0,
		QueriesGenerated:     len(answer.QueryResults),
		Errors:               answer.Errors,
		ResponseLength:       len(answer.Response),
		HasNumbers:           containsDigit(answer.Response),
		Duration:             time.Since(start),
	}
}

// entitiesFromAnswer approximates the extracted entities with the columns the
// executed queries touched.
func entitiesFromAnswer(answer *model.Answer) []string {
	var entities []string
	seen := make(map[string]bool)
	for _, qr := range answer.QueryResults {
		for _, col := range qr.Columns {
			key := strings.ToLower(col)
			if !seen[key] {
				seen[key] = true
				entities = append(entities, col)
			}
		}
	}
	return entities
}

// entityMetrics computes case-insensitive set precision, recall, and F1.
// An empty expectation scores perfect by definition.
func entityMetrics(predicted, expected []string) (precision, recall, f1 float64) {
	if len(expected) == 0 {
		return 1, 1, 1
	}

	predictedSet := lowerSet(predicted)
	expectedSet := lowerSet(expected)

	truePositives := 0
	for p := range predictedSet {
		if expectedSet[p] {
			truePositives++
		}
	}

	if len(predictedSet) > 0 {
		precision = float64(truePositives) / float64(len(predictedSet))
	}
	recall = float64(truePositives) / float64(len(expectedSet))
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

func lowerSet(vals []string) map[string]bool {
	set := make(map[string]bool, len(vals))
	for _, v := range vals {
		set[strings.ToLower(v)] = true
	}
	return set
}

func containsDigit(s string) bool {
	return strings.ContainsAny(s, "0123456789")
}
