package executor

import (
	"context"
	"fmt"

	"github.com/datatalk-core/server/internal/agent/model"
	logx "github.com/datatalk-core/server/pkg/logger"
)

// runRetrieval validates and executes the query a planned retrieval step
// carries. The query must pass the gate before the backend sees it; a gate
// rejection or execution error is recorded on the step and the shared error
// list, never raised.
func (e *Executor) runRetrieval(ctx context.Context, s *model.QueryState, step *model.ExecutionStep) {
	query, ok := step.Result.(string)
	if !ok || query == "" {
		fail(s, step, fmt.Sprintf("step %d: retrieval step has no query", step.StepID))
		return
	}

	if err := e.validateQuery(ctx, query); err != nil {
		fail(s, step, fmt.Sprintf("query rejected: %v", err))
		return
	}

	result, err := e.backend.Execute(ctx, query)
	if err != nil {
		fail(s, step, fmt.Sprintf("query failed: %v", err))
		return
	}

	logx.Info().
		Int("step_id", step.StepID).
		Int("rows", result.RowCount).
		Msg("retrieval step completed")

	// Provenance records executed queries only; a rejected or failed query
	// never enters the trail.
	s.AppendGeneratedQuery(query)
	s.AppendQueryResult(result)
	step.Result = result
	step.Completed = true
}
