// Package executor runs an execution plan against the shared query state.
//
// The scheduler is single-pass and best-effort: steps are visited once in
// ascending StepID order, a step runs only when every dependency completed
// without error, and steps left blocked by a failed dependency are silently
// skipped rather than cascading errors. No handler failure terminates the
// pass; every handler boundary is a recovery point.
package executor

import (
	"context"
	"fmt"

	"github.com/datatalk-core/server/internal/agent/model"
	"github.com/datatalk-core/server/internal/dataset"
	logx "github.com/datatalk-core/server/pkg/logger"
)

// Backend is the tabular query engine the data retrieval handler calls.
// Execute runs a validated query; Explain is the dry-run used by the
// validation gate; SampleRows exposes raw rows for exploration.
type Backend interface {
	Execute(ctx context.Context, query string) (*dataset.QueryResult, error)
	Explain(ctx context.Context, query string) error
	SampleRows(ctx context.Context, limit int) (*dataset.QueryResult, error)
}

// Config tunes scheduling behavior.
type Config struct {
	// MultiPass repeats the pass until no step makes progress, letting
	// diamond-shaped graphs complete. The default single pass matches the
	// engine's documented best-effort contract: graphs that need a second
	// pass to unblock are under-executed.
	MultiPass bool

	// OnSkip, when set, receives a diagnostic for every step left blocked
	// after the run. It observes only; the state's error list is untouched.
	OnSkip func(stepID int, unmet []int)
}

// Executor dispatches plan steps to the typed handlers.
type Executor struct {
	backend Backend
	table   string
	cfg     Config
}

// New creates an Executor bound to a backend and the single known table name
// enforced by the validation gate.
func New(backend Backend, table string, cfg Config) *Executor {
	return &Executor{backend: backend, table: table, cfg: cfg}
}

// Run executes every ready step of the state's plan exactly once and returns
// a pass summary. Synthesis-typed steps are marked complete without dispatch;
// the synthesis stage runs after the pass, over whatever accumulated.
func (e *Executor) Run(ctx context.Context, s *model.QueryState) *model.ExecutionReport {
	plan := s.Plan()
	order := plan.Sorted()
	report := &model.ExecutionReport{}

	for {
		progressed := false
		for _, step := range order {
			if step.Completed {
				continue
			}
			if step.AgentType == model.AgentSynthesis {
				step.Completed = true
				continue
			}
			if unmet := unmetDependencies(plan, step); len(unmet) > 0 {
				continue
			}

			e.dispatch(ctx, s, step)
			progressed = true
			report.Executed++
			if step.Failed() {
				report.Failed++
			}
		}
		if !e.cfg.MultiPass || !progressed {
			break
		}
	}

	for _, step := range order {
		if step.Completed {
			continue
		}
		report.Skipped++
		if e.cfg.OnSkip != nil {
			e.cfg.OnSkip(step.StepID, unmetDependencies(plan, step))
		}
	}

	logx.Debug().
		Int("executed", report.Executed).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Msg("plan pass finished")

	return report
}

// unmetDependencies returns dependency ids that are missing from the plan,
// not yet completed, or completed with an error.
func unmetDependencies(plan model.ExecutionPlan, step *model.ExecutionStep) []int {
	var unmet []int
	for _, id := range step.Dependencies {
		dep := plan.Step(id)
		if dep == nil || !dep.Completed || dep.Failed() {
			unmet = append(unmet, id)
		}
	}
	return unmet
}

// dispatch routes a ready step to its handler. A panicking handler is
// converted into a step error so the pass continues.
func (e *Executor) dispatch(ctx context.Context, s *model.QueryState, step *model.ExecutionStep) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("step %d panic: %v", step.StepID, r)
			logx.Error().Int("step_id", step.StepID).Msg(msg)
			step.Error = msg
			step.Completed = true
			s.AppendError(msg)
		}
	}()

	logx.Debug().
		Int("step_id", step.StepID).
		Str("agent_type", string(step.AgentType)).
		Str("description", step.Description).
		Msg("dispatching step")

	switch step.AgentType {
	case model.AgentDataRetrieval:
		e.runRetrieval(ctx, s, step)
	case model.AgentAnalysis:
		runAnalysis(s, step)
	case model.AgentVisualization:
		runVisualization(s, step)
	default:
		// Unknown agent types consume the step without work.
		step.Completed = true
	}
}

// fail records a handler failure on both the step and the global error list,
// and marks the step consumed.
func fail(s *model.QueryState, step *model.ExecutionStep, msg string) {
	logx.Warn().Int("step_id", step.StepID).Msg(msg)
	step.Error = msg
	step.Completed = true
	s.AppendError(msg)
}
