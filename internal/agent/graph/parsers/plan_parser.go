package parsers

import (
	"github.com/datatalk-core/server/internal/agent/model"
	logx "github.com/datatalk-core/server/pkg/logger"
)

// maxPlanSteps caps how many steps one plan may carry.
const maxPlanSteps = 50

type planStepEnvelope struct {
	StepID       int    `json:"step_id"`
	AgentType    string `json:"agent_type"`
	Description  string `json:"description"`
	Dependencies []int  `json:"dependencies"`
	SQLQuery     string `json:"sql_query"`
}

// ParsePlanResponse parses the planner model's JSON array into an execution
// plan. Unparseable output degrades to the single-step fallback plan; a step
// with an unknown agent type degrades to data retrieval.
func ParsePlanResponse(content string) (plan model.ExecutionPlan) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "plan_parser").Msgf("panic recovered: %v", r)
			plan = model.FallbackPlan()
		}
	}()

	content = stripCodeFence(content)
	if content == "" || len(content) > maxContentLen {
		logx.Warn().Str("component", "plan_parser").Int("len", len(content)).Msg("unusable plan output")
		return model.FallbackPlan()
	}

	var envelopes []planStepEnvelope
	if err := decodeJSON([]byte(content), &envelopes); err != nil {
		logx.Warn().Str("component", "plan_parser").Err(err).Msg("plan output is not valid JSON")
		return model.FallbackPlan()
	}
	if len(envelopes) == 0 {
		return model.FallbackPlan()
	}
	if len(envelopes) > maxPlanSteps {
		logx.Warn().Str("component", "plan_parser").Int("steps", len(envelopes)).Msg("plan step count capped")
		envelopes = envelopes[:maxPlanSteps]
	}

	plan = make(model.ExecutionPlan, 0, len(envelopes))
	for i, env := range envelopes {
		step := &model.ExecutionStep{
			StepID:       env.StepID,
			AgentType:    model.ParseAgentType(env.AgentType),
			Description:  env.Description,
			Dependencies: env.Dependencies,
		}
		if step.StepID == 0 {
			step.StepID = i + 1
		}
		if step.Dependencies == nil {
			step.Dependencies = []int{}
		}
		// A planned query travels on the step until retrieval replaces it
		// with the result set.
		if env.SQLQuery != "" {
			step.Result = env.SQLQuery
		}
		plan = append(plan, step)
	}
	return plan
}
