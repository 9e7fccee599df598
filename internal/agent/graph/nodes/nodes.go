package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/datatalk-core/server/internal/agent/executor"
	"github.com/datatalk-core/server/internal/agent/graph/conversations"
	"github.com/datatalk-core/server/internal/agent/graph/parsers"
	"github.com/datatalk-core/server/internal/agent/graph/prompts"
	"github.com/datatalk-core/server/internal/agent/model"
	logx "github.com/datatalk-core/server/pkg/logger"
)

// NewIntentContextPreHandler seeds the state with the invocation inputs.
func NewIntentContextPreHandler() func(context.Context, model.QueryInput, *model.QueryState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.QueryState) (model.QueryInput, error) {
		s.Begin(in.ConversationID, in.Query)
		return in, nil
	}
}

// NewIntentContextNode creates the IntentContext node: it records the user
// turn, loads recent history and renders the intent analysis prompt.
func NewIntentContextNode(
	mm *conversations.MessagesManager,
	schemaDesc string,
	datasetDesc string,
) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input model.QueryInput) ([]*schema.Message, error) {
		conversationCtx, err := mm.ProcessUserMessage(ctx, input.ConversationID, input.Query)
		if err != nil {
			return nil, fmt.Errorf("error getting conversation context: %w", err)
		}

		turns, err := mm.LoadTurns(ctx, input.ConversationID)
		if err != nil {
			return nil, fmt.Errorf("load conversation history: %w", err)
		}
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.QueryState) error {
			s.AppendHistory(turns...)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		systemPrompt, err := prompts.RenderIntent(ctx, schemaDesc, datasetDesc, conversationCtx, input.Query)
		if err != nil {
			return nil, fmt.Errorf("render intent prompt: %w", err)
		}

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(input.Query),
		}, nil
	})
}

// NewCostPostHandler computes and logs usage cost for a chat model node and
// accumulates the total on the state.
func NewCostPostHandler(nodeName, modelName string) func(context.Context, *schema.Message, *model.QueryState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, state *model.QueryState) (*schema.Message, error) {
		if out == nil || out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
			return out, nil
		}
		pricing := model.ResolvePricing(modelName)
		inC, outC, totalC := model.ComputeCost(out.ResponseMeta.Usage, pricing)
		if out.Extra == nil {
			out.Extra = map[string]any{}
		}
		out.Extra["usage_cost"] = map[string]any{
			"currency":          "USD",
			"model":             modelName,
			"prompt_tokens":     out.ResponseMeta.Usage.PromptTokens,
			"completion_tokens": out.ResponseMeta.Usage.CompletionTokens,
			"total_tokens":      out.ResponseMeta.Usage.TotalTokens,
			"input_cost":        inC,
			"output_cost":       outC,
			"total_cost":        totalC,
		}
		logx.Debug().
			Str("conversation_id", state.ConversationID()).
			Str("node", nodeName).
			Str("model", modelName).
			Int("prompt_tokens", out.ResponseMeta.Usage.PromptTokens).
			Int("completion_tokens", out.ResponseMeta.Usage.CompletionTokens).
			Int("total_tokens", out.ResponseMeta.Usage.TotalTokens).
			Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC).
			Msg("LLM usage")

		state.AddCost(totalC)
		out.Extra["usage_cost_total_usd"] = state.TotalCostUSD()
		return out, nil
	}
}

// NewIntentParserNode creates the IntentParser node. Parsing degrades to the
// unclear fallback, it never errors the graph.
func NewIntentParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (*model.IntentAnalysis, error) {
		return parsers.ParseIntentResponse(resp.Content), nil
	})
}

// NewIntentParserPostHandler stores the intent analysis on the state.
func NewIntentParserPostHandler() func(context.Context, *model.IntentAnalysis, *model.QueryState) (*model.IntentAnalysis, error) {
	return func(ctx context.Context, out *model.IntentAnalysis, state *model.QueryState) (*model.IntentAnalysis, error) {
		state.SetIntent(out.Intent)
		state.SetEntities(out.Entities)
		state.SetAmbiguities(out.Ambiguities)

		logx.Debug().
			Str("conversation_id", state.ConversationID()).
			Str("intent", out.Intent.String()).
			Strs("entities", out.Entities).
			Strs("ambiguities", out.Ambiguities).
			Msg("Intent detected")
		return out, nil
	}
}

// NewClarificationCondition routes unclear or ambiguous queries straight to
// the clarification planner, skipping the planner model entirely.
func NewClarificationCondition() func(context.Context, *model.IntentAnalysis) (string, error) {
	return func(ctx context.Context, input *model.IntentAnalysis) (string, error) {
		if input.NeedsClarification() {
			logx.Debug().Str("intent", input.Intent.String()).Msg("Routing to clarification planner")
			return NodeClarificationPlanner, nil
		}
		return NodePlanContext, nil
	}
}

// NewClarificationPlannerNode builds the deterministic single-step
// clarification plan.
func NewClarificationPlannerNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, input *model.IntentAnalysis) (model.ExecutionPlan, error) {
		return model.ClarificationPlan(input.Ambiguities), nil
	})
}

// NewPlanContextNode creates the PlanContext node rendering the planning
// prompt for a classified query.
func NewPlanContextNode(schemaDesc, table string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, analysis *model.IntentAnalysis) ([]*schema.Message, error) {
		var query string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.QueryState) error {
			query = s.Query()
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		systemPrompt, err := prompts.RenderPlan(ctx, schemaDesc, table, query, analysis)
		if err != nil {
			return nil, fmt.Errorf("render plan prompt: %w", err)
		}

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(query),
		}, nil
	})
}

// NewPlanParserNode creates the PlanParser node. Unparseable planner output
// degrades to the fallback plan.
func NewPlanParserNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, resp *schema.Message) (model.ExecutionPlan, error) {
		return parsers.ParsePlanResponse(resp.Content), nil
	})
}

// NewPlanPostHandler stores the plan on the state. Shared by the parser and
// the clarification planner node.
func NewPlanPostHandler() func(context.Context, model.ExecutionPlan, *model.QueryState) (model.ExecutionPlan, error) {
	return func(ctx context.Context, out model.ExecutionPlan, state *model.QueryState) (model.ExecutionPlan, error) {
		state.SetPlan(out)
		logx.Debug().
			Str("conversation_id", state.ConversationID()).
			Int("steps", len(out)).
			Msg("Execution plan ready")
		for _, step := range out.Sorted() {
			logx.Debug().
				Int("step_id", step.StepID).
				Str("agent_type", string(step.AgentType)).
				Ints("dependencies", step.Dependencies).
				Msg(step.Description)
		}
		return out, nil
	}
}

// NewExecutorNode runs the plan against the shared state and reports the
// pass summary.
func NewExecutorNode(exec *executor.Executor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ model.ExecutionPlan) (*model.ExecutionReport, error) {
		var report *model.ExecutionReport
		if err := compose.ProcessState(ctx, func(sctx context.Context, s *model.QueryState) error {
			report = exec.Run(sctx, s)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}
		return report, nil
	})
}

// NewSynthesisRouteCondition decides the terminal stage: ambiguities produce
// a clarification request, errors without any retrieved data a generic
// failure message, everything else goes through the synthesis model.
func NewSynthesisRouteCondition() func(context.Context, *model.ExecutionReport) (string, error) {
	return func(ctx context.Context, _ *model.ExecutionReport) (string, error) {
		var direct bool
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.QueryState) error {
			direct = len(s.Ambiguities()) > 0 || (len(s.Errors()) > 0 && len(s.QueryResults()) == 0)
			return nil
		}); err != nil {
			return "", fmt.Errorf("failed to access state: %w", err)
		}
		if direct {
			logx.Debug().Msg("Routing to direct answer")
			return NodeDirectAnswer, nil
		}
		return NodeSynthesisContext, nil
	}
}

// NewDirectAnswerNode builds the deterministic terminal responses that never
// touch the synthesis model.
func NewDirectAnswerNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *model.ExecutionReport) (*model.Answer, error) {
		var answer *model.Answer
		var conversationID string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.QueryState) error {
			if ambiguities := s.Ambiguities(); len(ambiguities) > 0 {
				s.SetFinalResponse(clarificationText(ambiguities))
			} else {
				s.SetFinalResponse(failureText())
			}
			answer = model.BuildAnswer(s)
			conversationID = s.ConversationID()
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if err := mm.SaveResponse(ctx, conversationID, answer.Response); err != nil {
			logx.Error().Str("conversation_id", conversationID).Err(err).Msg("Error saving direct answer")
		}
		return answer, nil
	})
}

// NewSynthesisContextNode renders the synthesis prompt from everything the
// pass accumulated.
func NewSynthesisContextNode(datasetDesc string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, _ *model.ExecutionReport) ([]*schema.Message, error) {
		var query, systemPrompt string
		if err := compose.ProcessState(ctx, func(sctx context.Context, s *model.QueryState) error {
			query = s.Query()
			var err error
			systemPrompt, err = prompts.RenderSynthesis(sctx, datasetDesc, query, s.QueryResults(), s.Metrics(), s.Insights())
			return err
		}); err != nil {
			return nil, fmt.Errorf("render synthesis prompt: %w", err)
		}

		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(query),
		}, nil
	})
}

// NewAnswerBuilderNode assembles the final answer envelope from the
// synthesis model output and persists the assistant turn.
func NewAnswerBuilderNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *schema.Message) (*model.Answer, error) {
		var answer *model.Answer
		var conversationID string
		if err := compose.ProcessState(ctx, func(_ context.Context, s *model.QueryState) error {
			response := strings.TrimSpace(out.Content)
			if response == "" {
				response = failureText()
			}
			s.SetFinalResponse(response)
			answer = model.BuildAnswer(s)
			conversationID = s.ConversationID()
			return nil
		}); err != nil {
			return nil, fmt.Errorf("failed to access state: %w", err)
		}

		if err := mm.SaveResponse(ctx, conversationID, answer.Response); err != nil {
			logx.Error().Str("conversation_id", conversationID).Err(err).Msg("Error saving assistant response")
		} else {
			logx.Debug().Str("conversation_id", conversationID).Msg("Assistant response saved")
		}
		return answer, nil
	})
}

// clarificationText renders the numbered clarification request.
func clarificationText(ambiguities []string) string {
	var b strings.Builder
	b.WriteString("I need some clarification to answer your question accurately:\n\n")
	for i, ambiguity := range ambiguities {
		fmt.Fprintf(&b, "%d. %s\n", i+1, ambiguity)
	}
	b.WriteString("\nCould you provide more details?")
	return b.String()
}

// failureText is the generic response when execution produced errors and no
// data to answer from.
func failureText() string {
	return "I encountered some difficulties processing your request. " +
		"This might be because:\n" +
		"- The information requested isn't available in the dataset\n" +
		"- The query was too complex or ambiguous\n" +
		"- There was a technical issue\n\n" +
		"Could you try rephrasing your question or being more specific?"
}
