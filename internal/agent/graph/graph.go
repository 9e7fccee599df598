package graph

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	"github.com/datatalk-core/server/internal/agent/executor"
	"github.com/datatalk-core/server/internal/agent/graph/conversations"
	"github.com/datatalk-core/server/internal/agent/graph/nodes"
	"github.com/datatalk-core/server/internal/agent/graph/observers"
	"github.com/datatalk-core/server/internal/agent/model"
	"github.com/datatalk-core/server/internal/dataset"
	logx "github.com/datatalk-core/server/pkg/logger"
)

// Runner is a thin wrapper to execute the compiled graph with the public QueryInput.
type Runner interface {
	Ask(ctx context.Context, in model.QueryInput) (*model.Answer, error)
}

// Config holds everything needed to compose the full pipeline end-to-end.
// This is a convenience layer over GraphConfig that also constructs the
// ChatModels, MessagesManager and Executor.
type Config struct {
	APIKey           string
	BaseURL          string
	IntentModel      model.IntentModelConfig
	PlannerModel     model.PlannerModelConfig
	SynthesisModel   model.SynthesisModelConfig
	Conversation     model.ConversationConfig
	Executor         model.ExecutorConfig
	ConversationRepo model.ConversationRepository
	Backend          executor.Backend
	Table            string
	Description      string
	Meta             *dataset.Metadata
}

// GraphConfig holds all configuration needed to build the graph
type GraphConfig struct {
	ChatModels      *nodes.ChatModels
	MessagesManager *conversations.MessagesManager
	Executor        *executor.Executor
	Table           string
	Description     string
	SchemaDesc      string
}

// GraphBuilder handles the construction of the question answering graph
type GraphBuilder struct {
	config *GraphConfig
	graph  *compose.Graph[model.QueryInput, *model.Answer]
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *model.Answer]
}

func (r *graphRunner) Ask(ctx context.Context, in model.QueryInput) (*model.Answer, error) {
	out, err := r.runnable.Invoke(ctx, model.QueryInput{
		ConversationID: in.ConversationID,
		Query:          in.Query,
	}, compose.WithCallbacks(observers.NewAllCallbacks()))
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BuildPipeline composes the chat models, messages manager and executor,
// builds the graph and returns a Runner.
func BuildPipeline(ctx context.Context, cfg Config) (Runner, error) {
	if cfg.ConversationRepo == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}
	if cfg.Backend == nil {
		return nil, fmt.Errorf("query backend is nil")
	}
	if cfg.Meta == nil {
		return nil, fmt.Errorf("dataset metadata is nil")
	}

	cms, err := nodes.NewChatModels(ctx, nodes.ChatModelConfig{
		APIKey:          cfg.APIKey,
		BaseURL:         cfg.BaseURL,
		IntentConfig:    &cfg.IntentModel,
		PlannerConfig:   &cfg.PlannerModel,
		SynthesisConfig: &cfg.SynthesisModel,
	})
	if err != nil {
		return nil, err
	}

	mm := conversations.NewMessagesManager(cfg.ConversationRepo, cfg.Conversation)

	execCfg := executor.Config{MultiPass: cfg.Executor.MultiPass}
	if cfg.Executor.SkipDiagnostics {
		execCfg.OnSkip = func(stepID int, unmet []int) {
			logx.Warn().Int("step_id", stepID).Ints("unmet_dependencies", unmet).Msg("Step left blocked")
		}
	}

	runnable, err := BuildGraph(ctx, &GraphConfig{
		ChatModels:      cms,
		MessagesManager: mm,
		Executor:        executor.New(cfg.Backend, cfg.Table, execCfg),
		Table:           cfg.Table,
		Description:     cfg.Description,
		SchemaDesc:      cfg.Meta.SchemaDescription(),
	})
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Pipeline graph built successfully")
	return &graphRunner{runnable: runnable}, nil
}

// BuildGraph constructs and returns the compiled pipeline graph
func BuildGraph(ctx context.Context, config *GraphConfig) (compose.Runnable[model.QueryInput, *model.Answer], error) {
	if config == nil {
		return nil, fmt.Errorf("graph config is nil")
	}
	if config.ChatModels == nil || config.ChatModels.Intent == nil || config.ChatModels.Planner == nil || config.ChatModels.Synthesis == nil {
		return nil, fmt.Errorf("chat models are not properly initialized")
	}
	if config.MessagesManager == nil {
		return nil, fmt.Errorf("messages manager is nil")
	}
	if config.Executor == nil {
		return nil, fmt.Errorf("executor is nil")
	}

	builder := &GraphBuilder{
		config: config,
		graph: compose.NewGraph[model.QueryInput, *model.Answer](
			compose.WithGenLocalState(func(ctx context.Context) *model.QueryState {
				return model.NewQueryState()
			}),
		),
	}

	builder.addNodes()
	builder.addEdges()

	if err := builder.addBranches(); err != nil {
		return nil, err
	}

	return builder.compile(ctx)
}

// addNodes adds all processing nodes to the graph
func (b *GraphBuilder) addNodes() {
	b.graph.AddLambdaNode(nodes.NodeIntentContext,
		nodes.NewIntentContextNode(b.config.MessagesManager, b.config.SchemaDesc, b.config.Description),
		compose.WithStatePreHandler(nodes.NewIntentContextPreHandler()),
	)

	b.graph.AddChatModelNode(nodes.NodeIntentChatModel,
		nodes.NewIntentChatModelNode(b.config.ChatModels.Intent),
		compose.WithStatePostHandler(nodes.NewCostPostHandler(nodes.NodeIntentChatModel, b.config.ChatModels.IntentModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeIntentParser,
		nodes.NewIntentParserNode(),
		compose.WithStatePostHandler(nodes.NewIntentParserPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeClarificationPlanner,
		nodes.NewClarificationPlannerNode(),
		compose.WithStatePostHandler(nodes.NewPlanPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodePlanContext,
		nodes.NewPlanContextNode(b.config.SchemaDesc, b.config.Table),
	)

	b.graph.AddChatModelNode(nodes.NodePlannerChatModel,
		nodes.NewPlannerChatModelNode(b.config.ChatModels.Planner),
		compose.WithStatePostHandler(nodes.NewCostPostHandler(nodes.NodePlannerChatModel, b.config.ChatModels.PlannerModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodePlanParser,
		nodes.NewPlanParserNode(),
		compose.WithStatePostHandler(nodes.NewPlanPostHandler()),
	)

	b.graph.AddLambdaNode(nodes.NodeExecutor,
		nodes.NewExecutorNode(b.config.Executor),
	)

	b.graph.AddLambdaNode(nodes.NodeDirectAnswer,
		nodes.NewDirectAnswerNode(b.config.MessagesManager),
	)

	b.graph.AddLambdaNode(nodes.NodeSynthesisContext,
		nodes.NewSynthesisContextNode(b.config.Description),
	)

	b.graph.AddChatModelNode(nodes.NodeSynthesisChatModel,
		nodes.NewSynthesisChatModelNode(b.config.ChatModels.Synthesis),
		compose.WithStatePostHandler(nodes.NewCostPostHandler(nodes.NodeSynthesisChatModel, b.config.ChatModels.SynthesisModelName)),
	)

	b.graph.AddLambdaNode(nodes.NodeAnswerBuilder,
		nodes.NewAnswerBuilderNode(b.config.MessagesManager),
	)
}

// addEdges creates the main flow connections between nodes
func (b *GraphBuilder) addEdges() {
	edges := [][2]string{
		{compose.START, nodes.NodeIntentContext},
		{nodes.NodeIntentContext, nodes.NodeIntentChatModel},
		{nodes.NodeIntentChatModel, nodes.NodeIntentParser},
		{nodes.NodePlanContext, nodes.NodePlannerChatModel},
		{nodes.NodePlannerChatModel, nodes.NodePlanParser},
		{nodes.NodePlanParser, nodes.NodeExecutor},
		{nodes.NodeClarificationPlanner, nodes.NodeExecutor},
		{nodes.NodeSynthesisContext, nodes.NodeSynthesisChatModel},
		{nodes.NodeSynthesisChatModel, nodes.NodeAnswerBuilder},
		{nodes.NodeAnswerBuilder, compose.END},
		{nodes.NodeDirectAnswer, compose.END},
	}

	for _, edge := range edges {
		b.graph.AddEdge(edge[0], edge[1])
	}
}

// addBranches creates conditional routing branches
func (b *GraphBuilder) addBranches() error {
	clarificationBranch := compose.NewGraphBranch(
		nodes.NewClarificationCondition(),
		map[string]bool{
			nodes.NodeClarificationPlanner: true,
			nodes.NodePlanContext:          true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeIntentParser, clarificationBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding clarification branch")
		return fmt.Errorf("error adding clarification branch: %w", err)
	}

	synthesisBranch := compose.NewGraphBranch(
		nodes.NewSynthesisRouteCondition(),
		map[string]bool{
			nodes.NodeDirectAnswer:     true,
			nodes.NodeSynthesisContext: true,
		},
	)
	if err := b.graph.AddBranch(nodes.NodeExecutor, synthesisBranch); err != nil {
		logx.Error().Err(err).Msg("Error adding synthesis branch")
		return fmt.Errorf("error adding synthesis branch: %w", err)
	}

	return nil
}

// compile finalizes and compiles the graph
func (b *GraphBuilder) compile(ctx context.Context) (compose.Runnable[model.QueryInput, *model.Answer], error) {
	runnable, err := b.graph.Compile(ctx, compose.WithMaxRunSteps(20))
	if err != nil {
		logx.Error().Err(err).Msg("Error compiling graph")
		return nil, fmt.Errorf("error compiling graph: %w", err)
	}

	logx.Debug().Msg("Graph compiled successfully")
	return runnable, nil
}
