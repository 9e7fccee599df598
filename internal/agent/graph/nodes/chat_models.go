package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/datatalk-core/server/internal/agent/model"
	logx "github.com/datatalk-core/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey          string
	BaseURL         string
	IntentConfig    *model.IntentModelConfig
	PlannerConfig   *model.PlannerModelConfig
	SynthesisConfig *model.SynthesisModelConfig
}

// ChatModels holds the three pipeline chat models. They share one genai
// client; the stages differ only in model name and sampling settings.
type ChatModels struct {
	Intent             *gemini.ChatModel
	Planner            *gemini.ChatModel
	Synthesis          *gemini.ChatModel
	IntentModelName    string
	PlannerModelName   string
	SynthesisModelName string
}

// NewChatModels creates the intent, planner and synthesis chat models.
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	intentModel, err := newModel(ctx, client, config.IntentConfig.Model, config.IntentConfig.Temperature, config.IntentConfig.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating intent model: %w", err)
	}
	plannerModel, err := newModel(ctx, client, config.PlannerConfig.Model, config.PlannerConfig.Temperature, config.PlannerConfig.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating planner model: %w", err)
	}
	synthesisModel, err := newModel(ctx, client, config.SynthesisConfig.Model, config.SynthesisConfig.Temperature, config.SynthesisConfig.MaxTokens)
	if err != nil {
		return nil, fmt.Errorf("error creating synthesis model: %w", err)
	}

	return &ChatModels{
		Intent:             intentModel,
		Planner:            plannerModel,
		Synthesis:          synthesisModel,
		IntentModelName:    config.IntentConfig.Model,
		PlannerModelName:   config.PlannerConfig.Model,
		SynthesisModelName: config.SynthesisConfig.Model,
	}, nil
}

func newModel(ctx context.Context, client *genai.Client, name string, temperature float32, maxTokens int) (*gemini.ChatModel, error) {
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       name,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: true,
			ThinkingBudget:  genai.Ptr(int32(2000)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Str("model", name).Msg("Error creating chat model")
		return nil, err
	}
	return cm, nil
}

// NewIntentChatModelNode creates a wrapper for the intent chat model to be used as a node
func NewIntentChatModelNode(chatModel *gemini.ChatModel) *gemini.ChatModel {
	return chatModel
}

// NewPlannerChatModelNode creates a wrapper for the planner chat model to be used as a node
func NewPlannerChatModelNode(chatModel *gemini.ChatModel) *gemini.ChatModel {
	return chatModel
}

// NewSynthesisChatModelNode creates a wrapper for the synthesis chat model to be used as a node
func NewSynthesisChatModelNode(chatModel *gemini.ChatModel) *gemini.ChatModel {
	return chatModel
}
