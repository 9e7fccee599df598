package model

// ================ Config ================

type ConversationConfig struct {
	TTL          string `envconfig:"CONVERSATION_TTL" default:"15m"`
	MaxTurns     int    `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
	ContextTurns int    `envconfig:"CONVERSATION_CONTEXT_TURNS" default:"5"`
}

type IntentModelConfig struct {
	Model       string  `envconfig:"INTENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"INTENT_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"INTENT_TEMPERATURE" default:"0.0"`
}

type PlannerModelConfig struct {
	Model       string  `envconfig:"PLANNER_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"PLANNER_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"PLANNER_TEMPERATURE" default:"0.0"`
}

type SynthesisModelConfig struct {
	Model       string  `envconfig:"SYNTHESIS_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"SYNTHESIS_MAX_TOKENS" default:"4000"`
	Temperature float32 `envconfig:"SYNTHESIS_TEMPERATURE" default:"0.2"`
}

type DatasetConfig struct {
	Path        string `envconfig:"DATASET_PATH" default:"./data/sp500_companies.csv"`
	Table       string `envconfig:"DATASET_TABLE" default:"sp500_companies"`
	Description string `envconfig:"DATASET_DESCRIPTION" default:"Financial information for S&P 500 companies including market data, fundamentals, and sector classification"`
	// MetadataPath points at an optional YAML file with hand-curated column
	// units/descriptions layered over the auto-generated schema.
	MetadataPath string `envconfig:"DATASET_METADATA"`
}

type ExecutorConfig struct {
	// MultiPass repeats the scheduling pass until no step makes progress,
	// allowing diamond-shaped dependency graphs to complete. Off by default:
	// the engine is single-pass best-effort.
	MultiPass bool `envconfig:"EXECUTOR_MULTI_PASS" default:"false"`
	// SkipDiagnostics logs steps left blocked by a failed dependency. The
	// error list is unaffected either way.
	SkipDiagnostics bool `envconfig:"EXECUTOR_SKIP_DIAGNOSTICS" default:"false"`
}
