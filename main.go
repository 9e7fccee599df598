package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/urfave/cli/v2"

	"github.com/datatalk-core/server/internal/agent/graph"
	"github.com/datatalk-core/server/internal/agent/model"
	"github.com/datatalk-core/server/internal/agent/repo"
	"github.com/datatalk-core/server/internal/core"
	"github.com/datatalk-core/server/internal/dataset"
	"github.com/datatalk-core/server/internal/evaluation"
	logx "github.com/datatalk-core/server/pkg/logger"
	pkgredis "github.com/datatalk-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the service, sourced
// from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure. Redis is optional; without a URL conversation history
	// lives in process memory.
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Pipeline configs
	Intent       model.IntentModelConfig
	Planner      model.PlannerModelConfig
	Synthesis    model.SynthesisModelConfig
	Conversation model.ConversationConfig
	Dataset      model.DatasetConfig
	Executor     model.ExecutorConfig
}

func main() {
	app := &cli.App{
		Name:  "datatalk",
		Usage: "answer natural-language questions over a tabular dataset",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "path to the .env file",
				Value: ".env",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "answer a single question and exit",
				ArgsUsage: "<question>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "conversation",
						Usage: "conversation id for history continuity",
						Value: "default",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "print the full answer envelope as JSON",
					},
				},
				Action: askAction,
			},
			{
				Name:  "eval",
				Usage: "run the golden-query evaluation suite",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "cases",
						Usage: "YAML file of evaluation cases (default: built-in suite)",
					},
					&cli.StringFlag{
						Name:  "output",
						Usage: "where to write the JSON report",
						Value: "data/eval_results.json",
					},
					&cli.StringFlag{
						Name:  "baseline",
						Usage: "baseline report to compare against (created when absent)",
						Value: "data/eval_baseline.json",
					},
				},
				Action: evalAction,
			},
			{
				Name:  "repl",
				Usage: "interactive question loop",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "conversation",
						Usage: "conversation id for history continuity",
						Value: "repl",
					},
				},
				Action: replAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads configuration, the dataset and the conversation store, and
// builds the compiled pipeline.
func setup(c *cli.Context) (graph.Runner, error) {
	ctx := c.Context

	if err := godotenv.Load(c.String("env-file")); err != nil {
		logx.Debug().Str("path", c.String("env-file")).Msg("no .env file loaded")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}

	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	table, err := dataset.LoadCSVFile(cfg.Dataset.Table, cfg.Dataset.Path)
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", cfg.Dataset.Path, err)
	}
	meta := dataset.DescribeTable(table)
	if cfg.Dataset.MetadataPath != "" {
		if err := meta.ApplyOverridesFile(cfg.Dataset.MetadataPath); err != nil {
			return nil, fmt.Errorf("apply metadata overrides: %w", err)
		}
	}
	logx.Info().
		Str("table", table.Name()).
		Int("rows", table.RowCount()).
		Int("columns", len(table.Columns())).
		Msg("Dataset loaded")

	conversationRepo, err := buildConversationRepo(cfg)
	if err != nil {
		return nil, err
	}

	return graph.BuildPipeline(ctx, graph.Config{
		APIKey:           cfg.APIKey,
		BaseURL:          cfg.BaseURL,
		IntentModel:      cfg.Intent,
		PlannerModel:     cfg.Planner,
		SynthesisModel:   cfg.Synthesis,
		Conversation:     cfg.Conversation,
		Executor:         cfg.Executor,
		ConversationRepo: conversationRepo,
		Backend:          table,
		Table:            cfg.Dataset.Table,
		Description:      cfg.Dataset.Description,
		Meta:             meta,
	})
}

func buildConversationRepo(cfg AppConfig) (model.ConversationRepository, error) {
	if !cfg.Redis.Enabled() {
		logx.Info().Msg("Redis not configured, using in-memory conversation store")
		return repo.NewMemoryConversationRepository(cfg.Conversation.MaxTurns), nil
	}

	rdb, err := cfg.Redis.New()
	if err != nil {
		return nil, fmt.Errorf("initialise Redis client: %w", err)
	}
	ttl, err := time.ParseDuration(cfg.Conversation.TTL)
	if err != nil {
		return nil, fmt.Errorf("invalid CONVERSATION_TTL %q: %w", cfg.Conversation.TTL, err)
	}
	return repo.NewRedisConversationRepository(rdb, ttl), nil
}

func askAction(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return cli.Exit("usage: datatalk ask <question>", 2)
	}

	runner, err := setup(c)
	if err != nil {
		return err
	}

	answer, err := runner.Ask(c.Context, model.QueryInput{
		ConversationID: c.String("conversation"),
		Query:          question,
	})
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	if c.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}

	printAnswer(answer)
	return nil
}

func evalAction(c *cli.Context) error {
	runner, err := setup(c)
	if err != nil {
		return err
	}

	cases := evaluation.DefaultCases()
	if path := c.String("cases"); path != "" {
		if cases, err = evaluation.LoadCasesFile(path); err != nil {
			return err
		}
	}

	report := evaluation.New(runner, cases).Run(c.Context)
	fmt.Print(report.Render())

	if err := report.WriteFile(c.String("output")); err != nil {
		return err
	}

	baselinePath := c.String("baseline")
	if baseline, err := evaluation.LoadReportFile(baselinePath); err == nil {
		fmt.Print(report.RenderComparison(baseline))
	} else if errors.Is(err, os.ErrNotExist) {
		if err := report.WriteFile(baselinePath); err != nil {
			return err
		}
		fmt.Printf("saved %s as the baseline for future runs\n", baselinePath)
	} else {
		return err
	}
	return nil
}

func replAction(c *cli.Context) error {
	runner, err := setup(c)
	if err != nil {
		return err
	}
	conversationID := c.String("conversation")

	fmt.Println("Ask questions about the dataset. Empty line exits.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		answer, err := runner.Ask(c.Context, model.QueryInput{
			ConversationID: conversationID,
			Query:          question,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printAnswer(answer)
	}
	return scanner.Err()
}

func printAnswer(answer *model.Answer) {
	fmt.Println(answer.Response)
	if answer.Chart != nil {
		fmt.Printf("\n[chart: %s, %d rows]\n", answer.Chart.Kind, len(answer.Chart.Rows))
	}
	if len(answer.Errors) > 0 {
		for _, e := range answer.Errors {
			fmt.Fprintf(os.Stderr, "warning: %s\n", e)
		}
	}
}
