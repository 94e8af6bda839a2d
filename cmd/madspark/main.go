package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/madspark/orchestrator/cache"
	"github.com/madspark/orchestrator/config"
	"github.com/madspark/orchestrator/domain"
	"github.com/madspark/orchestrator/monitoring"
	"github.com/madspark/orchestrator/orchestrator"
	"github.com/madspark/orchestrator/provider"
	anthropicprovider "github.com/madspark/orchestrator/provider/anthropic"
	"github.com/madspark/orchestrator/provider/mock"
	"github.com/madspark/orchestrator/schema"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runWorkflow(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runWorkflow(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file (YAML)")
	topic := fs.String("topic", "", "Topic to brainstorm ideas about")
	ideaContext := fs.String("context", "", "Additional context for idea generation")
	numIdeas := fs.Int("num-ideas", 5, "Number of ideas to generate")
	numTop := fs.Int("num-top", 3, "Number of top ideas to advance through refinement")
	multiDim := fs.Bool("multi-dim", false, "Enable the 7-dimension evaluator")
	logical := fs.Bool("logical", false, "Enable the logical inference engine")
	novelty := fs.Bool("novelty", true, "Enable novelty (near-duplicate) filtering")
	deadlineSeconds := fs.Int("deadline-seconds", 0, "Override the workflow deadline (0 = use config default)")
	fs.Parse(args)

	if *topic == "" {
		fmt.Fprintln(os.Stderr, "Error: --topic is required")
		os.Exit(1)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("starting MadSpark workflow run",
		zap.String("version", Version),
		zap.String("topic", *topic),
	)

	llmProvider := buildProvider(cfg, logger)

	var rdb *redis.Client
	if cfg.Cache.UseRedis && cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	}
	respCache := cache.New(cfg.Cache, rdb, logger)
	collector := monitoring.NewCollector("madspark").WithCostPerToken(llmProvider.CostPerToken())
	registry := schema.NewRegistry()

	o := orchestrator.New(llmProvider, registry, respCache, collector, nil, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := domain.WorkflowRequest{
		RequestID: uuid.NewString(),
		Topic:     *topic,
		Context:   *ideaContext,
		NumIdeas:  *numIdeas,
		NumTop:    *numTop,
		Flags: domain.WorkflowFlags{
			MultiDim: *multiDim,
			Logical:  *logical,
			Novelty:  *novelty,
		},
		DeadlineSeconds: *deadlineSeconds,
	}

	result, err := o.Run(ctx, req)
	if err != nil {
		logger.Error("workflow run failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode result: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if result.Partial {
		logger.Warn("workflow returned a partial result", zap.Strings("warnings", result.Warnings))
	}
}

// buildProvider picks the mock Provider Port under MockMode or when no
// Anthropic API key is configured, so `madspark run` works out of the box
// without credentials.
func buildProvider(cfg *config.Config, logger *zap.Logger) provider.Port {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if cfg.MockMode || apiKey == "" {
		logger.Info("running with the mock provider", zap.Bool("mock_mode", cfg.MockMode), zap.Bool("has_api_key", apiKey != ""))
		return mock.New()
	}
	return anthropicprovider.New(anthropicprovider.Config{APIKey: apiKey}, logger)
}

func printVersion() {
	fmt.Printf("MadSpark %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`MadSpark - multi-stage LLM idea workflow orchestrator

Usage:
  madspark <command> [options]

Commands:
  run       Run the idea generation/evaluation/refinement workflow
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>          Path to configuration file (YAML)
  --topic <string>         Topic to brainstorm ideas about (required)
  --context <string>       Additional context for idea generation
  --num-ideas <int>        Number of ideas to generate (default 5)
  --num-top <int>          Number of top ideas to refine (default 3)
  --multi-dim              Enable the 7-dimension evaluator
  --logical                Enable the logical inference engine
  --novelty                Enable novelty filtering (default true)
  --deadline-seconds <int> Override the workflow deadline

Examples:
  madspark run --topic "sustainable urban transport" --num-ideas 8 --num-top 3
  madspark run --config madspark.yaml --topic "..." --multi-dim --logical
  madspark version`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := cfg.Format
	if encoding == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoding = "json"
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(zap.AddCaller())
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
