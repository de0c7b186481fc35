// Package main provides the Scout browser tool runner for agent planners.
// It reads a single tool invocation as JSON, drives a recorded browser
// session against the target page, and prints the result envelope as JSON
// so a non-interactive planner can branch on it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/entrhq/scout/pkg/browser"
	"github.com/entrhq/scout/pkg/config"
	"github.com/entrhq/scout/pkg/llm"
	"github.com/entrhq/scout/pkg/logging"
	"github.com/entrhq/scout/pkg/runner"
	"github.com/entrhq/scout/pkg/store"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile  string
	InputFile   string
	OutputFile  string
	Control     bool
	SetupDB     bool
	Timeout     time.Duration
	ShowVersion bool
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("Scout v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	if err := run(ctx, cliConfig); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "scout: %v\n", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cliConfig.InputFile, "input", "", "Path to the tool input JSON (default: stdin)")
	flag.StringVar(&cliConfig.OutputFile, "output", "", "Path to write the result JSON (default: stdout)")
	flag.BoolVar(&cliConfig.Control, "control", false, "Treat the input as a control action instead of a tool invocation")
	flag.BoolVar(&cliConfig.SetupDB, "setup-db", false, "Create the runner tables if missing, then exit")
	flag.DurationVar(&cliConfig.Timeout, "timeout", 5*time.Minute, "Invocation timeout")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Scout - Agent Browser Tool Runner\n\n")
		fmt.Fprintf(os.Stderr, "Usage: scout [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Run a tool invocation from stdin\n")
		fmt.Fprintf(os.Stderr, "  echo '{\"runId\":\"run-1\",\"prompt\":\"go to https://example.com\"}' | scout\n\n")
		fmt.Fprintf(os.Stderr, "  # Run a control action from a file\n")
		fmt.Fprintf(os.Stderr, "  scout -control -input action.json -config scout.yaml\n\n")
	}

	flag.Parse()
	return cliConfig
}

// run wires the runner and executes one invocation end to end
func run(ctx context.Context, cliConfig *CLIConfig) error {
	cfg, err := loadConfig(cliConfig)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, logErr := logging.NewLogger("scout")
	if logErr != nil {
		fmt.Fprintf(os.Stderr, "scout: file logging unavailable, falling back to stderr: %v\n", logErr)
	}
	defer log.Close()

	if cfg.Database.URL == "" {
		return fmt.Errorf("database url is required (set database.url in the config file)")
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if cliConfig.SetupDB {
		if err := store.EnsureSchema(ctx, pool); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "runner tables ready")
		return nil
	}

	// A missing schema is a fatal precondition; the planner still gets a
	// structured envelope rather than a raw error.
	repo, err := store.New(ctx, pool, log)
	if err != nil {
		log.Errorf("storage setup check failed: %v", err)
		return writeResult(cliConfig.OutputFile, runner.AgentToolResult{
			OK:    false,
			Error: err.Error(),
		})
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w", err)
	}
	inference := llm.NewInference(provider, log, cfg.LLM.MaxPromptTokens,
		llm.WithTemperature(cfg.LLM.Temperature))

	launcher := browser.NewLauncher(log)
	if err := launcher.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize browser driver: %w", err)
	}
	defer func() {
		if shutdownErr := launcher.Shutdown(); shutdownErr != nil {
			log.Warnf("driver shutdown: %v", shutdownErr)
		}
	}()

	r := runner.New(repo, runner.NewPlaywrightLauncher(launcher), inference, cfg, log)

	input, err := readInput(cliConfig.InputFile)
	if err != nil {
		return err
	}

	if cliConfig.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliConfig.Timeout)
		defer cancel()
	}

	var result runner.AgentToolResult
	if cliConfig.Control {
		var action runner.ControlInput
		if err := json.Unmarshal(input, &action); err != nil {
			return fmt.Errorf("failed to parse control input: %w", err)
		}
		result = r.RunControl(ctx, action)
	} else {
		var tool runner.ToolInput
		if err := json.Unmarshal(input, &tool); err != nil {
			return fmt.Errorf("failed to parse tool input: %w", err)
		}
		result = r.Run(ctx, tool)
	}

	return writeResult(cliConfig.OutputFile, result)
}

// buildProvider selects the inference backend from configuration
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.BaseURL, cfg.LLM.Model)
	default:
		return llm.NewOllamaProvider(cfg.LLM.BaseURL, cfg.LLM.Model), nil
	}
}

// loadConfig loads configuration from file or defaults
func loadConfig(cliConfig *CLIConfig) (*config.Config, error) {
	if cliConfig.ConfigFile != "" {
		return config.Load(cliConfig.ConfigFile)
	}

	cfg := config.Default()
	if url := os.Getenv("SCOUT_DATABASE_URL"); url != "" {
		cfg.Database.URL = url
	}
	return cfg, nil
}

// readInput reads the invocation JSON from a file or stdin
func readInput(path string) ([]byte, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		return data, nil
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("no input provided (pass -input or pipe JSON on stdin)")
	}
	return data, nil
}

// writeResult encodes the result envelope to a file or stdout
func writeResult(path string, result runner.AgentToolResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	data = append(data, '\n')

	if path != "" {
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}

	_, err = os.Stdout.Write(data)
	return err
}
