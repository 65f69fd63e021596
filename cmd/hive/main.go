// Command hive is the headless entry point for the native team coordinator:
// it parses a plan, builds the scheduler and its worker pool, and blocks
// until every task reaches a terminal state or the run is aborted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/mbourmaud/hive/internal/hive/chat"
	"github.com/mbourmaud/hive/internal/hive/events"
	"github.com/mbourmaud/hive/internal/hive/hiveconfig"
	"github.com/mbourmaud/hive/internal/hive/hivelog"
	"github.com/mbourmaud/hive/internal/hive/hivetrace"
	"github.com/mbourmaud/hive/internal/hive/metrics"
	"github.com/mbourmaud/hive/internal/hive/notes"
	"github.com/mbourmaud/hive/internal/hive/plan"
	"github.com/mbourmaud/hive/internal/hive/scheduler"
	"github.com/mbourmaud/hive/internal/hive/tools"
	"github.com/mbourmaud/hive/internal/hive/worker"
)

// version is populated by -ldflags at build time.
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hive",
		Short:         "Drive a structured engineering plan through a pool of AI coding workers",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd())
	return root
}

// runFlags backs the run subcommand's flags.
type runFlags struct {
	workspace   string
	concurrency int
	maxTurns    int
	droneDir    string
	resume      bool
	configPath  string
}

func newRunCmd() *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <plan-file>",
		Short: "Run a plan to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd.Context(), args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.workspace, "workspace", "", "repository root the workers operate in (overrides config)")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 0, "max concurrently running tasks (overrides config)")
	cmd.Flags().IntVar(&flags.maxTurns, "max-turns", 0, "per-task turn budget (overrides config)")
	cmd.Flags().StringVar(&flags.droneDir, "drone-dir", "", "directory for the event log, snapshot, and abort signal (overrides config)")
	cmd.Flags().BoolVar(&flags.resume, "resume", false, "resume from an existing snapshot in --drone-dir instead of starting fresh")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "YAML config file (see internal/hive/hiveconfig)")

	return cmd
}

func runPlan(ctx context.Context, planPath string, flags runFlags) error {
	cfg, err := hiveconfig.Load(flags.configPath)
	if err != nil {
		return err
	}
	if flags.workspace != "" {
		cfg.Workspace = flags.workspace
	}
	if flags.concurrency > 0 {
		cfg.MaxConcurrency = flags.concurrency
	}
	if flags.maxTurns > 0 {
		cfg.MaxTurns = flags.maxTurns
	}
	if flags.droneDir != "" {
		cfg.DroneDir = flags.droneDir
	}

	runID := uuid.NewString()
	logger := hivelog.New(hivelog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	ctx = hivelog.WithRun(ctx, runID)

	shutdownTrace, err := hivetrace.Setup(ctx, hivetrace.Config{Endpoint: os.Getenv("HIVE_OTLP_ENDPOINT"), Insecure: true, ServiceID: runID})
	if err != nil {
		return fmt.Errorf("tracing setup: %w", err)
	}
	defer func() { _ = shutdownTrace(context.Background()) }()

	if err := os.MkdirAll(cfg.DroneDir, 0o755); err != nil {
		return fmt.Errorf("create drone dir: %w", err)
	}

	tasks, err := loadPlan(planPath)
	if err != nil {
		return err
	}
	logger.Info(ctx, "plan loaded", "plan", planPath, "tasks", len(tasks))

	m := metrics.New(nil)

	client, err := buildChatClient(cfg, m)
	if err != nil {
		return err
	}

	registry := buildToolRegistry(cfg.Workspace)
	noteStore := notes.NewStore(filepath.Join(cfg.DroneDir, "notes.json"))
	abortFlag := events.NewAbortFlag()

	emitter, err := events.NewEmitter(filepath.Join(cfg.DroneDir, "events.ndjson"))
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer emitter.Close()

	deps := worker.Deps{
		Chat:           client,
		Tools:          registry,
		Notes:          noteStore,
		Events:         emitter,
		Metrics:        m,
		ProjectContext: worker.NewContextCache(),
		Abort:          abortFlag,
	}

	schedCfg := scheduler.Config{
		MaxConcurrency: cfg.MaxConcurrency,
		MaxTurns:       cfg.MaxTurns,
		ThinkingBudget: cfg.ThinkingBudget,
		DefaultModel:   cfg.DefaultModel,
		Workspace:      cfg.Workspace,
		DroneDir:       cfg.DroneDir,
		OnTransition: func(number int, status string) {
			fmt.Fprintf(os.Stderr, "task %d -> %s\n", number, status)
		},
	}
	sched := scheduler.New(tasks, schedCfg, deps, emitter, m)

	if flags.resume {
		snapPath := filepath.Join(cfg.DroneDir, "tasks-snapshot.json")
		snap, err := events.ReadSnapshot(snapPath)
		if err != nil {
			return fmt.Errorf("read snapshot for resume: %w", err)
		}
		sched.Resume(snap)
		logger.Info(ctx, "resuming from snapshot", "snapshot", snapPath)
	}

	// A signal raises the abort flag rather than cancelling the scheduler's
	// context: running workers observe the flag on their next poll and
	// unwind, and the run still ends with a Stop event and the completion
	// marker instead of a half-written snapshot.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		logger.Warn(ctx, "signal received, aborting run")
		abortFlag.Set()
	}()

	logger.Info(ctx, "run started", "run_id", runID, "workspace", cfg.Workspace, "drone_dir", cfg.DroneDir)
	if err := sched.Run(ctx); err != nil {
		return fmt.Errorf("scheduler run: %w", err)
	}
	logger.Info(ctx, "run finished")
	return nil
}

func loadPlan(path string) ([]plan.Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	if filepath.Ext(path) == ".yaml" || filepath.Ext(path) == ".yml" {
		return plan.ParseYAML(data)
	}
	return plan.ParseMarkdown(string(data)), nil
}

func buildChatClient(cfg hiveconfig.Config, m *metrics.Metrics) (chat.Client, error) {
	if cfg.Backend == "bedrock" {
		return chat.NewBedrockClient(chat.BedrockConfig{
			Region:       cfg.BedrockRegion,
			DefaultModel: chat.ResolveBedrockModel(cfg.DefaultModel, ""),
			OnRetry:      func(reason string) { m.ObserveRetry("bedrock", reason) },
		})
	}
	return chat.NewAnthropicClient(chat.AnthropicConfig{
		APIKey:       cfg.AnthropicAPIKey,
		DefaultModel: chat.ResolveModel(cfg.DefaultModel, ""),
		OnRetry:      func(reason string) { m.ObserveRetry("anthropic", reason) },
	})
}

// buildToolRegistry assembles the core built-in tool set plus the
// ToolSearch meta-tool that activates the deferred tier.
func buildToolRegistry(workspace string) *tools.Registry {
	registry := tools.NewRegistry()
	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("register built-in tool: %v", err))
		}
	}
	must(registry.Register(tools.NewReadTool(workspace)))
	must(registry.Register(tools.NewWriteTool(workspace)))
	must(registry.Register(tools.NewEditTool(workspace)))
	must(registry.Register(tools.NewShellTool(workspace)))
	must(registry.Register(tools.NewGrepTool(workspace)))
	must(registry.Register(tools.NewGlobTool(workspace)))
	must(registry.Register(tools.NewToolSearchTool(func() []tools.Definition { return registry.Definitions(true) })))
	return registry
}
