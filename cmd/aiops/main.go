// Package main provides the aiops CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/joss/aiops/internal/audit"
	"github.com/joss/aiops/internal/config"
	"github.com/joss/aiops/internal/exec"
	"github.com/joss/aiops/internal/graph"
	"github.com/joss/aiops/internal/logging"
	"github.com/joss/aiops/internal/orchestrator"
	"github.com/joss/aiops/internal/render"
	"github.com/joss/aiops/internal/retrieval"
	"github.com/joss/aiops/internal/skills"
	"github.com/joss/aiops/internal/state"
	"github.com/joss/aiops/internal/workspace"
	"github.com/joss/aiops/pkg/llm"
)

var (
	version = "0.1.0"

	cfgPath  string
	workDir  string
	autoMode bool

	cfg        *config.Config
	paths      *config.Paths
	db         graph.Driver
	auditStore *audit.Store
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "aiops",
		Short: "Natural-language operations agent",
		Long: `aiops turns natural-language requests into reviewed shell scripts.

Usage modes:
  aiops                  Start an interactive session
  aiops run <request>    Run one request without review (auto mode)
  aiops <command>        Manage sessions and skills (see below)`,
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat()
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "aiops.yaml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&workDir, "workdir", "", "Workspace directory override")
	rootCmd.PersistentFlags().BoolVar(&autoMode, "auto", false, "Execute scripts without operator approval")

	rootCmd.AddCommand(
		runCmd(),
		sessionCmd(),
		skillCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return err
	}
	if workDir != "" {
		cfg.Execution.WorkingDir = workDir
	}
	if autoMode {
		cfg.Execution.Mode = config.ModeAuto
	}

	paths = config.PathsAt(cfg.Execution.WorkingDir)
	if err := config.EnsureDir(paths.Root); err != nil {
		return err
	}

	// Graph mirror and execution history are both best effort; the
	// agent runs fine without either.
	db = graph.ConnectFromEnv()

	auditStore, err = audit.Open(paths.HistoryDB)
	if err != nil {
		logging.New("main").Warn("audit_unavailable", map[string]interface{}{"path": paths.HistoryDB}, err)
		auditStore = nil
	} else if db != nil {
		auditStore.SetMirror(db)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if auditStore != nil {
		auditStore.Close()
	}
	if db != nil {
		db.Close()
	}
}

// buildEngine wires the orchestrator's collaborators. A missing API
// key is process-fatal here: the agent refuses to start half
// configured.
func buildEngine(in io.Reader) (*orchestrator.Engine, error) {
	key, err := cfg.RequireAPIKey()
	if err != nil {
		return nil, err
	}

	provider := llm.NewOpenAI(key, cfg.LLM.Model)
	if base := config.Env().OpenAIBaseURL; base != "" {
		provider = provider.WithBaseURL(base)
	}

	skillDir := cfg.Skills.Dir
	if skillDir == "" {
		skillDir = paths.Skills
	}
	registry, err := skills.Load(skillDir)
	if err != nil {
		return nil, err
	}

	store, err := state.Open(paths.StateFile)
	if err != nil {
		return nil, err
	}

	runner := exec.NewOSRunner()
	ws, err := workspace.New(paths.Root, runner)
	if err != nil {
		return nil, err
	}

	return orchestrator.New(orchestrator.Options{
		Config:    cfg,
		Store:     store,
		Registry:  registry,
		Provider:  provider,
		Executor:  exec.NewScriptExecutor(runner, cfg.Execution.Shell, cfg.Execution.Sandbox, cfg.Execution.Timeout),
		Workspace: ws,
		Fetcher:   retrieval.NewFetcher(logging.New("retrieval")),
		Audit:     auditStore,
		Input:     in,
		Output:    render.New(os.Stdout),
	}), nil
}

func runChat() error {
	engine, err := buildEngine(os.Stdin)
	if err != nil {
		return err
	}
	return engine.Run(context.Background())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("aiops %s\n", version)
		},
	}
}
