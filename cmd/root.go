package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gavelhq/gavel/internal/logging"
	"github.com/gavelhq/gavel/internal/orchestrator"
	"github.com/gavelhq/gavel/internal/output"
	"github.com/gavelhq/gavel/internal/reviewer"
	"github.com/gavelhq/gavel/internal/session"
	"github.com/gavelhq/gavel/internal/store"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui     *output.UI
	logger *logging.Logger

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "gavel",
	Short: "Agent-driven code review sessions",
	Long: `gavel coordinates iterative code reviews performed by an AI agent.
It tracks review sessions across iterations, relays the reviewer's
questions to the developer, and exposes the whole workflow to coding
agents as MCP tools.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/gavel/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "gavel")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GAVEL")
	viper.AutomaticEnv()

	// Defaults via viper.SetDefault()
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "gavel")

	viper.SetDefault("state_dir", defaultConfigDir)
	viper.SetDefault("log_db_path", filepath.Join(defaultConfigDir, "gavel.db"))
	viper.SetDefault("store.backend", "file")
	viper.SetDefault("reviewer.backend", "cli")
	viper.SetDefault("reviewer.command", "codex")
	viper.SetDefault("reviewer.timeout", 120)
	viper.SetDefault("review.max_iterations", session.DefaultMaxIterations)
	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// getLogger returns the shared logger, opening the SQLite sink on first
// call. Falls back to console-only when the database cannot be opened.
func getLogger() *logging.Logger {
	if logger != nil {
		return logger
	}
	l, err := logging.Open(os.Stderr, viper.GetString("log_db_path"))
	if err != nil {
		ui.Warning("log database unavailable: %v", err)
		l = logging.NewConsole(os.Stderr)
	}
	logger = l
	return logger
}

// getManager builds a session manager over the configured store backend.
// The file backend keeps sessions under the project's .gavel directory; the
// memory backend is for throwaway runs.
func getManager(projectPath string) (*session.Manager, error) {
	if viper.GetString("store.backend") == "memory" {
		return session.NewManager(store.NewMemoryStore()), nil
	}
	fs, err := store.NewFileStore(filepath.Join(projectPath, ".gavel"))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}
	return session.NewManager(fs), nil
}

// getInvoker selects the reviewer backend from configuration.
func getInvoker() reviewer.Invoker {
	if viper.GetString("reviewer.backend") == "api" {
		return reviewer.NewAPIInvoker(
			viper.GetString("anthropic.api_key"),
			viper.GetString("anthropic.model"),
		)
	}
	return reviewer.NewCLIInvoker(viper.GetString("reviewer.command"), nil)
}

// getOrchestrator wires the review engine for one project.
func getOrchestrator(manager *session.Manager) *orchestrator.Orchestrator {
	timeout := time.Duration(viper.GetInt("reviewer.timeout")) * time.Second
	return orchestrator.New(manager, getInvoker(), getLogger(), timeout)
}

// resolveProjectPath normalizes the --project flag, defaulting to cwd.
func resolveProjectPath(projectPath string) (string, error) {
	if projectPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		return wd, nil
	}
	return filepath.Abs(projectPath)
}
