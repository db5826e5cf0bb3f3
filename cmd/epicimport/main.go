// Command epicimport bulk-imports Epics and Tasks from a CSV file into the
// GitHub issue trackers of one organization's project repositories.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nimeshe/epicimport/internal/config"
	"github.com/nimeshe/epicimport/internal/engine"
	"github.com/nimeshe/epicimport/internal/github"
	"github.com/nimeshe/epicimport/internal/types"
)

// Exit codes: 1 for validation/import failures, 2 for configuration errors
// that abort before any remote call.
const (
	exitFailure = 1
	exitConfig  = 2
)

var (
	configPath  string
	jsonOutput  bool
	verboseFlag bool
	quietFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "epicimport",
	Short: "Bulk-import Epics and Tasks from CSV into GitHub issues",
	Long: `epicimport reads a 7-column CSV of Epics and Tasks, validates it against
live GitHub state, and creates the issues in dependency order (Epics before
their Tasks) with per-row failure isolation and a durable rollback ledger.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verboseFlag {
			level = slog.LevelDebug
		}
		if quietFlag {
			level = slog.LevelWarn
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to mappings.yaml (default config/mappings.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "suppress progress output")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitFailure)
	}
}

// loadConfig assembles the run configuration. Callers that need the network
// must also call cfg.Validate.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// newRemote builds the GitHub client from configuration.
func newRemote(cfg *config.Config) engine.Remote {
	client := github.NewClient(cfg.Token, cfg.Owner)
	if cfg.BaseURL != "" && cfg.BaseURL != github.DefaultAPIEndpoint {
		client = client.WithBaseURL(cfg.BaseURL)
	}
	return client
}

// engineOptions maps configuration defaults into engine options.
func engineOptions(cfg *config.Config) engine.Options {
	opts := engine.DefaultOptions()
	opts.Repositories = cfg.Repositories()
	opts.ProjectLabel = cfg.ProjectLabel
	opts.FailOnMissingMilestone = cfg.FailOnMissingMilestone
	opts.RequireAssignee = cfg.RequireAssignee
	opts.MaxRetryAttempts = cfg.MaxRetryAttempts
	return opts
}

// configFatal reports a run-fatal configuration error and exits with the
// dedicated code, emitting an aborted result when JSON output is on.
func configFatal(err error) {
	if jsonOutput {
		printJSON(types.ImportResult{Status: types.StatusAborted, Diagnostics: []types.Diagnostic{
			types.Errorf(0, "config", err.Error()),
		}})
	} else {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
	}
	os.Exit(exitConfig)
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode result: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printDiagnostics(diags []types.Diagnostic) {
	for _, d := range diags {
		loc := "global"
		if d.Row > 0 {
			loc = fmt.Sprintf("row %d", d.Row)
		}
		if d.Field != "" {
			loc += ", " + d.Field
		}
		fmt.Printf("  [%s] %s: %s\n", d.Severity, loc, d.Message)
	}
}
