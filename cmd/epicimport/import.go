package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nimeshe/epicimport/internal/csvfile"
	"github.com/nimeshe/epicimport/internal/engine"
	"github.com/nimeshe/epicimport/internal/ledger"
	"github.com/nimeshe/epicimport/internal/types"
)

var (
	importCSVPath string
	importConfirm bool
	importDryRun  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Validate a CSV file and create its Epics and Tasks in GitHub",
	Long: `Import validates the CSV against live GitHub state, builds a
dependency-ordered plan (Epics before their Tasks), and executes it.
A failed row never aborts the run; every created object is recorded in a
durable ledger so the run can be rolled back with 'epicimport rollback'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			configFatal(err)
		}

		opts := engineOptions(cfg)
		remote := newRemote(cfg)
		cache := engine.NewStateCache()

		rows, parseDiags := csvfile.ReadFile(importCSVPath, cfg.PrimaryRepo)
		validation := engine.Validate(cmd.Context(), rows, parseDiags, cache, remote, opts)
		if !jsonOutput {
			printValidation(validation)
		}
		if !validation.Valid() {
			if jsonOutput {
				printJSON(validation)
			}
			os.Exit(exitFailure)
		}

		if importDryRun {
			plan, planDiags := engine.BuildPlan(validation)
			if jsonOutput {
				printJSON(plan)
			} else {
				printDiagnostics(planDiags)
				fmt.Printf("Dry run: %d entries would be created.\n", len(plan.Entries))
			}
			return nil
		}

		if !importConfirm && !confirmImport() {
			fmt.Println("Import cancelled")
			return nil
		}

		led, err := ledger.Open(cfg.LedgerDir)
		if err != nil {
			return fmt.Errorf("opening rollback ledger: %w", err)
		}
		defer func() { _ = led.Close() }()

		result := engine.PlanAndExecute(cmd.Context(), validation, remote, cache, led, opts)

		if jsonOutput {
			printJSON(result)
		} else {
			printImportResult(result)
		}
		if result.Status != types.StatusSuccess {
			os.Exit(exitFailure)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to the CSV file (required)")
	importCmd.Flags().BoolVar(&importConfirm, "confirm", false, "skip the confirmation prompt")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "plan only, create nothing")
	_ = importCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(importCmd)
}

// confirmImport prompts on a terminal; non-interactive runs must pass
// --confirm explicitly rather than hang on a prompt nobody will answer.
func confirmImport() bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "Refusing to import without --confirm on a non-interactive stdin")
		return false
	}
	fmt.Print("\nProceed with import? (yes/no): ")
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}

func printImportResult(result types.ImportResult) {
	fmt.Printf("\nImport %s (run %s)\n", result.Status, result.RunID)
	fmt.Printf("Created %d objects:\n", len(result.Created))
	for _, obj := range result.Created {
		fmt.Printf("  %s #%s in %s", obj.ObjectKind, obj.Ref, obj.Repository)
		if obj.URL != "" {
			fmt.Printf("  (%s)", obj.URL)
		}
		fmt.Println()
	}
	if len(result.Diagnostics) > 0 {
		fmt.Println("Diagnostics:")
		printDiagnostics(result.Diagnostics)
	}
	if result.Status == types.StatusPartial {
		fmt.Printf("\nPartial import: fix the rows above and resubmit only them.\n")
		fmt.Printf("To undo this run: epicimport rollback %s\n", result.RunID)
	}
}
