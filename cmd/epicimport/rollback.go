package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimeshe/epicimport/internal/engine"
	"github.com/nimeshe/epicimport/internal/ledger"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback [run-id]",
	Short: "Undo an import run by closing its created issues in reverse order",
	Long: `Rollback replays a run's ledger in strict reverse creation order,
closing each issue as not planned. A failed close is reported but does not
stop the remaining entries. Without a run ID, known runs are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			runs, err := ledger.ListRuns(cfg.LedgerDir)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("No recorded runs.")
				return nil
			}
			fmt.Println("Recorded runs (newest first):")
			for _, id := range runs {
				fmt.Printf("  %s\n", id)
			}
			return nil
		}

		if err := cfg.Validate(); err != nil {
			configFatal(err)
		}

		runID := args[0]
		entries, err := ledger.Load(cfg.LedgerDir, runID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Printf("Run %s has no recorded objects.\n", runID)
			return nil
		}

		result := engine.Rollback(cmd.Context(), runID, entries, newRemote(cfg))

		if jsonOutput {
			printJSON(result)
			return nil
		}
		fmt.Printf("Rolled back %d of %d objects from run %s\n", len(result.Deleted), len(entries), runID)
		printDiagnostics(result.Diagnostics)
		if len(result.Diagnostics) > 0 {
			os.Exit(exitFailure)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}
