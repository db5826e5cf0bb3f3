package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimeshe/epicimport/internal/csvfile"
	"github.com/nimeshe/epicimport/internal/engine"
	"github.com/nimeshe/epicimport/internal/types"
)

var (
	validateCSVPath   string
	validateNoNetwork bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a CSV file without importing anything",
	Long: `Validate checks the CSV structurally and, unless --no-network is given,
against live GitHub state (assignees, labels, milestones). All violations
across all rows are reported in one pass. Nothing is created.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		opts := engineOptions(cfg)
		opts.NetworkChecks = !validateNoNetwork

		var remote engine.Remote
		if opts.NetworkChecks {
			// Format-only runs need no credentials; network checks do.
			if err := cfg.Validate(); err != nil {
				configFatal(err)
			}
			remote = newRemote(cfg)
		}

		rows, parseDiags := csvfile.ReadFile(validateCSVPath, cfg.PrimaryRepo)
		result := engine.Validate(cmd.Context(), rows, parseDiags, engine.NewStateCache(), remote, opts)

		if jsonOutput {
			printJSON(result)
		} else {
			printValidation(result)
		}
		if !result.Valid() {
			os.Exit(exitFailure)
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateCSVPath, "csv", "", "path to the CSV file (required)")
	validateCmd.Flags().BoolVar(&validateNoNetwork, "no-network", false, "structural checks only, no remote calls")
	_ = validateCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(validateCmd)
}

func printValidation(result types.ValidationResult) {
	errs := 0
	for _, d := range result.Diagnostics {
		if d.Severity == types.SeverityError {
			errs++
		}
	}
	fmt.Printf("Validated %d rows: %d errors, %d warnings\n", result.RowCount, errs, result.Warnings())
	printDiagnostics(result.Diagnostics)
	if result.Valid() {
		fmt.Println("CSV is ready to import.")
	}
}
