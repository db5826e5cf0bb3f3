package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nimeshe/epicimport/internal/csvfile"
	"github.com/nimeshe/epicimport/internal/engine"
)

var previewCSVPath string

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show what an import would create, without any remote calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		opts := engineOptions(cfg)
		opts.NetworkChecks = false

		rows, parseDiags := csvfile.ReadFile(previewCSVPath, cfg.PrimaryRepo)
		result := engine.Validate(cmd.Context(), rows, parseDiags, engine.NewStateCache(), nil, opts)
		if !result.Valid() {
			fmt.Println("Cannot preview: validation failed")
			printDiagnostics(result.Diagnostics)
			os.Exit(exitFailure)
		}

		plan, planDiags := engine.BuildPlan(result)
		if len(planDiags) > 0 {
			printDiagnostics(planDiags)
		}

		if jsonOutput {
			printJSON(plan)
			return nil
		}

		fmt.Println("=== Import Preview ===")
		fmt.Printf("Total items to import: %d\n\n", len(plan.Entries))
		for _, entry := range plan.Entries {
			row := entry.Row
			fmt.Printf("[%s] %s\n", row.Kind, row.Title)
			fmt.Printf("  Repository: %s\n", row.Repository)
			if row.Kind != "" && row.ParentRef != "" {
				fmt.Printf("  Epic: %s\n", row.ParentRef)
			}
			assignee := row.Assignee
			if assignee == "" {
				assignee = "Unassigned"
			}
			fmt.Printf("  Assignee: %s\n", assignee)
			labels := "None"
			if len(row.Labels) > 0 {
				labels = strings.Join(row.Labels, ", ")
			}
			fmt.Printf("  Labels: %s\n\n", labels)
		}
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVar(&previewCSVPath, "csv", "", "path to the CSV file (required)")
	_ = previewCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(previewCmd)
}
