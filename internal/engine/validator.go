package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/nimeshe/epicimport/internal/types"
)

// Validate checks every row against schema rules and, when
// opts.NetworkChecks is set, against live remote state through the cache.
// Parse diagnostics from the CSV collaborator are merged in first.
//
// Validation never short-circuits: all violations across all rows are
// reported in one pass so a user can fix a CSV in one edit cycle.
func Validate(ctx context.Context, rows []types.RowModel, parseDiags []types.Diagnostic, cache *StateCache, remote Remote, opts Options) types.ValidationResult {
	result := types.ValidationResult{
		Rows:     rows,
		RowCount: len(rows),
	}
	result.Diagnostics = append(result.Diagnostics, parseDiags...)

	structural(rows, opts, &result)
	if opts.NetworkChecks {
		referential(ctx, rows, cache, remote, opts, &result)
	}
	return result
}

// structural runs the cheap, always-on checks: required fields, known kind,
// configured repository, and batch-level Epic/Task integrity. No network.
func structural(rows []types.RowModel, opts Options, result *types.ValidationResult) {
	epicLines := make(map[string]int) // epic key -> first source line
	for _, row := range rows {
		if row.Kind != types.KindEpic || strings.TrimSpace(row.Title) == "" {
			continue
		}
		key := types.EpicKey(row.Title)
		if _, dup := epicLines[key]; !dup {
			epicLines[key] = row.SourceLine
		}
	}

	for _, row := range rows {
		if strings.TrimSpace(row.Title) == "" {
			result.Diagnostics = append(result.Diagnostics,
				types.Errorf(row.SourceLine, "Title", "Title is required"))
		}
		if row.Kind == "" {
			result.Diagnostics = append(result.Diagnostics,
				types.Errorf(row.SourceLine, "Type", "Type must be 'Epic' or 'Task'"))
		}
		if row.Repository != "" && !opts.knownRepo(row.Repository) {
			result.Diagnostics = append(result.Diagnostics,
				types.Errorf(row.SourceLine, "Repository",
					fmt.Sprintf("repository %q is not in the configured set", row.Repository)))
		}

		switch row.Kind {
		case types.KindEpic:
			key := types.EpicKey(row.Title)
			if first, ok := epicLines[key]; ok && first != row.SourceLine {
				result.Diagnostics = append(result.Diagnostics,
					types.Errorf(row.SourceLine, "Title",
						fmt.Sprintf("duplicate Epic title %q (first defined at row %d)", row.Title, first)))
			}
			if row.ParentRef != "" {
				result.Diagnostics = append(result.Diagnostics,
					types.Errorf(row.SourceLine, "Parent", "an Epic cannot have a parent"))
			}
		case types.KindTask:
			if row.ParentRef == "" {
				result.Diagnostics = append(result.Diagnostics,
					types.Errorf(row.SourceLine, "Parent", "a Task must reference its Epic"))
			} else if _, ok := epicLines[types.EpicKey(row.ParentRef)]; !ok {
				result.Diagnostics = append(result.Diagnostics,
					types.Errorf(row.SourceLine, "Parent",
						fmt.Sprintf("no Epic titled %q in this batch", row.ParentRef)))
			}
		}
	}
}

// referential runs the network-backed checks through the memoizing cache.
// Lookup transport failures are warnings: the import executor re-checks, and
// a flaky read should not block an otherwise clean batch.
func referential(ctx context.Context, rows []types.RowModel, cache *StateCache, remote Remote, opts Options, result *types.ValidationResult) {
	for _, row := range rows {
		if row.Repository == "" || !opts.knownRepo(row.Repository) {
			continue // structural pass already rejected the row
		}

		if row.Assignee != "" {
			exists, err := cache.UserExists(ctx, remote, row.Assignee)
			switch {
			case err != nil:
				result.Diagnostics = append(result.Diagnostics,
					types.Warnf(row.SourceLine, "Assignee",
						fmt.Sprintf("failed to validate user %q: %v", row.Assignee, err)))
			case !exists && opts.RequireAssignee:
				result.Diagnostics = append(result.Diagnostics,
					types.Errorf(row.SourceLine, "Assignee",
						fmt.Sprintf("user %q not found", row.Assignee)))
			case !exists:
				result.Diagnostics = append(result.Diagnostics,
					types.Warnf(row.SourceLine, "Assignee",
						fmt.Sprintf("user %q not found, issue will be created unassigned", row.Assignee)))
			}
		}

		for _, label := range row.Labels {
			exists, err := cache.LabelExists(ctx, remote, row.Repository, label)
			if err != nil {
				result.Diagnostics = append(result.Diagnostics,
					types.Warnf(row.SourceLine, "Labels",
						fmt.Sprintf("failed to validate label %q: %v", label, err)))
				continue
			}
			if !exists {
				result.Diagnostics = append(result.Diagnostics,
					types.Warnf(row.SourceLine, "Labels",
						fmt.Sprintf("label %q not found in %s, will create", label, row.Repository)))
			}
		}

		if row.Milestone != "" {
			_, found, err := cache.MilestoneNumber(ctx, remote, row.Repository, row.Milestone)
			switch {
			case err != nil:
				result.Diagnostics = append(result.Diagnostics,
					types.Warnf(row.SourceLine, "Milestone",
						fmt.Sprintf("failed to validate milestone %q: %v", row.Milestone, err)))
			case !found && opts.FailOnMissingMilestone:
				result.Diagnostics = append(result.Diagnostics,
					types.Errorf(row.SourceLine, "Milestone",
						fmt.Sprintf("milestone %q not found in %s", row.Milestone, row.Repository)))
			case !found:
				result.Diagnostics = append(result.Diagnostics,
					types.Warnf(row.SourceLine, "Milestone",
						fmt.Sprintf("milestone %q not found in %s, will create", row.Milestone, row.Repository)))
			}
		}
	}
}
