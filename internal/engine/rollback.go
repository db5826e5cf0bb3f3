package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/nimeshe/epicimport/internal/types"
)

// Rollback replays a run's ledger entries in strict reverse creation order,
// closing each issue. Reverse order is always dependency-safe: a Task is
// unlinked from the world before the Epic it references.
//
// Rollback is best-effort, not all-or-nothing: a failed delete is recorded
// as a diagnostic and the remaining entries are still attempted.
func Rollback(ctx context.Context, runID string, entries []types.CreatedObject, remote Remote) types.RollbackResult {
	result := types.RollbackResult{RunID: runID}

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if ctx.Err() != nil {
			result.Diagnostics = append(result.Diagnostics,
				types.Errorf(0, "", fmt.Sprintf("rollback canceled with %d entries remaining", i+1)))
			break
		}

		switch entry.ObjectKind {
		case "epic", "task":
			number, err := strconv.Atoi(entry.Ref)
			if err != nil {
				result.Diagnostics = append(result.Diagnostics,
					types.Errorf(0, "", fmt.Sprintf("ledger entry %q has a non-numeric issue ref %q", entry.PlanEntryID, entry.Ref)))
				continue
			}
			if err := remote.DeleteIssue(ctx, entry.Repository, number); err != nil {
				result.Diagnostics = append(result.Diagnostics,
					types.Errorf(0, "", fmt.Sprintf("failed to roll back issue #%d in %s: %v", number, entry.Repository, err)))
				continue
			}
			slog.Info("rolled back issue", "repo", entry.Repository, "number", number, "kind", entry.ObjectKind)
			result.Deleted = append(result.Deleted, entry)
		default:
			result.Diagnostics = append(result.Diagnostics,
				types.Errorf(0, "", fmt.Sprintf("ledger entry %q has unknown kind %q, skipping", entry.PlanEntryID, entry.ObjectKind)))
		}
	}

	return result
}
