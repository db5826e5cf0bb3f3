package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nimeshe/epicimport/internal/github"
	"github.com/nimeshe/epicimport/internal/ledger"
	"github.com/nimeshe/epicimport/internal/types"
)

// Execute walks the plan in topological order, creating remote objects with
// per-entry failure isolation. A permanently failed entry never aborts the
// run: independent entries still execute, and entries depending on a failed
// Epic are skipped with a diagnostic. Every created issue is appended to the
// ledger before the next entry starts, so the run is recoverable at any
// point.
func Execute(ctx context.Context, plan Plan, remote Remote, cache *StateCache, led *ledger.Ledger, opts Options) types.ImportResult {
	result := types.ImportResult{RunID: led.RunID()}

	entriesByID := make(map[string]PlanEntry, len(plan.Entries))
	for _, entry := range plan.Entries {
		entriesByID[entry.ID] = entry
	}

	created := make(map[string]*github.Issue) // entry ID -> issue minted this run
	failed := make(map[string]bool)           // entry ID -> definitively failed

	for _, entry := range plan.Entries {
		// Cooperative cancellation between entries. Already-created objects
		// remain; recovery is an explicit rollback, never automatic.
		if ctx.Err() != nil {
			result.Diagnostics = append(result.Diagnostics,
				types.Errorf(entry.Row.SourceLine, "",
					fmt.Sprintf("run canceled before this row; %d created objects are recoverable via rollback of run %s", len(result.Created), result.RunID)))
			break
		}

		if dep, ok := failedDependency(entry, failed); ok {
			failed[entry.ID] = true
			result.Diagnostics = append(result.Diagnostics,
				types.Errorf(entry.Row.SourceLine, "",
					fmt.Sprintf("parent creation failed (%s)", entriesByID[dep].Row.Title)))
			continue
		}

		pace(ctx, remote)

		issue, diags := executeEntry(ctx, entry, entriesByID, created, remote, cache, led, opts, &result)
		result.Diagnostics = append(result.Diagnostics, diags...)
		if issue != nil {
			created[entry.ID] = issue
		}
		if issue == nil || hasError(diags) {
			failed[entry.ID] = true
		}
	}

	result.Status = types.StatusSuccess
	if hasError(result.Diagnostics) {
		result.Status = types.StatusPartial
	}
	return result
}

// PlanAndExecute builds the plan from a validation result and executes it,
// folding planning diagnostics into the import result.
func PlanAndExecute(ctx context.Context, validation types.ValidationResult, remote Remote, cache *StateCache, led *ledger.Ledger, opts Options) types.ImportResult {
	plan, planDiags := BuildPlan(validation)
	result := Execute(ctx, plan, remote, cache, led, opts)
	result.Diagnostics = append(planDiags, result.Diagnostics...)
	if hasError(result.Diagnostics) && result.Status == types.StatusSuccess {
		result.Status = types.StatusPartial
	}
	return result
}

// executeEntry creates one issue plus its supporting objects (missing
// labels, missing milestone, parent link) as a single logical unit: any
// failure inside it is the entry's failure.
func executeEntry(ctx context.Context, entry PlanEntry, entriesByID map[string]PlanEntry, created map[string]*github.Issue, remote Remote, cache *StateCache, led *ledger.Ledger, opts Options, result *types.ImportResult) (*github.Issue, []types.Diagnostic) {
	row := entry.Row
	var diags []types.Diagnostic

	labels := row.Labels
	if opts.ProjectLabel != "" {
		labels = appendUnique(labels, opts.ProjectLabel)
	}
	for _, label := range labels {
		if err := ensureLabel(ctx, remote, cache, row.Repository, label, opts); err != nil {
			return nil, append(diags, types.Errorf(row.SourceLine, "Labels", err.Error()))
		}
	}

	milestone := 0
	if row.Milestone != "" {
		number, err := ensureMilestone(ctx, remote, cache, row.Repository, row.Milestone, opts)
		if err != nil {
			return nil, append(diags, types.Errorf(row.SourceLine, "Milestone", err.Error()))
		}
		milestone = number
	}

	assignee := row.Assignee
	if assignee != "" {
		exists, err := cache.UserExists(ctx, remote, assignee)
		if err != nil || !exists {
			// Validation already warned; an unknown assignee must not sink
			// the whole row at create time.
			assignee = ""
		}
	}

	var issue *github.Issue
	err := withRetry(ctx, opts, func() error {
		var createErr error
		issue, createErr = remote.CreateIssue(ctx, row.Repository, github.IssueRequest{
			Title:     row.Title,
			Body:      row.Description,
			Labels:    labels,
			Assignee:  assignee,
			Milestone: milestone,
		})
		return createErr
	})
	if err != nil {
		return nil, append(diags, types.Errorf(row.SourceLine, "", err.Error()))
	}

	obj := types.CreatedObject{
		Ref:         strconv.Itoa(issue.Number),
		ObjectKind:  objectKind(entry.Op),
		Repository:  row.Repository,
		Timestamp:   time.Now().UTC(),
		PlanEntryID: entry.ID,
		URL:         issue.HTMLURL,
	}
	if err := led.Record(obj); err != nil {
		// The issue exists remotely but is no longer covered by rollback.
		diags = append(diags, types.Errorf(row.SourceLine, "",
			fmt.Sprintf("created issue #%d but failed to record it in the ledger: %v", issue.Number, err)))
	}
	result.Created = append(result.Created, obj)
	slog.Info("created issue", "row", row.SourceLine, "kind", obj.ObjectKind, "repo", row.Repository, "number", issue.Number)

	// Parent link is a follow-up call but part of this entry's outcome.
	if entry.Op == OpCreateTask && len(entry.DependsOn) > 0 {
		parentEntry := entriesByID[entry.DependsOn[0]]
		parent, ok := created[entry.DependsOn[0]]
		if !ok {
			// Parent IDs are only minted during execution; a missing one
			// here means the walk order is broken.
			diags = append(diags, types.Errorf(row.SourceLine, "Parent",
				fmt.Sprintf("internal: parent %q executed out of order", parentEntry.Row.Title)))
			return issue, diags
		}
		err := withRetry(ctx, opts, func() error {
			return remote.LinkParent(ctx, parentEntry.Row.Repository, parent.Number, issue.ID)
		})
		if err != nil {
			diags = append(diags, types.Errorf(row.SourceLine, "Parent",
				fmt.Sprintf("created issue #%d but failed to link it under %q: %v", issue.Number, parentEntry.Row.Title, err)))
		}
	}

	return issue, diags
}

func ensureLabel(ctx context.Context, remote Remote, cache *StateCache, repo, label string, opts Options) error {
	exists, err := cache.LabelExists(ctx, remote, repo, label)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := withRetry(ctx, opts, func() error {
		return remote.CreateLabel(ctx, repo, label)
	}); err != nil {
		return err
	}
	cache.MarkLabelCreated(repo, label)
	return nil
}

func ensureMilestone(ctx context.Context, remote Remote, cache *StateCache, repo, title string, opts Options) (int, error) {
	number, found, err := cache.MilestoneNumber(ctx, remote, repo, title)
	if err != nil {
		return 0, err
	}
	if found {
		return number, nil
	}
	if opts.FailOnMissingMilestone {
		return 0, fmt.Errorf("milestone %q not found in %s", title, repo)
	}
	err = withRetry(ctx, opts, func() error {
		var createErr error
		number, createErr = remote.CreateMilestone(ctx, repo, title)
		return createErr
	})
	if err != nil {
		return 0, err
	}
	cache.MarkMilestoneCreated(repo, title, number)
	return number, nil
}

// pace consults the remote quota before issuing the next entry's calls and
// waits out an exhausted window instead of burning it into 403s. Pacing
// never produces a diagnostic; it is cooperative throttling, not an error.
func pace(ctx context.Context, remote Remote) {
	status, err := remote.RateLimit(ctx)
	if err != nil {
		slog.Debug("rate limit check failed, proceeding", "error", err)
		return
	}
	if status.Remaining > 0 {
		return
	}
	wait := time.Until(status.ResetAt)
	if wait <= 0 {
		return
	}
	slog.Info("rate limit exhausted, pausing until reset", "reset_at", status.ResetAt)
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

// withRetry retries transient remote failures with exponential backoff up
// to opts.MaxRetryAttempts, then demotes them to permanent. Permanent
// failures stop immediately.
func withRetry(ctx context.Context, opts Options, op func() error) error {
	// BackOff implementations are stateful; always use a fresh instance.
	bo := backoff.NewExponentialBackOff()
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isTransient(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(opts.MaxRetryAttempts)), ctx))
}

// isTransient classifies a remote failure. Rate limiting, 5xx, and
// network-level errors are retryable; any other 4xx is a server-side
// rejection that will not succeed without input changes.
func isTransient(err error) bool {
	var apiErr *github.APIError
	if errors.As(err, &apiErr) {
		if apiErr.IsRateLimited() {
			return true
		}
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true // timeouts, connection resets, DNS blips
}

func failedDependency(entry PlanEntry, failed map[string]bool) (string, bool) {
	for _, dep := range entry.DependsOn {
		if failed[dep] {
			return dep, true
		}
	}
	return "", false
}

func hasError(diags []types.Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == types.SeverityError {
			return true
		}
	}
	return false
}

func appendUnique(labels []string, label string) []string {
	for _, l := range labels {
		if l == label {
			return labels
		}
	}
	out := make([]string, 0, len(labels)+1)
	out = append(out, labels...)
	return append(out, label)
}

func objectKind(op RemoteOp) string {
	if op == OpCreateEpic {
		return "epic"
	}
	return "task"
}
