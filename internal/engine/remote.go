// Package engine implements the validation-and-import pipeline: reconciling
// parsed CSV rows against live GitHub state, building a dependency-ordered
// creation plan, and executing that plan with per-row failure isolation and
// rollback bookkeeping.
package engine

import (
	"context"

	"github.com/nimeshe/epicimport/internal/github"
)

// Remote is the capability set the engine needs from the issue tracker.
// *github.Client satisfies it; tests substitute a stub.
type Remote interface {
	ResolveUser(ctx context.Context, login string) (string, error)
	ResolveLabel(ctx context.Context, repo, name string) (bool, error)
	ResolveMilestone(ctx context.Context, repo, title string) (int, error)
	CreateLabel(ctx context.Context, repo, name string) error
	CreateMilestone(ctx context.Context, repo, title string) (int, error)
	CreateIssue(ctx context.Context, repo string, req github.IssueRequest) (*github.Issue, error)
	LinkParent(ctx context.Context, repo string, parentNumber, childID int) error
	DeleteIssue(ctx context.Context, repo string, number int) error
	RateLimit(ctx context.Context) (*github.RateLimitStatus, error)
}

var _ Remote = (*github.Client)(nil)
