package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nimeshe/epicimport/internal/github"
)

// stubRemote is an in-memory Remote for engine tests. Behavior hooks
// override individual operations; everything else succeeds.
type stubRemote struct {
	mu    sync.Mutex
	calls []string // ordered call log, e.g. "create_issue:repo-a:Auth"

	users      map[string]bool // nil means every user exists
	labels     map[string]bool // "repo/name" -> exists
	milestones map[string]int  // "repo/title" -> number

	createIssueFn func(repo string, req github.IssueRequest) (*github.Issue, error)
	linkParentFn  func(repo string, parentNumber, childID int) error
	deleteIssueFn func(repo string, number int) error
	rateLimitFn   func() (*github.RateLimitStatus, error)

	nextNumber int
}

func newStubRemote() *stubRemote {
	return &stubRemote{
		labels:     make(map[string]bool),
		milestones: make(map[string]int),
	}
}

func (s *stubRemote) log(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, fmt.Sprintf(format, args...))
}

func (s *stubRemote) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubRemote) ResolveUser(ctx context.Context, login string) (string, error) {
	s.log("resolve_user:%s", login)
	if s.users == nil {
		return login, nil
	}
	if s.users[login] {
		return login, nil
	}
	return "", github.ErrNotFound
}

func (s *stubRemote) ResolveLabel(ctx context.Context, repo, name string) (bool, error) {
	s.log("resolve_label:%s:%s", repo, name)
	return s.labels[repo+"/"+name], nil
}

func (s *stubRemote) CreateLabel(ctx context.Context, repo, name string) error {
	s.log("create_label:%s:%s", repo, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels[repo+"/"+name] = true
	return nil
}

func (s *stubRemote) ResolveMilestone(ctx context.Context, repo, title string) (int, error) {
	s.log("resolve_milestone:%s:%s", repo, title)
	if number, ok := s.milestones[repo+"/"+title]; ok {
		return number, nil
	}
	return 0, github.ErrNotFound
}

func (s *stubRemote) CreateMilestone(ctx context.Context, repo, title string) (int, error) {
	s.log("create_milestone:%s:%s", repo, title)
	s.mu.Lock()
	defer s.mu.Unlock()
	number := len(s.milestones) + 1
	s.milestones[repo+"/"+title] = number
	return number, nil
}

func (s *stubRemote) CreateIssue(ctx context.Context, repo string, req github.IssueRequest) (*github.Issue, error) {
	s.log("create_issue:%s:%s", repo, req.Title)
	if s.createIssueFn != nil {
		return s.createIssueFn(repo, req)
	}
	return s.mintIssue(req), nil
}

// mintIssue fabricates the next issue with distinct global and
// repo-scoped identifiers.
func (s *stubRemote) mintIssue(req github.IssueRequest) *github.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextNumber++
	return &github.Issue{
		ID:     1000 + s.nextNumber,
		Number: s.nextNumber,
		Title:  req.Title,
		State:  "open",
	}
}

func (s *stubRemote) LinkParent(ctx context.Context, repo string, parentNumber, childID int) error {
	s.log("link_parent:%s:%d:%d", repo, parentNumber, childID)
	if s.linkParentFn != nil {
		return s.linkParentFn(repo, parentNumber, childID)
	}
	return nil
}

func (s *stubRemote) DeleteIssue(ctx context.Context, repo string, number int) error {
	s.log("delete_issue:%s:%d", repo, number)
	if s.deleteIssueFn != nil {
		return s.deleteIssueFn(repo, number)
	}
	return nil
}

func (s *stubRemote) RateLimit(ctx context.Context) (*github.RateLimitStatus, error) {
	if s.rateLimitFn != nil {
		return s.rateLimitFn()
	}
	return &github.RateLimitStatus{Remaining: 5000, ResetAt: time.Now().Add(time.Hour)}, nil
}
