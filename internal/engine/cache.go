package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nimeshe/epicimport/internal/github"
)

// StateCache memoizes remote lookups of users, labels, and milestones for
// the lifetime of one run, so a CSV referencing the same assignee or label
// fifty times costs one API call. Entries are never persisted across runs.
//
// Writes are mutex-protected; the sequential executor and any future
// concurrent validation share one cache.
type StateCache struct {
	mu         sync.Mutex
	users      map[string]bool          // login -> exists
	labels     map[string]bool          // repo/name -> exists
	milestones map[string]milestoneHint // repo/title -> number or not-found
}

type milestoneHint struct {
	number int
	found  bool
}

// NewStateCache creates an empty run-scoped cache.
func NewStateCache() *StateCache {
	return &StateCache{
		users:      make(map[string]bool),
		labels:     make(map[string]bool),
		milestones: make(map[string]milestoneHint),
	}
}

func scopedKey(repo, name string) string {
	return repo + "/" + name
}

// UserExists resolves a login through the cache. Lookup failures other than
// not-found are returned and not cached, so a transient error does not pin a
// wrong answer for the rest of the run.
func (c *StateCache) UserExists(ctx context.Context, remote Remote, login string) (bool, error) {
	c.mu.Lock()
	if exists, ok := c.users[login]; ok {
		c.mu.Unlock()
		return exists, nil
	}
	c.mu.Unlock()

	_, err := remote.ResolveUser(ctx, login)
	if errors.Is(err, github.ErrNotFound) {
		c.set(func() { c.users[login] = false })
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("resolving user %q: %w", login, err)
	}
	c.set(func() { c.users[login] = true })
	return true, nil
}

// LabelExists resolves a repo-scoped label through the cache.
func (c *StateCache) LabelExists(ctx context.Context, remote Remote, repo, name string) (bool, error) {
	key := scopedKey(repo, name)
	c.mu.Lock()
	if exists, ok := c.labels[key]; ok {
		c.mu.Unlock()
		return exists, nil
	}
	c.mu.Unlock()

	exists, err := remote.ResolveLabel(ctx, repo, name)
	if err != nil {
		return false, fmt.Errorf("resolving label %q in %s: %w", name, repo, err)
	}
	c.set(func() { c.labels[key] = exists })
	return exists, nil
}

// MarkLabelCreated records a label the executor just created.
func (c *StateCache) MarkLabelCreated(repo, name string) {
	c.set(func() { c.labels[scopedKey(repo, name)] = true })
}

// MilestoneNumber resolves a repo-scoped milestone title through the cache.
// found is false when the milestone does not exist remotely.
func (c *StateCache) MilestoneNumber(ctx context.Context, remote Remote, repo, title string) (number int, found bool, err error) {
	key := scopedKey(repo, title)
	c.mu.Lock()
	if hint, ok := c.milestones[key]; ok {
		c.mu.Unlock()
		return hint.number, hint.found, nil
	}
	c.mu.Unlock()

	number, err = remote.ResolveMilestone(ctx, repo, title)
	if errors.Is(err, github.ErrNotFound) {
		c.set(func() { c.milestones[key] = milestoneHint{} })
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("resolving milestone %q in %s: %w", title, repo, err)
	}
	c.set(func() { c.milestones[key] = milestoneHint{number: number, found: true} })
	return number, true, nil
}

// MarkMilestoneCreated records a milestone the executor just created.
func (c *StateCache) MarkMilestoneCreated(repo, title string, number int) {
	c.set(func() { c.milestones[scopedKey(repo, title)] = milestoneHint{number: number, found: true} })
}

func (c *StateCache) set(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn()
}
