// Package github provides a client and data types for the GitHub REST API.
//
// The client covers the capability set the import engine needs: resolving
// users, labels, and milestones, creating labels, milestones, and issues,
// attaching sub-issues, closing issues, and reading rate-limit state. All
// repositories live under a single owner (user or org); the repository name
// is passed per call because one import run spans two repositories.
package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultLabelColor is used when auto-creating labels referenced by a
	// CSV that do not exist in the target repository yet.
	DefaultLabelColor = "cccccc"

	// MaxPageSize is the maximum number of items to fetch per page.
	MaxPageSize = 100

	// MaxPages bounds pagination to guard against malformed Link headers.
	MaxPages = 1000
)

// ErrNotFound is returned by the Resolve* methods when the remote object
// does not exist. It is a lookup outcome, not a request failure.
var ErrNotFound = errors.New("not found")

// Client provides methods to interact with the GitHub REST API.
type Client struct {
	Token      string       // GitHub personal access token
	Owner      string       // Repository owner (user or org)
	BaseURL    string       // API base URL (default: https://api.github.com)
	HTTPClient *http.Client // Optional custom HTTP client
}

// APIError is a non-2xx response from the GitHub API. The engine classifies
// failures as transient or permanent from the status code.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration // parsed Retry-After hint, 0 if absent
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s (status %d)", e.Message, e.StatusCode)
}

// IsRateLimited reports whether the error is a rate-limit rejection.
// GitHub signals this with 429, or 403 with X-RateLimit-Remaining: 0.
func (e *APIError) IsRateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.RetryAfter > 0
}

// Issue represents an issue from the GitHub API.
type Issue struct {
	ID        int        `json:"id"`     // Global unique ID (used by the sub-issue API)
	Number    int        `json:"number"` // Repository-scoped issue number
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"` // "open" or "closed"
	Labels    []Label    `json:"labels"`
	Assignee  *User      `json:"assignee,omitempty"`
	Milestone *Milestone `json:"milestone,omitempty"`
	HTMLURL   string     `json:"html_url"`
}

// User represents a GitHub user.
type User struct {
	ID      int    `json:"id"`
	Login   string `json:"login"`
	Name    string `json:"name,omitempty"`
	HTMLURL string `json:"html_url,omitempty"`
}

// Label represents a GitHub label.
type Label struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color"`
	Description string `json:"description,omitempty"`
}

// Milestone represents a GitHub milestone.
type Milestone struct {
	ID     int    `json:"id"`
	Number int    `json:"number"` // Repository-scoped; issue payloads reference this
	Title  string `json:"title"`
	State  string `json:"state"`
}

// IssueRequest is the payload for creating an issue.
type IssueRequest struct {
	Title     string   `json:"title"`
	Body      string   `json:"body,omitempty"`
	Labels    []string `json:"labels,omitempty"`
	Assignee  string   `json:"assignee,omitempty"`
	Milestone int      `json:"milestone,omitempty"` // milestone number, 0 = none
}

// RateLimitStatus is the core-resource quota reported by /rate_limit.
type RateLimitStatus struct {
	Remaining int       // calls left in the current window
	ResetAt   time.Time // when the window resets
}
