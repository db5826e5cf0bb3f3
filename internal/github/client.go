package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"
)

// NewClient creates a new GitHub client for the given owner.
func NewClient(token, owner string) *Client {
	return &Client{
		Token:   token,
		Owner:   owner,
		BaseURL: DefaultAPIEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a new client with a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		BaseURL:    c.BaseURL,
		HTTPClient: httpClient,
	}
}

// WithBaseURL returns a new client with a custom base URL (for testing or
// GitHub Enterprise).
func (c *Client) WithBaseURL(baseURL string) *Client {
	return &Client{
		Token:      c.Token,
		Owner:      c.Owner,
		BaseURL:    baseURL,
		HTTPClient: c.HTTPClient,
	}
}

// repoPath returns the "owner/repo" path segment.
func (c *Client) repoPath(repo string) string {
	return c.Owner + "/" + repo
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path

	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	return u
}

// doRequest performs a single authenticated HTTP request. Retry policy lives
// in the import executor, not here: the executor owns backoff and pacing so
// that one create operation is never silently attempted twice.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, http.Header, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}

	const maxResponseSize = 50 * 1024 * 1024
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
		// GitHub signals rate limiting with 429, or 403 plus a drained
		// X-RateLimit-Remaining header.
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil {
				apiErr.RetryAfter = time.Duration(seconds) * time.Second
			}
		} else if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
			if resetAt := resp.Header.Get("X-RateLimit-Reset"); resetAt != "" {
				if epoch, err := strconv.ParseInt(resetAt, 10, 64); err == nil {
					if wait := time.Until(time.Unix(epoch, 0)); wait > 0 {
						apiErr.RetryAfter = wait
					} else {
						apiErr.RetryAfter = time.Second
					}
				}
			}
		}
		return nil, resp.Header, apiErr
	}

	return respBody, resp.Header, nil
}

// errorMessage extracts the "message" field from a GitHub error response,
// falling back to the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(body)
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextPage checks the Link header for a next page URL and returns it.
func hasNextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// isNotFound reports whether err is a 404 API error.
func isNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// ResolveUser looks up a GitHub account by login. Returns ErrNotFound when
// the account does not exist.
func (c *Client) ResolveUser(ctx context.Context, login string) (string, error) {
	urlStr := c.buildURL("/users/"+url.PathEscape(login), nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if isNotFound(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve user %q: %w", login, err)
	}

	var user User
	if err := json.Unmarshal(respBody, &user); err != nil {
		return "", fmt.Errorf("failed to parse user response: %w", err)
	}
	return user.Login, nil
}

// ResolveLabel reports whether a label exists in the repository.
func (c *Client) ResolveLabel(ctx context.Context, repo, name string) (bool, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath(repo)+"/labels/"+url.PathEscape(name), nil)
	_, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to resolve label %q in %s: %w", name, repo, err)
	}
	return true, nil
}

// CreateLabel creates a label with the default color.
func (c *Client) CreateLabel(ctx context.Context, repo, name string) error {
	reqBody := map[string]interface{}{
		"name":  name,
		"color": DefaultLabelColor,
	}
	urlStr := c.buildURL("/repos/"+c.repoPath(repo)+"/labels", nil)
	_, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody)
	if err != nil {
		// Racing creators are fine: the label existing is the goal.
		if apiErr, ok := err.(*APIError); ok && apiErr.StatusCode == http.StatusUnprocessableEntity {
			return nil
		}
		return fmt.Errorf("failed to create label %q in %s: %w", name, repo, err)
	}
	return nil
}

// ResolveMilestone finds a milestone by title and returns its number.
// Returns ErrNotFound when no open or closed milestone matches.
func (c *Client) ResolveMilestone(ctx context.Context, repo, title string) (int, error) {
	page := 1
	for {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}

		params := map[string]string{
			"state":    "all",
			"per_page": strconv.Itoa(MaxPageSize),
			"page":     strconv.Itoa(page),
		}
		urlStr := c.buildURL("/repos/"+c.repoPath(repo)+"/milestones", params)
		respBody, headers, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to list milestones in %s: %w", repo, err)
		}

		var milestones []Milestone
		if err := json.Unmarshal(respBody, &milestones); err != nil {
			return 0, fmt.Errorf("failed to parse milestones response: %w", err)
		}
		for _, m := range milestones {
			if m.Title == title {
				return m.Number, nil
			}
		}

		if _, ok := hasNextPage(headers); !ok {
			return 0, ErrNotFound
		}
		page++
		if page > MaxPages {
			return 0, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}
}

// CreateMilestone creates a milestone and returns its number.
func (c *Client) CreateMilestone(ctx context.Context, repo, title string) (int, error) {
	reqBody := map[string]interface{}{
		"title": title,
	}
	urlStr := c.buildURL("/repos/"+c.repoPath(repo)+"/milestones", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create milestone %q in %s: %w", title, repo, err)
	}

	var milestone Milestone
	if err := json.Unmarshal(respBody, &milestone); err != nil {
		return 0, fmt.Errorf("failed to parse create response: %w", err)
	}
	return milestone.Number, nil
}

// CreateIssue creates a new issue in the repository.
func (c *Client) CreateIssue(ctx context.Context, repo string, req IssueRequest) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath(repo)+"/issues", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue in %s: %w", repo, err)
	}

	var issue Issue
	if err := json.Unmarshal(respBody, &issue); err != nil {
		return nil, fmt.Errorf("failed to parse create response: %w", err)
	}
	return &issue, nil
}

// LinkParent attaches a child issue under a parent via the sub-issue API.
// parentNumber is the parent's repository-scoped number in repo; childID is
// the child's global issue ID (Issue.ID, not Number), which lets the child
// live in a different repository of the same owner.
func (c *Client) LinkParent(ctx context.Context, repo string, parentNumber, childID int) error {
	reqBody := map[string]interface{}{
		"sub_issue_id": childID,
	}
	urlStr := c.buildURL("/repos/"+c.repoPath(repo)+"/issues/"+strconv.Itoa(parentNumber)+"/sub_issues", nil)
	_, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody)
	if err != nil {
		return fmt.Errorf("failed to link issue %d under #%d in %s: %w", childID, parentNumber, repo, err)
	}
	return nil
}

// DeleteIssue closes an issue as not planned. GitHub's REST API cannot hard
// delete issues, so rollback compensates by closing.
func (c *Client) DeleteIssue(ctx context.Context, repo string, number int) error {
	reqBody := map[string]interface{}{
		"state":        "closed",
		"state_reason": "not_planned",
	}
	urlStr := c.buildURL("/repos/"+c.repoPath(repo)+"/issues/"+strconv.Itoa(number), nil)
	_, _, err := c.doRequest(ctx, http.MethodPatch, urlStr, reqBody)
	if err != nil {
		return fmt.Errorf("failed to close issue #%d in %s: %w", number, repo, err)
	}
	return nil
}

// RateLimit reports the remaining core-API quota and its reset time.
func (c *Client) RateLimit(ctx context.Context) (*RateLimitStatus, error) {
	urlStr := c.buildURL("/rate_limit", nil)
	respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch rate limit: %w", err)
	}

	var payload struct {
		Resources struct {
			Core struct {
				Remaining int   `json:"remaining"`
				Reset     int64 `json:"reset"`
			} `json:"core"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse rate limit response: %w", err)
	}

	return &RateLimitStatus{
		Remaining: payload.Resources.Core.Remaining,
		ResetAt:   time.Unix(payload.Resources.Core.Reset, 0),
	}, nil
}
