// Package github tests run the client against local httptest servers; no
// network access is required.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"
)

func newTestClient(server *httptest.Server) *Client {
	return NewClient("test-token", "nimeshe").WithBaseURL(server.URL)
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-token", "nimeshe")

	if client.Token != "test-token" {
		t.Errorf("Token = %q, want %q", client.Token, "test-token")
	}
	if client.Owner != "nimeshe" {
		t.Errorf("Owner = %q, want %q", client.Owner, "nimeshe")
	}
	if client.BaseURL != DefaultAPIEndpoint {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL, DefaultAPIEndpoint)
	}
	if client.HTTPClient == nil {
		t.Error("HTTPClient is nil, want non-nil default client")
	}
}

func TestRequestHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want Bearer test-token", got)
		}
		if got := r.Header.Get("Accept"); got != "application/vnd.github+json" {
			t.Errorf("Accept = %q", got)
		}
		if got := r.Header.Get("X-GitHub-Api-Version"); got == "" {
			t.Error("X-GitHub-Api-Version not set")
		}
		_ = json.NewEncoder(w).Encode(User{Login: "alice"})
	}))
	defer server.Close()

	if _, err := newTestClient(server).ResolveUser(context.Background(), "alice"); err != nil {
		t.Fatalf("ResolveUser failed: %v", err)
	}
}

func TestResolveUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/users/alice" {
			_ = json.NewEncoder(w).Encode(User{ID: 7, Login: "alice"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer server.Close()
	client := newTestClient(server)

	login, err := client.ResolveUser(context.Background(), "alice")
	if err != nil {
		t.Fatalf("ResolveUser(alice) failed: %v", err)
	}
	if login != "alice" {
		t.Errorf("login = %q, want alice", login)
	}

	_, err = client.ResolveUser(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolveUser(ghost) = %v, want ErrNotFound", err)
	}
}

func TestResolveLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/nimeshe/portal/labels/backend" {
			_ = json.NewEncoder(w).Encode(Label{Name: "backend"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()
	client := newTestClient(server)

	exists, err := client.ResolveLabel(context.Background(), "portal", "backend")
	if err != nil || !exists {
		t.Errorf("ResolveLabel(backend) = %v, %v; want true, nil", exists, err)
	}

	exists, err = client.ResolveLabel(context.Background(), "portal", "nope")
	if err != nil || exists {
		t.Errorf("ResolveLabel(nope) = %v, %v; want false, nil", exists, err)
	}
}

func TestCreateLabel_ToleratesAlreadyExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Validation Failed","errors":[{"code":"already_exists"}]}`))
	}))
	defer server.Close()

	if err := newTestClient(server).CreateLabel(context.Background(), "portal", "backend"); err != nil {
		t.Errorf("CreateLabel on already_exists = %v, want nil", err)
	}
}

func TestResolveMilestone_Paginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if page == "1" {
			w.Header().Set("Link", `<`+r.Host+`?page=2>; rel="next"`)
			_ = json.NewEncoder(w).Encode([]Milestone{{Number: 1, Title: "Q1"}})
			return
		}
		_ = json.NewEncoder(w).Encode([]Milestone{{Number: 2, Title: "Q3"}})
	}))
	defer server.Close()
	client := newTestClient(server)

	number, err := client.ResolveMilestone(context.Background(), "portal", "Q3")
	if err != nil {
		t.Fatalf("ResolveMilestone failed: %v", err)
	}
	if number != 2 {
		t.Errorf("number = %d, want 2", number)
	}

	_, err = client.ResolveMilestone(context.Background(), "portal", "Q9")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ResolveMilestone(Q9) = %v, want ErrNotFound", err)
	}
}

func TestCreateIssue(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/repos/nimeshe/portal/issues" {
			t.Errorf("Path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(Issue{ID: 1042, Number: 42, Title: "Auth", HTMLURL: "https://example.com/42"})
	}))
	defer server.Close()

	issue, err := newTestClient(server).CreateIssue(context.Background(), "portal", IssueRequest{
		Title:     "Auth",
		Body:      "User authentication",
		Labels:    []string{"backend"},
		Assignee:  "alice",
		Milestone: 3,
	})
	if err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	if issue.Number != 42 || issue.ID != 1042 {
		t.Errorf("issue = %+v, want number 42 id 1042", issue)
	}
	if gotBody["title"] != "Auth" || gotBody["assignee"] != "alice" {
		t.Errorf("payload = %v", gotBody)
	}
	if gotBody["milestone"] != float64(3) {
		t.Errorf("milestone = %v, want 3", gotBody["milestone"])
	}
}

func TestCreateIssue_APIErrorCarriesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"Validation Failed"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).CreateIssue(context.Background(), "portal", IssueRequest{Title: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("StatusCode = %d, want 422", apiErr.StatusCode)
	}
	if !strings.Contains(apiErr.Message, "Validation Failed") {
		t.Errorf("Message = %q", apiErr.Message)
	}
}

func TestRateLimitedErrorExposesRetryHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(30*time.Second).Unix(), 10))
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server).ResolveUser(context.Background(), "alice")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if !apiErr.IsRateLimited() {
		t.Errorf("IsRateLimited() = false, want true for drained 403")
	}
	if apiErr.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", apiErr.RetryAfter)
	}
}

func TestLinkParent(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/nimeshe/portal/issues/42/sub_issues" {
			t.Errorf("Path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	if err := newTestClient(server).LinkParent(context.Background(), "portal", 42, 1077); err != nil {
		t.Fatalf("LinkParent failed: %v", err)
	}
	if gotBody["sub_issue_id"] != float64(1077) {
		t.Errorf("sub_issue_id = %v, want 1077", gotBody["sub_issue_id"])
	}
}

func TestDeleteIssue_ClosesAsNotPlanned(t *testing.T) {
	var gotBody map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("Method = %s, want PATCH", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(Issue{Number: 42, State: "closed"})
	}))
	defer server.Close()

	if err := newTestClient(server).DeleteIssue(context.Background(), "portal", 42); err != nil {
		t.Fatalf("DeleteIssue failed: %v", err)
	}
	if gotBody["state"] != "closed" || gotBody["state_reason"] != "not_planned" {
		t.Errorf("payload = %v", gotBody)
	}
}

func TestRateLimit(t *testing.T) {
	reset := time.Now().Add(20 * time.Minute).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rate_limit" {
			t.Errorf("Path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"resources":{"core":{"limit":5000,"remaining":4321,"reset":` + strconv.FormatInt(reset, 10) + `}}}`))
	}))
	defer server.Close()

	status, err := newTestClient(server).RateLimit(context.Background())
	if err != nil {
		t.Fatalf("RateLimit failed: %v", err)
	}
	if status.Remaining != 4321 {
		t.Errorf("Remaining = %d, want 4321", status.Remaining)
	}
	if status.ResetAt.Unix() != reset {
		t.Errorf("ResetAt = %v, want %d", status.ResetAt.Unix(), reset)
	}
}
