// Package github implements the GitHub issue provider over the REST v3 API.
// It registers itself as "github".
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/treeflow/treeflow/internal/config"
	"github.com/treeflow/treeflow/internal/provider"
	"github.com/treeflow/treeflow/internal/types"
)

// DefaultBaseURL is the GitHub REST API root.
const DefaultBaseURL = "https://api.github.com"

// MaxRetries bounds the retry loop for transient failures.
const MaxRetries = 3

func init() {
	provider.Register("github", func(ps config.ProviderSettings) (provider.IssueProvider, error) {
		if ps.APIKey == "" {
			return nil, fmt.Errorf("github provider requires a token")
		}
		if ps.Repo == "" || !strings.Contains(ps.Repo, "/") {
			return nil, fmt.Errorf("github provider requires repo in owner/name form, got %q", ps.Repo)
		}
		c := NewClient(ps.APIKey, ps.Repo).
			WithLimiter(provider.NewRateLimiter(ps.RequestsPerMinute))
		if ps.TimeoutSeconds > 0 {
			c.HTTPClient.Timeout = time.Duration(ps.TimeoutSeconds) * time.Second
		}
		return &Provider{client: c}, nil
	})
}

// Client is a minimal GitHub REST client scoped to one repository.
type Client struct {
	// Token is the bearer token for API requests.
	Token string
	// Repo is the target repository in owner/name form.
	Repo string
	// BaseURL is the API root, overridable for tests.
	BaseURL string
	// HTTPClient is the underlying HTTP client.
	HTTPClient *http.Client
	// Limiter paces every request; nil means no client-side pacing.
	Limiter *provider.RateLimiter
}

// NewClient creates a GitHub client for the given repository.
func NewClient(token, repo string) *Client {
	return &Client{
		Token:      token,
		Repo:       repo,
		BaseURL:    DefaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithBaseURL returns a copy of the client pointed at a different API root.
func (c *Client) WithBaseURL(base string) *Client {
	c2 := *c
	c2.BaseURL = strings.TrimSuffix(base, "/")
	return &c2
}

// WithHTTPClient returns a copy of the client using the given HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c2 := *c
	c2.HTTPClient = hc
	return &c2
}

// WithLimiter returns a copy of the client paced by the given limiter.
func (c *Client) WithLimiter(rl *provider.RateLimiter) *Client {
	c2 := *c
	c2.Limiter = rl
	return &c2
}

// do executes one REST request and decodes the JSON response into out.
// Transient failures retry with exponential backoff.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	var respBody []byte
	op := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.Token)
		req.Header.Set("Accept", "application/vnd.github+json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return c.transportError(err)
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return c.transportError(err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(&provider.AuthenticationError{
				Provider: "github",
				Message:  apiMessage(respBody),
			})
		case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
			// GitHub signals primary rate limiting with 403 and
			// X-RateLimit-Remaining: 0; everything else on 403 is auth.
			if resp.StatusCode == http.StatusTooManyRequests || resp.Header.Get("X-RateLimit-Remaining") == "0" {
				return backoff.Permanent(&provider.RateLimitError{
					Provider:   "github",
					RetryAfter: retryAfter(resp),
				})
			}
			return backoff.Permanent(&provider.AuthenticationError{
				Provider: "github",
				Message:  apiMessage(respBody),
			})
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(&provider.IssueNotFoundError{
				Provider: "github",
				ID:       path,
			})
		case resp.StatusCode >= 500:
			return &provider.TransportError{
				Provider: "github",
				Err:      fmt.Errorf("server error: %s", resp.Status),
			}
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("github API returned %s: %s", resp.Status, apiMessage(respBody)))
		}
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return err
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

func (c *Client) transportError(err error) error {
	timeout := false
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		timeout = true
	}
	te := &provider.TransportError{Provider: "github", Timeout: timeout, Err: err}
	if timeout {
		return backoff.Permanent(te)
	}
	return te
}

func apiMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err == nil && m.Message != "" {
		return m.Message
	}
	return strings.TrimSpace(string(body))
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}

// Provider implements provider.IssueProvider against GitHub issues.
type Provider struct {
	client *Client
}

// NewProvider wraps an existing client; used by tests.
func NewProvider(c *Client) *Provider {
	return &Provider{client: c}
}

func (p *Provider) Name() string { return "github" }

// ghIssue mirrors the REST issue payload.
type ghIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	State  string `json:"state"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Assignees []struct {
		Login string `json:"login"`
	} `json:"assignees"`
	HTMLURL   string    `json:"html_url"`
	Comments  int       `json:"comments"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Milestone *struct {
		Title string `json:"title"`
	} `json:"milestone"`
	PullRequest *struct{} `json:"pull_request"`
}

func (p *Provider) issuePath(id string) (string, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return "", fmt.Errorf("github issue id must be numeric, got %q", id)
	}
	return fmt.Sprintf("/repos/%s/issues/%d", p.client.Repo, n), nil
}

func (p *Provider) GetIssue(ctx context.Context, id string) (*types.Issue, error) {
	path, err := p.issuePath(id)
	if err != nil {
		return nil, err
	}
	var gi ghIssue
	if err := p.client.do(ctx, http.MethodGet, path, nil, &gi); err != nil {
		if provider.IsIssueNotFound(err) {
			return nil, &provider.IssueNotFoundError{Provider: "github", ID: id}
		}
		return nil, err
	}
	return transform(&gi), nil
}

func (p *Provider) ListIssues(ctx context.Context, opts provider.ListOptions) ([]*types.Issue, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = provider.DefaultListLimit
	}

	q := url.Values{}
	q.Set("per_page", strconv.Itoa(limit))
	switch opts.State {
	case types.IssueClosed:
		q.Set("state", "closed")
	case "":
		q.Set("state", "open")
	default:
		q.Set("state", string(opts.State))
	}
	if len(opts.Labels) > 0 {
		q.Set("labels", strings.Join(opts.Labels, ","))
	}
	if opts.Assignee != "" {
		q.Set("assignee", opts.Assignee)
	}

	var raw []*ghIssue
	path := fmt.Sprintf("/repos/%s/issues?%s", p.client.Repo, q.Encode())
	if err := p.client.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	issues := make([]*types.Issue, 0, len(raw))
	for _, gi := range raw {
		// The issues endpoint also returns pull requests; skip them.
		if gi.PullRequest != nil {
			continue
		}
		issues = append(issues, transform(gi))
	}
	return issues, nil
}

func (p *Provider) CreateIssue(ctx context.Context, draft types.IssueDraft) (*types.Issue, error) {
	body := map[string]interface{}{"title": draft.Title}
	if draft.Body != "" {
		body["body"] = draft.Body
	}
	if len(draft.Labels) > 0 {
		body["labels"] = draft.Labels
	}
	if len(draft.Assignees) > 0 {
		body["assignees"] = draft.Assignees
	}

	var gi ghIssue
	path := fmt.Sprintf("/repos/%s/issues", p.client.Repo)
	if err := p.client.do(ctx, http.MethodPost, path, body, &gi); err != nil {
		return nil, err
	}
	return transform(&gi), nil
}

func (p *Provider) UpdateIssue(ctx context.Context, id string, update types.IssueUpdate) (*types.Issue, error) {
	body := map[string]interface{}{}
	if update.Title != nil {
		body["title"] = *update.Title
	}
	if update.Body != nil {
		body["body"] = *update.Body
	}
	if len(body) == 0 {
		return p.GetIssue(ctx, id)
	}
	return p.patchIssue(ctx, id, body)
}

// CloseIssue closes the issue and returns the updated record.
func (p *Provider) CloseIssue(ctx context.Context, id string) (*types.Issue, error) {
	return p.patchIssue(ctx, id, map[string]interface{}{"state": "closed"})
}

func (p *Provider) patchIssue(ctx context.Context, id string, body map[string]interface{}) (*types.Issue, error) {
	path, err := p.issuePath(id)
	if err != nil {
		return nil, err
	}
	var gi ghIssue
	if err := p.client.do(ctx, http.MethodPatch, path, body, &gi); err != nil {
		if provider.IsIssueNotFound(err) {
			return nil, &provider.IssueNotFoundError{Provider: "github", ID: id}
		}
		return nil, err
	}
	return transform(&gi), nil
}

// transform maps a GitHub issue onto the provider-neutral model.
func transform(gi *ghIssue) *types.Issue {
	state := types.IssueOpen
	if gi.State == "closed" {
		state = types.IssueClosed
	}

	var labels []string
	for _, l := range gi.Labels {
		labels = append(labels, l.Name)
	}
	var assignees []string
	for _, a := range gi.Assignees {
		assignees = append(assignees, a.Login)
	}

	metadata := map[string]interface{}{
		"comments": gi.Comments,
	}
	if gi.Milestone != nil {
		metadata["milestone"] = gi.Milestone.Title
	}

	return &types.Issue{
		ID:        strconv.Itoa(gi.Number),
		Number:    gi.Number,
		Title:     gi.Title,
		Body:      gi.Body,
		State:     state,
		Labels:    labels,
		Assignees: assignees,
		URL:       gi.HTMLURL,
		CreatedAt: gi.CreatedAt,
		UpdatedAt: gi.UpdatedAt,
		Metadata:  metadata,
	}
}
