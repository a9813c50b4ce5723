// Package linear implements the Linear issue provider over Linear's GraphQL
// API. It registers itself as "linear".
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/treeflow/treeflow/internal/provider"
)

// DefaultAPIEndpoint is Linear's GraphQL endpoint.
const DefaultAPIEndpoint = "https://api.linear.app/graphql"

// MaxRetries bounds the retry loop for transient failures (network errors
// and 5xx responses). Auth failures and 4xx are never retried.
const MaxRetries = 3

// Client is a minimal Linear GraphQL client.
type Client struct {
	// APIKey is the Linear personal API key, sent as-is in Authorization.
	APIKey string
	// TeamID scopes list queries and is required for issue creation.
	TeamID string
	// Endpoint is the GraphQL endpoint, overridable for tests.
	Endpoint string
	// HTTPClient is the underlying HTTP client.
	HTTPClient *http.Client
	// Limiter paces every request; nil means no client-side pacing.
	Limiter *provider.RateLimiter
}

// NewClient creates a Linear client with the default endpoint and a 30s
// request timeout.
func NewClient(apiKey, teamID string) *Client {
	return &Client{
		APIKey:     apiKey,
		TeamID:     teamID,
		Endpoint:   DefaultAPIEndpoint,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithEndpoint returns a copy of the client pointed at a different endpoint.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c2 := *c
	c2.Endpoint = endpoint
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

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

// do executes one GraphQL request, decoding the data payload into out.
// Transient failures are retried with exponential backoff up to MaxRetries.
func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}
	}

	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	var data json.RawMessage
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", c.APIKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return c.transportError(err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return c.transportError(err)
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(&provider.AuthenticationError{
				Provider: "linear",
				Message:  strings.TrimSpace(string(respBody)),
			})
		case resp.StatusCode == http.StatusTooManyRequests:
			return backoff.Permanent(&provider.RateLimitError{
				Provider:   "linear",
				RetryAfter: retryAfter(resp),
			})
		case resp.StatusCode >= 500:
			return &provider.TransportError{
				Provider: "linear",
				Err:      fmt.Errorf("server error: %s", resp.Status),
			}
		case resp.StatusCode != http.StatusOK:
			return backoff.Permanent(fmt.Errorf("linear API returned %s: %s", resp.Status, respBody))
		}

		var gr graphqlResponse
		if err := json.Unmarshal(respBody, &gr); err != nil {
			return backoff.Permanent(fmt.Errorf("decoding response: %w", err))
		}
		if len(gr.Errors) > 0 {
			msgs := make([]string, len(gr.Errors))
			for i, e := range gr.Errors {
				msgs[i] = e.Message
			}
			return backoff.Permanent(fmt.Errorf("linear API error: %s", strings.Join(msgs, "; ")))
		}
		data = gr.Data
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return err
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response data: %w", err)
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
	te := &provider.TransportError{Provider: "linear", Timeout: timeout, Err: err}
	if timeout {
		return backoff.Permanent(te)
	}
	return te
}

func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return 0
}
