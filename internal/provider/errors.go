package provider

import (
	"errors"
	"fmt"
	"time"
)

// AuthenticationError reports rejected or missing credentials. It is fatal
// for the call but soft for worktree creation, which degrades to a warning.
type AuthenticationError struct {
	Provider string
	Message  string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s authentication failed: %s", e.Provider, e.Message)
}

// RateLimitError reports that the tracker itself refused the request for
// pacing reasons, beyond our own client-side limiter.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Provider, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Provider)
}

// TransportError reports a network-level failure: timeout, refused
// connection, DNS.
type TransportError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s request timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IssueNotFoundError reports an issue id the tracker has no record of.
type IssueNotFoundError struct {
	Provider string
	ID       string
}

func (e *IssueNotFoundError) Error() string {
	return fmt.Sprintf("issue %s not found in %s", e.ID, e.Provider)
}

// IsUnavailable reports whether err is a soft provider failure: the kind a
// worktree creation survives with a warning instead of aborting.
func IsUnavailable(err error) bool {
	var (
		auth *AuthenticationError
		rate *RateLimitError
		tr   *TransportError
	)
	return errors.As(err, &auth) || errors.As(err, &rate) || errors.As(err, &tr)
}

// IsIssueNotFound reports whether err is an IssueNotFoundError.
func IsIssueNotFound(err error) bool {
	var nf *IssueNotFoundError
	return errors.As(err, &nf)
}
