package client

import (
	"fmt"
)

// ValidationError reports a client-side pre-check failure. No network
// request is made when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthError reports a missing, expired, or rejected expert session. The
// caller is expected to redirect to the login flow.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// SubmissionError reports a failed review submission. It carries the
// server message when one was provided; the user may retry manually.
type SubmissionError struct {
	Message string
}

func (e *SubmissionError) Error() string {
	return e.Message
}

// ClaimConflictError reports a claim lost to another expert. The message
// is the server's, verbatim; callers should refresh their queue view.
type ClaimConflictError struct {
	Message string
}

func (e *ClaimConflictError) Error() string {
	return e.Message
}

// NotFoundError reports a fetch for a nonexistent or inaccessible review.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// APIError reports any other server-side failure, with the server message
// when available.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}
