// Package apierr classifies pipeline errors into the semantic kinds
// the orchestrator's propagation policy dispatches on. It generalizes
// the teacher's typed httpError pattern (internal/fetch/fetch.go) into
// named error kinds shared across the whole pipeline.
package apierr

import (
	"context"
	"errors"
	"fmt"
)

// Kind names a semantic error category, not a Go type.
type Kind string

const (
	Validation           Kind = "validation"
	Cancelled            Kind = "cancelled"
	Timeout              Kind = "timeout"
	UpstreamTransient    Kind = "upstream_transient"
	UpstreamNonRetryable Kind = "upstream_non_retryable"
	BudgetExceeded       Kind = "budget_exceeded"
	ParserFailure        Kind = "parser_failure"
	StorageError         Kind = "storage_error"
	BinaryContent        Kind = "binary_content"
)

// Error wraps an underlying error with a Kind and optional HTTP-like
// status code, so callers up the stack can branch on Kind without
// string matching.
type Error struct {
	Kind    Kind
	Status  int // upstream HTTP status, if applicable; 0 otherwise
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping err.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithStatus attaches an upstream HTTP status code.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// KindOf extracts the Kind of err if it (or something it wraps) is an
// *Error; otherwise returns the empty Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsRetryable reports whether an error of this kind should be retried
// per the retry/backoff policy in §5.
func IsRetryable(err error) bool {
	return KindOf(err) == UpstreamTransient
}

// IsCancelled reports whether err represents a cancelled or timed-out
// operation, including a bare context.Canceled/DeadlineExceeded that
// was never wrapped into an *Error by the call site that returned it.
func IsCancelled(err error) bool {
	k := KindOf(err)
	if k == Cancelled || k == Timeout {
		return true
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// StatusForUpstream classifies an upstream HTTP status code into a
// retryable-transient or terminal-non-retryable Kind per §4.4/§7.
func StatusForUpstream(status int) Kind {
	switch {
	case status == 429 || status >= 500:
		return UpstreamTransient
	case status == 400 || status == 401 || status == 404:
		return UpstreamNonRetryable
	default:
		return UpstreamNonRetryable
	}
}
