package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorClass categorizes fetch failures so callers can distinguish
// retryable transport conditions from terminal ones.
type ErrorClass string

const (
	// ClassTransport indicates a network failure, timeout, or non-2xx
	// status with no structured body (retryable).
	ClassTransport ErrorClass = "transport"

	// ClassMalformed indicates a payload that could not be decoded into
	// the expected shape (terminal for this response).
	ClassMalformed ErrorClass = "malformed"

	// ClassValidation indicates the request was rejected before any
	// outbound call was made.
	ClassValidation ErrorClass = "validation"
)

// Common fetch errors for errors.Is matching.
var (
	// ErrEmptyLocator indicates a fetch was attempted with no locator.
	ErrEmptyLocator = errors.New("empty locator")

	// ErrRateLimited indicates the outbound token bucket rejected the
	// request before its deadline.
	ErrRateLimited = errors.New("outbound rate limit exceeded")
)

// Error is the structured failure type produced by the fetch pipeline.
// It carries the locator for diagnostics and a class for retry decisions.
type Error struct {
	Class   ErrorClass
	Locator string
	Message string
	Err     error
}

// Error returns the formatted failure with its classification.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s: %v", e.Class, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s", e.Class, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is / errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether a fresh attempt could succeed. Only transport
// failures are retryable; they are never cached, so the next call goes back
// to the network.
func (e *Error) Retryable() bool { return e.Class == ClassTransport }

// classify wraps err as a fetch Error, preserving an existing classification
// and recognizing timeouts and cancellation as transport conditions.
func classify(locator string, err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	class := ClassTransport
	msg := "request failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	default:
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			msg = "request timed out"
		}
	}
	return &Error{Class: class, Locator: locator, Message: msg, Err: err}
}
