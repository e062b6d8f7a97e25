package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// DefaultMessage is shown when a failure carries no usable message.
const DefaultMessage = "request failed"

// TransportError means the request never produced an HTTP response
// (network, DNS, timeout) or the body could not be read.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means a response arrived but did not conform to the envelope
// or to the expected data shape.
type ProtocolError struct {
	StatusCode int
	Reason     string
	Err        error
}

func (e *ProtocolError) Error() string {
	msg := "malformed response"
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("malformed response (http %d)", e.StatusCode)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ApplicationError is an envelope with status "error", or any non-2xx
// response that carried an envelope.
type ApplicationError struct {
	StatusCode int
	RequestID  string
	Code       string
	Message    string
	Details    map[string]interface{}
	Retryable  bool
}

func (e *ApplicationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return e.Message
}

// ShouldRetry reports whether an automatic retry is allowed. The server's
// retryable flag is honoured, and 5xx, 408 and 429 are treated as transient.
func (e *ApplicationError) ShouldRetry() bool {
	if e.Retryable || e.StatusCode >= http.StatusInternalServerError {
		return true
	}
	return e.StatusCode == http.StatusRequestTimeout || e.StatusCode == http.StatusTooManyRequests
}

// DomainViolation means a well-formed response broke a modelled invariant.
// It is never retried and must be reported to the operator.
type DomainViolation struct {
	Entity string
	ID     string
	Reason string
}

func (e *DomainViolation) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("domain violation in %s %s: %s", e.Entity, e.ID, e.Reason)
	}
	return fmt.Sprintf("domain violation in %s: %s", e.Entity, e.Reason)
}

// Message returns the human-readable message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *ApplicationError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return DefaultMessage
}

// IsRetryable reports whether err may be recovered by trying again later.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var violation *DomainViolation
	if errors.As(err, &violation) {
		return false
	}
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr.ShouldRetry()
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return true
	}
	var protocolErr *ProtocolError
	return errors.As(err, &protocolErr)
}
