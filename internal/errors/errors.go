// Package errors provides error types and handling for talking to the tunnel agent.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorType categorizes errors for handling decisions.
type ErrorType int

const (
	// Unknown is an uncategorized error.
	Unknown ErrorType = iota
	// Network represents network-related errors (connection refused, reset).
	Network
	// Timeout represents timeout errors.
	Timeout
	// Status represents a non-2xx answer from the agent API.
	Status
	// Parse represents a status document that is not valid JSON.
	Parse
	// NoTunnels represents a valid document without a usable tunnel entry.
	NoTunnels
	// Cancelled represents context cancellation.
	Cancelled
)

// String returns the string representation of ErrorType.
func (t ErrorType) String() string {
	switch t {
	case Network:
		return "network"
	case Timeout:
		return "timeout"
	case Status:
		return "status"
	case Parse:
		return "parse"
	case NoTunnels:
		return "no_tunnels"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsRetryable returns whether errors of this type should be retried.
// The agent is usually still starting when a poll fails, so everything except
// cancellation is worth another attempt.
func (t ErrorType) IsRetryable() bool {
	return t != Cancelled
}

// AgentError represents a categorized failure of one agent API call.
type AgentError struct {
	Type       ErrorType
	URL        string
	Operation  string
	Message    string
	Cause      error
	StatusCode int
	Retryable  bool
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error during %s on %s: %s (caused by: %v)",
			e.Type.String(), e.Operation, e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error during %s on %s: %s",
		e.Type.String(), e.Operation, e.URL, e.Message)
}

// Unwrap returns the underlying error.
func (e *AgentError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target.
func (e *AgentError) Is(target error) bool {
	t, ok := target.(*AgentError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// NewAgentError creates a new AgentError.
func NewAgentError(errType ErrorType, url, operation, message string, cause error) *AgentError {
	return &AgentError{
		Type:      errType,
		URL:       url,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: errType.IsRetryable(),
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(url, operation string, cause error) *AgentError {
	return NewAgentError(Network, url, operation, "network failure", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(url, operation string, cause error) *AgentError {
	return NewAgentError(Timeout, url, operation, "request timed out", cause)
}

// NewStatusError creates an error for an unexpected HTTP status.
func NewStatusError(url string, statusCode int) *AgentError {
	err := NewAgentError(Status, url, "request", fmt.Sprintf("agent returned HTTP %d", statusCode), nil)
	err.StatusCode = statusCode
	return err
}

// NewParseError creates a parse error.
func NewParseError(url, operation string, cause error) *AgentError {
	return NewAgentError(Parse, url, operation, "invalid status document", cause)
}

// NewNoTunnelsError creates an error for a document without a usable tunnel.
func NewNoTunnelsError(url, reason string) *AgentError {
	return NewAgentError(NoTunnels, url, "decode", reason, nil)
}

// NewCancelledError creates a cancelled error.
func NewCancelledError(url, operation string) *AgentError {
	return NewAgentError(Cancelled, url, operation, "operation cancelled", nil)
}

// Categorize determines the error type from a generic error.
func Categorize(err error, url string) *AgentError {
	if err == nil {
		return nil
	}

	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr
	}

	if errors.Is(err, context.Canceled) {
		return NewCancelledError(url, "request")
	}

	if isTimeout(err) {
		return NewTimeoutError(url, "request", err)
	}

	if isNetworkError(err) {
		return NewNetworkError(url, "request", err)
	}

	return NewAgentError(Unknown, url, "request", err.Error(), err)
}

// CategorizeHTTPStatus creates an error from HTTP status code.
// It returns nil for 2xx codes.
func CategorizeHTTPStatus(statusCode int, url string) *AgentError {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return NewStatusError(url, statusCode)
}

// isTimeout checks if an error is a timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded")
}

// isNetworkError checks if an error is network-related.
func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	errStr := err.Error()
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp")
}

// IsRetryable checks if an error should be retried.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Retryable
	}

	return !errors.Is(err, context.Canceled)
}

// GetStatusCode extracts the status code from an error.
func GetStatusCode(err error) int {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.StatusCode
	}
	return 0
}

// GetErrorType extracts the error type from an error.
func GetErrorType(err error) ErrorType {
	var agentErr *AgentError
	if errors.As(err, &agentErr) {
		return agentErr.Type
	}
	return Unknown
}
