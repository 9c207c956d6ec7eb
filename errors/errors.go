package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Error is the unified stream error type.
type Error struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if a reconnect may succeed.
	Retryable bool `json:"retryable"`
	// StatusCode is the HTTP status that caused the error, if any.
	StatusCode int `json:"status_code,omitempty"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new Error with automatic retryable detection.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// InvalidConfig creates an error for a configuration field that failed validation.
func InvalidConfig(field, reason string) *Error {
	e := &Error{Code: ErrCodeInvalidConfig, Message: fmt.Sprintf("invalid config: %s", reason)}
	if field != "" {
		e.WithDetail("field", field)
	}
	return e
}

// UnsupportedTransport creates an error for an unknown dialect or method.
func UnsupportedTransport(kind, value string) *Error {
	return &Error{
		Code:    ErrCodeUnsupportedTransport,
		Message: fmt.Sprintf("unsupported %s %q", kind, value),
		Details: map[string]any{kind: value},
	}
}

// ConnectionFailed creates a retryable error for a broken or refused transport.
func ConnectionFailed(url string, cause error) *Error {
	return &Error{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("connection to %s failed", url),
		Retryable: true, Details: map[string]any{"url": url}, Cause: cause,
	}
}

// Timeout creates a retryable error for a timer that fired before progress was made.
func Timeout(operation string) *Error {
	return &Error{
		Code: ErrCodeTimeout, Message: fmt.Sprintf("%s timed out", operation),
		Retryable: true, Details: map[string]any{"operation": operation},
	}
}

// HTTPStatus creates an error for a non-success response. 429 and 5xx are retryable.
func HTTPStatus(status int, body string) *Error {
	e := &Error{
		Code:       ErrCodeHTTPStatus,
		Message:    fmt.Sprintf("server returned %d %s", status, http.StatusText(status)),
		StatusCode: status,
		Retryable:  status == http.StatusTooManyRequests || status >= 500,
	}
	if body != "" {
		e.WithDetail("body", body)
	}
	return e
}

// StreamEnded creates a retryable error for a stream closed by the server before completion.
func StreamEnded() *Error {
	return &Error{Code: ErrCodeStreamEnded, Message: "stream ended unexpectedly", Retryable: true}
}

// Closed creates an error for operations attempted on a destroyed client.
func Closed() *Error {
	return &Error{Code: ErrCodeClosed, Message: "client is closed"}
}

// Parse creates an error for a frame that could not be decoded.
func Parse(dialect string, cause error) *Error {
	return &Error{
		Code: ErrCodeParse, Message: fmt.Sprintf("failed to parse %s frame", dialect),
		Details: map[string]any{"dialect": dialect}, Cause: cause,
	}
}

// ListenerPanic creates an error describing a recovered subscriber panic.
func ListenerPanic(eventType string, recovered any) *Error {
	return &Error{
		Code: ErrCodeListenerPanic, Message: fmt.Sprintf("listener for %q panicked: %v", eventType, recovered),
		Details: map[string]any{"event_type": eventType},
	}
}

// FallbackOverflow creates an error for raw-text accumulation beyond limit bytes.
func FallbackOverflow(limit int) *Error {
	return &Error{
		Code: ErrCodeFallbackOverflow, Message: fmt.Sprintf("raw text fallback exceeded %d bytes", limit),
		Details: map[string]any{"limit": limit},
	}
}

// As converts an error to an *Error if possible.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// IsRetryable reports whether err is marked retryable. Errors that are not
// an *Error are treated as retryable transport failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return true
}
