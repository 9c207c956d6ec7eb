// Package errors defines the error taxonomy shared by the stream packages.
//
// Every failure surfaced by the library is an *Error carrying a
// machine-readable Code, a retryable flag and an optional cause. Configuration
// errors are returned from constructors and are never retried; transport
// errors drive the client's reconnect policy; parse errors and listener
// panics are logged and skipped.
package errors
