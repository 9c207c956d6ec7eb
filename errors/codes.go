package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Configuration errors (never retried)
const (
	// ErrCodeInvalidConfig indicates a stream or client configuration failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeUnsupportedTransport indicates an unknown framing dialect or HTTP method.
	ErrCodeUnsupportedTransport ErrorCode = "UNSUPPORTED_TRANSPORT"
)

// Transport errors
const (
	// ErrCodeConnectionFailed indicates the transport could not be opened or broke mid-stream.
	ErrCodeConnectionFailed ErrorCode = "CONNECTION_FAILED"
	// ErrCodeTimeout indicates the connection or idle timeout fired.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeHTTPStatus indicates the server answered with a non-success status.
	ErrCodeHTTPStatus ErrorCode = "HTTP_STATUS"
	// ErrCodeStreamEnded indicates the server closed the stream before completion.
	ErrCodeStreamEnded ErrorCode = "STREAM_ENDED"
	// ErrCodeClosed indicates an operation on a destroyed client.
	ErrCodeClosed ErrorCode = "CLOSED"
)

// Decode and dispatch errors
const (
	// ErrCodeParse indicates a frame could not be decoded.
	ErrCodeParse ErrorCode = "PARSE_ERROR"
	// ErrCodeListenerPanic indicates a subscriber callback panicked.
	ErrCodeListenerPanic ErrorCode = "LISTENER_PANIC"
	// ErrCodeFallbackOverflow indicates raw-text fallback exceeded its size cap.
	ErrCodeFallbackOverflow ErrorCode = "FALLBACK_OVERFLOW"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeConnectionFailed: true,
	ErrCodeTimeout:          true,
	ErrCodeStreamEnded:      true,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
