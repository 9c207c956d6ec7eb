package httpclient

import (
	"io"
	"mime"
	"net/http"
)

// Request describes an outbound streaming request.
type Request struct {
	// Method is the HTTP method. Defaults to GET.
	Method string
	// Path is appended to the client's BaseURL. Can be a full URL.
	Path string
	// Headers are request-specific headers (merged over client defaults).
	Headers map[string]string
	// Query are URL query parameters.
	Query map[string]string
	// Body accepts io.Reader, []byte, string, or any value that will be JSON-encoded.
	Body any
	// Auth overrides the client-level auth for this request.
	Auth *AuthConfig
}

// StreamResponse wraps an open streaming response. The caller must Close it.
type StreamResponse struct {
	StatusCode int
	Headers    http.Header
	// Body is the unread response body.
	Body io.ReadCloser
}

// ContentType returns the media type of the response without parameters.
func (r *StreamResponse) ContentType() string {
	mt, _, err := mime.ParseMediaType(r.Headers.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// IsEventStream reports whether the server declared text/event-stream.
func (r *StreamResponse) IsEventStream() bool {
	return r.ContentType() == "text/event-stream"
}

// Close releases the connection.
func (r *StreamResponse) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}
