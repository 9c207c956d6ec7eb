package sse

import (
	"context"
	"io"

	"github.com/kbukum/streamkit/httpclient"
	"github.com/kbukum/streamkit/logger"
)

// Request describes one transport open.
type Request struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    any
	Auth    *httpclient.AuthConfig
	// LastEventID is the last id seen on a previous session, if any.
	LastEventID string
}

// Transport opens the byte stream of one session. Cancelling ctx must
// abort both the open and any pending read of the returned body.
type Transport interface {
	Open(ctx context.Context, req Request) (io.ReadCloser, error)
}

// HTTPTransport opens streams with an httpclient.Client. Its cookie jar,
// when enabled, is shared by every session of a client.
type HTTPTransport struct {
	client *httpclient.Client
	log    *logger.Logger
}

// NewHTTPTransport creates the default transport for cfg.
func NewHTTPTransport(cfg Config, log *logger.Logger) (*HTTPTransport, error) {
	if log == nil {
		log = logger.Nop()
	}
	client, err := httpclient.New(httpclient.Config{
		DialTimeout:     cfg.ConnectionTimeout,
		WithCredentials: cfg.WithCredentials,
		Headers: map[string]string{
			"Accept":        "text/event-stream",
			"Cache-Control": "no-cache",
		},
	})
	if err != nil {
		return nil, err
	}
	return &HTTPTransport{client: client, log: log}, nil
}

// Open sends the request and returns the response body.
func (t *HTTPTransport) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	headers := make(map[string]string, len(req.Headers)+1)
	for k, v := range req.Headers {
		headers[k] = v
	}
	if req.LastEventID != "" {
		headers["Last-Event-ID"] = req.LastEventID
	}

	resp, err := t.client.DoStream(ctx, httpclient.Request{
		Method:  req.Method,
		Path:    req.URL,
		Headers: headers,
		Body:    req.Body,
		Auth:    req.Auth,
	})
	if err != nil {
		return nil, err
	}
	if !resp.IsEventStream() {
		t.log.Debug("stream response is not text/event-stream", logger.Fields(
			logger.FieldURL, req.URL,
			"content_type", resp.ContentType(),
		))
	}
	return resp.Body, nil
}
