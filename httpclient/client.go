package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kbukum/streamkit/errors"
)

// maxErrorBody bounds how much of a failed response body is kept for diagnostics.
const maxErrorBody = 4 << 10

// Client opens streaming HTTP requests with shared auth, headers and cookies.
type Client struct {
	httpClient *http.Client
	config     Config
}

// New creates a new HTTP client with the given configuration.
func New(cfg Config) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.InvalidConfig("dial_timeout", err.Error())
	}

	transport := cfg.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.DialContext = (&net.Dialer{Timeout: cfg.DialTimeout}).DialContext
		transport = t
	}

	return &Client{
		// no client timeout: a stream lives until its context is cancelled
		httpClient: &http.Client{
			Transport: transport,
			Jar:       cfg.cookieJar(),
		},
		config: cfg,
	}, nil
}

// DoStream sends req and returns the response with its body unread.
// Non-2xx statuses are returned as HTTP_STATUS errors and the body is closed.
func (c *Client) DoStream(ctx context.Context, req Request) (*StreamResponse, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, httpReq.URL.String(), err)
	}

	if classErr := ClassifyStatusCode(resp.StatusCode, resp.Body); classErr != nil {
		_ = resp.Body.Close()
		if d, ok := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()); ok {
			if e, isErr := errors.As(classErr); isErr {
				e.WithRetryAfter(d)
			}
		}
		return nil, classErr
	}

	return &StreamResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       resp.Body,
	}, nil
}

// Unwrap returns the underlying *http.Client for advanced use cases.
func (c *Client) Unwrap() *http.Client {
	return c.httpClient
}

// ClassifyStatusCode returns nil for 2xx and 3xx, otherwise an HTTP_STATUS
// error carrying up to 4 KiB of body. 429 and 5xx are retryable. A body in
// the ErrorResponse shape also sets the server_code and server_message
// details and its retry hint.
func ClassifyStatusCode(status int, body io.Reader) error {
	if status < 400 {
		return nil
	}
	var raw []byte
	if body != nil {
		raw, _ = io.ReadAll(io.LimitReader(body, maxErrorBody))
	}
	e := errors.HTTPStatus(status, strings.TrimSpace(string(raw)))
	if server, ok := errors.ParseResponse(raw); ok {
		e.WithDetail("server_code", string(server.Code)).
			WithDetail("server_message", server.Message).
			WithRetryAfter(time.Duration(server.RetryAfterMs) * time.Millisecond)
	}
	return e
}

// parseRetryAfter reads a Retry-After header in delay-seconds or HTTP-date form.
func parseRetryAfter(v string, now time.Time) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, secs > 0
	}
	at, err := http.ParseTime(v)
	if err != nil {
		return 0, false
	}
	d := at.Sub(now)
	return d, d > 0
}

func classifyTransportError(ctx context.Context, url string, err error) error {
	if stderrors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	var netErr net.Error
	if ctx.Err() != nil || (stderrors.As(err, &netErr) && netErr.Timeout()) {
		return errors.Timeout("request").WithCause(err)
	}
	return errors.ConnectionFailed(url, err)
}

// buildRequest constructs an *http.Request from the client config and request.
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	url := req.Path
	if c.config.BaseURL != "" && !strings.HasPrefix(req.Path, "http://") && !strings.HasPrefix(req.Path, "https://") {
		url = strings.TrimRight(c.config.BaseURL, "/") + "/" + strings.TrimLeft(req.Path, "/")
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, errors.InvalidConfig("body", fmt.Sprintf("encode body: %v", err))
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.InvalidConfig("url", fmt.Sprintf("create request: %v", err))
	}

	if len(req.Query) > 0 {
		q := httpReq.URL.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		httpReq.URL.RawQuery = q.Encode()
	}

	for k, v := range c.config.Headers {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	if body != nil && httpReq.Header.Get("Content-Type") == "" && contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	// request-level auth overrides client-level
	auth := c.config.Auth
	if req.Auth != nil {
		auth = req.Auth
	}
	if err := auth.apply(httpReq); err != nil {
		return nil, errors.ConnectionFailed(url, fmt.Errorf("authenticate: %w", err))
	}

	return httpReq, nil
}

// encodeBody converts a body value into an io.Reader and content type.
func encodeBody(body any) (io.Reader, string, error) {
	if body == nil {
		return nil, "", nil
	}
	switch v := body.(type) {
	case io.Reader:
		return v, "", nil
	case []byte:
		return bytes.NewReader(v), "", nil
	case string:
		return strings.NewReader(v), "text/plain", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}
