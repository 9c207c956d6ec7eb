package workflow

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/httpclient"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/resilience"
	"github.com/kbukum/streamkit/sse"
	"github.com/kbukum/streamkit/validation"
	"go.opentelemetry.io/otel/attribute"
)

// Endpoint paths relative to Config.BaseURL.
const (
	PathRun  = "workflows/run"
	PathChat = "chat-messages"
)

const (
	defaultIdleTimeout = 30 * time.Second
	readBufferSize     = 4 << 10
)

// Config configures the workflow API client.
type Config struct {
	BaseURL string `json:"base_url" mapstructure:"base_url" validate:"required,stream_url"`
	APIKey  string `json:"api_key" mapstructure:"api_key" validate:"required"`
	// Timeout is the longest gap allowed between two reads of a stream. Defaults to 30s.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// OpenAttempts bounds attempts to open a stream on retryable failures. Defaults to 1.
	OpenAttempts int `json:"open_attempts" mapstructure:"open_attempts" validate:"min=0"`
	// MaxFallbackBytes caps raw-text fallback per stream. Defaults to 1 MiB.
	MaxFallbackBytes int `json:"max_fallback_bytes" mapstructure:"max_fallback_bytes"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = defaultIdleTimeout
	}
	if c.OpenAttempts <= 0 {
		c.OpenAttempts = 1
	}
	if c.MaxFallbackBytes == 0 {
		c.MaxFallbackBytes = DefaultMaxFallbackBytes
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	return validation.Validate(c)
}

// Params is the request body of a streaming workflow or chat call.
type Params struct {
	Inputs         map[string]any `json:"inputs"`
	Query          string         `json:"query,omitempty"`
	User           string         `json:"user,omitempty"`
	ConversationID string         `json:"conversation_id,omitempty"`
	// Extra holds additional top-level fields. Known fields win on conflict.
	Extra map[string]any `json:"-"`
}

// MarshalJSON merges Extra into the body and forces streaming response mode.
func (p Params) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(p.Extra)+5)
	for k, v := range p.Extra {
		body[k] = v
	}
	inputs := p.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	body["inputs"] = inputs
	body["response_mode"] = "streaming"
	if p.Query != "" {
		body["query"] = p.Query
	}
	if p.User != "" {
		body["user"] = p.User
	}
	if p.ConversationID != "" {
		body["conversation_id"] = p.ConversationID
	}
	return json.Marshal(body)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client logger.
func WithClientLogger(l *logger.Logger) ClientOption {
	return func(c *Client) { c.log = l }
}

// WithHTTPTransport overrides the HTTP round tripper.
func WithHTTPTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) { c.transport = rt }
}

// WithRetryBackoff sets the backoff between open attempts.
func WithRetryBackoff(b resilience.Backoff) ClientOption {
	return func(c *Client) { c.backoff = b }
}

// Client calls the streaming endpoints of a workflow backend. Each call is
// one blocking session that returns when the stream ends.
type Client struct {
	config    Config
	http      *httpclient.Client
	log       *logger.Logger
	transport http.RoundTripper
	backoff   resilience.Backoff
}

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config, opts ...ClientOption) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		config:  cfg,
		log:     logger.WithComponent("workflow"),
		backoff: resilience.DefaultBackoff(),
	}
	for _, opt := range opts {
		opt(c)
	}

	hc, err := httpclient.New(httpclient.Config{
		BaseURL:   cfg.BaseURL,
		Auth:      httpclient.BearerAuth(cfg.APIKey),
		Headers:   map[string]string{"Accept": "text/event-stream"},
		Transport: c.transport,
	})
	if err != nil {
		return nil, err
	}
	c.http = hc
	return c, nil
}

// RunStream executes the default workflow and returns the accumulated answer.
func (c *Client) RunStream(ctx context.Context, p Params, h Handlers) (string, error) {
	return c.stream(ctx, PathRun, p, h)
}

// RunByIDStream executes the workflow with the given id.
func (c *Client) RunByIDStream(ctx context.Context, id string, p Params, h Handlers) (string, error) {
	if id == "" {
		return "", errors.InvalidConfig("workflow_id", "workflow id is required")
	}
	return c.stream(ctx, PathRun+"/"+url.PathEscape(id), p, h)
}

// ChatStream sends a chat message and streams the reply.
func (c *Client) ChatStream(ctx context.Context, p Params, h Handlers) (string, error) {
	return c.stream(ctx, PathChat, p, h)
}

// StreamConfig returns an sse.Config that streams path through an
// sse.Client instead: chunked dialect, POST with p as body, no reconnect.
// Attach a Decoder with sse.WithDecoder to get typed callbacks.
func (c *Client) StreamConfig(path string, p Params) sse.Config {
	cfg := sse.Config{
		URL:     strings.TrimSuffix(c.config.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/"),
		Dialect: frame.DialectChunked,
		Method:  http.MethodPost,
		Timeout: c.config.Timeout,
		Body:    p,
		Auth:    httpclient.BearerAuth(c.config.APIKey),
	}
	cfg.ApplyDefaults()
	return cfg
}

func (c *Client) stream(ctx context.Context, path string, p Params, h Handlers) (text string, err error) {
	log := c.log.WithFields(logger.Fields(logger.FieldURL, path))
	ctx, span := observability.StartSpan(ctx, observability.SpanWorkflowRun)
	span.SetAttributes(attribute.String(observability.AttrURL, path))
	defer func() {
		if err != nil {
			observability.SetSpanError(ctx, err)
		}
		span.End()
	}()

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	retry := resilience.RetryConfig{
		MaxAttempts: c.config.OpenAttempts,
		Backoff:     c.backoff,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			log.Warn("retrying workflow stream", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldDelay, delay.Milliseconds(),
				logger.FieldError, err.Error(),
			))
		},
	}
	resp, err := resilience.Retry(streamCtx, retry, func(ctx context.Context, _ int) (*httpclient.StreamResponse, error) {
		return c.http.DoStream(ctx, httpclient.Request{
			Method: http.MethodPost,
			Path:   path,
			Body:   p,
		})
	})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Close() }()

	decoder := NewDecoder(h, WithLogger(log), WithMaxFallbackBytes(c.config.MaxFallbackBytes))
	dialect := frame.NewChunked()
	if err := c.read(streamCtx, cancel, resp.Body, dialect, decoder); err != nil {
		decoder.report(err)
		return decoder.Text(), err
	}
	decoder.DecodeAll(dialect.Flush())

	log.Debug("workflow stream ended", logger.Fields(logger.FieldBytes, decoder.text.Len()))
	return decoder.Text(), nil
}

// read pumps body into the dialect until EOF. A gap longer than the idle
// timeout cancels the request and is reported as TIMEOUT.
func (c *Client) read(ctx context.Context, cancel context.CancelFunc, body io.Reader, dialect frame.Dialect, decoder *Decoder) error {
	var idled atomic.Bool
	idle := time.AfterFunc(c.config.Timeout, func() {
		idled.Store(true)
		cancel()
	})
	defer idle.Stop()

	buf := make([]byte, readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			idle.Reset(c.config.Timeout)
			decoder.DecodeAll(dialect.Feed(string(buf[:n])))
		}
		if err == nil {
			continue
		}
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if idled.Load() {
			return errors.Timeout("stream read").WithCause(err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.ConnectionFailed(c.config.BaseURL, err)
	}
}
