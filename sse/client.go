package sse

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kbukum/streamkit/dispatch"
	"github.com/kbukum/streamkit/event"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/resilience"
)

const (
	// DefaultName is the client name used when WithName is not given.
	DefaultName = "sse"

	reconnectDelay = 100 * time.Millisecond
	readBufferSize = 4 << 10
)

// FrameDecoder receives every frame after it has been emitted as a raw
// event. Completed is consulted when the stream ends: a completed session
// closes cleanly instead of reconnecting.
type FrameDecoder interface {
	Decode(frame.Frame)
	Reset()
	Completed() bool
}

// Option configures a Client.
type Option func(*Client)

// WithName sets the client name used in logs, metrics and the Registry.
func WithName(name string) Option {
	return func(c *Client) { c.name = name }
}

// WithLogger sets the base logger. The client derives its own from it.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.baseLog = l }
}

// WithClock sets the time source for timers and event timestamps.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithTransport replaces the HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithDecoder attaches a typed decoder fed with every frame.
func WithDecoder(d FrameDecoder) Option {
	return func(c *Client) { c.decoder = d }
}

// WithBackoff sets the reconnect policy. Its Base is replaced by the
// configured RetryInterval or the server's retry hint.
func WithBackoff(b resilience.Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

// WithMetrics records stream metrics.
func WithMetrics(m *observability.StreamMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client is a reconnecting stream consumer. All state changes, parsing and
// listener calls happen on one goroutine per client, so listeners see
// events serially and in wire order. Methods are safe for concurrent use
// and never block on the network.
type Client struct {
	name string

	mu     sync.RWMutex
	config Config
	state  State

	dispatcher *dispatch.Dispatcher
	// transport is replaced on the loop; sessions capture it when they start.
	transport Transport
	// ownTransport is set when the client built its HTTPTransport and may
	// rebuild it after a config change.
	ownTransport bool
	clock      Clock
	backoff    resilience.Backoff
	decoder    FrameDecoder
	metrics    *observability.StreamMetrics
	baseLog    *logger.Logger

	box *mailbox
	// session is bumped whenever a session starts or is torn down; callbacks
	// carrying an older value are dropped.
	session atomic.Uint64
	// reconnectSeq invalidates pending reconnect timers.
	reconnectSeq atomic.Uint64
	destroyed    atomic.Bool

	// owned by the loop goroutine
	log          *logger.Logger
	dialect      frame.Dialect
	manual       bool
	cancel       context.CancelFunc
	body         io.ReadCloser
	connectTimer Timer
	idleTimer    Timer
	retryTimer   Timer
	attempt      *observability.ConnectAttempt
	lastActivity time.Time
	serverRetry  time.Duration
}

// New validates cfg and creates a closed Client. Call Connect to start streaming.
func New(cfg Config, opts ...Option) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		name:    DefaultName,
		config:  cfg.clone(),
		clock:   SystemClock(),
		backoff: resilience.DefaultBackoff(),
		baseLog: logger.GetGlobalLogger(),
		box:     newMailbox(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.log = c.newLogger(&cfg)
	dialect, err := frame.New(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	c.dialect = dialect

	if c.transport == nil {
		t, err := NewHTTPTransport(cfg, c.log)
		if err != nil {
			return nil, err
		}
		c.transport = t
		c.ownTransport = true
	}

	c.dispatcher = dispatch.New(
		dispatch.WithLogger(c.log),
		dispatch.WithClock(c.clock.Now),
	)
	c.state.Status = event.StatusClosed

	go c.box.run()
	return c, nil
}

func (c *Client) newLogger(cfg *Config) *logger.Logger {
	return c.baseLog.
		WithComponent("sse").
		WithFields(cfg.logFields(c.name)).
		WithLevel(cfg.EffectiveLogLevel())
}

// Name returns the client name.
func (c *Client) Name() string { return c.name }

// Connect starts a session. It is a no-op while connecting or open.
func (c *Client) Connect() {
	c.box.post(c.connect)
}

// Disconnect closes the stream and cancels any pending reconnect. Signals
// from the closed session that are already in flight are discarded.
func (c *Client) Disconnect() {
	c.session.Add(1)
	c.reconnectSeq.Add(1)
	c.box.post(c.disconnect)
}

// Reconnect disconnects and connects again after a short pause. A
// Disconnect in between cancels the pending connect.
func (c *Client) Reconnect() {
	c.Disconnect()
	seq := c.reconnectSeq.Add(1)
	c.box.post(func() {
		c.log.Info("manual reconnect initiated")
		c.retryTimer = c.clock.AfterFunc(reconnectDelay, func() {
			c.box.post(func() {
				if c.reconnectSeq.Load() != seq {
					return
				}
				c.retryTimer = nil
				c.connect()
			})
		})
	})
}

// Destroy disconnects, removes every listener and stops the client loop.
// The client cannot be used afterwards.
func (c *Client) Destroy() {
	if !c.destroyed.CompareAndSwap(false, true) {
		return
	}
	c.Disconnect()
	c.box.post(func() {
		c.dispatcher.Clear()
		c.log.Info("client destroyed")
		c.box.close()
	})
}

// Done is closed once the client loop has stopped after Destroy.
func (c *Client) Done() <-chan struct{} { return c.box.done }

// On subscribes fn to events of eventType, or every type with dispatch.Wildcard.
func (c *Client) On(eventType string, fn event.Listener) dispatch.Subscription {
	return c.dispatcher.On(eventType, fn)
}

// Once subscribes fn to the next event of eventType only.
func (c *Client) Once(eventType string, fn event.Listener) dispatch.Subscription {
	return c.dispatcher.Once(eventType, fn)
}

// Off removes a subscription made with On or Once.
func (c *Client) Off(sub dispatch.Subscription) bool {
	return c.dispatcher.Off(sub)
}

// OnStatus subscribes fn to connection status changes.
func (c *Client) OnStatus(fn event.StatusListener) dispatch.Subscription {
	return c.dispatcher.OnStatus(fn)
}

// OffStatus removes a status subscription.
func (c *Client) OffStatus(sub dispatch.Subscription) bool {
	return c.dispatcher.OffStatus(sub)
}

// State returns a snapshot of the connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetLastEventID sets the id sent as Last-Event-ID by the next session.
func (c *Client) SetLastEventID(id string) {
	c.mu.Lock()
	c.state.LastEventID = id
	c.mu.Unlock()
}

// IsConnected reports whether the stream is open.
func (c *Client) IsConnected() bool {
	return c.State().Status == event.StatusOpen
}

// Config returns a copy of the current configuration.
func (c *Client) Config() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config.clone()
}

// UpdateConfig applies fn to a copy of the configuration and keeps the
// result if it validates. Changes take effect on the next session; the
// current one keeps its URL, headers, dialect and HTTP connection. The
// logger is replaced right away, and the built-in HTTP transport is rebuilt
// when ConnectionTimeout or WithCredentials change, which drops its cookies.
func (c *Client) UpdateConfig(fn func(*Config)) error {
	c.mu.Lock()
	prev := c.config
	next := c.config.clone()
	fn(&next)
	next.ApplyDefaults()
	if err := next.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.config = next.clone()
	c.mu.Unlock()

	rebuild := c.ownTransport &&
		(prev.ConnectionTimeout != next.ConnectionTimeout || prev.WithCredentials != next.WithCredentials)
	c.box.post(func() {
		c.log = c.newLogger(&next)
		c.dispatcher.SetLogger(c.log)
		if rebuild {
			t, err := NewHTTPTransport(next, c.log)
			if err != nil {
				c.log.Error("transport rebuild failed", logger.Fields(logger.FieldError, err.Error()))
			} else {
				c.transport = t
			}
		}
		c.log.Info("config updated")
	})
	return nil
}

// cfg returns the configuration for reading on the loop.
func (c *Client) cfg() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}
