package sse

import (
	"context"
	"io"
	"time"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/event"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
)

// Everything in this file runs on the client loop.

func (c *Client) connect() {
	if c.destroyed.Load() {
		return
	}
	if st := c.State(); st.Active() {
		c.log.Warn("connect ignored: already "+st.Status.String())
		return
	}

	c.manual = false
	stopTimer(c.retryTimer)
	c.retryTimer = nil
	c.reconnectSeq.Add(1)

	// attempts carry over until a session actually opens
	c.startSession()
}

func (c *Client) startSession() {
	cfg := c.cfg()
	gen := c.session.Add(1)

	if c.dialect.Name() != cfg.Dialect {
		d, err := frame.New(cfg.Dialect)
		if err != nil {
			c.fail(err)
			return
		}
		c.dialect = d
	}
	c.dialect.Reset()
	c.mu.Lock()
	c.state.Retrying = false
	c.mu.Unlock()
	if c.decoder != nil {
		c.decoder.Reset()
	}

	c.setStatus(event.StatusConnecting)
	if c.session.Load() != gen {
		// a status listener disconnected
		return
	}

	st := c.State()
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.attempt = &observability.ConnectAttempt{
		Client:  c.name,
		URL:     cfg.URL,
		Dialect: cfg.Dialect,
		Attempt: st.ReconnectAttempts,
		Metrics: c.metrics,
	}
	ctx = observability.StartConnect(ctx, c.attempt)

	c.connectTimer = c.clock.AfterFunc(cfg.ConnectionTimeout, func() {
		c.post(gen, func() {
			if c.State().Status == event.StatusConnecting {
				c.fail(errors.Timeout("connect"))
			}
		})
	})

	c.log.Debug("connecting", logger.Fields(logger.FieldAttempt, st.ReconnectAttempts))
	go c.read(ctx, gen, c.transport, Request{
		URL:         cfg.URL,
		Method:      cfg.Method,
		Headers:     cfg.Headers,
		Body:        cfg.Body,
		Auth:        cfg.Auth,
		LastEventID: st.LastEventID,
	})
}

// post runs fn on the loop unless session gen has ended by then.
func (c *Client) post(gen uint64, fn func()) bool {
	return c.box.post(func() {
		if c.session.Load() == gen {
			fn()
		}
	})
}

// read runs on its own goroutine for the life of one session.
func (c *Client) read(ctx context.Context, gen uint64, t Transport, req Request) {
	body, err := t.Open(ctx, req)
	if err != nil {
		if c.session.Load() == gen {
			c.post(gen, func() { c.fail(openError(req.URL, err)) })
		}
		return
	}

	accepted := c.box.post(func() {
		if c.session.Load() != gen {
			_ = body.Close()
			return
		}
		c.opened(gen, body)
	})
	if !accepted {
		_ = body.Close()
		return
	}

	buf := make([]byte, readBufferSize)
	for {
		n, err := body.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			c.post(gen, func() { c.receive(gen, chunk) })
		}
		if c.session.Load() != gen {
			return
		}
		if err == io.EOF {
			c.post(gen, func() { c.ended(gen) })
			return
		}
		if err != nil {
			c.post(gen, func() { c.fail(errors.ConnectionFailed(req.URL, err)) })
			return
		}
	}
}

func openError(url string, err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	return errors.ConnectionFailed(url, err)
}

func (c *Client) opened(gen uint64, body io.ReadCloser) {
	c.body = body
	stopTimer(c.connectTimer)
	c.connectTimer = nil

	now := c.clock.Now()
	c.mu.Lock()
	c.state.ConnectedAt = now
	c.state.ReconnectAttempts = 0
	c.state.LastError = nil
	c.mu.Unlock()

	c.attempt.End(context.Background(), observability.OutcomeOpen, nil)
	c.lastActivity = now
	c.armIdle(gen, c.cfg().Timeout)

	c.log.Info("connection opened")
	c.setStatus(event.StatusOpen)
	if c.session.Load() == gen {
		c.dispatcher.Emit(event.TypeOpen, nil, "", 0)
	}
}

// armIdle watches for silence on an open stream. Each firing re-arms for
// the time remaining since the last chunk.
func (c *Client) armIdle(gen uint64, d time.Duration) {
	c.idleTimer = c.clock.AfterFunc(d, func() {
		c.post(gen, func() {
			timeout := c.cfg().Timeout
			idle := c.clock.Now().Sub(c.lastActivity)
			if idle >= timeout {
				c.fail(errors.Timeout("stream read"))
				return
			}
			c.armIdle(gen, timeout-idle)
		})
	})
}

func (c *Client) receive(gen uint64, chunk string) {
	c.lastActivity = c.clock.Now()
	c.deliver(gen, c.dialect.Feed(chunk))
}

func (c *Client) deliver(gen uint64, frames []frame.Frame) {
	if len(frames) == 0 {
		return
	}
	cfg := c.cfg()
	ctx := context.Background()
	for _, f := range frames {
		// a listener may have disconnected mid-chunk
		if c.session.Load() != gen {
			return
		}

		if f.Err != nil {
			c.log.Warn("skipping malformed frame", logger.Fields(
				logger.FieldError, f.Err.Error(),
				logger.FieldBytes, len(f.Raw),
			))
			c.metrics.RecordParseError(ctx, c.name, c.dialect.Name())
			c.decode(f)
			continue
		}

		if f.ID != "" {
			c.mu.Lock()
			c.state.LastEventID = f.ID
			c.mu.Unlock()
		}
		if f.HasRetry {
			c.serverRetry = max(f.Retry, MinRetryInterval)
		}

		eventType := f.Event
		switch {
		case f.Kind == frame.KindText:
			eventType = event.TypeText
		case eventType == "":
			eventType = event.TypeMessage
		}
		if cfg.allows(eventType) {
			c.dispatcher.Emit(eventType, f.Data, f.ID, f.Retry)
			c.metrics.RecordEvent(ctx, c.name, eventType)
		} else {
			c.log.Debug("event filtered", logger.Fields(logger.FieldEventType, eventType))
		}

		c.decode(f)
	}
}

func (c *Client) decode(f frame.Frame) {
	if c.decoder != nil {
		c.decoder.Decode(f)
	}
}

func (c *Client) ended(gen uint64) {
	c.deliver(gen, c.dialect.Flush())
	if c.session.Load() != gen {
		return
	}

	if c.decoder != nil && c.decoder.Completed() {
		c.teardown()
		c.log.Info("stream completed")
		c.setStatus(event.StatusClosed)
		c.dispatcher.Emit(event.TypeClose, nil, "", 0)
		return
	}
	c.fail(errors.StreamEnded())
}

// fail records err, moves to error and schedules a reconnect when allowed.
func (c *Client) fail(err error) {
	c.teardown()
	c.attempt.End(context.Background(), observability.OutcomeFailed, err)

	c.mu.Lock()
	c.state.LastError = err
	c.mu.Unlock()

	c.log.Warn("connection error", logger.Fields(logger.FieldError, err.Error()))
	retrying, delay := c.scheduleReconnect(err)
	c.mu.Lock()
	c.state.Retrying = retrying
	st := c.state
	c.mu.Unlock()

	c.setStatus(event.StatusError)
	c.dispatcher.Emit(event.TypeError, event.ErrorData{
		Err:       err,
		Status:    event.StatusError,
		Attempts:  st.ReconnectAttempts,
		Retrying:  retrying,
		NextDelay: delay,
	}, "", 0)
}

// scheduleReconnect arms the backoff timer, honoring a Retry-After carried
// by err. It reports whether a reconnect is pending and after how long.
func (c *Client) scheduleReconnect(err error) (bool, time.Duration) {
	cfg := c.cfg()
	if !cfg.AutoReconnect || c.manual || c.destroyed.Load() {
		return false, 0
	}

	c.mu.Lock()
	attempts := c.state.ReconnectAttempts
	if attempts >= cfg.Retries() {
		c.mu.Unlock()
		c.log.Error("max reconnect attempts reached", logger.Fields(logger.FieldAttempt, attempts))
		return false, 0
	}
	c.state.ReconnectAttempts++
	c.mu.Unlock()

	base := cfg.RetryInterval
	if c.serverRetry > 0 {
		base = c.serverRetry
	}
	hint, _ := errors.RetryAfter(err)
	delay := c.backoff.WithBase(base).After(attempts, hint)
	seq := c.reconnectSeq.Add(1)

	c.log.Info("reconnect scheduled", logger.Fields(
		logger.FieldAttempt, attempts+1,
		logger.FieldDelay, delay.String(),
	))
	c.metrics.RecordReconnect(context.Background(), c.name, attempts+1)

	stopTimer(c.retryTimer)
	c.retryTimer = c.clock.AfterFunc(delay, func() {
		c.box.post(func() {
			if c.reconnectSeq.Load() != seq || c.manual {
				return
			}
			c.retryTimer = nil
			c.startSession()
		})
	})
	return true, delay
}

// teardown ends the current session: later signals from it are dropped.
func (c *Client) teardown() {
	c.session.Add(1)
	stopTimer(c.connectTimer)
	stopTimer(c.idleTimer)
	c.connectTimer, c.idleTimer = nil, nil
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.body != nil {
		_ = c.body.Close()
		c.body = nil
	}
}

func (c *Client) disconnect() {
	c.manual = true
	stopTimer(c.retryTimer)
	c.retryTimer = nil
	c.teardown()
	c.attempt.End(context.Background(), observability.OutcomeAborted, nil)
	c.mu.Lock()
	c.state.Retrying = false
	c.mu.Unlock()

	if c.State().Status == event.StatusClosed {
		return
	}
	c.log.Info("disconnected")
	c.setStatus(event.StatusClosed)
	c.dispatcher.Emit(event.TypeClose, nil, "", 0)
}

// setStatus stores s and notifies status listeners when it changed.
func (c *Client) setStatus(s event.Status) {
	c.mu.Lock()
	prev := c.state.Status
	c.state.Status = s
	c.mu.Unlock()
	if prev == s {
		return
	}

	c.log.Debug("status changed", logger.Fields(logger.FieldStatus, s.String()))
	c.metrics.RecordTransition(context.Background(), c.name, s.String())
	c.dispatcher.EmitStatus(s)
}
