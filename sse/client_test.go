package sse

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/event"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
)

const testURL = "http://stream.test/events"

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{URL: "not a url"})
	if !errors.HasCode(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("New() = %v, want INVALID_CONFIG", err)
	}
	_, err = New(Config{URL: testURL, Dialect: "grpc"})
	if !errors.HasCode(err, errors.ErrCodeUnsupportedTransport) {
		t.Fatalf("New() = %v, want UNSUPPORTED_TRANSPORT", err)
	}
}

func TestClient_OpensAndEmits(t *testing.T) {
	open, w := openPipe()
	h := newHarness(t, DefaultConfig(testURL), []step{open})

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })

	write(t, w, "event: ping\ndata: {}\n\n")
	write(t, w, "id: 7\ndata: hel")
	write(t, w, "lo\n\n")
	waitFor(t, "message", func() bool { return h.events.count(event.TypeMessage) == 1 })

	if got, want := h.events.types(), []string{"open", "ping", "message"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	ping := h.events.ofType("ping")[0]
	if !reflect.DeepEqual(ping.Data, map[string]any{}) {
		t.Errorf("ping data = %#v", ping.Data)
	}
	msg := h.events.ofType(event.TypeMessage)[0]
	if msg.Data != "hello" || msg.ID != "7" {
		t.Errorf("message = %+v", msg)
	}
	if msg.Timestamp != h.clock.Now() {
		t.Errorf("timestamp = %v, want clock time", msg.Timestamp)
	}

	st := h.client.State()
	if st.LastEventID != "7" || st.ReconnectAttempts != 0 || st.ConnectedAt.IsZero() {
		t.Errorf("state = %+v", st)
	}
	if got, want := h.events.status(), []event.Status{event.StatusConnecting, event.StatusOpen}; !reflect.DeepEqual(got, want) {
		t.Errorf("statuses = %v, want %v", got, want)
	}

	req := h.transport.Opens()[0]
	if req.URL != testURL || req.Method != http.MethodGet || req.LastEventID != "" {
		t.Errorf("request = %+v", req)
	}
}

func TestClient_ConnectWhileActiveIsNoop(t *testing.T) {
	h := newHarness(t, DefaultConfig(testURL), nil)

	h.client.Connect()
	waitFor(t, "open attempt", func() bool { return len(h.transport.Opens()) == 1 })
	h.client.Connect()
	h.sync(t)

	if n := len(h.transport.Opens()); n != 1 {
		t.Fatalf("opens = %d, want 1", n)
	}
	if got := h.client.State().Status; got != event.StatusConnecting {
		t.Fatalf("status = %v", got)
	}
}

func TestClient_RetryAfterHint(t *testing.T) {
	cfg := DefaultConfig(testURL)
	cfg.RetryInterval = time.Second
	busy := errors.HTTPStatus(503, "").WithRetryAfter(5 * time.Second)
	h := newHarness(t, cfg, []step{failOpen(busy)})

	h.client.Connect()
	waitFor(t, "error", func() bool { return h.events.count(event.TypeError) == 1 })
	data := h.events.ofType(event.TypeError)[0].Data.(event.ErrorData)
	if !data.Retrying || data.NextDelay != 5*time.Second {
		t.Fatalf("error data = %+v, want retry after 5s", data)
	}

	h.clock.Advance(time.Second)
	h.sync(t)
	if n := len(h.transport.Opens()); n != 1 {
		t.Fatalf("reconnected before the hint elapsed: opens = %d", n)
	}
	h.clock.Advance(4 * time.Second)
	waitFor(t, "reconnect", func() bool { return len(h.transport.Opens()) == 2 })
}

func TestClient_ReconnectCeiling(t *testing.T) {
	refused := stderrors.New("connection refused")
	cfg := DefaultConfig(testURL)
	cfg.RetryInterval = time.Second
	cfg.MaxRetries = 2
	h := newHarness(t, cfg, []step{failOpen(refused), failOpen(refused), failOpen(refused), failOpen(refused)})

	h.client.Connect()
	waitFor(t, "first error", func() bool { return h.events.count(event.TypeError) == 1 })
	h.clock.Advance(time.Second)
	waitFor(t, "second error", func() bool { return h.events.count(event.TypeError) == 2 })
	h.clock.Advance(2 * time.Second)
	waitFor(t, "third error", func() bool { return h.events.count(event.TypeError) == 3 })
	h.clock.Advance(time.Minute)
	h.sync(t)

	if n := len(h.transport.Opens()); n != 3 {
		t.Fatalf("opens = %d, want 3", n)
	}

	tests := []struct {
		retrying bool
		delay    time.Duration
		attempts int
	}{
		{true, time.Second, 1},
		{true, 2 * time.Second, 2},
		{false, 0, 2},
	}
	for i, ev := range h.events.ofType(event.TypeError) {
		data, ok := ev.Data.(event.ErrorData)
		if !ok {
			t.Fatalf("error %d data = %T", i, ev.Data)
		}
		if !errors.HasCode(data.Err, errors.ErrCodeConnectionFailed) {
			t.Errorf("error %d = %v", i, data.Err)
		}
		want := tests[i]
		if data.Retrying != want.retrying || data.NextDelay != want.delay || data.Attempts != want.attempts {
			t.Errorf("error %d = %+v, want %+v", i, data, want)
		}
	}

	st := h.client.State()
	if st.Status != event.StatusError || st.Retrying || st.ReconnectAttempts != 2 {
		t.Fatalf("state = %+v", st)
	}
	if h.client.Health(t.Context()).Status != component.StatusUnhealthy {
		t.Error("exhausted client should be unhealthy")
	}

	// a manual connect tries once more but does not re-arm the retry budget
	h.client.Connect()
	waitFor(t, "fourth error", func() bool { return h.events.count(event.TypeError) == 4 })
	h.clock.Advance(time.Minute)
	h.sync(t)

	if n := len(h.transport.Opens()); n != 4 {
		t.Fatalf("opens after manual connect = %d, want 4", n)
	}
	last := h.events.ofType(event.TypeError)[3].Data.(event.ErrorData)
	if last.Retrying || last.Attempts != 2 {
		t.Errorf("manual connect error = %+v, want no retry with 2 attempts", last)
	}
	if st := h.client.State(); st.Retrying || st.ReconnectAttempts != 2 {
		t.Errorf("state after manual connect = %+v", st)
	}
}

func TestClient_NegativeMaxRetriesNeverReconnects(t *testing.T) {
	cfg := DefaultConfig(testURL)
	cfg.MaxRetries = -1
	h := newHarness(t, cfg, []step{failOpen(stderrors.New("down"))})

	h.client.Connect()
	waitFor(t, "error", func() bool { return h.events.count(event.TypeError) == 1 })
	if h.clock.Pending() != 0 {
		t.Fatalf("pending timers = %d", h.clock.Pending())
	}
	if got := h.client.Config().MaxRetries; got != 0 {
		t.Errorf("stored MaxRetries = %d, want 0", got)
	}
}

func TestClient_DisconnectCancelsPendingReconnect(t *testing.T) {
	h := newHarness(t, DefaultConfig(testURL), []step{failOpen(stderrors.New("down"))})

	h.client.Connect()
	waitFor(t, "error", func() bool { return h.events.count(event.TypeError) == 1 })
	if !h.client.State().Retrying {
		t.Fatal("expected a scheduled reconnect")
	}

	h.client.Disconnect()
	h.sync(t)
	h.clock.Advance(time.Minute)
	h.sync(t)

	if n := len(h.transport.Opens()); n != 1 {
		t.Fatalf("opens = %d, want 1", n)
	}
	st := h.client.State()
	if st.Status != event.StatusClosed || st.Retrying {
		t.Fatalf("state = %+v", st)
	}
	if h.events.count(event.TypeClose) != 1 {
		t.Errorf("close events = %d", h.events.count(event.TypeClose))
	}

	// a second disconnect is silent
	h.client.Disconnect()
	h.sync(t)
	if h.events.count(event.TypeClose) != 1 {
		t.Errorf("close events = %d", h.events.count(event.TypeClose))
	}
}

func TestClient_ConnectionTimeout(t *testing.T) {
	cfg := DefaultConfig(testURL)
	cfg.AutoReconnect = false
	h := newHarness(t, cfg, nil)

	h.client.Connect()
	waitFor(t, "open attempt", func() bool { return len(h.transport.Opens()) == 1 })
	h.clock.Advance(DefaultConnectionTimeout - time.Millisecond)
	h.sync(t)
	if h.client.State().Status != event.StatusConnecting {
		t.Fatal("timed out early")
	}

	h.clock.Advance(time.Millisecond)
	waitFor(t, "timeout", func() bool { return h.events.count(event.TypeError) == 1 })

	data := h.events.ofType(event.TypeError)[0].Data.(event.ErrorData)
	if !errors.HasCode(data.Err, errors.ErrCodeTimeout) || data.Retrying {
		t.Fatalf("error = %+v", data)
	}
	if !errors.HasCode(h.client.State().LastError, errors.ErrCodeTimeout) {
		t.Errorf("LastError = %v", h.client.State().LastError)
	}
}

func TestClient_ConnectionTimeoutIgnoredOnceOpen(t *testing.T) {
	open, _ := openPipe()
	h := newHarness(t, DefaultConfig(testURL), []step{open})

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })
	h.clock.Advance(DefaultConnectionTimeout)
	h.sync(t)

	if !h.client.IsConnected() || h.events.count(event.TypeError) != 0 {
		t.Fatalf("state = %+v", h.client.State())
	}
}

func TestClient_IdleTimeout(t *testing.T) {
	cfg := DefaultConfig(testURL)
	cfg.Timeout = 5 * time.Second
	cfg.AutoReconnect = false
	open, w := openPipe()
	h := newHarness(t, cfg, []step{open})

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })

	h.clock.Advance(3 * time.Second)
	write(t, w, "data: tick\n\n")
	waitFor(t, "tick", func() bool { return h.events.count(event.TypeMessage) == 1 })

	// the first check finds only 3s of silence and re-arms
	h.clock.Advance(3 * time.Second)
	h.sync(t)
	if !h.client.IsConnected() {
		t.Fatal("idle timeout fired despite recent data")
	}

	h.clock.Advance(2 * time.Second)
	waitFor(t, "idle error", func() bool { return h.events.count(event.TypeError) == 1 })
	data := h.events.ofType(event.TypeError)[0].Data.(event.ErrorData)
	if !errors.HasCode(data.Err, errors.ErrCodeTimeout) {
		t.Fatalf("error = %v", data.Err)
	}
}

func TestClient_StreamEndReconnectsWithServerRetry(t *testing.T) {
	first, w := openPipe()
	second, _ := openPipe()
	h := newHarness(t, DefaultConfig(testURL), []step{first, second})

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })
	write(t, w, "id: 42\nretry: 2500\ndata: x\n\n")
	_ = w.Close()
	waitFor(t, "stream end", func() bool { return h.events.count(event.TypeError) == 1 })

	data := h.events.ofType(event.TypeError)[0].Data.(event.ErrorData)
	if !errors.HasCode(data.Err, errors.ErrCodeStreamEnded) {
		t.Fatalf("error = %v", data.Err)
	}
	if data.NextDelay != 2500*time.Millisecond {
		t.Fatalf("NextDelay = %v, want 2.5s", data.NextDelay)
	}

	h.clock.Advance(2500 * time.Millisecond)
	waitFor(t, "reconnect", func() bool { return h.client.IsConnected() && len(h.transport.Opens()) == 2 })
	if got := h.transport.Opens()[1].LastEventID; got != "42" {
		t.Errorf("Last-Event-ID = %q, want 42", got)
	}
	if got := h.client.State().ReconnectAttempts; got != 0 {
		t.Errorf("attempts after open = %d", got)
	}
}

func TestClient_SetLastEventIDResumes(t *testing.T) {
	h := newHarness(t, DefaultConfig(testURL), nil)
	h.client.SetLastEventID("7")
	h.client.Connect()
	waitFor(t, "open attempt", func() bool { return len(h.transport.Opens()) == 1 })
	if got := h.transport.Opens()[0].LastEventID; got != "7" {
		t.Errorf("Last-Event-ID = %q, want 7", got)
	}
}

func TestClient_ServerRetryFloor(t *testing.T) {
	open, w := openPipe()
	h := newHarness(t, DefaultConfig(testURL), []step{open})

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })
	write(t, w, "retry: 10\n\n")
	_ = w.Close()
	waitFor(t, "stream end", func() bool { return h.events.count(event.TypeError) == 1 })

	data := h.events.ofType(event.TypeError)[0].Data.(event.ErrorData)
	if data.NextDelay != MinRetryInterval {
		t.Fatalf("NextDelay = %v, want %v", data.NextDelay, MinRetryInterval)
	}
}

func TestClient_EventTypesFilter(t *testing.T) {
	cfg := DefaultConfig(testURL)
	cfg.EventTypes = []string{"update"}
	open, w := openPipe()
	h := newHarness(t, cfg, []step{open})

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })
	write(t, w, "event: other\ndata: 1\n\nevent: update\ndata: 2\n\n")
	waitFor(t, "update", func() bool { return h.events.count("update") == 1 })
	h.sync(t)

	if got, want := h.events.types(), []string{"open", "update"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestClient_MalformedFrameSkipped(t *testing.T) {
	cfg := DefaultConfig(testURL)
	cfg.Dialect = frame.DialectChunked
	dec := &fakeDecoder{}
	open, w := openPipe()
	h := newHarness(t, cfg, []step{open}, WithDecoder(dec))

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })
	write(t, w, "data: {broken\n\ndata: {\"event\":\"node_started\"}\n\nplain words\n\n")
	waitFor(t, "text", func() bool { return h.events.count(event.TypeText) == 1 })

	if got, want := h.events.types(), []string{"open", "node_started", "text"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	if got := h.events.ofType(event.TypeText)[0].Data; got != "plain words" {
		t.Errorf("text data = %#v", got)
	}
	dec.mu.Lock()
	defer dec.mu.Unlock()
	if len(dec.frames) != 3 || dec.frames[0].Err == nil {
		t.Fatalf("decoder frames = %+v", dec.frames)
	}
}

func TestClient_CompletionCloses(t *testing.T) {
	cfg := DefaultConfig(testURL)
	cfg.Dialect = frame.DialectChunked
	dec := &fakeDecoder{}
	open, w := openPipe()
	h := newHarness(t, cfg, []step{open}, WithDecoder(dec))

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })
	write(t, w, `data: {"event":"done"}`)
	_ = w.Close()
	waitFor(t, "close", func() bool { return h.events.count(event.TypeClose) == 1 })
	h.sync(t)

	st := h.client.State()
	if st.Status != event.StatusClosed || st.Retrying {
		t.Fatalf("state = %+v", st)
	}
	if h.events.count(event.TypeError) != 0 {
		t.Error("completed stream reported an error")
	}
	if h.clock.Pending() != 0 {
		t.Errorf("pending timers = %d", h.clock.Pending())
	}
	dec.mu.Lock()
	defer dec.mu.Unlock()
	if dec.resets != 1 {
		t.Errorf("decoder resets = %d", dec.resets)
	}
}

func TestClient_Reconnect(t *testing.T) {
	first, _ := openPipe()
	second, _ := openPipe()
	h := newHarness(t, DefaultConfig(testURL), []step{first, second})

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })

	h.client.Reconnect()
	h.sync(t)
	if h.client.State().Status != event.StatusClosed {
		t.Fatalf("status = %v", h.client.State().Status)
	}
	h.clock.Advance(reconnectDelay)
	waitFor(t, "reopen", func() bool { return h.client.IsConnected() && len(h.transport.Opens()) == 2 })
}

func TestClient_ReconnectCancelledByDisconnect(t *testing.T) {
	first, _ := openPipe()
	h := newHarness(t, DefaultConfig(testURL), []step{first})

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })
	h.client.Reconnect()
	h.client.Disconnect()
	h.sync(t)
	h.clock.Advance(time.Second)
	h.sync(t)

	if n := len(h.transport.Opens()); n != 1 {
		t.Fatalf("opens = %d, want 1", n)
	}
}

func TestClient_ListenerDisconnectMidChunk(t *testing.T) {
	open, w := openPipe()
	h := newHarness(t, DefaultConfig(testURL), []step{open})
	h.client.On(event.TypeMessage, func(event.Event) { h.client.Disconnect() })

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })
	write(t, w, "data: 1\n\ndata: 2\n\n")
	waitFor(t, "close", func() bool { return h.events.count(event.TypeClose) == 1 })
	h.sync(t)

	if n := h.events.count(event.TypeMessage); n != 1 {
		t.Fatalf("messages = %d, want 1", n)
	}
}

func TestClient_UpdateConfig(t *testing.T) {
	h := newHarness(t, DefaultConfig(testURL), nil)

	err := h.client.UpdateConfig(func(c *Config) { c.URL = "::" })
	if !errors.HasCode(err, errors.ErrCodeInvalidConfig) {
		t.Fatalf("UpdateConfig() = %v", err)
	}
	if h.client.Config().URL != testURL {
		t.Fatal("rejected update was applied")
	}

	if err := h.client.UpdateConfig(func(c *Config) {
		c.Dialect = frame.DialectChunked
		c.Headers = map[string]string{"X-Trace": "1"}
	}); err != nil {
		t.Fatalf("UpdateConfig() = %v", err)
	}
	h.client.Connect()
	waitFor(t, "open attempt", func() bool { return len(h.transport.Opens()) == 1 })
	h.sync(t)

	if h.client.dialect.Name() != frame.DialectChunked {
		t.Errorf("dialect = %s", h.client.dialect.Name())
	}
	if got := h.transport.Opens()[0].Headers["X-Trace"]; got != "1" {
		t.Errorf("header = %q", got)
	}

	cfg := h.client.Config()
	cfg.Headers["X-Trace"] = "mutated"
	if h.client.Config().Headers["X-Trace"] != "1" {
		t.Error("Config() exposes internal state")
	}
}

func TestClient_DestroyAndComponent(t *testing.T) {
	open, _ := openPipe()
	h := newHarness(t, DefaultConfig(testURL), []step{open}, WithName("feed"))

	if err := h.client.Start(t.Context()); err != nil {
		t.Fatalf("Start() = %v", err)
	}
	waitFor(t, "open", func() bool { return h.client.IsConnected() })

	health := h.client.Health(t.Context())
	if health.Name != "feed" || health.Status != component.StatusHealthy {
		t.Errorf("health = %+v", health)
	}
	desc := h.client.Describe()
	if desc.Type != "sse" || desc.Name != "feed" {
		t.Errorf("describe = %+v", desc)
	}

	if err := h.client.Stop(t.Context()); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
	select {
	case <-h.client.Done():
	default:
		t.Fatal("loop still running after Stop")
	}
	if h.client.dispatcher.StatusListenerCount() != 0 {
		t.Error("listeners survived Destroy")
	}
	if err := h.client.Start(t.Context()); !errors.HasCode(err, errors.ErrCodeClosed) {
		t.Errorf("Start() after Stop = %v", err)
	}
	h.client.Connect()
	if n := len(h.transport.Opens()); n != 1 {
		t.Errorf("opens = %d", n)
	}
}

func TestClient_ListenerPanicIsolated(t *testing.T) {
	open, w := openPipe()
	h := newHarness(t, DefaultConfig(testURL), []step{open})
	h.client.On(event.TypeMessage, func(event.Event) { panic("boom") })

	h.client.Connect()
	waitFor(t, "open", func() bool { return h.client.IsConnected() })
	write(t, w, "data: a\n\ndata: b\n\n")
	waitFor(t, "messages", func() bool { return h.events.count(event.TypeMessage) == 2 })

	if !h.client.IsConnected() {
		t.Fatal("listener panic affected the connection")
	}
}

func TestClient_HTTPIntegration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			http.Error(w, "bad accept", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		_, _ = w.Write([]byte(": hello\n\nevent: greeting\ndata: {\"name\":\"world\"}\n\n"))
		flusher.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, err := New(DefaultConfig(srv.URL), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer c.Destroy()

	got := make(chan event.Event, 1)
	c.Once("greeting", func(ev event.Event) { got <- ev })
	c.Connect()

	select {
	case ev := <-got:
		if !reflect.DeepEqual(ev.Data, map[string]any{"name": "world"}) {
			t.Errorf("data = %#v", ev.Data)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}

func TestClient_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := DefaultConfig(srv.URL)
	cfg.AutoReconnect = false
	c, err := New(cfg, WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer c.Destroy()

	got := make(chan event.ErrorData, 1)
	c.On(event.TypeError, func(ev event.Event) { got <- ev.Data.(event.ErrorData) })
	c.Connect()

	select {
	case data := <-got:
		e, ok := errors.As(data.Err)
		if !ok || e.Code != errors.ErrCodeHTTPStatus || e.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("error = %v", data.Err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no error received")
	}
}

func TestClient_UpdateConfigRebuildsOwnTransport(t *testing.T) {
	c, err := New(DefaultConfig(testURL), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Destroy)
	h := &harness{client: c}

	before := c.transport
	if err := c.UpdateConfig(func(cfg *Config) { cfg.Headers = map[string]string{"X": "1"} }); err != nil {
		t.Fatalf("UpdateConfig() = %v", err)
	}
	h.sync(t)
	if c.transport != before {
		t.Fatal("transport rebuilt for an unrelated change")
	}

	if err := c.UpdateConfig(func(cfg *Config) { cfg.WithCredentials = true }); err != nil {
		t.Fatalf("UpdateConfig() = %v", err)
	}
	h.sync(t)
	if c.transport == before {
		t.Error("expected a new transport after WithCredentials changed")
	}
	if _, ok := c.transport.(*HTTPTransport); !ok {
		t.Errorf("transport = %T", c.transport)
	}
}

func TestClient_UpdateConfigKeepsInjectedTransport(t *testing.T) {
	h := newHarness(t, DefaultConfig(testURL), nil)
	if err := h.client.UpdateConfig(func(cfg *Config) { cfg.ConnectionTimeout = time.Minute }); err != nil {
		t.Fatalf("UpdateConfig() = %v", err)
	}
	h.sync(t)
	if h.client.transport != Transport(h.transport) {
		t.Errorf("injected transport replaced by %T", h.client.transport)
	}
}
