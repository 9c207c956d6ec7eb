package sse

import (
	"context"
	"io"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/streamkit/dispatch"
	"github.com/kbukum/streamkit/event"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/resilience"
)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	fn    func()
	done  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.done
	t.done = true
	return was
}

// Advance moves the clock forward and runs every timer that became due.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	live := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.done:
		case !t.at.After(c.now):
			t.done = true
			due = append(due, t)
		default:
			live = append(live, t)
		}
	}
	c.timers = live
	c.mu.Unlock()

	slices.SortFunc(due, func(a, b *fakeTimer) int { return a.at.Compare(b.at) })
	for _, t := range due {
		t.fn()
	}
}

// Pending returns the number of armed timers.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

// step scripts one transport open.
type step func(ctx context.Context) (io.ReadCloser, error)

func failOpen(err error) step {
	return func(context.Context) (io.ReadCloser, error) { return nil, err }
}

// openPipe returns a step serving the read end of a pipe the test writes to.
func openPipe() (step, *io.PipeWriter) {
	pr, pw := io.Pipe()
	return func(context.Context) (io.ReadCloser, error) { return pr, nil }, pw
}

// fakeTransport replays scripted steps. Opens past the script block until
// the session is cancelled.
type fakeTransport struct {
	mu     sync.Mutex
	script []step
	opens  []Request
}

func (f *fakeTransport) Open(ctx context.Context, req Request) (io.ReadCloser, error) {
	f.mu.Lock()
	f.opens = append(f.opens, req)
	var s step
	if len(f.script) > 0 {
		s = f.script[0]
		f.script = f.script[1:]
	}
	f.mu.Unlock()

	if s == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return s(ctx)
}

func (f *fakeTransport) Opens() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.opens)
}

// fakeDecoder records frames and completes on an event named "done".
type fakeDecoder struct {
	mu        sync.Mutex
	frames    []frame.Frame
	resets    int
	completed bool
}

func (d *fakeDecoder) Decode(f frame.Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frames = append(d.frames, f)
	if f.Event == "done" {
		d.completed = true
	}
}

func (d *fakeDecoder) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	d.completed = false
	d.frames = nil
}

func (d *fakeDecoder) Completed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.completed
}

// events records everything a client delivers.
type events struct {
	mu       sync.Mutex
	list     []event.Event
	statuses []event.Status
}

func record(c *Client) *events {
	r := &events{}
	c.On(dispatch.Wildcard, func(ev event.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.list = append(r.list, ev)
	})
	c.OnStatus(func(s event.Status) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.statuses = append(r.statuses, s)
	})
	return r
}

func (r *events) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.list))
	for _, ev := range r.list {
		out = append(out, ev.Type)
	}
	return out
}

func (r *events) ofType(t string) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, ev := range r.list {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (r *events) status() []event.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.statuses)
}

func (r *events) count(t string) int { return len(r.ofType(t)) }

type harness struct {
	client    *Client
	clock     *fakeClock
	transport *fakeTransport
	events    *events
}

func newHarness(t *testing.T, cfg Config, script []step, opts ...Option) *harness {
	t.Helper()
	h := &harness{clock: newFakeClock(), transport: &fakeTransport{script: script}}
	base := []Option{
		WithClock(h.clock),
		WithTransport(h.transport),
		WithLogger(logger.Nop()),
		WithBackoff(resilience.Backoff{Cap: resilience.DefaultCap}),
	}
	c, err := New(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Destroy)
	h.client = c
	h.events = record(c)
	return h
}

// sync waits until everything posted to the loop so far has run.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	done := make(chan struct{})
	if !h.client.box.post(func() { close(done) }) {
		return
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("client loop did not drain")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func write(t *testing.T, w io.Writer, s string) {
	t.Helper()
	if _, err := io.WriteString(w, s); err != nil {
		t.Fatalf("write: %v", err)
	}
}
