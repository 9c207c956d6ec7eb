package component

import (
	"context"
	"fmt"
	"reflect"
	"testing"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/logger"
)

// fakeComponent implements Component for testing.
type fakeComponent struct {
	name     string
	startErr error
	stopErr  error
	health   Health
	events   *[]string
}

func (f *fakeComponent) Name() string { return f.name }
func (f *fakeComponent) Start(ctx context.Context) error {
	if f.events != nil {
		*f.events = append(*f.events, "start:"+f.name)
	}
	return f.startErr
}
func (f *fakeComponent) Stop(ctx context.Context) error {
	if f.events != nil {
		*f.events = append(*f.events, "stop:"+f.name)
	}
	return f.stopErr
}
func (f *fakeComponent) Health(ctx context.Context) Health { return f.health }

type describedComponent struct {
	fakeComponent
	desc Description
}

func (d *describedComponent) Describe() Description { return d.desc }

func newRegistry() *Registry {
	return NewRegistry().WithLogger(logger.Nop())
}

func TestRegisterDuplicate(t *testing.T) {
	r := newRegistry()
	if err := r.Register(&fakeComponent{name: "feed"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	err := r.Register(&fakeComponent{name: "feed"})
	if !errors.HasCode(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG for duplicate registration, got %v", err)
	}
}

func TestGet(t *testing.T) {
	r := newRegistry()
	r.Register(&fakeComponent{name: "feed"})

	if got := r.Get("feed"); got == nil || got.Name() != "feed" {
		t.Errorf("expected registered component, got %v", got)
	}
	if got := r.Get("missing"); got != nil {
		t.Error("expected nil for unregistered component")
	}
}

func TestStartStopOrder(t *testing.T) {
	r := newRegistry()
	var events []string
	r.Register(&fakeComponent{name: "mock", events: &events})
	r.Register(&fakeComponent{name: "feed", events: &events})
	r.Register(&fakeComponent{name: "chat", events: &events})

	if err := r.StartAll(context.Background()); err != nil {
		t.Fatalf("StartAll failed: %v", err)
	}
	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}

	want := []string{
		"start:mock", "start:feed", "start:chat",
		"stop:chat", "stop:feed", "stop:mock",
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("got %v, want %v", events, want)
	}
}

func TestStartAllRollsBack(t *testing.T) {
	r := newRegistry()
	var events []string
	r.Register(&fakeComponent{name: "mock", events: &events})
	r.Register(&fakeComponent{name: "feed", events: &events, startErr: fmt.Errorf("invalid url")})
	r.Register(&fakeComponent{name: "chat", events: &events})

	if err := r.StartAll(context.Background()); err == nil {
		t.Fatal("expected error from StartAll")
	}

	want := []string{"start:mock", "start:feed", "stop:mock"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("got %v, want %v", events, want)
	}
}

func TestStopAllSkipsUnstarted(t *testing.T) {
	r := newRegistry()
	var events []string
	r.Register(&fakeComponent{name: "feed", events: &events})

	if err := r.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no stops for unstarted components, got %v", events)
	}
}

func TestStopAllWithErrors(t *testing.T) {
	r := newRegistry()
	r.Register(&fakeComponent{name: "a", stopErr: fmt.Errorf("stop a")})
	r.Register(&fakeComponent{name: "b", stopErr: fmt.Errorf("stop b")})
	r.StartAll(context.Background())

	err := r.StopAll(context.Background())
	if err == nil {
		t.Fatal("expected error from StopAll")
	}
	if got := err.Error(); got != "failed to stop b: stop b\nfailed to stop a: stop a" {
		t.Errorf("unexpected joined error %q", got)
	}
}

func TestHealthAll(t *testing.T) {
	r := newRegistry()
	r.Register(&fakeComponent{name: "feed", health: Health{Name: "feed", Status: StatusHealthy}})
	r.Register(&fakeComponent{name: "chat", health: Health{Name: "chat", Status: StatusDegraded, Message: "reconnecting"}})

	results := r.HealthAll(context.Background())
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Status != StatusHealthy || results[1].Status != StatusDegraded {
		t.Errorf("unexpected health %v", results)
	}
}

func TestDescribe(t *testing.T) {
	r := newRegistry()
	r.Register(&fakeComponent{name: "plain"})
	r.Register(&describedComponent{
		fakeComponent: fakeComponent{name: "mock"},
		desc:          Description{Type: "server", Details: ":8080", Port: 8080},
	})

	got := r.Describe()
	want := []Description{{Name: "mock", Type: "server", Details: ":8080", Port: 8080}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestWorst(t *testing.T) {
	tests := []struct {
		name    string
		reports []Health
		want    HealthStatus
	}{
		{"none", nil, StatusHealthy},
		{"all healthy", []Health{{Status: StatusHealthy}, {Status: StatusHealthy}}, StatusHealthy},
		{"one retrying", []Health{{Status: StatusHealthy}, {Status: StatusDegraded}}, StatusDegraded},
		{"gave up", []Health{{Status: StatusUnhealthy}, {Status: StatusDegraded}}, StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Worst(tt.reports...); got != tt.want {
				t.Errorf("Worst() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRouteString(t *testing.T) {
	r := Route{Method: "GET", Path: "/events/:channel"}
	if r.String() != "GET /events/:channel" {
		t.Errorf("String() = %q", r.String())
	}
}

func TestRun(t *testing.T) {
	r := newRegistry()
	var events []string
	r.Register(&fakeComponent{name: "mock", events: &events})
	r.Register(&fakeComponent{name: "feed", events: &events})

	ctx, cancel := context.WithCancel(context.Background())
	err := r.Run(ctx, func(ctx context.Context) error {
		events = append(events, "run")
		cancel()
		return ctx.Err()
	})
	if err != context.Canceled {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
	want := []string{"start:mock", "start:feed", "run", "stop:feed", "stop:mock"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("got %v, want %v", events, want)
	}
}

func TestRunStartFailure(t *testing.T) {
	r := newRegistry()
	called := false
	r.Register(&fakeComponent{name: "feed", startErr: fmt.Errorf("bad url")})

	err := r.Run(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if err == nil || called {
		t.Errorf("Run() = %v, called = %v", err, called)
	}
}
