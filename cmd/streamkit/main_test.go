package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	skerrors "github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/mockserver"
	"github.com/kbukum/streamkit/sse"
	"github.com/kbukum/streamkit/version"
)

// syncBuffer is written by command goroutines and read by the test.
type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func execute(ctx context.Context, out *syncBuffer, args ...string) error {
	root := newRootCommand()
	root.SetOut(out)
	root.SetErr(&syncBuffer{})
	root.SetArgs(append([]string{"--log-level", "none", "--no-color"}, args...))
	return root.ExecuteContext(ctx)
}

func startMock(t *testing.T, cfg mockserver.Config) *mockserver.Server {
	t.Helper()
	srv, err := mockserver.New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("mockserver.New() error = %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Stop(context.Background()) })
	return srv
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestVersionCommand(t *testing.T) {
	out := &syncBuffer{}
	if err := execute(testContext(t), out, "version"); err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out.String(), version.Product) || !strings.Contains(out.String(), version.Version) {
		t.Errorf("output = %q", out.String())
	}
}

func TestVersionCommandJSON(t *testing.T) {
	out := &syncBuffer{}
	if err := execute(testContext(t), out, "version", "--json"); err != nil {
		t.Fatalf("version error = %v", err)
	}
	var info version.Info
	if err := json.Unmarshal([]byte(out.String()), &info); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if info.Version != version.Version {
		t.Errorf("Version = %q", info.Version)
	}
}

func TestListenOptionsApply(t *testing.T) {
	o := &listenOptions{}
	f := pflag.NewFlagSet("listen", pflag.ContinueOnError)
	o.register(f)
	err := f.Parse([]string{
		"--dialect", "chunked",
		"-X", "POST",
		"-e", "update", "-e", "done",
		"-H", "X-Trace=1",
		"--max-retries", "-1",
		"--retry-interval", "2s",
		"--token", "secret",
		"-d", `{"query":"hi"}`,
	})
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg := sse.Config{URL: "http://file/events", Headers: map[string]string{"X-File": "yes"}, AutoReconnect: true}
	if err := o.apply(f, []string{"http://flag/events"}, &cfg); err != nil {
		t.Fatalf("apply() error = %v", err)
	}
	if cfg.URL != "http://flag/events" || cfg.Dialect != "chunked" || cfg.Method != "POST" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.EventTypes) != 2 || cfg.MaxRetries != -1 || cfg.RetryInterval != 2*time.Second {
		t.Errorf("retry/filter = %v %d %v", cfg.EventTypes, cfg.MaxRetries, cfg.RetryInterval)
	}
	if cfg.Headers["X-File"] != "yes" || cfg.Headers["X-Trace"] != "1" || cfg.Headers["User-Agent"] == "" {
		t.Errorf("Headers = %v", cfg.Headers)
	}
	if cfg.Auth == nil || cfg.Body == nil {
		t.Error("auth and body should be set")
	}
	if !cfg.AutoReconnect {
		t.Error("AutoReconnect cleared without --no-reconnect")
	}
}

func TestListenOptionsApplyUnchangedFlagsKeepConfig(t *testing.T) {
	o := &listenOptions{}
	f := pflag.NewFlagSet("listen", pflag.ContinueOnError)
	o.register(f)
	if err := f.Parse([]string{"--no-reconnect"}); err != nil {
		t.Fatal(err)
	}
	cfg := sse.Config{URL: "http://file/events", Dialect: "standard", MaxRetries: 3, AutoReconnect: true}
	if err := o.apply(f, nil, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.URL != "http://file/events" || cfg.Dialect != "standard" || cfg.MaxRetries != 3 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.AutoReconnect {
		t.Error("--no-reconnect should disable reconnects")
	}
}

func TestListenOptionsRejectsBadBody(t *testing.T) {
	o := &listenOptions{data: "{not json"}
	f := pflag.NewFlagSet("listen", pflag.ContinueOnError)
	o.register(f)
	err := o.apply(f, nil, &sse.Config{})
	if !skerrors.HasCode(err, skerrors.ErrCodeInvalidConfig) {
		t.Fatalf("apply() = %v, want INVALID_CONFIG", err)
	}
}

func TestListenCommand(t *testing.T) {
	srv := startMock(t, mockserver.Config{})
	out := &syncBuffer{}

	err := execute(testContext(t), out, "listen", srv.URL()+"/events/demo", "--count", "1")
	if err != nil {
		t.Fatalf("listen error = %v", err)
	}
	got := out.String()
	for _, want := range []string{"● connecting", "● open", mockserver.EventTypeConnected, `"channel":"demo"`} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
}

func TestListenCommandWorkflowDecode(t *testing.T) {
	srv := startMock(t, mockserver.Config{SplitBytes: 5})
	out := &syncBuffer{}

	err := execute(testContext(t), out, "listen", srv.URL()+"/workflows/run",
		"-X", "POST", "--dialect", "chunked", "--workflow",
		"-d", `{"inputs":{},"query":"hello world"}`,
	)
	if err != nil {
		t.Fatalf("listen error = %v", err)
	}
	if !strings.Contains(out.String(), "echo: hello world\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestListenCommandGivesUp(t *testing.T) {
	out := &syncBuffer{}
	err := execute(testContext(t), out, "listen", "http://127.0.0.1:1/events", "--no-reconnect")
	if !skerrors.HasCode(err, skerrors.ErrCodeConnectionFailed) {
		t.Fatalf("listen error = %v, want CONNECTION_FAILED", err)
	}
	if !strings.Contains(out.String(), "error") {
		t.Errorf("output = %q", out.String())
	}
}

func TestWorkflowCommand(t *testing.T) {
	srv := startMock(t, mockserver.Config{})
	out := &syncBuffer{}

	err := execute(testContext(t), out, "workflow", "-v", "--base-url", srv.URL(), "--api-key", "k", "hello", "world")
	if err != nil {
		t.Fatalf("workflow error = %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "echo: hello world\n") {
		t.Errorf("output = %q", got)
	}
	if !strings.Contains(got, "workflow started") || !strings.Contains(got, "node") {
		t.Errorf("verbose output missing node events: %q", got)
	}
}

func TestWorkflowCommandChat(t *testing.T) {
	srv := startMock(t, mockserver.Config{})
	out := &syncBuffer{}

	err := execute(testContext(t), out, "workflow", "--chat", "--base-url", srv.URL(), "--api-key", "k", "hi")
	if err != nil {
		t.Fatalf("workflow error = %v", err)
	}
	if !strings.Contains(out.String(), "echo: hi") {
		t.Errorf("output = %q", out.String())
	}
}

func TestWorkflowCommandErrors(t *testing.T) {
	srv := startMock(t, mockserver.Config{APIKey: "secret"})

	tests := []struct {
		name string
		args []string
		code skerrors.ErrorCode
	}{
		{"unauthorized", []string{"--base-url", srv.URL(), "--api-key", "wrong"}, skerrors.ErrCodeHTTPStatus},
		{"invalid base url", []string{"--base-url", "not a url", "--api-key", "k"}, skerrors.ErrCodeInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"workflow"}, tt.args...)
			err := execute(testContext(t), &syncBuffer{}, append(args, "query")...)
			if !skerrors.HasCode(err, tt.code) {
				t.Fatalf("workflow error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestTokenCommand(t *testing.T) {
	out := &syncBuffer{}
	if err := execute(testContext(t), out, "token", "--secret", "s3cret", "--user", "alice", "--ttl", "5m"); err != nil {
		t.Fatalf("token error = %v", err)
	}
	token := strings.TrimSpace(out.String())

	srv := startMock(t, mockserver.Config{APIKey: "k", TokenSecret: "s3cret"})
	claims, err := srv.Tokens().Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.User != "alice" || claims.Subject != "streamkit" {
		t.Errorf("unexpected claims %+v", claims)
	}

	wf := &syncBuffer{}
	if err := execute(testContext(t), wf, "workflow", "--base-url", srv.URL(), "--api-key", token, "hi"); err != nil {
		t.Fatalf("workflow with token error = %v", err)
	}
	if !strings.Contains(wf.String(), "echo: hi") {
		t.Errorf("output = %q", wf.String())
	}
}

func TestTokenCommandNeedsSecret(t *testing.T) {
	err := execute(testContext(t), &syncBuffer{}, "token")
	if !skerrors.HasCode(err, skerrors.ErrCodeInvalidConfig) {
		t.Fatalf("token error = %v, want INVALID_CONFIG", err)
	}
}

func TestMockCommand(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- execute(ctx, out, "mock", "--port", "0") }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "/events/:channel") {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("routes not printed: %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("mock error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("mock command did not stop")
	}
}

func TestSetupLayersFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	content := "name: streamkit-test\nenvironment: staging\nlogging:\n  level: none\nstream:\n  url: http://file/events\n  retry_interval: 4s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("STREAMKIT_STREAM_MAX_RETRIES", "2")

	a := &app{configFile: path}
	if err := a.setup(&cobra.Command{}, nil); err != nil {
		t.Fatalf("setup() error = %v", err)
	}
	if a.cfg.Name != "streamkit-test" || a.cfg.Environment != "staging" {
		t.Errorf("service = %+v", a.cfg.ServiceConfig)
	}
	if a.cfg.Stream.URL != "http://file/events" || a.cfg.Stream.RetryInterval != 4*time.Second {
		t.Errorf("stream = %+v", a.cfg.Stream)
	}
	if a.cfg.Stream.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2 from env", a.cfg.Stream.MaxRetries)
	}
	if !a.cfg.Stream.AutoReconnect {
		t.Error("AutoReconnect default lost")
	}
	if a.cfg.Version == "" || a.metrics == nil {
		t.Error("setup should fill version and metrics")
	}
}

func TestFormatData(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "tick", "tick"},
		{"object", map[string]any{"a": 1.0}, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatData(tt.in); got != tt.want {
				t.Errorf("formatData() = %q, want %q", got, tt.want)
			}
		})
	}
}
