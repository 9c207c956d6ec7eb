package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/dispatch"
	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/event"
	"github.com/kbukum/streamkit/httpclient"
	"github.com/kbukum/streamkit/sse"
	"github.com/kbukum/streamkit/version"
	"github.com/kbukum/streamkit/workflow"
)

type listenOptions struct {
	dialect       string
	method        string
	token         string
	data          string
	events        []string
	headers       map[string]string
	lastEventID   string
	maxRetries    int
	retryInterval time.Duration
	timeout       time.Duration
	noReconnect   bool
	decode        bool
	verbose       bool
	count         int
}

func (o *listenOptions) register(f *pflag.FlagSet) {
	f.StringVar(&o.dialect, "dialect", "", "framing dialect: standard or chunked")
	f.StringVarP(&o.method, "method", "X", "", "HTTP method: GET or POST")
	f.StringVar(&o.token, "token", "", "bearer token")
	f.StringVarP(&o.data, "data", "d", "", "JSON request body")
	f.StringSliceVarP(&o.events, "event", "e", nil, "only print these event types (repeatable)")
	f.StringToStringVarP(&o.headers, "header", "H", nil, "extra request header KEY=VALUE (repeatable)")
	f.StringVar(&o.lastEventID, "last-event-id", "", "resume after this event id")
	f.IntVar(&o.maxRetries, "max-retries", 0, "reconnect attempts before giving up, negative for none")
	f.DurationVar(&o.retryInterval, "retry-interval", 0, "base reconnect delay")
	f.DurationVar(&o.timeout, "timeout", 0, "idle timeout for an open stream")
	f.BoolVar(&o.noReconnect, "no-reconnect", false, "exit on the first error")
	f.BoolVar(&o.decode, "workflow", false, "decode frames as workflow events and print the answer text")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "with --workflow, print node events")
	f.IntVarP(&o.count, "count", "n", 0, "exit after this many events")
}

// apply overlays the flags that were set on cfg.
func (o *listenOptions) apply(f *pflag.FlagSet, args []string, cfg *sse.Config) error {
	if len(args) > 0 {
		cfg.URL = args[0]
	}
	if o.data != "" {
		if !json.Valid([]byte(o.data)) {
			return errors.InvalidConfig("data", "request body is not valid JSON")
		}
		cfg.Body = json.RawMessage(o.data)
	}
	if f.Changed("dialect") {
		cfg.Dialect = o.dialect
	}
	if f.Changed("method") {
		cfg.Method = o.method
	}
	if f.Changed("token") {
		cfg.Auth = httpclient.BearerAuth(o.token)
	}
	if f.Changed("event") {
		cfg.EventTypes = o.events
	}
	if len(o.headers) > 0 {
		headers := make(map[string]string, len(cfg.Headers)+len(o.headers))
		for k, v := range cfg.Headers {
			headers[k] = v
		}
		for k, v := range o.headers {
			headers[k] = v
		}
		cfg.Headers = headers
	}
	if f.Changed("max-retries") {
		cfg.MaxRetries = o.maxRetries
	}
	if f.Changed("retry-interval") {
		cfg.RetryInterval = o.retryInterval
	}
	if f.Changed("timeout") {
		cfg.Timeout = o.timeout
	}
	if o.noReconnect {
		cfg.AutoReconnect = false
	}
	if _, ok := cfg.Headers["User-Agent"]; !ok {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		cfg.Headers["User-Agent"] = version.Get().UserAgent()
	}
	return nil
}

func newListenCommand(a *app) *cobra.Command {
	o := &listenOptions{}
	cmd := &cobra.Command{
		Use:   "listen [url]",
		Short: "Print events from a stream endpoint",
		Long: `listen connects to an endpoint and prints every event it emits,
reconnecting with backoff when the stream drops.

Example:
  streamkit listen http://127.0.0.1:8080/events/demo
  streamkit listen -X POST -d '{"inputs":{},"query":"hi"}' --dialect chunked --workflow --token $KEY https://api.example.com/v1/workflows/run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.listen(cmd, args, o)
		},
	}
	o.register(cmd.Flags())
	return cmd
}

func (a *app) listen(cmd *cobra.Command, args []string, o *listenOptions) error {
	cfg := a.cfg.Stream
	if err := o.apply(cmd.Flags(), args, &cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := a.printer(cmd)
	opts := []sse.Option{
		sse.WithName("listen"),
		sse.WithLogger(a.log),
		sse.WithMetrics(a.metrics),
	}
	if o.decode {
		opts = append(opts, sse.WithDecoder(workflow.NewDecoder(
			p.workflowHandlers(o.verbose),
			workflow.WithLogger(a.log),
		)))
	}
	client, err := sse.New(cfg, opts...)
	if err != nil {
		return err
	}
	if o.lastEventID != "" {
		client.SetLastEventID(o.lastEventID)
	}

	finished := make(chan error, 1)
	finish := func(err error) {
		select {
		case finished <- err:
		default:
		}
	}

	seen := 0
	client.OnStatus(p.status)
	client.On(dispatch.Wildcard, func(ev event.Event) {
		switch ev.Type {
		case event.TypeError:
			data, _ := ev.Data.(event.ErrorData)
			p.failure(data)
			if !data.Retrying {
				finish(data.Err)
			}
			return
		case event.TypeClose:
			finish(nil)
			return
		case event.TypeOpen:
			return
		}
		if !o.decode {
			p.event(ev)
		}
		seen++
		if o.count > 0 && seen >= o.count {
			finish(nil)
		}
	})

	reg := component.NewRegistry().WithLogger(a.log)
	if err := reg.Register(client); err != nil {
		return err
	}
	return reg.Run(ctx, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return nil
		case err := <-finished:
			return err
		}
	})
}
