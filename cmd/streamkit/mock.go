package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kbukum/streamkit/component"
	"github.com/kbukum/streamkit/mockserver"
)

type mockOptions struct {
	host        string
	port        int
	apiKey      string
	tokenSecret string
	redisAddr   string
	splitBytes  int
	chunkDelay  time.Duration
	keepAlive   time.Duration
	retry       time.Duration
}

func (o *mockOptions) register(f *pflag.FlagSet) {
	f.StringVar(&o.host, "host", "", "listen host")
	f.IntVarP(&o.port, "port", "p", 0, "listen port")
	f.StringVar(&o.apiKey, "api-key", "", "require this bearer token on workflow routes")
	f.StringVar(&o.tokenSecret, "token-secret", "", "also accept bearer tokens signed with this secret")
	f.StringVar(&o.redisAddr, "redis-addr", "", "relay broadcasts through this Redis server")
	f.IntVar(&o.splitBytes, "split-bytes", 0, "split workflow responses into writes of this size")
	f.DurationVar(&o.chunkDelay, "chunk-delay", 0, "pause between workflow writes")
	f.DurationVar(&o.keepAlive, "keep-alive", 0, "comment interval on event streams")
	f.DurationVar(&o.retry, "retry", 0, "retry hint sent to event stream clients")
}

func (o *mockOptions) apply(f *pflag.FlagSet, cfg *mockserver.Config) {
	if f.Changed("host") {
		cfg.Host = o.host
	}
	if f.Changed("port") {
		cfg.Port = o.port
	}
	if f.Changed("api-key") {
		cfg.APIKey = o.apiKey
	}
	if f.Changed("token-secret") {
		cfg.TokenSecret = o.tokenSecret
	}
	if f.Changed("redis-addr") {
		cfg.Redis.Addr = o.redisAddr
	}
	if f.Changed("split-bytes") {
		cfg.SplitBytes = o.splitBytes
	}
	if f.Changed("chunk-delay") {
		cfg.ChunkDelay = o.chunkDelay
	}
	if f.Changed("keep-alive") {
		cfg.KeepAlive = o.keepAlive
	}
	if f.Changed("retry") {
		cfg.Retry = o.retry
	}
}

func newMockCommand(a *app) *cobra.Command {
	o := &mockOptions{}
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve the mock event and workflow server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.mock(cmd, o)
		},
	}
	o.register(cmd.Flags())
	return cmd
}

func (a *app) mock(cmd *cobra.Command, o *mockOptions) error {
	cfg := a.cfg.Mock
	o.apply(cmd.Flags(), &cfg)

	srv, err := mockserver.New(cfg, a.log)
	if err != nil {
		return err
	}
	comp := mockserver.NewComponent(srv)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := component.NewRegistry().WithLogger(a.log)
	if err := reg.Register(comp); err != nil {
		return err
	}
	return reg.Run(ctx, func(ctx context.Context) error {
		p := a.printer(cmd)
		p.routes(srv.URL(), comp.Routes())
		for _, d := range reg.Describe() {
			p.line(p.dim.Render(d.Type), d.Name, p.dim.Render(d.Details))
		}
		<-ctx.Done()
		return nil
	})
}
