package main

import (
	"context"
	stderrors "errors"

	"github.com/spf13/cobra"

	"github.com/kbukum/streamkit/config"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/version"
)

// app carries state shared by every subcommand.
type app struct {
	cfg     appConfig
	log     *logger.Logger
	metrics *observability.StreamMetrics

	configFile string
	envFile    string
	logLevel   string
	noColor    bool
	telemetry  bool

	shutdown []func(context.Context) error
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "streamkit",
		Short: "Consume and serve server-sent event streams",
		Long: `streamkit connects to SSE and chunked-JSON endpoints, prints what they
emit and runs workflow streams to completion. It also serves a mock
server for local testing.

Configuration is read from config.yml, then .env, then STREAMKIT_*
environment variables. Flags win over all of them.`,
		Version:            version.Get().Full(),
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.configFile, "config", "", "config file (default: search cmd/streamkit/config.yml, ./config.yml)")
	f.StringVar(&a.envFile, "env-file", "", ".env file to load")
	f.StringVar(&a.logLevel, "log-level", "", "log level: none, error, warn, info, debug")
	f.BoolVar(&a.noColor, "no-color", false, "disable colored output")
	f.BoolVar(&a.telemetry, "telemetry", false, "export traces and metrics over OTLP HTTP")

	root.AddCommand(
		newListenCommand(a),
		newWorkflowCommand(a),
		newMockCommand(a),
		newTokenCommand(a),
		newVersionCommand(a),
	)
	return root
}

// setup loads configuration, then initializes logging and telemetry.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.cfg = defaultAppConfig()
	files, err := config.Load(serviceName, &a.cfg,
		config.WithConfigFile(a.configFile),
		config.WithEnvFile(a.envFile),
		config.WithEnvPrefix(envPrefix),
	)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("log-level") {
		a.cfg.Logging.Level = a.logLevel
	}
	if f.Changed("no-color") {
		a.cfg.Logging.NoColor = a.noColor
	}
	if f.Changed("telemetry") {
		a.cfg.Telemetry.Enabled = a.telemetry
	}
	a.cfg.ApplyDefaults()
	if err := a.cfg.ServiceConfig.Validate(); err != nil {
		return err
	}

	a.log = logger.NewWithWriter(&a.cfg.Logging, a.cfg.Name, cmd.ErrOrStderr())
	logger.SetGlobalLogger(a.log)
	a.log.Debug("configuration loaded", logger.Fields(
		"config_file", files.ConfigFile,
		"env_file", files.EnvFile,
		"environment", a.cfg.Environment,
	))

	if a.cfg.Telemetry.Enabled {
		shutdown, err := observability.Init(cmd.Context(), &a.cfg.Telemetry)
		if err != nil {
			return err
		}
		a.shutdown = append(a.shutdown, shutdown)
	}
	a.metrics, err = observability.NewStreamMetrics(observability.Meter(serviceName))
	return err
}

// teardown flushes telemetry providers in reverse order.
func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	var errs []error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](context.WithoutCancel(cmd.Context())); err != nil {
			errs = append(errs, err)
		}
	}
	a.shutdown = nil
	return stderrors.Join(errs...)
}

func (a *app) printer(cmd *cobra.Command) *printer {
	return newPrinter(cmd.OutOrStdout(), a.cfg.Logging.NoColor)
}
