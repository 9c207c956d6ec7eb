package main

import (
	"github.com/kbukum/streamkit/config"
	"github.com/kbukum/streamkit/mockserver"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/sse"
	"github.com/kbukum/streamkit/version"
	"github.com/kbukum/streamkit/workflow"
)

const (
	serviceName = "streamkit"
	envPrefix   = "STREAMKIT"
)

// appConfig is the file and environment configuration of the CLI.
type appConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Stream    sse.Config           `yaml:"stream" mapstructure:"stream"`
	Workflow  workflow.Config      `yaml:"workflow" mapstructure:"workflow"`
	Mock      mockserver.Config    `yaml:"mock" mapstructure:"mock"`
	Telemetry observability.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// defaultAppConfig holds the values a config file may override. Decoding
// only touches keys that are present.
func defaultAppConfig() appConfig {
	return appConfig{
		ServiceConfig: config.ServiceConfig{Name: serviceName},
		Stream:        sse.Config{AutoReconnect: true},
		Telemetry:     observability.DefaultConfig(serviceName),
	}
}

func (c *appConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	if c.Version == "" {
		c.Version = version.Get().Short()
	}
	c.Mock.ApplyDefaults()
	c.Telemetry.ServiceName = c.Name
	c.Telemetry.ServiceVersion = c.Version
	c.Telemetry.Environment = c.Environment
}
