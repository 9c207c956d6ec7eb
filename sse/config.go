package sse

import (
	"net/http"
	"strings"
	"time"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/frame"
	"github.com/kbukum/streamkit/httpclient"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/validation"
)

// Defaults and floors applied by ApplyDefaults.
const (
	DefaultRetryInterval     = 3 * time.Second
	MinRetryInterval         = time.Second
	DefaultMaxRetries        = 5
	DefaultTimeout           = 30 * time.Second
	MinTimeout               = 5 * time.Second
	DefaultConnectionTimeout = 10 * time.Second
	DefaultLogLevel          = "warn"
)

// Config configures a stream Client.
type Config struct {
	// URL is the absolute stream endpoint.
	URL string `json:"url" mapstructure:"url" validate:"required,stream_url"`
	// WithCredentials keeps cookies across reconnects.
	WithCredentials bool `json:"with_credentials" mapstructure:"with_credentials"`
	// RetryInterval is the backoff base. A server retry field overrides it.
	RetryInterval time.Duration `json:"retry_interval" mapstructure:"retry_interval"`
	// MaxRetries bounds consecutive reconnects. On a config that has not been
	// defaulted yet, zero means DefaultMaxRetries and a negative value means
	// no reconnects; ApplyDefaults stores the latter as 0.
	MaxRetries    int  `json:"max_retries" mapstructure:"max_retries"`
	AutoReconnect bool `json:"auto_reconnect" mapstructure:"auto_reconnect"`
	// Timeout is the longest silence tolerated on an open stream.
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`
	// ConnectionTimeout bounds the time spent connecting.
	ConnectionTimeout time.Duration `json:"connection_timeout" mapstructure:"connection_timeout"`
	// EventTypes restricts which decoded event types reach listeners. Empty allows all.
	EventTypes []string `json:"event_types" mapstructure:"event_types"`
	// Debug must be set for LogLevel "debug" to take effect.
	Debug    bool   `json:"debug" mapstructure:"debug"`
	LogLevel string `json:"log_level" mapstructure:"log_level" validate:"oneof=none error warn info debug"`

	Dialect string            `json:"dialect" mapstructure:"dialect"`
	Method  string            `json:"method" mapstructure:"method"`
	Headers map[string]string `json:"headers" mapstructure:"headers"`
	// Body is sent with POST requests on every connect. See httpclient.Request.
	Body any                    `json:"-" mapstructure:"-"`
	Auth *httpclient.AuthConfig `json:"-" mapstructure:"-"`

	// defaulted is set by ApplyDefaults so a stored MaxRetries of 0 is kept
	// when defaults are applied again.
	defaulted bool
}

// DefaultConfig returns the default configuration for url with
// auto-reconnect enabled.
func DefaultConfig(url string) Config {
	cfg := Config{URL: url, AutoReconnect: true}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values and raises durations to their floors.
func (c *Config) ApplyDefaults() {
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.RetryInterval < MinRetryInterval {
		c.RetryInterval = MinRetryInterval
	}
	switch {
	case c.MaxRetries < 0:
		c.MaxRetries = 0
	case c.MaxRetries == 0 && !c.defaulted:
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Timeout < MinTimeout {
		c.Timeout = MinTimeout
	}
	if c.ConnectionTimeout <= 0 {
		c.ConnectionTimeout = DefaultConnectionTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.Dialect == "" {
		c.Dialect = frame.DialectStandard
	}
	if c.Method == "" {
		c.Method = http.MethodGet
	}
	c.Method = strings.ToUpper(c.Method)
	c.defaulted = true
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	if _, err := frame.New(c.Dialect); err != nil {
		return err
	}
	if c.Method != http.MethodGet && c.Method != http.MethodPost {
		return errors.UnsupportedTransport("method", c.Method)
	}
	return nil
}

// Retries returns the effective reconnect bound.
func (c *Config) Retries() int {
	if c.MaxRetries < 0 {
		return 0
	}
	return c.MaxRetries
}

// EffectiveLogLevel returns LogLevel with debug downgraded to info unless Debug is set.
func (c *Config) EffectiveLogLevel() string {
	if c.LogLevel == "debug" && !c.Debug {
		return "info"
	}
	if c.LogLevel == "" {
		return DefaultLogLevel
	}
	return c.LogLevel
}

// allows reports whether eventType passes the EventTypes filter.
func (c *Config) allows(eventType string) bool {
	if len(c.EventTypes) == 0 {
		return true
	}
	for _, t := range c.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// clone returns a copy that shares no slices or maps with c.
func (c Config) clone() Config {
	if c.EventTypes != nil {
		c.EventTypes = append([]string(nil), c.EventTypes...)
	}
	if c.Headers != nil {
		h := make(map[string]string, len(c.Headers))
		for k, v := range c.Headers {
			h[k] = v
		}
		c.Headers = h
	}
	return c
}

// logFields returns the fields every client log line carries.
func (c *Config) logFields(name string) map[string]interface{} {
	return logger.Fields(
		logger.FieldClient, name,
		logger.FieldURL, c.URL,
		logger.FieldDialect, c.Dialect,
	)
}
