package httpclient

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"
)

const (
	defaultDialTimeout = 10 * time.Second
)

// Config configures the HTTP client.
type Config struct {
	// BaseURL is the base URL prepended to relative request paths.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// DialTimeout bounds TCP connection setup. Defaults to 10s. The stream
	// itself has no overall deadline; cancel the request context to end it.
	DialTimeout time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// Auth configures default authentication applied to all requests.
	Auth *AuthConfig `yaml:"-" mapstructure:"-"`

	// Headers are default headers applied to all requests.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`

	// WithCredentials keeps cookies set by the server and sends them on
	// later requests from the same client.
	WithCredentials bool `yaml:"with_credentials" mapstructure:"with_credentials"`

	// Transport overrides the round tripper. Nil uses a clone of http.DefaultTransport.
	Transport http.RoundTripper `yaml:"-" mapstructure:"-"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.DialTimeout <= 0 {
		c.DialTimeout = defaultDialTimeout
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DialTimeout <= 0 {
		return fmt.Errorf("httpclient: dial timeout must be positive")
	}
	return nil
}

func (c *Config) cookieJar() http.CookieJar {
	if !c.WithCredentials {
		return nil
	}
	// cookiejar.New only fails when given a broken PublicSuffixList
	jar, _ := cookiejar.New(nil)
	return jar
}
