package mockserver

import (
	"time"

	"github.com/kbukum/streamkit/validation"
)

// Config configures the mock server.
type Config struct {
	Host string `json:"host" mapstructure:"host"`
	// Port to listen on. Zero picks a free port.
	Port int `json:"port" mapstructure:"port" validate:"min=0,max=65535"`
	// Retry is sent as the retry field of the first event on /events.
	Retry time.Duration `json:"retry" mapstructure:"retry"`
	// KeepAlive is the interval of comment lines on idle /events streams.
	KeepAlive time.Duration `json:"keep_alive" mapstructure:"keep_alive"`
	// SplitBytes, when positive, writes workflow streams in pieces of this
	// size so clients see frames cut across reads.
	SplitBytes int `json:"split_bytes" mapstructure:"split_bytes" validate:"min=0"`
	// ChunkDelay pauses between workflow stream writes.
	ChunkDelay time.Duration `json:"chunk_delay" mapstructure:"chunk_delay"`
	// APIKey, when set, is required as a bearer token on workflow routes.
	APIKey string `json:"api_key" mapstructure:"api_key"`
	// TokenSecret, when set, also admits HS256 tokens signed with it on
	// workflow routes. See Tokens.
	TokenSecret string        `json:"token_secret" mapstructure:"token_secret"`
	TokenTTL    time.Duration `json:"token_ttl" mapstructure:"token_ttl"`
	// Redis shares broadcasts between servers. See Relay.
	Redis RelayConfig `json:"redis" mapstructure:"redis"`
}

// ApplyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Retry <= 0 {
		c.Retry = 3 * time.Second
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 15 * time.Second
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = DefaultTokenTTL
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	return validation.Validate(c)
}
