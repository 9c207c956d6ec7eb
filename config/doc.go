// Package config loads layered configuration for streamkit binaries.
//
// Values are read from a YAML file, then a .env file, then the process
// environment, each layer overriding the previous one. Environment
// variables may carry a prefix that is stripped before matching:
//
//	STREAMKIT_STREAM_URL=https://example.com/events
//
// sets stream.url. Binaries embed ServiceConfig in their own struct:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Stream sse.Config `yaml:"stream" mapstructure:"stream"`
//	}
package config
