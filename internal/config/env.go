// Package config loads command configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/shadowproxy/shadowrelay/relay"
)

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// RelayEnv is the environment surface of cmd/shadowrelay.
type RelayEnv struct {
	Endpoint         string        `env:"SHADOWRELAY_ENDPOINT" envDefault:"http://127.0.0.1:5000/data"`
	Enabled          bool          `env:"SHADOWRELAY_ENABLED" envDefault:"true"`
	ForwardResponses bool          `env:"SHADOWRELAY_FORWARD_RESPONSES" envDefault:"false"`
	RedactHeaders    bool          `env:"SHADOWRELAY_REDACT_HEADERS" envDefault:"false"`
	Timeout          time.Duration `env:"SHADOWRELAY_TIMEOUT" envDefault:"10s"`
}

// RelayConfig converts the environment into a relay.Config.
func (e RelayEnv) RelayConfig() relay.Config {
	enabled := e.Enabled
	return relay.Config{
		Endpoint:         e.Endpoint,
		Enabled:          &enabled,
		ForwardResponses: e.ForwardResponses,
		RedactHeaders:    e.RedactHeaders,
		Timeout:          e.Timeout,
	}
}

// SinkEnv is the environment surface of cmd/shadowsink.
type SinkEnv struct {
	Addr   string `env:"SHADOWSINK_ADDR" envDefault:":5000"`
	DBPath string `env:"SHADOWSINK_DB"`
}
