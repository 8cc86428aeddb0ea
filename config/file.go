package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile overlays a YAML config file on top of base. Fields absent from the
// file keep their base values; secrets (bot tokens) are never read from the
// file. Returns an error if the file is unreadable or not valid YAML.
func LoadFile(path string, base *Config) (*Config, error) {
	if base == nil {
		base = Defaults()
	}
	cfg := base.Clone()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config file: %w", err)
	}

	return cfg, nil
}

// Validate checks for values that would break the connection state machine.
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url must not be empty")
	}
	if c.Probe.Interval <= 0 {
		return fmt.Errorf("probe.interval must be positive, got %v", c.Probe.Interval)
	}
	if c.Stream.PingInterval <= 0 {
		return fmt.Errorf("stream.ping_interval must be positive, got %v", c.Stream.PingInterval)
	}
	if c.Stream.PongTimeout < c.Stream.PingInterval {
		return fmt.Errorf("stream.pong_timeout (%v) must not be shorter than ping_interval (%v)",
			c.Stream.PongTimeout, c.Stream.PingInterval)
	}
	if c.Stream.ReconnectBase <= 0 || c.Stream.ReconnectMax < c.Stream.ReconnectBase {
		return fmt.Errorf("stream reconnect delays invalid: base=%v max=%v",
			c.Stream.ReconnectBase, c.Stream.ReconnectMax)
	}
	if c.Stream.HistorySize <= 0 {
		return fmt.Errorf("stream.history_size must be positive, got %d", c.Stream.HistorySize)
	}
	return nil
}
