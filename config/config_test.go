package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.IsProd {
		t.Error("expected IsProd false without STAGE")
	}
	if cfg.Backend.BaseURL != "http://localhost:8000" {
		t.Errorf("unexpected default base URL %q", cfg.Backend.BaseURL)
	}
	if cfg.Probe.Interval != 30*time.Second {
		t.Errorf("unexpected probe interval %v", cfg.Probe.Interval)
	}
	if cfg.Stream.PingInterval != 10*time.Second {
		t.Errorf("unexpected ping interval %v", cfg.Stream.PingInterval)
	}
	if cfg.Stream.PongTimeout != 30*time.Second {
		t.Errorf("unexpected pong timeout %v", cfg.Stream.PongTimeout)
	}
	if cfg.Stream.ReconnectBase != time.Second || cfg.Stream.ReconnectMax != 30*time.Second {
		t.Errorf("unexpected reconnect delays %v/%v", cfg.Stream.ReconnectBase, cfg.Stream.ReconnectMax)
	}
	if cfg.Stream.HistorySize != 100 {
		t.Errorf("unexpected history size %d", cfg.Stream.HistorySize)
	}
	if !cfg.Dashboard.Enabled || cfg.Dashboard.Port != 8080 {
		t.Errorf("unexpected dashboard defaults %+v", cfg.Dashboard)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STAGE", "PROD")
	t.Setenv("BOT_BASE_URL", "https://bot.internal:9000")
	t.Setenv("STATUS_POLL_INTERVAL", "5s")
	t.Setenv("STREAM_PING_INTERVAL", "2s")
	t.Setenv("STREAM_PONG_TIMEOUT", "6s")
	t.Setenv("STREAM_RECONNECT_BASE", "500ms")
	t.Setenv("STREAM_RECONNECT_MAX", "10s")
	t.Setenv("STREAM_HISTORY_SIZE", "250")
	t.Setenv("DASHBOARD_ENABLED", "false")
	t.Setenv("DASHBOARD_PORT", "9090")

	cfg := Load()

	if !cfg.IsProd {
		t.Error("expected IsProd with STAGE=PROD")
	}
	if cfg.Backend.BaseURL != "https://bot.internal:9000" {
		t.Errorf("unexpected base URL %q", cfg.Backend.BaseURL)
	}
	if cfg.Probe.Interval != 5*time.Second {
		t.Errorf("unexpected probe interval %v", cfg.Probe.Interval)
	}
	if cfg.Stream.PingInterval != 2*time.Second || cfg.Stream.PongTimeout != 6*time.Second {
		t.Errorf("unexpected heartbeat settings %v/%v", cfg.Stream.PingInterval, cfg.Stream.PongTimeout)
	}
	if cfg.Stream.ReconnectBase != 500*time.Millisecond || cfg.Stream.ReconnectMax != 10*time.Second {
		t.Errorf("unexpected reconnect delays %v/%v", cfg.Stream.ReconnectBase, cfg.Stream.ReconnectMax)
	}
	if cfg.Stream.HistorySize != 250 {
		t.Errorf("unexpected history size %d", cfg.Stream.HistorySize)
	}
	if cfg.Dashboard.Enabled {
		t.Error("expected dashboard disabled")
	}
	if cfg.Dashboard.Port != 9090 {
		t.Errorf("unexpected dashboard port %d", cfg.Dashboard.Port)
	}
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("STATUS_POLL_INTERVAL", "soon")
	t.Setenv("STREAM_HISTORY_SIZE", "many")
	t.Setenv("STAGE", "staging")

	cfg := Load()

	if cfg.Probe.Interval != 30*time.Second {
		t.Errorf("expected default interval for unparseable value, got %v", cfg.Probe.Interval)
	}
	if cfg.Stream.HistorySize != 100 {
		t.Errorf("expected default history size for unparseable value, got %d", cfg.Stream.HistorySize)
	}
	if cfg.IsProd {
		t.Error("STAGE values other than PROD must not enable prod")
	}
}

func TestClone(t *testing.T) {
	cfg := Defaults()
	clone := cfg.Clone()
	clone.Backend.BaseURL = "http://other:1234"

	if cfg.Backend.BaseURL == clone.Backend.BaseURL {
		t.Error("expected clone to be independent of original")
	}

	var nilCfg *Config
	if nilCfg.Clone() != nil {
		t.Error("expected nil clone for nil config")
	}
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botwatch.yaml")
	body := []byte(`
backend:
  base_url: http://yaml-bot:8000
stream:
  ping_interval: 5s
  pong_timeout: 15s
dashboard:
  enabled: false
  port: 9999
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	base := Defaults()
	base.Discord.BotToken = "secret-token"

	cfg, err := LoadFile(path, base)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Backend.BaseURL != "http://yaml-bot:8000" {
		t.Errorf("unexpected base URL %q", cfg.Backend.BaseURL)
	}
	if cfg.Stream.PingInterval != 5*time.Second || cfg.Stream.PongTimeout != 15*time.Second {
		t.Errorf("unexpected heartbeat settings %v/%v", cfg.Stream.PingInterval, cfg.Stream.PongTimeout)
	}
	if cfg.Dashboard.Enabled || cfg.Dashboard.Port != 9999 {
		t.Errorf("unexpected dashboard overlay %+v", cfg.Dashboard)
	}

	// Absent fields keep base values; secrets survive the overlay.
	if cfg.Stream.HistorySize != 100 {
		t.Errorf("expected base history size preserved, got %d", cfg.Stream.HistorySize)
	}
	if cfg.Discord.BotToken != "secret-token" {
		t.Errorf("expected token preserved, got %q", cfg.Discord.BotToken)
	}
}

func TestLoadFile_TokenNotReadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "botwatch.yaml")
	body := []byte(`
discord:
  prod_channel_id: "123"
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path, Defaults())
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Discord.BotToken != "" {
		t.Errorf("token must never come from the file, got %q", cfg.Discord.BotToken)
	}
	if cfg.Discord.ProdChannelID != "123" {
		t.Errorf("unexpected channel id %q", cfg.Discord.ProdChannelID)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"), Defaults()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadFile_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path, Defaults()); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults valid", func(c *Config) {}, true},
		{"empty base url", func(c *Config) { c.Backend.BaseURL = "" }, false},
		{"zero probe interval", func(c *Config) { c.Probe.Interval = 0 }, false},
		{"zero ping interval", func(c *Config) { c.Stream.PingInterval = 0 }, false},
		{"pong shorter than ping", func(c *Config) {
			c.Stream.PingInterval = 10 * time.Second
			c.Stream.PongTimeout = 5 * time.Second
		}, false},
		{"max below base", func(c *Config) {
			c.Stream.ReconnectBase = 10 * time.Second
			c.Stream.ReconnectMax = time.Second
		}, false},
		{"zero history", func(c *Config) { c.Stream.HistorySize = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
