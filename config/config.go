package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Environment
	IsProd bool `yaml:"is_prod"`

	// Backend is the monitored trading bot
	Backend BackendConfig `yaml:"backend"`

	// Probe is the HTTP liveness prober
	Probe ProbeConfig `yaml:"probe"`

	// Stream is the resilient log/event stream connection
	Stream StreamConfig `yaml:"stream"`

	// Discord alerts
	Discord DiscordConfig `yaml:"discord"`

	// Telegram alerts
	Telegram TelegramConfig `yaml:"telegram"`

	// Dashboard HTTP server
	Dashboard DashboardConfig `yaml:"dashboard"`
}

// BackendConfig locates the monitored trading bot.
type BackendConfig struct {
	// BaseURL is the bot's HTTP base, e.g. http://localhost:8000.
	// The stream URL is derived from it by swapping the scheme.
	BaseURL string `yaml:"base_url"`
}

// ProbeConfig holds liveness prober configuration.
type ProbeConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// StreamConfig holds stream connection configuration.
type StreamConfig struct {
	PingInterval  time.Duration `yaml:"ping_interval"`  // outbound ping cadence while open
	PongTimeout   time.Duration `yaml:"pong_timeout"`   // max silence before force-close
	ReconnectBase time.Duration `yaml:"reconnect_base"` // backoff base delay
	ReconnectMax  time.Duration `yaml:"reconnect_max"`  // backoff delay cap
	HistorySize   int           `yaml:"history_size"`   // retained message count
}

// DiscordConfig holds Discord-related configuration.
type DiscordConfig struct {
	BotToken      string `yaml:"-"` // Excluded - env var only
	ProdChannelID string `yaml:"prod_channel_id"`
	BetaChannelID string `yaml:"beta_channel_id"`
}

// TelegramConfig holds Telegram-related configuration.
type TelegramConfig struct {
	BotToken   string `yaml:"-"` // Excluded - env var only
	ProdChatID string `yaml:"prod_chat_id"`
	BetaChatID string `yaml:"beta_chat_id"`
}

// DashboardConfig holds dashboard server configuration.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Clone creates a copy of the config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Defaults returns a config with hardcoded default values.
func Defaults() *Config {
	return &Config{
		IsProd: false,
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
		},
		Probe: ProbeConfig{
			Interval: 30 * time.Second,
			Timeout:  10 * time.Second,
		},
		Stream: StreamConfig{
			PingInterval:  10 * time.Second,
			PongTimeout:   30 * time.Second,
			ReconnectBase: 1 * time.Second,
			ReconnectMax:  30 * time.Second,
			HistorySize:   100,
		},
		Discord:  DiscordConfig{},
		Telegram: TelegramConfig{},
		Dashboard: DashboardConfig{
			Enabled: true,
			Port:    8080,
		},
	}
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		IsProd: envBool("STAGE", "PROD"),

		Backend: BackendConfig{
			BaseURL: envString("BOT_BASE_URL", "http://localhost:8000"),
		},

		Probe: ProbeConfig{
			Interval: envDuration("STATUS_POLL_INTERVAL", 30*time.Second),
			Timeout:  envDuration("STATUS_POLL_TIMEOUT", 10*time.Second),
		},

		Stream: StreamConfig{
			PingInterval:  envDuration("STREAM_PING_INTERVAL", 10*time.Second),
			PongTimeout:   envDuration("STREAM_PONG_TIMEOUT", 30*time.Second),
			ReconnectBase: envDuration("STREAM_RECONNECT_BASE", 1*time.Second),
			ReconnectMax:  envDuration("STREAM_RECONNECT_MAX", 30*time.Second),
			HistorySize:   envInt("STREAM_HISTORY_SIZE", 100),
		},

		Discord: DiscordConfig{
			BotToken:      envString("DISCORD_BOT_TOKEN", ""),
			ProdChannelID: envString("DISCORD_PROD_CHANNEL_ID", ""),
			BetaChannelID: envString("DISCORD_BETA_CHANNEL_ID", ""),
		},

		Telegram: TelegramConfig{
			BotToken:   envString("TELEGRAM_BOT_KEY", ""),
			ProdChatID: envString("TELEGRAM_PROD_CHAT_ID", ""),
			BetaChatID: envString("TELEGRAM_BETA_CHAT_ID", ""),
		},

		Dashboard: DashboardConfig{
			Enabled: envBoolDefault("DASHBOARD_ENABLED", true),
			Port:    envInt("DASHBOARD_PORT", 8080),
		},
	}
}

// Helper functions for parsing environment variables

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key, trueValue string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), trueValue)
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}
