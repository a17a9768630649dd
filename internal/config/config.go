// Package config provides YAML-based configuration loading for tableside.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level tableside configuration, loaded from tableside.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Notices   NoticesConfig   `yaml:"notices"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Journal   JournalConfig   `yaml:"journal"`
	Relay     RelayConfig     `yaml:"relay"`
}

// ServerConfig locates the backend socket. The auth token is never read
// from the file.
type ServerConfig struct {
	URL                string `yaml:"url"`
	DialTimeoutMS      int    `yaml:"dial_timeout_ms"`
	KeepaliveTimeoutMS int    `yaml:"keepalive_timeout_ms"`
}

// ReconnectConfig tunes the reconnect backoff.
type ReconnectConfig struct {
	BaseIntervalMS int `yaml:"base_interval_ms"`
	MaxIntervalMS  int `yaml:"max_interval_ms"`
	MaxAttempts    int `yaml:"max_attempts"`
}

// NoticesConfig holds staff-facing timing.
type NoticesConfig struct {
	ToastTimeoutMS int `yaml:"toast_timeout_ms"`
	LogoutDelayMS  int `yaml:"logout_delay_ms"`
}

// DashboardConfig holds settings for the local HTTP bridge.
type DashboardConfig struct {
	Port      int     `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"` // requests per second per client IP
	Burst     int     `yaml:"burst"`
}

// JournalConfig selects where activity is recorded.
type JournalConfig struct {
	Driver   string `yaml:"driver"` // sqlite or mysql
	Path     string `yaml:"path"`   // sqlite file
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RelayConfig forwards staff alerts to a chat channel.
type RelayConfig struct {
	Platform      string `yaml:"platform"` // slack, discord, or empty to disable
	Channel       string `yaml:"channel"`
	BotToken      string `yaml:"bot_token"`
	DedupWindowMS int    `yaml:"dedup_window_ms"`
	DigestCron    string `yaml:"digest_cron"`
}

// Enabled reports whether alerts are relayed.
func (r RelayConfig) Enabled() bool { return r.Platform != "" }

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.DialTimeoutMS == 0 {
		c.Server.DialTimeoutMS = 10000
	}
	if c.Server.KeepaliveTimeoutMS == 0 {
		c.Server.KeepaliveTimeoutMS = 60000
	}
	if c.Reconnect.BaseIntervalMS == 0 {
		c.Reconnect.BaseIntervalMS = 1000
	}
	if c.Reconnect.MaxIntervalMS == 0 {
		c.Reconnect.MaxIntervalMS = 30000
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = 5
	}
	if c.Notices.ToastTimeoutMS == 0 {
		c.Notices.ToastTimeoutMS = 3000
	}
	if c.Notices.LogoutDelayMS == 0 {
		c.Notices.LogoutDelayMS = 2000
	}
	if c.Dashboard.Port == 0 {
		c.Dashboard.Port = 8420
	}
	if c.Dashboard.RateLimit == 0 {
		c.Dashboard.RateLimit = 10
	}
	if c.Dashboard.Burst == 0 {
		c.Dashboard.Burst = 20
	}
	if c.Journal.Driver == "" {
		c.Journal.Driver = "sqlite"
	}
	if c.Journal.Driver == "sqlite" && c.Journal.Path == "" {
		c.Journal.Path = "tableside.db"
	}
	if c.Journal.Driver == "mysql" {
		if c.Journal.Host == "" {
			c.Journal.Host = "127.0.0.1"
		}
		if c.Journal.Port == 0 {
			c.Journal.Port = 3306
		}
		if c.Journal.User == "" {
			c.Journal.User = "root"
		}
		if c.Journal.Database == "" {
			c.Journal.Database = "tableside"
		}
	}
	if c.Relay.DedupWindowMS == 0 {
		c.Relay.DedupWindowMS = 30000
	}
	c.Relay.Platform = strings.ToLower(c.Relay.Platform)
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Server.URL == "" {
		errs = append(errs, "server.url is required")
	} else if u, err := url.Parse(c.Server.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Sprintf("server.url %q must be a ws:// or wss:// URL", c.Server.URL))
	}
	if c.Server.DialTimeoutMS < 0 || c.Server.KeepaliveTimeoutMS < 0 {
		errs = append(errs, "server timeouts must be positive")
	}
	if c.Reconnect.BaseIntervalMS < 0 {
		errs = append(errs, "reconnect.base_interval_ms must be positive")
	}
	if c.Reconnect.MaxIntervalMS < c.Reconnect.BaseIntervalMS {
		errs = append(errs, "reconnect.max_interval_ms must be at least base_interval_ms")
	}
	if c.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "reconnect.max_attempts must be positive")
	}
	if c.Notices.ToastTimeoutMS < 0 || c.Notices.LogoutDelayMS < 0 {
		errs = append(errs, "notices timings must be positive")
	}
	if c.Dashboard.Port < 0 || c.Dashboard.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dashboard.port %d is out of range", c.Dashboard.Port))
	}
	if c.Dashboard.RateLimit < 0 || c.Dashboard.Burst < 0 {
		errs = append(errs, "dashboard rate limit must be positive")
	}
	switch c.Journal.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("journal.driver %q must be sqlite or mysql", c.Journal.Driver))
	}
	switch c.Relay.Platform {
	case "":
	case "slack", "discord":
		if c.Relay.Channel == "" {
			errs = append(errs, "relay.channel is required when relay.platform is set")
		}
		if c.Relay.BotToken == "" {
			errs = append(errs, "relay.bot_token is required when relay.platform is set")
		}
	default:
		errs = append(errs, fmt.Sprintf("relay.platform %q must be slack or discord", c.Relay.Platform))
	}
	if c.Relay.DigestCron != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
		if _, err := parser.Parse(c.Relay.DigestCron); err != nil {
			errs = append(errs, fmt.Sprintf("relay.digest_cron: %v", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (s ServerConfig) DialTimeout() time.Duration      { return ms(s.DialTimeoutMS) }
func (s ServerConfig) KeepaliveTimeout() time.Duration { return ms(s.KeepaliveTimeoutMS) }
func (r ReconnectConfig) BaseInterval() time.Duration  { return ms(r.BaseIntervalMS) }
func (r ReconnectConfig) MaxInterval() time.Duration   { return ms(r.MaxIntervalMS) }
func (n NoticesConfig) ToastTimeout() time.Duration    { return ms(n.ToastTimeoutMS) }
func (n NoticesConfig) LogoutDelay() time.Duration     { return ms(n.LogoutDelayMS) }
func (r RelayConfig) DedupWindow() time.Duration       { return ms(r.DedupWindowMS) }
