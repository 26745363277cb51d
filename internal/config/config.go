package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	AdminAddr  string `yaml:"admin_addr"`
	AdminKey   string `yaml:"admin_key"`

	HostURL string `yaml:"host_url"`

	// DataRoot points at the host's on-disk data directory; used only by the
	// offline scraper and the admin surface.
	DataRoot string `yaml:"data_root"`
	CacheDB  string `yaml:"cache_db"`

	PollStatusEvery time.Duration `yaml:"poll_status_every"`
	PollUsersEvery  time.Duration `yaml:"poll_users_every"`
	PollChatEvery   time.Duration `yaml:"poll_chat_every"`
	PollCombatEvery time.Duration `yaml:"poll_combat_every"`

	RequestTimeout time.Duration `yaml:"request_timeout"`
	LoginTimeout   time.Duration `yaml:"login_timeout"`

	SessionIdleExpiry time.Duration `yaml:"session_idle_expiry"`

	DebugLevel string `yaml:"debug_level"`
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("bridge.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaults() Config {
	return Config{
		ListenAddr:        ":5000",
		AdminAddr:         ":5001",
		HostURL:           "http://localhost:30000",
		CacheDB:           "./bridge-cache.db",
		PollStatusEvery:   1 * time.Second,
		PollUsersEvery:    3 * time.Second,
		PollChatEvery:     5 * time.Second,
		PollCombatEvery:   3 * time.Second,
		RequestTimeout:    4 * time.Second,
		LoginTimeout:      45 * time.Second,
		SessionIdleExpiry: 24 * time.Hour,
		DebugLevel:        "info",
	}
}

func (c *Config) Normalize() {
	d := defaults()
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = d.ListenAddr
	}
	if strings.TrimSpace(c.AdminAddr) == "" {
		c.AdminAddr = d.AdminAddr
	}
	if strings.TrimSpace(c.HostURL) == "" {
		c.HostURL = d.HostURL
	}
	c.HostURL = strings.TrimRight(c.HostURL, "/")
	if c.PollStatusEvery <= 0 {
		c.PollStatusEvery = d.PollStatusEvery
	}
	if c.PollUsersEvery <= 0 {
		c.PollUsersEvery = d.PollUsersEvery
	}
	if c.PollChatEvery <= 0 {
		c.PollChatEvery = d.PollChatEvery
	}
	if c.PollCombatEvery <= 0 {
		c.PollCombatEvery = d.PollCombatEvery
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = d.LoginTimeout
	}
	if c.SessionIdleExpiry <= 0 {
		c.SessionIdleExpiry = d.SessionIdleExpiry
	}
	if strings.TrimSpace(c.DebugLevel) == "" {
		c.DebugLevel = d.DebugLevel
	}
}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.HostURL, "http://") && !strings.HasPrefix(c.HostURL, "https://") {
		return fmt.Errorf("host_url must be http(s): %q", c.HostURL)
	}
	if c.ListenAddr == c.AdminAddr {
		return fmt.Errorf("listen_addr and admin_addr must differ")
	}
	switch c.DebugLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown debug_level %q", c.DebugLevel)
	}
	return nil
}
