package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for the blog server.
type Config struct {
	Addr         string     `toml:"addr"`
	SecretKey    string     `toml:"secret_key"`
	DatabaseURL  string     `toml:"database_url"`
	TemplateDir  string     `toml:"template_dir"`
	StaticDir    string     `toml:"static_dir"`
	LogLevel     string     `toml:"log_level"`     // debug, info, warn or error
	SessionHours int        `toml:"session_hours"` // lifetime of a login
	SecureCookie bool       `toml:"secure_cookie"` // set when served over https
	Mail         MailConfig `toml:"mail"`
}

// MailConfig holds the SMTP relay used by the contact form.
type MailConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	To             string `toml:"to,omitempty"` // defaults to username
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Workers        int    `toml:"workers"`
	QueueSize      int    `toml:"queue_size"`
}

// minSecretLen is the shortest secret accepted for signing cookies.
const minSecretLen = 16

// Default returns a Config with every optional field filled in.
func Default() *Config {
	return &Config{
		Addr:         ":5000",
		DatabaseURL:  "sqlite://blog.db",
		TemplateDir:  "web/templates",
		StaticDir:    "web/static",
		LogLevel:     "info",
		SessionHours: 24,
		Mail: MailConfig{
			Host:           "smtp.gmail.com",
			Port:           587,
			TimeoutSeconds: 120,
			Workers:        2,
			QueueSize:      16,
		},
	}
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionHours) * time.Hour
}

func (m MailConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// ApplyEnv overrides fields from the environment variables the site has
// always been deployed with.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("SECRET_KEY"); v != "" {
		c.SecretKey = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := getenv("MY_EMAIL"); v != "" {
		c.Mail.Username = v
	}
	if v := getenv("EMAIL_PASSWORD"); v != "" {
		c.Mail.Password = v
	}
	if v := getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
}

// Validate reports the first setting the server cannot start with.
func (c *Config) Validate() error {
	if len(c.SecretKey) < minSecretLen {
		return fmt.Errorf("secret_key must be at least %d bytes (set SECRET_KEY)", minSecretLen)
	}
	if c.SessionHours <= 0 {
		return errors.New("session_hours must be positive")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader on top of the defaults.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// DefaultPath is where the CLI reads and writes its config file.
const DefaultPath = "blog.toml"

// Load reads path when it exists, falls back to defaults when it does not,
// then applies environment overrides and validates the result.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			m := &Manager{}
			if cfg, err = m.Read(f); err != nil {
				return nil, fmt.Errorf("reading config from %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
	}
	cfg.ApplyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes cfg to path, refusing to overwrite an existing file.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("initializing config at %s: %w", path, err)
	}
	return nil
}
