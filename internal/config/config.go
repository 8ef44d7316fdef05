package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the client.
type Config struct {
	// APIURL is the Blogify backend base URL.
	APIURL string `yaml:"api_url" validate:"required,url"`

	// RealtimeURL is the WebSocket endpoint of the notification channel.
	// Derived from APIURL when empty.
	RealtimeURL string `yaml:"realtime_url" validate:"required,url"`

	// StateDB is the path of the local SQLite state file.
	StateDB string `yaml:"state_db" validate:"required"`

	HTTPTimeout       time.Duration `yaml:"http_timeout" validate:"gt=0"`
	ReconnectInterval time.Duration `yaml:"reconnect_interval" validate:"gt=0"`

	// SearchLimit is the page size of every search category.
	SearchLimit    int           `yaml:"search_limit" validate:"min=1,max=100"`
	SearchDebounce time.Duration `yaml:"search_debounce" validate:"gte=0"`

	// NoticeTTL is how long a transient notice stays visible.
	NoticeTTL time.Duration `yaml:"notice_ttl" validate:"gte=0"`

	// StatusAddr is the listen address of the local status server used by
	// the watch command. Empty disables it.
	StatusAddr string `yaml:"status_addr" validate:"omitempty,hostname_port"`

	LogLevel  string `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFormat string `yaml:"log_format" validate:"oneof=json text"`

	InboxMaxAge       time.Duration `yaml:"inbox_max_age" validate:"gt=0"`
	InboxMaxRows      int           `yaml:"inbox_max_rows" validate:"min=1"`
	RetentionInterval time.Duration `yaml:"retention_interval" validate:"gt=0"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	stateDB := "blogify.db"
	if home, err := os.UserHomeDir(); err == nil {
		stateDB = filepath.Join(home, ".blogify", "state.db")
	}
	return &Config{
		APIURL:            "http://localhost:5000",
		StateDB:           stateDB,
		HTTPTimeout:       30 * time.Second,
		ReconnectInterval: time.Second,
		SearchLimit:       2,
		SearchDebounce:    300 * time.Millisecond,
		NoticeTTL:         6 * time.Second,
		LogLevel:          "info",
		LogFormat:         "text",
		InboxMaxAge:       30 * 24 * time.Hour,
		InboxMaxRows:      1000,
		RetentionInterval: time.Minute,
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing precedence. A .env file in the working
// directory is loaded first if present. path may be empty, in which case
// BLOGIFY_CONFIG is consulted.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv("BLOGIFY_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.RealtimeURL == "" {
		u, err := DeriveRealtimeURL(cfg.APIURL)
		if err != nil {
			return nil, err
		}
		cfg.RealtimeURL = u
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.APIURL, "BLOGIFY_API_URL")
	setString(&c.RealtimeURL, "BLOGIFY_REALTIME_URL")
	setString(&c.StateDB, "BLOGIFY_STATE_DB")
	setString(&c.StatusAddr, "BLOGIFY_STATUS_ADDR")
	setString(&c.LogLevel, "BLOGIFY_LOG_LEVEL")
	setString(&c.LogFormat, "BLOGIFY_LOG_FORMAT")

	durations := []struct {
		dst *time.Duration
		key string
	}{
		{&c.HTTPTimeout, "BLOGIFY_HTTP_TIMEOUT"},
		{&c.ReconnectInterval, "BLOGIFY_RECONNECT_INTERVAL"},
		{&c.SearchDebounce, "BLOGIFY_SEARCH_DEBOUNCE"},
		{&c.NoticeTTL, "BLOGIFY_NOTICE_TTL"},
		{&c.InboxMaxAge, "BLOGIFY_INBOX_MAX_AGE"},
		{&c.RetentionInterval, "BLOGIFY_RETENTION_INTERVAL"},
	}
	for _, d := range durations {
		if v := os.Getenv(d.key); v != "" {
			parsed, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", d.key, err)
			}
			*d.dst = parsed
		}
	}

	ints := []struct {
		dst *int
		key string
	}{
		{&c.SearchLimit, "BLOGIFY_SEARCH_LIMIT"},
		{&c.InboxMaxRows, "BLOGIFY_INBOX_MAX_ROWS"},
	}
	for _, n := range ints {
		if v := os.Getenv(n.key); v != "" {
			parsed, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", n.key, err)
			}
			*n.dst = parsed
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("invalid config: %s fails %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
	}
	return fmt.Errorf("invalid config: %w", err)
}

// SlogLevel maps LogLevel to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
