// Package config loads client settings from a TOML file and TSK_*
// environment variables through viper.
//
// Lookup order, later wins: built-in defaults, the config file, the
// environment. The file is the first of --config, $XDG_CONFIG_HOME/tsk/config.toml
// and ./tsk.toml that exists; having none is fine.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TSK_API_URL.
const EnvPrefix = "TSK"

// Config is the resolved client configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	Live    LiveConfig    `mapstructure:"live"`
	Notices NoticesConfig `mapstructure:"notices"`
	Cache   CacheConfig   `mapstructure:"cache"`
	State   StateConfig   `mapstructure:"state"`
	Log     LogConfig     `mapstructure:"log"`
}

type APIConfig struct {
	URL string `mapstructure:"url"`
}

type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LiveConfig struct {
	URL          string        `mapstructure:"url"`
	ReconnectMin time.Duration `mapstructure:"reconnect_min"`
	ReconnectMax time.Duration `mapstructure:"reconnect_max"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type NoticesConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type CacheConfig struct {
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
}

type StateConfig struct {
	// Dir holds the credential database.
	Dir string `mapstructure:"dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// File, when set, receives logs through a rotating writer in addition
	// to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API:  APIConfig{URL: "http://localhost:5000/api"},
		HTTP: HTTPConfig{Timeout: 10 * time.Second},
		Live: LiveConfig{
			URL:          "ws://localhost:5000/socket",
			ReconnectMin: 500 * time.Millisecond,
			ReconnectMax: 30 * time.Second,
			WriteTimeout: 5 * time.Second,
		},
		Notices: NoticesConfig{TTL: 4 * time.Second},
		Cache:   CacheConfig{FetchTimeout: 15 * time.Second},
		State:   StateConfig{Dir: DefaultStateDir()},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// DefaultStateDir is $XDG_STATE_HOME/tsk, falling back to
// ~/.local/state/tsk.
func DefaultStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "tsk")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "state", "tsk")
	}
	return filepath.Join(os.TempDir(), "tsk")
}

// DefaultPath is where `tsk config init` writes.
func DefaultPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tsk", "config.toml")
	}
	return "tsk.toml"
}

// SearchPaths lists the candidate config files in priority order.
func SearchPaths() []string {
	return []string{DefaultPath(), "tsk.toml"}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if err := checkURL(c.API.URL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("api.url: %w", err))
	}
	if err := checkURL(c.Live.URL, "ws", "wss"); err != nil {
		errs = append(errs, fmt.Errorf("live.url: %w", err))
	}
	for _, d := range []struct {
		key string
		val time.Duration
	}{
		{"http.timeout", c.HTTP.Timeout},
		{"live.reconnect_min", c.Live.ReconnectMin},
		{"live.reconnect_max", c.Live.ReconnectMax},
		{"live.write_timeout", c.Live.WriteTimeout},
		{"notices.ttl", c.Notices.TTL},
	} {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", d.key, d.val))
		}
	}
	if c.Cache.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("cache.fetch_timeout must not be negative"))
	}
	if c.Live.ReconnectMax < c.Live.ReconnectMin {
		errs = append(errs, fmt.Errorf("live.reconnect_max (%s) is below live.reconnect_min (%s)",
			c.Live.ReconnectMax, c.Live.ReconnectMin))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.State.Dir == "" {
		errs = append(errs, errors.New("state.dir is required"))
	}
	return errors.Join(errs...)
}

// ParseLevel parses a log level name ("debug", "info", "warn", "error").
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return l, nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Errorf("%q has no host", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("%q must use %s", raw, strings.Join(schemes, " or "))
}

// setDefaults registers every key so environment overrides apply even when
// the file does not mention the key.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api.url", d.API.URL)
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("live.url", d.Live.URL)
	v.SetDefault("live.reconnect_min", d.Live.ReconnectMin)
	v.SetDefault("live.reconnect_max", d.Live.ReconnectMax)
	v.SetDefault("live.write_timeout", d.Live.WriteTimeout)
	v.SetDefault("notices.ttl", d.Notices.TTL)
	v.SetDefault("cache.fetch_timeout", d.Cache.FetchTimeout)
	v.SetDefault("state.dir", d.State.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}
