package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Loaded is a configuration together with the viper instance it came from.
type Loaded struct {
	v    *viper.Viper
	file string

	mu  sync.Mutex
	cfg *Config
}

// Load resolves the configuration. path, when non-empty, must exist;
// otherwise the search paths are tried and a missing file means defaults.
func Load(path string) (*Loaded, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("toml")

	file, err := resolveFile(path)
	if err != nil {
		return nil, err
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Loaded{v: v, file: file, cfg: cfg}, nil
}

func resolveFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config: %w", err)
		}
		return path, nil
	}
	for _, p := range SearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Config returns the current configuration. After a hot reload it returns
// the reloaded values.
func (l *Loaded) Config() *Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// File returns the config file in use, or "" when running on defaults.
func (l *Loaded) File() string { return l.file }

// Watch reloads the file whenever it changes and hands the new
// configuration to fn. A change that fails to decode or validate is logged
// through onErr and the previous configuration stays in effect. Watching
// without a file is a no-op.
func (l *Loaded) Watch(fn func(*Config), onErr func(error)) {
	if l.file == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(l.v)
		if err != nil {
			if onErr != nil {
				onErr(err)
			}
			return
		}
		l.mu.Lock()
		l.cfg = cfg
		l.mu.Unlock()
		fn(cfg)
	})
	l.v.WatchConfig()
}

// WriteDefault writes the built-in configuration as TOML to path. It
// refuses to overwrite an existing file unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config: %s already exists", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := EncodeTOML(f, Default()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// EncodeTOML writes cfg as TOML, with durations as strings such as "500ms".
func EncodeTOML(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(textual(cfg)); err != nil {
		return fmt.Errorf("config: encode toml: %w", err)
	}
	return nil
}

// EncodeYAML writes cfg as YAML for `tsk config show`.
func EncodeYAML(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(textual(cfg)); err != nil {
		return fmt.Errorf("config: encode yaml: %w", err)
	}
	return enc.Close()
}

// textual renders durations as strings for the file encoders.
func textual(c *Config) map[string]map[string]any {
	return map[string]map[string]any{
		"api":  {"url": c.API.URL},
		"http": {"timeout": c.HTTP.Timeout.String()},
		"live": {
			"url":           c.Live.URL,
			"reconnect_min": c.Live.ReconnectMin.String(),
			"reconnect_max": c.Live.ReconnectMax.String(),
			"write_timeout": c.Live.WriteTimeout.String(),
		},
		"notices": {"ttl": c.Notices.TTL.String()},
		"cache":   {"fetch_timeout": c.Cache.FetchTimeout.String()},
		"state":   {"dir": c.State.Dir},
		"log": {
			"level":        c.Log.Level,
			"file":         c.Log.File,
			"max_size_mb":  c.Log.MaxSizeMB,
			"max_backups":  c.Log.MaxBackups,
			"max_age_days": c.Log.MaxAgeDays,
		},
	}
}
