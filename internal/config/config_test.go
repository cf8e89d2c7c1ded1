package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
[api]
url = "https://tasks.example.com/api"

[live]
url = "wss://tasks.example.com/socket"
reconnect_max = "10s"

[log]
level = "debug"
`)
	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	cfg := l.Config()

	want := Default()
	want.API.URL = "https://tasks.example.com/api"
	want.Live.URL = "wss://tasks.example.com/socket"
	want.Live.ReconnectMax = 10 * time.Second
	want.Log.Level = "debug"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if l.File() != path {
		t.Errorf("File() = %q, want %q", l.File(), path)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "[http]\ntimeout = \"3s\"\n")
	t.Setenv("TSK_HTTP_TIMEOUT", "7s")
	t.Setenv("TSK_NOTICES_TTL", "1s")

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got := l.Config().HTTP.Timeout; got != 7*time.Second {
		t.Errorf("http.timeout = %s, want 7s", got)
	}
	if got := l.Config().Notices.TTL; got != time.Second {
		t.Errorf("notices.ttl = %s, want 1s", got)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("Load() of a missing explicit file succeeded")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"api scheme", func(c *Config) { c.API.URL = "ftp://x/api" }, "api.url"},
		{"live scheme", func(c *Config) { c.Live.URL = "http://localhost:5000/socket" }, "live.url"},
		{"no host", func(c *Config) { c.API.URL = "http:///api" }, "no host"},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"backoff order", func(c *Config) { c.Live.ReconnectMax = time.Millisecond }, "below live.reconnect_min"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"state dir", func(c *Config) { c.State.Dir = "" }, "state.dir"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteDefaultLoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tsk", "config.toml")
	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault() error: %v", err)
	}
	if err := WriteDefault(path, false); err == nil {
		t.Fatal("WriteDefault() overwrote an existing file")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Fatalf("WriteDefault(force) error: %v", err)
	}

	l, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if diff := cmp.Diff(Default(), l.Config()); diff != "" {
		t.Errorf("written defaults do not load back (-want +got):\n%s", diff)
	}
}

func TestEncodeYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeYAML(&buf, Default()); err != nil {
		t.Fatal(err)
	}
	var got map[string]map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, buf.String())
	}
	if got["live"]["reconnect_min"] != "500ms" {
		t.Errorf("live.reconnect_min = %v, want 500ms", got["live"]["reconnect_min"])
	}
	if got["api"]["url"] != "http://localhost:5000/api" {
		t.Errorf("api.url = %v", got["api"]["url"])
	}
}

func TestWatchReloads(t *testing.T) {
	path := writeFile(t, "[log]\nlevel = \"info\"\n")
	l, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	levels := make(chan string, 4)
	l.Watch(func(c *Config) { levels <- c.Log.Level }, func(err error) { t.Logf("reload error: %v", err) })

	if err := os.WriteFile(path, []byte("[log]\nlevel = \"debug\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case lvl := <-levels:
			if lvl == "debug" {
				if l.Config().Log.Level != "debug" {
					t.Fatal("Config() not updated after reload")
				}
				return
			}
		case <-deadline:
			t.Fatal("config change was not picked up")
		}
	}
}
