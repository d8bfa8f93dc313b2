package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gitlab-composer.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Defaults(), cfg); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
	if cfg.ProjectPageSize != 10 || cfg.RefPageSize != 100 || cfg.Workers != 1 {
		t.Errorf("page sizes/workers = %d/%d/%d", cfg.ProjectPageSize, cfg.RefPageSize, cfg.Workers)
	}
	if !cfg.IncludeTags || !cfg.GitFallback {
		t.Error("tags and git fallback should be enabled by default")
	}
}

func TestDefaultCacheDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/var/cache/test")
	if got := DefaultCacheDir(); got != "/var/cache/test/gitlab-composer" {
		t.Errorf("DefaultCacheDir() = %q", got)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
base_url = "https://gitlab.example.com"
token = "from-file"
vendor_alias = "mirror"
workers = 4
timeout = "30s"
include_tags = false

[cache]
backend = "redis"
redis_url = "redis://localhost:6379/0"

[store]
mongo_uri = "mongodb://localhost:27017"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	want := Defaults()
	want.BaseURL = "https://gitlab.example.com"
	want.Token = "from-file"
	want.VendorAlias = "mirror"
	want.Workers = 4
	want.Timeout = 30 * time.Second
	want.IncludeTags = false
	want.Cache = CacheConfig{Backend: CacheRedis, RedisURL: "redis://localhost:6379/0"}
	want.Store.MongoURI = "mongodb://localhost:27017"
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate error: %v", err)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "base_url = \"https://gitlab.example.com\"\nwokers = 2\n")
	_, err := Load(path)
	if !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Fatalf("Load error = %v, want CONFIGURATION_ERROR", err)
	}
	if !strings.Contains(err.Error(), "wokers") {
		t.Errorf("error %q should name the unknown key", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if !errs.Is(err, errs.ErrCodeConfiguration) {
		t.Errorf("Load error = %v, want CONFIGURATION_ERROR", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load error = %v, want it to wrap os.ErrNotExist", err)
	}
}

func TestOverlayFromEnv(t *testing.T) {
	t.Setenv("GITLAB_COMPOSER_TOKEN", "from-env")
	t.Setenv("GITLAB_COMPOSER_WORKERS", "8")
	t.Setenv("GITLAB_COMPOSER_TIMEOUT", "2s")
	t.Setenv("GITLAB_COMPOSER_INCLUDE_TAGS", "false")
	t.Setenv("GITLAB_COMPOSER_CACHE_BACKEND", "none")
	t.Setenv("GITLAB_COMPOSER_REFRESH_TOKEN", "refresh-env")

	cfg := Defaults()
	cfg.BaseURL = "https://gitlab.example.com"
	cfg.Token = "from-file"
	cfg.Overlay(NewViper())

	if cfg.Token != "from-env" {
		t.Errorf("Token = %q, want from-env", cfg.Token)
	}
	if cfg.Workers != 8 || cfg.Timeout != 2*time.Second {
		t.Errorf("Workers/Timeout = %d/%s", cfg.Workers, cfg.Timeout)
	}
	if cfg.IncludeTags {
		t.Error("IncludeTags should be overridden to false")
	}
	if cfg.Cache.Backend != CacheNone {
		t.Errorf("Cache.Backend = %q, want none", cfg.Cache.Backend)
	}
	if cfg.RefreshToken != "refresh-env" {
		t.Errorf("RefreshToken = %q, want refresh-env", cfg.RefreshToken)
	}
	if cfg.BaseURL != "https://gitlab.example.com" {
		t.Errorf("unset keys should keep their value, BaseURL = %q", cfg.BaseURL)
	}
}

func TestValidate(t *testing.T) {
	valid := Defaults()
	valid.BaseURL = "https://gitlab.example.com"

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing base url", func(c *Config) { c.BaseURL = "" }},
		{"bad scheme", func(c *Config) { c.BaseURL = "ftp://gitlab.example.com" }},
		{"zero project page size", func(c *Config) { c.ProjectPageSize = 0 }},
		{"zero ref page size", func(c *Config) { c.RefPageSize = 0 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
		{"negative concurrency", func(c *Config) { c.MaxConcurrency = -1 }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"no cache dir", func(c *Config) { c.CacheDir = "" }},
		{"bad vendor alias", func(c *Config) { c.VendorAlias = "Not A Vendor" }},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"redis without url", func(c *Config) { c.Cache.Backend = CacheRedis }},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.modify(&cfg)
			if err := cfg.Validate(); !errs.Is(err, errs.ErrCodeConfiguration) {
				t.Errorf("Validate() = %v, want CONFIGURATION_ERROR", err)
			}
		})
	}
}
