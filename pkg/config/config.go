// Package config loads gitlab-composer settings from a TOML file and
// overlays environment variables and command-line flags through viper.
//
// A minimal file:
//
//	base_url = "https://gitlab.example.com"
//	token    = "..."
//
//	[cache]
//	backend = "file"
//
// Every key can be overridden from the environment with the
// GITLAB_COMPOSER_ prefix, nested keys joined by "_"
// (GITLAB_COMPOSER_CACHE_BACKEND).
package config

import (
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	errs "github.com/matzehuels/gitlab-composer/pkg/errors"
)

// EnvPrefix prefixes environment overrides.
const EnvPrefix = "GITLAB_COMPOSER"

const appName = "gitlab-composer"

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config holds every setting of a resolution pass and the services around it.
type Config struct {
	BaseURL         string        `toml:"base_url"`
	Token           string        `toml:"token"`
	CacheDir        string        `toml:"cache_dir"`
	VendorAlias     string        `toml:"vendor_alias"`
	ProjectPageSize int           `toml:"project_page_size"`
	RefPageSize     int           `toml:"ref_page_size"`
	Workers         int           `toml:"workers"`
	MaxConcurrency  int           `toml:"max_concurrency"`
	Timeout         time.Duration `toml:"timeout"`
	IncludeTags     bool          `toml:"include_tags"`
	GitFallback     bool          `toml:"git_fallback"`
	Listen          string        `toml:"listen"`
	RefreshToken    string        `toml:"refresh_token"`

	Cache CacheConfig `toml:"cache"`
	Store StoreConfig `toml:"store"`
}

// CacheConfig selects the content cache backend.
type CacheConfig struct {
	Backend  string `toml:"backend"`
	RedisURL string `toml:"redis_url"`
}

// StoreConfig selects where catalogs are persisted. An empty MongoURI keeps
// the JSON snapshot in the cache directory.
type StoreConfig struct {
	MongoURI      string `toml:"mongo_uri"`
	MongoDatabase string `toml:"mongo_database"`
}

// Defaults returns the configuration used for unset keys.
func Defaults() Config {
	return Config{
		CacheDir:        DefaultCacheDir(),
		ProjectPageSize: 10,
		RefPageSize:     100,
		Workers:         1,
		MaxConcurrency:  4,
		Timeout:         10 * time.Second,
		IncludeTags:     true,
		GitFallback:     true,
		Listen:          ":8080",
		Cache:           CacheConfig{Backend: CacheFile},
	}
}

// DefaultCacheDir follows the XDG convention (~/.cache/gitlab-composer).
func DefaultCacheDir() string {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), appName)
	}
	return filepath.Join(home, ".cache", appName)
}

// Load reads path over [Defaults]. An empty path returns the defaults.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errs.Wrap(errs.ErrCodeConfiguration, err, "reading %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return cfg, errs.New(errs.ErrCodeConfiguration, "%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Keys lists every setting in viper's dotted form.
var Keys = []string{
	"base_url", "token", "cache_dir", "vendor_alias",
	"project_page_size", "ref_page_size", "workers", "max_concurrency",
	"timeout", "include_tags", "git_fallback", "listen", "refresh_token",
	"cache.backend", "cache.redis_url",
	"store.mongo_uri", "store.mongo_database",
}

// NewViper returns a viper instance reading GITLAB_COMPOSER_* variables.
// Flags bound to it with BindPFlag override the environment.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range Keys {
		_ = v.BindEnv(k)
	}
	return v
}

// Overlay copies every key set in v (by environment or flag) into c.
func (c *Config) Overlay(v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}

	str("base_url", &c.BaseURL)
	str("token", &c.Token)
	str("cache_dir", &c.CacheDir)
	str("vendor_alias", &c.VendorAlias)
	num("project_page_size", &c.ProjectPageSize)
	num("ref_page_size", &c.RefPageSize)
	num("workers", &c.Workers)
	num("max_concurrency", &c.MaxConcurrency)
	if v.IsSet("timeout") {
		c.Timeout = v.GetDuration("timeout")
	}
	flag("include_tags", &c.IncludeTags)
	flag("git_fallback", &c.GitFallback)
	str("listen", &c.Listen)
	str("refresh_token", &c.RefreshToken)
	str("cache.backend", &c.Cache.Backend)
	str("cache.redis_url", &c.Cache.RedisURL)
	str("store.mongo_uri", &c.Store.MongoURI)
	str("store.mongo_database", &c.Store.MongoDatabase)
}

var vendorRegex = regexp.MustCompile(`^[a-z0-9]([_.-]?[a-z0-9]+)*$`)

// Validate reports the first invalid setting as a CONFIGURATION error.
func (c Config) Validate() error {
	if err := errs.ValidateBaseURL(c.BaseURL); err != nil {
		return err
	}
	switch {
	case c.ProjectPageSize <= 0:
		return errs.New(errs.ErrCodeConfiguration, "project_page_size must be positive, got %d", c.ProjectPageSize)
	case c.RefPageSize <= 0:
		return errs.New(errs.ErrCodeConfiguration, "ref_page_size must be positive, got %d", c.RefPageSize)
	case c.Workers <= 0:
		return errs.New(errs.ErrCodeConfiguration, "workers must be at least 1, got %d", c.Workers)
	case c.MaxConcurrency < 0:
		return errs.New(errs.ErrCodeConfiguration, "max_concurrency cannot be negative, got %d", c.MaxConcurrency)
	case c.Timeout <= 0:
		return errs.New(errs.ErrCodeConfiguration, "timeout must be positive, got %s", c.Timeout)
	case c.CacheDir == "":
		return errs.New(errs.ErrCodeConfiguration, "cache_dir is required")
	}
	if c.VendorAlias != "" && !vendorRegex.MatchString(c.VendorAlias) {
		return errs.New(errs.ErrCodeConfiguration, "vendor_alias %q is not a valid vendor name", c.VendorAlias)
	}
	if !slices.Contains([]string{CacheFile, CacheRedis, CacheNone}, c.Cache.Backend) {
		return errs.New(errs.ErrCodeConfiguration, "cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.Backend == CacheRedis && c.Cache.RedisURL == "" {
		return errs.New(errs.ErrCodeConfiguration, "cache.redis_url is required for the redis backend")
	}
	return nil
}
