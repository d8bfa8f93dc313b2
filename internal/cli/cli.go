package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/matzehuels/gitlab-composer/pkg/buildinfo"
	"github.com/matzehuels/gitlab-composer/pkg/cache"
	"github.com/matzehuels/gitlab-composer/pkg/config"
	"github.com/matzehuels/gitlab-composer/pkg/httputil"
	"github.com/matzehuels/gitlab-composer/pkg/integrations"
	"github.com/matzehuels/gitlab-composer/pkg/integrations/gitlab"
	"github.com/matzehuels/gitlab-composer/pkg/repository"
	"github.com/matzehuels/gitlab-composer/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "gitlab-composer"

	// redisPrefix namespaces content cache keys in a shared Redis.
	redisPrefix = appName + ":"

	// contentDir holds the file cache under cache_dir.
	contentDir = "content"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configFile string
	viper      *viper.Viper
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		viper:  config.NewViper(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "gitlab-composer publishes GitLab projects as a Composer repository",
		Long: `gitlab-composer walks every project of a GitLab instance, reads composer.json
on each branch and tag, and builds a Composer package repository from them.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (TOML)")
	root.PersistentFlags().String("base-url", "", "GitLab base URL")
	root.PersistentFlags().String("cache-dir", "", "cache and snapshot directory")
	_ = c.viper.BindPFlag("base_url", root.PersistentFlags().Lookup("base-url"))
	_ = c.viper.BindPFlag("cache_dir", root.PersistentFlags().Lookup("cache-dir"))

	// Register all subcommands
	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.showCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Configuration
// =============================================================================

// loadConfig reads the config file, then environment and flag overrides.
// validate is false for commands that only read local state.
func (c *CLI) loadConfig(validate bool) (config.Config, error) {
	cfg, err := config.Load(c.configFile)
	if err != nil {
		return cfg, err
	}
	cfg.Overlay(c.viper)
	if validate {
		if err := cfg.Validate(); err != nil {
			return cfg, err
		}
	}
	c.Logger.Debug("configuration loaded", "file", c.configFile, "base_url", cfg.BaseURL, "cache", cfg.Cache.Backend)
	return cfg, nil
}

// =============================================================================
// Collaborators
// =============================================================================

// openCache returns the content cache selected by cfg.Cache.Backend.
func (c *CLI) openCache(ctx context.Context, cfg config.Config) (cache.Cache, error) {
	switch cfg.Cache.Backend {
	case config.CacheNone:
		return cache.NewNullCache(), nil
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, redisPrefix)
		if err != nil {
			return nil, fmt.Errorf("connect redis cache: %w", err)
		}
		return rc, nil
	default:
		return cache.NewFileCache(filepath.Join(cfg.CacheDir, contentDir))
	}
}

// openStore returns the catalog store selected by cfg.Store.
func (c *CLI) openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	return store.Open(ctx, cfg.CacheDir, cfg.Store.MongoURI, cfg.Store.MongoDatabase)
}

// newGitLabClient builds the API client shared by every request of a run.
func newGitLabClient(cfg config.Config) (*gitlab.Client, error) {
	limiter := httputil.NewLimiter(cfg.MaxConcurrency)
	api := integrations.NewClient(integrations.Options{
		Headers: gitlab.Headers(cfg.Token),
		Timeout: cfg.Timeout,
		Limiter: limiter,
	})
	return gitlab.NewClient(api, cfg.BaseURL)
}

// newBuilder wires a catalog builder from cfg.
func (c *CLI) newBuilder(client *gitlab.Client, cch cache.Cache, cfg config.Config) *repository.Builder {
	return repository.NewBuilder(client, repository.Options{
		ProjectPageSize: cfg.ProjectPageSize,
		RefPageSize:     cfg.RefPageSize,
		Workers:         cfg.Workers,
		IncludeTags:     cfg.IncludeTags,
		Cache:           cch,
		RetryDelay:      repository.DefaultManifestRetryDelay,
		Logger:          c.Logger,
	})
}
