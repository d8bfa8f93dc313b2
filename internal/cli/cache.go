package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gitlab-composer/pkg/config"
)

// gitDir holds the bare mirrors of repositories opened over git.
const gitDir = "git"

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the manifest cache and git mirrors",
	}

	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cachePathCommand())

	return cmd
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove cached manifests and git mirrors",
		Long: `Clear removes the file cache and git mirrors under cache_dir. The stored
catalog is kept. Entries in a shared Redis cache are left alone.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(false)
			if err != nil {
				return err
			}

			count, err := clearCache(cfg.CacheDir)
			if err != nil {
				return err
			}
			if count == 0 {
				printInfo("Cache is empty")
			} else {
				printSuccess("Cleared %d cached entries", count)
			}
			printDetail("Directory: %s", cfg.CacheDir)
			if cfg.Cache.Backend == config.CacheRedis {
				printWarning("Redis cache at %s was not cleared", cfg.Cache.RedisURL)
			}
			return nil
		},
	}
}

// clearCache removes the content cache and git mirrors under dir and
// returns the number of files removed.
func clearCache(dir string) (int, error) {
	count := 0
	for _, sub := range []string{contentDir, gitDir} {
		root := filepath.Join(dir, sub)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err == nil && !d.IsDir() {
				count++
			}
			return nil
		})
		if err != nil {
			return count, err
		}
		if err := os.RemoveAll(root); err != nil {
			return count, fmt.Errorf("remove %s: %w", root, err)
		}
	}
	return count, nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(false)
			if err != nil {
				return err
			}
			fmt.Println(cfg.CacheDir)
			return nil
		},
	}
}
