package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/gitlab-composer/pkg/composer"
	"github.com/matzehuels/gitlab-composer/pkg/observability"
)

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Run one resolution pass over every GitLab project",
		Long: `Resolve lists every project visible to the token, reads composer.json on the
default branch and on every branch and tag, and stores the resulting catalog.

A pass that fails to list projects is reported and not stored.`,
		Example: `  gitlab-composer resolve --config gitlab-composer.toml
  gitlab-composer resolve -o packages.json --workers 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runResolve(cmd, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "also write packages.json to this file (- for stdout)")
	cmd.Flags().Int("workers", 0, "projects processed concurrently")
	cmd.Flags().Bool("include-tags", true, "publish tags as well as branches")
	cmd.Flags().String("vendor-alias", "", "also publish every package under this vendor")
	_ = c.viper.BindPFlag("workers", cmd.Flags().Lookup("workers"))
	_ = c.viper.BindPFlag("include_tags", cmd.Flags().Lookup("include-tags"))
	_ = c.viper.BindPFlag("vendor_alias", cmd.Flags().Lookup("vendor-alias"))

	return cmd
}

func (c *CLI) runResolve(cmd *cobra.Command, output string) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig(true)
	if err != nil {
		return err
	}

	cch, err := c.openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer cch.Close()

	st, err := c.openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := newGitLabClient(cfg)
	if err != nil {
		return err
	}

	counters := &observability.Counters{}
	observability.SetCatalogHooks(counters)
	observability.SetCacheHooks(counters)
	observability.SetHTTPHooks(counters)

	prog := newProgress(c.Logger)
	var spinner *Spinner
	if c.Logger.GetLevel() > log.DebugLevel {
		spinner = newSpinnerWithContext(ctx, "Resolving "+client.Host()+"...").WithCounts(counters)
		spinner.Start()
	}

	cat, err := c.newBuilder(client, cch, cfg).Build(ctx)
	if spinner != nil {
		spinner.Stop()
	}
	printStats(counters.Snapshot(), cat.Duration())
	if err != nil {
		printWarning("Pass ended early, catalog not stored")
		return err
	}

	if err := st.Save(ctx, cat); err != nil {
		return fmt.Errorf("save catalog: %w", err)
	}
	for _, p := range cat.Skipped() {
		printDetail("skipped %s: %s", p.Project, p.Reason)
	}

	if output != "" {
		if err := writeRepository(output, cat.Repository(cfg.VendorAlias)); err != nil {
			return err
		}
		if output != "-" {
			printFile(output)
		}
	}

	prog.done(fmt.Sprintf("Resolved %d versions from %d projects", len(cat.Versions), len(cat.Projects)))
	printNextStep("Serve it", appName+" serve")
	return nil
}

// writeRepository writes a packages.json document to path, or stdout for "-".
func writeRepository(path string, repo *composer.Repository) error {
	if path == "-" {
		return repo.WriteJSON(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := repo.WriteJSON(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// formatDuration rounds d for display.
func formatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
