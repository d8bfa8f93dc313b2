package cli

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gitlab-composer/pkg/repository"
	"github.com/matzehuels/gitlab-composer/pkg/vcs"
)

// showCommand creates the show command.
func (c *CLI) showCommand() *cobra.Command {
	var versions bool

	cmd := &cobra.Command{
		Use:   "show <repo-url> [ref]",
		Short: "Inspect a single repository through the VCS driver",
		Long: `Show opens one repository, through the GitLab API when it lives on the
configured instance and over git otherwise, and prints its root identifier
and refs. With a ref, it prints the source, dist and package name at that ref.`,
		Example: `  gitlab-composer show git@gitlab.example.com:acme/widget.git
  gitlab-composer show https://github.com/acme/widget.git v1.2.0
  gitlab-composer show https://gitlab.example.com/acme/widget --versions`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := ""
			if len(args) == 2 {
				ref = args[1]
			}
			return c.runShow(cmd.Context(), args[0], ref, versions)
		},
	}

	cmd.Flags().BoolVar(&versions, "versions", false, "list the installable versions")
	cmd.Flags().Bool("git-fallback", true, "use git when the GitLab API cannot serve the repository")
	_ = c.viper.BindPFlag("git_fallback", cmd.Flags().Lookup("git-fallback"))

	return cmd
}

func (c *CLI) runShow(ctx context.Context, rawURL, ref string, versions bool) error {
	cfg, err := c.loadConfig(false)
	if err != nil {
		return err
	}

	cch, err := c.openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer cch.Close()

	deps := vcs.Deps{
		Cache:       cch,
		CacheDir:    cfg.CacheDir,
		GitFallback: cfg.GitFallback,
		Logger:      loggerFromContext(ctx),
		RetryDelay:  repository.DefaultManifestRetryDelay,
	}
	if cfg.BaseURL != "" {
		if deps.GitLab, err = newGitLabClient(cfg); err != nil {
			return err
		}
	}

	f, err := vcs.Open(ctx, rawURL, deps)
	if err != nil {
		return err
	}

	printKeyValue("Driver", string(f.Kind()))
	printKeyValue("URL", StyleLink.Render(f.URL()))
	printKeyValue("Root", StyleHighlight.Render(f.RootIdentifier()))

	branches, err := f.Branches(ctx)
	if err != nil {
		return fmt.Errorf("list branches: %w", err)
	}
	tags, err := f.Tags(ctx)
	if err != nil {
		return fmt.Errorf("list tags: %w", err)
	}
	printKeyValue("Branches", StyleNumber.Render(fmt.Sprint(len(branches))))
	printKeyValue("Tags", StyleNumber.Render(fmt.Sprint(len(tags))))

	if ref != "" {
		if err := showRef(ctx, f, ref, append(branches, tags...)); err != nil {
			return err
		}
	}

	if versions {
		list, err := vcs.Versions(ctx, f, cfg.IncludeTags, loggerFromContext(ctx))
		if err != nil {
			return err
		}
		printNewline()
		for _, v := range list {
			style := StyleValue
			if v.IsDevelopment {
				style = StyleDev
			}
			fmt.Printf("  %-30s %s\n", style.Render(v.Version), StyleDim.Render(shortID(v.Source.Reference)))
		}
	}
	return nil
}

// showRef prints what the driver publishes for ref, which may be a branch
// or tag name or a commit id.
func showRef(ctx context.Context, d vcs.Driver, ref string, refs []repository.Ref) error {
	id := ref
	for _, r := range refs {
		if r.Name == ref {
			id = r.CommitID
			break
		}
	}

	printNewline()
	printKeyValue("Ref", ref)
	printKeyValue("Commit", id)

	src := d.Source(id)
	printKeyValue("Source", src.Type+" "+src.URL)
	if dist := d.Dist(id); dist != nil {
		printKeyValue("Dist", dist.Type+" "+StyleLink.Render(dist.URL))
	} else {
		printKeyValue("Dist", StyleDim.Render("none"))
	}

	m, err := d.ComposerInformation(ctx, id)
	if err != nil {
		printWarning("No usable composer.json at %s", ref)
		return nil
	}
	printKeyValue("Package", StyleHighlight.Render(m.Name))
	if len(m.Extra) > 0 {
		printDetail("also declares: %s", strings.Join(slices.Sorted(maps.Keys(m.Extra)), ", "))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}
