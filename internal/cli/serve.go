package cli

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/matzehuels/gitlab-composer/pkg/repository"
	"github.com/matzehuels/gitlab-composer/pkg/server"
	"github.com/matzehuels/gitlab-composer/pkg/store"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the stored catalog as a Composer repository",
		Long: `Serve exposes the last stored catalog over HTTP:

  GET  /packages.json
  GET  /p/{vendor}/{package}.json
  POST /refresh      run a new pass and store it
  GET  /healthz

When nothing has been stored yet, one pass runs before the server starts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context())
		},
	}

	cmd.Flags().String("listen", "", "address to listen on (default :8080)")
	_ = c.viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func (c *CLI) runServe(ctx context.Context) error {
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
	rebuild := func(ctx context.Context) (*repository.Catalog, error) {
		return c.newBuilder(client, cch, cfg).Build(ctx)
	}

	if _, err := st.Latest(ctx); errors.Is(err, store.ErrNoCatalog) {
		c.Logger.Info("no stored catalog, running a first pass")
		cat, err := rebuild(ctx)
		if err != nil {
			c.Logger.Warn("first pass ended early, serving nothing until a refresh succeeds", "err", err)
		} else if err := st.Save(ctx, cat); err != nil {
			return err
		}
	}

	srv := server.New(st, rebuild, c.Logger,
		server.WithVendorAlias(cfg.VendorAlias),
		server.WithRefreshToken(cfg.RefreshToken))
	printInfo("Listening on %s", StyleHighlight.Render(cfg.Listen))
	err = srv.ListenAndServe(ctx, cfg.Listen)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
