package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tagnav/internal/mcpserver"
	"github.com/agentic-research/tagnav/internal/server"
	"github.com/agentic-research/tagnav/internal/transport"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	var (
		listen   string
		allowAll bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the navigation JSON API over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tree, f, err := o.loadTree(ctx)
			if err != nil {
				return err
			}
			var prefetch *transport.Prefetcher
			if o.cfg.Prefetch > 0 {
				prefetch, err = transport.NewPrefetcher(f, o.cfg.Prefetch, o.logger)
				if err != nil {
					return err
				}
			}
			if listen != "" {
				o.cfg.Listen = listen
			}

			srv, err := server.New(server.Config{Listen: o.cfg.Listen, AllowAll: allowAll},
				&o.cfg.Page, tree, prefetch, o.logger)
			if err != nil {
				return err
			}

			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			o.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err = srv.Shutdown(shutdownCtx)
			if prefetch != nil {
				prefetch.Wait()
			}
			return errors.Join(err, <-errc)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	cmd.Flags().BoolVar(&allowAll, "cors-allow-all", false, "Allow every CORS origin")
	return cmd
}

func newMCPCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve navigation tools over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, _, err := o.loadTree(cmd.Context())
			if err != nil {
				return err
			}
			return mcpserver.NewServer(&o.cfg.Page, tree, o.logger).Serve()
		},
	}
}
