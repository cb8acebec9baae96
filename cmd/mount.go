package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tagnav/internal/nfsmount"
	"github.com/agentic-research/tagnav/internal/session"
)

func newMountCmd(o *rootOptions) *cobra.Command {
	var serveOnly bool
	cmd := &cobra.Command{
		Use:   "mount [mountpoint]",
		Short: "Mount the tag tree as a read-only NFS filesystem",
		Long: `Mount serves the tag tree over NFS on a loopback port and mounts it with the
system mount command (sudo). Each tag level is a directory; each leaf is a
file listing its images. With --serve-only the mount step is skipped and the
port is printed instead.`,
		Args: cobra.RangeArgs(0, 1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !serveOnly && len(args) != 1 {
				return fmt.Errorf("a mountpoint is required unless --serve-only is set")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tree, _, err := o.loadTree(ctx)
			if err != nil {
				return err
			}
			fs, err := nfsmount.NewTreeFS(tree, session.Keys(&o.cfg.Page, tree), &o.cfg.Page)
			if err != nil {
				return err
			}
			srv, err := nfsmount.NewServer(fs, o.logger)
			if err != nil {
				return err
			}
			defer func() { _ = srv.Close() }()

			if serveOnly {
				fmt.Fprintf(cmd.OutOrStdout(), "nfs server on 127.0.0.1:%d\n", srv.Port())
				<-ctx.Done()
				return nil
			}

			mountpoint := args[0]
			if err := srv.Mount(ctx, mountpoint); err != nil {
				return err
			}
			o.logger.Info("mounted", "mountpoint", mountpoint, "port", srv.Port())
			<-ctx.Done()

			unmountCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return nfsmount.Unmount(unmountCtx, mountpoint)
		},
	}
	cmd.Flags().BoolVar(&serveOnly, "serve-only", false, "Serve NFS without mounting")
	return cmd
}
