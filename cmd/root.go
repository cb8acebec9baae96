// Package cmd implements the tagnav command line.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tagnav/internal/config"
)

const defaultConfigPath = "tagnav.yml"

// rootOptions carries the global flags and what PersistentPreRunE derives
// from them to every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the command tree. Each call returns fresh flag state.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:           "tagnav",
		Short:         "Navigate image collections through nested tag trees",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.setup(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", defaultConfigPath, "Path to the page config (YAML or JSON)")
	root.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(
		newResolveCmd(o),
		newStepCmd(o),
		newServeCmd(o),
		newMCPCmd(o),
		newMountCmd(o),
		newDBCmd(o),
		newBuildCmd(o),
	)
	return root
}

func (o *rootOptions) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	// stdout belongs to command output and the MCP protocol
	o.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.logger)
	o.cfg = cfg
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tagnav:", err)
		os.Exit(1)
	}
}
