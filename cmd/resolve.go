package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [query]",
		Short: "Resolve a page query and print the view as JSON",
		Long: `Resolve loads the page documents, applies the query (a "?a|b|" string or a
full page URL), repairs it against the tag tree and prints the result.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query string
			if len(args) == 1 {
				query = args[0]
			}
			s, err := o.newSession(cmd.Context(), query)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(s.View())
		},
	}
}

func newStepCmd(o *rootOptions) *cobra.Command {
	var (
		dir   int
		count int
	)
	cmd := &cobra.Command{
		Use:   "step [query]",
		Short: "Step the animated dimension and print the URL of every frame",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			var query string
			if len(args) == 1 {
				query = args[0]
			}
			s, err := o.newSession(cmd.Context(), query)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for range count {
				moved, err := s.Step(dir)
				if err != nil {
					return err
				}
				if !moved {
					o.logger.Warn("nothing to animate at this selection", "query", s.Query())
					break
				}
				if _, err := fmt.Fprintln(out, s.URL(o.linkBase())); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&dir, "dir", 1, "Frames per step; negative steps backwards")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of steps")
	return cmd
}
