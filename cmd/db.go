package cmd

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentic-research/tagnav/internal/tagdb"
)

const defaultDBPath = "tags.db"

func newDBCmd(o *rootOptions) *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the image tag database",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "Path to the SQLite tag database")

	open := func(cmd *cobra.Command) (*tagdb.DB, error) {
		return tagdb.Open(cmd.Context(), dbPath)
	}

	var tags map[string]string
	add := &cobra.Command{
		Use:   "add <file>...",
		Short: "Tag image files, replacing any previous tags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(tags) == 0 {
				return fmt.Errorf("at least one --tag name=value is required")
			}
			db, err := open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			records := make([]tagdb.Record, len(args))
			for i, f := range args {
				records[i] = tagdb.Record{File: f, Tags: tags}
			}
			if err := db.Put(cmd.Context(), records...); err != nil {
				return err
			}
			o.logger.Info("tagged files", "count", len(records), "db", dbPath)
			return nil
		},
	}
	add.Flags().StringToStringVarP(&tags, "tag", "t", nil, "Tag as name=value (repeatable)")

	rm := &cobra.Command{
		Use:   "rm <file>...",
		Short: "Remove image files from the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			n, err := db.Delete(cmd.Context(), args...)
			if err != nil {
				return err
			}
			o.logger.Info("removed files", "count", n, "db", dbPath)
			return nil
		},
	}

	var where map[string]string
	ls := &cobra.Command{
		Use:   "ls",
		Short: "List image files and their tags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			records, err := db.Select(cmd.Context(), where)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\n", r.File, formatTags(r.Tags))
			}
			return tw.Flush()
		},
	}
	ls.Flags().StringToStringVarP(&where, "where", "w", nil, "Only files whose tag equals name=value")

	merge := &cobra.Command{
		Use:   "merge <other.db>...",
		Short: "Copy every record of other databases into this one",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()
			for _, path := range args {
				other, err := tagdb.Open(cmd.Context(), path)
				if err != nil {
					return err
				}
				n, err := db.Merge(cmd.Context(), other)
				_ = other.Close()
				if err != nil {
					return fmt.Errorf("merge %s: %w", path, err)
				}
				o.logger.Info("merged", "from", path, "records", n)
			}
			return nil
		},
	}

	cmd.AddCommand(add, rm, ls, merge)
	return cmd
}

// formatTags renders tags as sorted name=value pairs.
func formatTags(tags map[string]string) string {
	names := make([]string, 0, len(tags))
	for n := range tags {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + "=" + tags[n]
	}
	return strings.Join(parts, " ")
}
