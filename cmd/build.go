package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/spf13/cobra"

	"github.com/agentic-research/tagnav/api"
	"github.com/agentic-research/tagnav/internal/loader"
	"github.com/agentic-research/tagnav/internal/tagdb"
	"github.com/agentic-research/tagnav/internal/tagtree"
)

// PageFileName is the page description written next to the documents.
const PageFileName = "page.json"

type buildOptions struct {
	dbPath      string
	outDir      string
	name        string
	title       string
	levels      []string
	splitBytes  int
	compression string
	animate     string
}

func newBuildCmd(o *rootOptions) *cobra.Command {
	b := &buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build tag tree documents and a page description from the tag database",
		Long: `Build groups every tagged image under the values of --levels, in order, and
writes the tree as JSON documents plus page.json into --out. page.json is a
valid config for the other commands. Large trees are split into fragment
documents with --split-bytes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			db, err := tagdb.Open(cmd.Context(), b.dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			tree, stats, err := db.BuildTree(cmd.Context(), b.levels)
			if err != nil {
				return err
			}
			if stats.Skipped > 0 {
				o.logger.Warn("records missing a level were skipped", "skipped", stats.Skipped, "levels", b.levels)
			}

			page, err := b.write(tree)
			if err != nil {
				return err
			}
			o.logger.Info("built page",
				"records", stats.Records-stats.Skipped,
				"documents", len(page.Documents),
				"out", b.outDir,
				"elapsed", time.Since(start))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&b.dbPath, "db", defaultDBPath, "Path to the SQLite tag database")
	f.StringVarP(&b.outDir, "out", "o", ".", "Output directory")
	f.StringVar(&b.name, "name", "page", "Base name of the tree documents")
	f.StringVar(&b.title, "title", "", "Page title")
	f.StringSliceVarP(&b.levels, "levels", "l", nil, "Tag names forming the tree levels, outermost first")
	f.IntVar(&b.splitBytes, "split-bytes", 0, "Split documents larger than this many bytes (0 disables)")
	f.StringVar(&b.compression, "compression", "none", "Document compression: none, zlib, gzip, zstd")
	f.StringVar(&b.animate, "animate", "", "Tag level to animate through")
	_ = cmd.MarkFlagRequired("levels")
	return cmd
}

// write stores the documents and page.json, returning the page.
func (b *buildOptions) write(tree *tagtree.Tree) (*api.Page, error) {
	c, err := loader.CompressionFromName(b.compression)
	if err != nil {
		return nil, err
	}
	docs, err := loader.Split(tree.Value(), b.splitBytes)
	if err != nil {
		return nil, err
	}

	out := osfs.New(b.outDir)
	page := &api.Page{
		Version:   "1",
		Title:     b.title,
		PageToken: "None",
		URL:       api.URLConfig{Mode: api.URLModeSlug, Separator: "|"},
	}
	if c != loader.None {
		page.Compression = c.String()
	}

	keys := tagtree.KeysByDepth(tree)
	for d, level := range b.levels {
		page.Dimensions = append(page.Dimensions, api.Dimension{Name: level, Keys: keys[d]})
		if level == b.animate {
			page.Animation = &api.Animation{Dimension: d, Direction: 1}
		}
	}
	if b.animate != "" && page.Animation == nil {
		return nil, fmt.Errorf("--animate %q is not one of the levels", b.animate)
	}

	for i, doc := range docs {
		name := fmt.Sprintf("%s_%d.json%s", b.name, i, c.Ext())
		if i == len(docs)-1 {
			name = b.name + ".json" + c.Ext()
		}
		data, err := loader.Encode(doc, c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := util.WriteFile(out, name, data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", filepath.Join(b.outDir, name), err)
		}
		page.Documents = append(page.Documents, name)
	}

	if err := page.Validate(); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := util.WriteFile(out, PageFileName, append(data, '\n'), 0o644); err != nil {
		return nil, fmt.Errorf("write %s: %w", PageFileName, err)
	}
	return page, nil
}
