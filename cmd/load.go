package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/agentic-research/tagnav/internal/loader"
	"github.com/agentic-research/tagnav/internal/session"
	"github.com/agentic-research/tagnav/internal/tagtree"
	"github.com/agentic-research/tagnav/internal/transport"
)

// base is where documents and image references are looked up.
func (o *rootOptions) base() string {
	if o.cfg.Base != "" {
		return o.cfg.Base
	}
	return filepath.Dir(o.configPath)
}

// linkBase is the configured base as a directory, for building page links.
func (o *rootOptions) linkBase() string {
	if o.cfg.Base == "" {
		return ""
	}
	return strings.TrimSuffix(o.cfg.Base, "/") + "/"
}

func (o *rootOptions) fetcher() (transport.Fetcher, error) {
	base := o.base()
	if transport.IsURL(base) {
		return transport.NewHTTPFetcher(base)
	}
	return transport.NewFSFetcher(osfs.New(base)), nil
}

// loadTree validates the config and loads its documents into a tree.
func (o *rootOptions) loadTree(ctx context.Context) (*tagtree.Tree, transport.Fetcher, error) {
	if err := o.cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("config %s: %w", o.configPath, err)
	}
	f, err := o.fetcher()
	if err != nil {
		return nil, nil, err
	}
	c, err := loader.CompressionFromName(o.cfg.CompressionName())
	if err != nil {
		return nil, nil, err
	}

	l := &loader.Loader{Fetcher: f, Logger: o.logger, Root: o.cfg.Root}
	res, err := l.Load(ctx, loader.Sources(o.cfg.Documents, c), o.cfg.Depth())
	if err != nil {
		return nil, nil, err
	}
	return res.Tree, f, nil
}

// newSession loads the tree and opens a session at query.
func (o *rootOptions) newSession(ctx context.Context, query string) (*session.Session, error) {
	tree, _, err := o.loadTree(ctx)
	if err != nil {
		return nil, err
	}
	s, err := session.New(&o.cfg.Page, tree, session.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	s.Init(query)
	return s, nil
}
