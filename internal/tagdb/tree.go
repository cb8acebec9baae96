package tagdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/agentic-research/tagnav/internal/tagtree"
)

// BuildStats counts what BuildTree did with each record.
type BuildStats struct {
	Records int
	Skipped int
}

// BuildTree groups every record under the values of the given tags, in
// order, and makes the sorted file names of each group its list payload.
// Records lacking any of the tags are skipped.
func (d *DB) BuildTree(ctx context.Context, levels []string) (*tagtree.Tree, BuildStats, error) {
	var stats BuildStats
	if len(levels) == 0 {
		return nil, stats, errors.New("no tag levels given")
	}

	groups := make(map[string][]string)
	paths := make(map[string][]string)
	err := d.Stream(ctx, func(r Record) error {
		stats.Records++
		values := make([]string, len(levels))
		for i, tag := range levels {
			v, ok := r.Tags[tag]
			if !ok || v == "" {
				stats.Skipped++
				return nil
			}
			values[i] = v
		}
		key := strings.Join(values, "\x00")
		if _, ok := paths[key]; !ok {
			paths[key] = values
		}
		groups[key] = append(groups[key], r.File)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	tree := tagtree.New(len(levels))
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		files := groups[k]
		sort.Strings(files)
		if err := tree.Insert(paths[k], tagtree.Payload{Refs: files, List: true}); err != nil {
			return nil, stats, fmt.Errorf("insert %v: %w", paths[k], err)
		}
	}
	return tree, stats, nil
}
