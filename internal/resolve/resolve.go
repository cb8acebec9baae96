// Package resolve walks a selection vector down a tag tree, repairing any
// index that no longer names a real child, and reports the payload together
// with the valid options at every depth.
package resolve

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/agentic-research/tagnav/internal/selection"
	"github.com/agentic-research/tagnav/internal/tagtree"
)

var ErrDepthMismatch = errors.New("key lists and tag tree disagree on depth")

// Result is everything a renderer needs after one resolution.
type Result struct {
	// Payload is nil when the selection dead-ends before the last depth.
	Payload *tagtree.Payload
	// Options[d] lists the values valid at depth d, in key-list order.
	Options [][]string
	// Selected[d] is the chosen value at depth d, "" past a dead end.
	Selected []string
	// Dropped[d] lists tree keys at depth d that the key list does not know.
	Dropped [][]string
	// Repaired lists the depths whose index was replaced.
	Repaired []int
}

// Empty reports the "no content for this selection" state.
func (r Result) Empty() bool { return r.Payload.Empty() }

// Resolver binds a tag tree to the key lists that index it.
type Resolver struct {
	tree   *tagtree.Tree
	keys   selection.KeyLists
	logger *slog.Logger
}

func New(tree *tagtree.Tree, keys selection.KeyLists, logger *slog.Logger) (*Resolver, error) {
	if tree.Depth != keys.Depth() {
		return nil, fmt.Errorf("%w: tree %d, keys %d", ErrDepthMismatch, tree.Depth, keys.Depth())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{tree: tree, keys: keys, logger: logger}, nil
}

func (r *Resolver) Keys() selection.KeyLists { return r.keys }

func (r *Resolver) Tree() *tagtree.Tree { return r.tree }

// Resolve repairs sel in place from startDepth down and returns the payload
// and per-depth options. Indices before startDepth are trusted and never
// changed. If one of them does not name a real child the result dead-ends
// there, with the valid options at that depth still reported. sel must hold
// one index per dimension.
func (r *Resolver) Resolve(sel selection.Vector, startDepth int) Result {
	n := r.keys.Depth()
	if startDepth < 0 {
		startDepth = 0
	}
	res := Result{
		Options:  make([][]string, n),
		Selected: make([]string, n),
		Dropped:  make([][]string, n),
	}

	node := r.tree.Root
	for d := 0; d < n; d++ {
		options, dropped := selection.Reorder(node.Keys(), r.keys[d])
		res.Options[d] = options
		res.Dropped[d] = dropped
		if len(dropped) > 0 {
			r.logger.Debug("tree keys missing from key list", "depth", d, "dropped", dropped)
		}

		value, ok := r.keys.Value(d, sel[d])
		var child *tagtree.Node
		if ok {
			child, ok = node.Child(value)
		}
		if !ok {
			if d < startDepth || len(options) == 0 {
				r.deadEnd(&res, d+1)
				return res
			}
			value = options[0]
			child, _ = node.Child(value)
			r.logger.Debug("repaired selection", "depth", d, "from", sel[d], "to", value)
			sel[d] = r.keys.Index(d, value)
			res.Repaired = append(res.Repaired, d)
		}
		res.Selected[d] = value
		node = child
	}

	res.Payload = node.Payload()
	return res
}

// deadEnd fills the depths from d on with empty options.
func (r *Resolver) deadEnd(res *Result, d int) {
	for ; d < len(res.Options); d++ {
		res.Options[d] = []string{}
	}
}

// Validate is the repair-only pass: it fixes sel from startDepth down and
// reports whether anything changed.
func (r *Resolver) Validate(sel selection.Vector, startDepth int) bool {
	return len(r.Resolve(sel, startDepth).Repaired) > 0
}
