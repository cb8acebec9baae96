package tagtree

import "fmt"

// New returns an empty tree of the given depth, ready for Merge.
func New(depth int) *Tree {
	return &Tree{Root: newBranch(), Depth: depth}
}

// FromRecord builds a single-path tree from one tag value per level.
func FromRecord(values []string, payload Payload) (*Tree, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: record has no levels", ErrBadShape)
	}
	n := NewLeaf(payload)
	for i := len(values) - 1; i >= 0; i-- {
		b := newBranch()
		b.children[values[i]] = n
		n = b
	}
	return &Tree{Root: n, Depth: len(values)}, nil
}

// Insert adds one path to the tree, replacing any payload already there.
func (t *Tree) Insert(values []string, payload Payload) error {
	if len(values) != t.Depth {
		return fmt.Errorf("%w: record has %d levels, tree has %d", ErrBadShape, len(values), t.Depth)
	}
	n := t.Root
	for i, v := range values {
		c, ok := n.children[v]
		if !ok {
			if i == len(values)-1 {
				c = NewLeaf(payload)
			} else {
				c = newBranch()
			}
			n.children[v] = c
		} else if i == len(values)-1 {
			c.payload = &payload
		}
		n = c
	}
	return nil
}

// Merge folds other into t. Branches are unioned. Where both trees carry a
// payload at the same path, other wins.
func (t *Tree) Merge(other *Tree) error {
	if other.Depth != t.Depth {
		return fmt.Errorf("%w: merging depth %d into depth %d", ErrBadShape, other.Depth, t.Depth)
	}
	mergeNodes(t.Root, other.Root)
	return nil
}

func mergeNodes(dst, src *Node) {
	for k, sc := range src.children {
		dc, ok := dst.children[k]
		switch {
		case !ok:
			dst.children[k] = sc
		case sc.IsLeaf():
			dc.payload = sc.payload
		default:
			mergeNodes(dc, sc)
		}
	}
}
