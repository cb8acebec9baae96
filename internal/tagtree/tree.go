// Package tagtree holds the in-memory tag tree: a nested mapping from tag
// value to a deeper mapping, ending in a payload of image references after
// exactly Depth keys.
package tagtree

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrBadShape = errors.New("tag tree has wrong shape")

// Payload is what a fully-specified selection resolves to: one reference or
// an ordered list of references.
type Payload struct {
	Refs []string
	List bool // true when the document held an array, even of length one
}

// Empty reports whether the payload names no resources at all.
func (p *Payload) Empty() bool {
	return p == nil || len(p.Refs) == 0
}

// Value returns the payload in document form: a string or a []any.
func (p *Payload) Value() any {
	if !p.List && len(p.Refs) == 1 {
		return p.Refs[0]
	}
	out := make([]any, len(p.Refs))
	for i, r := range p.Refs {
		out[i] = r
	}
	return out
}

// Node is either a branch (children keyed by tag value) or a leaf (payload).
type Node struct {
	children map[string]*Node
	payload  *Payload
}

func newBranch() *Node {
	return &Node{children: make(map[string]*Node)}
}

// NewLeaf wraps a payload in a leaf node.
func NewLeaf(p Payload) *Node {
	return &Node{payload: &p}
}

func (n *Node) IsLeaf() bool { return n != nil && n.payload != nil }

func (n *Node) Payload() *Payload {
	if n == nil {
		return nil
	}
	return n.payload
}

// Keys returns the child keys in no particular order. Callers that need a
// stable order go through selection.Reorder.
func (n *Node) Keys() []string {
	if n == nil || n.children == nil {
		return nil
	}
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	return keys
}

func (n *Node) Child(key string) (*Node, bool) {
	if n == nil || n.children == nil {
		return nil, false
	}
	c, ok := n.children[key]
	return c, ok
}

func (n *Node) Len() int {
	if n == nil {
		return 0
	}
	return len(n.children)
}

// Tree is a read-only tag tree whose leaves all sit at Depth.
type Tree struct {
	Root  *Node
	Depth int
}

// FromValue converts parsed JSON (map[string]any, string, []any of strings)
// into a Tree. Every path from the root must carry exactly depth keys before
// reaching a payload.
func FromValue(v any, depth int) (*Tree, error) {
	if depth < 1 {
		return nil, fmt.Errorf("%w: depth %d", ErrBadShape, depth)
	}
	root, err := build(v, depth, nil)
	if err != nil {
		return nil, err
	}
	return &Tree{Root: root, Depth: depth}, nil
}

func build(v any, remaining int, path []string) (*Node, error) {
	if remaining == 0 {
		p, err := payloadOf(v)
		if err != nil {
			return nil, fmt.Errorf("%w at /%s: %v", ErrBadShape, strings.Join(path, "/"), err)
		}
		return NewLeaf(p), nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w at /%s: expected mapping with %d more levels, got %T",
			ErrBadShape, strings.Join(path, "/"), remaining, v)
	}
	n := newBranch()
	for k, child := range m {
		c, err := build(child, remaining-1, append(path, k))
		if err != nil {
			return nil, err
		}
		n.children[k] = c
	}
	return n, nil
}

func payloadOf(v any) (Payload, error) {
	switch p := v.(type) {
	case string:
		return Payload{Refs: []string{p}}, nil
	case []any:
		refs := make([]string, 0, len(p))
		for i, e := range p {
			s, ok := e.(string)
			if !ok {
				return Payload{}, fmt.Errorf("payload element %d is %T, not a string", i, e)
			}
			refs = append(refs, s)
		}
		return Payload{Refs: refs, List: true}, nil
	case []string:
		return Payload{Refs: append([]string(nil), p...), List: true}, nil
	default:
		return Payload{}, fmt.Errorf("payload is %T, not a string or list", v)
	}
}

// InferDepth measures the depth of a parsed document. It reports false when
// branches disagree.
func InferDepth(v any) (int, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return 0, true
	}
	depth := -1
	for _, child := range m {
		d, uniform := InferDepth(child)
		if !uniform {
			return 0, false
		}
		if depth >= 0 && d != depth {
			return 0, false
		}
		depth = d
	}
	if depth < 0 {
		// an empty mapping is one level with nothing under it
		return 1, true
	}
	return depth + 1, true
}

// Walk follows path from the root and returns the node it lands on.
func (t *Tree) Walk(path []string) (*Node, bool) {
	n := t.Root
	for _, k := range path {
		c, ok := n.Child(k)
		if !ok {
			return nil, false
		}
		n = c
	}
	return n, true
}

// Leaves visits every leaf in lexical key order.
func (t *Tree) Leaves(fn func(path []string, p *Payload) error) error {
	return leaves(t.Root, nil, fn)
}

func leaves(n *Node, path []string, fn func([]string, *Payload) error) error {
	if n.IsLeaf() {
		return fn(append([]string(nil), path...), n.payload)
	}
	keys := n.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		if err := leaves(n.children[k], append(path, k), fn); err != nil {
			return err
		}
	}
	return nil
}

// Value converts the tree back into plain document form.
func (t *Tree) Value() map[string]any {
	v, _ := value(t.Root).(map[string]any)
	return v
}

func value(n *Node) any {
	if n.IsLeaf() {
		return n.payload.Value()
	}
	m := make(map[string]any, len(n.children))
	for k, c := range n.children {
		m[k] = value(c)
	}
	return m
}

// KeysByDepth lists every key present at each depth, sorted. It is the
// fallback key list for pages that do not declare one.
func KeysByDepth(t *Tree) [][]string {
	seen := make([]map[string]struct{}, t.Depth)
	for i := range seen {
		seen[i] = make(map[string]struct{})
	}
	var visit func(n *Node, d int)
	visit = func(n *Node, d int) {
		if d >= t.Depth || n.IsLeaf() {
			return
		}
		for k, c := range n.children {
			seen[d][k] = struct{}{}
			visit(c, d+1)
		}
	}
	visit(t.Root, 0)

	out := make([][]string, t.Depth)
	for d, set := range seen {
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out[d] = keys
	}
	return out
}
