// Package selection holds the selection vector and the canonical key lists
// it indexes into.
package selection

import (
	"slices"
	"sort"

	"github.com/RoaringBitmap/roaring"
)

// KeyLists holds, per dimension, the canonical ordered list of every value
// that dimension may take. Indices into these lists are what a Vector stores.
type KeyLists [][]string

// Depth is the number of dimensions.
func (k KeyLists) Depth() int { return len(k) }

// Index returns the first position of value in dimension d, or -1.
func (k KeyLists) Index(d int, value string) int {
	if d < 0 || d >= len(k) {
		return -1
	}
	return slices.Index(k[d], value)
}

// Value returns the key at (d, i). ok is false for an out-of-range index.
func (k KeyLists) Value(d, i int) (string, bool) {
	if d < 0 || d >= len(k) || i < 0 || i >= len(k[d]) {
		return "", false
	}
	return k[d][i], true
}

// Vector is the current selection: one key-list index per dimension.
type Vector []int

// Unset returns a vector of n invalid (-1) indices for the resolver to repair.
func Unset(n int) Vector {
	v := make(Vector, n)
	for i := range v {
		v[i] = -1
	}
	return v
}

func (v Vector) Clone() Vector { return slices.Clone(v) }

func (v Vector) Equal(o Vector) bool { return slices.Equal(v, o) }

// Reorder returns the members of actual that occur in canonical, in
// canonical order, each at most once. Members of actual that canonical does
// not list are returned, sorted, in dropped.
func Reorder(actual, canonical []string) (ordered, dropped []string) {
	pos := make(map[string]uint32, len(canonical))
	for i, c := range canonical {
		if _, seen := pos[c]; !seen {
			pos[c] = uint32(i)
		}
	}

	present := roaring.New()
	for _, a := range actual {
		if i, ok := pos[a]; ok {
			present.Add(i)
		} else {
			dropped = append(dropped, a)
		}
	}

	ordered = make([]string, 0, present.GetCardinality())
	it := present.Iterator()
	for it.HasNext() {
		ordered = append(ordered, canonical[it.Next()])
	}

	if len(dropped) > 1 {
		sort.Strings(dropped)
		dropped = slices.Compact(dropped)
	}
	return ordered, dropped
}

// Indices maps an ordered list of values to their key-list indices in
// dimension d, skipping values the key list does not hold.
func (k KeyLists) Indices(d int, values []string) []int {
	out := make([]int, 0, len(values))
	for _, v := range values {
		if i := k.Index(d, v); i >= 0 {
			out = append(out, i)
		}
	}
	return out
}
