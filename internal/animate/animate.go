// Package animate steps one designated dimension of a selection through the
// values valid at its current context, like frames of a flipbook.
package animate

import (
	"slices"

	"github.com/agentic-research/tagnav/internal/resolve"
	"github.com/agentic-research/tagnav/internal/selection"
	"github.com/agentic-research/tagnav/internal/tagtree"
)

// Animator holds the animated dimension and the frames available there.
type Animator struct {
	Dimension int
	// Direction scales every step; +1 or -1.
	Direction int
	// Options are the key-list indices valid at Dimension, canonical order.
	Options []int
}

func New(dimension, direction int) *Animator {
	if direction == 0 {
		direction = 1
	}
	return &Animator{Dimension: dimension, Direction: direction}
}

// Update refreshes Options from the outcome of a full resolution.
func (a *Animator) Update(keys selection.KeyLists, res resolve.Result) {
	if a.Dimension < 0 || a.Dimension >= len(res.Options) {
		a.Options = nil
		return
	}
	a.Options = keys.Indices(a.Dimension, res.Options[a.Dimension])
}

// Position is the index of the current frame within Options, or -1.
func (a *Animator) Position(sel selection.Vector) int {
	return slices.Index(a.Options, sel[a.Dimension])
}

// Step moves sel[Dimension] by dir frames, wrapping at both ends. A selection
// that is not among the options lands on the first frame going forward and
// the last going back. It reports
// false, leaving sel alone, when there is nothing to step through.
func (a *Animator) Step(sel selection.Vector, dir int) bool {
	n := len(a.Options)
	if n == 0 || dir == 0 {
		return false
	}
	step := dir * a.Direction
	pos := a.Position(sel)
	if pos < 0 && step < 0 {
		pos = n
	}
	pos = (pos + step) % n
	if pos < 0 {
		pos += n
	}
	sel[a.Dimension] = a.Options[pos]
	return true
}

// Advance steps, validates everything below the animated dimension, resolves
// and refreshes Options.
func (a *Animator) Advance(sel selection.Vector, dir int, r *resolve.Resolver) (resolve.Result, bool) {
	if !a.Step(sel, dir) {
		return resolve.Result{}, false
	}
	r.Validate(sel, a.Dimension+1)
	res := r.Resolve(sel, 0)
	a.Update(r.Keys(), res)
	return res, true
}

// Probe resolves the neighbouring frames on either side of sel without
// touching sel or the animator, handing each payload to fn. It is used to
// warm a fetch cache.
func (a *Animator) Probe(sel selection.Vector, r *resolve.Resolver, fn func(*tagtree.Payload)) {
	for _, dir := range []int{1, -1} {
		probe := sel.Clone()
		if !a.Step(probe, dir) {
			return
		}
		r.Validate(probe, a.Dimension+1)
		res := r.Resolve(probe, 0)
		if !res.Empty() {
			fn(res.Payload)
		}
	}
}
