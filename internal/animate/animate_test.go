package animate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tagnav/internal/resolve"
	"github.com/agentic-research/tagnav/internal/selection"
	"github.com/agentic-research/tagnav/internal/tagtree"
)

var keys = selection.KeyLists{
	{"modelA", "modelB"},
	{"t0", "t6", "t12"},
	{"low", "high"},
}

func newResolver(t *testing.T) *resolve.Resolver {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(`{
		"modelA": {
			"t0": {"low": "a0l.png", "high": "a0h.png"},
			"t12": {"high": "a12h.png"}
		},
		"modelB": {
			"t6": {"low": "b6l.png"}
		}
	}`), &v))
	tree, err := tagtree.FromValue(v, 3)
	require.NoError(t, err)
	r, err := resolve.New(tree, keys, nil)
	require.NoError(t, err)
	return r
}

func TestStepWrapsForward(t *testing.T) {
	a := New(1, 1)
	a.Options = []int{0, 2}
	sel := selection.Vector{0, 0, 0}

	require.True(t, a.Step(sel, 1))
	assert.Equal(t, 2, sel[1])
	require.True(t, a.Step(sel, 1))
	assert.Equal(t, 0, sel[1])
}

func TestStepDirectionScalesSteps(t *testing.T) {
	a := New(1, -1)
	a.Options = []int{0, 1, 2}
	sel := selection.Vector{0, 0, 0}

	a.Step(sel, 1)
	assert.Equal(t, 2, sel[1], "reversed animation steps back on forward")
}

func TestStepFromUnknownPosition(t *testing.T) {
	a := New(1, 1)
	a.Options = []int{0, 1, 2}

	sel := selection.Vector{0, 7, 0}
	a.Step(sel, 1)
	assert.Equal(t, 0, sel[1])

	sel = selection.Vector{0, 7, 0}
	a.Step(sel, -1)
	assert.Equal(t, 2, sel[1])
}

func TestStepWithoutOptions(t *testing.T) {
	a := New(1, 1)
	sel := selection.Vector{0, 1, 0}
	assert.False(t, a.Step(sel, 1))
	assert.Equal(t, selection.Vector{0, 1, 0}, sel)
}

func TestCyclicLaw(t *testing.T) {
	a := New(0, 1)
	a.Options = []int{1, 3, 4, 8}

	for _, start := range a.Options {
		sel := selection.Vector{start}
		for range a.Options {
			a.Step(sel, 1)
		}
		assert.Equal(t, start, sel[0], "full cycle from %d", start)

		a.Step(sel, -1)
		a.Step(sel, 1)
		assert.Equal(t, start, sel[0])
		a.Step(sel, 1)
		a.Step(sel, -1)
		assert.Equal(t, start, sel[0])
	}
}

func TestAdvanceRevalidatesLowerDimensions(t *testing.T) {
	r := newResolver(t)
	sel := selection.Vector{0, 0, 0}
	a := New(1, 1)
	a.Update(keys, r.Resolve(sel, 0))
	require.Equal(t, []int{0, 2}, a.Options)

	res, ok := a.Advance(sel, 1, r)
	require.True(t, ok)

	// modelA/t12 only has "high"
	assert.Equal(t, selection.Vector{0, 2, 1}, sel)
	assert.Equal(t, []string{"a12h.png"}, res.Payload.Refs)
	assert.Equal(t, []int{0, 2}, a.Options)
}

func TestProbeLeavesSelectionAlone(t *testing.T) {
	r := newResolver(t)
	sel := selection.Vector{0, 0, 1}
	a := New(1, 1)
	a.Update(keys, r.Resolve(sel, 0))
	before := sel.Clone()
	options := append([]int(nil), a.Options...)

	var warmed []string
	a.Probe(sel, r, func(p *tagtree.Payload) {
		warmed = append(warmed, p.Refs...)
	})

	assert.Equal(t, before, sel)
	assert.Equal(t, options, a.Options)
	// two options, so both neighbours are the same frame
	assert.Equal(t, []string{"a12h.png", "a12h.png"}, warmed)
}

func TestUpdateOutOfRangeDimension(t *testing.T) {
	a := New(5, 1)
	a.Options = []int{1}
	a.Update(keys, resolve.Result{Options: make([][]string, 3)})
	assert.Nil(t, a.Options)
}
