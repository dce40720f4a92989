package ir

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHeightsChain(t *testing.T) {
	g := NewGraph("main")
	a := source(g, dtypes.Float32, 2)
	b := mustAdd(g, testUnary, a.Value())
	c := mustAdd(g, testUnary, b.Value())
	d := mustAdd(g, testSink, c.Value())

	h := ComputeHeights(g)
	assert.Equal(t, []NodeID{d.ID()}, h.Sinks())
	for ii, n := range []*Node{a, b, c, d} {
		height, found := h.Height(n.ID(), d.ID())
		require.True(t, found)
		assert.Equal(t, 3-ii, height)
	}
	assert.Equal(t, 1, h.JumpDistance(a.ID(), b.ID()))
	assert.Equal(t, map[NodeID]int{d.ID(): 2}, h.HeightMap(b.ID()))
}

func TestComputeHeightsLongestPath(t *testing.T) {
	// x feeds the sink both directly and through a chain of 4 nodes.
	g := NewGraph("main")
	x := source(g, dtypes.Float32, 2)
	chain := x
	for range 4 {
		chain = mustAdd(g, testUnary, chain.Value())
	}
	sum := mustAdd(g, testPair, x.Value(), chain.Value())
	sink := mustAdd(g, testSink, sum.Value())
	dangling := mustAdd(g, testUnary, x.Value())

	h := ComputeHeights(g)
	assert.Equal(t, []NodeID{sink.ID(), dangling.ID()}, h.Sinks())
	height, _ := h.Height(x.ID(), sink.ID())
	assert.Equal(t, 6, height)
	height, _ = h.Height(x.ID(), dangling.ID())
	assert.Equal(t, 1, height)
	_, found := h.Height(sum.ID(), dangling.ID())
	assert.False(t, found)

	// The direct edge x -> sum spans the whole chain.
	assert.Equal(t, 5, h.JumpDistance(x.ID(), sum.ID()))
	assert.Equal(t, 1, h.JumpDistance(chain.ID(), sum.ID()))
	assert.Equal(t, 0, h.JumpDistance(dangling.ID(), sum.ID()))
}

func TestClassifyEdges(t *testing.T) {
	g := NewGraph("main")
	x := source(g, dtypes.Float32, 2)
	first := mustAdd(g, testUnary, x.Value())
	chain := first
	for range 4 {
		chain = mustAdd(g, testUnary, chain.Value())
	}
	sum := mustAdd(g, testPair, first.Value(), chain.Value())
	mustAdd(g, testSink, sum.Value())

	h := ComputeHeights(g)
	edges := ClassifyEdges(g, h, 3)
	require.Len(t, edges, 8)
	classes := make(map[EdgeClass]int)
	for _, edge := range edges {
		classes[edge.Class]++
		if edge.Source.Node == first.ID() && edge.Target == sum.ID() {
			assert.Equal(t, 5, edge.JumpDistance)
			assert.Equal(t, EdgeLongRange, edge.Class)
		}
		if edge.Source.Node == x.ID() {
			assert.Equal(t, EdgeCloned, edge.Class)
		}
	}
	assert.Equal(t, map[EdgeClass]int{EdgeCloned: 1, EdgeLongRange: 1, EdgeDirect: 6}, classes)

	// With the default threshold nothing is long range.
	for _, edge := range ClassifyEdges(g, h, DefaultMaxJumpDistance) {
		assert.NotEqual(t, EdgeLongRange, edge.Class)
	}
	assert.Equal(t, "long_range", EdgeLongRange.String())
}
