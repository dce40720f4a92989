package pass

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/graphir/ir"
	"github.com/gomlx/graphir/ops"
	"github.com/google/uuid"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPropertyMask(t *testing.T) {
	mask := MakePropertyMask(RequireStaticShape, ChangeFunctionState)
	assert.True(t, mask.Has(RequireStaticShape))
	assert.False(t, mask.Has(RegularFusions))
	assert.Equal(t, "RequireStaticShape|ChangeFunctionState", mask.String())
	assert.Equal(t, "ChangeFunctionState", mask.Without(RequireStaticShape).String())
	assert.Equal(t, "none", PropertyMask(0).String())
	assert.Equal(t, Property(1<<1), RegularFusions)
	assert.Equal(t, Property(1<<2), RequireStaticShape)
	assert.Equal(t, Property(1<<3), ChangeFunctionState)
}

func TestStateSetOnce(t *testing.T) {
	p := newFuncPass("p", nil)
	m1 := NewManager(DefaultConfig()).Register(p)
	assert.Same(t, m1.State(), p.State())

	// Same state again is fine, a different one panics.
	p.SetState(m1.State())
	m2 := NewManager(DefaultConfig())
	assert.Panics(t, func() { m2.Register(p) })
}

func TestCheck(t *testing.T) {
	dynamic := func() Pass { return newFuncPass("dynamic", nil, IntroduceDynamicShape) }
	m := NewManager(DefaultConfig()).Register(dynamic(), NewLiveness())
	err := m.Check()
	require.ErrorIs(t, err, ErrInconsistentPipeline)
	assert.Contains(t, err.Error(), `"liveness"`)

	_, err = m.Run(ir.NewModule())
	require.ErrorIs(t, err, ErrInconsistentPipeline)
	assert.Equal(t, Aborted, m.Status())

	m = NewManager(DefaultConfig()).Register(dynamic(), NewStaticShapeVerification(), NewLiveness())
	require.NoError(t, m.Check())
	m = NewManager(DefaultConfig()).Register(NewLiveness(), dynamic())
	require.NoError(t, m.Check())

	m = NewManager(DefaultConfig()).Register(&notAPass{})
	require.ErrorIs(t, m.Check(), ErrInconsistentPipeline)

	// With fixed point, passes at the end of the pipeline run again before those at its start.
	config := DefaultConfig()
	config.FixedPoint = true
	m = NewManager(config).Register(NewLiveness(), dynamic())
	err = m.Check()
	require.ErrorIs(t, err, ErrInconsistentPipeline)
	assert.Contains(t, err.Error(), "next fixed-point iteration")
	m = NewManager(config).Register(NewStaticShapeVerification(), NewLiveness(), dynamic())
	require.NoError(t, m.Check())
	m = NewManager(config).Register(NewLiveness(), dynamic(), NewStaticShapeVerification())
	require.NoError(t, m.Check())
}

func TestRunFixedPoint(t *testing.T) {
	g, priors := priorBoxGraph()
	assert.Equal(t, "{?, ?}", priors.OutputShape(0).String())

	config := DefaultConfig()
	config.FixedPoint = true
	m := NewManager(config).Register(NewConstantFolding(true), NewDeadNodeElimination(), NewStaticShapeVerification())
	assert.Equal(t, Idle, m.Status())
	assert.Equal(t, uuid.Nil, m.RunID())

	changed, err := m.Run(ir.NewModule(g))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, Done, m.Status())
	assert.NotEqual(t, uuid.Nil, m.RunID())
	assert.Equal(t, 1, m.State().Iteration(), "second iteration finds nothing to change")
	assert.True(t, m.State().Established(ProvideStaticShape))

	assert.Equal(t, "{2, 240}", priors.OutputShape(0).String())
	assert.Equal(t, 0, countKind(g, ops.KindShapeOf))
	assert.True(t, g.IsStatic())
	require.NoError(t, g.Validate())

	// Running again changes nothing, and gets a new run id.
	previousRun := m.RunID()
	changed, err = m.Run(ir.NewModule(g))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.NotEqual(t, previousRun, m.RunID())
}

func TestRunStaticShapeRequired(t *testing.T) {
	g, _ := priorBoxGraph()
	m := NewManager(DefaultConfig()).Register(NewDeadNodeElimination(), NewStaticShapeVerification())
	_, err := m.Run(ir.NewModule(g))
	require.ErrorIs(t, err, ErrStaticShapeRequired)
	assert.Contains(t, err.Error(), StaticShapeVerificationName)
	assert.Equal(t, Aborted, m.Status())

	// Passes requiring static shapes are checked at run time when nothing established them.
	g, _ = priorBoxGraph()
	m = NewManager(DefaultConfig()).Register(NewLiveness())
	_, err = m.Run(ir.NewModule(g))
	require.ErrorIs(t, err, ErrStaticShapeRequired)
	_, found := m.State().LivenessAnalysis(g.Name())
	assert.False(t, found, "liveness must not have run")
}

func TestRunNoFixedPoint(t *testing.T) {
	g, _ := squeezeGraph(2, 1, 3)
	restless := newFuncPass("restless", func(*ir.Graph) (bool, error) { return true, nil }, ChangeFunctionState)
	config := DefaultConfig()
	config.FixedPoint = true
	config.MaxIterations = 3
	m := NewManager(config).Register(restless)
	changed, err := m.Run(ir.NewModule(g))
	require.ErrorIs(t, err, ErrNoFixedPoint)
	assert.True(t, changed)
	assert.Equal(t, 3, restless.calls)
	assert.Equal(t, Aborted, m.Status())

	// Without FixedPoint, the pipeline runs once.
	restless = newFuncPass("restless", func(*ir.Graph) (bool, error) { return true, nil }, ChangeFunctionState)
	m = NewManager(DefaultConfig()).Register(restless)
	changed, err = m.Run(ir.NewModule(g))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, restless.calls)
}

func TestRunAbortsOnValidationError(t *testing.T) {
	g, squeeze := squeezeGraph(2, 1, 3)
	failing := newFuncPass("failing", func(g *ir.Graph) (bool, error) {
		wrong := must.M1(ops.Parameter(g, dtypes.Float32, ir.MakePartialShape(2, 2, 3)))
		return false, g.SetArgument(squeeze, 0, wrong.Value())
	}, ChangeFunctionState)
	after := newFuncPass("after", nil)
	m := NewManager(DefaultConfig()).Register(failing, after)

	_, err := m.Run(ir.NewModule(g))
	require.Error(t, err)
	require.True(t, ir.IsValidationError(err), "squeeze must reject unit axis with dimension 2")
	assert.Contains(t, err.Error(), `pass #0 "failing"`)
	assert.Equal(t, Aborted, m.Status())
	assert.Equal(t, 0, after.calls)
}

func TestRunAbortsOnInvariantViolation(t *testing.T) {
	g, squeeze := squeezeGraph(2, 1, 3)
	cyclic := newFuncPass("cyclic", func(g *ir.Graph) (bool, error) {
		result := g.Results()[0]
		return true, g.SetArgument(squeeze, 0, result.Value())
	}, ChangeFunctionState)
	m := NewManager(DefaultConfig()).Register(cyclic)

	err := exceptions.TryCatch[error](func() { _, _ = m.Run(ir.NewModule(g)) })
	require.Error(t, err)
	require.NotNil(t, ir.AsInvariantError(err))
	assert.Equal(t, Aborted, m.Status())

	// Changing a function without declaring it is a bug in the pass.
	sneaky := newFuncPass("sneaky", func(*ir.Graph) (bool, error) { return true, nil })
	m = NewManager(DefaultConfig()).Register(sneaky)
	err = exceptions.TryCatch[error](func() { _, _ = m.Run(ir.NewModule(g)) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ChangeFunctionState")
	assert.Equal(t, Aborted, m.Status())
}

func TestValidateBetweenPasses(t *testing.T) {
	g := ir.NewGraph("main")
	x := must.M1(ops.Parameter(g, dtypes.Float32, ir.MakePartialShape(2)))
	must.M1(ops.Result(g, must.M1(g.Add(testFlakyKind, []ir.Value{x.Value()}, nil)).Value()))
	flakyDim = 5
	defer func() { flakyDim = 5 }()

	// Changing the inference rule behind the graph's back leaves stale outputs.
	stale := func() Pass {
		return newFuncPass("stale", func(*ir.Graph) (bool, error) {
			flakyDim = 7
			return true, nil
		}, ChangeFunctionState)
	}
	m := NewManager(DefaultConfig()).Register(stale())
	err := exceptions.TryCatch[error](func() { _, _ = m.Run(ir.NewModule(g)) })
	require.Error(t, err)
	require.NotNil(t, ir.AsInvariantError(err))
	assert.Contains(t, err.Error(), `after pass #0 "stale"`)
	assert.Equal(t, Aborted, m.Status())

	config := DefaultConfig()
	config.ValidateBetweenPasses = false
	m = NewManager(config).Register(stale())
	changed, err := m.Run(ir.NewModule(g))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, Done, m.Status())
}

func TestNodePassSkipsRemovedNodes(t *testing.T) {
	g := ir.NewGraph("main")
	x := must.M1(ops.Parameter(g, dtypes.Float32, ir.MakePartialShape(2)))
	dangling := must.M1(ops.Add(g, x.Value(), x.Value()))
	must.M1(ops.Result(g, x.Value()))

	var visited []ir.Kind
	remover := &funcNodePass{Base: MakeBase(ChangeFunctionState), fn: func(n *ir.Node) (bool, error) {
		visited = append(visited, n.Kind())
		if n == x {
			return true, n.Graph().Remove(dangling)
		}
		return false, nil
	}}
	m := NewManager(DefaultConfig()).Register(remover)
	changed, err := m.Run(ir.NewModule(g))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []ir.Kind{ops.KindParameter, ops.KindResult}, visited)
}

func TestFusedOpDecomposition(t *testing.T) {
	g := ir.NewGraph("main")
	x := must.M1(ops.Parameter(g, dtypes.Float32, ir.MakePartialShape(2, 1, 1, 3)))
	inner := must.M1(ops.Squeeze(g, x.Value(), 1))
	outer := must.M1(ops.Squeeze(g, inner.Value(), 1))
	must.M1(ops.Result(g, outer.Value()))

	m := NewManager(DefaultConfig()).Register(NewFusedOpDecomposition(), NewDeadNodeElimination())
	changed, err := m.Run(ir.NewModule(g))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 0, countKind(g, ops.KindSqueeze))
	assert.Equal(t, 2, countKind(g, ops.KindReshape))
	assert.Equal(t, "{2, 3}", g.Results()[0].OutputShape(0).String())
	require.NoError(t, g.Validate())
}

func TestRunWrapsErrorsWithPassName(t *testing.T) {
	g, _ := squeezeGraph(2, 1, 3)
	sentinel := errors.New("boom")
	m := NewManager(DefaultConfig()).Register(newFuncPass("first", nil), newFuncPass("second",
		func(*ir.Graph) (bool, error) { return false, sentinel }))
	_, err := m.Run(ir.NewModule(g))
	require.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), `pass #1 "second"`)
	assert.Contains(t, err.Error(), `function "squeeze"`)
}

func TestCurrentPass(t *testing.T) {
	g, _ := squeezeGraph(2, 1, 3)
	m := NewManager(DefaultConfig())
	idx, current := m.CurrentPass()
	assert.Equal(t, -1, idx)
	assert.Nil(t, current)

	type observed struct {
		idx    int
		name   string
		status Status
	}
	var seen []observed
	observe := func(name string) Pass {
		return newFuncPass(name, func(*ir.Graph) (bool, error) {
			idx, p := m.CurrentPass()
			seen = append(seen, observed{idx, p.Name(), m.Status()})
			return false, nil
		})
	}
	m.Register(observe("first"), observe("second"))
	_, err := m.Run(ir.NewModule(g))
	require.NoError(t, err)
	assert.Equal(t, []observed{{0, "first", Running}, {1, "second", Running}}, seen)

	idx, current = m.CurrentPass()
	assert.Equal(t, -1, idx)
	assert.Nil(t, current)
}
