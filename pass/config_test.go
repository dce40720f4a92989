package pass

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/graphir/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = ParseConfig([]byte(`
pipeline: [constant-folding, dead-node-elimination]
fixed_point: true
max_iterations: 4
workers: 2
diagnostics:
  log_long_range_edges: true
`))
	require.NoError(t, err)
	assert.Equal(t, []string{ConstantFoldingName, DeadNodeEliminationName}, cfg.Pipeline)
	assert.True(t, cfg.FixedPoint)
	assert.Equal(t, 4, cfg.MaxIterations)
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.Diagnostics.LogLongRangeEdges)
	assert.False(t, cfg.Diagnostics.LogGraphs)
	// Fields not given keep their defaults.
	assert.Equal(t, ir.DefaultMaxJumpDistance, cfg.MaxJumpDistance)
	assert.True(t, cfg.ValidateBetweenPasses)

	_, err = ParseConfig([]byte("max_iteration: 3\n"))
	require.Error(t, err, "unknown fields are rejected")

	_, err = ParseConfig([]byte("max_iterations: 0\n"))
	require.ErrorContains(t, err, "max_iterations")

	_, err = ParseConfig([]byte("max_jump_distance: -1\n"))
	require.ErrorContains(t, err, "max_jump_distance")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passes.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: [liveness]\nworkers: 3\n"), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{LivenessName}, cfg.Pipeline)
	assert.Equal(t, 3, cfg.Workers)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "missing.yaml")

	require.NoError(t, os.WriteFile(path, []byte("fixed_point: maybe\n"), 0o644))
	_, err = LoadConfig(path)
	require.ErrorContains(t, err, path)
}

func TestRegisteredPasses(t *testing.T) {
	names := RegisteredPasses()
	for _, name := range []string{ConstantFoldingName, FusedOpDecompositionName, DeadNodeEliminationName,
		StaticShapeVerificationName, EdgeClassificationName, LivenessName} {
		assert.Contains(t, names, name)
	}
	assert.IsIncreasing(t, names)
	assert.Panics(t, func() { RegisterFactory(LivenessName, func(*Config) Pass { return NewLiveness() }) })
}

func TestNewManagerFromConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
pipeline: [constant-folding, dead-node-elimination, static-shape-verification]
fixed_point: true
`))
	require.NoError(t, err)
	m, err := NewManagerFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, m.Passes(), 3)
	assert.Equal(t, ConstantFoldingName, m.Passes()[0].Name())
	assert.True(t, m.Passes()[0].(*ConstantFolding).onlyShapeRelevant)
	for _, p := range m.Passes() {
		assert.Same(t, m.State(), p.State())
	}

	g, priors := priorBoxGraph()
	changed, err := m.Run(ir.NewModule(g))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "{2, 240}", priors.OutputShape(0).String())

	cfg.Pipeline = []string{"constant-folding", "no-such-pass"}
	_, err = NewManagerFromConfig(cfg)
	require.ErrorContains(t, err, `unknown pass "no-such-pass"`)

	cfg.Pipeline = nil
	cfg.MaxIterations = -1
	_, err = NewManagerFromConfig(cfg)
	require.Error(t, err)
}

func TestNewManagerFromConfigInconsistent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline = []string{testDynamicPassName, LivenessName}
	_, err := NewManagerFromConfig(cfg)
	require.ErrorIs(t, err, ErrInconsistentPipeline)

	cfg.Pipeline = []string{testDynamicPassName, StaticShapeVerificationName, LivenessName}
	_, err = NewManagerFromConfig(cfg)
	require.NoError(t, err)
}
