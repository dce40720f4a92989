package pass

import (
	"bytes"
	"io"
	"os"

	"github.com/gomlx/graphir/ir"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config of a Manager and of the built-in passes. It can be loaded from YAML, e.g.:
//
//	pipeline: [constant-folding, fused-op-decomposition, dead-node-elimination, static-shape-verification]
//	fixed_point: true
//	max_iterations: 8
type Config struct {
	// Pipeline lists the names of the passes to create with NewManagerFromConfig, in order.
	Pipeline []string `yaml:"pipeline"`

	// FixedPoint re-runs the whole pipeline while any pass reports a change, up to MaxIterations times.
	FixedPoint    bool `yaml:"fixed_point"`
	MaxIterations int  `yaml:"max_iterations"`

	// Workers bounds the number of functions analyzed in parallel by module analyses.
	// If <= 0, the number of CPUs is used.
	Workers int `yaml:"workers"`

	// MaxJumpDistance is the jump distance above which an edge is classified as long range.
	MaxJumpDistance int `yaml:"max_jump_distance"`

	// ValidateBetweenPasses runs ir.Graph.Validate on every function after each pass that changes them.
	ValidateBetweenPasses bool `yaml:"validate_between_passes"`

	// FoldOnlyShapeRelevant limits constant folding to values that some user declares relevant to its shape.
	FoldOnlyShapeRelevant bool `yaml:"fold_only_shape_relevant"`

	Diagnostics Diagnostics `yaml:"diagnostics"`
}

// Diagnostics are debugging switches, all logged with klog.
type Diagnostics struct {
	// LogGraphs logs every function, with its shapes, after each pass.
	LogGraphs bool `yaml:"log_graphs"`

	// LogLongRangeEdges logs each edge classified as long range.
	LogLongRangeEdges bool `yaml:"log_long_range_edges"`
}

// DefaultMaxIterations is the default bound of fixed-point runs.
const DefaultMaxIterations = 10

// DefaultConfig returns the configuration used when none is given: a single run, validation between passes
// and the default maximum jump distance.
func DefaultConfig() Config {
	return Config{
		MaxIterations:         DefaultMaxIterations,
		MaxJumpDistance:       ir.DefaultMaxJumpDistance,
		ValidateBetweenPasses: true,
		FoldOnlyShapeRelevant: true,
	}
}

// ParseConfig parses a YAML configuration. Fields not given keep their DefaultConfig values, and unknown fields
// are rejected.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "failed to parse pass configuration")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads and parses a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read pass configuration %q", path)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.WithMessagef(err, "configuration file %q", path)
	}
	return cfg, nil
}

// Validate returns an error if the configuration values are out of range.
func (c *Config) Validate() error {
	if c.MaxIterations < 1 {
		return errors.Errorf("invalid max_iterations=%d, it must be >= 1", c.MaxIterations)
	}
	if c.MaxJumpDistance < 0 {
		return errors.Errorf("invalid max_jump_distance=%d, it must be >= 0", c.MaxJumpDistance)
	}
	return nil
}
