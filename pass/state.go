package pass

import (
	"sync"

	"github.com/google/uuid"
)

// State is shared by all passes registered with a Manager: it holds the configuration, the properties
// established so far in the current iteration, and the results of analyses for downstream consumers.
//
// Analysis results are keyed by function name. They are safe to set concurrently.
type State struct {
	config      Config
	runID       uuid.UUID
	iteration   int
	established PropertyMask

	mu       sync.Mutex
	edges    map[string]*EdgeAnalysis
	liveness map[string]*LivenessAnalysis
}

func newState(config Config) *State {
	return &State{
		config:   config,
		edges:    make(map[string]*EdgeAnalysis),
		liveness: make(map[string]*LivenessAnalysis),
	}
}

// Config returns the configuration of the Manager.
func (s *State) Config() *Config { return &s.config }

// RunID returns the id of the current (or last) Manager run.
func (s *State) RunID() uuid.UUID { return s.runID }

// Iteration returns the current pipeline iteration, counting from 0. It's only larger than 0 for fixed-point
// runs.
func (s *State) Iteration() int { return s.iteration }

// Established returns whether the property has been established by a pass already run in the current
// iteration. Currently only ProvideStaticShape is tracked.
func (s *State) Established(p Property) bool { return s.established.Has(p) }

// EdgeAnalysis returns the last edge analysis of the function, if any.
func (s *State) EdgeAnalysis(function string) (*EdgeAnalysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	analysis, found := s.edges[function]
	return analysis, found
}

// SetEdgeAnalysis stores the edge analysis of a function, replacing any previous one.
func (s *State) SetEdgeAnalysis(analysis *EdgeAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[analysis.Function] = analysis
}

// LivenessAnalysis returns the last liveness analysis of the function, if any.
func (s *State) LivenessAnalysis(function string) (*LivenessAnalysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	analysis, found := s.liveness[function]
	return analysis, found
}

// SetLivenessAnalysis stores the liveness analysis of a function, replacing any previous one.
func (s *State) SetLivenessAnalysis(analysis *LivenessAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.liveness[analysis.Function] = analysis
}

// updateEstablished records the effect of a successful pass on the established properties.
func (s *State) updateEstablished(properties PropertyMask) {
	if properties.Has(IntroduceDynamicShape) {
		s.established = s.established.Without(ProvideStaticShape)
	}
	if properties.Has(ProvideStaticShape) {
		s.established = s.established.With(ProvideStaticShape)
	}
}
