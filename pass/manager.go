package pass

import (
	"time"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/graphir/ir"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

var (
	// ErrInconsistentPipeline is returned by Manager.Check (and Run) when the declared properties of the
	// registered passes contradict each other.
	ErrInconsistentPipeline = errors.New("inconsistent pass pipeline")

	// ErrNoFixedPoint is returned by fixed-point runs that still change the module after Config.MaxIterations.
	ErrNoFixedPoint = errors.New("pass pipeline did not reach a fixed point")

	// ErrStaticShapeRequired is returned when a pass requiring static shapes finds dynamic ones.
	ErrStaticShapeRequired = errors.New("static shapes required")

	// ErrUnsizedValue is returned by passes that need the size in bytes of a value whose element type has none,
	// e.g. ir.AnyDType.
	ErrUnsizedValue = errors.New("value has no size in bytes")
)

// Status of a Manager.
type Status int

const (
	// Idle is the status of a Manager that never ran.
	Idle Status = iota

	// Running while Run executes: see Manager.CurrentPass for the pass being executed.
	Running

	// Done after the last Run completed without errors.
	Done

	// Aborted after the last Run failed, either with an error or an invariant violation.
	Aborted
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Done:
		return "done"
	case Aborted:
		return "aborted"
	default:
		return "invalid"
	}
}

// Manager runs an ordered list of passes over a module, sharing a State among them.
//
// A Manager is not safe for concurrent use, and the module must not be changed by anything else during Run.
type Manager struct {
	passes  []Pass
	state   *State
	status  Status
	current int
	metrics *Metrics
}

// Option configures a Manager.
type Option func(m *Manager)

// WithMetrics makes the Manager record prometheus metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a Manager with the given configuration and no passes.
func NewManager(config Config, options ...Option) *Manager {
	m := &Manager{state: newState(config), current: -1}
	for _, option := range options {
		option(m)
	}
	return m
}

// Register appends passes to the pipeline, and gives them the Manager's state.
// It panics if a pass was already registered with another Manager.
func (m *Manager) Register(passes ...Pass) *Manager {
	for _, p := range passes {
		p.SetState(m.state)
		m.passes = append(m.passes, p)
	}
	return m
}

// Passes returns the registered passes, in order.
func (m *Manager) Passes() []Pass {
	return append([]Pass(nil), m.passes...)
}

// State shared by the registered passes.
func (m *Manager) State() *State { return m.state }

// Status of the Manager.
func (m *Manager) Status() Status { return m.status }

// CurrentPass returns the position in the pipeline and the pass being executed, while the status is Running.
// Otherwise it returns -1 and nil.
func (m *Manager) CurrentPass() (int, Pass) {
	if m.status != Running || m.current < 0 {
		return -1, nil
	}
	return m.current, m.passes[m.current]
}

// RunID returns the id of the current (or last) run, or uuid.Nil if it never ran.
func (m *Manager) RunID() uuid.UUID { return m.state.runID }

// Check verifies the pipeline before it runs: every pass implements one of the pass variants, and no pass
// requiring static shapes comes after a pass introducing dynamic shapes, unless a pass providing static shapes
// runs in between. With Config.FixedPoint the pipeline may run again, so the passes at its start are also
// checked against those at its end.
func (m *Manager) Check() error {
	for idx, p := range m.passes {
		switch p.(type) {
		case ModulePass, FunctionPass, NodePass, CallGraphPass:
		default:
			return errors.Wrapf(ErrInconsistentPipeline, "pass #%d %q (%T) implements no pass variant", idx, p.Name(), p)
		}
	}

	numRounds := 1
	if m.state.Config().FixedPoint {
		numRounds = 2
	}
	dynamicFrom := -1
	for round := range numRounds {
		for idx, p := range m.passes {
			properties := p.Properties()
			if properties.Has(RequireStaticShape) && dynamicFrom >= 0 {
				where := ""
				if round > 0 {
					where = " in the next fixed-point iteration"
				}
				return errors.Wrapf(ErrInconsistentPipeline,
					"pass #%d %q requires static shapes, but pass #%d %q may introduce dynamic shapes%s",
					idx, p.Name(), dynamicFrom, m.passes[dynamicFrom].Name(), where)
			}
			if properties.Has(IntroduceDynamicShape) {
				dynamicFrom = idx
			}
			if properties.Has(ProvideStaticShape) {
				dynamicFrom = -1
			}
		}
	}
	return nil
}

// Run executes the pipeline over module, and returns whether any pass changed it.
//
// Passes run strictly in order. The first error returned by a pass (typically a *ir.ValidationError) aborts
// the run and is returned wrapped with the pass name and position. An invariant violation (panic) also
// aborts the run: it is logged and re-panicked.
//
// With Config.FixedPoint, the pipeline is re-run while any pass changes the module, up to Config.MaxIterations
// times, after which ErrNoFixedPoint is returned.
func (m *Manager) Run(module *ir.Module) (changed bool, err error) {
	if m.status == Running {
		exceptions.Panicf("pass.Manager.Run called while already running")
	}
	if err := m.Check(); err != nil {
		m.status = Aborted
		m.metrics.ObserveRun(m.status)
		return false, err
	}
	m.state.runID = uuid.New()
	m.status = Running
	klog.V(1).InfoS("pass manager run started", "run", m.state.runID, "passes", len(m.passes),
		"functions", len(module.Functions))
	start := time.Now()

	panicErr := exceptions.TryCatch[error](func() {
		changed, err = m.runIterations(module)
	})
	m.current = -1
	if panicErr != nil {
		m.status = Aborted
		m.metrics.ObserveRun(m.status)
		klog.ErrorS(panicErr, "pass manager run aborted by an invariant violation", "run", m.state.runID)
		panic(panicErr)
	}
	if err != nil {
		m.status = Aborted
		m.metrics.ObserveRun(m.status)
		klog.ErrorS(err, "pass manager run failed", "run", m.state.runID)
		return changed, err
	}
	m.status = Done
	m.metrics.ObserveRun(m.status)
	klog.V(1).InfoS("pass manager run finished", "run", m.state.runID, "changed", changed,
		"iterations", m.state.iteration+1, "elapsed", time.Since(start))
	return changed, nil
}

func (m *Manager) runIterations(module *ir.Module) (changed bool, err error) {
	config := m.state.Config()
	maxIterations := 1
	if config.FixedPoint {
		maxIterations = max(config.MaxIterations, 1)
	}
	for iteration := range maxIterations {
		m.state.iteration = iteration
		m.state.established = 0
		iterationChanged, err := m.runPipeline(module)
		changed = changed || iterationChanged
		if err != nil {
			return changed, err
		}
		if !config.FixedPoint || !iterationChanged {
			return changed, nil
		}
		klog.V(2).InfoS("pipeline changed the module, running it again", "run", m.state.runID,
			"iteration", iteration)
	}
	return changed, errors.Wrapf(ErrNoFixedPoint, "module still changing after %d iterations", maxIterations)
}

func (m *Manager) runPipeline(module *ir.Module) (changed bool, err error) {
	config := m.state.Config()
	for idx, p := range m.passes {
		properties := p.Properties()
		if properties.Has(RequireStaticShape) && !m.state.Established(ProvideStaticShape) {
			if err := verifyStaticShapes(module); err != nil {
				return changed, errors.WithMessagef(err, "pass #%d %q", idx, p.Name())
			}
		}

		klog.V(2).InfoS("running pass", "pass", p.Name(), "index", idx, "iteration", m.state.iteration)
		m.current = idx
		start := time.Now()
		passChanged, err := m.runPass(p, module)
		m.metrics.ObservePass(p.Name(), time.Since(start), passChanged, err)
		if err != nil {
			return changed, errors.WithMessagef(err, "pass #%d %q", idx, p.Name())
		}
		if passChanged && !properties.Has(ChangeFunctionState) {
			exceptions.Panicf("pass #%d %q reported a change, but it doesn't declare %s",
				idx, p.Name(), ChangeFunctionState)
		}
		changed = changed || passChanged
		m.state.updateEstablished(properties)

		if properties.Has(ChangeFunctionState) && config.ValidateBetweenPasses {
			for _, g := range module.Functions {
				if err := g.Validate(); err != nil {
					panic(errors.WithMessagef(err, "after pass #%d %q", idx, p.Name()))
				}
			}
		}
		if config.Diagnostics.LogGraphs {
			for _, g := range module.Functions {
				klog.InfoS("graph after pass", "pass", p.Name(), "function", g.Name(), "graph", g.String())
			}
		}
	}
	return changed, nil
}

// runPass dispatches on the pass variant.
func (m *Manager) runPass(p Pass, module *ir.Module) (changed bool, err error) {
	switch variant := p.(type) {
	case ModulePass:
		return variant.RunOnModule(module)

	case FunctionPass:
		for _, g := range module.Functions {
			functionChanged, err := variant.RunOnFunction(g)
			changed = changed || functionChanged
			if err != nil {
				return changed, errors.WithMessagef(err, "function %q", g.Name())
			}
		}
		return changed, nil

	case NodePass:
		for _, g := range module.Functions {
			for _, n := range ir.TopologicalSort(g) {
				if n.IsRemoved() {
					continue
				}
				nodeChanged, err := variant.RunOnNode(n)
				changed = changed || nodeChanged
				if err != nil {
					return changed, errors.WithMessagef(err, "function %q, node %s", g.Name(), n.Name())
				}
			}
		}
		return changed, nil

	case CallGraphPass:
		for _, g := range module.Functions {
			functionChanged, err := variant.RunOnCallGraph(ir.TopologicalSort(g))
			changed = changed || functionChanged
			if err != nil {
				return changed, errors.WithMessagef(err, "function %q", g.Name())
			}
		}
		return changed, nil

	default:
		exceptions.Panicf("pass %q (%T) implements no pass variant", p.Name(), p)
		return false, nil
	}
}

// verifyStaticShapes returns an error wrapping ErrStaticShapeRequired describing the first dynamic output found.
func verifyStaticShapes(module *ir.Module) error {
	for _, g := range module.Functions {
		for _, n := range g.Nodes() {
			for i := range n.NumOutputs() {
				if shape := n.OutputShape(i); !shape.IsStatic() {
					return errors.Wrapf(ErrStaticShapeRequired, "function %q: output #%d of %s has dynamic shape %s",
						g.Name(), i, n.Name(), shape)
				}
			}
		}
	}
	return nil
}
