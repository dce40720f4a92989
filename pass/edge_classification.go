package pass

import (
	"runtime"

	"github.com/gomlx/graphir/ir"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// EdgeClassificationName is the registered name of the EdgeClassification pass.
const EdgeClassificationName = "edge-classification"

func init() {
	RegisterFactory(EdgeClassificationName, func(*Config) Pass { return NewEdgeClassification() })
}

// EdgeClassification computes the heights and classifies the edges of every function, storing an EdgeAnalysis
// per function in the State. Functions are analyzed in parallel, bounded by Config.Workers.
type EdgeClassification struct {
	Base
}

var _ ModulePass = (*EdgeClassification)(nil)

// NewEdgeClassification creates the pass.
func NewEdgeClassification() *EdgeClassification {
	return &EdgeClassification{Base: MakeBase()}
}

// Name implements Pass.
func (p *EdgeClassification) Name() string { return EdgeClassificationName }

// RunOnModule implements ModulePass.
func (p *EdgeClassification) RunOnModule(module *ir.Module) (bool, error) {
	state := p.State()
	config := state.Config()
	workers := config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var eg errgroup.Group
	eg.SetLimit(workers)
	for _, g := range module.Functions {
		eg.Go(func() error {
			analysis := classifyFunction(g, config.MaxJumpDistance)
			if config.Diagnostics.LogLongRangeEdges {
				for _, edge := range analysis.Edges {
					if edge.Class == ir.EdgeLongRange {
						klog.InfoS("long range edge", "function", g.Name(),
							"source", g.MustNode(edge.Source.Node).Name(), "target", g.MustNode(edge.Target).Name(),
							"input", edge.Input, "jump_distance", edge.JumpDistance)
					}
				}
			}
			state.SetEdgeAnalysis(analysis)
			return nil
		})
	}
	return false, eg.Wait()
}

func classifyFunction(g *ir.Graph, maxJumpDistance int) *EdgeAnalysis {
	heights := ir.ComputeHeights(g)
	analysis := &EdgeAnalysis{
		Function: g.Name(),
		Heights:  heights,
		Edges:    ir.ClassifyEdges(g, heights, maxJumpDistance),
	}
	for _, edge := range analysis.Edges {
		if edge.Class == ir.EdgeLongRange {
			analysis.NumLongRange++
		}
	}
	klog.V(3).InfoS("classified edges", "function", g.Name(), "edges", len(analysis.Edges),
		"long_range", analysis.NumLongRange)
	return analysis
}
