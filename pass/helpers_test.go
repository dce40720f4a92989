package pass

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/graphir/ir"
	"github.com/gomlx/graphir/ops"
	"github.com/janpfeifer/must"
)

// funcPass is a FunctionPass whose behavior is given by a closure.
type funcPass struct {
	Base
	name  string
	fn    func(g *ir.Graph) (bool, error)
	calls int
}

func newFuncPass(name string, fn func(g *ir.Graph) (bool, error), properties ...Property) *funcPass {
	return &funcPass{Base: MakeBase(properties...), name: name, fn: fn}
}

func (p *funcPass) Name() string { return p.name }

func (p *funcPass) RunOnFunction(g *ir.Graph) (bool, error) {
	p.calls++
	if p.fn == nil {
		return false, nil
	}
	return p.fn(g)
}

// funcNodePass is a NodePass whose behavior is given by a closure.
type funcNodePass struct {
	Base
	fn func(n *ir.Node) (bool, error)
}

func (p *funcNodePass) Name() string { return "func-node-pass" }

func (p *funcNodePass) RunOnNode(n *ir.Node) (bool, error) { return p.fn(n) }

// testFlakyKind outputs a shape {flakyDim}: tests change flakyDim to make stored outputs stale.
const testFlakyKind ir.Kind = "passtest.Flaky"

var flakyDim = 5

// testDynamicPassName is a registered pass that introduces dynamic shapes, and does nothing else.
const testDynamicPassName = "test-introduce-dynamic-shape"

func init() {
	RegisterFactory(testDynamicPassName, func(*Config) Pass {
		return newFuncPass(testDynamicPassName, nil, IntroduceDynamicShape)
	})
	registerMisfusedKind()
	ir.RegisterKind(ir.KindSpec{
		Kind:  testFlakyKind,
		Arity: 1,
		Infer: func(ctx *ir.InferContext) error {
			ctx.SetOutput(0, ctx.InputDType(0), ir.MakePartialShape(flakyDim))
			return nil
		},
	})
}

// testMisfusedKind is a fused kind whose decomposition changes the output shape from {n} to {1, n}, so that
// users fail to re-infer when it is spliced in.
const testMisfusedKind ir.Kind = "passtest.Misfused"

func registerMisfusedKind() {
	ir.RegisterKind(ir.KindSpec{
		Kind:  testMisfusedKind,
		Arity: 1,
		Infer: func(ctx *ir.InferContext) error {
			ctx.SetOutput(0, ctx.InputDType(0), ctx.InputShape(0))
			return nil
		},
		Decompose: func(n *ir.Node, b *ir.Builder) ([]ir.Value, error) {
			dims := n.OutputShape(0).Dimensions()
			reshape, err := ops.Reshape(b, n.Input(0), append([]int{1}, dims...)...)
			if err != nil {
				return nil, err
			}
			return []ir.Value{reshape.Value()}, nil
		},
	})
}

// notAPass implements Pass, but none of its variants.
type notAPass struct {
	Base
}

func (p *notAPass) Name() string { return "not-a-pass" }

func int64Constant(g ir.Adder, values ...int64) *ir.Node {
	return must.M1(ops.Constant(g, tensors.FromFlatDataAndDimensions(values, len(values))))
}

var testPriorBoxAttrs = ops.PriorBoxClusteredAttrs{
	NumPriors: 5,
	Widths:    []float32{1, 2, 3, 4, 5},
	Heights:   []float32{1, 2, 3, 4, 5},
	Variances: []float32{0.1, 0.1, 0.2, 0.2},
}

// priorBoxGraph builds Result(PriorBoxClustered(ShapeOf(feature), Constant[300, 300])), whose output is only
// static once ShapeOf is folded.
func priorBoxGraph() (g *ir.Graph, priors *ir.Node) {
	g = ir.NewGraph("priors")
	feature := must.M1(ops.Parameter(g, dtypes.Float32, ir.MakePartialShape(3, 4)))
	layerShape := must.M1(ops.ShapeOf(g, feature.Value()))
	image := int64Constant(g, 300, 300)
	priors = must.M1(ops.PriorBoxClustered(g, layerShape.Value(), image.Value(), testPriorBoxAttrs))
	must.M1(ops.Result(g, priors.Value()))
	return g, priors
}

// squeezeGraph builds Result(Squeeze(x, 1)) for x of the given shape.
func squeezeGraph(dims ...int) (g *ir.Graph, squeeze *ir.Node) {
	g = ir.NewGraph("squeeze")
	x := must.M1(ops.Parameter(g, dtypes.Float32, ir.MakePartialShape(dims...)))
	squeeze = must.M1(ops.Squeeze(g, x.Value(), 1))
	must.M1(ops.Result(g, squeeze.Value()))
	return g, squeeze
}

func countKind(g *ir.Graph, kind ir.Kind) int {
	count := 0
	for _, n := range g.Nodes() {
		if n.Kind() == kind {
			count++
		}
	}
	return count
}
