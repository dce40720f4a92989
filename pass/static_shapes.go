package pass

import (
	"github.com/gomlx/graphir/ir"
)

// StaticShapeVerificationName is the registered name of the StaticShapeVerification pass.
const StaticShapeVerificationName = "static-shape-verification"

func init() {
	RegisterFactory(StaticShapeVerificationName, func(*Config) Pass { return NewStaticShapeVerification() })
}

// StaticShapeVerification fails (with ErrStaticShapeRequired) if any output shape is dynamic. Passes requiring
// static shapes that run after it don't need to check again.
type StaticShapeVerification struct {
	Base
}

var _ FunctionPass = (*StaticShapeVerification)(nil)

// NewStaticShapeVerification creates the pass.
func NewStaticShapeVerification() *StaticShapeVerification {
	return &StaticShapeVerification{Base: MakeBase(ProvideStaticShape)}
}

// Name implements Pass.
func (p *StaticShapeVerification) Name() string { return StaticShapeVerificationName }

// RunOnFunction implements FunctionPass.
func (p *StaticShapeVerification) RunOnFunction(g *ir.Graph) (bool, error) {
	return false, verifyStaticShapes(ir.NewModule(g))
}
