package ast

import "github.com/Relatronica/sdl/domain/diag"

// DistKind enumerates the supported probability distribution families.
type DistKind string

const (
	DistNormal     DistKind = "normal"
	DistBeta       DistKind = "beta"
	DistUniform    DistKind = "uniform"
	DistTriangular DistKind = "triangular"
	DistLogNormal  DistKind = "lognormal"
)

// DistExpr is a declared uncertainty. Two shapes exist:
//
//   - absolute: Args holds the family's positional parameters, e.g.
//     normal(5, 2) or triangular(10, 15, 30);
//   - relative: the ±X% shorthand, equivalent to a normal distribution
//     whose standard deviation is Spread times the quantity's central
//     value. Relative is true and Args is empty.
type DistExpr struct {
	Kind     DistKind
	Args     []float64
	Relative bool
	Spread   float64 // fraction, 0.10 for ±10%
	Pos      diag.Span
}

func (e *DistExpr) Span() diag.Span { return e.Pos }

// ModelKind enumerates the supported interpolation models.
type ModelKind string

const (
	ModelLinear      ModelKind = "linear"
	ModelExponential ModelKind = "exponential"
	ModelLogistic    ModelKind = "logistic"
	ModelSpline      ModelKind = "spline"
)

// ModelExpr selects how a variable interpolates between its anchors.
// Params carries the model's named numeric arguments, e.g.
// logistic(rate: 0.8, midpoint: 2027, ceiling: 300).
type ModelExpr struct {
	Kind   ModelKind
	Params map[string]float64
	Pos    diag.Span
}

func (e *ModelExpr) Span() diag.Span { return e.Pos }
