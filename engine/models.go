package engine

import (
	"math"
	"time"

	"github.com/Relatronica/sdl/domain/ast"
)

// anchor is one declared timeseries point with its time on a continuous
// fractional-year axis.
type anchor struct {
	t float64
	v float64
}

const secondsPerYear = 31556952 // mean Gregorian year

// yearOf maps a date onto the fractional-year axis used by all models.
func yearOf(d time.Time) float64 {
	return 1970 + float64(d.Unix())/secondsPerYear
}

// evalModel interpolates between anchors at time t according to the
// declared model. A nil model means piecewise linear. Outside the
// anchor range every model holds the nearest anchor value, except the
// parametric families which extrapolate their own curve.
func evalModel(m *ast.ModelExpr, anchors []anchor, t float64) float64 {
	if len(anchors) == 0 {
		return 0
	}
	if len(anchors) == 1 {
		return anchors[0].v
	}
	kind := ast.ModelLinear
	var params map[string]float64
	if m != nil {
		kind = m.Kind
		params = m.Params
	}
	switch kind {
	case ast.ModelExponential:
		return evalExponential(params, anchors, t)
	case ast.ModelLogistic:
		return evalLogistic(params, anchors, t)
	case ast.ModelSpline:
		return evalSpline(anchors, t)
	default:
		return evalLinear(anchors, t)
	}
}

func evalLinear(anchors []anchor, t float64) float64 {
	if t <= anchors[0].t {
		return anchors[0].v
	}
	last := anchors[len(anchors)-1]
	if t >= last.t {
		return last.v
	}
	for i := 1; i < len(anchors); i++ {
		if t <= anchors[i].t {
			a, b := anchors[i-1], anchors[i]
			frac := (t - a.t) / (b.t - a.t)
			return a.v + frac*(b.v-a.v)
		}
	}
	return last.v
}

// evalExponential grows from the first anchor. An explicit rate wins;
// otherwise the rate is fitted so the curve passes through the last
// anchor. Non-positive endpoints cannot be fitted geometrically and
// fall back to linear.
func evalExponential(params map[string]float64, anchors []anchor, t float64) float64 {
	first, last := anchors[0], anchors[len(anchors)-1]
	if rate, ok := params["rate"]; ok {
		return first.v * math.Exp(rate*(t-first.t))
	}
	if first.v <= 0 || last.v <= 0 || last.t == first.t {
		return evalLinear(anchors, t)
	}
	rate := math.Log(last.v/first.v) / (last.t - first.t)
	return first.v * math.Exp(rate*(t-first.t))
}

// evalLogistic is an S-curve between a floor and a ceiling. Defaults:
// floor = smallest anchor value, ceiling = largest, midpoint = middle
// of the anchor time range, rate = 1.
func evalLogistic(params map[string]float64, anchors []anchor, t float64) float64 {
	lo, hi := anchors[0].v, anchors[0].v
	for _, a := range anchors[1:] {
		lo = math.Min(lo, a.v)
		hi = math.Max(hi, a.v)
	}
	floor, ceiling := lo, hi
	if v, ok := params["floor"]; ok {
		floor = v
	}
	if v, ok := params["ceiling"]; ok {
		ceiling = v
	}
	mid := (anchors[0].t + anchors[len(anchors)-1].t) / 2
	if v, ok := params["midpoint"]; ok {
		mid = v
	}
	rate := 1.0
	if v, ok := params["rate"]; ok {
		rate = v
	}
	return floor + (ceiling-floor)/(1+math.Exp(-rate*(t-mid)))
}

// evalSpline is a natural cubic spline through all anchors, clamped to
// the end values outside the range. Fewer than three anchors degrade
// to linear.
func evalSpline(anchors []anchor, t float64) float64 {
	n := len(anchors)
	if n < 3 {
		return evalLinear(anchors, t)
	}
	if t <= anchors[0].t {
		return anchors[0].v
	}
	if t >= anchors[n-1].t {
		return anchors[n-1].v
	}

	m := splineMoments(anchors)
	for i := 1; i < n; i++ {
		if t <= anchors[i].t {
			a, b := anchors[i-1], anchors[i]
			h := b.t - a.t
			d1 := a.t + h - t // b.t - t
			d0 := t - a.t
			return (m[i-1]*d1*d1*d1+m[i]*d0*d0*d0)/(6*h) +
				(a.v/h-m[i-1]*h/6)*d1 +
				(b.v/h-m[i]*h/6)*d0
		}
	}
	return anchors[n-1].v
}

// splineMoments solves the tridiagonal system for the second
// derivatives of a natural cubic spline (Thomas algorithm).
func splineMoments(anchors []anchor) []float64 {
	n := len(anchors)
	h := make([]float64, n-1)
	for i := 0; i < n-1; i++ {
		h[i] = anchors[i+1].t - anchors[i].t
	}

	// Interior equations; natural boundary: m[0] = m[n-1] = 0.
	diag := make([]float64, n)
	rhs := make([]float64, n)
	upper := make([]float64, n)
	diag[0], diag[n-1] = 1, 1
	for i := 1; i < n-1; i++ {
		diag[i] = 2 * (h[i-1] + h[i])
		upper[i] = h[i]
		rhs[i] = 6 * ((anchors[i+1].v-anchors[i].v)/h[i] - (anchors[i].v-anchors[i-1].v)/h[i-1])
	}

	// Forward sweep.
	for i := 2; i < n-1; i++ {
		w := h[i-1] / diag[i-1]
		diag[i] -= w * upper[i-1]
		rhs[i] -= w * rhs[i-1]
	}
	// Back substitution.
	m := make([]float64, n)
	for i := n - 2; i >= 1; i-- {
		m[i] = (rhs[i] - upper[i]*m[i+1]) / diag[i]
	}
	return m
}
