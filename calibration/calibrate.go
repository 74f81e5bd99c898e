package calibration

import (
	"math"

	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/result"
	"github.com/Relatronica/sdl/domain/series"
	"github.com/Relatronica/sdl/engine"
)

// applyCalibration updates the uncertainty of the target declaration on
// the cloned scenario in place and reports the posterior. The update is
// family-appropriate; families without a workable conjugate update
// (uniform, triangular) are left untouched.
func applyCalibration(clone *ast.Scenario, cal *ast.Calibrate, observed []series.ObservedPoint) (result.PosteriorUpdate, bool) {
	if cal.HasWindow {
		observed = series.Window(observed, cal.WindowStart, cal.WindowEnd)
	}
	if len(observed) == 0 {
		return result.PosteriorUpdate{}, false
	}
	values := make([]float64, len(observed))
	for i, p := range observed {
		values[i] = p.Value
	}

	target := findDecl(clone, cal.Target)
	if target == nil {
		return result.PosteriorUpdate{}, false
	}
	dist, center := uncertaintyOf(target)
	if dist == nil {
		return result.PosteriorUpdate{}, false
	}

	up := result.PosteriorUpdate{Target: cal.Target, Method: cal.Method, Samples: len(values)}
	switch {
	case dist.Relative:
		// The ±X% shorthand is a normal prior around the declared
		// value; the posterior is stored as an absolute normal so the
		// shift in the center survives.
		mu0 := center
		sd0 := math.Abs(center) * dist.Spread
		up.PriorArgs = []float64{mu0, sd0}
		mu, sd := posteriorNormal(mu0, sd0, values)
		up.PostArgs = []float64{mu, sd}
		dist.Relative = false
		dist.Spread = 0
		dist.Kind = ast.DistNormal
		dist.Args = []float64{mu, sd}
	case dist.Kind == ast.DistNormal && len(dist.Args) == 2:
		up.PriorArgs = append([]float64(nil), dist.Args...)
		mu, sd := posteriorNormal(dist.Args[0], dist.Args[1], values)
		up.PostArgs = []float64{mu, sd}
		dist.Args = []float64{mu, sd}
	case dist.Kind == ast.DistBeta && len(dist.Args) == 2:
		up.PriorArgs = append([]float64(nil), dist.Args...)
		a, b := posteriorBeta(dist.Args[0], dist.Args[1], values)
		up.PostArgs = []float64{a, b}
		dist.Args = []float64{a, b}
	case dist.Kind == ast.DistLogNormal && len(dist.Args) == 2:
		up.PriorArgs = append([]float64(nil), dist.Args...)
		mu, sd := posteriorLogNormal(dist.Args[0], dist.Args[1], values)
		up.PostArgs = []float64{mu, sd}
		dist.Args = []float64{mu, sd}
	default:
		return result.PosteriorUpdate{}, false
	}
	return up, true
}

// findDecl locates a top-level declaration by name.
func findDecl(sc *ast.Scenario, name string) ast.Decl {
	for _, d := range sc.Decls {
		if d.DeclName() == name {
			return d
		}
	}
	return nil
}

// uncertaintyOf returns the declaration's uncertainty and its declared
// central value (needed to anchor the relative shorthand).
func uncertaintyOf(d ast.Decl) (*ast.DistExpr, float64) {
	switch d := d.(type) {
	case *ast.Assumption:
		center, _ := engine.ConstValue(d.Value)
		return d.Uncertainty, center
	case *ast.Variable:
		var center float64
		if len(d.Series) > 0 {
			center, _ = engine.ConstValue(d.Series[len(d.Series)-1].Value)
		}
		return d.Uncertainty, center
	case *ast.Parameter:
		center, _ := engine.ConstValue(d.Default)
		return d.Uncertainty, center
	}
	return nil, 0
}
