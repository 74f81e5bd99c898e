// Package validator performs semantic analysis over a parsed scenario:
// it accumulates every finding rather than stopping at the first error,
// and builds the causal dependency graph. A dependency cycle yields a
// single error and a nil graph; downstream components treat a nil graph
// as "not simulatable".
package validator

import (
	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/diag"
	"github.com/Relatronica/sdl/domain/graph"
)

// MaxConvergenceThreshold is the point past which a declared convergence
// threshold stops being meaningful and earns a warning.
const MaxConvergenceThreshold = 0.1

// Validate checks the scenario and builds its causal graph. The graph
// is nil when a dependency cycle is present.
func Validate(sc *ast.Scenario) ([]diag.Diagnostic, *graph.CausalGraph) {
	v := &validator{sc: sc, declared: map[string]ast.Decl{}}
	v.collectNames()
	v.checkMetadata()
	for _, d := range sc.Decls {
		v.checkDecl(d, false)
	}
	g := v.buildGraph()
	return v.diags, g
}

type validator struct {
	sc       *ast.Scenario
	diags    []diag.Diagnostic
	declared map[string]ast.Decl
	order    []string // referenceable names in declaration order
}

func (v *validator) errorf(code string, pos diag.Span, format string, args ...interface{}) {
	s := pos
	v.diags = append(v.diags, diag.Errorf(code, &s, format, args...))
}

func (v *validator) warnf(code string, pos diag.Span, format string, args ...interface{}) {
	s := pos
	v.diags = append(v.diags, diag.Warnf(code, &s, format, args...))
}

// collectNames registers every referenceable declaration and flags
// duplicates across all declaration kinds. Nested branch declarations
// are overrides of existing names and stay out of the namespace.
func (v *validator) collectNames() {
	for _, d := range v.sc.Decls {
		var name string
		switch d := d.(type) {
		case *ast.Assumption:
			name = d.Name
		case *ast.Variable:
			name = d.Name
		case *ast.Parameter:
			name = d.Name
		case *ast.Impact:
			name = d.Name
		case *ast.Branch:
			name = d.Name
		case *ast.Import:
			name = d.Alias
		default:
			continue
		}
		if prev, ok := v.declared[name]; ok {
			v.errorf(diag.CodeDuplicateName, d.Span(),
				"%q is already declared at line %d", name, prev.Span().Line)
			continue
		}
		v.declared[name] = d
		if referenceable(d) {
			v.order = append(v.order, name)
		}
	}
}

// referenceable reports whether a declaration can appear on the right
// side of depends_on / derives_from.
func referenceable(d ast.Decl) bool {
	switch d.(type) {
	case *ast.Assumption, *ast.Variable, *ast.Parameter, *ast.Impact:
		return true
	}
	return false
}

func (v *validator) checkMetadata() {
	m := v.sc.Meta
	if !m.HasTimeframe {
		v.warnf(diag.CodeMissingTimeframe, v.sc.Pos,
			"scenario %q declares no timeframe; simulation needs one", v.sc.Name)
	} else if !m.TimeframeStart.Before(m.TimeframeEnd) {
		v.errorf(diag.CodeTimeframeOrder, v.sc.Pos,
			"timeframe start %s is not before end %s",
			m.TimeframeStart.Format("2006-01-02"), m.TimeframeEnd.Format("2006-01-02"))
	}
	if m.HasConfidence && (m.Confidence < 0 || m.Confidence > 1) {
		v.errorf(diag.CodeConfidenceRange, v.sc.Pos,
			"confidence %g is outside [0, 1]", m.Confidence)
	}
}

func (v *validator) checkDecl(d ast.Decl, nested bool) {
	switch d := d.(type) {
	case *ast.Assumption:
		if d.Source == "" && !nested {
			v.warnf(diag.CodeMissingSource, d.Pos, "assumption %q has no source", d.Name)
		}
		v.checkDist(d.Uncertainty, d.Name)
	case *ast.Variable:
		v.checkSeries(d)
		if d.Uncertainty == nil && !nested {
			v.warnf(diag.CodeMissingUncertainty, d.Pos,
				"variable %q declares no uncertainty; its band will be flat", d.Name)
		}
		v.checkDist(d.Uncertainty, d.Name)
		for _, ref := range d.DependsOn {
			v.checkRef(ref, d.Name)
		}
	case *ast.Parameter:
		v.checkDist(d.Uncertainty, d.Name)
	case *ast.Impact:
		for _, ref := range d.DerivesFrom {
			v.checkRef(ref, d.Name)
		}
	case *ast.Branch:
		if d.Probability < 0 || d.Probability > 1 {
			v.errorf(diag.CodeProbabilityRange, d.Pos,
				"branch %q probability %g is outside [0, 1]", d.Name, d.Probability)
		}
		for _, nd := range d.Decls {
			v.checkDecl(nd, true)
		}
	case *ast.Simulate:
		if d.HasRuns && d.Runs <= 0 {
			v.errorf(diag.CodeInvalidRuns, d.Pos, "runs must be positive, got %d", d.Runs)
		}
		if d.Convergence > MaxConvergenceThreshold {
			v.warnf(diag.CodeConvergenceThreshold, d.Pos,
				"convergence threshold %g is unreasonably high", d.Convergence)
		}
	case *ast.Watch:
		if _, ok := v.declared[d.Target]; !ok {
			v.errorf(diag.CodeWatchTarget, d.Pos, "watch target %q is not declared", d.Target)
		}
	case *ast.Calibrate:
		if _, ok := v.declared[d.Target]; !ok {
			v.errorf(diag.CodeCalibrateTarget, d.Pos, "calibrate target %q is not declared", d.Target)
		}
	}
}

func (v *validator) checkRef(ref ast.Ref, from string) {
	d, ok := v.declared[ref.Name]
	if !ok || !referenceable(d) {
		v.errorf(diag.CodeUndefinedReference, ref.Pos,
			"%q depends on undeclared name %q", from, ref.Name)
	}
}

func (v *validator) checkSeries(d *ast.Variable) {
	for i := 1; i < len(d.Series); i++ {
		if !d.Series[i-1].Date.Before(d.Series[i].Date) {
			v.errorf(diag.CodeNonChronological, d.Series[i].Pos,
				"variable %q timeseries is not strictly increasing at %s",
				d.Name, d.Series[i].Date.Format("2006-01-02"))
		}
	}
}

// checkDist validates distribution parameters per family.
func (v *validator) checkDist(dist *ast.DistExpr, owner string) {
	if dist == nil {
		return
	}
	bad := func(format string, args ...interface{}) {
		v.errorf(diag.CodeInvalidDistribution, dist.Pos,
			"%s: "+format, append([]interface{}{owner}, args...)...)
	}
	if dist.Relative {
		if dist.Spread < 0 {
			bad("relative spread must be non-negative, got %g", dist.Spread)
		}
		return
	}
	switch dist.Kind {
	case ast.DistNormal:
		if len(dist.Args) != 2 {
			bad("normal wants (mean, std), got %d args", len(dist.Args))
		} else if dist.Args[1] <= 0 {
			bad("normal std must be positive, got %g", dist.Args[1])
		}
	case ast.DistUniform:
		if len(dist.Args) != 2 {
			bad("uniform wants (min, max), got %d args", len(dist.Args))
		} else if dist.Args[0] >= dist.Args[1] {
			bad("uniform min %g must be below max %g", dist.Args[0], dist.Args[1])
		}
	case ast.DistBeta:
		if len(dist.Args) != 2 {
			bad("beta wants (alpha, beta), got %d args", len(dist.Args))
		} else if dist.Args[0] <= 0 || dist.Args[1] <= 0 {
			bad("beta parameters must be positive, got (%g, %g)", dist.Args[0], dist.Args[1])
		}
	case ast.DistTriangular:
		if len(dist.Args) != 3 {
			bad("triangular wants (min, mode, max), got %d args", len(dist.Args))
		} else if !(dist.Args[0] <= dist.Args[1] && dist.Args[1] <= dist.Args[2]) {
			bad("triangular wants min <= mode <= max, got (%g, %g, %g)",
				dist.Args[0], dist.Args[1], dist.Args[2])
		} else if dist.Args[0] == dist.Args[2] {
			bad("triangular min and max must differ")
		}
	case ast.DistLogNormal:
		if len(dist.Args) != 2 {
			bad("lognormal wants (mu, sigma), got %d args", len(dist.Args))
		} else if dist.Args[1] <= 0 {
			bad("lognormal sigma must be positive, got %g", dist.Args[1])
		}
	}
}
