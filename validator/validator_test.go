package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Relatronica/sdl/domain/diag"
	"github.com/Relatronica/sdl/domain/graph"
	"github.com/Relatronica/sdl/parser"
)

func mustParse(t *testing.T, src string) ([]diag.Diagnostic, *graph.CausalGraph) {
	t.Helper()
	sc, pdiags := parser.Parse(src)
	require.NotNil(t, sc, "parse failed: %v", pdiags)
	require.False(t, diag.HasErrors(pdiags), "parse errors: %v", pdiags)
	return Validate(sc)
}

func codes(diags []diag.Diagnostic) []string {
	out := make([]string, 0, len(diags))
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func TestValidateCleanScenario(t *testing.T) {
	diags, g := mustParse(t, `
scenario "clean" {
    timeframe: 2025 -> 2030

    assumption rate {
        value: 0.05
        source: "central bank"
        uncertainty: normal(0.05, 0.01)
    }

    variable demand {
        2025: 10
        2030: 20
        uncertainty: ±5%
        depends_on: rate
    }

    impact cost {
        formula: demand * 2
        derives_from: demand
    }
}`)
	assert.Empty(t, diags)
	require.NotNil(t, g)
}

func TestValidateMissingTimeframeWarns(t *testing.T) {
	diags, g := mustParse(t, `
scenario "no timeframe" {
    assumption a {
        value: 1
        source: "x"
    }
}`)
	require.NotNil(t, g)
	assert.Contains(t, codes(diags), diag.CodeMissingTimeframe)
	assert.False(t, diag.HasErrors(diags))
}

func TestValidateTimeframeOrder(t *testing.T) {
	diags, _ := mustParse(t, `
scenario "backwards" {
    timeframe: 2030 -> 2025
}`)
	assert.Contains(t, codes(diags), diag.CodeTimeframeOrder)
	assert.True(t, diag.HasErrors(diags))
}

func TestValidateConfidenceRange(t *testing.T) {
	diags, _ := mustParse(t, `
scenario "overconfident" {
    timeframe: 2025 -> 2030
    confidence: 150%
}`)
	assert.Contains(t, codes(diags), diag.CodeConfidenceRange)
}

func TestValidateDuplicateNames(t *testing.T) {
	diags, _ := mustParse(t, `
scenario "dupes" {
    timeframe: 2025 -> 2030
    assumption x { value: 1; source: "a" }
    variable x {
        2025: 1
        2030: 2
        uncertainty: ±1%
    }
}`)
	assert.Contains(t, codes(diags), diag.CodeDuplicateName)
}

func TestValidateUndefinedReference(t *testing.T) {
	diags, _ := mustParse(t, `
scenario "dangling" {
    timeframe: 2025 -> 2030
    impact i {
        formula: ghost * 2
        derives_from: ghost
    }
}`)
	assert.Contains(t, codes(diags), diag.CodeUndefinedReference)
}

func TestValidateCycleYieldsSingleErrorAndNilGraph(t *testing.T) {
	sc, _ := parser.Parse(`
scenario "cycle" {
    timeframe: 2025 -> 2030
    variable a {
        2025: 1
        2030: 2
        uncertainty: ±1%
        depends_on: b
    }
    variable b {
        2025: 1
        2030: 2
        uncertainty: ±1%
        depends_on: c
    }
    variable c {
        2025: 1
        2030: 2
        uncertainty: ±1%
        depends_on: a
    }
}`)
	require.NotNil(t, sc)
	diags, g := Validate(sc)

	assert.Nil(t, g)
	cycles := 0
	for _, d := range diags {
		if d.Code == diag.CodeDependencyCycle {
			cycles++
		}
	}
	assert.Equal(t, 1, cycles)
}

func TestValidateTopologicalOrder(t *testing.T) {
	sc, _ := parser.Parse(`
scenario "ordered" {
    timeframe: 2025 -> 2030
    impact late {
        formula: mid * 2
        derives_from: mid
    }
    variable mid {
        2025: 1
        2030: 2
        uncertainty: ±1%
        depends_on: early
    }
    assumption early {
        value: 1
        source: "x"
    }
}`)
	require.NotNil(t, sc)
	diags, g := Validate(sc)
	require.False(t, diag.HasErrors(diags))
	require.NotNil(t, g)

	assert.Less(t, g.Position("early"), g.Position("mid"))
	assert.Less(t, g.Position("mid"), g.Position("late"))
}

func TestValidateTopoOrderBreaksTiesByDeclaration(t *testing.T) {
	sc, _ := parser.Parse(`
scenario "ties" {
    timeframe: 2025 -> 2030
    assumption zeta { value: 1; source: "x" }
    assumption alpha { value: 2; source: "x" }
}`)
	require.NotNil(t, sc)
	_, g := Validate(sc)
	require.NotNil(t, g)
	// Independent nodes keep declaration order, not name order.
	assert.Equal(t, []string{"zeta", "alpha"}, g.TopologicalOrder)
}

func TestValidateSeriesChronology(t *testing.T) {
	diags, _ := mustParse(t, `
scenario "unordered" {
    timeframe: 2025 -> 2030
    variable v {
        2028: 3
        2026: 1
        uncertainty: ±1%
    }
}`)
	assert.Contains(t, codes(diags), diag.CodeNonChronological)
}

func TestValidateMissingUncertaintyWarns(t *testing.T) {
	diags, _ := mustParse(t, `
scenario "flat" {
    timeframe: 2025 -> 2030
    variable v {
        2025: 1
        2030: 2
    }
}`)
	assert.Contains(t, codes(diags), diag.CodeMissingUncertainty)
	assert.False(t, diag.HasErrors(diags))
}

func TestValidateDistributions(t *testing.T) {
	cases := []struct {
		name string
		dist string
		bad  bool
	}{
		{"normal ok", "normal(1, 0.5)", false},
		{"normal zero std", "normal(1, 0)", true},
		{"uniform ok", "uniform(0, 1)", false},
		{"uniform inverted", "uniform(2, 1)", true},
		{"beta ok", "beta(2, 5)", false},
		{"beta nonpositive", "beta(0, 5)", true},
		{"triangular ok", "triangular(1, 2, 3)", false},
		{"triangular mode outside", "triangular(1, 5, 3)", true},
		{"triangular degenerate", "triangular(1, 1, 1)", true},
		{"lognormal ok", "lognormal(0, 0.5)", false},
		{"lognormal zero sigma", "lognormal(0, 0)", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			diags, _ := mustParse(t, `
scenario "dists" {
    timeframe: 2025 -> 2030
    assumption a {
        value: 1
        source: "x"
        uncertainty: `+tc.dist+`
    }
}`)
			if tc.bad {
				assert.Contains(t, codes(diags), diag.CodeInvalidDistribution)
			} else {
				assert.NotContains(t, codes(diags), diag.CodeInvalidDistribution)
			}
		})
	}
}

func TestValidateBranchProbabilityRange(t *testing.T) {
	diags, _ := mustParse(t, `
scenario "unlikely" {
    timeframe: 2025 -> 2030
    branch boom {
        probability: 150%
    }
}`)
	assert.Contains(t, codes(diags), diag.CodeProbabilityRange)
}

func TestValidateWatchAndCalibrateTargets(t *testing.T) {
	diags, _ := mustParse(t, `
scenario "targets" {
    timeframe: 2025 -> 2030
    watch nobody {
        warn when: actual < 1
    }
    calibrate nothing {
        method: bayesian
    }
}`)
	got := codes(diags)
	assert.Contains(t, got, diag.CodeWatchTarget)
	assert.Contains(t, got, diag.CodeCalibrateTarget)
}

func TestValidateAccumulatesAllFindings(t *testing.T) {
	diags, _ := mustParse(t, `
scenario "messy" {
    timeframe: 2030 -> 2025
    confidence: 150%
    assumption a { value: 1 }
    impact i {
        formula: ghost
        derives_from: ghost
    }
}`)
	got := codes(diags)
	assert.Contains(t, got, diag.CodeTimeframeOrder)
	assert.Contains(t, got, diag.CodeConfidenceRange)
	assert.Contains(t, got, diag.CodeMissingSource)
	assert.Contains(t, got, diag.CodeUndefinedReference)
}
