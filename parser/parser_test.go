package parser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/diag"
)

const fullScenario = `
scenario "Market Growth" {
    timeframe: 2025 -> 2030
    resolution: yearly
    confidence: 70%
    author: "forecasting team"
    tags: [markets, growth]
    chart_color: blue

    assumption gdp_growth {
        value: 0.03
        uncertainty: normal(0.03, 0.01)
        source: "IMF World Economic Outlook"
        bind: "fred/gdp_growth"
    }

    parameter adoption {
        default: 0.5
        min: 0.1
        max: 0.9
        interactive: true
    }

    variable revenue {
        unit: USD
        2025: 100
        2027-06: 140
        2030: 200
        model: logistic(ceiling: 250, rate: 0.8)
        uncertainty: ±10%
        depends_on: gdp_growth
    }

    impact profit {
        formula: revenue * adoption - 10
        derives_from: revenue, adoption
    }

    branch downturn when gdp_growth < 0 {
        probability: 30%
        variable revenue {
            2025: 90
            2030: 120
        }
    }

    simulate {
        runs: 500
        percentiles: [5, 50, 95]
        convergence: 0.01
    }

    watch gdp_growth {
        warn when: actual < assumed * 0.9
        error when: actual < 0
    }

    calibrate gdp_growth {
        method: bayesian
        window: 2020 -> 2025
        source: "gdp.csv"
    }

    import "shared/rates.sdl" as rates
}
`

func declsByType(sc *ast.Scenario) map[string]int {
	counts := map[string]int{}
	for _, d := range sc.Decls {
		switch d.(type) {
		case *ast.Assumption:
			counts["assumption"]++
		case *ast.Variable:
			counts["variable"]++
		case *ast.Parameter:
			counts["parameter"]++
		case *ast.Impact:
			counts["impact"]++
		case *ast.Branch:
			counts["branch"]++
		case *ast.Simulate:
			counts["simulate"]++
		case *ast.Watch:
			counts["watch"]++
		case *ast.Calibrate:
			counts["calibrate"]++
		case *ast.Import:
			counts["import"]++
		}
	}
	return counts
}

func findDecl[T ast.Decl](t *testing.T, sc *ast.Scenario) T {
	t.Helper()
	for _, d := range sc.Decls {
		if v, ok := d.(T); ok {
			return v
		}
	}
	var zero T
	t.Fatalf("no %T in scenario", zero)
	return zero
}

func TestParseFullScenario(t *testing.T) {
	sc, diags := Parse(fullScenario)
	require.NotNil(t, sc)
	assert.Empty(t, diags)

	assert.Equal(t, "Market Growth", sc.Name)
	assert.Equal(t, map[string]int{
		"assumption": 1, "variable": 1, "parameter": 1, "impact": 1,
		"branch": 1, "simulate": 1, "watch": 1, "calibrate": 1, "import": 1,
	}, declsByType(sc))
}

func TestParseMetadata(t *testing.T) {
	sc, _ := Parse(fullScenario)
	require.NotNil(t, sc)

	assert.True(t, sc.Meta.HasTimeframe)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), sc.Meta.TimeframeStart)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), sc.Meta.TimeframeEnd)
	assert.Equal(t, "yearly", sc.Meta.Resolution)
	assert.True(t, sc.Meta.HasConfidence)
	assert.InDelta(t, 0.7, sc.Meta.Confidence, 1e-12)
	assert.Equal(t, "forecasting team", sc.Meta.Author)
	assert.Equal(t, []string{"markets", "growth"}, sc.Meta.Tags)
	// Unknown metadata keys survive as opaque hints.
	assert.Equal(t, "blue", sc.Meta.Hints["chart_color"])
}

func TestParseAssumption(t *testing.T) {
	sc, _ := Parse(fullScenario)
	a := findDecl[*ast.Assumption](t, sc)

	assert.Equal(t, "gdp_growth", a.Name)
	assert.Equal(t, "IMF World Economic Outlook", a.Source)
	assert.Equal(t, "fred/gdp_growth", a.Bind)
	require.NotNil(t, a.Uncertainty)
	assert.Equal(t, ast.DistNormal, a.Uncertainty.Kind)
	assert.Equal(t, []float64{0.03, 0.01}, a.Uncertainty.Args)
	assert.False(t, a.Uncertainty.Relative)
}

func TestParseVariable(t *testing.T) {
	sc, _ := Parse(fullScenario)
	v := findDecl[*ast.Variable](t, sc)

	assert.Equal(t, "revenue", v.Name)
	assert.Equal(t, "USD", v.Unit)
	require.Len(t, v.Series, 3)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), v.Series[0].Date)
	assert.Equal(t, time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC), v.Series[1].Date)

	require.NotNil(t, v.Model)
	assert.Equal(t, ast.ModelLogistic, v.Model.Kind)
	assert.Equal(t, 250.0, v.Model.Params["ceiling"])
	assert.Equal(t, 0.8, v.Model.Params["rate"])

	require.NotNil(t, v.Uncertainty)
	assert.True(t, v.Uncertainty.Relative)
	assert.InDelta(t, 0.10, v.Uncertainty.Spread, 1e-12)

	require.Len(t, v.DependsOn, 1)
	assert.Equal(t, "gdp_growth", v.DependsOn[0].Name)
}

func TestParseBranch(t *testing.T) {
	sc, _ := Parse(fullScenario)
	b := findDecl[*ast.Branch](t, sc)

	assert.Equal(t, "downturn", b.Name)
	assert.InDelta(t, 0.30, b.Probability, 1e-12)
	require.NotNil(t, b.When)
	require.Len(t, b.Decls, 1)
	inner, ok := b.Decls[0].(*ast.Variable)
	require.True(t, ok)
	assert.Equal(t, "revenue", inner.Name)
	assert.Len(t, inner.Series, 2)
}

func TestParseSimulateWatchCalibrate(t *testing.T) {
	sc, _ := Parse(fullScenario)

	sim := findDecl[*ast.Simulate](t, sc)
	assert.Equal(t, 500, sim.Runs)
	assert.Equal(t, []float64{5, 50, 95}, sim.Percentiles)
	assert.Equal(t, 0.01, sim.Convergence)

	w := findDecl[*ast.Watch](t, sc)
	assert.Equal(t, "gdp_growth", w.Target)
	require.Len(t, w.Rules, 2)
	assert.Equal(t, "warn", w.Rules[0].Severity)
	assert.Equal(t, "error", w.Rules[1].Severity)

	c := findDecl[*ast.Calibrate](t, sc)
	assert.Equal(t, "gdp_growth", c.Target)
	assert.Equal(t, "bayesian", c.Method)
	assert.True(t, c.HasWindow)
	assert.Equal(t, "gdp.csv", c.Source)

	imp := findDecl[*ast.Import](t, sc)
	assert.Equal(t, "shared/rates.sdl", imp.Path)
	assert.Equal(t, "rates", imp.Alias)
}

func TestParseExpressionPrecedence(t *testing.T) {
	sc, diags := Parse(`
scenario "expr" {
    impact x {
        formula: 1 + 2 * 3 < 10 and not false
    }
}`)
	require.NotNil(t, sc)
	assert.Empty(t, diags)

	f := findDecl[*ast.Impact](t, sc).Formula
	and, ok := f.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "and", and.Op)

	cmp, ok := and.Left.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "<", cmp.Op)

	add, ok := cmp.Left.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "+", add.Op)
	mul, ok := add.Right.(*ast.Binary)
	require.True(t, ok)
	assert.Equal(t, "*", mul.Op)
}

func TestParseCurrencyLiterals(t *testing.T) {
	sc, diags := Parse(`
scenario "money" {
    assumption budget {
        value: 100M USD
    }
}`)
	require.NotNil(t, sc)
	assert.Empty(t, diags)

	cur, ok := findDecl[*ast.Assumption](t, sc).Value.(*ast.CurrencyLit)
	require.True(t, ok)
	assert.Equal(t, 100.0, cur.Value)
	assert.Equal(t, "M", cur.Magnitude)
	assert.Equal(t, "USD", cur.Code)
}

func TestParseRecoversWithinDeclarations(t *testing.T) {
	sc, diags := Parse(`
scenario "recovery" {
    assumption ok_before {
        value: 1
    }
    assumption broken {
        bogus_key: ???
    }
    assumption ok_after {
        value: 2
    }
}`)
	require.NotNil(t, sc)
	require.NotEmpty(t, diags)
	for _, d := range diags {
		assert.Equal(t, diag.CodeSyntaxError, d.Code)
		require.NotNil(t, d.Span)
		assert.Greater(t, d.Span.Line, 0)
	}
	// Recovery keeps the surrounding declarations.
	assert.Equal(t, 3, declsByType(sc)["assumption"])
}

func TestParseMissingBraceIsFatal(t *testing.T) {
	sc, diags := Parse(`scenario "broken" { assumption a { value: 1 }`)
	assert.Nil(t, sc)
	require.NotEmpty(t, diags)
	assert.True(t, diag.HasErrors(diags))
}

func TestParseEmptyInputIsFatal(t *testing.T) {
	sc, diags := Parse("")
	assert.Nil(t, sc)
	assert.True(t, diag.HasErrors(diags))
}

func TestParseFixtureFiles(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "*.sdl"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			sc, diags := Parse(string(raw))
			require.NotNil(t, sc)
			assert.False(t, diag.HasErrors(diags), "diagnostics: %v", diags)
			assert.NotEmpty(t, sc.Decls)
		})
	}
}
