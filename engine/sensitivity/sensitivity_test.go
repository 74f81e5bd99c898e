package sensitivity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/diag"
	"github.com/Relatronica/sdl/domain/graph"
	"github.com/Relatronica/sdl/engine"
	"github.com/Relatronica/sdl/parser"
	"github.com/Relatronica/sdl/validator"
)

const leverSource = `
scenario "levers" {
    timeframe: 2025 -> 2027

    parameter strong {
        default: 1.0
        min: 0.5
        max: 2.0
        interactive: true
    }

    parameter weak {
        default: 1.0
        min: 0.9
        max: 1.1
        interactive: true
    }

    parameter inert {
        default: 1.0
        min: 0.0
        max: 10.0
        interactive: true
    }

    parameter fixed {
        default: 3.0
    }

    variable base {
        2025: 100
        2027: 100
    }

    impact outcome {
        formula: base * strong * weak
        derives_from: base, strong, weak
    }
}`

func compileSource(t *testing.T, src string) (*ast.Scenario, *graph.CausalGraph) {
	t.Helper()
	sc, pdiags := parser.Parse(src)
	require.NotNil(t, sc, "parse failed: %v", pdiags)
	diags, g := validator.Validate(sc)
	require.False(t, diag.HasErrors(diags), "validation errors: %v", diags)
	return sc, g
}

func TestParametersFrom(t *testing.T) {
	sc, _ := compileSource(t, leverSource)
	params := ParametersFrom(sc)

	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
	}
	// Non-interactive parameters and those without a range stay out.
	assert.Equal(t, []string{"strong", "weak", "inert"}, names)
	assert.Equal(t, Parameter{Name: "strong", Default: 1.0, Min: 0.5, Max: 2.0}, params[0])
}

func TestAnalyzeRanksByInfluence(t *testing.T) {
	sc, g := compileSource(t, leverSource)
	params := ParametersFrom(sc)

	results, err := Analyze(context.Background(), sc, g, params, Options{
		Engine: engine.Options{Runs: 200, Seed: 17},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// strong sweeps [0.5, 2.0], weak only [0.9, 1.1].
	assert.Equal(t, "strong", results[0].Parameter)
	assert.Greater(t, results[0].TotalSwing, results[1].TotalSwing)

	// A parameter absent from every formula moves nothing.
	var inert *float64
	for i := range results {
		if results[i].Parameter == "inert" {
			inert = &results[i].TotalSwing
		}
	}
	require.NotNil(t, inert)
	assert.InDelta(t, 0, *inert, 1e-9)
}

func TestAnalyzeSwingValues(t *testing.T) {
	sc, g := compileSource(t, leverSource)
	params := ParametersFrom(sc)

	results, err := Analyze(context.Background(), sc, g, params, Options{
		Engine:      engine.Options{Runs: 200, Seed: 17},
		Observables: []string{"outcome"},
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	strong := results[0]
	require.Equal(t, "strong", strong.Parameter)
	require.Len(t, strong.Swings, 1)
	sw := strong.Swings[0]
	assert.Equal(t, "outcome", sw.Observable)
	// base has no uncertainty: outcome medians are exact products.
	assert.InDelta(t, 50, sw.LowValue, 1e-9)
	assert.InDelta(t, 200, sw.HighValue, 1e-9)
	assert.InDelta(t, 150, sw.Swing, 1e-9)
	assert.InDelta(t, 150, sw.SwingPct, 1e-9)
}

func TestAnalyzeNoInteractiveParameters(t *testing.T) {
	sc, g := compileSource(t, `
scenario "static" {
    timeframe: 2025 -> 2026
    variable v {
        2025: 1
        2026: 2
        uncertainty: ±5%
    }
}`)
	results, err := Analyze(context.Background(), sc, g, ParametersFrom(sc), Options{})
	require.NoError(t, err)
	assert.Nil(t, results)
}

func TestAnalyzeSharesSeedAcrossSweeps(t *testing.T) {
	sc, g := compileSource(t, leverSource)
	params := ParametersFrom(sc)
	opts := Options{Engine: engine.Options{Runs: 150, Seed: 23}}

	a, err := Analyze(context.Background(), sc, g, params, opts)
	require.NoError(t, err)
	b, err := Analyze(context.Background(), sc, g, params, opts)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
