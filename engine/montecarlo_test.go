package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/diag"
	"github.com/Relatronica/sdl/domain/graph"
	"github.com/Relatronica/sdl/internal/errors"
	"github.com/Relatronica/sdl/parser"
	"github.com/Relatronica/sdl/validator"
)

func compileSource(t *testing.T, src string) (*ast.Scenario, *graph.CausalGraph) {
	t.Helper()
	sc, pdiags := parser.Parse(src)
	require.NotNil(t, sc, "parse failed: %v", pdiags)
	diags, g := validator.Validate(sc)
	require.False(t, diag.HasErrors(diags), "validation errors: %v", diags)
	require.NotNil(t, g)
	return sc, g
}

const growthSource = `
scenario "growth" {
    timeframe: 2025 -> 2030

    variable revenue {
        2025: 100
        2030: 200
        uncertainty: ±10%
    }

    impact double_revenue {
        formula: revenue * 2
        derives_from: revenue
    }
}`

func TestSimulateIsDeterministicUnderSameSeed(t *testing.T) {
	sc, g := compileSource(t, growthSource)
	opts := Options{Runs: 300, Seed: 42, Workers: 4}

	a, err := Simulate(context.Background(), sc, g, opts)
	require.NoError(t, err)
	b, err := Simulate(context.Background(), sc, g, opts)
	require.NoError(t, err)

	assert.Equal(t, a.Variables, b.Variables)
	assert.Equal(t, a.Impacts, b.Impacts)
}

func TestSimulateDiffersUnderDifferentSeed(t *testing.T) {
	sc, g := compileSource(t, growthSource)

	a, err := Simulate(context.Background(), sc, g, Options{Runs: 300, Seed: 1})
	require.NoError(t, err)
	b, err := Simulate(context.Background(), sc, g, Options{Runs: 300, Seed: 2})
	require.NoError(t, err)

	fa, _ := a.Variables["revenue"].Final()
	fb, _ := b.Variables["revenue"].Final()
	assert.NotEqual(t, fa.Dist.Mean, fb.Dist.Mean)
}

func TestSimulatePercentilesAreOrdered(t *testing.T) {
	sc, g := compileSource(t, growthSource)
	res, err := Simulate(context.Background(), sc, g, Options{Runs: 500, Seed: 7})
	require.NoError(t, err)

	for name, ts := range res.Variables {
		for _, pt := range ts {
			p := pt.Dist.Percentiles
			assert.LessOrEqual(t, p[5], p[25], name)
			assert.LessOrEqual(t, p[25], p[50], name)
			assert.LessOrEqual(t, p[50], p[75], name)
			assert.LessOrEqual(t, p[75], p[95], name)
		}
	}
}

func TestSimulateMedianTracksDeclaredTrajectory(t *testing.T) {
	sc, g := compileSource(t, growthSource)
	res, err := Simulate(context.Background(), sc, g, Options{Runs: 2000, Seed: 11})
	require.NoError(t, err)

	ts := res.Variables["revenue"]
	require.Len(t, ts, 6)

	first := ts[0].Dist
	final := ts[len(ts)-1].Dist
	// The median stays within 5% of the declared anchor values.
	assert.InDelta(t, 100, first.Percentiles[50], 5)
	assert.InDelta(t, 200, final.Percentiles[50], 10)
	// Relative uncertainty scales with the value, so the band widens.
	assert.Greater(t, final.Percentiles[95]-final.Percentiles[5],
		first.Percentiles[95]-first.Percentiles[5])
}

func TestSimulateZeroUncertaintyCollapsesBand(t *testing.T) {
	sc, g := compileSource(t, `
scenario "certain" {
    timeframe: 2025 -> 2030
    variable fixed {
        2025: 10
        2030: 20
    }
}`)
	res, err := Simulate(context.Background(), sc, g, Options{Runs: 200, Seed: 3})
	require.NoError(t, err)

	for _, pt := range res.Variables["fixed"] {
		assert.Equal(t, pt.Dist.Percentiles[5], pt.Dist.Percentiles[95])
		assert.Equal(t, pt.Dist.Mean, pt.Dist.Percentiles[50])
		assert.Equal(t, 0.0, pt.Dist.Std)
	}
}

func TestSimulateImpactFormula(t *testing.T) {
	sc, g := compileSource(t, growthSource)
	res, err := Simulate(context.Background(), sc, g, Options{Runs: 500, Seed: 5})
	require.NoError(t, err)

	rev, _ := res.Variables["revenue"].Final()
	dbl, _ := res.Impacts["double_revenue"].Final()
	assert.InDelta(t, rev.Dist.Mean*2, dbl.Dist.Mean, 1e-9)
}

func TestSimulateBranchOverride(t *testing.T) {
	src := `
scenario "branched" {
    timeframe: 2025 -> 2030

    assumption trigger {
        value: 1
        source: "test"
    }

    variable output {
        2025: 100
        2030: 100
    }

    branch crash when trigger > 0 {
        probability: %s
        variable output {
            2025: 0
            2030: 0
        }
    }
}`
	always, g := compileSource(t, fmt.Sprintf(src, "100%"))
	res, err := Simulate(context.Background(), always, g, Options{Runs: 100, Seed: 9})
	require.NoError(t, err)
	final, _ := res.Variables["output"].Final()
	assert.Equal(t, 0.0, final.Dist.Mean)

	never, g := compileSource(t, fmt.Sprintf(src, "0%"))
	res, err = Simulate(context.Background(), never, g, Options{Runs: 100, Seed: 9})
	require.NoError(t, err)
	final, _ = res.Variables["output"].Final()
	assert.Equal(t, 100.0, final.Dist.Mean)
}

func TestSimulateParameterPin(t *testing.T) {
	sc, g := compileSource(t, `
scenario "pinned" {
    timeframe: 2025 -> 2026

    parameter lever {
        default: 0.5
        min: 0
        max: 1
        interactive: true
        uncertainty: ±20%
    }

    variable base {
        2025: 10
        2026: 10
    }

    impact scaled {
        formula: base * lever
        derives_from: base, lever
    }
}`)
	res, err := Simulate(context.Background(), sc, g, Options{
		Runs: 100, Seed: 1, ParameterDefaults: map[string]float64{"lever": 0.9},
	})
	require.NoError(t, err)

	final, _ := res.Impacts["scaled"].Final()
	// Pinned parameters skip sampling entirely.
	assert.InDelta(t, 9, final.Dist.Mean, 1e-9)
	assert.Equal(t, final.Dist.Percentiles[5], final.Dist.Percentiles[95])
}

func TestSimulateUsesSimulateBlockDefaults(t *testing.T) {
	sc, g := compileSource(t, `
scenario "configured" {
    timeframe: 2025 -> 2026
    variable v {
        2025: 1
        2026: 2
        uncertainty: ±5%
    }
    simulate {
        runs: 123
        percentiles: [10, 50, 90]
    }
}`)
	res, err := Simulate(context.Background(), sc, g, Options{Seed: 1})
	require.NoError(t, err)

	assert.Equal(t, 123, res.Runs)
	final, _ := res.Variables["v"].Final()
	assert.Contains(t, final.Dist.Percentiles, 10.0)
	assert.Contains(t, final.Dist.Percentiles, 90.0)
	assert.NotContains(t, final.Dist.Percentiles, 25.0)
}

func TestSimulatePreconditions(t *testing.T) {
	sc, g := compileSource(t, growthSource)

	_, err := Simulate(context.Background(), nil, nil, Options{})
	assert.Equal(t, errors.CodePrecondition, errors.GetCode(err))

	_, err = Simulate(context.Background(), sc, nil, Options{})
	assert.Equal(t, errors.CodePrecondition, errors.GetCode(err))

	noTimeframe, _ := parser.Parse(`scenario "bare" { assumption a { value: 1; source: "x" } }`)
	require.NotNil(t, noTimeframe)
	_, err = Simulate(context.Background(), noTimeframe, g, Options{})
	assert.Equal(t, errors.CodePrecondition, errors.GetCode(err))
}

func TestSimulateHonorsCancellation(t *testing.T) {
	sc, g := compileSource(t, growthSource)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Simulate(ctx, sc, g, Options{Runs: 5000, Seed: 1})
	assert.Error(t, err)
}

func TestTimelineResolutions(t *testing.T) {
	meta := ast.Metadata{
		TimeframeStart: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		TimeframeEnd:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		HasTimeframe:   true,
	}

	assert.Len(t, timeline(meta), 2)

	meta.Resolution = "quarterly"
	assert.Len(t, timeline(meta), 5)

	meta.Resolution = "monthly"
	assert.Len(t, timeline(meta), 13)

	// A ragged end lands exactly on the final date.
	meta.Resolution = "yearly"
	meta.TimeframeEnd = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	steps := timeline(meta)
	assert.Equal(t, meta.TimeframeEnd, steps[len(steps)-1])
}
