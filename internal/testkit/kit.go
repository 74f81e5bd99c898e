// Package testkit provides shared fixtures for exercising the scenario
// pipeline in tests: canned sources, parse/validate helpers, and an
// in-memory observed-data source.
package testkit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/diag"
	"github.com/Relatronica/sdl/domain/graph"
	"github.com/Relatronica/sdl/domain/series"
	"github.com/Relatronica/sdl/parser"
	"github.com/Relatronica/sdl/validator"
)

// GrowthScenario is a small but complete source covering every
// declaration kind the pipeline handles.
const GrowthScenario = `
scenario "Market Growth" {
    timeframe: 2025 -> 2030
    resolution: yearly
    confidence: 70%
    author: "forecasting team"

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
        2030: 200
        model: linear
        uncertainty: ±10%
        depends_on: gdp_growth
    }

    impact profit {
        formula: revenue * adoption
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
        runs: 400
        percentiles: [5, 25, 50, 75, 95]
    }

    watch gdp_growth {
        warn when: actual < assumed * 0.5
    }

    calibrate gdp_growth {
        method: bayesian
        window: 2020 -> 2025
    }
}
`

// MustParse parses source and fails the test on any error finding.
func MustParse(t *testing.T, source string) *ast.Scenario {
	t.Helper()
	sc, diags := parser.Parse(source)
	if sc == nil {
		t.Fatalf("parse failed: %v", diags)
	}
	for _, d := range diags {
		if d.Severity == diag.SeverityError {
			t.Fatalf("unexpected parse error: %s", d.Message)
		}
	}
	return sc
}

// MustValidate parses and validates source, failing on any error
// finding, and returns the scenario with its causal graph.
func MustValidate(t *testing.T, source string) (*ast.Scenario, *graph.CausalGraph) {
	t.Helper()
	sc := MustParse(t, source)
	diags, g := validator.Validate(sc)
	for _, d := range diags {
		if d.Severity == diag.SeverityError {
			t.Fatalf("unexpected validation error: %s", d.Message)
		}
	}
	if g == nil {
		t.Fatal("validation produced no causal graph")
	}
	return sc, g
}

// MemorySource is an in-memory observed-data source keyed by locator.
type MemorySource struct {
	Points map[string][]series.ObservedPoint
	Err    error
	Calls  int
}

// Fetch implements ports.DataSource.
func (m *MemorySource) Fetch(_ context.Context, locator string) ([]series.ObservedPoint, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	pts, ok := m.Points[locator]
	if !ok {
		return nil, fmt.Errorf("no data for %q", locator)
	}
	return pts, nil
}

// Observed builds an observed point on the given date.
func Observed(year int, month time.Month, value float64) series.ObservedPoint {
	return series.ObservedPoint{
		Date:  time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
		Value: value,
	}
}
