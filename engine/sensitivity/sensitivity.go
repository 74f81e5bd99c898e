// Package sensitivity ranks interactive parameters by how much moving
// each one across its range swings the observables. It is a
// one-at-a-time method: every sweep pins a single parameter to an
// extreme while the rest stay at their baseline defaults, so
// cross-parameter interaction effects are not captured. That is a
// documented property of the method, not a defect.
package sensitivity

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/graph"
	"github.com/Relatronica/sdl/domain/result"
	"github.com/Relatronica/sdl/engine"
	"github.com/Relatronica/sdl/internal/errors"
)

// Parameter is one interactive input with its sweep range.
type Parameter struct {
	Name    string
	Default float64
	Min     float64
	Max     float64
}

// Options bounds the analysis.
type Options struct {
	Engine      engine.Options
	Observables []string // empty = every variable and impact
	Parallelism int      // concurrent simulations, 0 = 2x parameters + 1
}

// ParametersFrom extracts the interactive parameters (those declaring
// min and max) from a scenario.
func ParametersFrom(sc *ast.Scenario) []Parameter {
	var out []Parameter
	for _, d := range sc.Decls {
		p, ok := d.(*ast.Parameter)
		if !ok || !p.Interactive || p.Min == nil || p.Max == nil {
			continue
		}
		def, ok1 := engine.ConstValue(p.Default)
		min, ok2 := engine.ConstValue(p.Min)
		max, ok3 := engine.ConstValue(p.Max)
		if !ok1 || !ok2 || !ok3 {
			continue
		}
		out = append(out, Parameter{Name: p.Name, Default: def, Min: min, Max: max})
	}
	return out
}

// Analyze runs the baseline plus two pinned simulations per parameter
// (2*|params|+1 in total) and ranks parameters by total swing. All
// simulations share the same seed, so sweeps differ only in the pinned
// parameter.
func Analyze(ctx context.Context, sc *ast.Scenario, g *graph.CausalGraph, params []Parameter, opts Options) ([]result.SensitivityResult, error) {
	if len(params) == 0 {
		return nil, nil
	}

	baselineDefaults := make(map[string]float64, len(params))
	for _, p := range params {
		baselineDefaults[p.Name] = p.Default
	}
	run := func(ctx context.Context, pinned string, value float64) (*result.SimulationResult, error) {
		eo := opts.Engine
		eo.ParameterDefaults = make(map[string]float64, len(params))
		for k, v := range baselineDefaults {
			eo.ParameterDefaults[k] = v
		}
		if pinned != "" {
			eo.ParameterDefaults[pinned] = value
		}
		return engine.Simulate(ctx, sc, g, eo)
	}

	baseline, err := run(ctx, "", 0)
	if err != nil {
		return nil, errors.Wrap(err, "baseline simulation failed")
	}
	observables := opts.Observables
	if len(observables) == 0 {
		observables = observableNames(baseline)
	}

	lows := make([]*result.SimulationResult, len(params))
	highs := make([]*result.SimulationResult, len(params))
	grp, gctx := errgroup.WithContext(ctx)
	limit := opts.Parallelism
	if limit <= 0 {
		limit = 2*len(params) + 1
	}
	grp.SetLimit(limit)
	for i, p := range params {
		i, p := i, p
		grp.Go(func() error {
			res, err := run(gctx, p.Name, p.Min)
			lows[i] = res
			return err
		})
		grp.Go(func() error {
			res, err := run(gctx, p.Name, p.Max)
			highs[i] = res
			return err
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, errors.Wrap(err, "sensitivity sweep failed")
	}

	out := make([]result.SensitivityResult, 0, len(params))
	for i, p := range params {
		sr := result.SensitivityResult{Parameter: p.Name}
		for _, obs := range observables {
			swing := swingFor(obs, baseline, lows[i], highs[i])
			sr.Swings = append(sr.Swings, swing)
			sr.TotalSwing += swing.SwingPct
		}
		sort.Slice(sr.Swings, func(a, b int) bool { return sr.Swings[a].SwingPct > sr.Swings[b].SwingPct })
		out = append(out, sr)
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].TotalSwing > out[b].TotalSwing })
	return out, nil
}

// swingFor measures one parameter's effect on one observable at the
// final timestep.
func swingFor(obs string, baseline, low, high *result.SimulationResult) result.ObservableSwing {
	s := result.ObservableSwing{Observable: obs}
	baseTS, ok1 := baseline.Series(obs)
	lowTS, ok2 := low.Series(obs)
	highTS, ok3 := high.Series(obs)
	if !ok1 || !ok2 || !ok3 || len(baseTS) == 0 {
		return s
	}
	last := len(baseTS) - 1
	baseMed := baseTS.Median(last)
	s.LowValue = lowTS.Median(last)
	s.HighValue = highTS.Median(last)
	s.Swing = math.Abs(s.HighValue - s.LowValue)
	if baseMed != 0 {
		s.SwingPct = s.Swing / math.Abs(baseMed) * 100
	}
	return s
}

func observableNames(r *result.SimulationResult) []string {
	var names []string
	for name := range r.Variables {
		names = append(names, name)
	}
	for name := range r.Impacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
