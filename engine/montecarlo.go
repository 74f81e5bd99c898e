// Package engine runs Monte Carlo simulations over a validated
// scenario: it samples uncertain inputs, propagates them through
// interpolation models in causal order, applies probability-gated
// branches, and aggregates percentile bands per timestep.
package engine

import (
	"context"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/graph"
	"github.com/Relatronica/sdl/domain/result"
	"github.com/Relatronica/sdl/internal/errors"
)

// DefaultRuns is used when neither the options nor the scenario's
// simulate block specify a run count.
const DefaultRuns = 2000

// DefaultPercentiles are the aggregated band edges.
var DefaultPercentiles = []float64{5, 25, 50, 75, 95}

// Options configures one simulation.
type Options struct {
	Runs              int
	Seed              int64
	Percentiles       []float64
	ParameterDefaults map[string]float64 // pins a parameter to a fixed value
	Workers           int                // 0 = GOMAXPROCS
}

// Simulate runs the Monte Carlo engine. The scenario must have been
// validated: a nil causal graph or outstanding semantic errors are a
// precondition violation, not a recoverable input.
//
// Identical (scenario, runs, seed) always produce identical output:
// every (run, declaration) pair samples from its own substream derived
// from hash(seed, run, name), so worker scheduling cannot perturb
// results.
func Simulate(ctx context.Context, sc *ast.Scenario, g *graph.CausalGraph, opts Options) (*result.SimulationResult, error) {
	if sc == nil || g == nil {
		return nil, errors.New(errors.CodePrecondition, "simulate requires a validated scenario and causal graph")
	}
	if !sc.Meta.HasTimeframe {
		return nil, errors.New(errors.CodePrecondition, "scenario has no timeframe")
	}
	c := compile(sc, g, opts)
	if len(c.steps) == 0 {
		return nil, errors.New(errors.CodePrecondition, "timeframe produces no timesteps")
	}
	start := time.Now()

	// One slot per (observable, step, run); workers write disjoint
	// run indices, so the only synchronization point is the final
	// reduction after the group completes.
	samples := make(map[string][][]float64, len(c.observables))
	for _, name := range c.observables {
		perStep := make([][]float64, len(c.steps))
		for i := range perStep {
			perStep[i] = make([]float64, c.runs)
		}
		samples[name] = perStep
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(workers)
	chunk := (c.runs + workers - 1) / workers
	for lo := 0; lo < c.runs; lo += chunk {
		lo, hi := lo, lo+chunk
		if hi > c.runs {
			hi = c.runs
		}
		grp.Go(func() error {
			for run := lo; run < hi; run++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if err := c.runOne(run, samples); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		return nil, errors.Wrap(err, "simulation failed")
	}

	res := &result.SimulationResult{
		RunID:     uuid.NewString(),
		Runs:      c.runs,
		ElapsedMs: time.Since(start).Milliseconds(),
	}
	res.Variables, res.Impacts = c.aggregate(samples)
	return res, nil
}

// compiled is the immutable per-simulation state shared by all runs.
type compiled struct {
	sc          *ast.Scenario
	steps       []time.Time
	stepT       []float64 // fractional-year axis per step
	topo        []string
	decls       map[string]ast.Decl
	branches    []*ast.Branch
	overrides   map[string]map[string]*ast.Variable // branch -> variable -> override
	constCache  map[string][]anchor                 // variables whose anchors are constants
	observables []string                            // variables + impacts in topo order
	percentiles []float64
	defaults    map[string]float64
	runs        int
	seed        int64
}

func compile(sc *ast.Scenario, g *graph.CausalGraph, opts Options) *compiled {
	c := &compiled{
		sc:         sc,
		topo:       g.TopologicalOrder,
		decls:      map[string]ast.Decl{},
		overrides:  map[string]map[string]*ast.Variable{},
		constCache: map[string][]anchor{},
		defaults:   opts.ParameterDefaults,
		runs:       opts.Runs,
		seed:       opts.Seed,
	}
	c.percentiles = opts.Percentiles

	var sim *ast.Simulate
	for _, d := range sc.Decls {
		switch d := d.(type) {
		case *ast.Assumption, *ast.Variable, *ast.Parameter, *ast.Impact:
			c.decls[d.DeclName()] = d
		case *ast.Branch:
			c.branches = append(c.branches, d)
			for _, nd := range d.Decls {
				if v, ok := nd.(*ast.Variable); ok {
					if c.overrides[d.Name] == nil {
						c.overrides[d.Name] = map[string]*ast.Variable{}
					}
					c.overrides[d.Name][v.Name] = v
				}
			}
		case *ast.Simulate:
			sim = d
		}
	}
	if c.runs <= 0 {
		c.runs = DefaultRuns
		if sim != nil && sim.HasRuns {
			c.runs = sim.Runs
		}
	}
	if len(c.percentiles) == 0 {
		c.percentiles = DefaultPercentiles
		if sim != nil && len(sim.Percentiles) > 0 {
			c.percentiles = sim.Percentiles
		}
	}

	c.steps = timeline(sc.Meta)
	c.stepT = make([]float64, len(c.steps))
	for i, s := range c.steps {
		c.stepT[i] = yearOf(s)
	}

	for _, name := range c.topo {
		switch d := c.decls[name].(type) {
		case *ast.Variable:
			c.observables = append(c.observables, name)
			c.cacheConstAnchors(name, d)
		case *ast.Impact:
			c.observables = append(c.observables, name)
		}
	}
	for branch, vars := range c.overrides {
		for name, v := range vars {
			c.cacheConstAnchors(branch+"/"+name, v)
		}
	}
	return c
}

// cacheConstAnchors precomputes anchors whose values are literal
// constants, which is the common case. Anchors referencing other
// declarations are re-evaluated per run and timestep.
func (c *compiled) cacheConstAnchors(key string, v *ast.Variable) {
	anchors := make([]anchor, 0, len(v.Series))
	for _, tp := range v.Series {
		val, ok := ConstValue(tp.Value)
		if !ok {
			return
		}
		anchors = append(anchors, anchor{t: yearOf(tp.Date), v: val})
	}
	c.constCache[key] = anchors
}

func (c *compiled) anchorsFor(key string, v *ast.Variable, env Env) []anchor {
	if a, ok := c.constCache[key]; ok {
		return a
	}
	anchors := make([]anchor, 0, len(v.Series))
	for _, tp := range v.Series {
		val, err := Eval(tp.Value, env)
		if err != nil {
			val = 0
		}
		anchors = append(anchors, anchor{t: yearOf(tp.Date), v: val})
	}
	return anchors
}

// timeline expands the scenario timeframe into simulation steps at the
// declared resolution (yearly when unset), inclusive of both ends.
func timeline(meta ast.Metadata) []time.Time {
	var months int
	switch meta.Resolution {
	case "monthly":
		months = 1
	case "quarterly":
		months = 3
	default:
		months = 12
	}
	var steps []time.Time
	for t := meta.TimeframeStart; !t.After(meta.TimeframeEnd); t = t.AddDate(0, months, 0) {
		steps = append(steps, t)
	}
	if len(steps) > 0 && !steps[len(steps)-1].Equal(meta.TimeframeEnd) {
		steps = append(steps, meta.TimeframeEnd)
	}
	return steps
}

// runOne executes a single independent Monte Carlo run, writing into
// its own sample slots only.
func (c *compiled) runOne(run int, samples map[string][][]float64) error {
	rngs := map[string]*rand.Rand{}
	rngFor := func(name string) *rand.Rand {
		r, ok := rngs[name]
		if !ok {
			r = stream(c.seed, run, name)
			rngs[name] = r
		}
		return r
	}

	// Phase 1: one scalar per assumption/parameter.
	scalars := Env{}
	for _, name := range c.topo {
		switch d := c.decls[name].(type) {
		case *ast.Assumption:
			base, err := Eval(d.Value, scalars)
			if err != nil {
				return errors.Wrapf(err, "assumption %q", name)
			}
			scalars[name] = sampleValue(d.Uncertainty, base, rngFor(name))
		case *ast.Parameter:
			if ov, ok := c.defaults[name]; ok {
				scalars[name] = ov
				continue
			}
			base, err := Eval(d.Default, scalars)
			if err != nil {
				return errors.Wrapf(err, "parameter %q", name)
			}
			scalars[name] = sampleValue(d.Uncertainty, base, rngFor(name))
		}
	}

	// Phase 2: walk the timeline in causal order. Branch conditions
	// are checked at the start of each step against the previous
	// step's environment; once `when` holds, a single Bernoulli draw
	// at the branch probability decides activation for the rest of
	// the run.
	active := map[string]bool{}
	decided := map[string]bool{}
	prev := scalars
	for si := range c.steps {
		tf := c.stepT[si]
		for _, b := range c.branches {
			if decided[b.Name] || b.When == nil {
				continue
			}
			v, err := Eval(b.When, prev)
			if err != nil {
				continue // names not computed yet; retry next step
			}
			if Truthy(v) {
				decided[b.Name] = true
				if bernoulli(b.Probability, rngFor("branch:"+b.Name)) {
					active[b.Name] = true
				}
			}
		}

		env := make(Env, len(prev))
		for k, v := range scalars {
			env[k] = v
		}
		for _, name := range c.topo {
			switch d := c.decls[name].(type) {
			case *ast.Variable:
				key, vd := c.effective(name, d, active)
				base := evalModel(vd.Model, c.anchorsFor(key, vd, env), tf)
				val := samplePerturbed(vd.Uncertainty, base, rngFor(name))
				env[name] = val
				samples[name][si][run] = val
			case *ast.Impact:
				val, err := Eval(d.Formula, env)
				if err != nil {
					return errors.Wrapf(err, "impact %q", name)
				}
				env[name] = val
				samples[name][si][run] = val
			}
		}
		prev = env
	}
	return nil
}

// effective resolves branch substitution for a variable: the last
// active branch (in declaration order) carrying an override wins.
func (c *compiled) effective(name string, d *ast.Variable, active map[string]bool) (string, *ast.Variable) {
	key, vd := name, d
	for _, b := range c.branches {
		if !active[b.Name] {
			continue
		}
		if ov, ok := c.overrides[b.Name][name]; ok {
			key, vd = b.Name+"/"+name, ov
		}
	}
	return key, vd
}
