// Package app wires the core pipeline (parse, validate, simulate,
// calibrate, sensitivity) into services the CLI and HTTP surfaces call.
package app

import (
	"context"

	"github.com/Relatronica/sdl/calibration"
	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/diag"
	"github.com/Relatronica/sdl/domain/graph"
	"github.com/Relatronica/sdl/domain/result"
	"github.com/Relatronica/sdl/engine"
	"github.com/Relatronica/sdl/engine/sensitivity"
	"github.com/Relatronica/sdl/internal"
	"github.com/Relatronica/sdl/internal/errors"
	"github.com/Relatronica/sdl/parser"
	"github.com/Relatronica/sdl/validator"
)

// Analysis is a parsed and validated scenario, ready for simulation
// when Simulatable reports true.
type Analysis struct {
	Scenario    *ast.Scenario
	Diagnostics []diag.Diagnostic
	Graph       *graph.CausalGraph
}

// Simulatable reports whether the scenario can be handed to the engine:
// a non-nil graph and no error-severity findings.
func (a *Analysis) Simulatable() bool {
	return a.Scenario != nil && a.Graph != nil && !diag.HasErrors(a.Diagnostics)
}

// ScenarioService orchestrates the pipeline.
type ScenarioService struct {
	calibrator *calibration.Service
	log        *internal.Logger
}

// NewScenarioService creates the service. calibrator may be nil when
// no calibration is wanted.
func NewScenarioService(calibrator *calibration.Service) *ScenarioService {
	return &ScenarioService{calibrator: calibrator, log: internal.DefaultLogger}
}

// Analyze parses and validates source. Parse and validation findings
// are data, not errors: only a structurally unparseable source errors.
func (s *ScenarioService) Analyze(source string) (*Analysis, error) {
	sc, diags := parser.Parse(source)
	if sc == nil {
		return &Analysis{Diagnostics: diags},
			errors.New(errors.CodeParseFailed, "source is structurally invalid")
	}
	vdiags, g := validator.Validate(sc)
	diags = append(diags, vdiags...)
	return &Analysis{Scenario: sc, Diagnostics: diags, Graph: g}, nil
}

// Simulate runs the Monte Carlo engine over a validated analysis.
func (s *ScenarioService) Simulate(ctx context.Context, a *Analysis, opts engine.Options) (*result.SimulationResult, error) {
	if !a.Simulatable() {
		return nil, errors.Precondition("scenario has unresolved semantic errors")
	}
	res, err := engine.Simulate(ctx, a.Scenario, a.Graph, opts)
	if err != nil {
		return nil, err
	}
	s.log.Info("simulated %q: %d runs in %dms", a.Scenario.Name, res.Runs, res.ElapsedMs)
	return res, nil
}

// Sensitivity ranks the scenario's interactive parameters.
func (s *ScenarioService) Sensitivity(ctx context.Context, a *Analysis, opts engine.Options) ([]result.SensitivityResult, error) {
	if !a.Simulatable() {
		return nil, errors.Precondition("scenario has unresolved semantic errors")
	}
	params := sensitivity.ParametersFrom(a.Scenario)
	return sensitivity.Analyze(ctx, a.Scenario, a.Graph, params, sensitivity.Options{Engine: opts})
}

// CalibratedRun couples a calibration outcome with the simulation of
// its calibrated scenario.
type CalibratedRun struct {
	Outcome *calibration.Outcome
	Result  *result.SimulationResult
}

// SimulateCalibrated runs calibration in two phases and simulates each
// calibrated scenario. The first run returns synchronously from
// fallback data; when live data resolves, a superseding run arrives on
// the channel (closed after delivery). The original analysis is never
// mutated.
func (s *ScenarioService) SimulateCalibrated(ctx context.Context, a *Analysis, opts engine.Options) (*CalibratedRun, <-chan *CalibratedRun, error) {
	if !a.Simulatable() {
		return nil, nil, errors.Precondition("scenario has unresolved semantic errors")
	}
	if s.calibrator == nil {
		return nil, nil, errors.Precondition("no calibration service configured")
	}

	fast, liveOutcomes := s.calibrator.Run(ctx, a.Scenario)
	fastRun, err := s.runOutcome(ctx, a, fast, opts)
	if err != nil {
		return nil, nil, err
	}

	runs := make(chan *CalibratedRun, 1)
	go func() {
		defer close(runs)
		for outcome := range liveOutcomes {
			run, err := s.runOutcome(ctx, a, outcome, opts)
			if err != nil {
				s.log.Warn("live calibrated simulation failed: %v", err)
				continue
			}
			select {
			case runs <- run:
			case <-ctx.Done():
				return
			}
		}
	}()
	return fastRun, runs, nil
}

// runOutcome validates and simulates one calibrated scenario copy. The
// copy reuses the original's graph: calibration only touches
// distribution parameters, never the dependency structure.
func (s *ScenarioService) runOutcome(ctx context.Context, a *Analysis, outcome *calibration.Outcome, opts engine.Options) (*CalibratedRun, error) {
	res, err := engine.Simulate(ctx, outcome.CalibratedAst, a.Graph, opts)
	if err != nil {
		return nil, err
	}
	return &CalibratedRun{Outcome: outcome, Result: res}, nil
}
