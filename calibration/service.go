// Package calibration reconciles declared assumptions against
// externally observed data: Bayesian updates for calibrate blocks and
// threshold alerts for watch blocks. It never mutates the input AST;
// the calibrated scenario is a fresh copy the caller may re-simulate
// alongside the original.
//
// Delivery is two-phase. Run returns a fallback-only outcome
// synchronously, so the fast simulation path never stalls on I/O; a
// second outcome built from live data arrives on the returned channel
// once fetches resolve, and supersedes the first. Fetch failures fall
// back to bundled datasets, and with no matching dataset the target is
// skipped silently; a DataSourceError never becomes a simulation
// failure.
package calibration

import (
	"context"
	"time"

	"github.com/Relatronica/sdl/adapters/fallback"
	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/result"
	"github.com/Relatronica/sdl/domain/series"
	"github.com/Relatronica/sdl/internal"
	"github.com/Relatronica/sdl/ports"
)

// DefaultFetchTimeout bounds each live fetch.
const DefaultFetchTimeout = 10 * time.Second

// Outcome is the product of one calibration pass.
type Outcome struct {
	Phase         result.CalibrationPhase
	CalibratedAst *ast.Scenario
	Updates       []result.PosteriorUpdate
	Alerts        []result.WatchAlert
}

// Service drives calibration and watch evaluation.
type Service struct {
	source   ports.DataSource // live source, may be nil
	fallback *fallback.Registry
	timeout  time.Duration
	log      *internal.Logger
}

// NewService creates a calibration service. source may be nil, in which
// case only the fallback phase is delivered.
func NewService(source ports.DataSource, fb *fallback.Registry) *Service {
	if fb == nil {
		fb = fallback.NewRegistry()
	}
	return &Service{
		source:   source,
		fallback: fb,
		timeout:  DefaultFetchTimeout,
		log:      internal.DefaultLogger,
	}
}

// WithTimeout overrides the per-fetch timeout.
func (s *Service) WithTimeout(d time.Duration) *Service {
	s.timeout = d
	return s
}

// Run performs the two delivery phases. The first outcome is computed
// synchronously from fallback data only. When a live source is
// configured, a superseding outcome arrives on the channel once live
// fetches resolve; the channel is closed either way. Repeated calls
// over the same observed window produce identical outcomes.
func (s *Service) Run(ctx context.Context, sc *ast.Scenario) (*Outcome, <-chan *Outcome) {
	ch := make(chan *Outcome, 1)
	fast := s.apply(sc, result.PhaseFallback, func(locator string) ([]series.ObservedPoint, bool) {
		return s.fallback.Resolve(locator)
	})
	if s.source == nil {
		close(ch)
		return fast, ch
	}

	go func() {
		defer close(ch)
		live := s.apply(sc, result.PhaseLive, func(locator string) ([]series.ObservedPoint, bool) {
			return s.fetchLive(ctx, locator)
		})
		select {
		case ch <- live:
		case <-ctx.Done():
		}
	}()
	return fast, ch
}

// fetchLive tries the live source with a bounded timeout and falls back
// to the bundled datasets. A miss on both sides skips the target.
func (s *Service) fetchLive(ctx context.Context, locator string) ([]series.ObservedPoint, bool) {
	fctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	points, err := s.source.Fetch(fctx, locator)
	if err == nil && len(points) > 0 {
		return points, true
	}
	if err != nil {
		s.log.Warn("live fetch for %q failed, using fallback: %v", locator, err)
	}
	return s.fallback.Resolve(locator)
}

// apply runs every calibrate and watch block through one fetch
// strategy. It always starts from the original scenario, so repeated
// invocations cannot accumulate drift.
func (s *Service) apply(sc *ast.Scenario, phase result.CalibrationPhase, fetch func(string) ([]series.ObservedPoint, bool)) *Outcome {
	out := &Outcome{Phase: phase, CalibratedAst: sc.Clone()}
	for _, d := range sc.Decls {
		switch d := d.(type) {
		case *ast.Calibrate:
			locator := s.locatorFor(sc, d.Target, d.Source)
			if locator == "" {
				continue
			}
			points, ok := fetch(locator)
			if !ok {
				continue
			}
			if up, ok := applyCalibration(out.CalibratedAst, d, points); ok {
				out.Updates = append(out.Updates, up)
			}
		case *ast.Watch:
			locator := s.locatorFor(sc, d.Target, "")
			if locator == "" {
				continue
			}
			points, ok := fetch(locator)
			if !ok {
				continue
			}
			target := findDecl(sc, d.Target)
			if target == nil {
				continue
			}
			out.Alerts = append(out.Alerts, evalWatch(d, target, points)...)
		}
	}
	return out
}

// locatorFor resolves the source locator for a target: an explicit
// calibrate source wins, otherwise the target's own bind.
func (s *Service) locatorFor(sc *ast.Scenario, target, explicit string) string {
	if explicit != "" {
		return explicit
	}
	switch d := findDecl(sc, target).(type) {
	case *ast.Assumption:
		return d.Bind
	case *ast.Variable:
		return d.Bind
	}
	return ""
}
