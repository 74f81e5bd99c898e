// Package result defines the externally consumed outputs of the core:
// simulation results, sensitivity rankings, watch alerts, and
// calibration outcomes. Presentation layers read these and nothing else.
package result

import (
	"github.com/Relatronica/sdl/domain/series"
)

// SimulationResult is the aggregated output of a Monte Carlo run.
type SimulationResult struct {
	RunID     string                       `json:"runId"`
	Runs      int                          `json:"runs"`
	ElapsedMs int64                        `json:"elapsedMs"`
	Variables map[string]series.TimeSeries `json:"variables"`
	Impacts   map[string]series.TimeSeries `json:"impacts"`
}

// Series returns the named observable from either map.
func (r *SimulationResult) Series(name string) (series.TimeSeries, bool) {
	if ts, ok := r.Variables[name]; ok {
		return ts, true
	}
	ts, ok := r.Impacts[name]
	return ts, ok
}

// ObservableSwing is the effect of one parameter sweep on one observable.
type ObservableSwing struct {
	Observable string  `json:"observable"`
	LowValue   float64 `json:"lowValue"`
	HighValue  float64 `json:"highValue"`
	Swing      float64 `json:"swing"`
	SwingPct   float64 `json:"swingPct"`
}

// SensitivityResult ranks one interactive parameter's influence across
// all observables. Results are sorted descending by TotalSwing.
type SensitivityResult struct {
	Parameter  string            `json:"parameter"`
	Swings     []ObservableSwing `json:"swings"`
	TotalSwing float64           `json:"totalSwing"`
}

// AlertSeverity is the level of a watch alert.
type AlertSeverity string

const (
	AlertWarn  AlertSeverity = "warn"
	AlertError AlertSeverity = "error"
)

// WatchAlert is one triggered watch rule.
type WatchAlert struct {
	Target   string        `json:"target"`
	Severity AlertSeverity `json:"severity"`
	Message  string        `json:"message"`
}

// PosteriorUpdate records the before/after of one calibrated declaration.
type PosteriorUpdate struct {
	Target    string    `json:"target"`
	Method    string    `json:"method"`
	Samples   int       `json:"samples"`
	PriorArgs []float64 `json:"priorArgs"`
	PostArgs  []float64 `json:"postArgs"`
}

// CalibrationPhase tells callers which delivery phase produced an outcome.
type CalibrationPhase string

const (
	PhaseFallback CalibrationPhase = "fallback"
	PhaseLive     CalibrationPhase = "live"
)
