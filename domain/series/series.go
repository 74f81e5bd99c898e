// Package series holds the time-indexed value shapes shared by the
// simulation engine and the calibration subsystem.
package series

import "time"

// Distribution summarizes the spread of samples at one timestep.
type Distribution struct {
	Mean        float64             `json:"mean"`
	Std         float64             `json:"std"`
	Percentiles map[float64]float64 `json:"percentiles"`
}

// Point is one timestep of an aggregated simulation output.
type Point struct {
	Date time.Time    `json:"date"`
	Dist Distribution `json:"distribution"`
}

// TimeSeries is an ordered sequence of aggregated timesteps.
type TimeSeries []Point

// Final returns the last point, the usual horizon for sensitivity
// swings. ok is false for an empty series.
func (ts TimeSeries) Final() (Point, bool) {
	if len(ts) == 0 {
		return Point{}, false
	}
	return ts[len(ts)-1], true
}

// Median returns the P50 value at index i.
func (ts TimeSeries) Median(i int) float64 {
	return ts[i].Dist.Percentiles[50]
}

// ObservedPoint is one externally observed value used by calibration
// and watch evaluation.
type ObservedPoint struct {
	Date        time.Time `json:"date" yaml:"date"`
	Value       float64   `json:"value" yaml:"value"`
	Provisional bool      `json:"provisional,omitempty" yaml:"provisional,omitempty"`
	Source      string    `json:"source,omitempty" yaml:"source,omitempty"`
}

// Window filters points to the inclusive range [from, to]. Zero bounds
// leave that side open.
func Window(points []ObservedPoint, from, to time.Time) []ObservedPoint {
	var out []ObservedPoint
	for _, p := range points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Latest returns the most recent observed point. ok is false when the
// slice is empty.
func Latest(points []ObservedPoint) (ObservedPoint, bool) {
	if len(points) == 0 {
		return ObservedPoint{}, false
	}
	latest := points[0]
	for _, p := range points[1:] {
		if p.Date.After(latest.Date) {
			latest = p
		}
	}
	return latest, true
}
