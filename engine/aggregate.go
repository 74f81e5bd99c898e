package engine

import (
	"github.com/montanaflynn/stats"

	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/series"
)

// aggregate reduces per-run samples into percentile bands. Called once,
// after every run has completed.
func (c *compiled) aggregate(samples map[string][][]float64) (map[string]series.TimeSeries, map[string]series.TimeSeries) {
	variables := map[string]series.TimeSeries{}
	impacts := map[string]series.TimeSeries{}
	for _, name := range c.observables {
		ts := make(series.TimeSeries, len(c.steps))
		for si, date := range c.steps {
			ts[si] = series.Point{Date: date, Dist: summarize(samples[name][si], c.percentiles)}
		}
		if _, ok := c.decls[name].(*ast.Impact); ok {
			impacts[name] = ts
		} else {
			variables[name] = ts
		}
	}
	return variables, impacts
}

// summarize computes mean, std and the requested percentiles for one
// timestep's samples.
func summarize(data []float64, percentiles []float64) series.Distribution {
	d := series.Distribution{Percentiles: make(map[float64]float64, len(percentiles))}
	if len(data) == 0 {
		return d
	}
	d.Mean, _ = stats.Mean(data)
	d.Std, _ = stats.StandardDeviation(data)
	for _, p := range percentiles {
		v, err := stats.Percentile(data, p)
		if err != nil {
			// Degenerate percentiles (p=0 or single sample) fall back
			// to the sample bounds.
			v, _ = stats.Min(data)
			if p > 50 {
				v, _ = stats.Max(data)
			}
		}
		d.Percentiles[p] = v
	}
	return d
}
