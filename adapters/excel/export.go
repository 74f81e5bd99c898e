// Package excel exports simulation results as fan tables: one sheet per
// observable, one row per timestep, percentile bands as columns.
package excel

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/Relatronica/sdl/domain/result"
	"github.com/Relatronica/sdl/domain/series"
	"github.com/Relatronica/sdl/internal/errors"
)

// Export writes the result to an xlsx workbook at path.
func Export(res *result.SimulationResult, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	wrote := false
	for _, group := range []map[string]series.TimeSeries{res.Variables, res.Impacts} {
		names := make([]string, 0, len(group))
		for name := range group {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := writeSheet(f, name, group[name]); err != nil {
				return err
			}
			wrote = true
		}
	}
	if !wrote {
		return errors.New(errors.CodeExport, "result has no observables to export")
	}
	// Drop the default sheet excelize creates.
	f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "writing workbook %s", path)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, ts series.TimeSeries) error {
	if _, err := f.NewSheet(name); err != nil {
		return errors.Wrapf(err, "creating sheet %s", name)
	}

	percentiles := percentileColumns(ts)
	header := []interface{}{"Date", "Mean", "Std"}
	for _, p := range percentiles {
		header = append(header, fmt.Sprintf("P%g", p))
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return errors.Wrapf(err, "writing header for %s", name)
	}

	for i, point := range ts {
		row := []interface{}{point.Date.Format("2006-01-02"), point.Dist.Mean, point.Dist.Std}
		for _, p := range percentiles {
			row = append(row, point.Dist.Percentiles[p])
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(name, cell, &row); err != nil {
			return errors.Wrapf(err, "writing row %d for %s", i+2, name)
		}
	}
	return nil
}

func percentileColumns(ts series.TimeSeries) []float64 {
	if len(ts) == 0 {
		return nil
	}
	out := make([]float64, 0, len(ts[0].Dist.Percentiles))
	for p := range ts[0].Dist.Percentiles {
		out = append(out, p)
	}
	sort.Float64s(out)
	return out
}
