package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Relatronica/sdl/adapters/api"
	"github.com/Relatronica/sdl/adapters/excel"
	"github.com/Relatronica/sdl/app"
	"github.com/Relatronica/sdl/calibration"
	"github.com/Relatronica/sdl/domain/diag"
	"github.com/Relatronica/sdl/domain/result"
	"github.com/Relatronica/sdl/domain/series"
	"github.com/Relatronica/sdl/engine"
)

func newParseCmd(a *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse a scenario file and report syntax findings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := analyzeFile(a, args[0])
			printDiagnostics(an.Diagnostics)
			if err != nil {
				return err
			}
			fmt.Printf("parsed scenario %q (%d declarations)\n", an.Scenario.Name, len(an.Scenario.Decls))
			return nil
		},
	}
}

func newValidateCmd(a *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a scenario and print its causal graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := analyzeFile(a, args[0])
			printDiagnostics(an.Diagnostics)
			if err != nil {
				return err
			}
			if an.Graph == nil {
				return fmt.Errorf("validation failed, no causal graph produced")
			}
			fmt.Printf("causal order: ")
			for i, name := range an.Graph.TopologicalOrder {
				if i > 0 {
					fmt.Print(" -> ")
				}
				fmt.Print(name)
			}
			fmt.Println()
			return nil
		},
	}
}

func newSimulateCmd(a *cliApp) *cobra.Command {
	var (
		runs       int
		seed       int64
		asJSON     bool
		calibrated bool
	)

	cmd := &cobra.Command{
		Use:   "simulate <file>",
		Short: "Run the Monte Carlo engine over a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := analyzeFile(a, args[0])
			printDiagnostics(an.Diagnostics)
			if err != nil {
				return err
			}
			opts := a.engineOptions(runs, seed)

			var res *result.SimulationResult
			if calibrated {
				fast, live, err := a.scenarios.SimulateCalibrated(cmd.Context(), an, opts)
				if err != nil {
					return err
				}
				printCalibration(fast.Outcome)
				res = fast.Result
				for upd := range live {
					printCalibration(upd.Outcome)
					res = upd.Result
				}
			} else {
				res, err = a.scenarios.Simulate(cmd.Context(), an, opts)
				if err != nil {
					return err
				}
			}

			if asJSON {
				return printJSON(res)
			}
			printResult(res)
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 0, "Monte Carlo run count (default from scenario or config)")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Base random seed for reproducible output")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the full result as JSON")
	cmd.Flags().BoolVar(&calibrated, "calibrated", false, "Apply Bayesian calibration from observed data first")
	return cmd
}

func newSensitivityCmd(a *cliApp) *cobra.Command {
	var (
		runs   int
		seed   int64
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "sensitivity <file>",
		Short: "Rank interactive parameters by output swing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := analyzeFile(a, args[0])
			printDiagnostics(an.Diagnostics)
			if err != nil {
				return err
			}
			results, err := a.scenarios.Sensitivity(cmd.Context(), an, a.engineOptions(runs, seed))
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(results)
			}
			printSensitivity(results)
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 0, "Monte Carlo run count per pinned simulation")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Base random seed shared across pinned simulations")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit results as JSON")
	return cmd
}

func newCalibrateCmd(a *cliApp) *cobra.Command {
	var (
		runs int
		seed int64
	)

	cmd := &cobra.Command{
		Use:   "calibrate <file>",
		Short: "Update declared priors from observed data and resimulate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := analyzeFile(a, args[0])
			printDiagnostics(an.Diagnostics)
			if err != nil {
				return err
			}
			fast, live, err := a.scenarios.SimulateCalibrated(cmd.Context(), an, a.engineOptions(runs, seed))
			if err != nil {
				return err
			}
			printCalibration(fast.Outcome)
			final := fast
			for upd := range live {
				printCalibration(upd.Outcome)
				final = upd
			}
			printResult(final.Result)
			return nil
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 0, "Monte Carlo run count")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Base random seed")
	return cmd
}

func newExportCmd(a *cliApp) *cobra.Command {
	var (
		out  string
		runs int
		seed int64
	)

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Simulate a scenario and write the result to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			an, err := analyzeFile(a, args[0])
			printDiagnostics(an.Diagnostics)
			if err != nil {
				return err
			}
			res, err := a.scenarios.Simulate(cmd.Context(), an, a.engineOptions(runs, seed))
			if err != nil {
				return err
			}
			if err := excel.Export(res, out); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "scenario.xlsx", "Output workbook path")
	cmd.Flags().IntVar(&runs, "runs", 0, "Monte Carlo run count")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Base random seed")
	return cmd
}

func newRecordCmd(a *cliApp) *cobra.Command {
	var (
		provisional bool
		origin      string
	)

	cmd := &cobra.Command{
		Use:   "record <locator> <date> <value>",
		Short: "Store an observed data point for later calibration",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.store == nil {
				return fmt.Errorf("recording requires SDL_DATABASE_URL to be set")
			}
			date, err := time.Parse("2006-01-02", args[1])
			if err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD: %w", err)
			}
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("value must be numeric: %w", err)
			}
			return a.store.Record(cmd.Context(), args[0], series.ObservedPoint{
				Date:        date,
				Value:       value,
				Provisional: provisional,
				Source:      origin,
			})
		},
	}

	cmd.Flags().BoolVar(&provisional, "provisional", false, "Mark the point as provisional")
	cmd.Flags().StringVar(&origin, "source", "manual", "Origin label for the point")
	return cmd
}

func newServeCmd(a *cliApp) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scenario HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = a.cfg.Server.Port
			}
			srv := api.NewServer(a.scenarios)
			a.log.Info("listening on :%s", port)
			return http.ListenAndServe(":"+port, srv)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (default from config)")
	return cmd
}

func (a *cliApp) engineOptions(runs int, seed int64) engine.Options {
	if runs == 0 {
		runs = a.cfg.Engine.DefaultRuns
	}
	if seed == 0 {
		seed = a.cfg.Engine.Seed
	}
	return engine.Options{Runs: runs, Seed: seed, Workers: a.cfg.Engine.Workers}
}

func analyzeFile(a *cliApp, path string) (*app.Analysis, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return &app.Analysis{}, err
	}
	return a.scenarios.Analyze(string(src))
}

func printDiagnostics(diags []diag.Diagnostic) {
	for _, d := range diags {
		loc := ""
		if d.Span != nil {
			loc = fmt.Sprintf("%d:%d: ", d.Span.Line, d.Span.Column)
		}
		fmt.Fprintf(os.Stderr, "%s%s: %s [%s]\n", loc, d.Severity, d.Message, d.Code)
	}
}

func printResult(res *result.SimulationResult) {
	fmt.Printf("run %s: %d runs in %dms\n", res.RunID, res.Runs, res.ElapsedMs)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OBSERVABLE\tFINAL MEAN\tSTD\tP5\tP50\tP95")
	for _, name := range sortedSeries(res.Variables) {
		printFinalRow(w, name, res.Variables[name])
	}
	for _, name := range sortedSeries(res.Impacts) {
		printFinalRow(w, name, res.Impacts[name])
	}
	w.Flush()
}

func printFinalRow(w *tabwriter.Writer, name string, ts series.TimeSeries) {
	final, ok := ts.Final()
	if !ok {
		return
	}
	d := final.Dist
	fmt.Fprintf(w, "%s\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\n",
		name, d.Mean, d.Std, d.Percentiles[5], d.Percentiles[50], d.Percentiles[95])
}

func printSensitivity(results []result.SensitivityResult) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PARAMETER\tOBSERVABLE\tLOW\tHIGH\tSWING\tSWING%")
	for _, r := range results {
		for _, s := range r.Swings {
			fmt.Fprintf(w, "%s\t%s\t%.4g\t%.4g\t%.4g\t%.2f%%\n",
				r.Parameter, s.Observable, s.LowValue, s.HighValue, s.Swing, s.SwingPct)
		}
	}
	w.Flush()
}

func printCalibration(out *calibration.Outcome) {
	fmt.Fprintf(os.Stderr, "calibration phase %s: %d updates, %d alerts\n",
		out.Phase, len(out.Updates), len(out.Alerts))
	for _, u := range out.Updates {
		fmt.Fprintf(os.Stderr, "  %s (%s): prior %v -> posterior %v (%d samples)\n",
			u.Target, u.Method, u.PriorArgs, u.PostArgs, u.Samples)
	}
	for _, al := range out.Alerts {
		fmt.Fprintf(os.Stderr, "  [%s] %s\n", al.Severity, al.Message)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func sortedSeries(m map[string]series.TimeSeries) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
