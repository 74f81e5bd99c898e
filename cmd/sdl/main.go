// Command sdl is the scenario toolchain: parse, validate, simulate,
// analyze sensitivity, calibrate against observed data, export results
// and serve the HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Relatronica/sdl/adapters/fallback"
	"github.com/Relatronica/sdl/adapters/httpsource"
	"github.com/Relatronica/sdl/adapters/postgres"
	"github.com/Relatronica/sdl/app"
	"github.com/Relatronica/sdl/calibration"
	"github.com/Relatronica/sdl/internal"
	"github.com/Relatronica/sdl/internal/config"
	"github.com/Relatronica/sdl/ports"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := internal.NewDefaultLogger()

	fb := fallback.NewRegistry()
	if _, statErr := os.Stat(cfg.Data.FallbackDir); statErr == nil {
		if err := fb.LoadDir(cfg.Data.FallbackDir); err != nil {
			return err
		}
	}

	var source ports.DataSource
	var store *postgres.ObservedStore
	if cfg.Database.URL != "" {
		store, err = postgres.Open(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer store.Close()
		source = store
	} else {
		source = httpsource.New()
	}

	calibrator := calibration.NewService(source, fb)
	scenarios := app.NewScenarioService(calibrator)

	root := newRootCmd(&cliApp{cfg: cfg, scenarios: scenarios, store: store, log: log})
	return root.Execute()
}

// cliApp holds the wired services the subcommands run against.
type cliApp struct {
	cfg       *config.Config
	scenarios *app.ScenarioService
	store     *postgres.ObservedStore
	log       *internal.Logger
}

func newRootCmd(a *cliApp) *cobra.Command {
	root := &cobra.Command{
		Use:           "sdl",
		Short:         "Probabilistic scenario modeling toolchain",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newParseCmd(a),
		newValidateCmd(a),
		newSimulateCmd(a),
		newSensitivityCmd(a),
		newCalibrateCmd(a),
		newExportCmd(a),
		newRecordCmd(a),
		newServeCmd(a),
	)

	return root
}
