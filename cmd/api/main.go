// Command api serves the scenario HTTP API standalone.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/Relatronica/sdl/adapters/api"
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
	if cfg.Database.URL != "" {
		store, err := postgres.Open(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer store.Close()
		source = store
	} else {
		source = httpsource.New()
	}

	scenarios := app.NewScenarioService(calibration.NewService(source, fb))
	srv := api.NewServer(scenarios)

	log.Info("listening on :%s", cfg.Server.Port)
	return http.ListenAndServe(":"+cfg.Server.Port, srv)
}
