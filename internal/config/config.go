// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/Relatronica/sdl/internal/errors"
)

// Config is the complete application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Data     DataConfig
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds the optional observed-series store settings.
// An empty URL disables the Postgres data source.
type DatabaseConfig struct {
	URL string
}

// EngineConfig holds simulation defaults.
type EngineConfig struct {
	DefaultRuns int
	Workers     int
	Seed        int64
}

// DataConfig holds data-related paths.
type DataConfig struct {
	FallbackDir string
}

// Load reads configuration from the environment. A .env file in the
// working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server:   ServerConfig{Port: getEnv("SDL_PORT", "8080")},
		Database: DatabaseConfig{URL: os.Getenv("SDL_DATABASE_URL")},
		Data:     DataConfig{FallbackDir: getEnv("SDL_FALLBACK_DIR", "datasets")},
	}

	runs, err := getEnvInt("SDL_DEFAULT_RUNS", 2000)
	if err != nil {
		return nil, err
	}
	workers, err := getEnvInt("SDL_WORKERS", 0)
	if err != nil {
		return nil, err
	}
	seed, err := getEnvInt("SDL_SEED", 0)
	if err != nil {
		return nil, err
	}
	cfg.Engine = EngineConfig{DefaultRuns: runs, Workers: workers, Seed: int64(seed)}

	if cfg.Engine.DefaultRuns <= 0 {
		return nil, errors.ConfigInvalid("SDL_DEFAULT_RUNS must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "%s must be an integer", key)
	}
	return n, nil
}
