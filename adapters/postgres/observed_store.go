// Package postgres implements the observed-series data source against
// a Postgres store, for deployments that record external observations
// centrally instead of fetching them per calibration pass.
package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Relatronica/sdl/domain/series"
	"github.com/Relatronica/sdl/internal/errors"
	"github.com/Relatronica/sdl/ports"
)

// Schema for the observed_points table:
//
//	CREATE TABLE observed_points (
//	    locator     TEXT        NOT NULL,
//	    observed_at DATE        NOT NULL,
//	    value       DOUBLE PRECISION NOT NULL,
//	    provisional BOOLEAN     NOT NULL DEFAULT FALSE,
//	    source      TEXT        NOT NULL DEFAULT '',
//	    PRIMARY KEY (locator, observed_at)
//	);

// ObservedStore reads and records observed series keyed by locator.
type ObservedStore struct {
	db *sqlx.DB
}

// NewObservedStore creates a store over an open connection.
func NewObservedStore(db *sqlx.DB) *ObservedStore {
	return &ObservedStore{db: db}
}

// Open connects to Postgres and returns a store.
func Open(url string) (*ObservedStore, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to observed-series store")
	}
	return &ObservedStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *ObservedStore) Close() error { return s.db.Close() }

var _ ports.DataSource = (*ObservedStore)(nil)

// Fetch returns the ordered series recorded under locator.
func (s *ObservedStore) Fetch(ctx context.Context, locator string) ([]series.ObservedPoint, error) {
	query := `SELECT observed_at, value, provisional, source
		FROM observed_points WHERE locator = $1 ORDER BY observed_at`
	rows, err := s.db.QueryxContext(ctx, query, locator)
	if err != nil {
		return nil, errors.DataSourceError(locator, err)
	}
	defer rows.Close()

	var points []series.ObservedPoint
	for rows.Next() {
		var p series.ObservedPoint
		if err := rows.Scan(&p.Date, &p.Value, &p.Provisional, &p.Source); err != nil {
			return nil, errors.DataSourceError(locator, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.DataSourceError(locator, err)
	}
	if len(points) == 0 {
		return nil, errors.New(errors.CodeDataSource, "no observations for "+locator)
	}
	return points, nil
}

// Record upserts one observation.
func (s *ObservedStore) Record(ctx context.Context, locator string, p series.ObservedPoint) error {
	query := `INSERT INTO observed_points (locator, observed_at, value, provisional, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (locator, observed_at)
		DO UPDATE SET value = EXCLUDED.value, provisional = EXCLUDED.provisional, source = EXCLUDED.source`
	_, err := s.db.ExecContext(ctx, query, locator, p.Date, p.Value, p.Provisional, p.Source)
	if err != nil {
		return errors.Wrapf(err, "recording observation for %q", locator)
	}
	return nil
}
