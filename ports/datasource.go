// Package ports declares the interfaces the core depends on. Adapters
// implement them; the core never imports an adapter.
package ports

import (
	"context"

	"github.com/Relatronica/sdl/domain/series"
)

// DataSource resolves an external source locator (the `bind` or
// `source` string of a declaration) to an ordered observed series.
// Implementations must honor the context deadline; failures are always
// recovered locally by the caller and never become simulation failures.
type DataSource interface {
	Fetch(ctx context.Context, locator string) ([]series.ObservedPoint, error)
}

// DataSourceFunc adapts a plain function to the DataSource interface.
type DataSourceFunc func(ctx context.Context, locator string) ([]series.ObservedPoint, error)

// Fetch implements DataSource.
func (f DataSourceFunc) Fetch(ctx context.Context, locator string) ([]series.ObservedPoint, error) {
	return f(ctx, locator)
}
