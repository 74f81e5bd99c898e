// Package httpsource fetches observed series over HTTP. Locators that
// are http(s) URLs resolve to a JSON array of observed points; anything
// else is not this adapter's business and errors so the caller can fall
// back.
package httpsource

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/Relatronica/sdl/domain/series"
	"github.com/Relatronica/sdl/internal/errors"
	"github.com/Relatronica/sdl/ports"
)

// Source fetches JSON observed series over HTTP, throttled so a
// scenario with many bound declarations cannot hammer a provider.
type Source struct {
	client  *http.Client
	limiter *rate.Limiter
}

// New creates a source with a sane default client and rate limit.
func New() *Source {
	return &Source{
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
}

// WithClient overrides the HTTP client, used by tests.
func (s *Source) WithClient(c *http.Client) *Source {
	s.client = c
	return s
}

var _ ports.DataSource = (*Source)(nil)

// Fetch implements ports.DataSource.
func (s *Source) Fetch(ctx context.Context, locator string) ([]series.ObservedPoint, error) {
	if !strings.HasPrefix(locator, "http://") && !strings.HasPrefix(locator, "https://") {
		return nil, errors.New(errors.CodeDataSource, "not an HTTP locator: "+locator)
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.DataSourceError(locator, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, errors.DataSourceError(locator, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.DataSourceError(locator, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New(errors.CodeDataSource, locator+" returned "+resp.Status)
	}

	var points []series.ObservedPoint
	if err := json.NewDecoder(resp.Body).Decode(&points); err != nil {
		return nil, errors.DataSourceError(locator, err)
	}
	return points, nil
}
