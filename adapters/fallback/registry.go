// Package fallback holds statically bundled observed datasets matched
// against source locators by pattern. The calibration subsystem reaches
// for it whenever a live fetch fails, and exclusively during the fast
// first delivery phase.
package fallback

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/Relatronica/sdl/domain/series"
	"github.com/Relatronica/sdl/internal/errors"
)

// Registry maps locator patterns to bundled observed series.
type Registry struct {
	entries []entry
}

type entry struct {
	pattern string
	points  []series.ObservedPoint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a dataset under a locator pattern. Patterns use
// path.Match syntax ('*' wildcards); a pattern without wildcards
// matches exactly. Registration order breaks ties: first match wins.
func (r *Registry) Register(pattern string, points []series.ObservedPoint) {
	sorted := append([]series.ObservedPoint(nil), points...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })
	r.entries = append(r.entries, entry{pattern: pattern, points: sorted})
}

// Resolve finds the first dataset whose pattern matches the locator.
func (r *Registry) Resolve(locator string) ([]series.ObservedPoint, bool) {
	for _, e := range r.entries {
		if matched, err := path.Match(e.pattern, locator); err == nil && matched {
			return e.points, true
		}
		if !strings.ContainsAny(e.pattern, "*?[") && e.pattern == locator {
			return e.points, true
		}
	}
	return nil, false
}

// fileDataset is the YAML shape of one bundled dataset file.
type fileDataset struct {
	Datasets []struct {
		Pattern string `yaml:"pattern"`
		Points  []struct {
			Date        string  `yaml:"date"`
			Value       float64 `yaml:"value"`
			Provisional bool    `yaml:"provisional"`
			Source      string  `yaml:"source"`
		} `yaml:"points"`
	} `yaml:"datasets"`
}

// LoadDir registers every *.yaml dataset file found in dir.
func (r *Registry) LoadDir(dir string) error {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return errors.Wrap(err, "listing fallback datasets")
	}
	sort.Strings(paths)
	for _, p := range paths {
		if err := r.LoadFile(p); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile registers the datasets in one YAML file.
func (r *Registry) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading fallback dataset %s", path)
	}
	var file fileDataset
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return errors.Wrapf(err, "parsing fallback dataset %s", path)
	}
	for _, ds := range file.Datasets {
		points := make([]series.ObservedPoint, 0, len(ds.Points))
		for _, p := range ds.Points {
			date, err := parseDate(p.Date)
			if err != nil {
				return errors.Wrapf(err, "dataset %s pattern %s", path, ds.Pattern)
			}
			points = append(points, series.ObservedPoint{
				Date:        date,
				Value:       p.Value,
				Provisional: p.Provisional,
				Source:      p.Source,
			})
		}
		r.Register(ds.Pattern, points)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, errors.New(errors.CodeDataSource, "unrecognized date "+s)
}
