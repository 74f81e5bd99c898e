package calibration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Relatronica/sdl/adapters/fallback"
	"github.com/Relatronica/sdl/domain/result"
	"github.com/Relatronica/sdl/domain/series"
	"github.com/Relatronica/sdl/internal/testkit"
)

const boundScenario = `
scenario "bound" {
    timeframe: 2025 -> 2030

    assumption demand {
        value: 100
        uncertainty: normal(100, 20)
        source: "ops"
        bind: "metrics/demand"
    }

    watch demand {
        warn when: actual < assumed * 0.9
    }

    calibrate demand {
        method: bayesian
    }
}`

func fallbackWith(points ...series.ObservedPoint) *fallback.Registry {
	fb := fallback.NewRegistry()
	fb.Register("metrics/demand", points)
	return fb
}

func TestRunFallbackOnlyWithoutLiveSource(t *testing.T) {
	sc := testkit.MustParse(t, boundScenario)
	svc := NewService(nil, fallbackWith(testkit.Observed(2026, 3, 80)))

	fast, ch := svc.Run(context.Background(), sc)

	require.NotNil(t, fast)
	assert.Equal(t, result.PhaseFallback, fast.Phase)
	require.Len(t, fast.Updates, 1)
	assert.Equal(t, "demand", fast.Updates[0].Target)
	require.Len(t, fast.Alerts, 1)
	assert.Equal(t, result.AlertWarn, fast.Alerts[0].Severity)

	// No live source: the channel closes without a second outcome.
	_, open := <-ch
	assert.False(t, open)
}

func TestRunLiveOutcomeSupersedesFallback(t *testing.T) {
	sc := testkit.MustParse(t, boundScenario)
	source := &testkit.MemorySource{Points: map[string][]series.ObservedPoint{
		"metrics/demand": {testkit.Observed(2026, 4, 95)},
	}}
	svc := NewService(source, fallbackWith(testkit.Observed(2026, 3, 80)))

	fast, ch := svc.Run(context.Background(), sc)
	require.Equal(t, result.PhaseFallback, fast.Phase)
	// Fallback observed 80 trips the watch rule.
	assert.Len(t, fast.Alerts, 1)

	live, open := <-ch
	require.True(t, open)
	assert.Equal(t, result.PhaseLive, live.Phase)
	// Live observed 95 is inside tolerance.
	assert.Empty(t, live.Alerts)
	require.Len(t, live.Updates, 1)
	assert.NotEqual(t, fast.Updates[0].PostArgs, live.Updates[0].PostArgs)

	_, open = <-ch
	assert.False(t, open)
}

func TestRunLiveFetchFailureFallsBack(t *testing.T) {
	sc := testkit.MustParse(t, boundScenario)
	source := &testkit.MemorySource{Err: errors.New("connection refused")}
	svc := NewService(source, fallbackWith(testkit.Observed(2026, 3, 80))).WithTimeout(time.Second)

	fast, ch := svc.Run(context.Background(), sc)
	live, open := <-ch
	require.True(t, open)

	// The live phase degrades to fallback data instead of failing.
	assert.Equal(t, result.PhaseLive, live.Phase)
	assert.Equal(t, fast.Updates, live.Updates)
	assert.Greater(t, source.Calls, 0)
}

func TestRunSkipsTargetsWithoutData(t *testing.T) {
	sc := testkit.MustParse(t, boundScenario)
	svc := NewService(nil, fallback.NewRegistry())

	fast, _ := svc.Run(context.Background(), sc)
	assert.Empty(t, fast.Updates)
	assert.Empty(t, fast.Alerts)
}

func TestRunNeverMutatesTheInput(t *testing.T) {
	sc := testkit.MustParse(t, boundScenario)
	svc := NewService(nil, fallbackWith(testkit.Observed(2026, 3, 80)))

	fast, _ := svc.Run(context.Background(), sc)
	require.Len(t, fast.Updates, 1)

	// The input keeps its declared prior; only the clone changes.
	assert.Equal(t, []float64{100, 20}, targetDist(sc).Args)
	assert.Equal(t, fast.Updates[0].PostArgs, targetDist(fast.CalibratedAst).Args)
}
