package calibration

import (
	"fmt"

	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/result"
	"github.com/Relatronica/sdl/domain/series"
	"github.com/Relatronica/sdl/engine"
)

// evalWatch evaluates one watch block against the latest observed
// value. Rules see two names: `actual` (latest observation) and
// `assumed` (the declared value of the target). One alert is emitted
// per satisfied rule.
func evalWatch(w *ast.Watch, target ast.Decl, observed []series.ObservedPoint) []result.WatchAlert {
	latest, ok := series.Latest(observed)
	if !ok {
		return nil
	}
	assumed, ok := declaredValue(target)
	if !ok {
		return nil
	}

	env := engine.Env{"actual": latest.Value, "assumed": assumed}
	var alerts []result.WatchAlert
	for _, rule := range w.Rules {
		v, err := engine.Eval(rule.Cond, env)
		if err != nil || !engine.Truthy(v) {
			continue
		}
		sev := result.AlertWarn
		if rule.Severity == "error" {
			sev = result.AlertError
		}
		alerts = append(alerts, result.WatchAlert{
			Target:   w.Target,
			Severity: sev,
			Message: fmt.Sprintf("%s: observed %g vs assumed %g (%s rule)",
				w.Target, latest.Value, assumed, rule.Severity),
		})
	}
	return alerts
}

// declaredValue extracts the point value a watch compares against.
func declaredValue(d ast.Decl) (float64, bool) {
	switch d := d.(type) {
	case *ast.Assumption:
		return engine.ConstValue(d.Value)
	case *ast.Parameter:
		return engine.ConstValue(d.Default)
	case *ast.Variable:
		// The most recent anchor is the author's current belief.
		if len(d.Series) == 0 {
			return 0, false
		}
		return engine.ConstValue(d.Series[len(d.Series)-1].Value)
	}
	return 0, false
}
