package ast

// Clone returns a deep copy of the scenario. Calibration relies on this
// to produce an adjusted tree while the original stays untouched, so
// both can be simulated independently.
func (s *Scenario) Clone() *Scenario {
	if s == nil {
		return nil
	}
	out := &Scenario{Name: s.Name, Meta: s.Meta, Pos: s.Pos}
	out.Meta.Tags = append([]string(nil), s.Meta.Tags...)
	if s.Meta.Hints != nil {
		out.Meta.Hints = make(map[string]string, len(s.Meta.Hints))
		for k, v := range s.Meta.Hints {
			out.Meta.Hints[k] = v
		}
	}
	out.Decls = cloneDecls(s.Decls)
	return out
}

func cloneDecls(decls []Decl) []Decl {
	if decls == nil {
		return nil
	}
	out := make([]Decl, len(decls))
	for i, d := range decls {
		out[i] = cloneDecl(d)
	}
	return out
}

func cloneDecl(d Decl) Decl {
	switch d := d.(type) {
	case *Assumption:
		c := *d
		c.Value = CloneExpr(d.Value)
		c.Uncertainty = d.Uncertainty.clone()
		return &c
	case *Variable:
		c := *d
		c.Series = make([]TimePoint, len(d.Series))
		for i, tp := range d.Series {
			c.Series[i] = TimePoint{Date: tp.Date, Value: CloneExpr(tp.Value), Pos: tp.Pos}
		}
		c.Model = d.Model.clone()
		c.Uncertainty = d.Uncertainty.clone()
		c.DependsOn = append([]Ref(nil), d.DependsOn...)
		return &c
	case *Parameter:
		c := *d
		c.Default = CloneExpr(d.Default)
		c.Min = CloneExpr(d.Min)
		c.Max = CloneExpr(d.Max)
		c.Uncertainty = d.Uncertainty.clone()
		return &c
	case *Impact:
		c := *d
		c.Formula = CloneExpr(d.Formula)
		c.DerivesFrom = append([]Ref(nil), d.DerivesFrom...)
		return &c
	case *Branch:
		c := *d
		c.When = CloneExpr(d.When)
		c.Decls = cloneDecls(d.Decls)
		return &c
	case *Simulate:
		c := *d
		c.Percentiles = append([]float64(nil), d.Percentiles...)
		return &c
	case *Watch:
		c := *d
		c.Rules = make([]WatchRule, len(d.Rules))
		for i, r := range d.Rules {
			c.Rules[i] = WatchRule{Severity: r.Severity, Cond: CloneExpr(r.Cond), Pos: r.Pos}
		}
		return &c
	case *Calibrate:
		c := *d
		return &c
	case *Import:
		c := *d
		return &c
	default:
		return d
	}
}

// CloneExpr deep-copies an expression tree.
func CloneExpr(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case *NumberLit:
		c := *e
		return &c
	case *PercentLit:
		c := *e
		return &c
	case *CurrencyLit:
		c := *e
		return &c
	case *StringLit:
		c := *e
		return &c
	case *BoolLit:
		c := *e
		return &c
	case *Ident:
		c := *e
		return &c
	case *Binary:
		c := *e
		c.Left = CloneExpr(e.Left)
		c.Right = CloneExpr(e.Right)
		return &c
	case *Unary:
		c := *e
		c.X = CloneExpr(e.X)
		return &c
	case *Call:
		c := *e
		c.Args = make([]Expr, len(e.Args))
		for i, a := range e.Args {
			c.Args[i] = CloneExpr(a)
		}
		return &c
	default:
		return e
	}
}

func (e *DistExpr) clone() *DistExpr {
	if e == nil {
		return nil
	}
	c := *e
	c.Args = append([]float64(nil), e.Args...)
	return &c
}

func (e *ModelExpr) clone() *ModelExpr {
	if e == nil {
		return nil
	}
	c := *e
	if e.Params != nil {
		c.Params = make(map[string]float64, len(e.Params))
		for k, v := range e.Params {
			c.Params[k] = v
		}
	}
	return &c
}
