package engine

import (
	"fmt"
	"math"

	"github.com/Relatronica/sdl/domain/ast"
)

// Env is the per-run scalar environment: declared name -> current value.
type Env map[string]float64

// Eval evaluates an expression against env. Booleans are represented
// as 1 and 0; comparison and logic operators produce them and `when`
// conditions consume them via Truthy.
func Eval(e ast.Expr, env Env) (float64, error) {
	switch e := e.(type) {
	case *ast.NumberLit:
		return e.Value, nil
	case *ast.PercentLit:
		return e.Value / 100, nil
	case *ast.CurrencyLit:
		return e.Value * magnitude(e.Magnitude), nil
	case *ast.BoolLit:
		if e.Value {
			return 1, nil
		}
		return 0, nil
	case *ast.StringLit:
		return 0, fmt.Errorf("string %q has no numeric value", e.Value)
	case *ast.Ident:
		v, ok := env[e.Name]
		if !ok {
			return 0, fmt.Errorf("undefined name %q", e.Name)
		}
		return v, nil
	case *ast.Unary:
		x, err := Eval(e.X, env)
		if err != nil {
			return 0, err
		}
		switch e.Op {
		case "-":
			return -x, nil
		case "not":
			if x != 0 {
				return 0, nil
			}
			return 1, nil
		}
		return 0, fmt.Errorf("unknown unary operator %q", e.Op)
	case *ast.Binary:
		return evalBinary(e, env)
	case *ast.Call:
		return evalCall(e, env)
	case nil:
		return 0, fmt.Errorf("empty expression")
	}
	return 0, fmt.Errorf("unsupported expression %T", e)
}

func evalBinary(e *ast.Binary, env Env) (float64, error) {
	l, err := Eval(e.Left, env)
	if err != nil {
		return 0, err
	}
	// Short-circuit logic operators.
	switch e.Op {
	case "and":
		if l == 0 {
			return 0, nil
		}
		r, err := Eval(e.Right, env)
		if err != nil {
			return 0, err
		}
		return boolVal(r != 0), nil
	case "or":
		if l != 0 {
			return 1, nil
		}
		r, err := Eval(e.Right, env)
		if err != nil {
			return 0, err
		}
		return boolVal(r != 0), nil
	}
	r, err := Eval(e.Right, env)
	if err != nil {
		return 0, err
	}
	switch e.Op {
	case "+":
		return l + r, nil
	case "-":
		return l - r, nil
	case "*":
		return l * r, nil
	case "/":
		if r == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		return l / r, nil
	case "<":
		return boolVal(l < r), nil
	case "<=":
		return boolVal(l <= r), nil
	case ">":
		return boolVal(l > r), nil
	case ">=":
		return boolVal(l >= r), nil
	case "==":
		return boolVal(l == r), nil
	case "!=":
		return boolVal(l != r), nil
	}
	return 0, fmt.Errorf("unknown operator %q", e.Op)
}

// evalCall handles the fixed builtin set usable inside formulas.
func evalCall(e *ast.Call, env Env) (float64, error) {
	args := make([]float64, len(e.Args))
	for i, a := range e.Args {
		v, err := Eval(a, env)
		if err != nil {
			return 0, err
		}
		args[i] = v
	}
	arity := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s wants %d arguments, got %d", e.Name, n, len(args))
		}
		return nil
	}
	switch e.Name {
	case "min":
		if len(args) == 0 {
			return 0, fmt.Errorf("min wants at least one argument")
		}
		out := args[0]
		for _, v := range args[1:] {
			out = math.Min(out, v)
		}
		return out, nil
	case "max":
		if len(args) == 0 {
			return 0, fmt.Errorf("max wants at least one argument")
		}
		out := args[0]
		for _, v := range args[1:] {
			out = math.Max(out, v)
		}
		return out, nil
	case "abs":
		if err := arity(1); err != nil {
			return 0, err
		}
		return math.Abs(args[0]), nil
	case "clamp":
		if err := arity(3); err != nil {
			return 0, err
		}
		return math.Min(math.Max(args[0], args[1]), args[2]), nil
	case "round":
		if err := arity(1); err != nil {
			return 0, err
		}
		return math.Round(args[0]), nil
	case "sqrt":
		if err := arity(1); err != nil {
			return 0, err
		}
		if args[0] < 0 {
			return 0, fmt.Errorf("sqrt of negative value %g", args[0])
		}
		return math.Sqrt(args[0]), nil
	}
	return 0, fmt.Errorf("unknown function %q", e.Name)
}

// Truthy converts an evaluated condition to a bool.
func Truthy(v float64) bool { return v != 0 }

func boolVal(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func magnitude(mag string) float64 {
	switch mag {
	case "K":
		return 1e3
	case "M":
		return 1e6
	case "B":
		return 1e9
	case "T":
		return 1e12
	}
	return 1
}

// ConstValue evaluates e with an empty environment, reporting whether
// it is a compile-time constant. Used to precompute anchor values.
func ConstValue(e ast.Expr) (float64, bool) {
	v, err := Eval(e, Env{})
	if err != nil {
		return 0, false
	}
	return v, true
}
