package ast

import "github.com/Relatronica/sdl/domain/diag"

// Expr is an expression node. Evaluation happens in the engine against
// a per-run scalar environment; the AST carries no values of its own.
type Expr interface {
	Node
	exprNode()
}

// NumberLit is a plain numeric literal.
type NumberLit struct {
	Value float64
	Pos   diag.Span
}

func (e *NumberLit) Span() diag.Span { return e.Pos }
func (e *NumberLit) exprNode()       {}

// PercentLit is a percentage literal, e.g. 12.5%. Value holds the
// number as written; evaluation divides by 100.
type PercentLit struct {
	Value float64
	Pos   diag.Span
}

func (e *PercentLit) Span() diag.Span { return e.Pos }
func (e *PercentLit) exprNode()       {}

// CurrencyLit is a monetary literal such as 100M USD. Magnitude is one
// of "", K, M, B, T and scales Value on evaluation.
type CurrencyLit struct {
	Value     float64
	Magnitude string
	Code      string
	Pos       diag.Span
}

func (e *CurrencyLit) Span() diag.Span { return e.Pos }
func (e *CurrencyLit) exprNode()       {}

// StringLit is a quoted string literal.
type StringLit struct {
	Value string
	Pos   diag.Span
}

func (e *StringLit) Span() diag.Span { return e.Pos }
func (e *StringLit) exprNode()       {}

// BoolLit is true or false.
type BoolLit struct {
	Value bool
	Pos   diag.Span
}

func (e *BoolLit) Span() diag.Span { return e.Pos }
func (e *BoolLit) exprNode()       {}

// Ident references a declared name (or a watch-rule builtin).
type Ident struct {
	Name string
	Pos  diag.Span
}

func (e *Ident) Span() diag.Span { return e.Pos }
func (e *Ident) exprNode()       {}

// Binary is a two-operand operation: + - * / < <= > >= == != and or.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
	Pos   diag.Span
}

func (e *Binary) Span() diag.Span { return e.Pos }
func (e *Binary) exprNode()       {}

// Unary is a one-operand operation: - or not.
type Unary struct {
	Op  string
	X   Expr
	Pos diag.Span
}

func (e *Unary) Span() diag.Span { return e.Pos }
func (e *Unary) exprNode()       {}

// Call is a function invocation. Distributions and interpolation models
// use the same syntax but are lifted into DistExpr/ModelExpr at parse
// time; calls surviving in formulas are the builtin set (min, max, ...).
type Call struct {
	Name string
	Args []Expr
	Pos  diag.Span
}

func (e *Call) Span() diag.Span { return e.Pos }
func (e *Call) exprNode()       {}
