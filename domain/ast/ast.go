// Package ast defines the immutable syntax tree produced by the parser.
// Declarations and expressions are tagged unions: small structs behind
// the Decl and Expr interfaces, matched exhaustively by the validator
// and the simulation engine. The tree itself is acyclic; the logical
// dependency graph over declaration names lives in domain/graph.
package ast

import (
	"time"

	"github.com/Relatronica/sdl/domain/diag"
)

// Node is anything with a source position.
type Node interface {
	Span() diag.Span
}

// Decl is a declaration inside a scenario block.
type Decl interface {
	Node
	// DeclName returns the graph node identity for this declaration.
	// Simulate blocks have no name and return "".
	DeclName() string
	declNode()
}

// Scenario is the root of a parsed source file.
type Scenario struct {
	Name  string
	Meta  Metadata
	Decls []Decl
	Pos   diag.Span
}

func (s *Scenario) Span() diag.Span { return s.Pos }

// Metadata holds the scenario-level key:value pairs.
type Metadata struct {
	TimeframeStart time.Time
	TimeframeEnd   time.Time
	HasTimeframe   bool
	Resolution     string // yearly, quarterly, monthly
	Confidence     float64
	HasConfidence  bool
	Author         string
	Version        string
	Description    string
	Tags           []string
	Hints          map[string]string // presentation hints, opaque to the core
}

// TimePoint is one declared anchor in a variable's timeseries.
type TimePoint struct {
	Date  time.Time
	Value Expr
	Pos   diag.Span
}

// Assumption declares a named scalar belief with optional uncertainty.
type Assumption struct {
	Name        string
	Value       Expr
	Uncertainty *DistExpr
	Source      string
	Bind        string // external source locator, empty when unbound
	Pos         diag.Span
}

func (d *Assumption) Span() diag.Span  { return d.Pos }
func (d *Assumption) DeclName() string { return d.Name }
func (d *Assumption) declNode()        {}

// Variable declares a time-varying quantity interpolated between anchors.
type Variable struct {
	Name        string
	Unit        string
	Series      []TimePoint
	Model       *ModelExpr
	Uncertainty *DistExpr
	DependsOn   []Ref
	Bind        string
	Pos         diag.Span
}

func (d *Variable) Span() diag.Span  { return d.Pos }
func (d *Variable) DeclName() string { return d.Name }
func (d *Variable) declNode()        {}

// Parameter declares a tunable input, optionally interactive with a range.
type Parameter struct {
	Name        string
	Default     Expr
	Min         Expr
	Max         Expr
	Interactive bool
	Uncertainty *DistExpr
	Pos         diag.Span
}

func (d *Parameter) Span() diag.Span  { return d.Pos }
func (d *Parameter) DeclName() string { return d.Name }
func (d *Parameter) declNode()        {}

// Impact declares a derived quantity computed from a formula each timestep.
type Impact struct {
	Name        string
	Unit        string
	Formula     Expr
	DerivesFrom []Ref
	Pos         diag.Span
}

func (d *Impact) Span() diag.Span  { return d.Pos }
func (d *Impact) DeclName() string { return d.Name }
func (d *Impact) declNode()        {}

// Branch declares a conditional, probability-gated substitution of
// nested declarations during a simulation run.
type Branch struct {
	Name        string
	When        Expr
	Probability float64
	Decls       []Decl
	Pos         diag.Span
}

func (d *Branch) Span() diag.Span  { return d.Pos }
func (d *Branch) DeclName() string { return d.Name }
func (d *Branch) declNode()        {}

// Simulate configures the Monte Carlo engine. At most one per scenario.
type Simulate struct {
	Runs        int
	Percentiles []float64
	Convergence float64
	HasRuns     bool
	Pos         diag.Span
}

func (d *Simulate) Span() diag.Span  { return d.Pos }
func (d *Simulate) DeclName() string { return "" }
func (d *Simulate) declNode()        {}

// WatchRule is one threshold rule inside a watch block.
type WatchRule struct {
	Severity string // warn or error
	Cond     Expr   // references the builtins `actual` and `assumed`
	Pos      diag.Span
}

// Watch declares alert rules over an externally observed target.
type Watch struct {
	Target string
	Rules  []WatchRule
	Pos    diag.Span
}

func (d *Watch) Span() diag.Span  { return d.Pos }
func (d *Watch) DeclName() string { return "watch " + d.Target }
func (d *Watch) declNode()        {}

// Calibrate requests a Bayesian update of the target's uncertainty
// from externally observed data in the given window.
type Calibrate struct {
	Target      string
	Method      string
	Source      string
	WindowStart time.Time
	WindowEnd   time.Time
	HasWindow   bool
	Pos         diag.Span
}

func (d *Calibrate) Span() diag.Span  { return d.Pos }
func (d *Calibrate) DeclName() string { return "calibrate " + d.Target }
func (d *Calibrate) declNode()        {}

// Import brings another scenario file into scope under an alias.
type Import struct {
	Path  string
	Alias string
	Pos   diag.Span
}

func (d *Import) Span() diag.Span  { return d.Pos }
func (d *Import) DeclName() string { return d.Alias }
func (d *Import) declNode()        {}

// Ref is a by-name reference inside depends_on / derives_from, with the
// position of the referencing token for diagnostics.
type Ref struct {
	Name string
	Pos  diag.Span
}
