// Package graph holds the causal dependency graph the validator builds
// over declaration names. The graph is a separate adjacency structure;
// the AST itself never contains cycles.
package graph

// Edge is a directed dependency: From must be computed before To.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// CausalGraph is the validated dependency structure of a scenario.
// TopologicalOrder is total, consistent with Edges, and tie-broken by
// original declaration order so repeated validation is deterministic.
type CausalGraph struct {
	Nodes            []string `json:"nodes"`
	Edges            []Edge   `json:"edges"`
	TopologicalOrder []string `json:"topologicalOrder"`
}

// Position returns the index of name in the topological order, or -1.
func (g *CausalGraph) Position(name string) int {
	for i, n := range g.TopologicalOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// Dependencies returns the names that feed directly into name.
func (g *CausalGraph) Dependencies(name string) []string {
	var deps []string
	for _, e := range g.Edges {
		if e.To == name {
			deps = append(deps, e.From)
		}
	}
	return deps
}
