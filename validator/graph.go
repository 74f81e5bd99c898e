package validator

import (
	"github.com/Relatronica/sdl/domain/ast"
	"github.com/Relatronica/sdl/domain/diag"
	"github.com/Relatronica/sdl/domain/graph"
)

// buildGraph assembles the causal graph from dependency references and
// runs cycle detection. Returns nil when a cycle exists; the cycle is
// reported exactly once.
func (v *validator) buildGraph() *graph.CausalGraph {
	adj := make(map[string][]string, len(v.order)) // from -> to
	var edges []graph.Edge

	addEdge := func(from ast.Ref, to string) {
		if d, ok := v.declared[from.Name]; !ok || !referenceable(d) {
			return // already reported as UNDEFINED_REFERENCE
		}
		edges = append(edges, graph.Edge{From: from.Name, To: to})
		adj[from.Name] = append(adj[from.Name], to)
	}
	for _, d := range v.sc.Decls {
		switch d := d.(type) {
		case *ast.Variable:
			for _, ref := range d.DependsOn {
				addEdge(ref, d.Name)
			}
		case *ast.Impact:
			for _, ref := range d.DerivesFrom {
				addEdge(ref, d.Name)
			}
		}
	}

	if cycle := v.findCycle(adj); cycle != "" {
		pos := v.sc.Pos
		if d, ok := v.declared[cycle]; ok {
			pos = d.Span()
		}
		v.errorf(diag.CodeDependencyCycle, pos,
			"dependency cycle through %q; scenario is not simulatable", cycle)
		return nil
	}

	return &graph.CausalGraph{
		Nodes:            append([]string(nil), v.order...),
		Edges:            edges,
		TopologicalOrder: v.topoSort(adj),
	}
}

// Three-state coloring for the iterative DFS.
const (
	colorWhite = iota // unvisited
	colorGray         // on the stack
	colorBlack        // finished
)

// findCycle runs an explicit iterative DFS over the adjacency map and
// returns a node on the first back edge found, or "" when acyclic.
// Iterative on purpose: recursion depth must not depend on input shape.
func (v *validator) findCycle(adj map[string][]string) string {
	color := make(map[string]int, len(v.order))

	type frame struct {
		node string
		next int
	}
	for _, root := range v.order {
		if color[root] != colorWhite {
			continue
		}
		stack := []frame{{node: root}}
		color[root] = colorGray
		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			succs := adj[f.node]
			if f.next < len(succs) {
				succ := succs[f.next]
				f.next++
				switch color[succ] {
				case colorWhite:
					color[succ] = colorGray
					stack = append(stack, frame{node: succ})
				case colorGray:
					return succ // back edge
				}
				continue
			}
			color[f.node] = colorBlack
			stack = stack[:len(stack)-1]
		}
	}
	return ""
}

// topoSort produces a total order consistent with the edges, breaking
// ties by original declaration order so the result is deterministic.
// Only called on acyclic graphs.
func (v *validator) topoSort(adj map[string][]string) []string {
	indeg := make(map[string]int, len(v.order))
	for _, n := range v.order {
		indeg[n] = 0
	}
	for _, succs := range adj {
		for _, s := range succs {
			indeg[s]++
		}
	}

	out := make([]string, 0, len(v.order))
	done := make(map[string]bool, len(v.order))
	for len(out) < len(v.order) {
		advanced := false
		for _, n := range v.order {
			if done[n] || indeg[n] != 0 {
				continue
			}
			done[n] = true
			out = append(out, n)
			for _, s := range adj[n] {
				indeg[s]--
			}
			advanced = true
			break
		}
		if !advanced {
			break // unreachable on acyclic input
		}
	}
	return out
}
