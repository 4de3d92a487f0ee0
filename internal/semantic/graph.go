package semantic

import (
	"slices"

	"github.com/roach88/semlayer/internal/expr"
)

// dependencyGraph maps metric id -> ids of the metrics it references.
type dependencyGraph map[string][]string

// buildDependencyGraph constructs the metric reference graph. Edges to ids
// outside the definition set are dropped; registration reports those as
// UNKNOWN_METRIC. Definitions sharing an id contribute to one node, so
// every duplicate is ordered after all of their dependencies.
func buildDependencyGraph(metrics []Metric) dependencyGraph {
	defined := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		defined[m.ID] = true
	}

	graph := make(dependencyGraph, len(metrics))
	for _, m := range metrics {
		// Initialize with empty slice (ensures node exists in graph)
		edges, ok := graph[m.ID]
		if !ok {
			edges = []string{}
		}
		for _, ref := range expr.MetricRefs(m.Expr) {
			if defined[ref] && !slices.Contains(edges, ref) {
				edges = append(edges, ref)
			}
		}
		graph[m.ID] = edges
	}
	return graph
}

// resolutionOrder returns metric ids so that every metric comes after the
// metrics it references, plus every cycle found as a closed path.
//
// The algorithm:
//  1. Find strongly connected components with Tarjan's algorithm
//  2. Tarjan emits a component only after every component it reaches, which
//     for reference edges means dependencies first
//  3. Components larger than one node, or with a self-loop, are cycles;
//     their members are left out of the order
//
// Nodes and edges are visited in sorted order, so the result is
// deterministic for a given definition set.
func resolutionOrder(graph dependencyGraph) (order []string, cycles [][]string) {
	for _, scc := range tarjanSCC(graph) {
		if len(scc) > 1 || hasSelfLoop(scc[0], graph) {
			cycles = append(cycles, reconstructCyclePath(scc, graph))
			continue
		}
		order = append(order, scc[0])
	}
	return order, cycles
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	return slices.Contains(graph[node], node)
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of metric ids.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range sortedCopy(graph[v]) {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root node: pop the stack and emit an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)

	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// reconstructCyclePath builds a closed path through an SCC.
//
// Starts at the smallest id and follows sorted edges to unvisited members
// until it can step back to the start: [a, b, c, a].
// For self-loops, the path is [id, id].
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	members := make(map[string]bool, len(scc))
	for _, node := range scc {
		members[node] = true
	}
	start := slices.Min(scc)
	if len(scc) == 1 {
		return []string{start, start}
	}

	path := []string{start}
	visited := map[string]bool{start: true}
	current := start
	for {
		next := ""
		neighbors := sortedCopy(graph[current])
		// Close the cycle as soon as every member has been visited.
		if len(visited) == len(scc) && slices.Contains(neighbors, start) {
			return append(path, start)
		}
		for _, n := range neighbors {
			if members[n] && !visited[n] {
				next = n
				break
			}
		}
		if next == "" {
			// Dead end inside the SCC: close through start when possible.
			if slices.Contains(neighbors, start) {
				return append(path, start)
			}
			return path
		}
		path = append(path, next)
		visited[next] = true
		current = next
	}
}

func sortedCopy(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}
