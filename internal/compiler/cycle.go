package compiler

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/journeysim/internal/trigger"
)

// CycleWarning represents a potential cycle among triggers.
//
// Cycles are warnings, not errors: the runner's cycle detector and step
// quota bound them at run time, and a conditional trigger may never close
// the loop in practice.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["trig-a", "trig-b", "trig-a"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis on triggers.
//
// The algorithm:
//  1. Build trigger -> trigger graph: A -> B when A's target event
//     (product, type) is B's source event
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or self-loops as a potential cycle warning
//
// A DAG (no cycles) returns an empty warning list. Output is sorted by the
// first trigger id in each path.
func AnalyzeCycles(triggers []trigger.RegisteredTrigger) []CycleWarning {
	warnings := []CycleWarning{}
	if len(triggers) == 0 {
		return warnings
	}

	graph := buildDependencyGraph(triggers)
	sccs := tarjanSCC(graph)

	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}

	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Path[0] < warnings[j].Path[0]
	})
	return warnings
}

// dependencyGraph maps trigger_id -> trigger_ids it could fire.
type dependencyGraph map[string][]string

func eventKey(product, eventType string) string {
	return product + "." + eventType
}

// buildDependencyGraph constructs the trigger dependency graph.
// Neighbor lists are sorted so traversal is deterministic.
func buildDependencyGraph(triggers []trigger.RegisteredTrigger) dependencyGraph {
	graph := make(dependencyGraph)

	// (product.event_type) -> triggers listening on it
	listeners := make(map[string][]string)
	for _, t := range triggers {
		key := eventKey(t.SourceProduct, t.SourceEventType)
		listeners[key] = append(listeners[key], t.ID)
	}

	for _, t := range triggers {
		// Ensure node exists even with no edges
		if graph[t.ID] == nil {
			graph[t.ID] = []string{}
		}
		graph[t.ID] = append(graph[t.ID], listeners[eventKey(t.TargetProduct, t.TargetEventType)]...)
		sort.Strings(graph[t.ID])
	}

	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Returns a list of SCCs, where each SCC is a list of trigger IDs.
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
		// Set the depth index for v
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		// Consider successors of v
		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				// Successor w has not yet been visited; recurse on it
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				// Successor w is on stack and hence in the current SCC
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
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

	// Visit all nodes in sorted order
	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
//
// The path shows the cycle sequence by reconstructing a path through the SCC.
// For self-loops, the path is [trigger-id, trigger-id].
// For multi-node cycles, the path shows a cycle traversal.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		// Self-loop
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("self-triggering trigger: %s -> %s", id, id),
			Level:   "warning",
		}
	}

	// Multi-node cycle - reconstruct a cycle path
	path := reconstructCyclePath(scc, graph)

	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("potential trigger cycle: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at the smallest node in the SCC, follow edges to other
// SCC members, continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	// Build set of SCC members for fast lookup
	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := slices.Min(scc)
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	// Follow edges within SCC until we return to start
	for {
		visited[current] = true

		// Find next SCC member reachable from current
		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}

		if next == "" {
			// No more unvisited neighbors in SCC
			break
		}

		path = append(path, next)

		if next == start {
			// Completed the cycle
			break
		}

		current = next
	}

	return path
}
