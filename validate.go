package pipeline

import (
	"fmt"
	"strings"
)

// ValidateGraph checks the structural rules a stored pipeline must satisfy:
// graph node ids are unique and non-empty, every edge names existing nodes,
// and the control edges form no cycle.
// Definition references are not checked here; they are resolved when the graph is bound.
func ValidateGraph(g Graph) error {
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("%w: node without id", ErrInvalidGraph)
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: duplicate node id %q", ErrInvalidGraph, n.ID)
		}
		seen[n.ID] = true
	}

	for _, e := range g.Edges {
		if !seen[e.Source] {
			return fmt.Errorf("%w: edge %q has unknown source %q", ErrInvalidGraph, e.ID, e.Source)
		}
		if !seen[e.Target] {
			return fmt.Errorf("%w: edge %q has unknown target %q", ErrInvalidGraph, e.ID, e.Target)
		}
	}

	return validateAcyclic(g)
}

// validateAcyclic checks that the control edges don't form a cycle using DFS.
// Data edges are ignored: they never schedule anything.
func validateAcyclic(g Graph) error {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		if e.IsControlOut() {
			adj[e.Source] = append(adj[e.Source], e.Target)
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		visited   = 2
	)

	state := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		state[n.ID] = unvisited
	}

	var dfs func(id string) bool
	dfs = func(id string) bool {
		state[id] = visiting
		for _, next := range adj[id] {
			switch state[next] {
			case visiting:
				return true
			case unvisited:
				if dfs(next) {
					return true
				}
			}
		}
		state[id] = visited
		return false
	}

	// Walk in graph order so the reported node is stable.
	for _, n := range g.Nodes {
		if state[n.ID] == unvisited && dfs(n.ID) {
			return fmt.Errorf("%w (through node %q)", ErrCycleDetected, n.ID)
		}
	}

	return nil
}

// NormalizeRoute returns the canonical form of a pipeline route: the method upper-cased
// and the url stripped of surrounding whitespace and slashes, so "/users/" and "users" match.
func NormalizeRoute(method, url string) (string, string) {
	return strings.ToUpper(strings.TrimSpace(method)), strings.Trim(strings.TrimSpace(url), "/")
}

// ValidatePipeline checks a pipeline before it is saved.
func ValidatePipeline(p *Pipeline) error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPipeline)
	}
	if p.Method == "" {
		return fmt.Errorf("%w: method is required", ErrInvalidPipeline)
	}
	return ValidateGraph(p.Content)
}
