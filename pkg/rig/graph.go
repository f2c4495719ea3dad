package rig

import (
	"sort"

	"github.com/slipwayhq/slipway-go/pkg/jsonpath"
)

// DependenciesOf returns the set of handles referenced by input's
// `$.rigging.<handle>.output[...]` leaves, per §4.2. A nil input has no
// dependencies.
func DependenciesOf(input any) (map[string]struct{}, error) {
	if input == nil {
		return map[string]struct{}{}, nil
	}
	return jsonpath.ExtractDependencies(input)
}

// DetectCycle runs a depth-first search over the handle -> dependencies
// graph and returns the first cycle found (as an ordered slice of
// handles) if the graph is not acyclic.
func DetectCycle(deps map[string]map[string]struct{}) ([]string, bool) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(deps))

	// Sort handles for deterministic traversal order, matching the
	// engine's lexicographic tie-breaking elsewhere (§4.4).
	handles := make([]string, 0, len(deps))
	for h := range deps {
		handles = append(handles, h)
	}
	sort.Strings(handles)

	var stack []string
	var cycle []string

	var visit func(h string) bool
	visit = func(h string) bool {
		switch state[h] {
		case done:
			return false
		case visiting:
			// Found a cycle; extract the loop from the stack.
			start := 0
			for i, s := range stack {
				if s == h {
					start = i
					break
				}
			}
			cycle = append(append([]string{}, stack[start:]...), h)
			return true
		}
		state[h] = visiting
		stack = append(stack, h)

		depHandles := make([]string, 0, len(deps[h]))
		for d := range deps[h] {
			depHandles = append(depHandles, d)
		}
		sort.Strings(depHandles)
		for _, d := range depHandles {
			if visit(d) {
				return true
			}
		}

		stack = stack[:len(stack)-1]
		state[h] = done
		return false
	}

	for _, h := range handles {
		if state[h] == unvisited {
			if visit(h) {
				return cycle, true
			}
		}
	}
	return nil, false
}
