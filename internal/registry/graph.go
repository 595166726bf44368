package registry

import (
	"github.com/assetforge/assetforge/internal/errors"
)

// Sort computes a total order over descriptors such that every dependency
// present in the set appears strictly before its dependent.
//
// The traversal is a depth-first postorder from each unvisited node in
// discovery order, which also breaks ties among unconstrained plugins
// deterministically. Dependencies naming a plugin absent from the set are
// ignored, so optional plugins can be filtered out without breaking the
// graph.
//
// On a cycle, Sort returns a CycleError naming a plugin that closed the
// cycle together with a best-effort order containing every plugin; callers
// decide whether to proceed with it or fail the run.
func Sort(descriptors []Descriptor) ([]Descriptor, error) {
	index := make(map[string]int, len(descriptors))
	for i, d := range descriptors {
		index[d.Name] = i
	}

	var (
		order   []Descriptor
		visited = make(map[string]bool, len(descriptors))
		onStack = make(map[string]bool, len(descriptors))
		cycleAt string
	)

	var visit func(d Descriptor)
	visit = func(d Descriptor) {
		visited[d.Name] = true
		onStack[d.Name] = true

		for _, dep := range d.Dependencies {
			i, exists := index[dep]
			if !exists {
				// Lenient policy: absent dependencies are satisfied.
				continue
			}
			if onStack[dep] {
				if cycleAt == "" {
					cycleAt = d.Name
				}
				continue
			}
			if !visited[dep] {
				visit(descriptors[i])
			}
		}

		onStack[d.Name] = false
		order = append(order, d)
	}

	for _, d := range descriptors {
		if !visited[d.Name] {
			visit(d)
		}
	}

	if cycleAt != "" {
		return order, &errors.CycleError{Plugin: cycleAt}
	}
	return order, nil
}
