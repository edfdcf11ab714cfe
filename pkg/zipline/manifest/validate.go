package manifest

import (
	"fmt"
	"sort"

	"github.com/wuxler/zipline/pkg/errdefs"
	zerrdefs "github.com/wuxler/zipline/pkg/zipline/errdefs"
)

// Validate checks that every dependsOnIds entry names a module that exists
// and that the resulting dependency graph is acyclic, using Kahn's algorithm.
// It must be called, and must succeed, before the receive engine schedules
// any fetch job.
func (m *Manifest) Validate() error {
	for id, mod := range m.Modules {
		for _, dep := range mod.DependsOnIDs {
			if _, ok := m.Modules[dep]; !ok {
				return errdefs.NewE(zerrdefs.ErrMissingDependency,
					fmt.Errorf("module %q depends on unknown module %q", id, dep))
			}
		}
	}

	indegree := make(map[string]int, len(m.Modules))
	dependents := make(map[string][]string, len(m.Modules))
	for id := range m.Modules {
		indegree[id] = 0
	}
	for id, mod := range m.Modules {
		for _, dep := range mod.DependsOnIDs {
			indegree[id]++
			dependents[dep] = append(dependents[dep], id)
		}
	}

	var queue []string
	for id, deg := range indegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++

		next := append([]string(nil), dependents[id]...)
		sort.Strings(next)
		for _, dependent := range next {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				queue = append(queue, dependent)
				sort.Strings(queue)
			}
		}
	}

	if processed != len(m.Modules) {
		return zerrdefs.ErrCycleDetected
	}
	return nil
}
