// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

// TopologicalSort returns every node ordered so each blocker precedes
// everything it blocks. When the graph has a cycle the result is empty;
// use [Graph.SortResult] to tell a cyclic graph from an empty one.
func (g *Graph) TopologicalSort() []string {
	order, _ := g.SortResult()
	return order
}

// SortResult returns the topological order and whether the graph is
// cyclic. A cyclic graph has no order: the slice is nil and hasCycle
// is true.
func (g *Graph) SortResult() (order []string, hasCycle bool) {
	if g.HasCycle() {
		return nil, true
	}

	// Depth-first postorder over blocked-by edges: a node is emitted
	// once all of its blockers have been emitted.
	type frame struct {
		eventID string
		edge    int
	}
	emitted := make(map[string]bool, len(g.nodes))
	entered := make(map[string]bool, len(g.nodes))
	order = make([]string, 0, len(g.nodes))

	for _, root := range g.sorted {
		if entered[root] {
			continue
		}
		entered[root] = true
		calls := []frame{{eventID: root}}
		for len(calls) > 0 {
			top := &calls[len(calls)-1]
			blockers := g.nodes[top.eventID].BlockedBy
			if top.edge < len(blockers) {
				blocker := blockers[top.edge]
				top.edge++
				if !entered[blocker] {
					entered[blocker] = true
					calls = append(calls, frame{eventID: blocker})
				}
				continue
			}
			if !emitted[top.eventID] {
				emitted[top.eventID] = true
				order = append(order, top.eventID)
			}
			calls = calls[:len(calls)-1]
		}
	}
	return order, false
}
