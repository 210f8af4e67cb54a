// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import "sort"

// Cycles returns every node that lies on at least one cycle of blocks
// edges, sorted. An empty result means the graph is acyclic.
//
// The search is Tarjan's strongly connected components algorithm with
// an explicit call stack, so deep chains do not grow the goroutine
// stack. A node is cyclic when its component has more than one member
// or it blocks itself.
func (g *Graph) Cycles() []string {
	index := make(map[string]int, len(g.nodes))
	lowLink := make(map[string]int, len(g.nodes))
	onStack := make(map[string]bool, len(g.nodes))
	var stack []string
	var cyclic []string
	next := 0

	type frame struct {
		eventID string
		edge    int
	}

	visit := func(eventID string) {
		index[eventID] = next
		lowLink[eventID] = next
		next++
		stack = append(stack, eventID)
		onStack[eventID] = true
	}

	for _, root := range g.sorted {
		if _, seen := index[root]; seen {
			continue
		}
		visit(root)
		calls := []frame{{eventID: root}}

		for len(calls) > 0 {
			top := &calls[len(calls)-1]
			edges := g.nodes[top.eventID].Blocks
			if top.edge < len(edges) {
				target := edges[top.edge]
				top.edge++
				if _, seen := index[target]; !seen {
					visit(target)
					calls = append(calls, frame{eventID: target})
				} else if onStack[target] {
					lowLink[top.eventID] = min(lowLink[top.eventID], index[target])
				}
				continue
			}

			current := top.eventID
			calls = calls[:len(calls)-1]
			if len(calls) > 0 {
				parent := calls[len(calls)-1].eventID
				lowLink[parent] = min(lowLink[parent], lowLink[current])
			}
			if lowLink[current] != index[current] {
				continue
			}

			var component []string
			for {
				member := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[member] = false
				component = append(component, member)
				if member == current {
					break
				}
			}
			if len(component) > 1 || g.blocksSelf(current) {
				cyclic = append(cyclic, component...)
			}
		}
	}

	sort.Strings(cyclic)
	return cyclic
}

// HasCycle reports whether any cycle exists.
func (g *Graph) HasCycle() bool {
	return len(g.Cycles()) > 0
}

func (g *Graph) blocksSelf(eventID string) bool {
	for _, target := range g.nodes[eventID].Blocks {
		if target == eventID {
			return true
		}
	}
	return false
}
