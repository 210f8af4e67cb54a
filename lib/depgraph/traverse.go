// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import "github.com/bureau-foundation/wasteland/lib/schema"

// Descendants returns every node reachable from eventID along blocks
// edges: everything that transitively waits on it. Results are in
// breadth-first order, each id once. eventID itself appears only when
// it sits on a cycle.
func (g *Graph) Descendants(eventID string) []string {
	return g.closure(eventID, func(node *Node) []string { return node.Blocks })
}

// Ancestors returns every node reachable from eventID along blocked-by
// edges: everything it transitively waits on. Ordering and the self
// rule match [Graph.Descendants].
func (g *Graph) Ancestors(eventID string) []string {
	return g.closure(eventID, func(node *Node) []string { return node.BlockedBy })
}

func (g *Graph) closure(start string, neighbors func(*Node) []string) []string {
	node, exists := g.nodes[start]
	if !exists {
		return nil
	}

	// The start is not pre-marked visited, so reaching it again through
	// a cycle adds it once like any other node.
	visited := make(map[string]struct{})
	var result []string
	queue := append([]string(nil), neighbors(node)...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if _, seen := visited[current]; seen {
			continue
		}
		visited[current] = struct{}{}
		result = append(result, current)
		queue = append(queue, neighbors(g.nodes[current])...)
	}
	return result
}

// CriticalDepth returns the length of the longest chain of unclosed
// blockers in the graph: 0 when no open task waits on another open
// task. Edges inside a cycle are counted once.
func (g *Graph) CriticalDepth() int {
	memo := make(map[string]int, len(g.nodes))
	var depthOf func(string) int
	depthOf = func(eventID string) int {
		if cached, exists := memo[eventID]; exists {
			return cached
		}
		// Mark before recursing so cycles terminate.
		memo[eventID] = 0

		maxBlockerDepth := 0
		for _, blockerID := range g.nodes[eventID].BlockedBy {
			if g.nodes[blockerID].Status == schema.StatusClosed {
				continue
			}
			if depth := depthOf(blockerID) + 1; depth > maxBlockerDepth {
				maxBlockerDepth = depth
			}
		}
		memo[eventID] = maxBlockerDepth
		return maxBlockerDepth
	}

	maxDepth := 0
	for _, eventID := range g.sorted {
		if g.nodes[eventID].Status == schema.StatusClosed {
			continue
		}
		if depth := depthOf(eventID); depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

// UnblockCount returns how many unclosed nodes would become actionable
// if eventID were closed: direct dependents whose only unclosed blocker
// is eventID.
func (g *Graph) UnblockCount(eventID string) int {
	node, exists := g.nodes[eventID]
	if !exists {
		return 0
	}
	count := 0
	for _, dependentID := range node.Blocks {
		dependent := g.nodes[dependentID]
		if dependent.Status == schema.StatusClosed || dependentID == eventID {
			continue
		}
		soleBlocker := true
		for _, blockerID := range dependent.BlockedBy {
			if blockerID != eventID && g.nodes[blockerID].Status != schema.StatusClosed {
				soleBlocker = false
				break
			}
		}
		if soleBlocker {
			count++
		}
	}
	return count
}
