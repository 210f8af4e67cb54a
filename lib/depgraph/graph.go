// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"slices"
	"sort"

	"github.com/bureau-foundation/wasteland/lib/schema"
)

// Node is one task in the graph. Blocks and BlockedBy hold resolved
// event ids of other nodes, sorted. Dangling holds the references
// that resolved to nothing.
type Node struct {
	EventID   string
	TaskID    string
	Author    string
	Title     string
	CreatedAt int64
	Status    schema.Status
	Priority  schema.Priority
	Blocks    []string
	BlockedBy []string
	Dangling  []string
}

// Graph is an immutable dependency graph. Construct with [Build].
type Graph struct {
	nodes map[string]*Node

	// order holds event ids in first-appearance order.
	order []string

	// sorted holds event ids in lexical order, the iteration order for
	// every algorithm that needs determinism.
	sorted []string
}

// Build returns the graph of tasks. A task whose EventID repeats an
// earlier one replaces it in place. Tasks with distinct event ids are
// never merged, even when they share a task id: collapsing revisions
// is the caller's job (see [schema.LatestByD]). When several nodes
// share a task id, a reference by that task id resolves to the last
// of them in input order.
func Build(tasks []schema.Task) *Graph {
	graph := &Graph{nodes: make(map[string]*Node, len(tasks))}
	byEventID := make(map[string]schema.Task, len(tasks))
	for _, task := range tasks {
		if _, exists := byEventID[task.EventID]; !exists {
			graph.order = append(graph.order, task.EventID)
		}
		byEventID[task.EventID] = task
	}

	byTaskID := make(map[string]string, len(tasks))
	for _, eventID := range graph.order {
		task := byEventID[eventID]
		graph.nodes[eventID] = &Node{
			EventID:   eventID,
			TaskID:    task.ID,
			Author:    task.Author,
			Title:     task.Title,
			CreatedAt: task.CreatedAt,
			Status:    task.Status,
			Priority:  task.Priority,
		}
		if task.ID != "" {
			byTaskID[task.ID] = eventID
		}
	}

	resolve := func(reference string) (string, bool) {
		if _, exists := graph.nodes[reference]; exists {
			return reference, true
		}
		eventID, exists := byTaskID[reference]
		return eventID, exists
	}

	blocks := make(map[string]map[string]struct{}, len(tasks))
	blockedBy := make(map[string]map[string]struct{}, len(tasks))
	dangling := make(map[string]map[string]struct{})
	addEdge := func(blocker, blocked string) {
		addToSet(blocks, blocker, blocked)
		addToSet(blockedBy, blocked, blocker)
	}

	for _, eventID := range graph.order {
		task := byEventID[eventID]
		for _, reference := range task.Blocks {
			if target, ok := resolve(reference); ok {
				addEdge(eventID, target)
			} else {
				addToSet(dangling, eventID, reference)
			}
		}
		for _, reference := range task.BlockedBy {
			if blocker, ok := resolve(reference); ok {
				addEdge(blocker, eventID)
			} else {
				addToSet(dangling, eventID, reference)
			}
		}
	}

	for eventID, node := range graph.nodes {
		node.Blocks = sortedKeys(blocks[eventID])
		node.BlockedBy = sortedKeys(blockedBy[eventID])
		node.Dangling = sortedKeys(dangling[eventID])
	}

	graph.sorted = slices.Clone(graph.order)
	sort.Strings(graph.sorted)
	return graph
}

func addToSet(sets map[string]map[string]struct{}, key, value string) {
	set, exists := sets[key]
	if !exists {
		set = make(map[string]struct{})
		sets[key] = set
	}
	set[value] = struct{}{}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// IDs returns every event id in first-appearance order.
func (g *Graph) IDs() []string {
	return slices.Clone(g.order)
}

// Node returns a copy of the node for eventID.
func (g *Graph) Node(eventID string) (Node, bool) {
	node, exists := g.nodes[eventID]
	if !exists {
		return Node{}, false
	}
	copied := *node
	copied.Blocks = slices.Clone(node.Blocks)
	copied.BlockedBy = slices.Clone(node.BlockedBy)
	copied.Dangling = slices.Clone(node.Dangling)
	return copied, true
}

// Resolve returns the event id a reference names: the reference itself
// when it is a node's event id, otherwise the node carrying it as task
// id.
func (g *Graph) Resolve(reference string) (string, bool) {
	if _, exists := g.nodes[reference]; exists {
		return reference, true
	}
	var found string
	for _, eventID := range g.order {
		if g.nodes[eventID].TaskID == reference {
			found = eventID
		}
	}
	return found, found != ""
}

// IsReady reports whether eventID is a node with no blockers in the
// graph. The node's own status is not considered. Unknown ids are not
// ready.
func (g *Graph) IsReady(eventID string) bool {
	node, exists := g.nodes[eventID]
	return exists && len(node.BlockedBy) == 0
}

// Ready returns every ready node whose status is not closed, sorted by
// event id.
func (g *Graph) Ready() []string {
	var ready []string
	for _, eventID := range g.sorted {
		node := g.nodes[eventID]
		if len(node.BlockedBy) == 0 && node.Status != schema.StatusClosed {
			ready = append(ready, eventID)
		}
	}
	return ready
}

// Actionable returns the nodes that can be worked on when closed
// blockers count as resolved: status is not closed and every blocker
// is closed. Results are ordered by priority (urgent first), then
// creation time (oldest first), then event id.
//
// Ready answers "is anything left in the snapshot blocking this";
// Actionable answers the same question for snapshots that still
// contain closed tasks.
func (g *Graph) Actionable() []string {
	var actionable []string
	for _, eventID := range g.sorted {
		node := g.nodes[eventID]
		if node.Status == schema.StatusClosed {
			continue
		}
		if g.allBlockersClosed(node) {
			actionable = append(actionable, eventID)
		}
	}
	sort.SliceStable(actionable, func(i, j int) bool {
		a, b := g.nodes[actionable[i]], g.nodes[actionable[j]]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		if a.CreatedAt != b.CreatedAt {
			return a.CreatedAt < b.CreatedAt
		}
		return a.EventID < b.EventID
	})
	return actionable
}

func (g *Graph) allBlockersClosed(node *Node) bool {
	for _, blockerID := range node.BlockedBy {
		if g.nodes[blockerID].Status != schema.StatusClosed {
			return false
		}
	}
	return true
}

// Blocked returns the nodes eventID directly blocks. Empty for unknown
// ids.
func (g *Graph) Blocked(eventID string) []string {
	node, exists := g.nodes[eventID]
	if !exists {
		return nil
	}
	return slices.Clone(node.Blocks)
}

// Blocking returns the nodes directly blocking eventID. Empty for
// unknown ids.
func (g *Graph) Blocking(eventID string) []string {
	node, exists := g.nodes[eventID]
	if !exists {
		return nil
	}
	return slices.Clone(node.BlockedBy)
}
