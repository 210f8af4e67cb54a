// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"slices"

	"github.com/bureau-foundation/wasteland/lib/schema"
)

// SnapshotVersion is the current [Snapshot] layout.
const SnapshotVersion = 1

// Snapshot is the serializable form of a graph plus its derived
// analysis. The json tags name fields for both the CBOR export and
// --json output.
type Snapshot struct {
	Version int            `json:"version"`
	Nodes   []SnapshotNode `json:"nodes"`

	// Order is the topological order. Empty when Cycles is not.
	Order  []string `json:"order,omitempty"`
	Cycles []string `json:"cycles,omitempty"`
	Ready  []string `json:"ready,omitempty"`

	// CriticalDepth is [Graph.CriticalDepth] at snapshot time.
	CriticalDepth int `json:"critical_depth,omitempty"`
}

// SnapshotNode is one node of a [Snapshot].
type SnapshotNode struct {
	EventID   string   `json:"event_id"`
	TaskID    string   `json:"task_id,omitempty"`
	Author    string   `json:"author,omitempty"`
	Title     string   `json:"title,omitempty"`
	CreatedAt int64    `json:"created_at"`
	Status    string   `json:"status"`
	Priority  string   `json:"priority"`
	Blocks    []string `json:"blocks,omitempty"`
	BlockedBy []string `json:"blocked_by,omitempty"`
	Dangling  []string `json:"dangling,omitempty"`

	// Unblocks is [Graph.UnblockCount] for this node.
	Unblocks int `json:"unblocks,omitempty"`
}

// Snapshot returns the graph in serializable form, nodes in
// first-appearance order.
func (g *Graph) Snapshot() Snapshot {
	order, _ := g.SortResult()
	snapshot := Snapshot{
		Version: SnapshotVersion,
		Nodes:   make([]SnapshotNode, 0, len(g.order)),
		Order:   order,
		Cycles:  g.Cycles(),
		Ready:   g.Ready(),

		CriticalDepth: g.CriticalDepth(),
	}
	for _, eventID := range g.order {
		node := g.nodes[eventID]
		snapshot.Nodes = append(snapshot.Nodes, SnapshotNode{
			EventID:   node.EventID,
			TaskID:    node.TaskID,
			Author:    node.Author,
			Title:     node.Title,
			CreatedAt: node.CreatedAt,
			Status:    string(node.Status),
			Priority:  string(node.Priority),
			Blocks:    slices.Clone(node.Blocks),
			BlockedBy: slices.Clone(node.BlockedBy),
			Dangling:  slices.Clone(node.Dangling),
			Unblocks:  g.UnblockCount(eventID),
		})
	}
	return snapshot
}

// Tasks returns tasks that rebuild an equivalent graph through
// [Build]. Resolved edges are emitted as blocked-by references only;
// dangling references come back as blocked-by too.
func (s Snapshot) Tasks() []schema.Task {
	tasks := make([]schema.Task, 0, len(s.Nodes))
	for _, node := range s.Nodes {
		status, _ := schema.ParseStatus(node.Status)
		priority, _ := schema.ParsePriority(node.Priority)
		blockedBy := slices.Clone(node.BlockedBy)
		blockedBy = append(blockedBy, node.Dangling...)
		tasks = append(tasks, schema.Task{
			ID:        node.TaskID,
			EventID:   node.EventID,
			Author:    node.Author,
			CreatedAt: node.CreatedAt,
			Title:     node.Title,
			Status:    status,
			Priority:  priority,
			BlockedBy: blockedBy,
		})
	}
	return tasks
}
