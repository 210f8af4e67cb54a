// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"math/rand/v2"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"testing"

	"github.com/bureau-foundation/wasteland/lib/schema"
)

type taskOption func(*schema.Task)

func blocks(ids ...string) taskOption {
	return func(task *schema.Task) { task.Blocks = ids }
}

func blockedBy(ids ...string) taskOption {
	return func(task *schema.Task) { task.BlockedBy = ids }
}

func status(s schema.Status) taskOption {
	return func(task *schema.Task) { task.Status = s }
}

func taskID(id string) taskOption {
	return func(task *schema.Task) { task.ID = id }
}

func newTask(eventID string, options ...taskOption) schema.Task {
	task := schema.Task{
		ID:       "d-" + eventID,
		EventID:  eventID,
		Title:    eventID,
		Status:   schema.StatusOpen,
		Priority: schema.PriorityNormal,
	}
	for _, option := range options {
		option(&task)
	}
	return task
}

func sorted(ids []string) []string {
	result := slices.Clone(ids)
	sort.Strings(result)
	return result
}

func TestReadyWithSingleBlocker(t *testing.T) {
	graph := Build([]schema.Task{
		newTask("t1"),
		newTask("t2", blockedBy("t1")),
	})

	if got := graph.Ready(); !reflect.DeepEqual(got, []string{"t1"}) {
		t.Errorf("Ready() = %v, want [t1]", got)
	}
	if !graph.IsReady("t1") {
		t.Error("IsReady(t1) = false, want true")
	}
	if graph.IsReady("t2") {
		t.Error("IsReady(t2) = true, want false")
	}
	if graph.IsReady("missing") {
		t.Error("IsReady(missing) = true, want false")
	}
}

func TestClosuresOverChain(t *testing.T) {
	// Edges are declared only as blocked-by; descendants still follow
	// them in the blocks direction.
	graph := Build([]schema.Task{
		newTask("a"),
		newTask("b", blockedBy("a")),
		newTask("c", blockedBy("b")),
	})

	if got := graph.Descendants("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Descendants(a) = %v, want [b c]", got)
	}
	if got := graph.Ancestors("c"); !reflect.DeepEqual(sorted(got), []string{"a", "b"}) {
		t.Errorf("Ancestors(c) = %v, want {a b}", got)
	}
	if got := graph.Descendants("c"); len(got) != 0 {
		t.Errorf("Descendants(c) = %v, want empty", got)
	}
	if got := graph.Descendants("unknown"); got != nil {
		t.Errorf("Descendants(unknown) = %v, want nil", got)
	}
	if got := graph.Blocked("a"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Blocked(a) = %v, want [b]", got)
	}
	if got := graph.Blocking("c"); !reflect.DeepEqual(got, []string{"b"}) {
		t.Errorf("Blocking(c) = %v, want [b]", got)
	}
	if got := graph.Blocking("unknown"); got != nil {
		t.Errorf("Blocking(unknown) = %v, want nil", got)
	}
}

func TestMutualBlockIsCycle(t *testing.T) {
	graph := Build([]schema.Task{
		newTask("x", blocks("y")),
		newTask("y", blocks("x")),
	})

	if got := graph.Cycles(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("Cycles() = %v, want [x y]", got)
	}
	if got := graph.TopologicalSort(); len(got) != 0 {
		t.Errorf("TopologicalSort() = %v, want empty", got)
	}
	order, hasCycle := graph.SortResult()
	if order != nil || !hasCycle {
		t.Errorf("SortResult() = (%v, %v), want (nil, true)", order, hasCycle)
	}
	if got := graph.Descendants("x"); !reflect.DeepEqual(got, []string{"y", "x"}) {
		t.Errorf("Descendants(x) = %v, want [y x]", got)
	}
	if got := graph.Ready(); len(got) != 0 {
		t.Errorf("Ready() = %v, want empty", got)
	}
}

func TestEmptyGraphSortsWithoutCycle(t *testing.T) {
	graph := Build(nil)
	order, hasCycle := graph.SortResult()
	if len(order) != 0 || hasCycle {
		t.Errorf("SortResult() = (%v, %v), want ([], false)", order, hasCycle)
	}
	if graph.Len() != 0 {
		t.Errorf("Len() = %d, want 0", graph.Len())
	}
}

func TestCyclesFindsEveryMember(t *testing.T) {
	// a→c→b→a is only visible through a cross edge once a⇄b has been
	// explored; d hangs off the cycle without being part of it.
	graph := Build([]schema.Task{
		newTask("a", blocks("b", "c")),
		newTask("b", blocks("a")),
		newTask("c", blocks("b")),
		newTask("d", blockedBy("a")),
	})
	if got := graph.Cycles(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("Cycles() = %v, want [a b c]", got)
	}
}

func TestSelfBlockIsCycle(t *testing.T) {
	graph := Build([]schema.Task{
		newTask("a", blockedBy("a")),
		newTask("b"),
	})
	if got := graph.Cycles(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Cycles() = %v, want [a]", got)
	}
	if got := graph.Ancestors("a"); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Ancestors(a) = %v, want [a]", got)
	}
}

func TestDanglingReferencesAreResolved(t *testing.T) {
	graph := Build([]schema.Task{
		newTask("a", blockedBy("gone"), blocks("also-gone")),
	})

	if !graph.IsReady("a") {
		t.Error("IsReady(a) = false, want true with only dangling blockers")
	}
	if got := graph.Ready(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("Ready() = %v, want [a]", got)
	}
	if got := graph.Ancestors("a"); len(got) != 0 {
		t.Errorf("Ancestors(a) = %v, want empty", got)
	}
	if got := graph.Descendants("a"); len(got) != 0 {
		t.Errorf("Descendants(a) = %v, want empty", got)
	}
	node, ok := graph.Node("a")
	if !ok {
		t.Fatal("Node(a) not found")
	}
	if !reflect.DeepEqual(node.Dangling, []string{"also-gone", "gone"}) {
		t.Errorf("Dangling = %v, want [also-gone gone]", node.Dangling)
	}
	if got := graph.TopologicalSort(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Errorf("TopologicalSort() = %v, want [a]", got)
	}
}

func TestReferencesByTaskID(t *testing.T) {
	graph := Build([]schema.Task{
		newTask("event-1", taskID("wl-aaaa")),
		newTask("event-2", taskID("wl-bbbb"), blockedBy("wl-aaaa")),
	})

	if got := graph.Blocking("event-2"); !reflect.DeepEqual(got, []string{"event-1"}) {
		t.Errorf("Blocking(event-2) = %v, want [event-1]", got)
	}
	if got := graph.Blocked("event-1"); !reflect.DeepEqual(got, []string{"event-2"}) {
		t.Errorf("Blocked(event-1) = %v, want [event-2]", got)
	}
	if resolved, ok := graph.Resolve("wl-bbbb"); !ok || resolved != "event-2" {
		t.Errorf("Resolve(wl-bbbb) = (%q, %v), want (event-2, true)", resolved, ok)
	}
	if _, ok := graph.Resolve("wl-cccc"); ok {
		t.Error("Resolve(wl-cccc) succeeded, want false")
	}
}

func TestDuplicateEventIDReplaces(t *testing.T) {
	first := newTask("a")
	second := newTask("a", blockedBy("b"))
	second.Title = "revised"
	graph := Build([]schema.Task{first, newTask("b"), second})

	if graph.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", graph.Len())
	}
	if got := graph.IDs(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("IDs() = %v, want [a b]", got)
	}
	node, _ := graph.Node("a")
	if node.Title != "revised" || !reflect.DeepEqual(node.BlockedBy, []string{"b"}) {
		t.Errorf("Node(a) = %+v, want the later revision", node)
	}
}

func TestReadyExcludesClosed(t *testing.T) {
	graph := Build([]schema.Task{
		newTask("a", status(schema.StatusClosed)),
		newTask("b", status(schema.StatusInProgress)),
		newTask("c"),
	})
	if got := graph.Ready(); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Ready() = %v, want [b c]", got)
	}
	if !graph.IsReady("a") {
		t.Error("IsReady(a) = false, want true regardless of status")
	}
}

func TestActionableTreatsClosedBlockersAsResolved(t *testing.T) {
	urgent := newTask("urgent", blockedBy("done"))
	urgent.Priority = schema.PriorityUrgent
	urgent.CreatedAt = 50
	older := newTask("older")
	older.CreatedAt = 10
	newer := newTask("newer")
	newer.CreatedAt = 20

	graph := Build([]schema.Task{
		newTask("done", status(schema.StatusClosed)),
		newTask("open-blocker"),
		newTask("waiting", blockedBy("open-blocker", "done")),
		urgent, newer, older,
	})

	// open-blocker has CreatedAt 0, so it leads the normal priorities.
	want := []string{"urgent", "open-blocker", "older", "newer"}
	if got := graph.Actionable(); !reflect.DeepEqual(got, want) {
		t.Errorf("Actionable() = %v, want %v", got, want)
	}
	if graph.IsReady("urgent") {
		t.Error("IsReady(urgent) = true, want false while the closed blocker is in the graph")
	}
}

func TestCriticalDepth(t *testing.T) {
	tasks := []schema.Task{
		newTask("a"),
		newTask("b", blockedBy("a")),
		newTask("c", blockedBy("b")),
		newTask("d"),
	}
	if got := Build(tasks).CriticalDepth(); got != 2 {
		t.Errorf("CriticalDepth() = %d, want 2", got)
	}

	tasks[0].Status = schema.StatusClosed
	if got := Build(tasks).CriticalDepth(); got != 1 {
		t.Errorf("CriticalDepth() with a closed = %d, want 1", got)
	}

	cyclic := Build([]schema.Task{newTask("x", blocks("y")), newTask("y", blocks("x"))})
	if got := cyclic.CriticalDepth(); got < 1 {
		t.Errorf("CriticalDepth() on a cycle = %d, want at least 1", got)
	}
}

func TestUnblockCount(t *testing.T) {
	graph := Build([]schema.Task{
		newTask("a", blocks("b", "c", "e")),
		newTask("b"),
		newTask("c", blockedBy("d")),
		newTask("d"),
		newTask("e", status(schema.StatusClosed)),
	})
	if got := graph.UnblockCount("a"); got != 1 {
		t.Errorf("UnblockCount(a) = %d, want 1", got)
	}
	if got := graph.UnblockCount("missing"); got != 0 {
		t.Errorf("UnblockCount(missing) = %d, want 0", got)
	}
}

func TestSnapshotRebuildsEquivalentGraph(t *testing.T) {
	graph := Build([]schema.Task{
		newTask("a", blocks("b")),
		newTask("b", status(schema.StatusInProgress)),
		newTask("c", blockedBy("b", "gone")),
	})
	snapshot := graph.Snapshot()

	if snapshot.Version != SnapshotVersion {
		t.Errorf("Version = %d, want %d", snapshot.Version, SnapshotVersion)
	}
	if !reflect.DeepEqual(snapshot.Order, []string{"a", "b", "c"}) {
		t.Errorf("Order = %v, want [a b c]", snapshot.Order)
	}
	if !reflect.DeepEqual(snapshot.Ready, []string{"a"}) {
		t.Errorf("Ready = %v, want [a]", snapshot.Ready)
	}
	if snapshot.CriticalDepth != 2 {
		t.Errorf("CriticalDepth = %d, want 2", snapshot.CriticalDepth)
	}
	if snapshot.Nodes[0].Unblocks != 1 {
		t.Errorf("Nodes[0].Unblocks = %d, want 1", snapshot.Nodes[0].Unblocks)
	}

	rebuilt := Build(snapshot.Tasks()).Snapshot()
	if !reflect.DeepEqual(rebuilt, snapshot) {
		t.Errorf("rebuilt snapshot = %+v, want %+v", rebuilt, snapshot)
	}
}

// randomGraph returns n tasks with random edges. When acyclic is set,
// every edge runs from a lower index to a higher one.
func randomGraph(random *rand.Rand, n int, acyclic bool) []schema.Task {
	tasks := make([]schema.Task, n)
	for i := range tasks {
		tasks[i] = newTask("n" + strconv.Itoa(i))
		if random.IntN(4) == 0 {
			tasks[i].Status = schema.StatusClosed
		}
	}
	for edge := 0; edge < n*2; edge++ {
		from, to := random.IntN(n), random.IntN(n)
		if acyclic {
			if from == to {
				continue
			}
			if from > to {
				from, to = to, from
			}
		}
		if random.IntN(2) == 0 {
			tasks[from].Blocks = append(tasks[from].Blocks, tasks[to].EventID)
		} else {
			tasks[to].BlockedBy = append(tasks[to].BlockedBy, tasks[from].EventID)
		}
	}
	return tasks
}

func TestTopologicalSortRespectsEveryEdge(t *testing.T) {
	random := rand.New(rand.NewPCG(1, 2))
	for round := 0; round < 50; round++ {
		graph := Build(randomGraph(random, 25, true))
		order, hasCycle := graph.SortResult()
		if hasCycle {
			t.Fatalf("round %d: acyclic graph reported a cycle: %v", round, graph.Cycles())
		}
		if len(order) != graph.Len() {
			t.Fatalf("round %d: order has %d ids, want %d", round, len(order), graph.Len())
		}
		position := make(map[string]int, len(order))
		for i, id := range order {
			if _, dup := position[id]; dup {
				t.Fatalf("round %d: %s appears twice", round, id)
			}
			position[id] = i
		}
		for _, blocker := range order {
			for _, blocked := range graph.Blocked(blocker) {
				if position[blocker] >= position[blocked] {
					t.Fatalf("round %d: %s sorted after %s which it blocks", round, blocker, blocked)
				}
			}
		}
	}
}

func TestReadyMatchesIsReadyAndStatus(t *testing.T) {
	random := rand.New(rand.NewPCG(3, 4))
	for round := 0; round < 50; round++ {
		graph := Build(randomGraph(random, 20, false))
		ready := make(map[string]bool)
		for _, id := range graph.Ready() {
			ready[id] = true
		}
		for _, id := range graph.IDs() {
			node, _ := graph.Node(id)
			want := graph.IsReady(id) && node.Status != schema.StatusClosed
			if ready[id] != want {
				t.Fatalf("round %d: %s in Ready = %v, want %v", round, id, ready[id], want)
			}
		}
	}
}

func TestClosuresContainSelfOnlyOnCycles(t *testing.T) {
	random := rand.New(rand.NewPCG(5, 6))
	for round := 0; round < 50; round++ {
		graph := Build(randomGraph(random, 15, false))
		cyclic := make(map[string]bool)
		for _, id := range graph.Cycles() {
			cyclic[id] = true
		}
		for _, id := range graph.IDs() {
			inDescendants := slices.Contains(graph.Descendants(id), id)
			inAncestors := slices.Contains(graph.Ancestors(id), id)
			if inDescendants != cyclic[id] || inAncestors != cyclic[id] {
				t.Fatalf("round %d: %s self in descendants=%v ancestors=%v, cyclic=%v",
					round, id, inDescendants, inAncestors, cyclic[id])
			}
			descendants := graph.Descendants(id)
			if len(descendants) != len(uniq(descendants)) {
				t.Fatalf("round %d: Descendants(%s) has duplicates: %v", round, id, descendants)
			}
		}
	}
}

func uniq(ids []string) []string {
	result := sorted(ids)
	return slices.Compact(result)
}
