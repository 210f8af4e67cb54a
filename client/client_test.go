// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/wasteland/client"
	"github.com/bureau-foundation/wasteland/lib/clock"
	"github.com/bureau-foundation/wasteland/lib/event"
	"github.com/bureau-foundation/wasteland/lib/schema"
	"github.com/bureau-foundation/wasteland/lib/testutil"
	"github.com/bureau-foundation/wasteland/relay"
	"github.com/bureau-foundation/wasteland/relay/relaytest"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const waitTimeout = 5 * time.Second

type harness struct {
	relay *relaytest.Relay
	clock *clock.FakeClock
}

func newHarness() *harness {
	return &harness{relay: relaytest.New(), clock: clock.Fake(epoch)}
}

// agent returns a connected client signing as name.
func (h *harness) agent(t *testing.T, name string) *client.Client {
	t.Helper()
	c, err := client.New(client.Config{
		Relay:  relay.Config{URL: "ws://relay.test", Dialer: h.relay},
		Signer: relaytest.NewSigner(name),
		Clock:  h.clock,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c
}

func taskIDs(tasks []schema.Task) []string {
	ids := make([]string, len(tasks))
	for i, task := range tasks {
		ids[i] = task.ID
	}
	return ids
}

func mustCreate(t *testing.T, c *client.Client, params schema.TaskParams) schema.Task {
	t.Helper()
	task, err := c.CreateTask(context.Background(), params)
	if err != nil {
		t.Fatalf("CreateTask(%q): %v", params.Title, err)
	}
	return task
}

func TestNewRequiresSignerAndURL(t *testing.T) {
	if _, err := client.New(client.Config{Relay: relay.Config{URL: "ws://x"}}); err == nil {
		t.Error("New without signer succeeded")
	}
	if _, err := client.New(client.Config{Signer: relaytest.NewSigner("a")}); err == nil {
		t.Error("New without relay URL succeeded")
	}
}

func TestCreateTaskAssignsDistinctIDs(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")

	first := mustCreate(t, alice, schema.TaskParams{Title: "Build"})
	second := mustCreate(t, alice, schema.TaskParams{Title: "Build"})

	if !strings.HasPrefix(first.ID, schema.TaskIDPrefix+"-") {
		t.Errorf("ID = %q, want %s- prefix", first.ID, schema.TaskIDPrefix)
	}
	if first.ID == second.ID {
		t.Errorf("same title at the same second produced one id %q", first.ID)
	}
	if first.Author != alice.PublicKey() || first.Status != schema.StatusOpen || first.Priority != schema.PriorityNormal {
		t.Errorf("task = %+v", first)
	}
	if first.CreatedAt != epoch.Unix() {
		t.Errorf("CreatedAt = %d, want %d", first.CreatedAt, epoch.Unix())
	}
	if got := len(h.relay.Stored()); got != 2 {
		t.Errorf("relay stored %d events, want 2", got)
	}
}

func TestCreateTaskKeepsExplicitID(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	task := mustCreate(t, alice, schema.TaskParams{ID: "wl-fixed", Title: "Fixed", Priority: schema.PriorityHigh})
	if task.ID != "wl-fixed" || task.Priority != schema.PriorityHigh {
		t.Errorf("task = %+v", task)
	}
}

func TestCreateTaskRejectsInvalidParams(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	for _, params := range []schema.TaskParams{
		{Title: " "},
		{Title: "x", Status: "done"},
		{Title: "x", Priority: "p0"},
	} {
		if _, err := alice.CreateTask(context.Background(), params); !errors.Is(err, client.ErrInvalidParams) {
			t.Errorf("CreateTask(%+v) error = %v, want ErrInvalidParams", params, err)
		}
	}
	if got := len(h.relay.Published()); got != 0 {
		t.Errorf("invalid tasks published %d events", got)
	}
}

func TestCreateTaskRejectedByRelay(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	h.relay.SetReject("blocked: payment required")
	_, err := alice.CreateTask(context.Background(), schema.TaskParams{Title: "Paid"})
	if !relay.IsPublishRejected(err) {
		t.Fatalf("CreateTask error = %v, want *relay.PublishRejected", err)
	}
}

func TestOperationsRequireConnection(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	alice.Disconnect()
	if alice.Connected() {
		t.Fatal("Connected() after Disconnect")
	}
	if _, err := alice.CreateTask(context.Background(), schema.TaskParams{Title: "x"}); !errors.Is(err, relay.ErrNotConnected) {
		t.Errorf("CreateTask error = %v, want ErrNotConnected", err)
	}
	if _, err := alice.QueryTasks(context.Background(), schema.TaskFilter{}); !errors.Is(err, relay.ErrNotConnected) {
		t.Errorf("QueryTasks error = %v, want ErrNotConnected", err)
	}
}

func TestClaimAndCloseReplaceTheRevision(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	ctx := context.Background()

	created := mustCreate(t, alice, schema.TaskParams{Title: "Ship", BlockedBy: []string{"wl-ext"}})
	claimed, err := alice.ClaimTask(ctx, created)
	if err != nil {
		t.Fatalf("ClaimTask: %v", err)
	}
	if claimed.ID != created.ID || claimed.Status != schema.StatusInProgress {
		t.Errorf("claimed = %+v", claimed)
	}
	if claimed.CreatedAt <= created.CreatedAt {
		t.Errorf("claim CreatedAt %d not after create %d", claimed.CreatedAt, created.CreatedAt)
	}
	if len(claimed.BlockedBy) != 1 || claimed.BlockedBy[0] != "wl-ext" {
		t.Errorf("claim dropped blocked-by: %v", claimed.BlockedBy)
	}

	closed, err := alice.CloseTask(ctx, claimed)
	if err != nil {
		t.Fatalf("CloseTask: %v", err)
	}

	tasks, err := alice.QueryTasks(ctx, schema.TaskFilter{TaskIDs: []string{created.ID}})
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].EventID != closed.EventID || tasks[0].Status != schema.StatusClosed {
		t.Errorf("relay holds %+v, want only the closed revision", tasks)
	}
}

func TestUpdateTaskChangesFields(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	created := mustCreate(t, alice, schema.TaskParams{Title: "Draft", Content: "v1"})

	title, content := "Final", "v2"
	updated, err := alice.UpdateTask(context.Background(), created, schema.TaskUpdate{Title: &title, Content: &content})
	if err != nil {
		t.Fatalf("UpdateTask: %v", err)
	}
	if updated.ID != created.ID || updated.Title != "Final" || updated.Content != "v2" || updated.Status != schema.StatusOpen {
		t.Errorf("updated = %+v", updated)
	}

	bad := schema.Status("done")
	if _, err := alice.UpdateTask(context.Background(), created, schema.TaskUpdate{Status: &bad}); !errors.Is(err, client.ErrInvalidParams) {
		t.Errorf("UpdateTask with bad status error = %v", err)
	}
}

func TestFindReady(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	bob := h.agent(t, "bob")
	ctx := context.Background()

	first := mustCreate(t, alice, schema.TaskParams{Title: "First"})
	second := mustCreate(t, alice, schema.TaskParams{Title: "Second", BlockedBy: []string{first.ID}})
	urgent := mustCreate(t, alice, schema.TaskParams{Title: "Urgent", Priority: schema.PriorityUrgent})
	mustCreate(t, bob, schema.TaskParams{Title: "Bob's"})

	ready, err := alice.FindReady(ctx)
	if err != nil {
		t.Fatalf("FindReady: %v", err)
	}
	if got := taskIDs(ready); len(got) != 2 || got[0] != urgent.ID || got[1] != first.ID {
		t.Fatalf("FindReady = %v, want [%s %s]", got, urgent.ID, first.ID)
	}

	all, err := alice.FindReady(ctx, "")
	if err != nil {
		t.Fatalf("FindReady(all): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("FindReady(\"\") returned %d tasks, want 3", len(all))
	}

	onlyBob, err := alice.FindReady(ctx, bob.PublicKey())
	if err != nil {
		t.Fatalf("FindReady(bob): %v", err)
	}
	if len(onlyBob) != 1 || onlyBob[0].Author != bob.PublicKey() {
		t.Errorf("FindReady(bob) = %+v", onlyBob)
	}

	if _, err := alice.CloseTask(ctx, first); err != nil {
		t.Fatalf("CloseTask: %v", err)
	}
	ready, err = alice.FindReady(ctx)
	if err != nil {
		t.Fatalf("FindReady after close: %v", err)
	}
	if got := taskIDs(ready); len(got) != 2 || got[0] != urgent.ID || got[1] != second.ID {
		t.Errorf("FindReady after closing blocker = %v, want [%s %s]", got, urgent.ID, second.ID)
	}
}

func TestNextTasksSeesClosedBlockers(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	ctx := context.Background()

	first := mustCreate(t, alice, schema.TaskParams{Title: "First"})
	second := mustCreate(t, alice, schema.TaskParams{Title: "Second", BlockedBy: []string{first.ID}})
	mustCreate(t, alice, schema.TaskParams{Title: "Third", BlockedBy: []string{second.ID}})

	next, err := alice.NextTasks(ctx)
	if err != nil {
		t.Fatalf("NextTasks: %v", err)
	}
	if got := taskIDs(next); len(got) != 1 || got[0] != first.ID {
		t.Fatalf("NextTasks = %v, want [%s]", got, first.ID)
	}

	if _, err := alice.CloseTask(ctx, first); err != nil {
		t.Fatal(err)
	}
	next, err = alice.NextTasks(ctx)
	if err != nil {
		t.Fatalf("NextTasks: %v", err)
	}
	if got := taskIDs(next); len(got) != 1 || got[0] != second.ID {
		t.Errorf("NextTasks after close = %v, want [%s]", got, second.ID)
	}
}

func TestGetMyTasks(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	bob := h.agent(t, "bob")
	ctx := context.Background()

	open := mustCreate(t, alice, schema.TaskParams{Title: "Open"})
	done := mustCreate(t, alice, schema.TaskParams{Title: "Done"})
	if _, err := alice.CloseTask(ctx, done); err != nil {
		t.Fatal(err)
	}
	mustCreate(t, bob, schema.TaskParams{Title: "Bob's"})

	mine, err := alice.GetMyTasks(ctx)
	if err != nil {
		t.Fatalf("GetMyTasks: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("GetMyTasks returned %d tasks, want 2", len(mine))
	}
	openOnly, err := alice.GetMyTasks(ctx, schema.StatusOpen)
	if err != nil {
		t.Fatalf("GetMyTasks(open): %v", err)
	}
	if got := taskIDs(openOnly); len(got) != 1 || got[0] != open.ID {
		t.Errorf("GetMyTasks(open) = %v, want [%s]", got, open.ID)
	}
}

func TestGetDependencyGraphReportsCycles(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	mustCreate(t, alice, schema.TaskParams{ID: "wl-a", Title: "A", BlockedBy: []string{"wl-b"}})
	mustCreate(t, alice, schema.TaskParams{ID: "wl-b", Title: "B", BlockedBy: []string{"wl-a"}})
	mustCreate(t, alice, schema.TaskParams{ID: "wl-c", Title: "C"})

	graph, err := alice.GetDependencyGraph(context.Background(), schema.TaskFilter{})
	if err != nil {
		t.Fatalf("GetDependencyGraph: %v", err)
	}
	if graph.Len() != 3 {
		t.Fatalf("graph has %d nodes, want 3", graph.Len())
	}
	order, hasCycle := graph.SortResult()
	if !hasCycle || order != nil {
		t.Errorf("SortResult = %v, %v; want nil, true", order, hasCycle)
	}
	if got := len(graph.Cycles()); got != 2 {
		t.Errorf("Cycles has %d members, want 2", got)
	}
}

func TestQueryTasksSkipsMalformed(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	mallory := relaytest.NewSigner("mallory")
	h.relay.Store(mallory.MustSign(event.Template{
		Kind:      event.KindTask,
		CreatedAt: epoch.Unix(),
		Tags:      event.Tags{{"title", "no d tag"}},
	}))
	good := mustCreate(t, alice, schema.TaskParams{Title: "Good"})

	tasks, err := alice.QueryTasks(context.Background(), schema.TaskFilter{})
	if err != nil {
		t.Fatalf("QueryTasks: %v", err)
	}
	if len(tasks) != 1 || tasks[0].EventID != good.EventID {
		t.Errorf("QueryTasks = %+v, want only the well-formed task", tasks)
	}
}

func TestSubscribeToTaskUpdates(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	bob := h.agent(t, "bob")

	received := make(chan schema.Task, 4)
	subscription := bob.SubscribeToTaskUpdates(schema.TaskFilter{Authors: []string{alice.PublicKey()}}, func(task schema.Task) {
		received <- task
	})
	defer subscription.Close()
	testutil.Eventually(t, waitTimeout, func() bool { return len(h.relay.RequestsFor(subscription.ID())) == 1 },
		"waiting for subscription REQ")

	created := mustCreate(t, alice, schema.TaskParams{Title: "Watched"})
	got := testutil.RequireReceive(t, received, waitTimeout, "task update")
	if got.EventID != created.EventID {
		t.Errorf("received %s, want %s", got.EventID, created.EventID)
	}

	mustCreate(t, bob, schema.TaskParams{Title: "Not alice"})
	testutil.RequireNoReceive(t, received, 50*time.Millisecond, "task from another author")
}

func TestMessagingRoundTrip(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	bob := h.agent(t, "bob")
	ctx := context.Background()

	inbox := make(chan schema.Message, 4)
	subscription := bob.SubscribeToMessages(func(message schema.Message) { inbox <- message })
	defer subscription.Close()
	testutil.Eventually(t, waitTimeout, func() bool { return len(h.relay.RequestsFor(subscription.ID())) == 1 },
		"waiting for subscription REQ")

	sent, err := alice.SendMessage(ctx, schema.MessageParams{
		Recipient: bob.PublicKey(),
		Subject:   "Status",
		Content:   "How is the build?",
		Type:      schema.MessageTypeTask,
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	live := testutil.RequireReceive(t, inbox, waitTimeout, "live message")
	if live.EventID != sent.EventID || live.Sender != alice.PublicKey() || live.Type != schema.MessageTypeTask {
		t.Errorf("live message = %+v", live)
	}

	mine, err := bob.GetMyMessages(ctx, schema.MessageFilter{Recipients: []string{"ignored"}})
	if err != nil {
		t.Fatalf("GetMyMessages: %v", err)
	}
	if len(mine) != 1 || mine[0].Subject != "Status" {
		t.Fatalf("GetMyMessages = %+v", mine)
	}

	h.clock.Advance(time.Second)
	reply, err := bob.ReplyToMessage(ctx, mine[0], "Green.")
	if err != nil {
		t.Fatalf("ReplyToMessage: %v", err)
	}
	if reply.Recipient != alice.PublicKey() || reply.Subject != "Re: Status" || reply.ThreadID != sent.EventID || reply.ReplyTo != sent.EventID {
		t.Errorf("reply = %+v", reply)
	}

	h.clock.Advance(time.Second)
	if _, err := alice.ReplyToMessage(ctx, reply, "Thanks."); err != nil {
		t.Fatalf("second ReplyToMessage: %v", err)
	}
	if _, err := alice.SendNotification(ctx, bob.PublicKey(), "Unrelated", "noise", ""); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}

	thread, err := alice.GetMessageThread(ctx, sent.EventID)
	if err != nil {
		t.Fatalf("GetMessageThread: %v", err)
	}
	var contents []string
	for _, message := range thread {
		contents = append(contents, message.Content)
	}
	if strings.Join(contents, "|") != "How is the build?|Green.|Thanks." {
		t.Errorf("thread = %v", contents)
	}
}

func TestConvenienceMessages(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	ctx := context.Background()
	witness := relaytest.NewSigner("witness").PublicKey()

	done, err := alice.SendPolecatDone(ctx, witness, "wl-1234", "")
	if err != nil {
		t.Fatalf("SendPolecatDone: %v", err)
	}
	if done.Type != schema.MessageTypePolecatDone || done.Subject != "Task Completed: wl-1234" || done.Content != "Task wl-1234 completed" {
		t.Errorf("POLECAT_DONE = %+v", done)
	}

	merge, err := alice.SendMergeReady(ctx, witness, "feature/x", "")
	if err != nil {
		t.Fatalf("SendMergeReady: %v", err)
	}
	if merge.Type != schema.MessageTypeMergeReady || merge.Priority != schema.PriorityHigh {
		t.Errorf("MERGE_READY = %+v", merge)
	}

	messages, err := alice.QueryMessages(ctx, schema.MessageFilter{Types: []schema.MessageType{schema.MessageTypeMergeReady}})
	if err != nil {
		t.Fatalf("QueryMessages: %v", err)
	}
	if len(messages) != 1 || messages[0].EventID != merge.EventID {
		t.Errorf("QueryMessages(MERGE_READY) = %+v", messages)
	}
}

func TestSendMessageRejectsInvalidParams(t *testing.T) {
	h := newHarness()
	alice := h.agent(t, "alice")
	ctx := context.Background()
	for _, params := range []schema.MessageParams{
		{Subject: "no recipient"},
		{Recipient: "bob", Type: "SHOUT"},
		{Recipient: "bob", Priority: "p0"},
	} {
		if _, err := alice.SendMessage(ctx, params); !errors.Is(err, client.ErrInvalidParams) {
			t.Errorf("SendMessage(%+v) error = %v, want ErrInvalidParams", params, err)
		}
	}
	if _, err := alice.GetMessageThread(ctx, ""); !errors.Is(err, client.ErrInvalidParams) {
		t.Errorf("GetMessageThread(\"\") error = %v", err)
	}
}
