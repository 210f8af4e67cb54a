// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package relay_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/wasteland/lib/clock"
	"github.com/bureau-foundation/wasteland/lib/event"
	"github.com/bureau-foundation/wasteland/lib/schema"
	"github.com/bureau-foundation/wasteland/lib/testutil"
	"github.com/bureau-foundation/wasteland/relay"
	"github.com/bureau-foundation/wasteland/relay/relaytest"
	"github.com/bureau-foundation/wasteland/transport"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const waitTimeout = 5 * time.Second

type harness struct {
	relay  *relaytest.Relay
	clock  *clock.FakeClock
	conn   *relay.Conn
	signer *relaytest.Signer
}

func newHarness(t *testing.T, mutate func(*relay.Config)) *harness {
	t.Helper()
	fakeRelay := relaytest.New()
	fake := clock.Fake(epoch)
	config := relay.Config{
		URL:    "ws://relay.test",
		Dialer: fakeRelay,
		Clock:  fake,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if mutate != nil {
		mutate(&config)
	}
	conn := relay.New(config)
	t.Cleanup(func() { conn.Close() })
	return &harness{relay: fakeRelay, clock: fake, conn: conn, signer: relaytest.NewSigner("alice")}
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	if err := h.conn.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func (h *harness) task(id string, createdAt int64) event.Event {
	return h.signer.MustSign(schema.BuildTask(schema.TaskParams{ID: id, Title: id}, createdAt))
}

func taskFilter() event.Filter {
	return event.Filter{Kinds: []int{event.KindTask}}
}

// waitForRequests blocks until the relay has recorded n REQ frames.
func waitForRequests(t *testing.T, r *relaytest.Relay, n int) []relaytest.Request {
	t.Helper()
	testutil.Eventually(t, waitTimeout, func() bool { return len(r.Requests()) >= n },
		"waiting for %d REQ frames", n)
	return r.Requests()
}

func TestQueryReturnsStoredEventsOnce(t *testing.T) {
	h := newHarness(t, nil)
	first, second := h.task("a", 1), h.task("b", 2)
	message := h.signer.MustSign(schema.BuildMessage(schema.MessageParams{Recipient: "bob"}, 3))
	h.relay.Store(first, second, message)
	h.relay.SetDuplicateDelivery(true)
	h.connect(t)

	events, err := h.conn.Query(context.Background(), taskFilter())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 2 || events[0].ID != first.ID || events[1].ID != second.ID {
		t.Fatalf("Query returned %d events, want [a b] once each", len(events))
	}

	id := waitForRequests(t, h.relay, 1)[0].SubscriptionID
	testutil.Eventually(t, waitTimeout, func() bool {
		closes := h.relay.Closes()
		return len(closes) == 1 && closes[0] == id
	}, "waiting for CLOSE after EOSE")
}

func TestQueryIgnoresSharedSeenCache(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	subscription := h.conn.Subscribe(taskFilter())
	waitForRequests(t, h.relay, 1)

	e := h.task("a", 1)
	h.relay.Inject(e)
	testutil.RequireReceive(t, subscription.Events(), waitTimeout, "live delivery")

	events, err := h.conn.Query(context.Background(), taskFilter())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 || events[0].ID != e.ID {
		t.Errorf("Query after live delivery = %d events, want the already-seen event", len(events))
	}
}

func TestQueryTimeoutReturnsPartialResults(t *testing.T) {
	noticed := make(chan string, 1)
	h := newHarness(t, func(config *relay.Config) {
		config.PaymentHook = func(notice string) { noticed <- notice }
	})
	h.relay.SetSuppressEOSE(true)
	h.connect(t)

	type result struct {
		events []event.Event
		err    error
	}
	done := make(chan result, 1)
	go func() {
		events, err := h.conn.Query(context.Background(), taskFilter())
		done <- result{events, err}
	}()

	id := waitForRequests(t, h.relay, 1)[0].SubscriptionID
	e := h.task("partial", 1)
	h.relay.Deliver(id, e)
	// Frames are processed in order: once the hook fires for this
	// NOTICE, the event before it has been collected.
	h.relay.Notice("payment sync")
	testutil.RequireReceive(t, noticed, waitTimeout, "waiting for NOTICE")

	h.clock.WaitForTimers(1)
	h.clock.Advance(relay.DefaultQueryTimeout)

	got := testutil.RequireReceive(t, done, waitTimeout, "waiting for query to time out")
	if got.err != nil {
		t.Fatalf("Query error = %v, want nil on timeout", got.err)
	}
	if len(got.events) != 1 || got.events[0].ID != e.ID {
		t.Fatalf("Query = %d events, want the one delivered before timeout", len(got.events))
	}
	testutil.Eventually(t, waitTimeout, func() bool { return len(h.relay.Closes()) == 1 },
		"waiting for CLOSE after timeout")
}

func TestQueryEndsOnClosed(t *testing.T) {
	h := newHarness(t, nil)
	h.relay.SetSuppressEOSE(true)
	h.connect(t)

	done := make(chan error, 1)
	go func() {
		_, err := h.conn.Query(context.Background(), taskFilter())
		done <- err
	}()
	id := waitForRequests(t, h.relay, 1)[0].SubscriptionID
	h.relay.CloseSubscription(id, "error: too many subscriptions")

	if err := testutil.RequireReceive(t, done, waitTimeout, "waiting for query to end on CLOSED"); err != nil {
		t.Errorf("Query error = %v, want nil", err)
	}
}

func TestQueryRequiresConnection(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.conn.Query(context.Background(), taskFilter())
	if !transport.IsSendError(err) || !errors.Is(err, relay.ErrNotConnected) {
		t.Errorf("Query while disconnected = %v, want *SendError wrapping ErrNotConnected", err)
	}
}

func TestSubscriptionDeduplicates(t *testing.T) {
	h := newHarness(t, nil)
	h.relay.SetDuplicateDelivery(true)
	h.connect(t)
	subscription := h.conn.Subscribe(taskFilter())
	waitForRequests(t, h.relay, 1)

	e := h.task("a", 1)
	h.relay.Inject(e)

	got := testutil.RequireReceive(t, subscription.Events(), waitTimeout, "waiting for event")
	if got.ID != e.ID {
		t.Fatalf("received %s, want %s", got.ID, e.ID)
	}
	testutil.RequireNoReceive(t, subscription.Events(), 100*time.Millisecond, "duplicate delivered")
}

func TestSubscriptionPreservesOrder(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	subscription := h.conn.Subscribe(taskFilter())
	waitForRequests(t, h.relay, 1)

	var want []string
	for i := 0; i < 20; i++ {
		e := h.task(string(rune('a'+i)), int64(i))
		want = append(want, e.ID)
		h.relay.Inject(e)
	}
	for i, id := range want {
		got := testutil.RequireReceive(t, subscription.Events(), waitTimeout, "event %d", i)
		if got.ID != id {
			t.Fatalf("event %d = %s, want %s", i, got.ID, id)
		}
	}
}

func TestSubscribeWhileDisconnectedSendsOnConnect(t *testing.T) {
	h := newHarness(t, nil)
	subscription := h.conn.Subscribe(taskFilter())
	if len(h.relay.Requests()) != 0 {
		t.Fatal("REQ sent while disconnected")
	}

	h.connect(t)
	requests := waitForRequests(t, h.relay, 1)
	if requests[0].SubscriptionID != subscription.ID() {
		t.Errorf("REQ id = %s, want %s", requests[0].SubscriptionID, subscription.ID())
	}
}

func TestUnsubscribe(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	subscription := h.conn.Subscribe(taskFilter())
	waitForRequests(t, h.relay, 1)

	subscription.Close()
	testutil.RequireClosed(t, subscription.Events(), waitTimeout, "events channel after Close")
	testutil.Eventually(t, waitTimeout, func() bool {
		closes := h.relay.Closes()
		return len(closes) == 1 && closes[0] == subscription.ID()
	}, "waiting for CLOSE")
	if ids := h.conn.Subscriptions(); len(ids) != 0 {
		t.Errorf("Subscriptions() = %v after Close, want none", ids)
	}

	// Unknown and repeated ids are ignored.
	h.conn.Unsubscribe(subscription.ID())
	h.conn.Unsubscribe("never-registered")
}

func TestSubscribeFunc(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	received := make(chan event.Event, 1)
	h.conn.SubscribeFunc(func(e event.Event) { received <- e }, taskFilter())
	waitForRequests(t, h.relay, 1)

	e := h.task("a", 1)
	h.relay.Inject(e)
	if got := testutil.RequireReceive(t, received, waitTimeout); got.ID != e.ID {
		t.Errorf("handler got %s, want %s", got.ID, e.ID)
	}
}

func TestVerifyDropsForgedEvents(t *testing.T) {
	signer := relaytest.NewSigner("alice")
	h := newHarness(t, func(config *relay.Config) { config.Verify = signer.Verify })
	h.connect(t)
	subscription := h.conn.Subscribe(taskFilter())
	waitForRequests(t, h.relay, 1)

	forged := h.task("forged", 1)
	forged.Content = "tampered"
	h.relay.Inject(forged)
	genuine := h.task("genuine", 2)
	h.relay.Inject(genuine)

	if got := testutil.RequireReceive(t, subscription.Events(), waitTimeout); got.ID != genuine.ID {
		t.Errorf("received %s, want only the genuine event", got.ID)
	}
}

func TestReconnectReplaysSubscriptions(t *testing.T) {
	var stateMu sync.Mutex
	var states []relay.State
	h := newHarness(t, func(config *relay.Config) {
		config.OnStateChange = func(state relay.State) {
			stateMu.Lock()
			states = append(states, state)
			stateMu.Unlock()
		}
	})
	h.connect(t)
	filter := event.Filter{Kinds: []int{event.KindTask}, Authors: []string{h.signer.PublicKey()}}
	subscription := h.conn.Subscribe(filter)
	waitForRequests(t, h.relay, 1)

	first := h.task("before", 1)
	h.relay.Inject(first)
	testutil.RequireReceive(t, subscription.Events(), waitTimeout, "event before drop")

	h.relay.Kick()
	h.clock.WaitForTimers(1)
	if state := h.conn.State(); state != relay.StateReconnecting {
		t.Fatalf("State() after drop = %v, want reconnecting", state)
	}
	testutil.Eventually(t, waitTimeout, func() bool {
		stateMu.Lock()
		defer stateMu.Unlock()
		return len(states) == 3
	}, "waiting for reconnecting notification")

	h.clock.Advance(relay.DefaultInitialDelay)
	if state := h.conn.State(); state != relay.StateConnected {
		t.Fatalf("State() after backoff = %v, want connected", state)
	}

	requests := waitForRequests(t, h.relay, 2)
	for i, request := range h.relay.RequestsFor(subscription.ID()) {
		if !reflect.DeepEqual(request.Filters, []event.Filter{filter}) {
			t.Errorf("REQ %d filters = %+v, want %+v", i, request.Filters, filter)
		}
	}
	if len(requests) != 2 || requests[1].SubscriptionID != subscription.ID() {
		t.Fatalf("replayed REQ = %+v, want the original subscription id", requests)
	}

	second := h.task("after", 2)
	h.relay.Inject(second)
	got := testutil.RequireReceive(t, subscription.Events(), waitTimeout, "event after reconnect")
	if got.ID != second.ID {
		t.Fatalf("after reconnect received %s, want %s (the pre-drop event must not repeat)", got.ID, second.ID)
	}
	testutil.RequireNoReceive(t, subscription.Events(), 100*time.Millisecond, "redelivery after reconnect")

	stateMu.Lock()
	defer stateMu.Unlock()
	want := []relay.State{
		relay.StateConnecting, relay.StateConnected,
		relay.StateReconnecting,
		relay.StateConnecting, relay.StateConnected,
	}
	if !reflect.DeepEqual(states, want) {
		t.Errorf("state transitions = %v, want %v", states, want)
	}
}

func TestReconnectBackoff(t *testing.T) {
	var mu sync.Mutex
	var failedAttempts []int
	h := newHarness(t, func(config *relay.Config) {
		config.OnReconnectError = func(attempt int, err error) {
			mu.Lock()
			failedAttempts = append(failedAttempts, attempt)
			mu.Unlock()
		}
	})
	h.relay.RefuseAllDials(true)

	err := h.conn.Connect(context.Background())
	if !transport.IsConnectError(err) {
		t.Fatalf("Connect error = %v, want *ConnectError", err)
	}
	if h.relay.Dials() != 1 {
		t.Fatalf("Dials() = %d, want 1", h.relay.Dials())
	}

	// Delays double from one second: 1s, 2s, 4s.
	for i, delay := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		h.clock.Advance(delay - time.Millisecond)
		if got := h.relay.Dials(); got != i+1 {
			t.Fatalf("Dials() before delay %v elapsed = %d, want %d", delay, got, i+1)
		}
		h.clock.Advance(time.Millisecond)
		if got := h.relay.Dials(); got != i+2 {
			t.Fatalf("Dials() after delay %v = %d, want %d", delay, got, i+2)
		}
	}

	mu.Lock()
	if !reflect.DeepEqual(failedAttempts, []int{0, 1, 2}) {
		t.Errorf("OnReconnectError attempts = %v, want [0 1 2]", failedAttempts)
	}
	mu.Unlock()

	// The relay recovers; the next attempt (8s) succeeds and resets the
	// counter, so a later drop waits one second again.
	h.relay.RefuseAllDials(false)
	h.clock.Advance(8 * time.Second)
	if !h.conn.Connected() {
		t.Fatalf("State() = %v after recovery, want connected", h.conn.State())
	}

	h.relay.Kick()
	h.clock.WaitForTimers(1)
	dials := h.relay.Dials()
	h.clock.Advance(time.Second)
	if got := h.relay.Dials(); got != dials+1 {
		t.Errorf("Dials() one second after drop = %d, want %d", got, dials+1)
	}
	if !h.conn.Connected() {
		t.Errorf("State() = %v, want connected", h.conn.State())
	}
}

func TestReconnectGivesUpAfterMaxRetries(t *testing.T) {
	exhausted := make(chan error, 4)
	h := newHarness(t, func(config *relay.Config) {
		config.Reconnect = relay.ReconnectPolicy{MaxRetries: 2}
		config.OnReconnectError = func(attempt int, err error) {
			if errors.Is(err, relay.ErrRetriesExhausted) {
				exhausted <- err
			}
		}
	})
	h.relay.RefuseAllDials(true)

	h.conn.Connect(context.Background())
	h.clock.Advance(time.Second)
	h.clock.Advance(2 * time.Second)

	testutil.RequireReceive(t, exhausted, waitTimeout, "waiting for retries to be exhausted")
	if got := h.relay.Dials(); got != 3 {
		t.Errorf("Dials() = %d, want 3 (initial plus two retries)", got)
	}
	if h.clock.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want no reconnect scheduled", h.clock.PendingCount())
	}
	if state := h.conn.State(); state != relay.StateDisconnected {
		t.Errorf("State() = %v, want disconnected", state)
	}
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	subscription := h.conn.Subscribe(taskFilter())
	waitForRequests(t, h.relay, 1)

	h.conn.Disconnect()
	if state := h.conn.State(); state != relay.StateDisconnected {
		t.Fatalf("State() = %v, want disconnected", state)
	}
	testutil.Eventually(t, waitTimeout, func() bool { return h.relay.Clients() == 0 }, "relay sees disconnect")
	if h.clock.PendingCount() != 0 {
		t.Fatalf("PendingCount() = %d after Disconnect, want 0", h.clock.PendingCount())
	}

	// The subscription survives and is replayed by an explicit Connect.
	h.connect(t)
	requests := waitForRequests(t, h.relay, 2)
	if requests[1].SubscriptionID != subscription.ID() {
		t.Errorf("replayed id = %s, want %s", requests[1].SubscriptionID, subscription.ID())
	}
}

func TestConnectIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	h.connect(t)
	if got := h.relay.Dials(); got != 1 {
		t.Errorf("Dials() = %d, want 1", got)
	}
}

func TestPublishAccepted(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)

	e := h.task("a", 1)
	if err := h.conn.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	published := h.relay.Published()
	if len(published) != 1 || published[0].ID != e.ID {
		t.Errorf("relay saw %d publishes, want the event", len(published))
	}
}

func TestPublishRejected(t *testing.T) {
	h := newHarness(t, nil)
	h.relay.SetReject("blocked: not on allowlist")
	h.connect(t)

	err := h.conn.Publish(context.Background(), h.task("a", 1))
	var rejected *relay.PublishRejected
	if !errors.As(err, &rejected) {
		t.Fatalf("Publish error = %v, want *PublishRejected", err)
	}
	if rejected.Reason != "blocked: not on allowlist" {
		t.Errorf("Reason = %q", rejected.Reason)
	}
}

func TestPublishTimeout(t *testing.T) {
	h := newHarness(t, nil)
	h.relay.SetDropOK(true)
	h.connect(t)

	done := make(chan error, 1)
	go func() { done <- h.conn.Publish(context.Background(), h.task("a", 1)) }()
	h.clock.WaitForTimers(1)
	h.clock.Advance(relay.DefaultPublishTimeout)

	if err := testutil.RequireReceive(t, done, waitTimeout); !errors.Is(err, relay.ErrTimeout) {
		t.Errorf("Publish error = %v, want ErrTimeout", err)
	}
}

func TestPublishConnectionLost(t *testing.T) {
	h := newHarness(t, nil)
	h.relay.SetDropOK(true)
	h.connect(t)

	done := make(chan error, 1)
	go func() { done <- h.conn.Publish(context.Background(), h.task("a", 1)) }()
	h.clock.WaitForTimers(1)
	h.relay.Kick()

	err := testutil.RequireReceive(t, done, waitTimeout)
	if !transport.IsSendError(err) || !errors.Is(err, relay.ErrConnectionLost) {
		t.Errorf("Publish error = %v, want *SendError wrapping ErrConnectionLost", err)
	}
}

func TestPublishRequiresConnection(t *testing.T) {
	h := newHarness(t, nil)
	err := h.conn.Publish(context.Background(), h.task("a", 1))
	if !transport.IsSendError(err) {
		t.Errorf("Publish while disconnected = %v, want *SendError", err)
	}
}

func TestPaymentHook(t *testing.T) {
	notices := make(chan string, 4)
	h := newHarness(t, func(config *relay.Config) {
		config.PaymentHook = func(notice string) { notices <- notice }
	})
	h.connect(t)
	testutil.Eventually(t, waitTimeout, func() bool { return h.relay.Clients() == 1 }, "relay sees client")

	h.relay.Notice("rate limited")
	h.relay.Notice("ILP payment required: 100 units")

	got := testutil.RequireReceive(t, notices, waitTimeout)
	if !strings.HasPrefix(got, "ILP") {
		t.Errorf("hook received %q, want the payment notice", got)
	}
	testutil.RequireNoReceive(t, notices, 100*time.Millisecond, "non-payment notice reached the hook")
}

func TestLiveSubscriptionSurvivesClosed(t *testing.T) {
	noticed := make(chan string, 1)
	h := newHarness(t, func(config *relay.Config) {
		config.PaymentHook = func(notice string) { noticed <- notice }
	})
	h.connect(t)
	subscription := h.conn.Subscribe(taskFilter())
	waitForRequests(t, h.relay, 1)

	h.relay.CloseSubscription(subscription.ID(), "error: restarting")
	h.relay.Notice("payment probe")
	testutil.RequireReceive(t, noticed, waitTimeout, "waiting for frames after CLOSED")
	if ids := h.conn.Subscriptions(); len(ids) != 1 || ids[0] != subscription.ID() {
		t.Fatalf("Subscriptions() after CLOSED = %v, want the subscription kept", ids)
	}

	h.relay.Kick()
	h.clock.WaitForTimers(1)
	h.clock.Advance(time.Second)
	testutil.Eventually(t, waitTimeout, func() bool {
		return len(h.relay.RequestsFor(subscription.ID())) == 2
	}, "waiting for replay of the CLOSED subscription")
}

func TestCloseEndsSubscriptions(t *testing.T) {
	h := newHarness(t, nil)
	h.connect(t)
	subscription := h.conn.Subscribe(taskFilter())

	h.conn.Close()
	testutil.RequireClosed(t, subscription.Events(), waitTimeout)
	if err := h.conn.Connect(context.Background()); !errors.Is(err, relay.ErrClosed) {
		t.Errorf("Connect after Close = %v, want ErrClosed", err)
	}
}

func TestWebsocketEndToEnd(t *testing.T) {
	fakeRelay := relaytest.New()
	server := httptest.NewServer(fakeRelay)
	defer server.Close()

	conn := relay.New(relay.Config{
		URL:    "ws" + strings.TrimPrefix(server.URL, "http"),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	signer := relaytest.NewSigner("carol")
	e := signer.MustSign(schema.BuildTask(schema.TaskParams{ID: "ws", Title: "over the wire"}, 10))
	if err := conn.Publish(ctx, e); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	events, err := conn.Query(ctx, taskFilter())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(events) != 1 || !signer.Verify(events[0]) {
		t.Fatalf("Query over websocket = %+v, want the verified published event", events)
	}
}
