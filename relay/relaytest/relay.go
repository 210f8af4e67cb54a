// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package relaytest provides an in-process NIP-01 relay and a
// deterministic signer for tests.
//
// [Relay] implements [transport.Dialer] over in-memory pipes and
// [http.Handler] over websocket, so the same fake serves unit tests
// and transport-level tests. It stores non-ephemeral events, answers
// REQ with stored matches followed by EOSE, fans published events out
// to matching live subscriptions, and records every REQ and CLOSE it
// sees. Knobs simulate misbehaving relays: suppressed EOSE, rejected
// or unacknowledged publishes, duplicate delivery, refused dials, and
// dropped connections.
package relaytest

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bureau-foundation/wasteland/lib/event"
	"github.com/bureau-foundation/wasteland/relay"
	"github.com/bureau-foundation/wasteland/transport"
)

// ErrKicked is the close cause for connections dropped by Kick.
var ErrKicked = errors.New("relaytest: connection dropped by relay")

// ErrRefused is the cause inside ConnectErrors from refused dials.
var ErrRefused = errors.New("relaytest: connection refused")

const sendTimeout = 5 * time.Second

// Request is a recorded REQ.
type Request struct {
	SubscriptionID string
	Filters        []event.Filter
}

// Relay is a fake relay. The zero value is not usable; call New.
type Relay struct {
	upgrader websocket.Upgrader

	mu        sync.Mutex
	stored    []event.Event
	published []event.Event
	requests  []Request
	closes    []string
	clients   map[*client]struct{}
	dials     int

	suppressEOSE      bool
	rejectReason      string
	dropOK            bool
	duplicateDelivery bool
	refuseDials       int
	refuseAll         bool
}

type client struct {
	conn transport.Conn

	mu            sync.Mutex
	subscriptions map[string][]event.Filter
}

// New returns an empty relay.
func New() *Relay {
	return &Relay{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*client]struct{}),
	}
}

// Dial connects a new in-memory client. The URL is ignored.
func (r *Relay) Dial(ctx context.Context, url string) (transport.Conn, error) {
	r.mu.Lock()
	r.dials++
	refuse := r.refuseAll || r.refuseDials > 0
	if r.refuseDials > 0 {
		r.refuseDials--
	}
	r.mu.Unlock()

	if refuse {
		return nil, &transport.ConnectError{URL: url, Err: ErrRefused}
	}
	if err := ctx.Err(); err != nil {
		return nil, &transport.ConnectError{URL: url, Err: err}
	}
	clientEnd, relayEnd := transport.Pipe()
	r.attach(relayEnd)
	return clientEnd, nil
}

// ServeHTTP upgrades to websocket and serves the connection.
func (r *Relay) ServeHTTP(w http.ResponseWriter, request *http.Request) {
	conn, err := r.upgrader.Upgrade(w, request, nil)
	if err != nil {
		return
	}
	r.attach(transport.WrapWebsocket(conn, 0))
}

func (r *Relay) attach(conn transport.Conn) {
	c := &client{conn: conn, subscriptions: make(map[string][]event.Filter)}
	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()
	go r.serve(c)
}

func (r *Relay) serve(c *client) {
	defer func() {
		r.mu.Lock()
		delete(r.clients, c)
		r.mu.Unlock()
	}()
	for data := range c.conn.Receive() {
		frame, err := relay.DecodeFrame(data)
		if err != nil {
			r.send(c, mustEncode(relay.EncodeNotice("error: " + err.Error())))
			continue
		}
		switch frame.Type {
		case relay.FrameEvent:
			if frame.Event != nil {
				r.handlePublish(c, *frame.Event)
			}
		case relay.FrameReq:
			r.handleReq(c, frame.SubscriptionID, frame.Filters)
		case relay.FrameClose:
			c.mu.Lock()
			delete(c.subscriptions, frame.SubscriptionID)
			c.mu.Unlock()
			r.mu.Lock()
			r.closes = append(r.closes, frame.SubscriptionID)
			r.mu.Unlock()
		}
	}
}

func (r *Relay) handlePublish(c *client, e event.Event) {
	r.mu.Lock()
	r.published = append(r.published, e)
	reject := r.rejectReason
	dropOK := r.dropOK
	if reject == "" {
		r.storeLocked(e)
	}
	r.mu.Unlock()

	if reject != "" {
		r.send(c, mustEncode(relay.EncodeOK(e.ID, false, reject)))
		return
	}
	if !dropOK {
		r.send(c, mustEncode(relay.EncodeOK(e.ID, true, "")))
	}
	r.fanOut(e)
}

func (r *Relay) handleReq(c *client, subscriptionID string, filters []event.Filter) {
	c.mu.Lock()
	c.subscriptions[subscriptionID] = slices.Clone(filters)
	c.mu.Unlock()

	r.mu.Lock()
	r.requests = append(r.requests, Request{SubscriptionID: subscriptionID, Filters: slices.Clone(filters)})
	matches := matchStored(r.stored, filters)
	suppressEOSE := r.suppressEOSE
	duplicate := r.duplicateDelivery
	r.mu.Unlock()

	for _, e := range matches {
		frame := mustEncode(relay.EncodeSubscriptionEvent(subscriptionID, e))
		r.send(c, frame)
		if duplicate {
			r.send(c, frame)
		}
	}
	if !suppressEOSE {
		r.send(c, mustEncode(relay.EncodeEOSE(subscriptionID)))
	}
}

// matchStored returns stored events matching any filter, honouring
// each filter's limit by keeping its newest matches.
func matchStored(stored []event.Event, filters []event.Filter) []event.Event {
	seen := make(map[string]struct{})
	var matches []event.Event
	for _, filter := range filters {
		var filterMatches []event.Event
		for _, e := range stored {
			if filter.Matches(e) {
				filterMatches = append(filterMatches, e)
			}
		}
		if filter.Limit > 0 && len(filterMatches) > filter.Limit {
			filterMatches = filterMatches[len(filterMatches)-filter.Limit:]
		}
		for _, e := range filterMatches {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			matches = append(matches, e)
		}
	}
	return matches
}

// fanOut delivers e to every live subscription it matches.
func (r *Relay) fanOut(e event.Event) {
	r.mu.Lock()
	clients := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	duplicate := r.duplicateDelivery
	r.mu.Unlock()

	for _, c := range clients {
		c.mu.Lock()
		var targets []string
		for id, filters := range c.subscriptions {
			if event.MatchesAny(filters, e) {
				targets = append(targets, id)
			}
		}
		c.mu.Unlock()
		for _, id := range targets {
			frame := mustEncode(relay.EncodeSubscriptionEvent(id, e))
			r.send(c, frame)
			if duplicate {
				r.send(c, frame)
			}
		}
	}
}

func (r *Relay) send(c *client, frame []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	c.conn.Send(ctx, frame)
}

func (r *Relay) broadcast(frame []byte) {
	r.mu.Lock()
	clients := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()
	for _, c := range clients {
		r.send(c, frame)
	}
}

func mustEncode(frame []byte, err error) []byte {
	if err != nil {
		panic("relaytest: " + err.Error())
	}
	return frame
}

// Store adds events without notifying live subscriptions.
func (r *Relay) Store(events ...event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range events {
		r.storeLocked(e)
	}
}

// storeLocked keeps e the way a relay does: ephemeral kinds are not
// stored, and an addressable event with a "d" tag replaces any older
// event with the same author, kind and "d" value. Messages are
// addressable by kind but carry no "d" tag, so they accumulate.
func (r *Relay) storeLocked(e event.Event) {
	if event.IsEphemeral(e.Kind) {
		return
	}
	if dTag, ok := e.Tags.Find("d"); ok && event.IsAddressable(e.Kind) {
		d := dTag.Value()
		for i, existing := range r.stored {
			if existing.Kind != e.Kind || existing.PubKey != e.PubKey || existing.Tags.Value("d") != d {
				continue
			}
			if existing.CreatedAt > e.CreatedAt || (existing.CreatedAt == e.CreatedAt && existing.ID > e.ID) {
				return
			}
			r.stored = append(r.stored[:i], r.stored[i+1:]...)
			break
		}
	}
	r.stored = append(r.stored, e)
}

// Inject stores e (unless ephemeral) and delivers it to matching live
// subscriptions, as if another client had published it.
func (r *Relay) Inject(e event.Event) {
	r.mu.Lock()
	r.storeLocked(e)
	r.mu.Unlock()
	r.fanOut(e)
}

// Deliver sends e on subscriptionID to every client, whether or not
// it matches. Used to simulate relays that redeliver.
func (r *Relay) Deliver(subscriptionID string, e event.Event) {
	r.broadcast(mustEncode(relay.EncodeSubscriptionEvent(subscriptionID, e)))
}

// Notice sends NOTICE to every client.
func (r *Relay) Notice(message string) {
	r.broadcast(mustEncode(relay.EncodeNotice(message)))
}

// CloseSubscription sends CLOSED for subscriptionID to every client
// and forgets it.
func (r *Relay) CloseSubscription(subscriptionID, message string) {
	r.mu.Lock()
	for c := range r.clients {
		c.mu.Lock()
		delete(c.subscriptions, subscriptionID)
		c.mu.Unlock()
	}
	r.mu.Unlock()
	r.broadcast(mustEncode(relay.EncodeClosed(subscriptionID, message)))
}

// Kick drops every client connection with ErrKicked as the cause.
func (r *Relay) Kick() {
	r.mu.Lock()
	clients := make([]*client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()
	for _, c := range clients {
		if pipe, ok := c.conn.(interface{ CloseWithError(error) }); ok {
			pipe.CloseWithError(ErrKicked)
			continue
		}
		c.conn.Close()
	}
}

// SetSuppressEOSE stops the relay from sending EOSE after stored
// events.
func (r *Relay) SetSuppressEOSE(suppress bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressEOSE = suppress
}

// SetReject makes every publish fail with reason. Empty accepts.
func (r *Relay) SetReject(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejectReason = reason
}

// SetDropOK stores publishes without answering OK.
func (r *Relay) SetDropOK(drop bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropOK = drop
}

// SetDuplicateDelivery sends every subscription event twice.
func (r *Relay) SetDuplicateDelivery(duplicate bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.duplicateDelivery = duplicate
}

// RefuseDials makes the next n dials fail.
func (r *Relay) RefuseDials(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refuseDials = n
}

// RefuseAllDials makes every dial fail until called with false.
func (r *Relay) RefuseAllDials(refuse bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refuseAll = refuse
}

// Dials returns the number of Dial calls, refused ones included.
func (r *Relay) Dials() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dials
}

// Clients returns the number of connected clients.
func (r *Relay) Clients() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Requests returns every REQ received, in order.
func (r *Relay) Requests() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.requests)
}

// RequestsFor returns the REQs received for subscriptionID.
func (r *Relay) RequestsFor(subscriptionID string) []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matching []Request
	for _, request := range r.requests {
		if request.SubscriptionID == subscriptionID {
			matching = append(matching, request)
		}
	}
	return matching
}

// Closes returns every CLOSE received, in order.
func (r *Relay) Closes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.closes)
}

// Published returns every event clients published, in order.
func (r *Relay) Published() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.published)
}

// Stored returns the stored events.
func (r *Relay) Stored() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.stored)
}
