// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bureau-foundation/wasteland/lib/testutil"
)

func TestPipeDeliversInOrder(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	ctx := context.Background()
	for _, frame := range []string{"one", "two", "three"} {
		if err := a.Send(ctx, []byte(frame)); err != nil {
			t.Fatalf("Send(%q): %v", frame, err)
		}
	}
	for _, want := range []string{"one", "two", "three"} {
		got := testutil.RequireReceive(t, b.Receive(), time.Second, "waiting for %q", want)
		if string(got) != want {
			t.Fatalf("received %q, want %q", got, want)
		}
	}
}

func TestPipeSendCopiesFrame(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	frame := []byte("abc")
	if err := a.Send(context.Background(), frame); err != nil {
		t.Fatalf("Send: %v", err)
	}
	frame[0] = 'x'
	got := testutil.RequireReceive(t, b.Receive(), time.Second)
	if string(got) != "abc" {
		t.Errorf("received %q, want abc", got)
	}
}

func TestPipeCloseEndsBothSides(t *testing.T) {
	a, b := Pipe()
	a.Close()

	testutil.RequireClosed(t, b.Receive(), time.Second, "peer receive channel")
	testutil.RequireClosed(t, b.Done(), time.Second, "peer done channel")
	if !errors.Is(b.Err(), ErrClosed) {
		t.Errorf("Err() = %v, want ErrClosed", b.Err())
	}

	err := b.Send(context.Background(), []byte("late"))
	if !IsSendError(err) || !errors.Is(err, ErrClosed) {
		t.Errorf("Send after close = %v, want *SendError wrapping ErrClosed", err)
	}
}

func TestPipeCloseWithError(t *testing.T) {
	a, b := Pipe()
	cause := errors.New("cable cut")
	b.CloseWithError(cause)

	testutil.RequireClosed(t, a.Done(), time.Second)
	if !errors.Is(a.Err(), cause) {
		t.Errorf("Err() = %v, want %v", a.Err(), cause)
	}
	// A second close does not overwrite the cause.
	a.Close()
	if !errors.Is(a.Err(), cause) {
		t.Errorf("Err() after second close = %v, want %v", a.Err(), cause)
	}
}

func TestPipeSendCancelledContext(t *testing.T) {
	a, _ := Pipe()
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Send(ctx, []byte("x")); !IsSendError(err) || !errors.Is(err, context.Canceled) {
		t.Errorf("Send with cancelled ctx = %v, want *SendError wrapping context.Canceled", err)
	}
}
