// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"sync"
)

// Pipe returns two connected in-memory Conns. A frame sent on one is
// received on the other. Sends never block: each end queues without
// bound. Closing either end ends both.
func Pipe() (*PipeConn, *PipeConn) {
	state := &pipeState{closed: make(chan struct{})}
	a := newPipeEnd(state)
	b := newPipeEnd(state)
	a.peer, b.peer = b, a
	go a.pump()
	go b.pump()
	return a, b
}

type pipeState struct {
	once   sync.Once
	closed chan struct{}

	mu  sync.Mutex
	err error
}

func (s *pipeState) close(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.closed)
	})
}

// PipeConn is one end of a Pipe.
type PipeConn struct {
	state *pipeState
	peer  *PipeConn

	mu     sync.Mutex
	queue  [][]byte
	signal chan struct{}

	receive chan []byte
	done    chan struct{}
}

func newPipeEnd(state *pipeState) *PipeConn {
	return &PipeConn{
		state:   state,
		signal:  make(chan struct{}, 1),
		receive: make(chan []byte),
		done:    make(chan struct{}),
	}
}

// pump moves queued frames onto the receive channel in order.
func (p *PipeConn) pump() {
	defer func() {
		close(p.receive)
		close(p.done)
	}()
	for {
		p.mu.Lock()
		var next []byte
		ready := len(p.queue) > 0
		if ready {
			next = p.queue[0]
			p.queue[0] = nil
			p.queue = p.queue[1:]
		}
		p.mu.Unlock()

		if !ready {
			select {
			case <-p.signal:
				continue
			case <-p.state.closed:
				return
			}
		}
		select {
		case p.receive <- next:
		case <-p.state.closed:
			return
		}
	}
}

func (p *PipeConn) enqueue(frame []byte) {
	p.mu.Lock()
	p.queue = append(p.queue, frame)
	p.mu.Unlock()
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

// Send queues a copy of frame for the peer.
func (p *PipeConn) Send(ctx context.Context, frame []byte) error {
	select {
	case <-p.state.closed:
		return &SendError{Err: ErrClosed}
	default:
	}
	if err := ctx.Err(); err != nil {
		return &SendError{Err: err}
	}
	p.peer.enqueue(append([]byte(nil), frame...))
	return nil
}

// Receive returns the inbound frame channel.
func (p *PipeConn) Receive() <-chan []byte { return p.receive }

// Done is closed once this end's receive channel is closed.
func (p *PipeConn) Done() <-chan struct{} { return p.done }

// Err returns the close cause for both ends.
func (p *PipeConn) Err() error {
	p.state.mu.Lock()
	defer p.state.mu.Unlock()
	return p.state.err
}

// Close ends both sides with ErrClosed.
func (p *PipeConn) Close() error {
	p.state.close(ErrClosed)
	return nil
}

// CloseWithError ends both sides with err as the cause, simulating a
// network failure.
func (p *PipeConn) CloseWithError(err error) {
	p.state.close(err)
}
