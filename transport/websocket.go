// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultReadLimit caps a single inbound frame.
const DefaultReadLimit = 1 << 20

// receiveBuffer is the Receive channel capacity. The read loop blocks
// when the consumer falls this far behind.
const receiveBuffer = 64

// closeWriteTimeout bounds the close handshake write in Close.
const closeWriteTimeout = time.Second

// WebsocketDialer dials relays over websocket. The zero value is ready
// to use.
type WebsocketDialer struct {
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Header is sent with the upgrade request.
	Header http.Header

	// ReadLimit defaults to DefaultReadLimit.
	ReadLimit int64
}

// Dial connects to url ("ws://" or "wss://").
func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, response, err := dialer.DialContext(ctx, url, d.Header)
	if response != nil && response.Body != nil {
		response.Body.Close()
	}
	if err != nil {
		return nil, &ConnectError{URL: url, Err: err}
	}
	return WrapWebsocket(conn, d.ReadLimit), nil
}

// WebsocketConn is a Conn over a gorilla websocket connection.
type WebsocketConn struct {
	conn *websocket.Conn

	// writeMu serializes writers; gorilla supports one at a time.
	writeMu sync.Mutex

	receive chan []byte
	done    chan struct{}
	closing chan struct{}

	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// WrapWebsocket takes ownership of conn and starts its read loop.
// readLimit <= 0 means DefaultReadLimit.
func WrapWebsocket(conn *websocket.Conn, readLimit int64) *WebsocketConn {
	if readLimit <= 0 {
		readLimit = DefaultReadLimit
	}
	conn.SetReadLimit(readLimit)

	c := &WebsocketConn{
		conn:    conn,
		receive: make(chan []byte, receiveBuffer),
		done:    make(chan struct{}),
		closing: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *WebsocketConn) readLoop() {
	defer func() {
		close(c.receive)
		close(c.done)
	}()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.setErr(err)
			c.conn.Close()
			return
		}
		select {
		case c.receive <- data:
		case <-c.closing:
			c.setErr(ErrClosed)
			return
		}
	}
}

func (c *WebsocketConn) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	select {
	case <-c.closing:
		c.err = ErrClosed
	default:
		c.err = err
	}
}

// Send writes frame as a text message. A context deadline becomes the
// write deadline.
func (c *WebsocketConn) Send(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return &SendError{Err: ErrClosed}
	case <-c.closing:
		return &SendError{Err: ErrClosed}
	default:
	}
	if err := ctx.Err(); err != nil {
		return &SendError{Err: err}
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline, _ := ctx.Deadline()
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return &SendError{Err: err}
	}
	return nil
}

// Receive returns the inbound frame channel.
func (c *WebsocketConn) Receive() <-chan []byte { return c.receive }

// Done is closed when the read loop exits.
func (c *WebsocketConn) Done() <-chan struct{} { return c.done }

// Err returns the cause of the connection ending.
func (c *WebsocketConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close sends a close frame (best effort) and closes the socket.
func (c *WebsocketConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closing)
		c.writeMu.Lock()
		message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(closeWriteTimeout))
		c.writeMu.Unlock()
		c.conn.Close()
	})
	return nil
}
