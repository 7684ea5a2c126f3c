// internal/hub/client.go
package hub

import (
	"context"
	"sync"
	"sync/atomic"
)

// ClientID identifies a registered client. Ids are never reused.
type ClientID string

// State is a client's position in its Open -> Closing -> Closed lifecycle.
type State int32

const (
	StateOpen State = iota
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Conn is the transport behind a client: a source of whole text messages and
// a sink for outbound ones. Close must unblock pending ReadMessage and
// WriteMessage calls.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(payload []byte) error
	Close() error
	RemoteAddr() string
}

// Client represents a registered connection.
type Client struct {
	id   ClientID
	conn Conn
	send chan []byte
	done chan struct{}

	state     atomic.Int32
	closeOnce sync.Once
}

func newClient(id ClientID, conn Conn, buffer int) *Client {
	if buffer < 1 {
		buffer = 1
	}
	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

// ID returns the id assigned at registration.
func (c *Client) ID() ClientID { return c.id }

// State returns the client's current lifecycle state.
func (c *Client) State() State { return State(c.state.Load()) }

// beginClose moves an open client to Closing. Called with the Registry lock held.
func (c *Client) beginClose() {
	c.state.CompareAndSwap(int32(StateOpen), int32(StateClosing))
}

// close stops the pumps and releases the transport. Safe to call repeatedly.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.beginClose()
		close(c.done)
		_ = c.conn.Close()
		c.state.Store(int32(StateClosed))
	})
}

// enqueue places payload on the send queue, waiting for room until ctx expires.
// send is never closed; done signals shutdown.
func (c *Client) enqueue(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.send <- payload:
		return nil
	default:
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return ErrClientClosed
	case <-ctx.Done():
		return ErrSendTimeout
	}
}
