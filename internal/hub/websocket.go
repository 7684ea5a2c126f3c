// internal/hub/websocket.go
package hub

import (
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/erilali/wshub/internal/message"
	"github.com/gorilla/websocket"
)

const (
	webSocketReadDeadline  = 60 * time.Second
	webSocketWriteDeadline = 10 * time.Second
	webSocketPingPeriod    = (webSocketReadDeadline * 9) / 10 // Must be less than readDeadline
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsConn adapts a gorilla connection to Conn. Only text frames are
// delivered to the hub; binary frames are dropped.
type wsConn struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

// NewWSConn wraps conn, applies the read limit and starts the ping keepalive.
func NewWSConn(conn *websocket.Conn, readLimit int64) Conn {
	return newWSConn(conn, readLimit)
}

func newWSConn(conn *websocket.Conn, readLimit int64) *wsConn {
	c := &wsConn{conn: conn, done: make(chan struct{})}
	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}
	_ = conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(webSocketReadDeadline))
	})
	go c.keepalive()
	return c
}

func (c *wsConn) keepalive() {
	ticker := time.NewTicker(webSocketPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(webSocketWriteDeadline)); err != nil {
				return // Client connection is likely broken
			}
		}
	}
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return payload, nil
		}
	}
}

func (c *wsConn) WriteMessage(payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(webSocketWriteDeadline)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a normal close frame carrying "Closed." and releases the socket.
func (c *wsConn) Close() error {
	return c.closeWith(websocket.CloseNormalClosure, string(message.Goodbye()))
}

func (c *wsConn) closeWith(code int, text string) error {
	err := net.ErrClosed
	c.closeOnce.Do(func() {
		close(c.done)
		frame := websocket.FormatCloseMessage(code, text)
		_ = c.conn.WriteControl(websocket.CloseMessage, frame, time.Now().Add(webSocketWriteDeadline))
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// ServeWs upgrades the HTTP connection to a WebSocket and registers the client.
// A full hub answers 503 before upgrading; a registration that loses the race
// for the last slot is closed with code 1013.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	if s := h.Stats(); s.MaxClients > 0 && s.Clients >= s.MaxClients {
		h.reject(r.RemoteAddr, s.Clients)
		http.Error(w, "server is at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}

	wc := newWSConn(conn, int64(h.cfg.MaxMessageSize))

	var welcome []byte
	if h.cfg.Welcome {
		welcome = message.Welcome(r.URL.Path)
	}
	if _, err := h.Register(wc, welcome); err != nil {
		code := websocket.CloseInternalServerErr
		if errors.Is(err, ErrCapacityExceeded) {
			code = websocket.CloseTryAgainLater
		}
		_ = wc.closeWith(code, err.Error())
	}
}

// isExpectedCloseError reports whether err is the ordinary end of a connection.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, ErrClientClosed) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
