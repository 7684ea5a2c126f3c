package hub

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/erilali/wshub/internal/logger"
	"github.com/erilali/wshub/internal/message"
	"github.com/gorilla/websocket"
)

// startServer serves h.ServeWs on /ws and returns the ws:// URL.
func startServer(t *testing.T, h *Hub) string {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWs)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(waitTimeout)) //nolint:errcheck
	mt, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("message type: got %d, want text", mt)
	}
	return string(msg)
}

func TestServeWs_WelcomeAndBroadcast(t *testing.T) {
	h := newTestHub(t, DefaultConfig())
	wsURL := startServer(t, h)

	a := dial(t, wsURL)
	if got := readText(t, a); got != "Connected to /ws" {
		t.Fatalf("welcome: got %q", got)
	}
	b := dial(t, wsURL)
	if got := readText(t, b); got != "Connected to /ws" {
		t.Fatalf("welcome: got %q", got)
	}

	if err := a.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
	if got := readText(t, a); got != "hello" {
		t.Errorf("a: got %q, want hello", got)
	}
	if got := readText(t, b); got != "hello" {
		t.Errorf("b: got %q, want hello", got)
	}
}

func TestServeWs_BinaryFramesIgnored(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Welcome = false
	h := newTestHub(t, cfg)
	a := dial(t, startServer(t, h))
	waitFor(t, "registration", func() bool { return h.Len() == 1 })

	a.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02}) //nolint:errcheck
	a.WriteMessage(websocket.TextMessage, []byte("text"))       //nolint:errcheck

	if got := readText(t, a); got != "text" {
		t.Errorf("got %q, want text", got)
	}
}

func TestServeWs_ClientCloseUnregisters(t *testing.T) {
	h := newTestHub(t, DefaultConfig())
	a := dial(t, startServer(t, h))
	readText(t, a)
	waitFor(t, "registration", func() bool { return h.Len() == 1 })

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	a.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) //nolint:errcheck
	a.Close()

	waitFor(t, "unregistration", func() bool { return h.Len() == 0 })
}

func TestServeWs_RejectsWhenFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClients = 1
	rec := &recordingPublisher{}
	h := NewHub(cfg, rec, logger.Nop())
	t.Cleanup(func() { _ = h.Shutdown(time.Second) })
	wsURL := startServer(t, h)

	a := dial(t, wsURL)
	readText(t, a)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if !errors.Is(err, websocket.ErrBadHandshake) {
		t.Fatalf("dial: got %v, want ErrBadHandshake", err)
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status: got %v, want 503", resp)
	}
	if h.Len() != 1 {
		t.Errorf("Len: got %d, want 1", h.Len())
	}
	if got := h.Stats().Rejections; got != 1 {
		t.Errorf("Rejections: got %d, want 1", got)
	}

	var rejected []message.Event
	rec.mu.Lock()
	for _, evt := range rec.events {
		if evt.Type == message.EventClientRejected {
			rejected = append(rejected, evt)
		}
	}
	rec.mu.Unlock()
	if len(rejected) != 1 || rejected[0].Clients != 1 {
		t.Errorf("rejected events: got %+v, want one at 1 client", rejected)
	}
}

func TestServeWs_ShutdownSendsCloseFrame(t *testing.T) {
	h := NewHub(DefaultConfig(), nil, logger.Nop())
	a := dial(t, startServer(t, h))
	readText(t, a)
	waitFor(t, "registration", func() bool { return h.Len() == 1 })

	if err := h.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	a.SetReadDeadline(time.Now().Add(waitTimeout)) //nolint:errcheck
	_, _, err := a.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) {
		t.Fatalf("ReadMessage: got %v, want close error", err)
	}
	if closeErr.Code != websocket.CloseNormalClosure || closeErr.Text != "Closed." {
		t.Errorf("close frame: got %d %q", closeErr.Code, closeErr.Text)
	}
}

func TestIsExpectedCloseError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrClientClosed, true},
		{&websocket.CloseError{Code: websocket.CloseGoingAway}, true},
		{&websocket.CloseError{Code: websocket.CloseProtocolError}, false},
		{errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := isExpectedCloseError(tc.err); got != tc.want {
			t.Errorf("isExpectedCloseError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
