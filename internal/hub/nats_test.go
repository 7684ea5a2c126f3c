package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/erilali/wshub/internal/logger"
	"github.com/erilali/wshub/internal/message"
	natsserver "github.com/nats-io/nats-server/v2/test"
)

func TestNATSPublisher_Subject(t *testing.T) {
	p := NewNATSPublisher(nil, "", logger.Nop())
	if got := p.Subject(message.EventClientConnected); got != "wshub.client.connected" {
		t.Errorf("Subject: got %q", got)
	}

	p = NewNATSPublisher(nil, "chat.prod", logger.Nop())
	if got := p.Subject(message.EventDeliveryFailed); got != "chat.prod.delivery.failed" {
		t.Errorf("Subject: got %q", got)
	}
}

func TestNATSPublisher_NilConnIsNoop(t *testing.T) {
	p := NewNATSPublisher(nil, "wshub", logger.Nop())
	p.Publish(message.NewEvent(message.EventClientConnected, "id", 1))

	var nilPub *NATSPublisher
	nilPub.Publish(message.NewEvent(message.EventClientConnected, "id", 1))

	h := NewHub(DefaultConfig(), nilPub, logger.Nop())
	if _, err := h.Register(newFakeConn("a"), nil); err != nil {
		t.Fatalf("Register with nil publisher: %v", err)
	}
	_ = h.Shutdown(0)
}

func TestConnectNATS_EmptyURL(t *testing.T) {
	if nc := ConnectNATS("", logger.Nop()); nc != nil {
		t.Error("expected nil connection for empty URL")
	}
	if got := NATSStatus(nil); got != "disabled" {
		t.Errorf("NATSStatus(nil): got %q", got)
	}
}

func TestNATSPublisher_PublishesToServer(t *testing.T) {
	srv := natsserver.RunRandClientPortServer()
	defer srv.Shutdown()

	nc := ConnectNATS(srv.ClientURL(), logger.Nop())
	if nc == nil {
		t.Fatal("ConnectNATS returned nil for a running server")
	}
	defer nc.Close()
	if got := NATSStatus(nc); got != "connected" {
		t.Errorf("NATSStatus: got %q, want connected", got)
	}

	sub, err := nc.SubscribeSync("wshub.>")
	if err != nil {
		t.Fatalf("SubscribeSync: %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	h := NewHub(DefaultConfig(), NewNATSPublisher(nc, "", logger.Nop()), logger.Nop())
	defer h.Shutdown(time.Second) //nolint:errcheck
	id := register(t, h, newFakeConn("a"))

	msg, err := sub.NextMsg(waitTimeout)
	if err != nil {
		t.Fatalf("NextMsg: %v", err)
	}
	if msg.Subject != "wshub.client.connected" {
		t.Errorf("subject: got %q", msg.Subject)
	}
	var evt message.Event
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.Type != message.EventClientConnected || evt.ClientID != string(id) || evt.Clients != 1 {
		t.Errorf("event: got %+v", evt)
	}

	h.Unregister(id)
	msg, err = sub.NextMsg(waitTimeout)
	if err != nil {
		t.Fatalf("NextMsg: %v", err)
	}
	if msg.Subject != "wshub.client.disconnected" {
		t.Errorf("subject: got %q, want wshub.client.disconnected", msg.Subject)
	}

	nc.Close()
	if got := NATSStatus(nc); got != "disconnected" {
		t.Errorf("NATSStatus after close: got %q", got)
	}
}
