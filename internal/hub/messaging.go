// internal/hub/messaging.go
package hub

import (
	"context"

	"github.com/erilali/wshub/internal/message"
)

// Broadcast queues payload for every registered client, the sender included
// unless ExcludeSender is set. A client that cannot take the payload before
// the send timeout is unregistered; the others are unaffected. It returns
// the number of clients the payload was queued for.
func (h *Hub) Broadcast(sender ClientID, payload []byte) int {
	msg := message.New(string(sender), payload)

	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		if h.cfg.ExcludeSender && id == sender {
			continue
		}
		recipients = append(recipients, client)
	}
	timeout := h.sendTimeout
	h.mu.RUnlock()

	h.broadcasts.Add(1)

	// One deadline bounds the whole fan-out, not each client.
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	delivered := 0
	var failed []*DeliveryError
	for _, client := range recipients {
		if err := client.enqueue(ctx, msg.Payload); err != nil {
			failed = append(failed, &DeliveryError{ClientID: client.id, Err: err})
			continue
		}
		delivered++
	}
	h.deliveries.Add(uint64(delivered))

	for _, derr := range failed {
		h.deliveryFailed(derr)
	}

	evt := message.NewEvent(message.EventMessageRelayed, msg.Sender, len(recipients))
	evt.Size = len(msg.Payload)
	evt.Recipients = delivered
	h.publish(evt)
	return delivered
}

// Send queues payload for a single client. It reports false when id is not
// registered or the client could not take the payload in time.
func (h *Hub) Send(id ClientID, payload []byte) bool {
	h.mu.RLock()
	client, ok := h.clients[id]
	timeout := h.sendTimeout
	h.mu.RUnlock()
	if !ok {
		h.Logger.Debugf("Send to %s skipped: %v", id, ErrUnknownClient)
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.enqueue(ctx, message.New("", payload).Payload); err != nil {
		h.deliveryFailed(&DeliveryError{ClientID: id, Err: err})
		return false
	}
	h.deliveries.Add(1)
	return true
}

// deliveryFailed logs the failure and unregisters the client, whose
// connection is presumed dead.
func (h *Hub) deliveryFailed(derr *DeliveryError) {
	h.deliveryFailures.Add(1)
	h.Logger.LogEvent("warn", "delivery_failed", string(derr.ClientID), derr.Err.Error())

	evt := message.NewEvent(message.EventDeliveryFailed, string(derr.ClientID), h.Len())
	evt.Detail = derr.Err.Error()
	h.publish(evt)

	h.Unregister(derr.ClientID)
}

// handleClientMessage validates one inbound payload and fans it out.
func (h *Hub) handleClientMessage(client *Client, payload []byte) {
	if err := message.Validate(payload, h.cfg.MaxMessageSize); err != nil {
		h.Logger.LogEvent("debug", "invalid_message", string(client.id), err.Error())
		return
	}
	h.Logger.LogEvent("debug", "message_received", string(client.id), string(payload))
	h.Broadcast(client.id, payload)
}

// ReadPump feeds the client's inbound messages into Broadcast until the
// connection fails or is closed, then unregisters the client. Each message is
// fully queued before the next is read, which keeps per-sender order.
func (h *Hub) ReadPump(client *Client) {
	defer h.Unregister(client.id)

	for {
		payload, err := client.conn.ReadMessage()
		if err != nil {
			if client.State() == StateOpen && !isExpectedCloseError(err) {
				h.Logger.LogEvent("error", "read_error", string(client.id), err.Error())
			}
			return
		}
		h.handleClientMessage(client, payload)
	}
}

// WritePump drains the send queue into the connection.
func (h *Hub) WritePump(client *Client) {
	for {
		select {
		case <-client.done:
			return
		case payload := <-client.send:
			if err := client.conn.WriteMessage(payload); err != nil {
				if client.State() == StateOpen {
					h.deliveryFailed(&DeliveryError{ClientID: client.id, Err: err})
				}
				return
			}
		}
	}
}
