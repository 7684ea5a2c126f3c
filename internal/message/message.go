// internal/message/message.go
// Payload validation and the small set of server-generated payloads.
package message

import (
	"errors"
	"time"
	"unicode/utf8"
)

var (
	ErrEmpty       = errors.New("message: empty payload")
	ErrTooLarge    = errors.New("message: payload exceeds size limit")
	ErrInvalidUTF8 = errors.New("message: payload is not valid UTF-8")
)

// Message is one inbound payload on its way to fan-out.
type Message struct {
	Sender  string
	Payload []byte
}

// New copies payload so the message stays immutable after the caller reuses its buffer.
func New(sender string, payload []byte) Message {
	p := make([]byte, len(payload))
	copy(p, payload)
	return Message{Sender: sender, Payload: p}
}

// Validate checks that payload is a non-empty UTF-8 text message no larger
// than maxSize bytes. A maxSize of zero disables the size check.
func Validate(payload []byte, maxSize int) error {
	if len(payload) == 0 {
		return ErrEmpty
	}
	if maxSize > 0 && len(payload) > maxSize {
		return ErrTooLarge
	}
	if !utf8.Valid(payload) {
		return ErrInvalidUTF8
	}
	return nil
}

// Welcome is the acknowledgment sent to a client right after it registers.
func Welcome(path string) []byte {
	if path == "" {
		path = "/"
	}
	return []byte("Connected to " + path)
}

// Goodbye is sent to a client as its connection is being closed.
func Goodbye() []byte {
	return []byte("Closed.")
}

// Event types published on the hub event feed.
const (
	EventClientConnected    = "client.connected"
	EventClientDisconnected = "client.disconnected"
	EventClientRejected     = "client.rejected"
	EventDeliveryFailed     = "delivery.failed"
	EventMessageRelayed     = "message.relayed"
)

// Event is the JSON envelope for hub lifecycle notifications. It never
// carries message payloads.
type Event struct {
	Type       string `json:"type"`
	ClientID   string `json:"client_id,omitempty"`
	Clients    int    `json:"clients"`
	Size       int    `json:"size,omitempty"`
	Recipients int    `json:"recipients,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, clientID string, clients int) Event {
	return Event{
		Type:      eventType,
		ClientID:  clientID,
		Clients:   clients,
		Timestamp: time.Now().Unix(),
	}
}
