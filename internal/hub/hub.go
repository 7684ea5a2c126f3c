// internal/hub/hub.go
// Provides the Hub: the Registry of open clients and its lifecycle operations.
package hub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erilali/wshub/internal/logger"
	"github.com/erilali/wshub/internal/message"
	"github.com/google/uuid"
)

const (
	defaultSendTimeout     = 5 * time.Second
	defaultSendBuffer      = 256
	defaultMaxMessageSize  = 4096
	defaultShutdownTimeout = 5 * time.Second
)

// Config holds the hub's tunables. MaxClients of zero means unlimited.
type Config struct {
	MaxClients     int
	SendTimeout    time.Duration
	SendBuffer     int
	MaxMessageSize int
	ExcludeSender  bool // when false, senders receive their own messages
	Welcome        bool // send "Connected to <path>" on registration
}

// DefaultConfig returns an unlimited hub with the default send timeout,
// queue depth and message size, welcoming new clients.
func DefaultConfig() Config {
	return Config{
		SendTimeout:    defaultSendTimeout,
		SendBuffer:     defaultSendBuffer,
		MaxMessageSize: defaultMaxMessageSize,
		Welcome:        true,
	}
}

// Stats is a point-in-time view of hub counters.
type Stats struct {
	Clients          int
	MaxClients       int
	Registrations    uint64
	Rejections       uint64
	Unregistrations  uint64
	Broadcasts       uint64
	Deliveries       uint64
	DeliveryFailures uint64
}

// Hub owns the Registry and implements fan-out. All Registry mutations happen
// under mu; fan-out works on a snapshot taken under the read lock.
type Hub struct {
	mu          sync.RWMutex
	clients     map[ClientID]*Client
	closed      bool
	maxClients  int
	sendTimeout time.Duration

	cfg    Config
	wg     sync.WaitGroup
	events EventPublisher
	Logger *logger.Logger

	registrations    atomic.Uint64
	rejections       atomic.Uint64
	unregistrations  atomic.Uint64
	broadcasts       atomic.Uint64
	deliveries       atomic.Uint64
	deliveryFailures atomic.Uint64
}

// NewHub creates a Hub. events may be nil when no event feed is configured.
func NewHub(cfg Config, events EventPublisher, logger *logger.Logger) *Hub {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = defaultSendBuffer
	}
	return &Hub{
		clients:     make(map[ClientID]*Client),
		maxClients:  cfg.MaxClients,
		sendTimeout: cfg.SendTimeout,
		cfg:         cfg,
		events:      events,
		Logger:      logger,
	}
}

// Register adds conn to the Registry under a fresh id and starts its pumps.
// welcome, if non-empty, is queued ahead of any broadcast the client can see.
func (h *Hub) Register(conn Conn, welcome []byte) (ClientID, error) {
	if conn == nil {
		return "", errors.New("hub: nil connection")
	}

	client := newClient(ClientID(uuid.NewString()), conn, h.cfg.SendBuffer)
	if len(welcome) > 0 {
		client.send <- message.New("", welcome).Payload
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return "", ErrHubClosed
	}
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		count := len(h.clients)
		h.mu.Unlock()
		h.reject(conn.RemoteAddr(), count)
		return "", ErrCapacityExceeded
	}
	h.clients[client.id] = client
	count := len(h.clients)
	h.wg.Add(2)
	h.mu.Unlock()

	go func() {
		defer h.wg.Done()
		h.WritePump(client)
	}()
	go func() {
		defer h.wg.Done()
		h.ReadPump(client)
	}()

	h.registrations.Add(1)
	h.Logger.LogEvent("info", "client_connected", string(client.id), conn.RemoteAddr())
	h.publish(message.NewEvent(message.EventClientConnected, string(client.id), count))
	return client.id, nil
}

// Unregister removes id from the Registry and closes its connection.
// Unknown or already removed ids are ignored.
func (h *Hub) Unregister(id ClientID) {
	h.mu.Lock()
	client, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		client.beginClose()
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	client.close()
	h.unregistrations.Add(1)
	h.Logger.LogEvent("info", "client_disconnected", string(id), "")
	h.publish(message.NewEvent(message.EventClientDisconnected, string(id), count))
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Clients returns the ids currently in the Registry.
func (h *Hub) Clients() []ClientID {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]ClientID, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

// SetLimits updates the capacity and send timeout. Lowering MaxClients
// below the current count rejects new clients but evicts nobody.
func (h *Hub) SetLimits(maxClients int, sendTimeout time.Duration) {
	h.mu.Lock()
	h.maxClients = maxClients
	if sendTimeout > 0 {
		h.sendTimeout = sendTimeout
	}
	timeout := h.sendTimeout
	h.mu.Unlock()
	h.Logger.LogEvent("info", "limits_updated", "", fmt.Sprintf("max_clients=%d send_timeout=%s", maxClients, timeout))
}

// Stats returns the current client count, capacity and lifetime counters.
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	clients, maxClients := len(h.clients), h.maxClients
	h.mu.RUnlock()
	return Stats{
		Clients:          clients,
		MaxClients:       maxClients,
		Registrations:    h.registrations.Load(),
		Rejections:       h.rejections.Load(),
		Unregistrations:  h.unregistrations.Load(),
		Broadcasts:       h.broadcasts.Load(),
		Deliveries:       h.deliveries.Load(),
		DeliveryFailures: h.deliveryFailures.Load(),
	}
}

// Run blocks until ctx is cancelled, then shuts the hub down, waiting up to
// shutdownTimeout for client pumps. A non-positive timeout uses the default.
func (h *Hub) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	<-ctx.Done()
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return h.Shutdown(shutdownTimeout)
}

// Shutdown closes every client and waits for their pumps to exit, or for
// timeout. Register fails with ErrHubClosed afterwards.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.mu.Lock()
	h.closed = true
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		delete(h.clients, id)
		client.beginClose()
		clients = append(clients, client)
	}
	h.mu.Unlock()

	h.Logger.Infof("Shutting down hub, closing %d clients", len(clients))
	for _, client := range clients {
		client.close()
		h.unregistrations.Add(1)
		h.publish(message.NewEvent(message.EventClientDisconnected, string(client.id), 0))
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.Logger.Info("Hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.Logger.Warn("Hub shutdown timed out waiting for client pumps")
		return context.DeadlineExceeded
	}
}

// reject records a registration refused for capacity.
func (h *Hub) reject(remote string, count int) {
	h.rejections.Add(1)
	h.Logger.LogEvent("warn", "capacity_exceeded", "", fmt.Sprintf("%s at %d clients", remote, count))
	h.publish(message.NewEvent(message.EventClientRejected, "", count))
}

func (h *Hub) publish(evt message.Event) {
	if h.events != nil {
		h.events.Publish(evt)
	}
}
