// internal/hub/nats.go
package hub

import (
	"encoding/json"
	"time"

	"github.com/erilali/wshub/internal/logger"
	"github.com/erilali/wshub/internal/message"
	"github.com/nats-io/nats.go"
)

const (
	natsClientName       = "wshub"
	natsReconnectWait    = 2 * time.Second
	defaultSubjectPrefix = "wshub"
)

// EventPublisher receives hub lifecycle events. Implementations must not block.
type EventPublisher interface {
	Publish(evt message.Event)
}

// NATSPublisher publishes events as JSON on core NATS subjects of the form
// <prefix>.<event type>, e.g. wshub.client.connected.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	logger *logger.Logger
}

// NewNATSPublisher creates a publisher on nc. An empty prefix means "wshub";
// a nil nc yields a publisher that drops every event.
func NewNATSPublisher(nc *nats.Conn, prefix string, logger *logger.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return &NATSPublisher{nc: nc, prefix: prefix, logger: logger}
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish sends evt. A nil publisher or connection makes it a no-op.
func (p *NATSPublisher) Publish(evt message.Event) {
	if p == nil || p.nc == nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		p.logger.Errorf("Failed to marshal %s event: %v", evt.Type, err)
		return
	}
	if err := p.nc.Publish(p.Subject(evt.Type), data); err != nil {
		p.logger.Errorf("Failed to publish %s event to NATS: %v", evt.Type, err)
	}
}

// ConnectNATS dials url and returns nil when url is empty or unreachable;
// the hub runs without an event feed in that case.
func ConnectNATS(url string, logger *logger.Logger) *nats.Conn {
	if url == "" {
		logger.Info("NATS URL not set, event feed disabled")
		return nil
	}

	logger.Infof("Connecting to NATS at %s", url)
	nc, err := nats.Connect(url,
		nats.Name(natsClientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warnf("NATS disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("NATS reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		logger.Errorf("Error connecting to NATS: %v", err)
		logger.Warn("Running without NATS connection. Event feed will be disabled.")
		return nil
	}
	logger.Info("Successfully connected to NATS")
	return nc
}

// NATSStatus describes nc for health reporting.
func NATSStatus(nc *nats.Conn) string {
	switch {
	case nc == nil:
		return "disabled"
	case nc.Status() == nats.CONNECTED:
		return "connected"
	default:
		return "disconnected"
	}
}
