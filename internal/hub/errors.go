package hub

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned by Register when MaxClients clients are
	// already registered. The Registry is left unchanged.
	ErrCapacityExceeded = errors.New("hub: capacity exceeded")

	// ErrHubClosed is returned by Register after Shutdown.
	ErrHubClosed = errors.New("hub: closed")

	// ErrUnknownClient names a lookup of an id that is not registered.
	// Unregister and Send treat it as a no-op and never return it.
	ErrUnknownClient = errors.New("hub: unknown client")

	ErrSendTimeout  = errors.New("hub: send timed out")
	ErrClientClosed = errors.New("hub: client closed")
)

// DeliveryError reports a failed send to one client during fan-out.
type DeliveryError struct {
	ClientID ClientID
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("hub: delivery to %s failed: %v", e.ClientID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
