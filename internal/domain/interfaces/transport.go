package interfaces

import (
	"context"

	domaintypes "pairlink/internal/domain/types"
)

// Transport is the relay connection a channel session rides on. Inbound
// events, including the transport-level connect, disconnect and error, are
// delivered in relay order on Events.
type Transport interface {
	// Connect opens the relay connection. It is a no-op when already connected.
	Connect(ctx context.Context) error
	// Disconnect closes the relay connection without reporting a disconnect event.
	Disconnect() error
	// Emit sends a named event with a JSON-encodable payload.
	Emit(event string, payload any) error
	// Events returns the inbound event stream.
	Events() <-chan domaintypes.RelayEvent
}
