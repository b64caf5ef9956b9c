package types

import (
	"errors"
	"fmt"
)

var (
	// ErrWrongChannel is returned when an inbound envelope names a channel
	// other than the one the session is bound to.
	ErrWrongChannel = errors.New("wrong channel id")
	// ErrKeysNotExchanged rejects application content before the handshake
	// has completed.
	ErrKeysNotExchanged = errors.New("keys not exchanged")
	// ErrNoChannel is returned by sends on a session with no bound channel.
	ErrNoChannel = errors.New("no channel bound; create or join a channel first")
	// ErrChannelBound is returned when a session is asked to bind a second channel.
	ErrChannelBound = errors.New("session already bound to a channel")
	// ErrNotPaused is returned by Resume on a session that is not paused.
	ErrNotPaused = errors.New("session is not paused")
	// ErrHandshakeTimeout reports a connected channel that never finished the
	// key exchange.
	ErrHandshakeTimeout = errors.New("handshake did not complete in time")
)

// RelayError carries an error string forwarded by the relay.
type RelayError struct {
	Message string
}

func (e *RelayError) Error() string { return fmt.Sprintf("relay error: %s", e.Message) }
