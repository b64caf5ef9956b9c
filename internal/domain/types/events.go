package types

import (
	"encoding/json"
	"strings"
)

// Relay event names. Inbound channel events are suffixed with "-<channel id>".
const (
	RelayJoinChannel = "join_channel"
	RelayMessage     = "message"

	RelayChannelCreated       = "channel_created"
	RelayClientsConnected     = "clients_connected"
	RelayClientsDisconnected  = "clients_disconnected"
	RelayClientsWaitingToJoin = "clients_waiting_to_join"

	TransportConnect    = "connect"
	TransportDisconnect = "disconnect"
	TransportError      = "error"
)

// RelayEvent is one named event delivered by a transport.
type RelayEvent struct {
	Name string          `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ChannelEvent returns the namespaced name "<base>-<id>".
func ChannelEvent(base string, id ChannelID) string { return base + "-" + string(id) }

// SplitChannelEvent splits a namespaced event name. ok is false for
// transport-level events that carry no channel suffix.
func SplitChannelEvent(name string) (base string, id ChannelID, ok bool) {
	for _, b := range []string{
		RelayChannelCreated,
		RelayClientsConnected,
		RelayClientsDisconnected,
		RelayClientsWaitingToJoin,
		RelayMessage,
	} {
		if rest, found := strings.CutPrefix(name, b+"-"); found {
			return b, ChannelID(rest), true
		}
	}
	return name, "", false
}

// EventKind enumerates what a session reports to its observer.
type EventKind int

const (
	EventChannelCreated EventKind = iota + 1
	EventClientsConnected
	EventClientsDisconnected
	EventClientsWaitingToJoin
	EventClientsReady
	EventMessage
	EventKeyExchange
	EventError
)

var eventKindNames = map[EventKind]string{
	EventChannelCreated:       "channel_created",
	EventClientsConnected:     "clients_connected",
	EventClientsDisconnected:  "clients_disconnected",
	EventClientsWaitingToJoin: "clients_waiting_to_join",
	EventClientsReady:         "clients_ready",
	EventMessage:              "message",
	EventKeyExchange:          "key_exchange",
	EventError:                "error",
}

func (k EventKind) String() string {
	if s, ok := eventKindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is a typed session notification. Only the fields relevant to Kind
// are set.
type Event struct {
	Kind         EventKind
	ChannelID    ChannelID
	Count        int
	IsOriginator bool
	Message      Message
	Err          error
}
