package types

import (
	"encoding/json"
	"strings"
)

// Message types understood by the channel session and key exchange.
const (
	HandshakePrefix = "key_handshake"

	TypeHandshakeStart  = "key_handshake_start"
	TypeHandshakeSyn    = "key_handshake_SYN"
	TypeHandshakeSynAck = "key_handshake_SYNACK"
	TypeHandshakeAck    = "key_handshake_ACK"

	TypeReady = "ready"
	TypePause = "pause"
	TypeChat  = "chat"
)

// Message is the unit exchanged between the two peers. Handshake messages
// travel as-is; every other message is encoded and sealed before it reaches
// the relay.
type Message struct {
	Type   string          `json:"type" cbor:"type"`
	PubKey string          `json:"pubkey,omitempty" cbor:"pubkey,omitempty"`
	Text   string          `json:"text,omitempty" cbor:"text,omitempty"`
	Data   json.RawMessage `json:"data,omitempty" cbor:"data,omitempty"`
}

// IsHandshake reports whether m belongs to the key exchange.
func (m Message) IsHandshake() bool { return strings.HasPrefix(m.Type, HandshakePrefix) }

// Envelope is the payload of the relay's message event. Message holds either
// a handshake Message object or a JSON string of cipher text.
type Envelope struct {
	ID      ChannelID       `json:"id"`
	Message json.RawMessage `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ChannelInfo is returned to the originator when a channel is created.
type ChannelInfo struct {
	ChannelID ChannelID    `json:"channel_id"`
	PubKey    X25519Public `json:"pub_key"`
}
