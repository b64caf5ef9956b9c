package types

// ChannelRecord is what a peer persists to rejoin a channel after a restart.
// The shared secret is never stored; a restarted peer runs a new handshake
// with the same key pair.
type ChannelRecord struct {
	ChannelID     ChannelID     `json:"channel_id"`
	Role          string        `json:"role"`
	PrivateKey    X25519Private `json:"private_key"`
	PublicKey     X25519Public  `json:"public_key"`
	PeerPublicKey X25519Public  `json:"peer_public_key,omitempty"`
	RelayURL      string        `json:"relay_url,omitempty"`
	CreatedUTC    int64         `json:"created_utc"`
}
