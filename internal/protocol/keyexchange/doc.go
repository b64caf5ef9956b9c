// Package keyexchange negotiates the symmetric key that protects a pairing
// channel, and seals application messages under it once negotiated.
//
// # Overview
//
// Each side holds one X25519 key pair for the lifetime of the KeyExchange.
// A handshake episode runs over the owning session's carrier as plain
// (unencrypted) handshake-tagged messages:
//
//	originator                          responder
//	    key_handshake_SYN{pubkey}   ->
//	                                <-  key_handshake_SYNACK{pubkey}
//	    key_handshake_ACK           ->
//
// Both sides derive HKDF-SHA256(DH(own, peer)) salted with the two public keys.
// The originator marks the keys exchanged after it sends the ACK; the
// responder when it receives it. A responder that lost its key can send
// key_handshake_start to ask the originator for a new episode.
//
// # Episodes
//
// Start and an inbound SYN begin a new episode: the peer key, derived key and
// keysExchanged flag are cleared first. The keys_exchanged callback fires at
// most once per episode.
//
// # Errors
//
// ErrNotReady and ErrDecryption guard Encrypt and Decrypt before the keys
// are exchanged. ErrBadPublicKey, ErrPeerKeyMismatch and ErrUnexpectedStep
// report handshake messages that cannot be accepted; the episode is left
// as it was so the session can decide to restart it.
package keyexchange
