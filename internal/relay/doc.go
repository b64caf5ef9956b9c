// Package relay provides the transports a channel session rides on, and the
// relay hub that pairs two peers per channel.
//
// The relay is an untrusted middleman: it forwards handshake messages and
// cipher text between the two members of a channel and never sees plaintext.
//
// Contents
//
//   - Hub: channel membership and forwarding (join_channel, message), with
//     channel_created, clients_waiting_to_join, clients_connected and
//     clients_disconnected notifications.
//   - Server: serves a Hub over WebSocket at /ws, plus /healthz.
//   - WebSocket: the client transport (domain.Transport) used by peers.
//   - Memory: an in-process transport bound directly to a Hub, for tests and
//     embedding.
//
// Frames on the wire are JSON objects {"event": name, "data": payload}.
// Inbound channel events are namespaced "<event>-<channel id>".
//
// Transports fence stale events by connection: once a connection has been
// replaced or closed, nothing it reads is delivered.
package relay
