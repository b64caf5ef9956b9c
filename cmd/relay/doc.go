// Package main runs the pairlink relay: an in-memory hub that pairs two
// WebSocket clients per channel and forwards their frames without reading
// them.
//
// HTTP API
//
//	GET /ws
//	    Upgrade to a WebSocket. Frames are JSON {"event": name, "data": ...}.
//	    Clients send join_channel(id) and message({id, message}); the relay
//	    answers with channel_created-{id}, clients_waiting_to_join-{id},
//	    clients_connected-{id}, clients_disconnected-{id} and message-{id}.
//
//	GET /healthz
//	    Report open channels and joined peers.
//
// Behaviour
//
//   - All state is held in memory and lost on process exit.
//   - A channel holds at most two peers; a third is refused with an error
//     envelope.
//   - An access log records method, path, remote, status and duration.
//   - The default listen address is :8080.
//
// The relay never sees plaintext or private keys; application messages reach
// it already sealed.
package main
