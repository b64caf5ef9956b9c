// Package commands defines the pairlink CLI and wires dependencies for subcommands.
//
// Commands
//
//   - create         Create a channel as originator and start chatting
//   - join           Join a channel by id as responder
//   - resume         Rejoin a saved channel with its stored key pair
//   - channels       List saved channels
//   - forget         Delete a saved channel
//   - fingerprint    Print the fingerprint of a channel public key
//   - config init    Write the default configuration file
//
// Inside a chat, plain lines are sent to the peer; /pause, /resume and /quit
// drive the session.
//
// # Implementation
//
// The root command loads configuration, builds the process logger and the
// dependency wire before any subcommand runs, so handlers share one store
// and one relay setup.
package commands
