// Package reconnect rejoins a channel after the relay connection is lost.
//
// A Reconnector waits for the host to hold focus before forcing a clean
// reconnect-and-rejoin, retrying with exponential backoff.
package reconnect
