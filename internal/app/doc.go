// Package app wires application dependencies for the pairlink binaries.
//
// It loads Config, builds the relay transport, channel session, reconnector
// and channel store from it, and runs them together as an App.
package app
