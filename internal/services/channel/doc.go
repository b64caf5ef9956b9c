// Package channel runs one side of a paired, end-to-end encrypted channel
// over a relay.
//
// A Session binds exactly one channel id and role, drives the key exchange
// from relay presence events, and refuses to put application content on the
// wire until the keys are exchanged. All transitions are serialised by the
// session; relay events are consumed one at a time by Run.
package channel
