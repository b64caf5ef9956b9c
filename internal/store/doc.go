// Package store provides file-based persistence for channel records.
//
// Records hold a peer's channel key pair and are sealed under a passphrase
// before they touch disk. Writes go through a temp file and a rename, and
// all methods are safe for concurrent use.
package store
