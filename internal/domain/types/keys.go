package types

import (
	"encoding/hex"
	"fmt"
)

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// Hex returns the lowercase hex encoding used on the wire.
func (p X25519Public) Hex() string { return hex.EncodeToString(p[:]) }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// ParseX25519Public decodes a hex encoded public key.
func ParseX25519Public(s string) (X25519Public, error) {
	var out X25519Public
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("x25519 public: %w", err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("x25519 public: want %d bytes, got %d", len(out), len(b))
	}
	copy(out[:], b)
	return out, nil
}
