// Package crypto exposes the minimal primitives used by pairlink.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519,
//     PublicFromPrivate, DH)
//   - HKDF-SHA256 key derivation for channel keys (DeriveKey)
//   - XChaCha20-Poly1305 sealing with random nonces (Seal, Open)
//   - Passphrase key-encryption keys via Argon2id or scrypt (DeriveKEK)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// Key types are the fixed-size arrays defined in internal/domain. Callers
// should treat returned secrets as sensitive and wipe them with
// memzero.Zero when practical.
package crypto
