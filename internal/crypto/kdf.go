package crypto

import (
	"bytes"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/scrypt"

	"pairlink/internal/domain"
)

const (
	KeyBytes  = 32
	SaltBytes = 16
)

// ChannelKeyInfo is the HKDF info string binding derived keys to this protocol.
var ChannelKeyInfo = []byte("pairlink/channel/v1")

// DeriveKey expands a DH output into a symmetric channel key. The salt is the
// two public keys in byte order so both sides derive the same key regardless
// of role.
func DeriveKey(shared [32]byte, a, b domain.X25519Public) ([]byte, error) {
	salt := make([]byte, 0, 64)
	if bytes.Compare(a[:], b[:]) <= 0 {
		salt = append(append(salt, a[:]...), b[:]...)
	} else {
		salt = append(append(salt, b[:]...), a[:]...)
	}
	key := make([]byte, KeyBytes)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared[:], salt, ChannelKeyInfo), key); err != nil {
		return nil, err
	}
	return key, nil
}

// KDF names a passphrase key derivation function.
type KDF string

const (
	KDFArgon2id KDF = "argon2id"
	KDFScrypt   KDF = "scrypt"
)

// KDFParams are the tunables stored next to a passphrase-sealed blob.
type KDFParams struct {
	// argon2id
	Time    uint32 `json:"time,omitempty"`
	Memory  uint32 `json:"memory,omitempty"`
	Threads uint8  `json:"threads,omitempty"`
	// scrypt
	N int `json:"scrypt_N,omitempty"`
	R int `json:"scrypt_r,omitempty"`
	P int `json:"scrypt_p,omitempty"`
}

// DefaultKDFParams returns the tunables used for new blobs.
func DefaultKDFParams(kdf KDF) KDFParams {
	if kdf == KDFScrypt {
		return KDFParams{N: 1 << 15, R: 8, P: 1}
	}
	return KDFParams{Time: 1, Memory: 1 << 16, Threads: 4}
}

// DeriveKEK derives a key-encryption key from a passphrase and salt.
func DeriveKEK(kdf KDF, passphrase string, salt []byte, p KDFParams) ([]byte, error) {
	switch kdf {
	case KDFScrypt:
		return scrypt.Key([]byte(passphrase), salt, p.N, p.R, p.P, KeyBytes)
	case KDFArgon2id, "":
		return argon2.IDKey([]byte(passphrase), salt, p.Time, p.Memory, p.Threads, KeyBytes), nil
	default:
		return nil, ErrUnknownKDF
	}
}
