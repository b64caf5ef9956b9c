package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrShortCiphertext is returned when a sealed box is shorter than its nonce.
	ErrShortCiphertext = errors.New("ciphertext too short")
	// ErrUnknownKDF is returned for blobs naming an unsupported KDF.
	ErrUnknownKDF = errors.New("unknown kdf")
)

// Seal encrypts plaintext under key with XChaCha20-Poly1305 and returns
// nonce || ciphertext.
func Seal(key, plaintext, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, chacha20poly1305.NonceSizeX, chacha20poly1305.NonceSizeX+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return aead.Seal(out, out[:chacha20poly1305.NonceSizeX], plaintext, ad), nil
}

// Open reverses Seal.
func Open(key, box, ad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(box) < chacha20poly1305.NonceSizeX+aead.Overhead() {
		return nil, ErrShortCiphertext
	}
	nonce, ct := box[:chacha20poly1305.NonceSizeX], box[chacha20poly1305.NonceSizeX:]
	return aead.Open(nil, nonce, ct, ad)
}
