package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"pairlink/internal/crypto"
	"pairlink/internal/util/memzero"
)

// blobFormatVersion is the on-disk format written by seal.
const blobFormatVersion = 1

// ErrWrongPassphrase is returned when a record cannot be opened, either
// because the passphrase is wrong or the file was modified.
var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted record")

// blob is the on-disk JSON structure holding the sealed record and the KDF
// that protects it.
type blob struct {
	V      int              `json:"v"`
	KDF    crypto.KDF       `json:"kdf"`
	Params crypto.KDFParams `json:"params"`
	Salt   []byte           `json:"salt"`
	Cipher []byte           `json:"cipher"`
}

// seal derives a key from passphrase and seals raw, bound to ad.
func seal(kdf crypto.KDF, passphrase string, raw, ad []byte) ([]byte, error) {
	salt := make([]byte, crypto.SaltBytes)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	params := crypto.DefaultKDFParams(kdf)
	key, err := crypto.DeriveKEK(kdf, passphrase, salt, params)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	ct, err := crypto.Seal(key, raw, ad)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(blob{
		V:      blobFormatVersion,
		KDF:    kdf,
		Params: params,
		Salt:   salt,
		Cipher: ct,
	}, "", "  ")
}

// open reverses seal using the KDF recorded in the blob.
func open(passphrase string, b, ad []byte) ([]byte, error) {
	var bl blob
	if err := json.Unmarshal(b, &bl); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	if bl.V > blobFormatVersion {
		return nil, fmt.Errorf("unsupported record version %d", bl.V)
	}
	key, err := crypto.DeriveKEK(bl.KDF, passphrase, bl.Salt, bl.Params)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)
	pt, err := crypto.Open(key, bl.Cipher, ad)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return pt, nil
}
