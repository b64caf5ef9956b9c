package crypto_test

import (
	"bytes"
	"errors"
	"testing"

	"pairlink/internal/crypto"
)

func TestDH_BothSidesAgree(t *testing.T) {
	aPriv, aPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	bPriv, bPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}

	ab, err := crypto.DH(aPriv, bPub)
	if err != nil {
		t.Fatalf("DH(a, B): %v", err)
	}
	ba, err := crypto.DH(bPriv, aPub)
	if err != nil {
		t.Fatalf("DH(b, A): %v", err)
	}
	if ab != ba {
		t.Fatal("shared secrets differ")
	}

	kA, err := crypto.DeriveKey(ab, aPub, bPub)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	kB, err := crypto.DeriveKey(ba, bPub, aPub)
	if err != nil {
		t.Fatalf("DeriveKey: %v", err)
	}
	if !bytes.Equal(kA, kB) {
		t.Fatal("derived keys depend on argument order")
	}
}

func TestPublicFromPrivate_MatchesGenerated(t *testing.T) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	got, err := crypto.PublicFromPrivate(priv)
	if err != nil {
		t.Fatalf("PublicFromPrivate: %v", err)
	}
	if got != pub {
		t.Fatal("recomputed public key differs")
	}
}

func TestDH_RejectsLowOrderPoint(t *testing.T) {
	priv, _, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}
	var zero [32]byte
	if _, err := crypto.DH(priv, zero); !errors.Is(err, crypto.ErrLowOrderPoint) {
		t.Fatalf("want ErrLowOrderPoint, got %v", err)
	}
}

func TestSealOpen_RoundTripAndTamper(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, crypto.KeyBytes)
	box, err := crypto.Seal(key, []byte("hello"), []byte("ad"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	pt, err := crypto.Open(key, box, []byte("ad"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(pt) != "hello" {
		t.Fatalf("got %q, want %q", pt, "hello")
	}

	box[len(box)-1] ^= 1
	if _, err := crypto.Open(key, box, []byte("ad")); err == nil {
		t.Fatal("expected tampered box to fail")
	}
	if _, err := crypto.Open(key, box[:4], nil); !errors.Is(err, crypto.ErrShortCiphertext) {
		t.Fatalf("want ErrShortCiphertext, got %v", err)
	}
}

func TestDeriveKEK_ArgonAndScrypt(t *testing.T) {
	salt := bytes.Repeat([]byte{1}, crypto.SaltBytes)
	for _, kdf := range []crypto.KDF{crypto.KDFArgon2id, crypto.KDFScrypt} {
		p := crypto.DefaultKDFParams(kdf)
		if kdf == crypto.KDFScrypt {
			p.N = 1 << 10
		}
		k1, err := crypto.DeriveKEK(kdf, "pass", salt, p)
		if err != nil {
			t.Fatalf("%s: %v", kdf, err)
		}
		k2, _ := crypto.DeriveKEK(kdf, "pass", salt, p)
		if !bytes.Equal(k1, k2) || len(k1) != crypto.KeyBytes {
			t.Fatalf("%s: derivation not deterministic", kdf)
		}
	}
	if _, err := crypto.DeriveKEK("md5", "pass", salt, crypto.KDFParams{}); !errors.Is(err, crypto.ErrUnknownKDF) {
		t.Fatalf("want ErrUnknownKDF, got %v", err)
	}
}

func TestFingerprint_Length(t *testing.T) {
	if fp := crypto.Fingerprint([]byte("key")); len(fp) != 20 {
		t.Fatalf("fingerprint length = %d, want 20", len(fp))
	}
}
