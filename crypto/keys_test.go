package crypto

import (
	"bytes"
	"crypto/sha256"
	"testing"
)

func TestPrivateKeyRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	restored, err := PrivateKeyFromBytes(key.Bytes())
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !bytes.Equal(restored.PubKey().Compressed(), key.PubKey().Compressed()) {
		t.Fatal("restored key derives a different public key")
	}
	if len(key.PubKey().Compressed()) != 33 {
		t.Fatalf("compressed key should be 33 bytes, got %d", len(key.PubKey().Compressed()))
	}
}

func TestSignAndRecover(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	digest := sha256.Sum256([]byte("payload"))
	sig, err := Sign(digest, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if len(sig) != 65 {
		t.Fatalf("signature should be 65 bytes, got %d", len(sig))
	}
	recovered, err := RecoverCompressed(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if !bytes.Equal(recovered, key.PubKey().Compressed()) {
		t.Fatal("recovered key mismatch")
	}

	other := sha256.Sum256([]byte("different payload"))
	recovered, err = RecoverCompressed(other, sig)
	if err == nil && bytes.Equal(recovered, key.PubKey().Compressed()) {
		t.Fatal("signature recovered the same key for a different digest")
	}

	if _, err := RecoverCompressed(digest, sig[:64]); err == nil {
		t.Fatal("expected length error for truncated signature")
	}
}

func TestSignRejectsNilKey(t *testing.T) {
	digest := sha256.Sum256([]byte("payload"))
	if _, err := Sign(digest, nil); err == nil {
		t.Fatal("expected error for nil key")
	}
}

func TestHash160IsStable(t *testing.T) {
	a := Hash160([]byte("input"))
	b := Hash160([]byte("input"))
	if a != b {
		t.Fatal("hash not deterministic")
	}
	if Hash160([]byte("other")) == a {
		t.Fatal("distinct inputs collide")
	}
}
