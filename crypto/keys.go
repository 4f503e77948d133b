package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

type PublicKey struct {
	*ecdsa.PublicKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

func (k *PrivateKey) PubKey() *PublicKey {
	return &PublicKey{&k.PrivateKey.PublicKey}
}

// Compressed returns the 33-byte compressed SEC1 encoding of the public key,
// the canonical form carried inside transaction spending conditions.
func (k *PublicKey) Compressed() []byte {
	return crypto.CompressPubkey(k.PublicKey)
}

// Hash160 is the signer digest used for addresses: RIPEMD-160 over SHA-256.
func Hash160(data []byte) [20]byte {
	sum := sha256.Sum256(data)
	h := ripemd160.New()
	h.Write(sum[:])
	var out [20]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Sign produces a 65-byte recoverable signature over a 32-byte digest.
func Sign(digest [32]byte, key *PrivateKey) ([]byte, error) {
	if key == nil || key.PrivateKey == nil {
		return nil, fmt.Errorf("nil private key")
	}
	return crypto.Sign(digest[:], key.PrivateKey)
}

// RecoverCompressed recovers the compressed public key that produced the
// signature over the digest.
func RecoverCompressed(digest [32]byte, sig []byte) ([]byte, error) {
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return nil, err
	}
	return crypto.CompressPubkey(pub), nil
}
