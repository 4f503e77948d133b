package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"quarrychain/crypto"
)

// MicroblockHeader is the evidence unit carried by poison-microblock
// transactions. Two headers with the same sequence number but different
// digests, signed by the same committed microblock key, prove equivocation.
type MicroblockHeader struct {
	Version      byte
	Sequence     uint16
	PrevBlock    [32]byte
	TxMerkleRoot [32]byte
	Signature    []byte
}

// Digest hashes the header contents excluding the signature.
func (h *MicroblockHeader) Digest() ([32]byte, error) {
	unsigned := struct {
		Version      byte
		Sequence     uint16
		PrevBlock    [32]byte
		TxMerkleRoot [32]byte
	}{h.Version, h.Sequence, h.PrevBlock, h.TxMerkleRoot}
	raw, err := rlp.EncodeToBytes(&unsigned)
	if err != nil {
		return [32]byte{}, err
	}
	return blake3.Sum256(raw), nil
}

// Sign signs the header digest with the microblock key.
func (h *MicroblockHeader) Sign(key *crypto.PrivateKey) error {
	digest, err := h.Digest()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return err
	}
	h.Signature = sig
	return nil
}

// RecoverSignerHash verifies the header signature and returns the hash160 of
// the signing key, the value the chain commits to per block.
func (h *MicroblockHeader) RecoverSignerHash() ([20]byte, error) {
	if len(h.Signature) != 65 {
		return [20]byte{}, fmt.Errorf("microblock header signature must be 65 bytes, got %d", len(h.Signature))
	}
	digest, err := h.Digest()
	if err != nil {
		return [20]byte{}, err
	}
	pub, err := crypto.RecoverCompressed(digest, h.Signature)
	if err != nil {
		return [20]byte{}, err
	}
	return crypto.Hash160(pub), nil
}
