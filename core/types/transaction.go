package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"quarrychain/crypto"
)

// PayloadKind discriminates the transaction payload variants.
type PayloadKind byte

const (
	PayloadTokenTransfer    PayloadKind = 0x00
	PayloadContractPublish  PayloadKind = 0x01
	PayloadContractCall     PayloadKind = 0x02
	PayloadPoisonMicroblock PayloadKind = 0x03
	PayloadCoinbase         PayloadKind = 0x04
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadTokenTransfer:
		return "token_transfer"
	case PayloadContractPublish:
		return "smart_contract"
	case PayloadContractCall:
		return "contract_call"
	case PayloadPoisonMicroblock:
		return "poison_microblock"
	case PayloadCoinbase:
		return "coinbase"
	default:
		return fmt.Sprintf("unknown(%d)", byte(k))
	}
}

type TokenTransferPayload struct {
	Recipient Principal
	Amount    *big.Int
	Memo      []byte
}

type ContractCallPayload struct {
	Contract ContractID
	Function string
	// Args carries the serialized argument values in call order.
	Args [][]byte
}

type ContractPublishPayload struct {
	Name   string
	Source string
}

type PoisonMicroblockPayload struct {
	Header1 MicroblockHeader
	Header2 MicroblockHeader
}

type CoinbasePayload struct {
	Data [32]byte
}

// Payload is a tagged union. Exactly the variant named by Kind is non-nil;
// the nil-able pointers keep the whole structure RLP round-trippable.
type Payload struct {
	Kind             PayloadKind
	TokenTransfer    *TokenTransferPayload    `rlp:"nil"`
	ContractPublish  *ContractPublishPayload  `rlp:"nil"`
	ContractCall     *ContractCallPayload     `rlp:"nil"`
	PoisonMicroblock *PoisonMicroblockPayload `rlp:"nil"`
	Coinbase         *CoinbasePayload         `rlp:"nil"`
}

func (p *Payload) validate() error {
	set := 0
	if p.TokenTransfer != nil {
		set++
		if p.Kind != PayloadTokenTransfer {
			return fmt.Errorf("payload kind %s does not match token transfer body", p.Kind)
		}
	}
	if p.ContractPublish != nil {
		set++
		if p.Kind != PayloadContractPublish {
			return fmt.Errorf("payload kind %s does not match contract publish body", p.Kind)
		}
	}
	if p.ContractCall != nil {
		set++
		if p.Kind != PayloadContractCall {
			return fmt.Errorf("payload kind %s does not match contract call body", p.Kind)
		}
	}
	if p.PoisonMicroblock != nil {
		set++
		if p.Kind != PayloadPoisonMicroblock {
			return fmt.Errorf("payload kind %s does not match poison microblock body", p.Kind)
		}
	}
	if p.Coinbase != nil {
		set++
		if p.Kind != PayloadCoinbase {
			return fmt.Errorf("payload kind %s does not match coinbase body", p.Kind)
		}
	}
	if set != 1 {
		return fmt.Errorf("payload must carry exactly one variant, got %d", set)
	}
	return nil
}

// SpendingCondition is one signer's authorization: its replay counter, the
// fee it commits to, and the signature binding both to the payload.
type SpendingCondition struct {
	Nonce     uint64
	Fee       uint64
	PublicKey []byte
	Signature []byte
}

// Signer derives the signer's standard address under the given version byte.
func (sc *SpendingCondition) Signer(version byte) StandardAddress {
	return StandardAddress{Version: version, Hash: crypto.Hash160(sc.PublicKey)}
}

// Transaction is the mempool admission unit. Origin is always present;
// Sponsor, when non-nil, is the fee payer and carries its own nonce.
type Transaction struct {
	Version byte
	ChainID uint32
	Origin  SpendingCondition
	Sponsor *SpendingCondition `rlp:"nil"`
	Payload Payload
}

// Bytes returns the canonical wire encoding.
func (tx *Transaction) Bytes() ([]byte, error) {
	if err := tx.Payload.validate(); err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(tx)
}

// DecodeTransaction parses the canonical wire encoding, rejecting trailing
// bytes and malformed payload unions.
func DecodeTransaction(raw []byte) (*Transaction, error) {
	tx := new(Transaction)
	if err := rlp.DecodeBytes(raw, tx); err != nil {
		return nil, err
	}
	if err := tx.Payload.validate(); err != nil {
		return nil, err
	}
	return tx, nil
}

// TxID is the content hash of the wire encoding. It is independent of
// admission order and stable across resubmissions of identical bytes.
func TxID(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ID computes the transaction id from the current contents.
func (tx *Transaction) ID() (string, error) {
	raw, err := tx.Bytes()
	if err != nil {
		return "", err
	}
	return TxID(raw), nil
}

// SigHash is the digest both signers commit to: the transaction with every
// signature field zeroed. The sponsor countersigns the same digest as the
// origin so neither can be swapped out independently.
func (tx *Transaction) SigHash() ([32]byte, error) {
	unsigned := *tx
	unsigned.Origin = SpendingCondition{
		Nonce:     tx.Origin.Nonce,
		Fee:       tx.Origin.Fee,
		PublicKey: tx.Origin.PublicKey,
	}
	if tx.Sponsor != nil {
		unsigned.Sponsor = &SpendingCondition{
			Nonce:     tx.Sponsor.Nonce,
			Fee:       tx.Sponsor.Fee,
			PublicKey: tx.Sponsor.PublicKey,
		}
	}
	raw, err := rlp.EncodeToBytes(&unsigned)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(raw), nil
}

// SignOrigin fills in the origin public key and signature.
func (tx *Transaction) SignOrigin(key *crypto.PrivateKey) error {
	tx.Origin.PublicKey = key.PubKey().Compressed()
	digest, err := tx.SigHash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return err
	}
	tx.Origin.Signature = sig
	return nil
}

// SignSponsor fills in the sponsor public key and signature. The sponsor
// condition must already exist with its nonce and fee set.
func (tx *Transaction) SignSponsor(key *crypto.PrivateKey) error {
	if tx.Sponsor == nil {
		return fmt.Errorf("transaction has no sponsor condition")
	}
	tx.Sponsor.PublicKey = key.PubKey().Compressed()
	digest, err := tx.SigHash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return err
	}
	tx.Sponsor.Signature = sig
	return nil
}

func verifyCondition(digest [32]byte, sc *SpendingCondition) error {
	if len(sc.PublicKey) == 0 {
		return fmt.Errorf("missing public key")
	}
	recovered, err := crypto.RecoverCompressed(digest, sc.Signature)
	if err != nil {
		return err
	}
	if len(recovered) != len(sc.PublicKey) {
		return fmt.Errorf("recovered key does not match signer")
	}
	for i := range recovered {
		if recovered[i] != sc.PublicKey[i] {
			return fmt.Errorf("recovered key does not match signer")
		}
	}
	return nil
}

// VerifySignatures checks the origin and, when present, sponsor signatures
// against the sighash.
func (tx *Transaction) VerifySignatures() error {
	digest, err := tx.SigHash()
	if err != nil {
		return err
	}
	if err := verifyCondition(digest, &tx.Origin); err != nil {
		return fmt.Errorf("origin: %w", err)
	}
	if tx.Sponsor != nil {
		if err := verifyCondition(digest, tx.Sponsor); err != nil {
			return fmt.Errorf("sponsor: %w", err)
		}
	}
	return nil
}

// FeePayer returns the spending condition responsible for the fee: sponsor
// when present, else origin.
func (tx *Transaction) FeePayer() *SpendingCondition {
	if tx.Sponsor != nil {
		return tx.Sponsor
	}
	return &tx.Origin
}

// Fee is the declared fee of the fee-paying condition.
func (tx *Transaction) Fee() uint64 {
	return tx.FeePayer().Fee
}

// TransferValue is the value the payload moves out of the fee payer's view
// of spendable funds; zero for every payload except token transfers.
func (tx *Transaction) TransferValue() *big.Int {
	if tx.Payload.Kind == PayloadTokenTransfer && tx.Payload.TokenTransfer != nil && tx.Payload.TokenTransfer.Amount != nil {
		return new(big.Int).Set(tx.Payload.TokenTransfer.Amount)
	}
	return big.NewInt(0)
}
