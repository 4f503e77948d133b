package types

import (
	"math/big"
	"testing"

	"quarrychain/crypto"
)

func testAddress(t *testing.T, key *crypto.PrivateKey) StandardAddress {
	t.Helper()
	return StandardAddress{Version: AddressVersionMainnet, Hash: crypto.Hash160(key.PubKey().Compressed())}
}

func newTransfer(t *testing.T, key *crypto.PrivateKey, nonce, fee uint64, amount int64) *Transaction {
	t.Helper()
	recipientKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate recipient key: %v", err)
	}
	tx := &Transaction{
		Version: 1,
		ChainID: 1,
		Origin:  SpendingCondition{Nonce: nonce, Fee: fee},
		Payload: Payload{
			Kind: PayloadTokenTransfer,
			TokenTransfer: &TokenTransferPayload{
				Recipient: StandardPrincipal(testAddress(t, recipientKey)),
				Amount:    big.NewInt(amount),
			},
		},
	}
	if err := tx.SignOrigin(key); err != nil {
		t.Fatalf("sign origin: %v", err)
	}
	return tx
}

func TestTransactionSignAndVerify(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := newTransfer(t, key, 0, 500, 1000)
	if err := tx.VerifySignatures(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	signer := tx.Origin.Signer(AddressVersionMainnet)
	if signer != testAddress(t, key) {
		t.Fatalf("signer mismatch: %s", signer)
	}
}

func TestTransactionTamperedPayloadFailsVerification(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := newTransfer(t, key, 0, 500, 1000)
	tx.Payload.TokenTransfer.Amount = big.NewInt(999999)
	if err := tx.VerifySignatures(); err == nil {
		t.Fatal("expected verification failure after payload tamper")
	}
}

func TestSponsoredTransactionVerifiesBothSigners(t *testing.T) {
	originKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate origin key: %v", err)
	}
	sponsorKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate sponsor key: %v", err)
	}
	tx := newTransfer(t, originKey, 3, 0, 50)
	// Both public keys are under the sighash, so the sponsor condition is
	// filled in before either party signs.
	tx.Sponsor = &SpendingCondition{Nonce: 7, Fee: 400}
	if err := tx.SignSponsor(sponsorKey); err != nil {
		t.Fatalf("sign sponsor: %v", err)
	}
	if err := tx.SignOrigin(originKey); err != nil {
		t.Fatalf("re-sign origin: %v", err)
	}
	if err := tx.VerifySignatures(); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got := tx.FeePayer().Fee; got != 400 {
		t.Fatalf("fee payer should be sponsor, fee %d", got)
	}

	// Swapping the sponsor signature for one from another key must fail.
	otherKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate other key: %v", err)
	}
	digest, err := tx.SigHash()
	if err != nil {
		t.Fatalf("sighash: %v", err)
	}
	badSig, err := crypto.Sign(digest, otherKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx.Sponsor.Signature = badSig
	if err := tx.VerifySignatures(); err == nil {
		t.Fatal("expected sponsor signature mismatch")
	}
}

func TestTransactionRoundTripAndTxID(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := newTransfer(t, key, 5, 200, 77)
	raw, err := tx.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeTransaction(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Origin.Nonce != 5 || decoded.Origin.Fee != 200 {
		t.Fatalf("decoded origin condition mismatch: %+v", decoded.Origin)
	}
	if decoded.Payload.Kind != PayloadTokenTransfer || decoded.Payload.TokenTransfer == nil {
		t.Fatalf("decoded payload mismatch: %+v", decoded.Payload)
	}
	if decoded.Payload.TokenTransfer.Amount.Int64() != 77 {
		t.Fatalf("decoded amount mismatch")
	}

	// The txid is a pure content hash: stable across calls, different for
	// different bytes.
	if TxID(raw) != TxID(raw) {
		t.Fatal("txid not deterministic")
	}
	other := newTransfer(t, key, 6, 200, 77)
	otherRaw, err := other.Bytes()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if TxID(raw) == TxID(otherRaw) {
		t.Fatal("distinct transactions share a txid")
	}
}

func TestDecodeTransactionRejectsGarbage(t *testing.T) {
	if _, err := DecodeTransaction([]byte{0x01, 0x02, 0x03}); err == nil {
		t.Fatal("expected decode failure")
	}
}

func TestPayloadUnionRejectsMismatchedKind(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := newTransfer(t, key, 0, 100, 1)
	tx.Payload.Kind = PayloadContractCall
	if _, err := tx.Bytes(); err == nil {
		t.Fatal("expected payload union validation failure")
	}
}

func TestTransferValue(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tx := newTransfer(t, key, 0, 100, 4242)
	if tx.TransferValue().Int64() != 4242 {
		t.Fatalf("transfer value mismatch")
	}
	coinbase := &Transaction{
		Version: 1,
		Payload: Payload{Kind: PayloadCoinbase, Coinbase: &CoinbasePayload{}},
	}
	if coinbase.TransferValue().Sign() != 0 {
		t.Fatal("non-transfer payloads move no value")
	}
}
