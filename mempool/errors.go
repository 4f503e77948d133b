package mempool

import (
	"encoding/hex"
	"math/big"
)

// RejectionReason is the caller-visible taxonomy for admission outcomes.
// Validation reasons are final for a given transaction; server-failure
// reasons are environmental and may clear on retry. The two classes share
// one envelope but are distinguishable through ServerFailure.
type RejectionReason string

const (
	ReasonSerialization         RejectionReason = "Serialization"
	ReasonDeserialization       RejectionReason = "Deserialization"
	ReasonSignatureValidation   RejectionReason = "SignatureValidation"
	ReasonBadNonce              RejectionReason = "BadNonce"
	ReasonFeeTooLow             RejectionReason = "FeeTooLow"
	ReasonNotEnoughFunds        RejectionReason = "NotEnoughFunds"
	ReasonNoSuchContract        RejectionReason = "NoSuchContract"
	ReasonNoSuchPublicFunction  RejectionReason = "NoSuchPublicFunction"
	ReasonBadFunctionArgument   RejectionReason = "BadFunctionArgument"
	ReasonContractAlreadyExists RejectionReason = "ContractAlreadyExists"
	ReasonBadAddressVersionByte RejectionReason = "BadAddressVersionByte"
	ReasonNoCoinbaseViaMempool  RejectionReason = "NoCoinbaseViaMempool"

	ReasonPoisonMicroblocksDoNotConflict       RejectionReason = "PoisonMicroblocksDoNotConflict"
	ReasonPoisonMicroblockHasUnknownPubKeyHash RejectionReason = "PoisonMicroblockHasUnknownPubKeyHash"
	ReasonPoisonMicroblockIsInvalid            RejectionReason = "PoisonMicroblockIsInvalid"

	ReasonServerFailureNoSuchChainTip RejectionReason = "ServerFailureNoSuchChainTip"
	ReasonServerFailureDatabase       RejectionReason = "ServerFailureDatabase"
	ReasonServerFailureOther          RejectionReason = "ServerFailureOther"
)

// ServerFailure reports whether the reason is a node/environment condition
// rather than a fault in the transaction. Server failures may be retried
// after backoff; validation rejections must not be.
func (r RejectionReason) ServerFailure() bool {
	switch r {
	case ReasonServerFailureNoSuchChainTip, ReasonServerFailureDatabase, ReasonServerFailureOther:
		return true
	default:
		return false
	}
}

// Per-variant reason data. Reasons not listed here carry no data and omit
// the field entirely from the response envelope.

type BadNonceData struct {
	Expected  uint64 `json:"expected"`
	Actual    uint64 `json:"actual"`
	IsOrigin  bool   `json:"is_origin"`
	Principal string `json:"principal"`
}

type FeeTooLowData struct {
	Expected uint64 `json:"expected"`
	Actual   uint64 `json:"actual"`
}

// NotEnoughFundsData carries both amounts as hex-encoded big-endian 128-bit
// values.
type NotEnoughFundsData struct {
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

type BadFunctionArgumentData struct {
	Message string `json:"message"`
}

type ContractAlreadyExistsData struct {
	ContractIdentifier string `json:"contract_identifier"`
}

type ServerFailureData struct {
	Message string `json:"message"`
}

// Decision is the admission outcome: exactly one is produced per submitted
// transaction. Reason is empty on acceptance. TxID is set whenever the raw
// bytes were at least decodable into an id (always, since the id is a
// content hash of the submitted bytes).
type Decision struct {
	TxID   string
	Reason RejectionReason
	Data   interface{}
}

// Accepted reports whether the transaction was admitted.
func (d Decision) Accepted() bool {
	return d.Reason == ""
}

func accept(txid string) Decision {
	return Decision{TxID: txid}
}

func reject(txid string, reason RejectionReason) Decision {
	return Decision{TxID: txid, Reason: reason}
}

func rejectWith(txid string, reason RejectionReason, data interface{}) Decision {
	return Decision{TxID: txid, Reason: reason, Data: data}
}

// FormatAmount renders an unsigned 128-bit amount as 0x-prefixed big-endian
// hex, zero-padded to 32 digits.
func FormatAmount(v *big.Int) string {
	buf := make([]byte, 16)
	if v != nil && v.Sign() > 0 && v.BitLen() <= 128 {
		v.FillBytes(buf)
	}
	return "0x" + hex.EncodeToString(buf)
}
