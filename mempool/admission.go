package mempool

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"quarrychain/core/state"
	"quarrychain/core/types"
	"quarrychain/storage"
	"quarrychain/vm"
)

// Pipeline decides whether a raw transaction may enter the mempool. Checks
// run in a fixed cheap-first order and stop at the first failure, so every
// rejection names exactly one reason. The pipeline only ever reads committed
// state; pending mempool contents never influence a decision, which keeps
// Admit a pure function of (bytes, snapshot).
type Pipeline struct {
	db      storage.Database
	network types.Network
	chainID uint32
	fees    *Estimator
	logger  *slog.Logger
}

func NewPipeline(db storage.Database, network types.Network, chainID uint32, fees *Estimator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{db: db, network: network, chainID: chainID, fees: fees, logger: logger}
}

// Admit runs the full admission sequence against the given snapshot and
// produces the decision for the submitted bytes.
func (p *Pipeline) Admit(raw []byte, snap state.Snapshot) Decision {
	txid := types.TxID(raw)

	// 1. Deserialization.
	tx, err := types.DecodeTransaction(raw)
	if err != nil {
		return p.finish(reject(txid, ReasonDeserialization))
	}

	// 2. Signature validation.
	if err := tx.VerifySignatures(); err != nil {
		return p.finish(reject(txid, ReasonSignatureValidation))
	}

	// 3. Special payloads short-circuit before any state access.
	if tx.Payload.Kind == types.PayloadCoinbase {
		return p.finish(reject(txid, ReasonNoCoinbaseViaMempool))
	}

	mgr, err := state.NewManager(p.db, snap)
	if err != nil {
		return p.finish(p.serverFailure(txid, err))
	}

	if tx.Payload.Kind == types.PayloadPoisonMicroblock {
		return p.finish(p.checkPoisonMicroblock(txid, tx, mgr))
	}

	// 4. Nonce check, origin before sponsor.
	if d, ok := p.checkNonces(txid, tx, mgr); !ok {
		return p.finish(d)
	}

	// 5. Fee check.
	minFee := p.fees.MinimumFee(len(raw), tx.Payload.Kind)
	if tx.Fee() < minFee {
		return p.finish(rejectWith(txid, ReasonFeeTooLow, &FeeTooLowData{Expected: minFee, Actual: tx.Fee()}))
	}

	// 6. Balance check against the fee payer.
	if d, ok := p.checkBalance(txid, tx, mgr); !ok {
		return p.finish(d)
	}

	// 7. Payload-specific semantics.
	if d, ok := p.checkPayload(txid, tx, mgr); !ok {
		return p.finish(d)
	}

	return p.finish(accept(txid))
}

func (p *Pipeline) finish(d Decision) Decision {
	switch {
	case d.Accepted():
		p.logger.Debug("mempool accept", "txid", d.TxID)
	case d.Reason.ServerFailure():
		p.logger.Error("mempool server failure", "txid", d.TxID, "reason", d.Reason)
	default:
		p.logger.Debug("mempool rejection", "txid", d.TxID, "reason", d.Reason)
	}
	return d
}

// serverFailure maps an internal read error onto the retryable reason class.
func (p *Pipeline) serverFailure(txid string, err error) Decision {
	if errors.Is(err, state.ErrRootUnavailable) {
		return reject(txid, ReasonServerFailureNoSuchChainTip)
	}
	return rejectWith(txid, ReasonServerFailureDatabase, &ServerFailureData{Message: err.Error()})
}

func (p *Pipeline) checkNonces(txid string, tx *types.Transaction, mgr *state.Manager) (Decision, bool) {
	version := p.network.AddressVersion()

	origin := types.StandardPrincipal(tx.Origin.Signer(version))
	account, _, err := mgr.GetAccount(origin, false)
	if err != nil {
		return p.serverFailure(txid, err), false
	}
	if tx.Origin.Nonce != account.Nonce {
		return rejectWith(txid, ReasonBadNonce, &BadNonceData{
			Expected:  account.Nonce,
			Actual:    tx.Origin.Nonce,
			IsOrigin:  true,
			Principal: origin.String(),
		}), false
	}

	if tx.Sponsor != nil {
		sponsor := types.StandardPrincipal(tx.Sponsor.Signer(version))
		account, _, err := mgr.GetAccount(sponsor, false)
		if err != nil {
			return p.serverFailure(txid, err), false
		}
		if tx.Sponsor.Nonce != account.Nonce {
			return rejectWith(txid, ReasonBadNonce, &BadNonceData{
				Expected:  account.Nonce,
				Actual:    tx.Sponsor.Nonce,
				IsOrigin:  false,
				Principal: sponsor.String(),
			}), false
		}
	}
	return Decision{}, true
}

func (p *Pipeline) checkBalance(txid string, tx *types.Transaction, mgr *state.Manager) (Decision, bool) {
	payer := types.StandardPrincipal(tx.FeePayer().Signer(p.network.AddressVersion()))
	account, _, err := mgr.GetAccount(payer, false)
	if err != nil {
		return p.serverFailure(txid, err), false
	}

	required := new(uint256.Int).SetUint64(tx.Fee())
	transfer, overflow := uint256.FromBig(tx.TransferValue())
	if overflow {
		// A declared transfer beyond 128 bits can never be covered.
		return rejectWith(txid, ReasonNotEnoughFunds, &NotEnoughFundsData{
			Expected: FormatAmount(nil),
			Actual:   FormatAmount(account.Balance),
		}), false
	}
	required.Add(required, transfer)

	balance, _ := uint256.FromBig(account.Balance)
	if balance.Cmp(required) < 0 {
		return rejectWith(txid, ReasonNotEnoughFunds, &NotEnoughFundsData{
			Expected: FormatAmount(required.ToBig()),
			Actual:   FormatAmount(account.Balance),
		}), false
	}
	return Decision{}, true
}

func (p *Pipeline) checkPayload(txid string, tx *types.Transaction, mgr *state.Manager) (Decision, bool) {
	switch tx.Payload.Kind {
	case types.PayloadContractCall:
		return p.checkContractCall(txid, tx.Payload.ContractCall, mgr)
	case types.PayloadContractPublish:
		return p.checkContractPublish(txid, tx, mgr)
	case types.PayloadTokenTransfer:
		recipient := tx.Payload.TokenTransfer.Recipient
		if !p.network.AcceptsAddressVersion(recipient.Address.Version) {
			return reject(txid, ReasonBadAddressVersionByte), false
		}
		return Decision{}, true
	default:
		return Decision{}, true
	}
}

func (p *Pipeline) checkContractCall(txid string, call *types.ContractCallPayload, mgr *state.Manager) (Decision, bool) {
	exists, err := mgr.ContractExists(call.Contract)
	if err != nil {
		return p.serverFailure(txid, err), false
	}
	if !exists {
		return reject(txid, ReasonNoSuchContract), false
	}
	iface, ok, err := mgr.ContractInterface(call.Contract)
	if err != nil {
		return p.serverFailure(txid, err), false
	}
	if !ok {
		return reject(txid, ReasonNoSuchContract), false
	}
	fn, ok := iface.Function(call.Function)
	if !ok || (fn.Access != types.AccessPublic && fn.Access != types.AccessReadOnly) {
		return reject(txid, ReasonNoSuchPublicFunction), false
	}
	if len(call.Args) != len(fn.Args) {
		msg := fmt.Sprintf("function %q expects %d arguments, got %d", call.Function, len(fn.Args), len(call.Args))
		return rejectWith(txid, ReasonBadFunctionArgument, &BadFunctionArgumentData{Message: msg}), false
	}
	for i, arg := range call.Args {
		if !vm.MatchesType(fn.Args[i].Type, arg) {
			msg := fmt.Sprintf("argument %d (%s) does not match declared type %s", i, fn.Args[i].Name, fn.Args[i].Type)
			return rejectWith(txid, ReasonBadFunctionArgument, &BadFunctionArgumentData{Message: msg}), false
		}
	}
	return Decision{}, true
}

func (p *Pipeline) checkContractPublish(txid string, tx *types.Transaction, mgr *state.Manager) (Decision, bool) {
	deployer := tx.Origin.Signer(p.network.AddressVersion())
	id := types.ContractID{Address: deployer, Name: tx.Payload.ContractPublish.Name}
	exists, err := mgr.ContractExists(id)
	if err != nil {
		return p.serverFailure(txid, err), false
	}
	if exists {
		return rejectWith(txid, ReasonContractAlreadyExists, &ContractAlreadyExistsData{ContractIdentifier: id.String()}), false
	}
	return Decision{}, true
}

// checkPoisonMicroblock replaces the nonce/fee/balance/payload sequence for
// poison payloads: the two headers must genuinely conflict, be signed by the
// same key, and that key's hash must be one the chain has committed to.
func (p *Pipeline) checkPoisonMicroblock(txid string, tx *types.Transaction, mgr *state.Manager) Decision {
	payload := tx.Payload.PoisonMicroblock
	h1, h2 := &payload.Header1, &payload.Header2

	d1, err := h1.Digest()
	if err != nil {
		return reject(txid, ReasonPoisonMicroblockIsInvalid)
	}
	d2, err := h2.Digest()
	if err != nil {
		return reject(txid, ReasonPoisonMicroblockIsInvalid)
	}
	if h1.Sequence != h2.Sequence || d1 == d2 {
		return reject(txid, ReasonPoisonMicroblocksDoNotConflict)
	}

	kh1, err := h1.RecoverSignerHash()
	if err != nil {
		return reject(txid, ReasonPoisonMicroblockIsInvalid)
	}
	kh2, err := h2.RecoverSignerHash()
	if err != nil {
		return reject(txid, ReasonPoisonMicroblockIsInvalid)
	}
	// Headers signed by different keys prove nothing about either signer.
	if kh1 != kh2 {
		return reject(txid, ReasonPoisonMicroblockIsInvalid)
	}

	known, err := mgr.HasMicroblockKeyHash(kh1)
	if err != nil {
		return p.serverFailure(txid, err)
	}
	if !known {
		return reject(txid, ReasonPoisonMicroblockHasUnknownPubKeyHash)
	}
	return accept(txid)
}
