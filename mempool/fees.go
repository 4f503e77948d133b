package mempool

import (
	"quarrychain/core/state"
	"quarrychain/core/types"
)

// FeePolicy holds the admission fee parameters. Values come from config;
// the per-byte transfer rate may additionally be overridden by a rate
// committed in state, which is why rate queries take a snapshot.
type FeePolicy struct {
	// MinRatePerByte is the floor cost per serialized transaction byte.
	MinRatePerByte uint64
	// MinFee is an absolute lower bound regardless of size.
	MinFee uint64
	// ContractPublishMultiplier scales the per-byte rate for contract
	// publishes, which consume storage permanently.
	ContractPublishMultiplier uint64
}

// DefaultFeePolicy mirrors the network's relay minimums.
func DefaultFeePolicy() FeePolicy {
	return FeePolicy{MinRatePerByte: 1, MinFee: 180, ContractPublishMultiplier: 2}
}

func (p FeePolicy) normalized() FeePolicy {
	if p.MinRatePerByte == 0 {
		p.MinRatePerByte = 1
	}
	if p.ContractPublishMultiplier == 0 {
		p.ContractPublishMultiplier = 1
	}
	return p
}

// Estimator computes minimum admission fees. It is a pure function of the
// policy and its inputs; no I/O happens here.
type Estimator struct {
	policy FeePolicy
}

func NewEstimator(policy FeePolicy) *Estimator {
	return &Estimator{policy: policy.normalized()}
}

// MinimumFee returns the smallest acceptable fee for a transaction of the
// given serialized length and payload kind.
func (e *Estimator) MinimumFee(byteLength int, kind types.PayloadKind) uint64 {
	rate := e.policy.MinRatePerByte
	if kind == types.PayloadContractPublish {
		rate *= e.policy.ContractPublishMultiplier
	}
	fee := rate * uint64(byteLength)
	if fee < e.policy.MinFee {
		fee = e.policy.MinFee
	}
	return fee
}

// TransferFeeRate returns the per-byte rate used for fee estimation queries
// at the given snapshot: the rate committed in state when present, else the
// policy default.
func (e *Estimator) TransferFeeRate(mgr *state.Manager) (uint64, error) {
	rate, ok, err := mgr.TransferFeeRate()
	if err != nil {
		return 0, err
	}
	if ok {
		return rate, nil
	}
	return e.policy.MinRatePerByte, nil
}
