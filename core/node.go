package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"quarrychain/config"
	"quarrychain/core/state"
	"quarrychain/core/types"
	"quarrychain/mempool"
	"quarrychain/observability/metrics"
	"quarrychain/storage"
	"quarrychain/vm"
)

// Node wires storage, the chain tip registry, the admission pipeline and the
// read-only sandbox together behind the surface the RPC layer consumes.
// Every operation takes an explicit snapshot; the node holds no implicit
// "current tip" beyond the registry's latest pointer.
type Node struct {
	db       storage.Database
	chain    *Chain
	network  types.Network
	chainID  uint32
	fees     *mempool.Estimator
	pipeline *mempool.Pipeline
	sandbox  *vm.Sandbox
	logger   *slog.Logger
}

func NewNode(db storage.Database, cfg *config.Config, engine vm.Engine, logger *slog.Logger) (*Node, error) {
	if logger == nil {
		logger = slog.Default()
	}
	chain, err := NewChain(db)
	if err != nil {
		return nil, err
	}
	network := types.Mainnet
	if cfg.Network == "testnet" {
		network = types.Testnet
	}
	fees := mempool.NewEstimator(mempool.FeePolicy{
		MinRatePerByte:            cfg.Fees.MinRatePerByte,
		MinFee:                    cfg.Fees.MinFee,
		ContractPublishMultiplier: cfg.Fees.ContractPublishMultiplier,
	})
	node := &Node{
		db:       db,
		chain:    chain,
		network:  network,
		chainID:  cfg.ChainID,
		fees:     fees,
		pipeline: mempool.NewPipeline(db, network, cfg.ChainID, fees, logger),
		sandbox:  vm.NewSandbox(engine),
		logger:   logger,
	}
	if err := node.bootstrapGenesis(&cfg.Genesis); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	return node, nil
}

func (n *Node) Network() types.Network { return n.network }
func (n *Node) ChainID() uint32        { return n.chainID }

// Chain exposes the tip registry for block-application collaborators.
func (n *Node) Chain() *Chain { return n.chain }

// ResolveSnapshot turns a tip selector ("", "latest", or a 32-byte hex tip
// hash) into an immutable snapshot handle.
func (n *Node) ResolveSnapshot(selector string) (state.Snapshot, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" || selector == "latest" {
		return n.chain.Latest()
	}
	raw, err := hex.DecodeString(strings.TrimPrefix(selector, "0x"))
	if err != nil || len(raw) != 32 {
		return state.Snapshot{}, ErrNoSuchChainTip
	}
	return n.chain.SnapshotAt(common.BytesToHash(raw))
}

// OpenState opens a read view of the snapshot's state.
func (n *Node) OpenState(snap state.Snapshot) (*state.Manager, error) {
	return state.NewManager(n.db, snap)
}

// SubmitTransaction admits raw transaction bytes against the given snapshot
// and records the outcome in the node metrics. The decision is produced
// exactly once; persisting accepted entries is the mempool store's concern.
func (n *Node) SubmitTransaction(raw []byte, snap state.Snapshot) mempool.Decision {
	decision := n.pipeline.Admit(raw, snap)
	if decision.Accepted() {
		metrics.TransactionsAccepted.Inc()
	} else {
		metrics.TransactionsRejected.WithLabelValues(string(decision.Reason)).Inc()
	}
	return decision
}

// SubmitTransactionLatest admits against the latest committed tip.
func (n *Node) SubmitTransactionLatest(raw []byte) mempool.Decision {
	snap, err := n.chain.Latest()
	if err != nil {
		metrics.TransactionsRejected.WithLabelValues(string(mempool.ReasonServerFailureNoSuchChainTip)).Inc()
		return mempool.Decision{TxID: types.TxID(raw), Reason: mempool.ReasonServerFailureNoSuchChainTip}
	}
	return n.SubmitTransaction(raw, snap)
}

// GetAccount resolves an account at a snapshot, optionally with per-field
// proofs.
func (n *Node) GetAccount(p types.Principal, snap state.Snapshot, withProof bool) (*types.Account, *state.AccountProofs, error) {
	mgr, err := n.OpenState(snap)
	if err != nil {
		return nil, nil, err
	}
	return mgr.GetAccount(p, withProof)
}

// MapEntryResult is a total answer over the key space: Found is false only
// when the contract or map is missing; an absent key yields the serialized
// empty optional.
type MapEntryResult struct {
	Data  []byte
	Proof []byte
	Found bool
}

// GetMapEntry looks up a contract data map entry and wraps the answer in an
// optional.
func (n *Node) GetMapEntry(id types.ContractID, mapName string, key []byte, snap state.Snapshot, withProof bool) (MapEntryResult, error) {
	mgr, err := n.OpenState(snap)
	if err != nil {
		return MapEntryResult{}, err
	}
	value, proof, found, err := mgr.MapEntry(id, mapName, key, withProof)
	if err != nil || !found {
		return MapEntryResult{}, err
	}
	data := vm.None()
	if len(value) > 0 {
		data = vm.WrapSome(value)
	}
	return MapEntryResult{Data: data, Proof: proof, Found: true}, nil
}

// GetContractSource returns the published source, height and optional proof.
func (n *Node) GetContractSource(id types.ContractID, snap state.Snapshot, withProof bool) (source string, height uint64, proof []byte, found bool, err error) {
	mgr, err := n.OpenState(snap)
	if err != nil {
		return "", 0, nil, false, err
	}
	return mgr.ContractSource(id, withProof)
}

// GetContractInterface returns the stored interface for a contract.
func (n *Node) GetContractInterface(id types.ContractID, snap state.Snapshot) (*types.ContractInterface, bool, error) {
	mgr, err := n.OpenState(snap)
	if err != nil {
		return nil, false, err
	}
	return mgr.ContractInterface(id)
}

// TransferFeeRate reports the per-byte fee estimation rate at a snapshot.
func (n *Node) TransferFeeRate(snap state.Snapshot) (uint64, error) {
	mgr, err := n.OpenState(snap)
	if err != nil {
		return 0, err
	}
	return n.fees.TransferFeeRate(mgr)
}

// CallReadOnly executes a read-only contract function against a discarded
// overlay of the snapshot.
func (n *Node) CallReadOnly(ctx context.Context, call vm.Call, snap state.Snapshot) (vm.CallResult, error) {
	mgr, err := n.OpenState(snap)
	if err != nil {
		return vm.CallResult{}, err
	}
	return n.sandbox.Call(ctx, mgr, call)
}
