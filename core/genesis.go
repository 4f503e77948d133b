package core

import (
	"errors"
	"fmt"
	"math/big"

	"quarrychain/config"
	"quarrychain/core/state"
	"quarrychain/core/types"
)

// bootstrapGenesis seeds state on an empty chain: configured balances and
// the initial transfer fee rate, committed at height zero. The genesis tip
// handle is the committed root itself.
func (n *Node) bootstrapGenesis(genesis *config.Genesis) error {
	if _, err := n.chain.Latest(); err == nil {
		return nil
	} else if !errors.Is(err, ErrNoSuchChainTip) {
		return err
	}

	mgr, err := state.NewManager(n.db, state.Snapshot{})
	if err != nil {
		return err
	}
	for _, alloc := range genesis.Allocations {
		addr, err := types.DecodeAddress(alloc.Address)
		if err != nil {
			return fmt.Errorf("allocation address %q: %w", alloc.Address, err)
		}
		balance, ok := new(big.Int).SetString(alloc.Balance, 10)
		if !ok || balance.Sign() < 0 {
			return fmt.Errorf("allocation balance %q for %s is not a non-negative integer", alloc.Balance, alloc.Address)
		}
		account := &types.Account{Balance: balance, Nonce: alloc.Nonce}
		if err := mgr.PutAccount(types.StandardPrincipal(addr), account); err != nil {
			return err
		}
	}
	if genesis.TransferFeeRate > 0 {
		if err := mgr.SetTransferFeeRate(genesis.TransferFeeRate); err != nil {
			return err
		}
	}
	root, err := mgr.Commit(0)
	if err != nil {
		return err
	}
	if err := n.chain.RegisterTip(root, root, 0); err != nil {
		return err
	}
	n.logger.Info("genesis state committed", "root", root.Hex(), "allocations", len(genesis.Allocations))
	return nil
}
