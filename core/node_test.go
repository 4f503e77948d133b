package core

import (
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"quarrychain/config"
	"quarrychain/core/types"
	"quarrychain/crypto"
	"quarrychain/storage"
	"quarrychain/vm"
)

func testConfig(allocations ...config.Allocation) *config.Config {
	return &config.Config{
		Network: "mainnet",
		ChainID: 1,
		Fees:    config.Fees{MinRatePerByte: 1, MinFee: 180, ContractPublishMultiplier: 2},
		Genesis: config.Genesis{TransferFeeRate: 3, Allocations: allocations},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGenesisSeedsAllocationsAndFeeRate(t *testing.T) {
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	addr := types.StandardAddress{
		Version: types.AddressVersionMainnet,
		Hash:    crypto.Hash160(key.PubKey().Compressed()),
	}
	cfg := testConfig(config.Allocation{Address: addr.String(), Balance: "5000000", Nonce: 2})

	node, err := NewNode(storage.NewMemDB(), cfg, vm.NullEngine{}, quietLogger())
	require.NoError(t, err)

	snap, err := node.ResolveSnapshot("latest")
	require.NoError(t, err)
	require.Equal(t, uint64(0), snap.Height)

	account, _, err := node.GetAccount(types.StandardPrincipal(addr), snap, false)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(5_000_000), account.Balance)
	require.Equal(t, uint64(2), account.Nonce)

	rate, err := node.TransferFeeRate(snap)
	require.NoError(t, err)
	require.Equal(t, uint64(3), rate)
}

func TestGenesisRunsOnceAcrossRestarts(t *testing.T) {
	db := storage.NewMemDB()
	cfg := testConfig()

	node, err := NewNode(db, cfg, vm.NullEngine{}, quietLogger())
	require.NoError(t, err)
	first, err := node.ResolveSnapshot("latest")
	require.NoError(t, err)

	// A second node over the same store must not re-run genesis.
	cfg.Genesis.TransferFeeRate = 99
	node, err = NewNode(db, cfg, vm.NullEngine{}, quietLogger())
	require.NoError(t, err)
	second, err := node.ResolveSnapshot("latest")
	require.NoError(t, err)
	require.Equal(t, first, second)

	rate, err := node.TransferFeeRate(second)
	require.NoError(t, err)
	require.Equal(t, uint64(3), rate)
}

func TestGenesisRejectsMalformedAllocations(t *testing.T) {
	cfg := testConfig(config.Allocation{Address: "bogus", Balance: "10"})
	_, err := NewNode(storage.NewMemDB(), cfg, vm.NullEngine{}, quietLogger())
	require.Error(t, err)

	key, kerr := crypto.GeneratePrivateKey()
	require.NoError(t, kerr)
	addr := types.StandardAddress{
		Version: types.AddressVersionMainnet,
		Hash:    crypto.Hash160(key.PubKey().Compressed()),
	}
	cfg = testConfig(config.Allocation{Address: addr.String(), Balance: "not-a-number"})
	_, err = NewNode(storage.NewMemDB(), cfg, vm.NullEngine{}, quietLogger())
	require.Error(t, err)
}

func TestResolveSnapshotSelectors(t *testing.T) {
	node, err := NewNode(storage.NewMemDB(), testConfig(), vm.NullEngine{}, quietLogger())
	require.NoError(t, err)

	latest, err := node.ResolveSnapshot("latest")
	require.NoError(t, err)
	blank, err := node.ResolveSnapshot("")
	require.NoError(t, err)
	require.Equal(t, latest, blank)

	byHash, err := node.ResolveSnapshot(latest.Tip.Hex())
	require.NoError(t, err)
	require.Equal(t, latest, byHash)

	_, err = node.ResolveSnapshot("zzzz")
	require.ErrorIs(t, err, ErrNoSuchChainTip)
	_, err = node.ResolveSnapshot("0x" + "11" + "22")
	require.ErrorIs(t, err, ErrNoSuchChainTip)
}
