package core

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"quarrychain/storage"
)

func TestChainRegisterAndResolve(t *testing.T) {
	db := storage.NewMemDB()
	chain, err := NewChain(db)
	require.NoError(t, err)

	_, err = chain.Latest()
	require.ErrorIs(t, err, ErrNoSuchChainTip)

	tip := common.HexToHash("0x01")
	root := common.HexToHash("0x02")
	require.NoError(t, chain.RegisterTip(tip, root, 5))

	snap, err := chain.SnapshotAt(tip)
	require.NoError(t, err)
	require.Equal(t, tip, snap.Tip)
	require.Equal(t, root, snap.Root)
	require.Equal(t, uint64(5), snap.Height)

	latest, err := chain.Latest()
	require.NoError(t, err)
	require.Equal(t, snap, latest)
}

func TestChainLatestFollowsRegistrations(t *testing.T) {
	db := storage.NewMemDB()
	chain, err := NewChain(db)
	require.NoError(t, err)

	require.NoError(t, chain.RegisterTip(common.HexToHash("0x0a"), common.HexToHash("0x0b"), 1))
	require.NoError(t, chain.RegisterTip(common.HexToHash("0x0c"), common.HexToHash("0x0d"), 2))

	latest, err := chain.Latest()
	require.NoError(t, err)
	require.Equal(t, uint64(2), latest.Height)

	// The latest pointer survives a restart.
	reopened, err := NewChain(db)
	require.NoError(t, err)
	latest, err = reopened.Latest()
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0x0c"), latest.Tip)
}

func TestChainUnknownAndPrunedTips(t *testing.T) {
	db := storage.NewMemDB()
	chain, err := NewChain(db)
	require.NoError(t, err)

	_, err = chain.SnapshotAt(common.HexToHash("0xdead"))
	require.ErrorIs(t, err, ErrNoSuchChainTip)

	tip := common.HexToHash("0x10")
	require.NoError(t, chain.RegisterTip(tip, common.HexToHash("0x11"), 3))
	require.NoError(t, chain.PruneTip(tip))
	_, err = chain.SnapshotAt(tip)
	require.ErrorIs(t, err, ErrNoSuchChainTip)
}
