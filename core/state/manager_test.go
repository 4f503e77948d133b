package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/require"

	"quarrychain/core/types"
	"quarrychain/storage"
	"quarrychain/storage/trie"
)

func testPrincipal(b byte) types.Principal {
	addr := types.StandardAddress{Version: types.AddressVersionMainnet}
	addr.Hash[0] = b
	return types.StandardPrincipal(addr)
}

func testContractID(b byte, name string) types.ContractID {
	addr := types.StandardAddress{Version: types.AddressVersionMainnet}
	addr.Hash[0] = b
	return types.ContractID{Address: addr, Name: name}
}

// committed writes the given state mutations, commits at height 1 and reopens
// a fresh manager at the resulting root.
func committed(t *testing.T, db storage.Database, write func(mgr *Manager)) *Manager {
	t.Helper()
	mgr, err := NewManager(db, Snapshot{})
	require.NoError(t, err)
	write(mgr)
	root, err := mgr.Commit(1)
	require.NoError(t, err)
	reopened, err := NewManager(db, Snapshot{Tip: root, Root: root, Height: 1})
	require.NoError(t, err)
	return reopened
}

func TestGetAccountAbsentIsZero(t *testing.T) {
	mgr, err := NewManager(storage.NewMemDB(), Snapshot{})
	require.NoError(t, err)
	account, proofs, err := mgr.GetAccount(testPrincipal(0x01), false)
	require.NoError(t, err)
	require.Nil(t, proofs)
	require.Equal(t, uint64(0), account.Nonce)
	require.Zero(t, account.Balance.Sign())
}

func TestPutAndGetAccount(t *testing.T) {
	p := testPrincipal(0x02)
	mgr := committed(t, storage.NewMemDB(), func(mgr *Manager) {
		require.NoError(t, mgr.PutAccount(p, &types.Account{Balance: big.NewInt(12345), Nonce: 7}))
	})
	account, _, err := mgr.GetAccount(p, false)
	require.NoError(t, err)
	require.Equal(t, int64(12345), account.Balance.Int64())
	require.Equal(t, uint64(7), account.Nonce)
}

func TestPutAccountRejectsOutOfRangeBalance(t *testing.T) {
	mgr, err := NewManager(storage.NewMemDB(), Snapshot{})
	require.NoError(t, err)
	huge := new(big.Int).Lsh(big.NewInt(1), 128)
	err = mgr.PutAccount(testPrincipal(0x03), &types.Account{Balance: huge})
	require.Error(t, err)
	err = mgr.PutAccount(testPrincipal(0x03), &types.Account{Balance: big.NewInt(-1)})
	require.Error(t, err)
}

func TestAccountProofsVerifyIndependently(t *testing.T) {
	p := testPrincipal(0x04)
	mgr := committed(t, storage.NewMemDB(), func(mgr *Manager) {
		require.NoError(t, mgr.PutAccount(p, &types.Account{Balance: big.NewInt(900), Nonce: 3}))
		// Unrelated state so the trie has more than one leaf.
		require.NoError(t, mgr.PutAccount(testPrincipal(0x05), &types.Account{Balance: big.NewInt(1), Nonce: 0}))
	})
	account, proofs, err := mgr.GetAccount(p, true)
	require.NoError(t, err)
	require.NotNil(t, proofs)

	root := mgr.Snapshot().Root

	proven, err := trie.VerifyProof(root, accountBalanceKey(p), proofs.Balance)
	require.NoError(t, err)
	var balance big.Int
	require.NoError(t, rlp.DecodeBytes(proven, &balance))
	require.Equal(t, account.Balance, &balance)

	proven, err = trie.VerifyProof(root, accountNonceKey(p), proofs.Nonce)
	require.NoError(t, err)
	var nonce uint64
	require.NoError(t, rlp.DecodeBytes(proven, &nonce))
	require.Equal(t, account.Nonce, nonce)

	// A proof is bound to the root it was generated under.
	var wrongRoot common.Hash
	wrongRoot[0] = 0xff
	_, err = trie.VerifyProof(wrongRoot, accountBalanceKey(p), proofs.Balance)
	require.Error(t, err)
}

func TestAbsenceProofForUntouchedAccount(t *testing.T) {
	present := testPrincipal(0x06)
	absent := testPrincipal(0x07)
	mgr := committed(t, storage.NewMemDB(), func(mgr *Manager) {
		require.NoError(t, mgr.PutAccount(present, &types.Account{Balance: big.NewInt(5), Nonce: 1}))
	})
	account, proofs, err := mgr.GetAccount(absent, true)
	require.NoError(t, err)
	require.Zero(t, account.Balance.Sign())
	require.Equal(t, uint64(0), account.Nonce)

	proven, err := trie.VerifyProof(mgr.Snapshot().Root, accountBalanceKey(absent), proofs.Balance)
	require.NoError(t, err)
	require.Empty(t, proven)
}

func TestContractSourceAndInterface(t *testing.T) {
	id := testContractID(0x08, "counter")
	iface := &types.ContractInterface{
		Functions: []types.FunctionSpec{{Name: "get-count", Access: types.AccessReadOnly}},
		Maps:      []types.MapSpec{{Name: "counts", KeyType: "principal", ValueType: "uint128"}},
	}
	mgr := committed(t, storage.NewMemDB(), func(mgr *Manager) {
		require.NoError(t, mgr.PublishContract(id, "(define-read-only (get-count) u0)", 42, iface))
	})

	exists, err := mgr.ContractExists(id)
	require.NoError(t, err)
	require.True(t, exists)

	source, height, proof, found, err := mgr.ContractSource(id, true)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "(define-read-only (get-count) u0)", source)
	require.Equal(t, uint64(42), height)
	require.NotEmpty(t, proof)

	stored, found, err := mgr.ContractInterface(id)
	require.NoError(t, err)
	require.True(t, found)
	fn, ok := stored.Function("get-count")
	require.True(t, ok)
	require.Equal(t, types.AccessReadOnly, fn.Access)
	_, ok = stored.Map("counts")
	require.True(t, ok)

	_, _, _, found, err = mgr.ContractSource(testContractID(0x09, "missing"), false)
	require.NoError(t, err)
	require.False(t, found)
}

func TestMapEntryLookups(t *testing.T) {
	id := testContractID(0x0a, "registry")
	iface := &types.ContractInterface{
		Maps: []types.MapSpec{{Name: "owners", KeyType: "uint128", ValueType: "principal"}},
	}
	key := []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x07}
	value := []byte{0x0d, 'h', 'i'}
	mgr := committed(t, storage.NewMemDB(), func(mgr *Manager) {
		require.NoError(t, mgr.PublishContract(id, "(define-map owners uint principal)", 1, iface))
		require.NoError(t, mgr.SetMapEntry(id, "owners", key, value))
	})

	got, proof, found, err := mgr.MapEntry(id, "owners", key, true)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, value, got)
	require.NotEmpty(t, proof)

	proven, err := trie.VerifyProof(mgr.Snapshot().Root, mapEntryKey(id, "owners", key), proof)
	require.NoError(t, err)
	require.Equal(t, value, proven)

	// Absent key in an existing map: found, nil value.
	got, _, found, err = mgr.MapEntry(id, "owners", []byte{0xff}, false)
	require.NoError(t, err)
	require.True(t, found)
	require.Nil(t, got)

	// Unknown map name and unknown contract: not found.
	_, _, found, err = mgr.MapEntry(id, "no-such-map", key, false)
	require.NoError(t, err)
	require.False(t, found)
	_, _, found, err = mgr.MapEntry(testContractID(0x0b, "ghost"), "owners", key, false)
	require.NoError(t, err)
	require.False(t, found)
}

func TestMicroblockKeyHash(t *testing.T) {
	var committedHash [20]byte
	committedHash[0] = 0xaa
	mgr := committed(t, storage.NewMemDB(), func(mgr *Manager) {
		require.NoError(t, mgr.CommitMicroblockKeyHash(committedHash, 10))
	})

	has, err := mgr.HasMicroblockKeyHash(committedHash)
	require.NoError(t, err)
	require.True(t, has)

	var unknown [20]byte
	unknown[0] = 0xbb
	has, err = mgr.HasMicroblockKeyHash(unknown)
	require.NoError(t, err)
	require.False(t, has)
}

func TestTransferFeeRate(t *testing.T) {
	db := storage.NewMemDB()
	mgr, err := NewManager(db, Snapshot{})
	require.NoError(t, err)
	_, set, err := mgr.TransferFeeRate()
	require.NoError(t, err)
	require.False(t, set)

	mgr = committed(t, db, func(mgr *Manager) {
		require.NoError(t, mgr.SetTransferFeeRate(25))
	})
	rate, set, err := mgr.TransferFeeRate()
	require.NoError(t, err)
	require.True(t, set)
	require.Equal(t, uint64(25), rate)
}

func TestNewManagerFailsForUnknownRoot(t *testing.T) {
	var bogus common.Hash
	bogus[0] = 0x77
	_, err := NewManager(storage.NewMemDB(), Snapshot{Root: bogus})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRootUnavailable)
}
