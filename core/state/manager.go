package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"quarrychain/core/types"
	"quarrychain/storage"
	"quarrychain/storage/trie"
)

// Manager reads and writes principal/contract state under a single snapshot
// root. Readers open one Manager per request; the underlying trie is not
// shared between goroutines.
type Manager struct {
	tr   *trie.Trie
	snap Snapshot
}

// AccountProofs carries the independent per-field inclusion proofs for an
// account read. Either field may be consumed on its own.
type AccountProofs struct {
	Balance []byte
	Nonce   []byte
}

// ErrRootUnavailable marks a snapshot whose state root can no longer be
// opened, typically because the historical trie has been pruned.
var ErrRootUnavailable = errors.New("state root unavailable")

// NewManager opens the state at the snapshot's root. Opening fails with
// ErrRootUnavailable when the root's nodes are no longer present, which is
// how pruned snapshots surface.
func NewManager(db storage.Database, snap Snapshot) (*Manager, error) {
	tr, err := trie.NewTrie(db, snap.Root)
	if err != nil {
		return nil, fmt.Errorf("open state at root %x: %w (%w)", snap.Root, err, ErrRootUnavailable)
	}
	snap.Root = tr.Root()
	return &Manager{tr: tr, snap: snap}, nil
}

// Snapshot returns the handle this manager reads under.
func (m *Manager) Snapshot() Snapshot {
	return m.snap
}

// RawGet reads an arbitrary VM key-space path. The read-only call sandbox
// exposes it to the VM as the base data store; admission and query code use
// the typed accessors instead.
func (m *Manager) RawGet(path string) ([]byte, error) {
	return m.tr.Get(trie.HashKey([]byte(path)))
}

type contractSourceRecord struct {
	Source        string
	PublishHeight uint64
}

// --- Account reads ---

// GetAccount resolves the balance and nonce for a principal. Absent accounts
// yield the zero account, never an error; with withProof set, the returned
// proofs cover the balance and nonce keys independently (an absence proof
// for untouched accounts).
func (m *Manager) GetAccount(p types.Principal, withProof bool) (*types.Account, *AccountProofs, error) {
	account := types.ZeroAccount()

	balKey := accountBalanceKey(p)
	raw, err := m.tr.Get(balKey)
	if err != nil {
		return nil, nil, fmt.Errorf("read balance for %s: %w", p, err)
	}
	if len(raw) > 0 {
		balance := new(big.Int)
		if err := rlp.DecodeBytes(raw, balance); err != nil {
			return nil, nil, fmt.Errorf("decode balance for %s: %w", p, err)
		}
		account.Balance = balance
	}

	nonceKey := accountNonceKey(p)
	raw, err = m.tr.Get(nonceKey)
	if err != nil {
		return nil, nil, fmt.Errorf("read nonce for %s: %w", p, err)
	}
	if len(raw) > 0 {
		var nonce uint64
		if err := rlp.DecodeBytes(raw, &nonce); err != nil {
			return nil, nil, fmt.Errorf("decode nonce for %s: %w", p, err)
		}
		account.Nonce = nonce
	}

	if !withProof {
		return account, nil, nil
	}
	proofs := &AccountProofs{}
	if proofs.Balance, err = m.tr.Prove(balKey); err != nil {
		return nil, nil, fmt.Errorf("prove balance for %s: %w", p, err)
	}
	if proofs.Nonce, err = m.tr.Prove(nonceKey); err != nil {
		return nil, nil, fmt.Errorf("prove nonce for %s: %w", p, err)
	}
	return account, proofs, nil
}

// --- Contract reads ---

// ContractExists reports whether a contract identifier has published source.
func (m *Manager) ContractExists(id types.ContractID) (bool, error) {
	raw, err := m.tr.Get(contractSourceKey(id))
	if err != nil {
		return false, fmt.Errorf("read contract %s: %w", id, err)
	}
	return len(raw) > 0, nil
}

// ContractSource returns the published source and publish height. found is
// false when no contract lives at the identifier.
func (m *Manager) ContractSource(id types.ContractID, withProof bool) (source string, height uint64, proof []byte, found bool, err error) {
	key := contractSourceKey(id)
	raw, err := m.tr.Get(key)
	if err != nil {
		return "", 0, nil, false, fmt.Errorf("read contract source %s: %w", id, err)
	}
	if len(raw) == 0 {
		return "", 0, nil, false, nil
	}
	var record contractSourceRecord
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return "", 0, nil, false, fmt.Errorf("decode contract source %s: %w", id, err)
	}
	if withProof {
		if proof, err = m.tr.Prove(key); err != nil {
			return "", 0, nil, false, fmt.Errorf("prove contract source %s: %w", id, err)
		}
	}
	return record.Source, record.PublishHeight, proof, true, nil
}

// ContractInterface returns the stored interface for a published contract.
func (m *Manager) ContractInterface(id types.ContractID) (*types.ContractInterface, bool, error) {
	raw, err := m.tr.Get(contractInterfaceKey(id))
	if err != nil {
		return nil, false, fmt.Errorf("read contract interface %s: %w", id, err)
	}
	if len(raw) == 0 {
		return nil, false, nil
	}
	iface := new(types.ContractInterface)
	if err := json.Unmarshal(raw, iface); err != nil {
		return nil, false, fmt.Errorf("decode contract interface %s: %w", id, err)
	}
	return iface, true, nil
}

// MapEntry looks up a data map entry by serialized key. found is false only
// when the contract or the named map does not exist; an absent key in an
// existing map is a present-but-empty answer, reported by value == nil.
func (m *Manager) MapEntry(id types.ContractID, mapName string, key []byte, withProof bool) (value []byte, proof []byte, found bool, err error) {
	iface, ok, err := m.ContractInterface(id)
	if err != nil {
		return nil, nil, false, err
	}
	if !ok {
		return nil, nil, false, nil
	}
	if _, ok := iface.Map(mapName); !ok {
		return nil, nil, false, nil
	}
	entryKey := mapEntryKey(id, mapName, key)
	raw, err := m.tr.Get(entryKey)
	if err != nil {
		return nil, nil, false, fmt.Errorf("read map entry %s.%s: %w", id, mapName, err)
	}
	if withProof {
		if proof, err = m.tr.Prove(entryKey); err != nil {
			return nil, nil, false, fmt.Errorf("prove map entry %s.%s: %w", id, mapName, err)
		}
	}
	return raw, proof, true, nil
}

// HasMicroblockKeyHash reports whether the chain has committed to the given
// microblock signing key hash.
func (m *Manager) HasMicroblockKeyHash(h [20]byte) (bool, error) {
	raw, err := m.tr.Get(microblockKeyHashKey(h))
	if err != nil {
		return false, fmt.Errorf("read microblock key hash: %w", err)
	}
	return len(raw) > 0, nil
}

// TransferFeeRate returns the per-byte fee rate committed in state, if one
// has been set at this snapshot.
func (m *Manager) TransferFeeRate() (uint64, bool, error) {
	raw, err := m.tr.Get(transferFeeRateKey())
	if err != nil {
		return 0, false, fmt.Errorf("read transfer fee rate: %w", err)
	}
	if len(raw) == 0 {
		return 0, false, nil
	}
	var rate uint64
	if err := rlp.DecodeBytes(raw, &rate); err != nil {
		return 0, false, fmt.Errorf("decode transfer fee rate: %w", err)
	}
	return rate, true, nil
}

// --- Writes (block application, genesis, tests) ---
//
// Admission and queries never call these; state only advances through
// committed blocks.

// PutAccount writes the balance and nonce for a principal.
func (m *Manager) PutAccount(p types.Principal, account *types.Account) error {
	if account == nil {
		account = types.ZeroAccount()
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	if balance.Sign() < 0 || balance.BitLen() > 128 {
		return fmt.Errorf("balance for %s out of range", p)
	}
	encoded, err := rlp.EncodeToBytes(balance)
	if err != nil {
		return err
	}
	if err := m.tr.Update(accountBalanceKey(p), encoded); err != nil {
		return fmt.Errorf("write balance for %s: %w", p, err)
	}
	encoded, err = rlp.EncodeToBytes(account.Nonce)
	if err != nil {
		return err
	}
	if err := m.tr.Update(accountNonceKey(p), encoded); err != nil {
		return fmt.Errorf("write nonce for %s: %w", p, err)
	}
	return nil
}

// PublishContract stores the contract source, publish height and derived
// interface. Publishing over an existing identifier is the block layer's
// responsibility to prevent; the admission pipeline checks it separately.
func (m *Manager) PublishContract(id types.ContractID, source string, height uint64, iface *types.ContractInterface) error {
	record := contractSourceRecord{Source: source, PublishHeight: height}
	encoded, err := rlp.EncodeToBytes(&record)
	if err != nil {
		return err
	}
	if err := m.tr.Update(contractSourceKey(id), encoded); err != nil {
		return fmt.Errorf("write contract source %s: %w", id, err)
	}
	if iface == nil {
		iface = &types.ContractInterface{}
	}
	rawIface, err := json.Marshal(iface)
	if err != nil {
		return err
	}
	if err := m.tr.Update(contractInterfaceKey(id), rawIface); err != nil {
		return fmt.Errorf("write contract interface %s: %w", id, err)
	}
	return nil
}

// SetMapEntry stores a serialized value under a data map key.
func (m *Manager) SetMapEntry(id types.ContractID, mapName string, key, value []byte) error {
	if err := m.tr.Update(mapEntryKey(id, mapName, key), value); err != nil {
		return fmt.Errorf("write map entry %s.%s: %w", id, mapName, err)
	}
	return nil
}

// CommitMicroblockKeyHash records a microblock signing key hash the chain
// has committed to.
func (m *Manager) CommitMicroblockKeyHash(h [20]byte, height uint64) error {
	encoded, err := rlp.EncodeToBytes(height)
	if err != nil {
		return err
	}
	if err := m.tr.Update(microblockKeyHashKey(h), encoded); err != nil {
		return fmt.Errorf("write microblock key hash: %w", err)
	}
	return nil
}

// SetTransferFeeRate commits a per-byte transfer fee rate into state.
func (m *Manager) SetTransferFeeRate(rate uint64) error {
	encoded, err := rlp.EncodeToBytes(rate)
	if err != nil {
		return err
	}
	if err := m.tr.Update(transferFeeRateKey(), encoded); err != nil {
		return fmt.Errorf("write transfer fee rate: %w", err)
	}
	return nil
}

// Commit persists pending writes and returns the new state root.
func (m *Manager) Commit(height uint64) (common.Hash, error) {
	root, err := m.tr.Commit(m.snap.Root, height)
	if err != nil {
		return common.Hash{}, err
	}
	m.snap.Root = root
	m.snap.Height = height
	return root, nil
}
