package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"quarrychain/storage"
)

// Trie wraps go-ethereum's trie implementation to expose a simplified API for
// the rest of the codebase while keeping access to the underlying trie
// database.
//
// The keys passed into Get/Update/Prove are expected to be fully hashed
// (keccak256) before insertion.
//
// Trie is not safe for concurrent use; callers open a fresh instance per
// snapshot read instead of sharing one.
type Trie struct {
	store  storage.Database
	trieDB *triedb.Database
	trie   *gethtrie.Trie
	root   common.Hash
}

// EmptyRoot is the root hash of an empty trie.
var EmptyRoot = gethtypes.EmptyRootHash

// NewTrie opens a trie backed by the provided storage at the given root. A
// zero root denotes the empty trie. Opening at a root whose nodes have been
// pruned fails, which is how stale snapshot handles surface.
func NewTrie(store storage.Database, root common.Hash) (*Trie, error) {
	trieDB := store.TrieDB()
	if root == (common.Hash{}) {
		root = gethtypes.EmptyRootHash
	}
	underlying, err := gethtrie.New(gethtrie.TrieID(root), trieDB)
	if err != nil {
		return nil, err
	}
	return &Trie{
		store:  store,
		trieDB: trieDB,
		trie:   underlying,
		root:   root,
	}, nil
}

// Get retrieves a value from the trie for the provided key.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.trie.Get(key)
}

// Update inserts or updates a value in the trie for the provided key.
func (t *Trie) Update(key, value []byte) error {
	return t.trie.Update(key, value)
}

// Hash returns the root hash of the trie reflecting all in-memory mutations.
func (t *Trie) Hash() common.Hash {
	return t.trie.Hash()
}

// Root returns the last committed root hash.
func (t *Trie) Root() common.Hash {
	return t.root
}

// proofList collects trie nodes in path order while Prove walks the key.
type proofList [][]byte

func (p *proofList) Put(key []byte, value []byte) error {
	*p = append(*p, common.CopyBytes(value))
	return nil
}

func (p *proofList) Delete(key []byte) error {
	return fmt.Errorf("proof list does not support deletes")
}

// Prove returns a Merkle inclusion (or absence) proof for the key: the RLP
// encoding of the trie nodes along the key path, verifiable against Root.
func (t *Trie) Prove(key []byte) ([]byte, error) {
	var nodes proofList
	if err := t.trie.Prove(key, &nodes); err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes([][]byte(nodes))
}

// VerifyProof checks a proof blob produced by Prove against a root and key,
// returning the proven value (nil for a proof of absence).
func VerifyProof(root common.Hash, key []byte, proof []byte) ([]byte, error) {
	var nodes [][]byte
	if err := rlp.DecodeBytes(proof, &nodes); err != nil {
		return nil, fmt.Errorf("malformed proof: %w", err)
	}
	proofDB := memorydb.New()
	for _, node := range nodes {
		if err := proofDB.Put(ethcrypto.Keccak256(node), node); err != nil {
			return nil, err
		}
	}
	return gethtrie.VerifyProof(root, key, proofDB)
}

// Reset discards any in-memory changes and reloads the trie at the provided
// root.
func (t *Trie) Reset(root common.Hash) error {
	underlying, err := gethtrie.New(gethtrie.TrieID(root), t.trieDB)
	if err != nil {
		return err
	}
	t.trie = underlying
	t.root = root
	return nil
}

// Copy creates a shallow copy of the trie wrapper. The returned trie shares
// the same underlying database but can be mutated independently.
func (t *Trie) Copy() *Trie {
	return &Trie{
		store:  t.store,
		trieDB: t.trieDB,
		trie:   t.trie.Copy(),
		root:   t.root,
	}
}

// Commit persists the trie changes to the backing database and returns the
// new root hash. After committing, the wrapper recreates the underlying trie
// so it can be reused for subsequent writes.
func (t *Trie) Commit(parent common.Hash, blockNumber uint64) (common.Hash, error) {
	newRoot, nodes := t.trie.Commit(false)
	if nodes != nil {
		merged := trienode.NewMergedNodeSet()
		if err := merged.Merge(nodes); err != nil {
			return common.Hash{}, err
		}
		if err := t.trieDB.Update(newRoot, parent, blockNumber, merged, nil); err != nil {
			return common.Hash{}, err
		}
		if err := t.trieDB.Commit(newRoot, false); err != nil {
			return common.Hash{}, err
		}
	}
	underlying, err := gethtrie.New(gethtrie.TrieID(newRoot), t.trieDB)
	if err != nil {
		return common.Hash{}, err
	}
	t.trie = underlying
	t.root = newRoot
	return newRoot, nil
}

// Store exposes the backing storage in case callers need to access it
// directly.
func (t *Trie) Store() storage.Database {
	return t.store
}

// HashKey maps an arbitrary state key to its fixed-length trie key.
func HashKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}
