package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	gethleveldb "github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/syndtr/goleveldb/leveldb"
)

// ErrKeyNotFound is returned by Get when the key is absent.
var ErrKeyNotFound = errors.New("key not found")

// Database is a generic interface for a key-value store that can also back a
// Merkle trie. This allows the node to use any backend (in-memory or
// persistent) for both flat data (chain tip index) and trie nodes.
type Database interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	TrieDB() *triedb.Database
	Close()
}

// --- In-Memory DB (for testing) ---

type MemDB struct {
	kv ethdb.Database

	mu     sync.Mutex
	trieDB *triedb.Database
}

func NewMemDB() *MemDB {
	return &MemDB{kv: rawdb.NewMemoryDatabase()}
}

func (db *MemDB) Put(key []byte, value []byte) error {
	return db.kv.Put(key, value)
}

func (db *MemDB) Get(key []byte) ([]byte, error) {
	value, err := db.kv.Get(key)
	if err != nil {
		return nil, ErrKeyNotFound
	}
	return value, nil
}

func (db *MemDB) Has(key []byte) (bool, error) {
	return db.kv.Has(key)
}

func (db *MemDB) Delete(key []byte) error {
	return db.kv.Delete(key)
}

func (db *MemDB) TrieDB() *triedb.Database {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.trieDB == nil {
		db.trieDB = triedb.NewDatabase(db.kv, triedb.HashDefaults)
	}
	return db.trieDB
}

// Close satisfies the Database interface for MemDB.
func (db *MemDB) Close() {
	// Nothing to close for an in-memory database.
}

// --- Persistent DB ---

// LevelDB is a persistent key-value store using LevelDB.
type LevelDB struct {
	kv ethdb.Database

	mu     sync.Mutex
	trieDB *triedb.Database
}

// NewLevelDB creates or opens a LevelDB database at the specified path.
func NewLevelDB(path string) (*LevelDB, error) {
	store, err := gethleveldb.New(path, 128, 128, "quarrychain", false)
	if err != nil {
		return nil, fmt.Errorf("open leveldb at %s: %w", path, err)
	}
	return &LevelDB{kv: rawdb.NewDatabase(store)}, nil
}

// Put inserts or updates a key-value pair.
func (ldb *LevelDB) Put(key []byte, value []byte) error {
	return ldb.kv.Put(key, value)
}

// Get retrieves a value for a given key.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := ldb.kv.Get(key)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return value, nil
}

// Has reports whether a key is present.
func (ldb *LevelDB) Has(key []byte) (bool, error) {
	return ldb.kv.Has(key)
}

// Delete removes a key.
func (ldb *LevelDB) Delete(key []byte) error {
	return ldb.kv.Delete(key)
}

// TrieDB returns the trie database layered over this store.
func (ldb *LevelDB) TrieDB() *triedb.Database {
	ldb.mu.Lock()
	defer ldb.mu.Unlock()
	if ldb.trieDB == nil {
		ldb.trieDB = triedb.NewDatabase(ldb.kv, triedb.HashDefaults)
	}
	return ldb.trieDB
}

// Close closes the database connection.
func (ldb *LevelDB) Close() {
	_ = ldb.kv.Close()
}
