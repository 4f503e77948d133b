package core

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"

	"quarrychain/core/state"
	"quarrychain/storage"
)

// ErrNoSuchChainTip is returned when a snapshot handle names a tip the node
// does not know about or has pruned. Callers may retry against a fresh tip;
// reads never silently fall back to different state.
var ErrNoSuchChainTip = errors.New("no such chain tip")

var (
	tipKeyPrefix = []byte("chain-tip::")
	latestTipKey = []byte("chain-latest")
)

type tipRecord struct {
	Root   common.Hash
	Height uint64
}

// Chain is the registry of committed chain tips. Block production is
// external; it registers each committed tip here, and every read path
// resolves its snapshot through this index.
type Chain struct {
	db storage.Database

	mu     sync.RWMutex
	latest common.Hash
}

func NewChain(db storage.Database) (*Chain, error) {
	c := &Chain{db: db}
	raw, err := db.Get(latestTipKey)
	if err != nil && !errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("load latest tip: %w", err)
	}
	if len(raw) == 32 {
		c.latest = common.BytesToHash(raw)
	}
	return c, nil
}

func tipKey(tip common.Hash) []byte {
	return append(append([]byte(nil), tipKeyPrefix...), tip.Bytes()...)
}

// RegisterTip records a committed tip and makes it the latest.
func (c *Chain) RegisterTip(tip, root common.Hash, height uint64) error {
	encoded, err := rlp.EncodeToBytes(&tipRecord{Root: root, Height: height})
	if err != nil {
		return err
	}
	if err := c.db.Put(tipKey(tip), encoded); err != nil {
		return fmt.Errorf("store tip %x: %w", tip, err)
	}
	if err := c.db.Put(latestTipKey, tip.Bytes()); err != nil {
		return fmt.Errorf("store latest tip: %w", err)
	}
	c.mu.Lock()
	c.latest = tip
	c.mu.Unlock()
	return nil
}

// SnapshotAt resolves a tip handle into an immutable snapshot.
func (c *Chain) SnapshotAt(tip common.Hash) (state.Snapshot, error) {
	raw, err := c.db.Get(tipKey(tip))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return state.Snapshot{}, ErrNoSuchChainTip
		}
		return state.Snapshot{}, fmt.Errorf("load tip %x: %w", tip, err)
	}
	var record tipRecord
	if err := rlp.DecodeBytes(raw, &record); err != nil {
		return state.Snapshot{}, fmt.Errorf("decode tip %x: %w", tip, err)
	}
	return state.Snapshot{Tip: tip, Root: record.Root, Height: record.Height}, nil
}

// Latest resolves the most recently registered tip.
func (c *Chain) Latest() (state.Snapshot, error) {
	c.mu.RLock()
	tip := c.latest
	c.mu.RUnlock()
	if tip == (common.Hash{}) {
		return state.Snapshot{}, ErrNoSuchChainTip
	}
	return c.SnapshotAt(tip)
}

// PruneTip drops a tip from the index. Snapshots already resolved against it
// keep working until the underlying trie nodes are garbage collected; new
// resolutions fail with ErrNoSuchChainTip.
func (c *Chain) PruneTip(tip common.Hash) error {
	if err := c.db.Delete(tipKey(tip)); err != nil {
		return fmt.Errorf("prune tip %x: %w", tip, err)
	}
	return nil
}
