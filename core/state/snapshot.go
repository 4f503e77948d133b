package state

import "github.com/ethereum/go-ethereum/common"

// Snapshot is an opaque handle to a committed chain tip. It pins the state
// root every read under it resolves against; snapshots are immutable once
// issued, so concurrent readers never coordinate.
type Snapshot struct {
	Tip    common.Hash
	Root   common.Hash
	Height uint64
}
