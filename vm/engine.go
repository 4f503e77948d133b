package vm

import (
	"context"
	"errors"

	"quarrychain/core/types"
)

// ErrCostExceeded is returned by engines when execution hits its enforced
// cost ceiling. It is an execution outcome like any other error, not a
// distinct status.
var ErrCostExceeded = errors.New("execution cost exceeded")

// Call names a single read-only function invocation.
type Call struct {
	Contract types.ContractID
	Function string
	Sender   types.Principal
	// Args carries the serialized argument values in call order.
	Args [][]byte
}

// DataStore is the key-value view an engine executes against. The sandbox
// always hands engines an overlay: reads fall through to committed state,
// writes land in the overlay and are discarded when the call returns.
type DataStore interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
}

// Engine is the black-box contract VM. Implementations must enforce their
// own execution-cost ceiling so every call terminates.
type Engine interface {
	ExecuteReadOnly(ctx context.Context, call Call, store DataStore) ([]byte, error)
}

// NullEngine is the placeholder wired in when no interpreter is linked into
// the binary. Admission-side checks still run; execution itself reports a
// failure cause.
type NullEngine struct{}

func (NullEngine) ExecuteReadOnly(context.Context, Call, DataStore) ([]byte, error) {
	return nil, errors.New("no contract interpreter is linked into this build")
}
