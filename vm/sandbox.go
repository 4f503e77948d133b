package vm

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"quarrychain/core/state"
	"quarrychain/core/types"
)

// CallResult is the outcome of a read-only call. Okay distinguishes a
// successful evaluation from an execution failure; precondition violations
// and runtime errors both surface as a cause string because they happen
// after admission-style validation is no longer in play.
type CallResult struct {
	Okay bool `json:"okay"`
	// Result is the hex-encoded serialized return value, present on success.
	Result string `json:"result,omitempty"`
	Cause  string `json:"cause,omitempty"`
}

// Sandbox executes designated read-only contract functions against a
// snapshot with a guarantee that no write is retained.
type Sandbox struct {
	engine Engine
}

func NewSandbox(engine Engine) *Sandbox {
	if engine == nil {
		engine = NullEngine{}
	}
	return &Sandbox{engine: engine}
}

// managerStore adapts a snapshot-bound state manager to the engine's view.
// It is read-only; all writes go to the overlay above it.
type managerStore struct {
	mgr *state.Manager
}

func (s managerStore) Get(key string) ([]byte, error) {
	return s.mgr.RawGet(key)
}

func (s managerStore) Set(key string, value []byte) error {
	return fmt.Errorf("committed state is read-only")
}

// Call runs a read-only function. The function must exist on the target
// contract and be declared read_only; a public function is refused before
// the engine ever runs. Execution happens against an overlay of the
// snapshot that is unconditionally discarded.
func (s *Sandbox) Call(ctx context.Context, mgr *state.Manager, call Call) (CallResult, error) {
	iface, ok, err := mgr.ContractInterface(call.Contract)
	if err != nil {
		return CallResult{}, err
	}
	if !ok {
		return unchecked("NoSuchContract"), nil
	}
	fn, ok := iface.Function(call.Function)
	if !ok {
		return unchecked("UndefinedFunction"), nil
	}
	if fn.Access != types.AccessReadOnly {
		return unchecked("PublicFunctionNotReadOnly"), nil
	}

	shadow := newOverlay(managerStore{mgr: mgr})
	value, err := s.engine.ExecuteReadOnly(ctx, call, shadow)
	if err != nil {
		if errors.Is(err, ErrCostExceeded) {
			return CallResult{Okay: false, Cause: "CostBalanceExceeded: " + err.Error()}, nil
		}
		return CallResult{Okay: false, Cause: err.Error()}, nil
	}
	return CallResult{Okay: true, Result: "0x" + hex.EncodeToString(value)}, nil
}

func unchecked(cause string) CallResult {
	return CallResult{Okay: false, Cause: "Unchecked(" + cause + ")"}
}
