package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"quarrychain/core"
	"quarrychain/core/state"
	"quarrychain/core/types"
	"quarrychain/mempool"
	"quarrychain/observability/metrics"
	"quarrychain/vm"
)

// AccountResponse is the get-account shape: the balance is hex-encoded
// big-endian 128-bit, proofs are present unless the caller disabled them.
type AccountResponse struct {
	Balance      string `json:"balance"`
	Nonce        uint64 `json:"nonce"`
	BalanceProof string `json:"balance_proof,omitempty"`
	NonceProof   string `json:"nonce_proof,omitempty"`
}

type MapEntryResponse struct {
	Data  string `json:"data"`
	Proof string `json:"proof,omitempty"`
}

type ContractSourceResponse struct {
	Source        string `json:"source"`
	PublishHeight uint64 `json:"publish_height"`
	Proof         string `json:"proof,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type rejectionEnvelope struct {
	Error      string      `json:"error"`
	Reason     string      `json:"reason"`
	ReasonData interface{} `json:"reason_data,omitempty"`
	TxID       string      `json:"txid"`
}

type readOnlyCallRequest struct {
	Sender    string   `json:"sender"`
	Arguments []string `json:"arguments"`
}

func hexBlob(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(b)
}

func parseHexBlob(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

// proofRequested honors the proof flag: proofs are on unless explicitly
// disabled with proof=0.
func proofRequested(r *http.Request) bool {
	return r.URL.Query().Get("proof") != "0"
}

func parsePrincipal(raw string) (types.Principal, error) {
	if name, ok := splitContract(&raw); ok {
		addr, err := types.DecodeAddress(raw)
		if err != nil {
			return types.Principal{}, err
		}
		return types.ContractPrincipal(types.ContractID{Address: addr, Name: name}), nil
	}
	addr, err := types.DecodeAddress(raw)
	if err != nil {
		return types.Principal{}, err
	}
	return types.StandardPrincipal(addr), nil
}

func splitContract(raw *string) (string, bool) {
	if idx := strings.IndexByte(*raw, '.'); idx >= 0 {
		name := (*raw)[idx+1:]
		*raw = (*raw)[:idx]
		return name, true
	}
	return "", false
}

func contractIDFromRequest(r *http.Request) (types.ContractID, error) {
	addr, err := types.DecodeAddress(chi.URLParam(r, "address"))
	if err != nil {
		return types.ContractID{}, err
	}
	name := chi.URLParam(r, "contract")
	if name == "" {
		return types.ContractID{}, errors.New("missing contract name")
	}
	return types.ContractID{Address: addr, Name: name}, nil
}

// resolveSnapshot answers the tip selector for a query request, writing the
// error response itself when resolution fails.
func (s *Server) resolveSnapshot(w http.ResponseWriter, r *http.Request) (state.Snapshot, bool) {
	snap, err := s.node.ResolveSnapshot(r.URL.Query().Get("tip"))
	if err != nil {
		if errors.Is(err, core.ErrNoSuchChainTip) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such chain tip"})
		} else {
			s.logger.Error("resolve snapshot", "err", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to resolve chain tip"})
		}
		return state.Snapshot{}, false
	}
	return snap, true
}

// writeStateError distinguishes a pruned snapshot from a storage fault.
func (s *Server) writeStateError(w http.ResponseWriter, err error) {
	if errors.Is(err, state.ErrRootUnavailable) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such chain tip"})
		return
	}
	s.logger.Error("state read failed", "err", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "state read failed"})
}

func observe(endpoint string, status string, started time.Time) {
	metrics.QueryRequests.WithLabelValues(endpoint, status).Inc()
	metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(started).Seconds())
}

// --- Handlers ---

func (s *Server) handleSubmitTransaction(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil || len(raw) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "empty transaction body"})
		return
	}
	snap, err := s.node.ResolveSnapshot(r.URL.Query().Get("tip"))
	var decision mempool.Decision
	if err != nil {
		decision = mempool.Decision{TxID: types.TxID(raw), Reason: mempool.ReasonServerFailureNoSuchChainTip}
	} else {
		decision = s.node.SubmitTransaction(raw, snap)
	}
	if decision.Accepted() {
		writeJSON(w, http.StatusOK, decision.TxID)
		return
	}
	status := http.StatusBadRequest
	if decision.Reason.ServerFailure() {
		status = http.StatusInternalServerError
		if decision.Reason == mempool.ReasonServerFailureNoSuchChainTip {
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, rejectionEnvelope{
		Error:      "transaction rejected",
		Reason:     string(decision.Reason),
		ReasonData: decision.Data,
		TxID:       decision.TxID,
	})
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	principal, err := parsePrincipal(chi.URLParam(r, "principal"))
	if err != nil {
		observe("get_account", "bad_request", started)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid principal"})
		return
	}
	snap, ok := s.resolveSnapshot(w, r)
	if !ok {
		observe("get_account", "no_tip", started)
		return
	}
	account, proofs, err := s.node.GetAccount(principal, snap, proofRequested(r))
	if err != nil {
		observe("get_account", "error", started)
		s.writeStateError(w, err)
		return
	}
	resp := AccountResponse{
		Balance: mempool.FormatAmount(account.Balance),
		Nonce:   account.Nonce,
	}
	if proofs != nil {
		resp.BalanceProof = hexBlob(proofs.Balance)
		resp.NonceProof = hexBlob(proofs.Nonce)
	}
	observe("get_account", "ok", started)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetMapEntry(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id, err := contractIDFromRequest(r)
	if err != nil {
		observe("get_map_entry", "bad_request", started)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid contract identifier"})
		return
	}
	mapName := chi.URLParam(r, "map")

	var keyHex string
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&keyHex); err != nil {
		observe("get_map_entry", "bad_request", started)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "request body must be a hex-encoded key string"})
		return
	}
	key, err := parseHexBlob(keyHex)
	if err != nil {
		observe("get_map_entry", "bad_request", started)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid key encoding"})
		return
	}
	snap, ok := s.resolveSnapshot(w, r)
	if !ok {
		observe("get_map_entry", "no_tip", started)
		return
	}
	result, err := s.node.GetMapEntry(id, mapName, key, snap, proofRequested(r))
	if err != nil {
		observe("get_map_entry", "error", started)
		s.writeStateError(w, err)
		return
	}
	if !result.Found {
		observe("get_map_entry", "not_found", started)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such contract or map"})
		return
	}
	resp := MapEntryResponse{Data: hexBlob(result.Data)}
	if len(result.Proof) > 0 {
		resp.Proof = hexBlob(result.Proof)
	}
	observe("get_map_entry", "ok", started)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetFeeRate(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	snap, ok := s.resolveSnapshot(w, r)
	if !ok {
		observe("get_fee_rate", "no_tip", started)
		return
	}
	feeRate, err := s.node.TransferFeeRate(snap)
	if err != nil {
		observe("get_fee_rate", "error", started)
		s.writeStateError(w, err)
		return
	}
	observe("get_fee_rate", "ok", started)
	writeJSON(w, http.StatusOK, feeRate)
}

func (s *Server) handleGetContractInterface(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id, err := contractIDFromRequest(r)
	if err != nil {
		observe("get_contract_interface", "bad_request", started)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid contract identifier"})
		return
	}
	snap, ok := s.resolveSnapshot(w, r)
	if !ok {
		observe("get_contract_interface", "no_tip", started)
		return
	}
	iface, found, err := s.node.GetContractInterface(id, snap)
	if err != nil {
		observe("get_contract_interface", "error", started)
		s.writeStateError(w, err)
		return
	}
	if !found {
		observe("get_contract_interface", "not_found", started)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such contract"})
		return
	}
	observe("get_contract_interface", "ok", started)
	writeJSON(w, http.StatusOK, iface)
}

func (s *Server) handleGetContractSource(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id, err := contractIDFromRequest(r)
	if err != nil {
		observe("get_contract_source", "bad_request", started)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid contract identifier"})
		return
	}
	snap, ok := s.resolveSnapshot(w, r)
	if !ok {
		observe("get_contract_source", "no_tip", started)
		return
	}
	source, height, proof, found, err := s.node.GetContractSource(id, snap, proofRequested(r))
	if err != nil {
		observe("get_contract_source", "error", started)
		s.writeStateError(w, err)
		return
	}
	if !found {
		observe("get_contract_source", "not_found", started)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no such contract"})
		return
	}
	resp := ContractSourceResponse{Source: source, PublishHeight: height}
	if len(proof) > 0 {
		resp.Proof = hexBlob(proof)
	}
	observe("get_contract_source", "ok", started)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCallReadOnly(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	id, err := contractIDFromRequest(r)
	if err != nil {
		observe("call_read_only", "bad_request", started)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid contract identifier"})
		return
	}
	function := chi.URLParam(r, "function")

	var req readOnlyCallRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes)).Decode(&req); err != nil {
		observe("call_read_only", "bad_request", started)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed call request"})
		return
	}
	sender, err := parsePrincipal(req.Sender)
	if err != nil {
		observe("call_read_only", "bad_request", started)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid sender principal"})
		return
	}
	args := make([][]byte, 0, len(req.Arguments))
	for _, argHex := range req.Arguments {
		arg, err := parseHexBlob(argHex)
		if err != nil {
			observe("call_read_only", "bad_request", started)
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid argument encoding"})
			return
		}
		args = append(args, arg)
	}
	snap, ok := s.resolveSnapshot(w, r)
	if !ok {
		observe("call_read_only", "no_tip", started)
		return
	}
	result, err := s.node.CallReadOnly(r.Context(), vm.Call{
		Contract: id,
		Function: function,
		Sender:   sender,
		Args:     args,
	}, snap)
	if err != nil {
		observe("call_read_only", "error", started)
		s.writeStateError(w, err)
		return
	}
	observe("call_read_only", "ok", started)
	writeJSON(w, http.StatusOK, result)
}
