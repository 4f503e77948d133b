package state

import (
	"encoding/hex"
	"fmt"

	"quarrychain/core/types"
	"quarrychain/storage/trie"
)

// State keys are readable paths hashed down to fixed-length trie keys. The
// textual layout mirrors the VM's key space so the same trie serves account,
// contract and policy reads:
//
//	vm-accounts::<principal>::balance
//	vm-accounts::<principal>::nonce
//	vm-metadata::<contract>::source
//	vm-metadata::<contract>::interface
//	vm-data::<contract>::map::<name>::<hex key>
//	vm-microblock-keys::<hex hash160>
//	vm-policy::transfer-fee-rate
//
// Balance and nonce live under separate keys so each can be proven
// independently.

func principalPath(p types.Principal) string {
	path := fmt.Sprintf("%02x%s", p.Address.Version, hex.EncodeToString(p.Address.Hash[:]))
	if p.IsContract() {
		path += "." + p.Contract
	}
	return path
}

func contractPath(id types.ContractID) string {
	return principalPath(types.ContractPrincipal(id))
}

func accountBalanceKey(p types.Principal) []byte {
	return trie.HashKey([]byte("vm-accounts::" + principalPath(p) + "::balance"))
}

func accountNonceKey(p types.Principal) []byte {
	return trie.HashKey([]byte("vm-accounts::" + principalPath(p) + "::nonce"))
}

func contractSourceKey(id types.ContractID) []byte {
	return trie.HashKey([]byte("vm-metadata::" + contractPath(id) + "::source"))
}

func contractInterfaceKey(id types.ContractID) []byte {
	return trie.HashKey([]byte("vm-metadata::" + contractPath(id) + "::interface"))
}

func mapEntryKey(id types.ContractID, mapName string, key []byte) []byte {
	path := fmt.Sprintf("vm-data::%s::map::%s::%s", contractPath(id), mapName, hex.EncodeToString(key))
	return trie.HashKey([]byte(path))
}

func microblockKeyHashKey(h [20]byte) []byte {
	return trie.HashKey([]byte("vm-microblock-keys::" + hex.EncodeToString(h[:])))
}

func transferFeeRateKey() []byte {
	return trie.HashKey([]byte("vm-policy::transfer-fee-rate"))
}
