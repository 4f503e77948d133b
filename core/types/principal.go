package types

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// Address version bytes. The version byte is both part of the account key and
// the network marker checked when admitting token transfers.
const (
	AddressVersionMainnet byte = 22
	AddressVersionTestnet byte = 26
)

// Network selects the set of address version bytes considered local.
type Network byte

const (
	Mainnet Network = iota
	Testnet
)

// AcceptsAddressVersion reports whether the version byte belongs to this
// network.
func (n Network) AcceptsAddressVersion(version byte) bool {
	switch n {
	case Mainnet:
		return version == AddressVersionMainnet
	case Testnet:
		return version == AddressVersionTestnet
	default:
		return false
	}
}

// AddressVersion returns the single-signer version byte for the network.
func (n Network) AddressVersion() byte {
	if n == Testnet {
		return AddressVersionTestnet
	}
	return AddressVersionMainnet
}

func (n Network) hrp() string {
	if n == Testnet {
		return "tqry"
	}
	return "qry"
}

// StandardAddress is a version byte plus a 20-byte signer hash.
type StandardAddress struct {
	Version byte
	Hash    [20]byte
}

// String renders the address in bech32 with a network prefix derived from the
// version byte. Parsing of externally supplied address strings lives with the
// transport layer; this form exists for responses and log lines.
func (a StandardAddress) String() string {
	network := Mainnet
	if a.Version == AddressVersionTestnet {
		network = Testnet
	}
	data := make([]byte, 0, 21)
	data = append(data, a.Version)
	data = append(data, a.Hash[:]...)
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(network.hrp(), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// DecodeAddress parses the bech32 form produced by StandardAddress.String.
func DecodeAddress(s string) (StandardAddress, error) {
	hrp, decoded, err := bech32.Decode(s)
	if err != nil {
		return StandardAddress{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	if hrp != Mainnet.hrp() && hrp != Testnet.hrp() {
		return StandardAddress{}, fmt.Errorf("unknown address prefix %q", hrp)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return StandardAddress{}, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != 21 {
		return StandardAddress{}, fmt.Errorf("address payload must be 21 bytes, got %d", len(conv))
	}
	addr := StandardAddress{Version: conv[0]}
	copy(addr.Hash[:], conv[1:])
	return addr, nil
}

// ContractID names a published contract: deployer address plus contract name.
type ContractID struct {
	Address StandardAddress
	Name    string
}

func (c ContractID) String() string {
	return c.Address.String() + "." + c.Name
}

// Principal is the two-variant account key: a standard address, or a contract
// identifier when Contract is non-empty. Consumers branch on IsContract
// rather than carrying two separate key types through state lookups.
type Principal struct {
	Address  StandardAddress
	Contract string
}

func StandardPrincipal(addr StandardAddress) Principal {
	return Principal{Address: addr}
}

func ContractPrincipal(id ContractID) Principal {
	return Principal{Address: id.Address, Contract: id.Name}
}

func (p Principal) IsContract() bool {
	return p.Contract != ""
}

// ContractID returns the contract identifier variant, if this principal is
// one.
func (p Principal) ContractID() (ContractID, bool) {
	if !p.IsContract() {
		return ContractID{}, false
	}
	return ContractID{Address: p.Address, Name: p.Contract}, true
}

func (p Principal) String() string {
	if p.IsContract() {
		return p.Address.String() + "." + p.Contract
	}
	return p.Address.String()
}
