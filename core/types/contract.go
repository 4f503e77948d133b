package types

// FunctionAccess is a contract function's visibility class.
type FunctionAccess string

const (
	AccessPublic   FunctionAccess = "public"
	AccessPrivate  FunctionAccess = "private"
	AccessReadOnly FunctionAccess = "read_only"
)

// FunctionArg is a named, typed function parameter.
type FunctionArg struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// FunctionSpec describes one contract function.
type FunctionSpec struct {
	Name    string         `json:"name"`
	Access  FunctionAccess `json:"access"`
	Args    []FunctionArg  `json:"args"`
	Outputs string         `json:"outputs"`
}

// VariableSpec describes one contract data variable.
type VariableSpec struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Access string `json:"access"`
}

// MapSpec describes one contract data map.
type MapSpec struct {
	Name      string `json:"name"`
	KeyType   string `json:"key"`
	ValueType string `json:"value"`
}

// TokenSpec names a fungible or non-fungible token defined by the contract.
type TokenSpec struct {
	Name string `json:"name"`
}

// ContractInterface is the full shape of a published contract, derived once
// from its source at publish time and immutable afterwards.
type ContractInterface struct {
	Functions         []FunctionSpec `json:"functions"`
	Variables         []VariableSpec `json:"variables"`
	Maps              []MapSpec      `json:"maps"`
	FungibleTokens    []TokenSpec    `json:"fungible_tokens"`
	NonFungibleTokens []TokenSpec    `json:"non_fungible_tokens"`
}

// Function looks up a function spec by name.
func (ci *ContractInterface) Function(name string) (*FunctionSpec, bool) {
	for i := range ci.Functions {
		if ci.Functions[i].Name == name {
			return &ci.Functions[i], true
		}
	}
	return nil, false
}

// Map looks up a map spec by name.
func (ci *ContractInterface) Map(name string) (*MapSpec, bool) {
	for i := range ci.Maps {
		if ci.Maps[i].Name == name {
			return &ci.Maps[i], true
		}
	}
	return nil, false
}
