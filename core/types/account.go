package types

import "math/big"

// Account is the committed balance/nonce pair for a principal. Accounts that
// have never been touched are represented as the zero account rather than an
// absence: callers always get balance 0, nonce 0 back.
type Account struct {
	Balance *big.Int
	Nonce   uint64
}

// ZeroAccount returns the canonical empty account.
func ZeroAccount() *Account {
	return &Account{Balance: big.NewInt(0)}
}

// Clone returns a deep copy so callers can't alias the provider's value.
func (a *Account) Clone() *Account {
	if a == nil {
		return ZeroAccount()
	}
	out := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		out.Balance.Set(a.Balance)
	}
	return out
}
