package types

import "math/big"

// AllowanceState is the delegated-transfer contract's view of (owner, token, spender).
// It is read fresh from the chain every time and never cached.
type AllowanceState struct {
	Amount     *big.Int
	Expiration uint64
	Nonce      uint64
}
