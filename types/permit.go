package types

import "github.com/ethereum/go-ethereum/common/hexutil"

// PermitDetails is the per-token allowance a permit grants.
type PermitDetails struct {
	Token      string `json:"token"`
	Amount     string `json:"amount"`
	Expiration uint64 `json:"expiration"`
	Nonce      uint64 `json:"nonce"`
}

// PermitPackage is a single-use permit. Signature is empty until signed.
type PermitPackage struct {
	ChainID   ChainID       `json:"chainId"`
	Owner     string        `json:"owner"`
	Signature hexutil.Bytes `json:"signature,omitempty"`
	Details   PermitDetails `json:"details"`
	Spender   string        `json:"spender"`
	Deadline  uint64        `json:"sigDeadline"`
}

// Signed reports whether the package carries a signature.
func (p PermitPackage) Signed() bool {
	return len(p.Signature) > 0
}

// NonceKey identifies the replay-protection slot a permit consumes.
type NonceKey struct {
	ChainID ChainID
	Owner   string
	Token   string
	Spender string
	Nonce   uint64
}

// NonceKey returns the (chain, owner, token, spender, nonce) tuple the permit consumes.
func (p PermitPackage) NonceKey() NonceKey {
	return NonceKey{
		ChainID: p.ChainID,
		Owner:   NormalizeAddress(p.Owner),
		Token:   NormalizeAddress(p.Details.Token),
		Spender: NormalizeAddress(p.Spender),
		Nonce:   p.Details.Nonce,
	}
}
