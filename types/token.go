package types

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// MaxTokenDecimals is the largest decimals value a supported token may declare.
const MaxTokenDecimals = 18

// SupportedToken is a catalog entry. Decimals never change after creation.
type SupportedToken struct {
	Address               string  `yaml:"address" json:"address"`
	Symbol                string  `yaml:"symbol" json:"symbol"`
	Name                  string  `yaml:"name" json:"name"`
	Decimals              uint8   `yaml:"decimals" json:"decimals"`
	ChainID               ChainID `yaml:"chain-id" json:"chainId"`
	IsActive              bool    `yaml:"active" json:"isActive"`
	MinDistributionAmount string  `yaml:"min-distribution-amount" json:"minDistributionAmount"`
}

// TokenKey uniquely identifies a token across chains.
type TokenKey struct {
	Address string
	ChainID ChainID
}

// Key returns the normalized catalog key of the token.
func (t SupportedToken) Key() TokenKey {
	return NewTokenKey(t.Address, t.ChainID)
}

// NewTokenKey normalizes an address so lookups are case-insensitive.
func NewTokenKey(address string, chainID ChainID) TokenKey {
	return TokenKey{Address: NormalizeAddress(address), ChainID: chainID}
}

func (k TokenKey) String() string {
	return fmt.Sprintf("%s@%d", k.Address, k.ChainID)
}

// NormalizeAddress lowercases a valid 0x-prefixed hex address and returns "" for anything
// else.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if len(address) < 2 || (address[:2] != "0x" && address[:2] != "0X") {
		return ""
	}
	if !common.IsHexAddress(address) {
		return ""
	}
	return strings.ToLower(common.HexToAddress(address).Hex())
}
