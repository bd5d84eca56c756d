package ethereum

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultPermit2Address is the canonical Permit2 deployment, identical on every EVM chain.
const DefaultPermit2Address = "0x000000000022D473030F116dDEE9F6B43aC78BA3"

const permit2ABIJSON = `[
	{
		"type": "function",
		"name": "allowance",
		"stateMutability": "view",
		"inputs": [
			{"name": "user", "type": "address"},
			{"name": "token", "type": "address"},
			{"name": "spender", "type": "address"}
		],
		"outputs": [
			{"name": "amount", "type": "uint160"},
			{"name": "expiration", "type": "uint48"},
			{"name": "nonce", "type": "uint48"}
		]
	},
	{
		"type": "function",
		"name": "permit",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "owner", "type": "address"},
			{
				"name": "permitSingle",
				"type": "tuple",
				"components": [
					{
						"name": "details",
						"type": "tuple",
						"components": [
							{"name": "token", "type": "address"},
							{"name": "amount", "type": "uint160"},
							{"name": "expiration", "type": "uint48"},
							{"name": "nonce", "type": "uint48"}
						]
					},
					{"name": "spender", "type": "address"},
					{"name": "sigDeadline", "type": "uint256"}
				]
			},
			{"name": "signature", "type": "bytes"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "transferFrom",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "amount", "type": "uint160"},
			{"name": "token", "type": "address"}
		],
		"outputs": []
	}
]`

const erc20ABIJSON = `[
	{"type": "function", "name": "name", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "string"}]},
	{"type": "function", "name": "symbol", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "string"}]},
	{"type": "function", "name": "decimals", "stateMutability": "view", "inputs": [], "outputs": [{"name": "", "type": "uint8"}]},
	{"type": "function", "name": "balanceOf", "stateMutability": "view", "inputs": [{"name": "account", "type": "address"}], "outputs": [{"name": "", "type": "uint256"}]}
]`

var (
	Permit2ABI = mustParseABI(permit2ABIJSON)
	ERC20ABI   = mustParseABI(erc20ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// permitDetailsArg and permitSingleArg mirror the Permit2 PermitSingle tuple for ABI packing.
type permitDetailsArg struct {
	Token      common.Address
	Amount     *big.Int
	Expiration *big.Int
	Nonce      *big.Int
}

type permitSingleArg struct {
	Details     permitDetailsArg
	Spender     common.Address
	SigDeadline *big.Int
}
