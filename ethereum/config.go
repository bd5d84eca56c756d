package ethereum

import (
	"fmt"
	"time"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

const (
	// Family is the chain family name used in configuration.
	Family = "evm"

	// DefaultGasLimit is the fixed per-call gas budget. Permit2 permit and transferFrom
	// both stay well below it for standard ERC-20 tokens.
	DefaultGasLimit uint64 = 120_000

	DefaultReceiptPollInterval = 2 * time.Second
)

var _ types.ChainConfig = (*ChainConfig)(nil)

type ChainConfig struct {
	ChainID       uint64 `yaml:"chain-id"`
	NetworkName   string `yaml:"network-name"`
	RPC           string `yaml:"rpc"`
	Permit2       string `yaml:"permit2"`
	BlockExplorer string `yaml:"block-explorer"`

	GasLimit            uint64        `yaml:"gas-limit"`
	ReceiptPollInterval time.Duration `yaml:"receipt-poll-interval"`

	MetricsDenom    string `yaml:"metrics-denom"`
	MetricsExponent int    `yaml:"metrics-exponent"`
}

func (c *ChainConfig) ID() types.ChainID {
	return types.ChainID(c.ChainID)
}

// Info applies defaults and returns the immutable chain description.
func (c *ChainConfig) Info() types.ChainInfo {
	info := types.ChainInfo{
		ChainID:             types.ChainID(c.ChainID),
		Family:              Family,
		NetworkName:         c.NetworkName,
		RPC:                 c.RPC,
		Permit2Address:      c.Permit2,
		BlockExplorerURL:    c.BlockExplorer,
		GasLimit:            c.GasLimit,
		ReceiptPollInterval: c.ReceiptPollInterval,
	}
	if info.Permit2Address == "" {
		info.Permit2Address = DefaultPermit2Address
	}
	if info.GasLimit == 0 {
		info.GasLimit = DefaultGasLimit
	}
	if info.ReceiptPollInterval <= 0 {
		info.ReceiptPollInterval = DefaultReceiptPollInterval
	}
	return info
}

func (c *ChainConfig) Chain(name string) (types.Chain, error) {
	if c.ChainID == 0 {
		return nil, fmt.Errorf("chain %s: chain-id is required", name)
	}
	if c.RPC == "" {
		return nil, fmt.Errorf("chain %s: rpc is required", name)
	}
	info := c.Info()
	if types.NormalizeAddress(info.Permit2Address) == "" {
		return nil, fmt.Errorf("chain %s: invalid permit2 address %q", name, info.Permit2Address)
	}
	if info.NetworkName == "" {
		info.NetworkName = name
	}
	return NewChain(name, info, c.MetricsDenom, c.MetricsExponent), nil
}
