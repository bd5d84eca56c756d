package types

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strconv"
	"time"

	"cosmossdk.io/log"
)

// ChainID identifies a chain by its native numeric chain id (EIP-155 for EVM chains).
type ChainID uint64

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// ParseChainID parses a base-10 chain id.
func ParseChainID(s string) (ChainID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ChainID(id), nil
}

// ChainInfo is the immutable description of a supported chain.
type ChainInfo struct {
	ChainID             ChainID
	Family              string
	NetworkName         string
	RPC                 string
	Permit2Address      string
	BlockExplorerURL    string
	GasLimit            uint64
	ReceiptPollInterval time.Duration
}

// TxURL returns a block explorer link for txHash, or "" when no explorer is configured.
func (c ChainInfo) TxURL(txHash string) string {
	if c.BlockExplorerURL == "" {
		return ""
	}
	url := c.BlockExplorerURL
	if url[len(url)-1] != '/' {
		url += "/"
	}
	return url + "tx/" + txHash
}

// MetricsLabel is the chain label every metric series of this chain carries.
func (c ChainInfo) MetricsLabel() string {
	if c.NetworkName == "" {
		return c.ChainID.String()
	}
	return c.NetworkName
}

// TokenMetadata is the metadata read directly from a token contract.
type TokenMetadata struct {
	Decimals uint8
	Symbol   string
	Name     string
}

// Receipt is a family-agnostic view of a mined transaction's outcome.
type Receipt struct {
	TxHash      string
	Status      uint64
	BlockNumber uint64
	GasUsed     uint64
}

// ReceiptStatusSuccessful is the receipt status of a transaction that executed successfully.
const ReceiptStatusSuccessful uint64 = 1

// Chain is the capability set the engine needs from one chain. Each chain family provides
// one implementation; chain specific quirks stay behind this interface.
type Chain interface {
	Name() string
	Info() ChainInfo

	InitializeClients(ctx context.Context, logger log.Logger) error
	CloseClients() error

	ReadBalance(ctx context.Context, token, owner string) (*big.Int, error)
	ReadNativeBalance(ctx context.Context, owner string) (*big.Int, error)
	ReadMetadata(ctx context.Context, token string) (TokenMetadata, error)
	ReadAllowance(ctx context.Context, owner, token, spender string) (AllowanceState, error)

	// SubmitPermit and SubmitTransferFrom return once the node accepted the transaction.
	// Rejections before inclusion are reported as errors.
	SubmitPermit(ctx context.Context, key *ecdsa.PrivateKey, pkg PermitPackage) (string, error)
	SubmitTransferFrom(ctx context.Context, key *ecdsa.PrivateKey, from, to string, amount *big.Int, token string) (string, error)

	// Receipt returns ErrTransactionNotFound while the transaction has no receipt.
	Receipt(ctx context.Context, txHash string) (*Receipt, error)
	// TransactionKnown reports whether the node knows the transaction (pending or mined).
	TransactionKnown(ctx context.Context, txHash string) (bool, error)
	HeadBlock(ctx context.Context) (uint64, error)
}
