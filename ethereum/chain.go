package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	geth "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

var _ types.Chain = (*Ethereum)(nil)

// Ethereum is the EVM chain family: ERC-20 tokens moved through a Permit2 deployment.
type Ethereum struct {
	name            string
	info            types.ChainInfo
	MetricsDenom    string
	MetricsExponent int

	dial DialFunc

	mu     sync.Mutex
	client Client
}

func NewChain(name string, info types.ChainInfo, metricsDenom string, metricsExponent int) *Ethereum {
	return &Ethereum{
		name:            name,
		info:            info,
		MetricsDenom:    metricsDenom,
		MetricsExponent: metricsExponent,
		dial:            dialEthClient,
	}
}

// NewChainWithClient wires an already constructed client, e.g. a simulated or fake backend.
func NewChainWithClient(name string, info types.ChainInfo, client Client) *Ethereum {
	e := NewChain(name, info, "", 0)
	e.client = client
	return e
}

func (e *Ethereum) Name() string {
	return e.name
}

func (e *Ethereum) Info() types.ChainInfo {
	return e.info
}

// InitializeClients dials the RPC endpoint and checks that it serves the configured chain.
func (e *Ethereum) InitializeClients(ctx context.Context, logger log.Logger) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	client := e.client
	if client == nil {
		var err error
		client, err = e.dial(ctx, e.info.RPC)
		if err != nil {
			return fmt.Errorf("unable to dial %s: %w", e.name, err)
		}
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		if client != e.client {
			client.Close()
		}
		return fmt.Errorf("unable to query chain id for %s: %w", e.name, err)
	}
	if chainID.Uint64() != uint64(e.info.ChainID) {
		if client != e.client {
			client.Close()
		}
		return fmt.Errorf("rpc for %s serves chain id %s, expected %d", e.name, chainID, e.info.ChainID)
	}

	e.client = client
	logger.Info("Connected to EVM RPC", "name", e.name, "chain_id", e.info.ChainID)
	return nil
}

func (e *Ethereum) CloseClients() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client != nil {
		e.client.Close()
		e.client = nil
	}
	return nil
}

func (e *Ethereum) getClient() (Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, fmt.Errorf("%w: client for %s not initialized", types.ErrProviderUnavailable, e.name)
	}
	return e.client, nil
}

func (e *Ethereum) ReadBalance(ctx context.Context, token, owner string) (*big.Int, error) {
	tokenAddr, err := parseAddress("token", token)
	if err != nil {
		return nil, err
	}
	ownerAddr, err := parseAddress("owner", owner)
	if err != nil {
		return nil, err
	}
	out, err := e.callContract(ctx, "balanceOf", ERC20ABI, tokenAddr, ownerAddr)
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf output %T", out[0])
	}
	return balance, nil
}

func (e *Ethereum) ReadNativeBalance(ctx context.Context, owner string) (*big.Int, error) {
	ownerAddr, err := parseAddress("owner", owner)
	if err != nil {
		return nil, err
	}
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}
	return client.BalanceAt(ctx, ownerAddr, nil)
}

// ReadMetadata reads decimals, symbol and name. Any failed read fails the whole call.
func (e *Ethereum) ReadMetadata(ctx context.Context, token string) (types.TokenMetadata, error) {
	tokenAddr, err := parseAddress("token", token)
	if err != nil {
		return types.TokenMetadata{}, err
	}

	var md types.TokenMetadata

	out, err := e.callContract(ctx, "decimals", ERC20ABI, tokenAddr)
	if err != nil {
		return types.TokenMetadata{}, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return types.TokenMetadata{}, fmt.Errorf("unexpected decimals output %T", out[0])
	}
	md.Decimals = decimals

	out, err = e.callContract(ctx, "symbol", ERC20ABI, tokenAddr)
	if err != nil {
		return types.TokenMetadata{}, err
	}
	if md.Symbol, ok = out[0].(string); !ok {
		return types.TokenMetadata{}, fmt.Errorf("unexpected symbol output %T", out[0])
	}

	out, err = e.callContract(ctx, "name", ERC20ABI, tokenAddr)
	if err != nil {
		return types.TokenMetadata{}, err
	}
	if md.Name, ok = out[0].(string); !ok {
		return types.TokenMetadata{}, fmt.Errorf("unexpected name output %T", out[0])
	}

	return md, nil
}

// ReadAllowance reads Permit2 allowance(owner, token, spender).
func (e *Ethereum) ReadAllowance(ctx context.Context, owner, token, spender string) (types.AllowanceState, error) {
	ownerAddr, err := parseAddress("owner", owner)
	if err != nil {
		return types.AllowanceState{}, err
	}
	tokenAddr, err := parseAddress("token", token)
	if err != nil {
		return types.AllowanceState{}, err
	}
	spenderAddr, err := parseAddress("spender", spender)
	if err != nil {
		return types.AllowanceState{}, err
	}

	out, err := e.callContract(ctx, "allowance", Permit2ABI, common.HexToAddress(e.info.Permit2Address), ownerAddr, tokenAddr, spenderAddr)
	if err != nil {
		return types.AllowanceState{}, err
	}
	if len(out) != 3 {
		return types.AllowanceState{}, fmt.Errorf("unexpected allowance output length %d", len(out))
	}
	amount, ok1 := out[0].(*big.Int)
	expiration, ok2 := out[1].(*big.Int)
	nonce, ok3 := out[2].(*big.Int)
	if !ok1 || !ok2 || !ok3 {
		return types.AllowanceState{}, fmt.Errorf("unexpected allowance output types %T %T %T", out[0], out[1], out[2])
	}

	return types.AllowanceState{
		Amount:     amount,
		Expiration: expiration.Uint64(),
		Nonce:      nonce.Uint64(),
	}, nil
}

// SubmitPermit broadcasts Permit2 permit(owner, permitSingle, signature) from the key's account.
func (e *Ethereum) SubmitPermit(ctx context.Context, key *ecdsa.PrivateKey, pkg types.PermitPackage) (string, error) {
	owner, err := parseAddress("owner", pkg.Owner)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrSubmission, err)
	}
	token, err := parseAddress("token", pkg.Details.Token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrSubmission, err)
	}
	spender, err := parseAddress("spender", pkg.Spender)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrSubmission, err)
	}
	amount, ok := new(big.Int).SetString(pkg.Details.Amount, 10)
	if !ok {
		return "", fmt.Errorf("%w: invalid permit amount %q", types.ErrSubmission, pkg.Details.Amount)
	}

	arg := permitSingleArg{
		Details: permitDetailsArg{
			Token:      token,
			Amount:     amount,
			Expiration: new(big.Int).SetUint64(pkg.Details.Expiration),
			Nonce:      new(big.Int).SetUint64(pkg.Details.Nonce),
		},
		Spender:     spender,
		SigDeadline: new(big.Int).SetUint64(pkg.Deadline),
	}
	data, err := Permit2ABI.Pack("permit", owner, arg, []byte(pkg.Signature))
	if err != nil {
		return "", fmt.Errorf("%w: pack permit: %w", types.ErrSubmission, err)
	}
	return e.send(ctx, key, common.HexToAddress(e.info.Permit2Address), data)
}

// SubmitTransferFrom broadcasts Permit2 transferFrom(from, to, amount, token).
func (e *Ethereum) SubmitTransferFrom(ctx context.Context, key *ecdsa.PrivateKey, from, to string, amount *big.Int, token string) (string, error) {
	fromAddr, err := parseAddress("from", from)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrSubmission, err)
	}
	toAddr, err := parseAddress("to", to)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrSubmission, err)
	}
	tokenAddr, err := parseAddress("token", token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", types.ErrSubmission, err)
	}
	data, err := Permit2ABI.Pack("transferFrom", fromAddr, toAddr, amount, tokenAddr)
	if err != nil {
		return "", fmt.Errorf("%w: pack transferFrom: %w", types.ErrSubmission, err)
	}
	return e.send(ctx, key, common.HexToAddress(e.info.Permit2Address), data)
}

// send signs a call to `to` with the chain's fixed gas limit and broadcasts it.
func (e *Ethereum) send(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, data []byte) (string, error) {
	if key == nil {
		return "", fmt.Errorf("%w: executor key required", types.ErrSubmission)
	}
	client, err := e.getClient()
	if err != nil {
		return "", err
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return "", fmt.Errorf("%w: pending nonce for %s: %w", types.ErrProviderUnavailable, from.Hex(), err)
	}
	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: latest header: %w", types.ErrProviderUnavailable, err)
	}

	chainID := new(big.Int).SetUint64(uint64(e.info.ChainID))
	var tx *ethtypes.Transaction
	if head.BaseFee != nil {
		tip, err := client.SuggestGasTipCap(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: gas tip: %w", types.ErrProviderUnavailable, err)
		}
		feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
		feeCap.Add(feeCap, tip)
		tx = ethtypes.NewTx(&ethtypes.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       e.info.GasLimit,
			To:        &to,
			Value:     big.NewInt(0),
			Data:      data,
		})
	} else {
		gasPrice, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: gas price: %w", types.ErrProviderUnavailable, err)
		}
		tx = ethtypes.NewTx(&ethtypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      e.info.GasLimit,
			To:       &to,
			Value:    big.NewInt(0),
			Data:     data,
		})
	}

	signed, err := ethtypes.SignTx(tx, ethtypes.LatestSignerForChainID(chainID), key)
	if err != nil {
		return "", fmt.Errorf("%w: sign transaction: %w", types.ErrSigning, err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		// Only a JSON-RPC error response proves the node refused the transaction.
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			return "", fmt.Errorf("%w: %w", types.ErrSubmission, err)
		}
		return "", fmt.Errorf("%w: %s: %w", types.ErrBroadcastUnknown, signed.Hash().Hex(), err)
	}
	return signed.Hash().Hex(), nil
}

func (e *Ethereum) Receipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	hash, err := parseHash(txHash)
	if err != nil {
		return nil, err
	}
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}
	receipt, err := client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, geth.NotFound) {
			return nil, types.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("%w: receipt %s: %w", types.ErrProviderUnavailable, txHash, err)
	}
	if receipt == nil {
		return nil, types.ErrTransactionNotFound
	}
	out := &types.Receipt{
		TxHash:  receipt.TxHash.Hex(),
		Status:  receipt.Status,
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return out, nil
}

func (e *Ethereum) TransactionKnown(ctx context.Context, txHash string) (bool, error) {
	hash, err := parseHash(txHash)
	if err != nil {
		return false, err
	}
	client, err := e.getClient()
	if err != nil {
		return false, err
	}
	tx, _, err := client.TransactionByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, geth.NotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: transaction %s: %w", types.ErrProviderUnavailable, txHash, err)
	}
	return tx != nil, nil
}

func (e *Ethereum) HeadBlock(ctx context.Context) (uint64, error) {
	client, err := e.getClient()
	if err != nil {
		return 0, err
	}
	head, err := client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: block number: %w", types.ErrProviderUnavailable, err)
	}
	return head, nil
}

// callContract packs method of contractABI, executes an eth_call at the latest block and
// unpacks the result.
func (e *Ethereum) callContract(ctx context.Context, method string, contractABI abi.ABI, to common.Address, args ...interface{}) ([]interface{}, error) {
	client, err := e.getClient()
	if err != nil {
		return nil, err
	}
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	ret, err := client.CallContract(ctx, geth.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, to.Hex(), err)
	}
	out, err := contractABI.Unpack(method, ret)
	if err != nil {
		return nil, fmt.Errorf("unpack %s from %s: %w", method, to.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s output from %s", method, to.Hex())
	}
	return out, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if types.NormalizeAddress(s) == "" {
		return common.Address{}, fmt.Errorf("invalid %s address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseHash(s string) (common.Hash, error) {
	b := common.FromHex(s)
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid transaction hash %q", s)
	}
	return common.BytesToHash(b), nil
}
