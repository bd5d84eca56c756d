// Package transfer submits Permit2 delegated transfers, one at a time or as a batch.
package transfer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/log"
	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/strangelove-ventures/permit2-distributor/amount"
	"github.com/strangelove-ventures/permit2-distributor/metrics"
	"github.com/strangelove-ventures/permit2-distributor/monitor"
	"github.com/strangelove-ventures/permit2-distributor/permit"
	"github.com/strangelove-ventures/permit2-distributor/registry"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

type Option func(*Executor)

func WithMetrics(m *metrics.PromMetrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

// WithClock overrides the time source used for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) {
		e.now = now
	}
}

// Executor submits permit and transferFrom from the executor account, which must be the
// permit's spender. It refuses to submit the same permit nonce twice.
type Executor struct {
	reg     *registry.Registry
	logger  log.Logger
	metrics *metrics.PromMetrics
	now     func() time.Time

	mu        sync.Mutex
	submitted map[types.NonceKey]struct{}
}

func NewExecutor(reg *registry.Registry, logger log.Logger, opts ...Option) *Executor {
	e := &Executor{
		reg:       reg,
		logger:    logger,
		now:       time.Now,
		submitted: make(map[types.NonceKey]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute consumes req.Permit and moves req.Amount from req.From to req.To. It waits for one
// confirmation of each call. A reverted permit is reported as an unsuccessful result for the
// permit transaction and no transfer is attempted. GasUsed is the total of both calls.
func (e *Executor) Execute(ctx context.Context, req types.TransferRequest, key *ecdsa.PrivateKey) (types.TransferResult, error) {
	if key == nil {
		return e.reject(req, fmt.Errorf("%w: executor key required", types.ErrSubmission))
	}
	chain, err := e.reg.Connection(ctx, req.Token.ChainID)
	if err != nil {
		return types.TransferResult{Err: err}, err
	}
	info := chain.Info()
	label := chainLabel(e.reg, info.ChainID)
	logger := e.logger.With("chain", chain.Name(), "token", req.Token.Symbol, "from", req.From, "to", req.To)

	value, err := e.precheck(req, key, info)
	if err != nil {
		return e.reject(req, err)
	}

	nonceKey := req.Permit.NonceKey()
	if !e.reserve(nonceKey) {
		return e.reject(req, fmt.Errorf("%w: permit nonce %d for owner %s already submitted", types.ErrSubmission, nonceKey.Nonce, nonceKey.Owner))
	}

	chainID := info.ChainID.String()
	permitHash, err := chain.SubmitPermit(ctx, key, req.Permit)
	if err != nil {
		// The nonce stays reserved when the node may already hold the permit.
		if !errors.Is(err, types.ErrBroadcastUnknown) {
			e.release(nonceKey)
		}
		e.metrics.IncBroadcastErrors(label, chainID, "permit")
		return e.reject(req, err)
	}
	logger.Info("Permit broadcast", "tx", permitHash, "nonce", nonceKey.Nonce)

	permitReceipt, err := monitor.WaitForReceipt(ctx, chain, permitHash, info.ReceiptPollInterval)
	if err != nil {
		return types.TransferResult{TxHash: permitHash, Err: err}, err
	}
	e.metrics.ObserveGasUsed(label, "permit", permitReceipt.GasUsed)
	if permitReceipt.Status != types.ReceiptStatusSuccessful {
		logger.Error("Permit reverted", "tx", permitHash, "block", permitReceipt.BlockNumber)
		e.metrics.IncTransfer(label, req.Token.Symbol, "failed")
		return types.TransferResult{
			TxHash:      permitHash,
			BlockNumber: permitReceipt.BlockNumber,
			GasUsed:     permitReceipt.GasUsed,
		}, nil
	}

	transferHash, err := chain.SubmitTransferFrom(ctx, key, req.From, req.To, value.BigInt(), req.Token.Address)
	if err != nil {
		e.metrics.IncBroadcastErrors(label, chainID, "transferFrom")
		logger.Error("TransferFrom rejected after permit", "permit_tx", permitHash, "error", err)
		return e.reject(req, err)
	}
	logger.Info("TransferFrom broadcast", "tx", transferHash, "amount", req.Amount)

	receipt, err := monitor.WaitForReceipt(ctx, chain, transferHash, info.ReceiptPollInterval)
	if err != nil {
		return types.TransferResult{TxHash: transferHash, Err: err}, err
	}
	e.metrics.ObserveGasUsed(label, "transferFrom", receipt.GasUsed)

	res := types.TransferResult{
		TxHash:      transferHash,
		Success:     receipt.Status == types.ReceiptStatusSuccessful,
		BlockNumber: receipt.BlockNumber,
		GasUsed:     permitReceipt.GasUsed + receipt.GasUsed,
	}
	if res.Success {
		logger.Info("Transfer confirmed", "tx", transferHash, "block", receipt.BlockNumber, "gas_used", res.GasUsed)
		e.metrics.IncTransfer(label, req.Token.Symbol, "success")
	} else {
		logger.Error("TransferFrom reverted", "tx", transferHash, "block", receipt.BlockNumber)
		e.metrics.IncTransfer(label, req.Token.Symbol, "failed")
	}
	return res, nil
}

// precheck rejects requests the chain would refuse, before anything is broadcast.
func (e *Executor) precheck(req types.TransferRequest, key *ecdsa.PrivateKey, info types.ChainInfo) (value math.Int, err error) {
	p := req.Permit
	if !p.Signed() {
		return value, fmt.Errorf("%w: permit is not signed", types.ErrSubmission)
	}
	if p.ChainID != req.Token.ChainID {
		return value, fmt.Errorf("%w: permit is for chain %d, token is on chain %d", types.ErrSubmission, p.ChainID, req.Token.ChainID)
	}

	executor := crypto.PubkeyToAddress(key.PublicKey).Hex()
	if !strings.EqualFold(executor, p.Spender) {
		return value, fmt.Errorf("%w: executor %s is not the permit spender %s", types.ErrSubmission, executor, p.Spender)
	}
	owner := types.NormalizeAddress(p.Owner)
	if owner == "" || owner != types.NormalizeAddress(req.From) {
		return value, fmt.Errorf("%w: transfer source %s is not the permit owner %s", types.ErrSubmission, req.From, p.Owner)
	}
	if types.NormalizeAddress(req.To) == "" {
		return value, fmt.Errorf("%w: invalid recipient %q", types.ErrSubmission, req.To)
	}
	if types.NormalizeAddress(req.Token.Address) != types.NormalizeAddress(p.Details.Token) {
		return value, fmt.Errorf("%w: permit token %s does not match %s", types.ErrSubmission, p.Details.Token, req.Token.Address)
	}

	now := uint64(e.now().Unix())
	if now > p.Deadline {
		return value, fmt.Errorf("%w: permit deadline %d has passed", types.ErrSubmission, p.Deadline)
	}
	if req.Deadline != 0 && now > req.Deadline {
		return value, fmt.Errorf("%w: transfer deadline %d has passed", types.ErrSubmission, req.Deadline)
	}

	value, err = amount.ParseBaseUnits(req.Amount)
	if err != nil {
		return value, fmt.Errorf("%w: %w", types.ErrSubmission, err)
	}
	permitted, err := amount.ParseBaseUnits(p.Details.Amount)
	if err != nil {
		return value, fmt.Errorf("%w: permit amount: %w", types.ErrSubmission, err)
	}
	if !value.IsPositive() || value.GT(permitted) {
		return value, fmt.Errorf("%w: amount %s outside permitted (0, %s]", types.ErrSubmission, req.Amount, p.Details.Amount)
	}

	signer, err := permit.RecoverSigner(p, info)
	if err != nil {
		return value, fmt.Errorf("%w: %w", types.ErrSubmission, err)
	}
	if types.NormalizeAddress(signer.Hex()) != owner {
		return value, fmt.Errorf("%w: permit signed by %s, not owner %s", types.ErrSubmission, signer.Hex(), p.Owner)
	}
	return value, nil
}

func (e *Executor) reject(req types.TransferRequest, err error) (types.TransferResult, error) {
	e.logger.Error("Transfer rejected", "token", req.Token.Symbol, "from", req.From, "to", req.To, "error", err)
	e.metrics.IncTransfer(chainLabel(e.reg, req.Token.ChainID), req.Token.Symbol, "rejected")
	return types.TransferResult{Err: err}, err
}

func (e *Executor) reserve(k types.NonceKey) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.submitted[k]; ok {
		return false
	}
	e.submitted[k] = struct{}{}
	return true
}

func (e *Executor) release(k types.NonceKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.submitted, k)
}

func chainLabel(reg *registry.Registry, id types.ChainID) string {
	info, err := reg.Resolve(id)
	if err != nil {
		return id.String()
	}
	return info.MetricsLabel()
}
