// Package monitor reports the finality of broadcast transactions.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/registry"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// ReasonReverted is the TxStatus reason of a mined transaction whose receipt status is not 1.
const ReasonReverted = "execution reverted"

type Monitor struct {
	reg    *registry.Registry
	logger log.Logger
}

func New(reg *registry.Registry, logger log.Logger) *Monitor {
	return &Monitor{reg: reg, logger: logger}
}

// Status classifies txHash from its receipt. A hash the node has never seen is reported as
// failed with reason ErrTransactionNotFound.
func (m *Monitor) Status(ctx context.Context, txHash string, chainID types.ChainID) (types.TxStatus, error) {
	chain, err := m.reg.Connection(ctx, chainID)
	if err != nil {
		return types.TxStatus{}, err
	}
	return StatusOf(ctx, chain, txHash)
}

// StatusOf classifies txHash on an already connected chain.
func StatusOf(ctx context.Context, chain types.Chain, txHash string) (types.TxStatus, error) {
	receipt, err := chain.Receipt(ctx, txHash)
	switch {
	case err == nil:
	case errors.Is(err, types.ErrTransactionNotFound):
		known, err := chain.TransactionKnown(ctx, txHash)
		if err != nil {
			return types.TxStatus{}, err
		}
		if known {
			return types.TxStatus{State: types.TxPending}, nil
		}
		return types.TxStatus{State: types.TxFailed, Reason: types.ErrTransactionNotFound.Error()}, nil
	default:
		return types.TxStatus{}, err
	}

	block := receipt.BlockNumber
	if receipt.Status != types.ReceiptStatusSuccessful {
		return types.TxStatus{State: types.TxFailed, BlockNumber: &block, Reason: ReasonReverted}, nil
	}

	head, err := chain.HeadBlock(ctx)
	if err != nil {
		return types.TxStatus{}, err
	}
	// A lagging node can report a head below the receipt's block.
	confirmations := uint64(1)
	if head >= block {
		confirmations = head - block + 1
	}
	return types.TxStatus{State: types.TxConfirmed, BlockNumber: &block, Confirmations: &confirmations}, nil
}

// WaitForFinality polls Status every interval until the transaction has at least
// confirmations confirmations or has failed. The caller bounds the wait with ctx.
func (m *Monitor) WaitForFinality(ctx context.Context, txHash string, chainID types.ChainID, confirmations uint64, interval time.Duration) (types.TxStatus, error) {
	if confirmations == 0 {
		confirmations = 1
	}
	if interval <= 0 {
		info, err := m.reg.Resolve(chainID)
		if err != nil {
			return types.TxStatus{}, err
		}
		interval = info.ReceiptPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := m.Status(ctx, txHash, chainID)
		if err != nil {
			return status, err
		}
		switch status.State {
		case types.TxFailed:
			if status.Reason == types.ErrTransactionNotFound.Error() {
				return status, fmt.Errorf("%w: %s on chain %d", types.ErrTransactionNotFound, txHash, chainID)
			}
			return status, nil
		case types.TxConfirmed:
			if *status.Confirmations >= confirmations {
				return status, nil
			}
		}

		m.logger.Debug("Waiting for finality", "tx", txHash, "chain_id", chainID, "state", status.State)
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}
