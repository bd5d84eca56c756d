package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

// WaitForReceipt polls chain until txHash has a receipt. Transient provider errors are
// retried; ctx bounds the wait.
func WaitForReceipt(ctx context.Context, chain types.Chain, txHash string, interval time.Duration) (*types.Receipt, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := chain.Receipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, types.ErrTransactionNotFound) && !errors.Is(err, types.ErrProviderUnavailable) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
