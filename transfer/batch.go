package transfer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/metrics"
	"github.com/strangelove-ventures/permit2-distributor/types"
)

// ErrFiltered marks a batch item skipped by a transfer filter.
var ErrFiltered = errors.New("transfer filtered")

// Batch runs transfers strictly one after another. Submissions from the same executor
// account share an account nonce, so items are never run in parallel.
type Batch struct {
	exec    *Executor
	filters *types.FilterRegistry
	ledger  types.Ledger
	metrics *metrics.PromMetrics
	logger  log.Logger
}

// NewBatch wires the executor with optional filters, ledger and metrics; any of them may
// be nil.
func NewBatch(exec *Executor, filters *types.FilterRegistry, ledger types.Ledger, m *metrics.PromMetrics, logger log.Logger) *Batch {
	return &Batch{
		exec:    exec,
		filters: filters,
		ledger:  ledger,
		metrics: m,
		logger:  logger,
	}
}

// Item is one batch entry. An item whose request could not be prepared carries Err; it is
// reported as failed and never executed.
type Item struct {
	Request types.TransferRequest
	Err     error
}

// ExecuteAll returns one slot per request. Failed, filtered and unattempted items leave an
// empty hash. Only a missing key fails the whole batch. Once ctx is done no further item is
// started.
func (b *Batch) ExecuteAll(ctx context.Context, reqs []types.TransferRequest, key *ecdsa.PrivateKey) (types.BatchResult, error) {
	items := make([]Item, len(reqs))
	for i, req := range reqs {
		items[i].Request = req
	}
	return b.ExecuteItems(ctx, items, key)
}

// ExecuteItems is ExecuteAll for entries that may already have failed to prepare.
func (b *Batch) ExecuteItems(ctx context.Context, items []Item, key *ecdsa.PrivateKey) (types.BatchResult, error) {
	if key == nil {
		return types.BatchResult{}, fmt.Errorf("%w: executor key required", types.ErrSubmission)
	}

	reqs := make([]types.TransferRequest, len(items))
	res := types.BatchResult{
		TxHashes: make([]string, len(items)),
		Results:  make([]types.TransferResult, len(items)),
	}

	for i, item := range items {
		reqs[i] = item.Request
		if err := ctx.Err(); err != nil {
			for j := i; j < len(items); j++ {
				reqs[j] = items[j].Request
				res.Results[j].Err = err
			}
			b.logger.Info("Batch cancelled", "completed", i, "remaining", len(items)-i)
			break
		}

		req := item.Request
		if item.Err != nil {
			b.logger.Error("Batch item invalid", "index", i, "error", item.Err)
			b.metrics.IncTransfer(chainLabel(b.exec.reg, req.Token.ChainID), req.Token.Symbol, "rejected")
			res.Results[i].Err = item.Err
			continue
		}

		r := req
		if filtered, reason := b.filters.Screen(ctx, &r); filtered {
			b.logger.Info("Filtered batch item", "index", i, "reason", reason)
			b.metrics.IncTransfer(chainLabel(b.exec.reg, req.Token.ChainID), req.Token.Symbol, "filtered")
			res.Results[i].Err = fmt.Errorf("%w: %s", ErrFiltered, reason)
			continue
		}

		result, err := b.exec.Execute(ctx, req, key)
		if err != nil {
			result.Err = err
			b.logger.Error("Batch item failed", "index", i, "error", err)
		}
		res.Results[i] = result
		if result.Success {
			res.TxHashes[i] = result.TxHash
			res.SuccessCount++
		}
	}

	b.metrics.AddBatchItems("success", res.SuccessCount)
	b.metrics.AddBatchItems("failed", len(items)-res.SuccessCount)

	if b.ledger != nil {
		// Record what happened even when the caller has already given up.
		if err := b.ledger.RecordBatch(context.WithoutCancel(ctx), reqs, res); err != nil {
			b.logger.Error("Unable to record batch", "error", err)
		}
	}
	return res, nil
}
