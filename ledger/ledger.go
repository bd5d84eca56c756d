// Package ledger persists terminal transfer results for the hosting application.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"cosmossdk.io/log"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

const (
	DriverLog    = "log"
	DriverSQLite = "sqlite"
)

// New opens the ledger selected by settings.
func New(settings types.LedgerSettings, logger log.Logger) (types.Ledger, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(strings.TrimSpace(settings.Driver)) {
	case "", DriverLog:
		return NewLogLedger(logger), nil
	case DriverSQLite:
		return OpenSQLite(settings.DSN)
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", settings.Driver)
	}
}

func newRecord(req types.TransferRequest, res types.TransferResult) TransferRecord {
	rec := TransferRecord{
		ChainID:     uint64(req.Token.ChainID),
		Token:       types.NormalizeAddress(req.Token.Address),
		Symbol:      req.Token.Symbol,
		FromAddress: types.NormalizeAddress(req.From),
		ToAddress:   types.NormalizeAddress(req.To),
		Amount:      req.Amount,
		PermitNonce: req.Permit.Details.Nonce,
		TxHash:      res.TxHash,
		Success:     res.Success,
		BlockNumber: res.BlockNumber,
		GasUsed:     res.GasUsed,
	}
	if res.Err != nil {
		rec.Error = truncate(res.Err.Error(), 512)
	}
	return rec
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// LogLedger writes results to the application log only.
type LogLedger struct {
	logger log.Logger
}

func NewLogLedger(logger log.Logger) *LogLedger {
	return &LogLedger{logger: logger}
}

func (l *LogLedger) RecordTransfer(_ context.Context, req types.TransferRequest, res types.TransferResult) error {
	rec := newRecord(req, res)
	l.logger.Info("Transfer recorded",
		"chain_id", rec.ChainID,
		"token", rec.Symbol,
		"from", rec.FromAddress,
		"to", rec.ToAddress,
		"amount", rec.Amount,
		"tx", rec.TxHash,
		"success", rec.Success,
		"error", rec.Error)
	return nil
}

func (l *LogLedger) RecordBatch(ctx context.Context, reqs []types.TransferRequest, res types.BatchResult) error {
	l.logger.Info("Batch recorded", "items", len(reqs), "success_count", res.SuccessCount)
	for i, req := range reqs {
		if i < len(res.Results) {
			_ = l.RecordTransfer(ctx, req, res.Results[i])
		}
	}
	return nil
}
