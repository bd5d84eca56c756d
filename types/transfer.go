package types

import "context"

// TransferRequest is one delegated transfer authorized by Permit.
type TransferRequest struct {
	Token    SupportedToken `json:"token"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Amount   string         `json:"amount"`
	Permit   PermitPackage  `json:"permit"`
	Deadline uint64         `json:"deadline"`
}

// TransferResult is the terminal record of one transfer. TxHash is empty when nothing was
// broadcast.
type TransferResult struct {
	TxHash      string `json:"txHash"`
	Success     bool   `json:"success"`
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	GasUsed     uint64 `json:"gasUsed,omitempty"`
	Err         error  `json:"-"`
}

// BatchResult is aligned 1:1 with the batch input. TxHashes holds "" for every item that
// did not end in a successful receipt; Results keeps what was actually observed.
type BatchResult struct {
	TxHashes     []string         `json:"txHashes"`
	SuccessCount int              `json:"successCount"`
	Results      []TransferResult `json:"results"`
}

// Ledger persists terminal transfer records. It is supplied by the hosting application.
type Ledger interface {
	RecordTransfer(ctx context.Context, req TransferRequest, res TransferResult) error
	RecordBatch(ctx context.Context, reqs []TransferRequest, res BatchResult) error
}
