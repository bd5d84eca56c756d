package ledger

import "time"

// TransferRecord is one persisted transfer outcome.
type TransferRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BatchID     *uint     `gorm:"index" json:"batchId,omitempty"`
	BatchIndex  int       `gorm:"not null" json:"batchIndex"`
	ChainID     uint64    `gorm:"index" json:"chainId"`
	Token       string    `gorm:"size:42;index" json:"token"`
	Symbol      string    `gorm:"size:32" json:"symbol"`
	FromAddress string    `gorm:"size:42;index" json:"from"`
	ToAddress   string    `gorm:"size:42;index" json:"to"`
	Amount      string    `gorm:"size:80" json:"amount"`
	PermitNonce uint64    `gorm:"not null" json:"permitNonce"`
	TxHash      string    `gorm:"size:66;index" json:"txHash"`
	Success     bool      `gorm:"index" json:"success"`
	BlockNumber uint64    `json:"blockNumber,omitempty"`
	GasUsed     uint64    `json:"gasUsed,omitempty"`
	Error       string    `gorm:"size:512" json:"error,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BatchRecord groups the transfers of one batch run.
type BatchRecord struct {
	ID           uint `gorm:"primaryKey"`
	Items        int
	SuccessCount int
	CreatedAt    time.Time
	Transfers    []TransferRecord `gorm:"foreignKey:BatchID"`
}
