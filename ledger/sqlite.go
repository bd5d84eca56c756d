package ledger

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/strangelove-ventures/permit2-distributor/types"
)

var _ types.Ledger = (*SQLLedger)(nil)

// SQLLedger stores transfer and batch records through gorm.
type SQLLedger struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) a SQLite ledger at dsn and migrates its schema.
func OpenSQLite(dsn string) (*SQLLedger, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	return NewSQLLedger(db)
}

// NewSQLLedger migrates the ledger tables on db.
func NewSQLLedger(db *gorm.DB) (*SQLLedger, error) {
	if err := db.AutoMigrate(&BatchRecord{}, &TransferRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLLedger{db: db}, nil
}

func (l *SQLLedger) RecordTransfer(ctx context.Context, req types.TransferRequest, res types.TransferResult) error {
	rec := newRecord(req, res)
	if err := l.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("record transfer: %w", err)
	}
	return nil
}

// RecordBatch stores the batch and all of its items in one transaction.
func (l *SQLLedger) RecordBatch(ctx context.Context, reqs []types.TransferRequest, res types.BatchResult) error {
	batch := BatchRecord{
		Items:        len(reqs),
		SuccessCount: res.SuccessCount,
	}
	for i, req := range reqs {
		var result types.TransferResult
		if i < len(res.Results) {
			result = res.Results[i]
		}
		rec := newRecord(req, result)
		rec.BatchIndex = i
		batch.Transfers = append(batch.Transfers, rec)
	}

	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&batch).Error
	})
	if err != nil {
		return fmt.Errorf("record batch: %w", err)
	}
	return nil
}

// FindByTxHash returns every record for txHash, oldest first.
func (l *SQLLedger) FindByTxHash(ctx context.Context, txHash string) ([]TransferRecord, error) {
	var out []TransferRecord
	err := l.db.WithContext(ctx).Where("tx_hash = ?", txHash).Order("id").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("find transfers: %w", err)
	}
	return out, nil
}

// Batch loads a batch with its transfers in input order.
func (l *SQLLedger) Batch(ctx context.Context, id uint) (BatchRecord, error) {
	var b BatchRecord
	err := l.db.WithContext(ctx).
		Preload("Transfers", func(db *gorm.DB) *gorm.DB { return db.Order("batch_index") }).
		First(&b, id).Error
	if err != nil {
		return BatchRecord{}, fmt.Errorf("load batch %d: %w", id, err)
	}
	return b, nil
}

func (l *SQLLedger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
