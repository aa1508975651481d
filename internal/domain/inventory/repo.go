package inventory

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateBatch(ctx context.Context, p *Preservation) error
	GetBatchByID(ctx context.Context, id uuid.UUID) (*Preservation, error)
	// GetBatchByIDForUpdate locks the row so concurrent dispatches from the
	// same batch serialize.
	GetBatchByIDForUpdate(ctx context.Context, id uuid.UUID) (*Preservation, error)
	UpdateBatch(ctx context.Context, p *Preservation) error
	ListBatches(ctx context.Context, bloodBankID uuid.UUID, limit, offset int) ([]*Preservation, int, error)
	// StockSummary aggregates available, unexpired units per blood type.
	StockSummary(ctx context.Context, bloodBankID uuid.UUID) ([]StockEntry, error)

	CreateSendRecord(ctx context.Context, r *SendRecord) error
	GetSendRecordByIDForUpdate(ctx context.Context, id uuid.UUID) (*SendRecord, error)
	UpdateSendRecord(ctx context.Context, r *SendRecord) error
	ListSendRecords(ctx context.Context, bloodBankID uuid.UUID, limit, offset int) ([]*SendRecord, int, error)
	// CountSendRecords returns total and delivered counts for the bank.
	CountSendRecords(ctx context.Context, bloodBankID uuid.UUID) (total, delivered int, err error)
}
