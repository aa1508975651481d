package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalink/vitalink/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func mapScanErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

const batchCols = `id, blood_bank_id, batch_id, blood_type, units, collection_date,
	expiry_date, status, storage_location, donor_info, created_at, updated_at`

func scanBatch(row pgx.Row) (*Preservation, error) {
	var p Preservation
	err := row.Scan(&p.ID, &p.BloodBankID, &p.BatchID, &p.BloodType, &p.Units, &p.CollectionDate,
		&p.ExpiryDate, &p.Status, &p.StorageLocation, &p.DonorInfo, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &p, nil
}

func (r *repoPG) CreateBatch(ctx context.Context, p *Preservation) error {
	p.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO preservation (id, blood_bank_id, batch_id, blood_type, units,
			collection_date, expiry_date, status, storage_location, donor_info)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.BloodBankID, p.BatchID, p.BloodType, p.Units,
		p.CollectionDate, p.ExpiryDate, p.Status, p.StorageLocation, p.DonorInfo)
	return err
}

func (r *repoPG) GetBatchByID(ctx context.Context, id uuid.UUID) (*Preservation, error) {
	return scanBatch(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+batchCols+` FROM preservation WHERE id = $1`, id))
}

func (r *repoPG) GetBatchByIDForUpdate(ctx context.Context, id uuid.UUID) (*Preservation, error) {
	return scanBatch(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+batchCols+` FROM preservation WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdateBatch(ctx context.Context, p *Preservation) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE preservation SET units=$2, status=$3, storage_location=$4, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Units, p.Status, p.StorageLocation)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListBatches(ctx context.Context, bloodBankID uuid.UUID, limit, offset int) ([]*Preservation, int, error) {
	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM preservation WHERE blood_bank_id = $1`, bloodBankID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+batchCols+` FROM preservation WHERE blood_bank_id = $1
		 ORDER BY expiry_date ASC LIMIT $2 OFFSET $3`, bloodBankID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Preservation
	for rows.Next() {
		p, err := scanBatch(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *repoPG) StockSummary(ctx context.Context, bloodBankID uuid.UUID) ([]StockEntry, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT blood_type, COALESCE(SUM(units), 0)
		FROM preservation
		WHERE blood_bank_id = $1 AND status = 'available' AND expiry_date > NOW()
		GROUP BY blood_type
		ORDER BY blood_type`, bloodBankID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []StockEntry
	for rows.Next() {
		var e StockEntry
		if err := rows.Scan(&e.BloodType, &e.Units); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

const sendCols = `id, blood_bank_id, preservation_id, recipient_kind, recipient_id,
	recipient_name, blood_type, units, dispatch_date, expected_delivery,
	actual_delivery, status, tracking_number, emergency_id, notes, created_at`

func scanSend(row pgx.Row) (*SendRecord, error) {
	var s SendRecord
	err := row.Scan(&s.ID, &s.BloodBankID, &s.PreservationID, &s.RecipientKind, &s.RecipientID,
		&s.RecipientName, &s.BloodType, &s.Units, &s.DispatchDate, &s.ExpectedDelivery,
		&s.ActualDelivery, &s.Status, &s.TrackingNumber, &s.EmergencyID, &s.Notes, &s.CreatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &s, nil
}

func (r *repoPG) CreateSendRecord(ctx context.Context, s *SendRecord) error {
	s.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO send_record (id, blood_bank_id, preservation_id, recipient_kind,
			recipient_id, recipient_name, blood_type, units, dispatch_date,
			expected_delivery, status, tracking_number, emergency_id, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		s.ID, s.BloodBankID, s.PreservationID, s.RecipientKind,
		s.RecipientID, s.RecipientName, s.BloodType, s.Units, s.DispatchDate,
		s.ExpectedDelivery, s.Status, s.TrackingNumber, s.EmergencyID, s.Notes)
	return err
}

func (r *repoPG) GetSendRecordByIDForUpdate(ctx context.Context, id uuid.UUID) (*SendRecord, error) {
	return scanSend(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+sendCols+` FROM send_record WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdateSendRecord(ctx context.Context, s *SendRecord) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE send_record SET status=$2, actual_delivery=$3, notes=$4
		WHERE id = $1`,
		s.ID, s.Status, s.ActualDelivery, s.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListSendRecords(ctx context.Context, bloodBankID uuid.UUID, limit, offset int) ([]*SendRecord, int, error) {
	var total int
	if err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM send_record WHERE blood_bank_id = $1`, bloodBankID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+sendCols+` FROM send_record WHERE blood_bank_id = $1
		 ORDER BY dispatch_date DESC LIMIT $2 OFFSET $3`, bloodBankID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*SendRecord
	for rows.Next() {
		s, err := scanSend(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, rows.Err()
}

func (r *repoPG) CountSendRecords(ctx context.Context, bloodBankID uuid.UUID) (int, int, error) {
	var total, delivered int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status = 'delivered')
		FROM send_record WHERE blood_bank_id = $1`, bloodBankID).Scan(&total, &delivered)
	return total, delivered, err
}
