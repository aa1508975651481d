package bloodrequest

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalink/vitalink/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const requestCols = `id, patient_id, patient_name, age, blood_group, units_needed,
	phone, city, location, urgency, status, description,
	accepted_by_id, accepted_by_name, accepted_at,
	cancelled_at, cancellation_reason, created_at, updated_at`

func scanRequest(row pgx.Row) (*BloodRequest, error) {
	var r BloodRequest
	err := row.Scan(&r.ID, &r.PatientID, &r.PatientName, &r.Age, &r.BloodGroup, &r.UnitsNeeded,
		&r.Phone, &r.City, &r.Location, &r.Urgency, &r.Status, &r.Description,
		&r.AcceptedByID, &r.AcceptedByName, &r.AcceptedAt,
		&r.CancelledAt, &r.CancellationReason, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (q *repoPG) Create(ctx context.Context, r *BloodRequest) error {
	r.ID = uuid.New()
	_, err := db.Conn(ctx, q.pool).Exec(ctx, `
		INSERT INTO blood_request (id, patient_id, patient_name, age, blood_group,
			units_needed, phone, city, location, urgency, status, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		r.ID, r.PatientID, r.PatientName, r.Age, r.BloodGroup,
		r.UnitsNeeded, r.Phone, r.City, r.Location, r.Urgency, r.Status, r.Description)
	return err
}

func (q *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*BloodRequest, error) {
	return scanRequest(db.Conn(ctx, q.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM blood_request WHERE id = $1`, id))
}

func (q *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*BloodRequest, error) {
	return scanRequest(db.Conn(ctx, q.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM blood_request WHERE id = $1 FOR UPDATE`, id))
}

func (q *repoPG) Update(ctx context.Context, r *BloodRequest) error {
	tag, err := db.Conn(ctx, q.pool).Exec(ctx, `
		UPDATE blood_request SET status=$2, urgency=$3, description=$4,
			accepted_by_id=$5, accepted_by_name=$6, accepted_at=$7,
			cancelled_at=$8, cancellation_reason=$9, updated_at=NOW()
		WHERE id = $1`,
		r.ID, r.Status, r.Urgency, r.Description,
		r.AcceptedByID, r.AcceptedByName, r.AcceptedAt,
		r.CancelledAt, r.CancellationReason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *repoPG) ListByCity(ctx context.Context, city, status string, limit, offset int) ([]*BloodRequest, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if city != "" {
		where += fmt.Sprintf(` AND city = $%d`, idx)
		args = append(args, city)
		idx++
	}
	if status != "" {
		where += fmt.Sprintf(` AND status = $%d`, idx)
		args = append(args, status)
		idx++
	}

	var total int
	if err := db.Conn(ctx, q.pool).QueryRow(ctx, `SELECT COUNT(*) FROM blood_request`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + requestCols + ` FROM blood_request` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := db.Conn(ctx, q.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*BloodRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

func (q *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*BloodRequest, int, error) {
	var total int
	if err := db.Conn(ctx, q.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM blood_request WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := db.Conn(ctx, q.pool).Query(ctx,
		`SELECT `+requestCols+` FROM blood_request WHERE patient_id = $1
		 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*BloodRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, r)
	}
	return items, total, rows.Err()
}

func (q *repoPG) AddResponse(ctx context.Context, resp *RequestResponse) error {
	resp.ID = uuid.New()
	_, err := db.Conn(ctx, q.pool).Exec(ctx, `
		INSERT INTO blood_request_response (id, request_id, blood_bank_id, blood_bank_name, status, message, responded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		resp.ID, resp.RequestID, resp.BloodBankID, resp.BloodBankName, resp.Status, resp.Message, resp.RespondedAt)
	return err
}

func (q *repoPG) HasResponse(ctx context.Context, requestID, bloodBankID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, q.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM blood_request_response WHERE request_id = $1 AND blood_bank_id = $2)`,
		requestID, bloodBankID).Scan(&exists)
	return exists, err
}

func (q *repoPG) ListResponses(ctx context.Context, requestID uuid.UUID) ([]*RequestResponse, error) {
	rows, err := db.Conn(ctx, q.pool).Query(ctx, `
		SELECT id, request_id, blood_bank_id, blood_bank_name, status, message, responded_at
		FROM blood_request_response WHERE request_id = $1 ORDER BY responded_at`, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*RequestResponse
	for rows.Next() {
		var resp RequestResponse
		if err := rows.Scan(&resp.ID, &resp.RequestID, &resp.BloodBankID, &resp.BloodBankName,
			&resp.Status, &resp.Message, &resp.RespondedAt); err != nil {
			return nil, err
		}
		items = append(items, &resp)
	}
	return items, rows.Err()
}
