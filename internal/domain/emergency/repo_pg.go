package emergency

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

const emergencyCols = `id, creator_kind, creator_id, creator_name, blood_type,
	units_needed, units_pledged, units_received, city, location, contact_phone,
	status, priority, description, expires_at, created_at, updated_at`

func scanEmergency(row pgx.Row) (*Emergency, error) {
	var e Emergency
	err := row.Scan(&e.ID, &e.CreatorKind, &e.CreatorID, &e.CreatorName, &e.BloodType,
		&e.UnitsNeeded, &e.UnitsPledged, &e.UnitsReceived, &e.City, &e.Location, &e.ContactPhone,
		&e.Status, &e.Priority, &e.Description, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Emergency) error {
	e.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO emergency (id, creator_kind, creator_id, creator_name, blood_type,
			units_needed, city, location, contact_phone, status, priority, description, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		e.ID, e.CreatorKind, e.CreatorID, e.CreatorName, e.BloodType,
		e.UnitsNeeded, e.City, e.Location, e.ContactPhone, e.Status, e.Priority, e.Description, e.ExpiresAt)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Emergency, error) {
	return scanEmergency(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+emergencyCols+` FROM emergency WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Emergency, error) {
	return scanEmergency(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+emergencyCols+` FROM emergency WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) Update(ctx context.Context, e *Emergency) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE emergency SET units_pledged=$2, units_received=$3, status=$4,
			priority=$5, description=$6, updated_at=NOW()
		WHERE id = $1`,
		e.ID, e.UnitsPledged, e.UnitsReceived, e.Status, e.Priority, e.Description)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) ListActive(ctx context.Context, city string, limit int) ([]*Emergency, error) {
	query := `SELECT ` + emergencyCols + ` FROM emergency
		WHERE status = 'active' AND expires_at > NOW()`
	var args []interface{}
	if city != "" {
		query += ` AND city = $1`
		args = append(args, city)
	}
	query += ` ORDER BY CASE priority
			WHEN 'critical' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1
		END DESC, created_at DESC`
	if city != "" {
		query += ` LIMIT $2`
	} else {
		query += ` LIMIT $1`
	}
	args = append(args, limit)

	rows, err := db.Conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Emergency
	for rows.Next() {
		e, err := scanEmergency(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *repoPG) AddResponse(ctx context.Context, resp *Response) error {
	resp.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO emergency_response (id, emergency_id, donor_id, donor_name, units_pledged, status, responded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		resp.ID, resp.EmergencyID, resp.DonorID, resp.DonorName, resp.UnitsPledged, resp.Status, resp.RespondedAt)
	return err
}

func (r *repoPG) HasResponse(ctx context.Context, emergencyID, donorID uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM emergency_response WHERE emergency_id = $1 AND donor_id = $2)`,
		emergencyID, donorID).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListResponses(ctx context.Context, emergencyID uuid.UUID) ([]*Response, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, emergency_id, donor_id, donor_name, units_pledged, status, responded_at
		FROM emergency_response WHERE emergency_id = $1 ORDER BY responded_at`, emergencyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Response
	for rows.Next() {
		var resp Response
		if err := rows.Scan(&resp.ID, &resp.EmergencyID, &resp.DonorID, &resp.DonorName,
			&resp.UnitsPledged, &resp.Status, &resp.RespondedAt); err != nil {
			return nil, err
		}
		items = append(items, &resp)
	}
	return items, rows.Err()
}
