package account

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vitalink/vitalink/internal/platform/db"
)

func mapScanErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// =========== Hospital Repository ===========

type hospitalRepoPG struct{ pool *pgxpool.Pool }

func NewHospitalRepoPG(pool *pgxpool.Pool) HospitalRepository { return &hospitalRepoPG{pool: pool} }

const hospitalCols = `id, name, email, password_hash, phone, city, location,
	total_patients, emergencies_created, created_at`

func scanHospital(row pgx.Row) (*Hospital, error) {
	var h Hospital
	err := row.Scan(&h.ID, &h.Name, &h.Email, &h.PasswordHash, &h.Phone, &h.City, &h.Location,
		&h.TotalPatients, &h.EmergenciesCreated, &h.CreatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &h, nil
}

func (r *hospitalRepoPG) Create(ctx context.Context, h *Hospital) error {
	h.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO hospital (id, name, email, password_hash, phone, city, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		h.ID, h.Name, h.Email, h.PasswordHash, h.Phone, h.City, h.Location)
	return err
}

func (r *hospitalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error) {
	return scanHospital(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+hospitalCols+` FROM hospital WHERE id = $1`, id))
}

func (r *hospitalRepoPG) GetByEmail(ctx context.Context, email string) (*Hospital, error) {
	return scanHospital(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+hospitalCols+` FROM hospital WHERE email = $1`, email))
}

func (r *hospitalRepoPG) IncrementEmergenciesCreated(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE hospital SET emergencies_created = emergencies_created + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *hospitalRepoPG) AdjustTotalPatients(ctx context.Context, id uuid.UUID, delta int) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE hospital SET total_patients = total_patients + $2 WHERE id = $1`, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Blood Bank Repository ===========

type bloodBankRepoPG struct{ pool *pgxpool.Pool }

func NewBloodBankRepoPG(pool *pgxpool.Pool) BloodBankRepository { return &bloodBankRepoPG{pool: pool} }

const bloodBankCols = `id, name, email, password_hash, phone, city, location,
	total_stock, total_dispatched, successful_sends, created_at`

func scanBloodBank(row pgx.Row) (*BloodBank, error) {
	var b BloodBank
	err := row.Scan(&b.ID, &b.Name, &b.Email, &b.PasswordHash, &b.Phone, &b.City, &b.Location,
		&b.TotalStock, &b.TotalDispatched, &b.SuccessfulSends, &b.CreatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &b, nil
}

func (r *bloodBankRepoPG) Create(ctx context.Context, b *BloodBank) error {
	b.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO blood_bank (id, name, email, password_hash, phone, city, location)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		b.ID, b.Name, b.Email, b.PasswordHash, b.Phone, b.City, b.Location)
	return err
}

func (r *bloodBankRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*BloodBank, error) {
	return scanBloodBank(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+bloodBankCols+` FROM blood_bank WHERE id = $1`, id))
}

func (r *bloodBankRepoPG) GetByEmail(ctx context.Context, email string) (*BloodBank, error) {
	return scanBloodBank(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+bloodBankCols+` FROM blood_bank WHERE email = $1`, email))
}

func (r *bloodBankRepoPG) AdjustStock(ctx context.Context, id uuid.UUID, stockDelta, dispatchedDelta int) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE blood_bank
		SET total_stock = total_stock + $2, total_dispatched = total_dispatched + $3
		WHERE id = $1`, id, stockDelta, dispatchedDelta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *bloodBankRepoPG) IncrementSuccessfulSends(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE blood_bank SET successful_sends = successful_sends + 1 WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Donor Repository ===========

type donorRepoPG struct{ pool *pgxpool.Pool }

func NewDonorRepoPG(pool *pgxpool.Pool) DonorRepository { return &donorRepoPG{pool: pool} }

const donorCols = `id, name, email, password_hash, phone, city, location,
	blood_group, reputation, total_pledges, created_at`

func scanDonor(row pgx.Row) (*Donor, error) {
	var d Donor
	err := row.Scan(&d.ID, &d.Name, &d.Email, &d.PasswordHash, &d.Phone, &d.City, &d.Location,
		&d.BloodGroup, &d.Reputation, &d.TotalPledges, &d.CreatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &d, nil
}

func (r *donorRepoPG) Create(ctx context.Context, d *Donor) error {
	d.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO donor (id, name, email, password_hash, phone, city, location, blood_group)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		d.ID, d.Name, d.Email, d.PasswordHash, d.Phone, d.City, d.Location, d.BloodGroup)
	return err
}

func (r *donorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return scanDonor(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+donorCols+` FROM donor WHERE id = $1`, id))
}

func (r *donorRepoPG) GetByEmail(ctx context.Context, email string) (*Donor, error) {
	return scanDonor(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+donorCols+` FROM donor WHERE email = $1`, email))
}

func (r *donorRepoPG) RecordPledge(ctx context.Context, id uuid.UUID, reputationDelta int) (int, error) {
	var reputation int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE donor SET total_pledges = total_pledges + 1, reputation = reputation + $2
		WHERE id = $1
		RETURNING reputation`, id, reputationDelta).Scan(&reputation)
	if err != nil {
		return 0, mapScanErr(err)
	}
	return reputation, nil
}

func (r *donorRepoPG) ListEmailsByCity(ctx context.Context, city string) ([]string, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT email FROM donor WHERE city = $1`, city)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

// =========== Patient User Repository ===========

type patientUserRepoPG struct{ pool *pgxpool.Pool }

func NewPatientUserRepoPG(pool *pgxpool.Pool) PatientUserRepository {
	return &patientUserRepoPG{pool: pool}
}

const patientUserCols = `id, name, email, password_hash, phone, city, location,
	age, blood_group, created_at`

func scanPatientUser(row pgx.Row) (*PatientUser, error) {
	var p PatientUser
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.PasswordHash, &p.Phone, &p.City, &p.Location,
		&p.Age, &p.BloodGroup, &p.CreatedAt)
	if err != nil {
		return nil, mapScanErr(err)
	}
	return &p, nil
}

func (r *patientUserRepoPG) Create(ctx context.Context, p *PatientUser) error {
	p.ID = uuid.New()
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient_user (id, name, email, password_hash, phone, city, location, age, blood_group)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.Name, p.Email, p.PasswordHash, p.Phone, p.City, p.Location, p.Age, p.BloodGroup)
	return err
}

func (r *patientUserRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientUser, error) {
	return scanPatientUser(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientUserCols+` FROM patient_user WHERE id = $1`, id))
}

func (r *patientUserRepoPG) GetByEmail(ctx context.Context, email string) (*PatientUser, error) {
	return scanPatientUser(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientUserCols+` FROM patient_user WHERE email = $1`, email))
}
