package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vitalink/vitalink/internal/domain/blood"
)

var (
	ErrNotFound     = errors.New("patient not found")
	ErrInvalidInput = errors.New("invalid input")
)

const (
	StatusRequesting = "requesting"
	StatusPartial    = "partial"
	StatusReceived   = "received"
)

// Patient maps to the patient table: one entry on a hospital's transfusion
// roster. Not an account; roster patients never log in.
type Patient struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	HospitalID    uuid.UUID  `db:"hospital_id" json:"hospital_id"`
	Name          string     `db:"name" json:"name"`
	Age           int        `db:"age" json:"age"`
	BloodType     blood.Type `db:"blood_type" json:"blood_type"`
	UnitsNeeded   int        `db:"units_needed" json:"units_needed"`
	UnitsReceived int        `db:"units_received" json:"units_received"`
	Ward          string     `db:"ward" json:"ward,omitempty"`
	Notes         string     `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Status derives the roster state from the unit counters. It is never
// stored; the counters are the single source of truth.
func (p *Patient) Status() string {
	switch {
	case p.UnitsReceived <= 0:
		return StatusRequesting
	case p.UnitsReceived < p.UnitsNeeded:
		return StatusPartial
	default:
		return StatusReceived
	}
}

// View is a Patient with the derived status materialized for API responses.
type View struct {
	*Patient
	Status string `json:"status"`
}

func NewView(p *Patient) *View {
	return &View{Patient: p, Status: p.Status()}
}
