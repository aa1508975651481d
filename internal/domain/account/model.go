package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound           = errors.New("account not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Kind discriminates the account tables. Emergencies and send records carry a
// (kind, id) pair instead of a bare id so a reference can never be resolved
// against the wrong table.
type Kind string

const (
	KindHospital  Kind = "hospital"
	KindBloodBank Kind = "bloodbank"
	KindDonor     Kind = "donor"
	KindPatient   Kind = "patient"
)

func ValidKind(k Kind) bool {
	switch k {
	case KindHospital, KindBloodBank, KindDonor, KindPatient:
		return true
	}
	return false
}

// Hospital maps to the hospital table.
type Hospital struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Name               string    `db:"name" json:"name"`
	Email              string    `db:"email" json:"email"`
	PasswordHash       string    `db:"password_hash" json:"-"`
	Phone              string    `db:"phone" json:"phone"`
	City               string    `db:"city" json:"city"`
	Location           string    `db:"location" json:"location"`
	TotalPatients      int       `db:"total_patients" json:"total_patients"`
	EmergenciesCreated int       `db:"emergencies_created" json:"emergencies_created"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}

// BloodBank maps to the blood_bank table.
type BloodBank struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	PasswordHash    string    `db:"password_hash" json:"-"`
	Phone           string    `db:"phone" json:"phone"`
	City            string    `db:"city" json:"city"`
	Location        string    `db:"location" json:"location"`
	TotalStock      int       `db:"total_stock" json:"total_stock"`
	TotalDispatched int       `db:"total_dispatched" json:"total_dispatched"`
	SuccessfulSends int       `db:"successful_sends" json:"successful_sends"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Donor maps to the donor table.
type Donor struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Phone        string    `db:"phone" json:"phone"`
	City         string    `db:"city" json:"city"`
	Location     string    `db:"location" json:"location"`
	BloodGroup   string    `db:"blood_group" json:"blood_group"`
	Reputation   int       `db:"reputation" json:"reputation"`
	TotalPledges int       `db:"total_pledges" json:"total_pledges"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// PatientUser maps to the patient_user table. Distinct from the hospital
// roster patient: a patient user logs in and raises blood requests directly.
type PatientUser struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Phone        string    `db:"phone" json:"phone"`
	City         string    `db:"city" json:"city"`
	Location     string    `db:"location" json:"location"`
	Age          int       `db:"age" json:"age"`
	BloodGroup   string    `db:"blood_group" json:"blood_group"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Contact is the kind-independent view of an account used when another domain
// only needs to reach or display the holder.
type Contact struct {
	ID       uuid.UUID `json:"id"`
	Kind     Kind      `json:"kind"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Phone    string    `json:"phone"`
	City     string    `json:"city"`
	Location string    `json:"location"`
}
