package bloodrequest

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vitalink/vitalink/internal/domain/blood"
)

var (
	ErrNotFound          = errors.New("blood request not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("blood request is not in the required state")
	ErrForbidden         = errors.New("not allowed to act on this blood request")
	ErrDuplicateResponse = errors.New("blood bank already responded to this request")
)

const (
	StatusPending   = "pending"
	StatusAccepted  = "accepted"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
)

const (
	UrgencyLow      = "low"
	UrgencyMedium   = "medium"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

func ValidUrgency(u string) bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

// DefaultCancellationReason is recorded when the requester gives none.
const DefaultCancellationReason = "cancelled by requester"

// BloodRequest maps to the blood_request table. Demographics are copied from
// the patient account at creation so the request stays self-contained.
type BloodRequest struct {
	ID                 uuid.UUID  `db:"id" json:"id"`
	PatientID          uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName        string     `db:"patient_name" json:"patient_name"`
	Age                int        `db:"age" json:"age"`
	BloodGroup         blood.Type `db:"blood_group" json:"blood_group"`
	UnitsNeeded        int        `db:"units_needed" json:"units_needed"`
	Phone              string     `db:"phone" json:"phone"`
	City               string     `db:"city" json:"city"`
	Location           string     `db:"location" json:"location"`
	Urgency            string     `db:"urgency" json:"urgency"`
	Status             string     `db:"status" json:"status"`
	Description        string     `db:"description" json:"description,omitempty"`
	AcceptedByID       *uuid.UUID `db:"accepted_by_id" json:"accepted_by_id,omitempty"`
	AcceptedByName     *string    `db:"accepted_by_name" json:"accepted_by_name,omitempty"`
	AcceptedAt         *time.Time `db:"accepted_at" json:"accepted_at,omitempty"`
	CancelledAt        *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason *string    `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	ResponseInterested = "interested"
	ResponseAccepted   = "accepted"
	ResponseDeclined   = "declined"
)

// RequestResponse maps to the blood_request_response table.
type RequestResponse struct {
	ID            uuid.UUID `db:"id" json:"id"`
	RequestID     uuid.UUID `db:"request_id" json:"request_id"`
	BloodBankID   uuid.UUID `db:"blood_bank_id" json:"blood_bank_id"`
	BloodBankName string    `db:"blood_bank_name" json:"blood_bank_name"`
	Status        string    `db:"status" json:"status"`
	Message       string    `db:"message" json:"message,omitempty"`
	RespondedAt   time.Time `db:"responded_at" json:"responded_at"`
}
