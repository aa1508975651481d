package emergency

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vitalink/vitalink/internal/domain/account"
	"github.com/vitalink/vitalink/internal/domain/blood"
)

var (
	ErrNotFound          = errors.New("emergency not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("emergency is not active")
	ErrDuplicateResponse = errors.New("donor already responded to this emergency")
	ErrForbidden         = errors.New("not the emergency creator")
)

const (
	StatusActive    = "active"
	StatusFulfilled = "fulfilled"
	StatusCancelled = "cancelled"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// PriorityRank orders priorities for listing, highest first.
func PriorityRank(p string) int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// DefaultTTL is how long a new emergency stays broadcastable.
const DefaultTTL = 24 * time.Hour

// Emergency maps to the emergency table. The creator is a (kind, id) pair:
// both hospitals and blood banks may raise emergencies.
type Emergency struct {
	ID            uuid.UUID    `db:"id" json:"id"`
	CreatorKind   account.Kind `db:"creator_kind" json:"creator_kind"`
	CreatorID     uuid.UUID    `db:"creator_id" json:"creator_id"`
	CreatorName   string       `db:"creator_name" json:"creator_name"`
	BloodType     blood.Type   `db:"blood_type" json:"blood_type"`
	UnitsNeeded   int          `db:"units_needed" json:"units_needed"`
	UnitsPledged  int          `db:"units_pledged" json:"units_pledged"`
	UnitsReceived int          `db:"units_received" json:"units_received"`
	City          string       `db:"city" json:"city"`
	Location      string       `db:"location" json:"location"`
	ContactPhone  string       `db:"contact_phone" json:"contact_phone"`
	Status        string       `db:"status" json:"status"`
	Priority      string       `db:"priority" json:"priority"`
	Description   string       `db:"description" json:"description,omitempty"`
	ExpiresAt     time.Time    `db:"expires_at" json:"expires_at"`
	CreatedAt     time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at" json:"updated_at"`
}

// Expired reports whether the emergency has passed its broadcast window.
// Expired rows are filtered from listings but never rewritten in place.
func (e *Emergency) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// ApplyReceivedUnits credits delivered units and flips the status to
// fulfilled once the need is met. This is the only path that moves
// units_received.
func (e *Emergency) ApplyReceivedUnits(units int) {
	e.UnitsReceived += units
	if e.UnitsReceived >= e.UnitsNeeded && e.Status == StatusActive {
		e.Status = StatusFulfilled
	}
}

const (
	ResponseStatusPledged   = "pledged"
	ResponseStatusConfirmed = "confirmed"
	ResponseStatusCompleted = "completed"
	ResponseStatusCancelled = "cancelled"
)

// Response maps to the emergency_response table. At most one per
// (emergency, donor) pair.
type Response struct {
	ID           uuid.UUID `db:"id" json:"id"`
	EmergencyID  uuid.UUID `db:"emergency_id" json:"emergency_id"`
	DonorID      uuid.UUID `db:"donor_id" json:"donor_id"`
	DonorName    string    `db:"donor_name" json:"donor_name"`
	UnitsPledged int       `db:"units_pledged" json:"units_pledged"`
	Status       string    `db:"status" json:"status"`
	RespondedAt  time.Time `db:"responded_at" json:"responded_at"`
}
