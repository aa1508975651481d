package inventory

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/vitalink/vitalink/internal/domain/account"
	"github.com/vitalink/vitalink/internal/domain/blood"
)

var (
	ErrNotFound          = errors.New("inventory record not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidState      = errors.New("inventory record is not in the required state")
	ErrInsufficientUnits = errors.New("batch does not hold enough units")
)

const (
	BatchAvailable  = "available"
	BatchReserved   = "reserved"
	BatchDispatched = "dispatched"
	BatchExpired    = "expired"
)

// NearExpiryWindow is the horizon within which a batch counts as near expiry.
const NearExpiryWindow = 7 * 24 * time.Hour

// Preservation maps to the preservation table: one stored batch of blood.
type Preservation struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	BloodBankID     uuid.UUID  `db:"blood_bank_id" json:"blood_bank_id"`
	BatchID         string     `db:"batch_id" json:"batch_id"`
	BloodType       blood.Type `db:"blood_type" json:"blood_type"`
	Units           int        `db:"units" json:"units"`
	CollectionDate  time.Time  `db:"collection_date" json:"collection_date"`
	ExpiryDate      time.Time  `db:"expiry_date" json:"expiry_date"`
	Status          string     `db:"status" json:"status"`
	StorageLocation string     `db:"storage_location" json:"storage_location,omitempty"`
	DonorInfo       string     `db:"donor_info" json:"donor_info,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// IsExpired reports whether the batch has passed its expiry date. Derived at
// read time, never written back.
func (p *Preservation) IsExpired(now time.Time) bool {
	return now.After(p.ExpiryDate)
}

// IsNearExpiry reports whether the batch expires within the warning window.
// A batch at or past its expiry instant is not near expiry, it is expired.
func (p *Preservation) IsNearExpiry(now time.Time) bool {
	remaining := p.ExpiryDate.Sub(now)
	return remaining > 0 && remaining <= NearExpiryWindow
}

// BatchView is a Preservation with its derived expiry state materialized for
// API responses.
type BatchView struct {
	*Preservation
	Expired    bool `json:"is_expired"`
	NearExpiry bool `json:"is_near_expiry"`
}

func NewBatchView(p *Preservation, now time.Time) *BatchView {
	return &BatchView{Preservation: p, Expired: p.IsExpired(now), NearExpiry: p.IsNearExpiry(now)}
}

const (
	SendPending   = "pending"
	SendInTransit = "in_transit"
	SendDelivered = "delivered"
	SendFailed    = "failed"
)

// TerminalSendStatus reports whether a send record can no longer change.
func TerminalSendStatus(status string) bool {
	return status == SendDelivered || status == SendFailed
}

// SendRecord maps to the send_record table. The recipient is a (kind, id)
// pair: dispatches go to hospitals or to other blood banks.
type SendRecord struct {
	ID               uuid.UUID    `db:"id" json:"id"`
	BloodBankID      uuid.UUID    `db:"blood_bank_id" json:"blood_bank_id"`
	PreservationID   uuid.UUID    `db:"preservation_id" json:"preservation_id"`
	RecipientKind    account.Kind `db:"recipient_kind" json:"recipient_kind"`
	RecipientID      uuid.UUID    `db:"recipient_id" json:"recipient_id"`
	RecipientName    string       `db:"recipient_name" json:"recipient_name"`
	BloodType        blood.Type   `db:"blood_type" json:"blood_type"`
	Units            int          `db:"units" json:"units"`
	DispatchDate     time.Time    `db:"dispatch_date" json:"dispatch_date"`
	ExpectedDelivery *time.Time   `db:"expected_delivery" json:"expected_delivery,omitempty"`
	ActualDelivery   *time.Time   `db:"actual_delivery" json:"actual_delivery,omitempty"`
	Status           string       `db:"status" json:"status"`
	TrackingNumber   string       `db:"tracking_number" json:"tracking_number"`
	EmergencyID      *uuid.UUID   `db:"emergency_id" json:"emergency_id,omitempty"`
	Notes            string       `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time    `db:"created_at" json:"created_at"`
}

// StockEntry is one row of the per-type stock aggregate.
type StockEntry struct {
	BloodType blood.Type `json:"blood_type"`
	Units     int        `json:"units"`
}

// SuccessRatePercent is delivered sends as a percentage of all sends, rounded
// to one decimal. An empty history is 0, not NaN.
func SuccessRatePercent(delivered, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(delivered)*1000/float64(total)) / 10
}
