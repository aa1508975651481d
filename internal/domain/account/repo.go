package account

import (
	"context"

	"github.com/google/uuid"
)

type HospitalRepository interface {
	Create(ctx context.Context, h *Hospital) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hospital, error)
	GetByEmail(ctx context.Context, email string) (*Hospital, error)
	IncrementEmergenciesCreated(ctx context.Context, id uuid.UUID) error
	AdjustTotalPatients(ctx context.Context, id uuid.UUID, delta int) error
}

type BloodBankRepository interface {
	Create(ctx context.Context, b *BloodBank) error
	GetByID(ctx context.Context, id uuid.UUID) (*BloodBank, error)
	GetByEmail(ctx context.Context, email string) (*BloodBank, error)
	// AdjustStock applies stock and dispatched deltas in one statement so the
	// counters move together with the business event's transaction.
	AdjustStock(ctx context.Context, id uuid.UUID, stockDelta, dispatchedDelta int) error
	IncrementSuccessfulSends(ctx context.Context, id uuid.UUID) error
}

type DonorRepository interface {
	Create(ctx context.Context, d *Donor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Donor, error)
	GetByEmail(ctx context.Context, email string) (*Donor, error)
	// RecordPledge bumps total_pledges by one and reputation by the given
	// amount, returning the new reputation.
	RecordPledge(ctx context.Context, id uuid.UUID, reputationDelta int) (int, error)
	ListEmailsByCity(ctx context.Context, city string) ([]string, error)
}

type PatientUserRepository interface {
	Create(ctx context.Context, p *PatientUser) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientUser, error)
	GetByEmail(ctx context.Context, email string) (*PatientUser, error)
}
