package bloodrequest

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, r *BloodRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*BloodRequest, error)
	// GetByIDForUpdate locks the row so accept, fulfill, and cancel serialize.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*BloodRequest, error)
	Update(ctx context.Context, r *BloodRequest) error
	ListByCity(ctx context.Context, city, status string, limit, offset int) ([]*BloodRequest, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*BloodRequest, int, error)
	AddResponse(ctx context.Context, resp *RequestResponse) error
	HasResponse(ctx context.Context, requestID, bloodBankID uuid.UUID) (bool, error)
	ListResponses(ctx context.Context, requestID uuid.UUID) ([]*RequestResponse, error)
}
