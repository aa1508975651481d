package emergency

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *Emergency) error
	GetByID(ctx context.Context, id uuid.UUID) (*Emergency, error)
	// GetByIDForUpdate locks the row for the remainder of the enclosing
	// transaction so concurrent responders serialize.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Emergency, error)
	Update(ctx context.Context, e *Emergency) error
	// ListActive returns active, unexpired emergencies ordered by priority
	// then recency. Empty city means all cities.
	ListActive(ctx context.Context, city string, limit int) ([]*Emergency, error)
	AddResponse(ctx context.Context, r *Response) error
	HasResponse(ctx context.Context, emergencyID, donorID uuid.UUID) (bool, error)
	ListResponses(ctx context.Context, emergencyID uuid.UUID) ([]*Response, error)
}
