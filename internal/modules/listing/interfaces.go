package listing

import (
	"context"
	"time"

	"shortlet/internal/domain"

	"github.com/google/uuid"
)

type PropertyRepository interface {
	Create(ctx context.Context, p *domain.Property) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error)
	List(ctx context.Context, limit, offset int) ([]domain.Property, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Property, error)
	Update(ctx context.Context, id uuid.UUID, upd domain.PropertyUpdate) (*domain.Property, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AvailabilityChecker answers range queries against the reservation ledger.
type AvailabilityChecker interface {
	Availability(ctx context.Context, propertyID uuid.UUID, start, end time.Time) (bool, error)
}
