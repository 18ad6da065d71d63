package payment

import (
	"context"

	"shortlet/internal/domain"

	"github.com/google/uuid"
)

// LifecycleManager is the slice of the reservation lifecycle the reconciler
// drives. The reconciler never mutates reservation state itself.
type LifecycleManager interface {
	ConfirmBySession(ctx context.Context, sessionID, intentID string) (bool, *domain.Reservation, error)
	ExpireBySession(ctx context.Context, sessionID string) (bool, *domain.Reservation, error)
}

type propertyReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error)
}

type userReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}
