package reservation

import (
	"context"
	"time"

	"shortlet/internal/domain"

	"github.com/google/uuid"
)

// ReservationRepository is the store plus availability-ledger surface the
// lifecycle manager drives. All mutations on it are transactional with the
// property availability flag.
type ReservationRepository interface {
	CreateHold(ctx context.Context, r *domain.Reservation) error
	DiscardHold(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	GetBySessionID(ctx context.Context, sessionID string) (*domain.Reservation, error)
	SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID, intentID string) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Reservation, error)
	ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]domain.Reservation, error)
	ListStartingBy(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error)
	ListEndedBy(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error)
	ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.Reservation, error)
	IsAvailable(ctx context.Context, propertyID uuid.UUID, start, end time.Time) (bool, error)
	MarkPaidIdempotent(ctx context.Context, sessionID, intentID string) (bool, *domain.Reservation, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	Expire(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	CompleteStay(ctx context.Context, id uuid.UUID, now time.Time) error
}

// PropertyReader is the listing-service capability the core needs.
type PropertyReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error)
}

// UserReader is the identity-service capability, used only to address
// notifications.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// PaymentGateway creates a checkout session with the external processor.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
}

type CheckoutSessionRequest struct {
	ReservationID uuid.UUID
	Amount        int64
	Currency      string
	Description   string
	CustomerEmail string
}

type CheckoutSession struct {
	ID              string
	PaymentIntentID string
	URL             string
}
