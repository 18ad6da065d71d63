package reservation

import (
	"time"

	"shortlet/internal/domain"

	"github.com/google/uuid"
)

type CreateReservationRequest struct {
	PropertyID uuid.UUID `json:"property_id" binding:"required"`
	StartDate  time.Time `json:"start_date" binding:"required"`
	EndDate    time.Time `json:"end_date" binding:"required"`

	// Filled from the authenticated context, never from the body.
	UserID uuid.UUID `json:"-"`
}

// CreateReservationResult is what the booker needs to proceed to payment.
type CreateReservationResult struct {
	Reservation *domain.Reservation `json:"reservation"`
	CheckoutURL string              `json:"checkout_url"`
}
