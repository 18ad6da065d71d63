package domain

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	ReservationPending  ReservationStatus = "pending"
	ReservationPaid     ReservationStatus = "paid"
	ReservationExpired  ReservationStatus = "expired"
	ReservationCanceled ReservationStatus = "canceled"
)

// Reservation is a hold or a confirmed stay on a property for the half-open
// date range [StartDate, EndDate). ExpiresAt is set while the reservation is
// pending and cleared on every transition out of pending.
type Reservation struct {
	ID         uuid.UUID         `json:"id"`
	PropertyID uuid.UUID         `json:"property_id"`
	UserID     uuid.UUID         `json:"user_id"`
	StartDate  time.Time         `json:"start_date"`
	EndDate    time.Time         `json:"end_date"`
	Amount     int64             `json:"amount"`
	Status     ReservationStatus `json:"status"`
	BookedAt   time.Time         `json:"booked_at"`
	ExpiresAt  *time.Time        `json:"expires_at,omitempty"`

	// CompletedAt marks that the stay ran its course and the completion
	// sweep finalized it. Stamped at most once.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Payment correlation, populated once a checkout session exists.
	CheckoutSessionID string `json:"checkout_session_id,omitempty"`
	PaymentIntentID   string `json:"payment_intent_id,omitempty"`
}

// Active reports whether the reservation counts toward occupancy.
func (r *Reservation) Active() bool {
	return r.Status == ReservationPending || r.Status == ReservationPaid
}

// Covers reports whether the reservation's range contains t.
func (r *Reservation) Covers(t time.Time) bool {
	return !r.StartDate.After(t) && r.EndDate.After(t)
}

// NightsBetween returns the whole nights in [start, end), floored at one so
// same-day and inverted inputs still charge a single night.
func NightsBetween(start, end time.Time) int64 {
	nights := int64(end.Sub(start).Hours() / 24)
	if nights < 1 {
		return 1
	}
	return nights
}

// ToNaiveUTC strips zone information after converting to UTC so that stored
// ranges compare without offset skew.
func ToNaiveUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), u.Hour(), u.Minute(), u.Second(), u.Nanosecond(), time.UTC)
}
