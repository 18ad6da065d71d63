package domain

import (
	"time"

	"github.com/google/uuid"
)

// Property is a listed shortlet. Available is a derived flag the reservation
// core keeps in sync with aggregate occupancy; nobody else writes it.
type Property struct {
	ID            uuid.UUID `json:"id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location,omitempty"`
	NightlyRate   int64     `json:"nightly_rate"`
	Available     bool      `json:"available"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PropertyUpdate enumerates the listing fields that stay mutable after
// creation. Identity, ownership and the availability flag are excluded on
// purpose; the flag is derived state owned by the reservation core.
type PropertyUpdate struct {
	Title       *string
	Description *string
	Location    *string
	NightlyRate *int64
}
