package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RoleGuest UserRole = "guest"
	RoleHost  UserRole = "host"
	RoleAdmin UserRole = "admin"
)

type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email" validate:"required,email"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}
