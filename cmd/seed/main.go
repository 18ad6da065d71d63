package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"shortlet/internal/database"
	"shortlet/internal/domain"
	"shortlet/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Seeds a local database with a host, a guest and a couple of listings.
func main() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "shortlet.db"
	}

	db, err := database.Connect(dsn)
	if err != nil {
		slog.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	if err := repository.Migrate(db); err != nil {
		slog.Error("db migrate failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	users := repository.NewUserRepository(db)
	properties := repository.NewPropertyRepository(db)

	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	now := time.Now().UTC()

	host := &domain.User{
		ID:           uuid.New(),
		Email:        "host@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleHost,
		Name:         "Seed Host",
		CreatedAt:    now,
	}
	guest := &domain.User{
		ID:           uuid.New(),
		Email:        "guest@example.com",
		PasswordHash: string(hash),
		Role:         domain.RoleGuest,
		Name:         "Seed Guest",
		CreatedAt:    now,
	}
	for _, u := range []*domain.User{host, guest} {
		if err := users.Create(ctx, u); err != nil {
			slog.Error("seed user failed", "email", u.Email, "error", err)
			os.Exit(1)
		}
	}

	listings := []*domain.Property{
		{
			ID:          uuid.New(),
			OwnerID:     host.ID,
			Title:       "Sunny studio near the waterfront",
			Description: "Bright one-room studio, five minutes from the beach.",
			Location:    "Lagos",
			NightlyRate: 100,
			Available:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		{
			ID:          uuid.New(),
			OwnerID:     host.ID,
			Title:       "Quiet two-bedroom flat",
			Description: "Residential area, fast wifi, workspace.",
			Location:    "Abuja",
			NightlyRate: 150,
			Available:   true,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
	}
	for _, p := range listings {
		if err := properties.Create(ctx, p); err != nil {
			slog.Error("seed property failed", "title", p.Title, "error", err)
			os.Exit(1)
		}
	}

	slog.Info("seed completed", "users", 2, "properties", len(listings))
}
