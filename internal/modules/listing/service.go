package listing

import (
	"context"
	"errors"
	"time"

	"shortlet/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service struct {
	properties PropertyRepository
}

func NewService(properties PropertyRepository) *Service {
	return &Service{properties: properties}
}

func (s *Service) Create(ctx context.Context, ownerID uuid.UUID, req CreatePropertyRequest) (*domain.Property, error) {
	if req.Title == "" || req.NightlyRate <= 0 {
		return nil, ErrValidation
	}

	now := time.Now().UTC()
	p := &domain.Property{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		NightlyRate: req.NightlyRate,
		Available:   true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.properties.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]domain.Property, error) {
	return s.properties.List(ctx, limit, offset)
}

func (s *Service) ListMine(ctx context.Context, ownerID uuid.UUID) ([]domain.Property, error) {
	return s.properties.ListByOwner(ctx, ownerID)
}

func (s *Service) Update(ctx context.Context, id, requesterID uuid.UUID, req UpdatePropertyRequest) (*domain.Property, error) {
	if err := s.authorizeOwner(ctx, id, requesterID); err != nil {
		return nil, err
	}
	if req.NightlyRate != nil && *req.NightlyRate <= 0 {
		return nil, ErrValidation
	}

	return s.properties.Update(ctx, id, domain.PropertyUpdate{
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		NightlyRate: req.NightlyRate,
	})
}

func (s *Service) Delete(ctx context.Context, id, requesterID uuid.UUID) error {
	if err := s.authorizeOwner(ctx, id, requesterID); err != nil {
		return err
	}
	return s.properties.Delete(ctx, id)
}

func (s *Service) authorizeOwner(ctx context.Context, id, requesterID uuid.UUID) error {
	p, err := s.properties.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if p.OwnerID != requesterID {
		return ErrForbidden
	}
	return nil
}
