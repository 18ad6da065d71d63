package repository

import (
	"context"
	"time"

	"shortlet/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PropertyRepository struct {
	db *gorm.DB
}

func NewPropertyRepository(db *gorm.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

type propertyModel struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OwnerID     uuid.UUID `gorm:"column:owner_id;type:uuid;index"`
	Title       string    `gorm:"column:title"`
	Description string    `gorm:"column:description"`
	Location    string    `gorm:"column:location"`
	NightlyRate int64     `gorm:"column:nightly_rate"`
	Available   bool      `gorm:"column:available"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (propertyModel) TableName() string { return "properties" }

func toDomainProperty(m propertyModel) *domain.Property {
	return &domain.Property{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Title:       m.Title,
		Description: m.Description,
		Location:    m.Location,
		NightlyRate: m.NightlyRate,
		Available:   m.Available,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toPropertyModel(p *domain.Property) propertyModel {
	return propertyModel{
		ID:          p.ID,
		OwnerID:     p.OwnerID,
		Title:       p.Title,
		Description: p.Description,
		Location:    p.Location,
		NightlyRate: p.NightlyRate,
		Available:   p.Available,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (r *PropertyRepository) Create(ctx context.Context, p *domain.Property) error {
	m := toPropertyModel(p)
	tx := r.db.WithContext(ctx).Create(&m)
	if tx.Error != nil {
		return tx.Error
	}
	*p = *toDomainProperty(m)
	return nil
}

func (r *PropertyRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	var m propertyModel
	tx := r.db.WithContext(ctx).Where("id = ?", id).First(&m)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainProperty(m), nil
}

func (r *PropertyRepository) List(ctx context.Context, limit, offset int) ([]domain.Property, error) {
	var ms []propertyModel
	tx := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&ms)
	if tx.Error != nil {
		return nil, tx.Error
	}

	out := make([]domain.Property, 0, len(ms))
	for _, m := range ms {
		out = append(out, *toDomainProperty(m))
	}
	return out, nil
}

func (r *PropertyRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Property, error) {
	var ms []propertyModel
	tx := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&ms)
	if tx.Error != nil {
		return nil, tx.Error
	}

	out := make([]domain.Property, 0, len(ms))
	for _, m := range ms {
		out = append(out, *toDomainProperty(m))
	}
	return out, nil
}

// Update persists the mutable listing fields only. Availability is owned by
// the reservation core and has its own write path.
func (r *PropertyRepository) Update(ctx context.Context, id uuid.UUID, upd domain.PropertyUpdate) (*domain.Property, error) {
	updates := map[string]interface{}{}
	if upd.Title != nil {
		updates["title"] = *upd.Title
	}
	if upd.Description != nil {
		updates["description"] = *upd.Description
	}
	if upd.Location != nil {
		updates["location"] = *upd.Location
	}
	if upd.NightlyRate != nil {
		updates["nightly_rate"] = *upd.NightlyRate
	}
	if len(updates) > 0 {
		tx := r.db.WithContext(ctx).Model(&propertyModel{}).Where("id = ?", id).Updates(updates)
		if tx.Error != nil {
			return nil, tx.Error
		}
	}
	return r.GetByID(ctx, id)
}

func (r *PropertyRepository) SetAvailable(ctx context.Context, id uuid.UUID, available bool) error {
	tx := r.db.WithContext(ctx).Model(&propertyModel{}).Where("id = ?", id).Update("available", available)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *PropertyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&propertyModel{}).Error
}
