package repository

import (
	"context"
	"errors"
	"time"

	"shortlet/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrRangeConflict is returned when the requested range overlaps an
	// active reservation for the same property.
	ErrRangeConflict = errors.New("date range conflicts with an active reservation")
	// ErrStateConflict is returned when a transition guard fails, e.g.
	// confirming a reservation that already left the pending state.
	ErrStateConflict = errors.New("reservation is not in a transitionable state")
	// ErrPropertyReleased is returned when a cancel targets a property that
	// is already marked available.
	ErrPropertyReleased = errors.New("property is not currently booked")
)

var activeStatuses = []string{
	string(domain.ReservationPending),
	string(domain.ReservationPaid),
}

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

type reservationModel struct {
	ID                uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	PropertyID        uuid.UUID  `gorm:"column:property_id;type:uuid;index:idx_reservations_property_range,priority:1"`
	UserID            uuid.UUID  `gorm:"column:user_id;type:uuid;index"`
	StartDate         time.Time  `gorm:"column:start_date;index:idx_reservations_property_range,priority:2"`
	EndDate           time.Time  `gorm:"column:end_date;index:idx_reservations_property_range,priority:3;index:idx_reservations_status_end,priority:2"`
	Amount            int64      `gorm:"column:amount"`
	Status            string     `gorm:"column:status;index:idx_reservations_status_end,priority:1;index:idx_reservations_status_expiry,priority:1"`
	BookedAt          time.Time  `gorm:"column:booked_at"`
	ExpiresAt         *time.Time `gorm:"column:expires_at;index:idx_reservations_status_expiry,priority:2"`
	CompletedAt       *time.Time `gorm:"column:completed_at"`
	CheckoutSessionID *string    `gorm:"column:checkout_session_id;index"`
	PaymentIntentID   *string    `gorm:"column:payment_intent_id"`
}

func (reservationModel) TableName() string { return "reservations" }

func toDomainReservation(m reservationModel) *domain.Reservation {
	var sessionID, intentID string
	if m.CheckoutSessionID != nil {
		sessionID = *m.CheckoutSessionID
	}
	if m.PaymentIntentID != nil {
		intentID = *m.PaymentIntentID
	}

	return &domain.Reservation{
		ID:                m.ID,
		PropertyID:        m.PropertyID,
		UserID:            m.UserID,
		StartDate:         m.StartDate,
		EndDate:           m.EndDate,
		Amount:            m.Amount,
		Status:            domain.ReservationStatus(m.Status),
		BookedAt:          m.BookedAt,
		ExpiresAt:         m.ExpiresAt,
		CompletedAt:       m.CompletedAt,
		CheckoutSessionID: sessionID,
		PaymentIntentID:   intentID,
	}
}

func toReservationModel(r *domain.Reservation) reservationModel {
	var sessionID, intentID *string
	if r.CheckoutSessionID != "" {
		v := r.CheckoutSessionID
		sessionID = &v
	}
	if r.PaymentIntentID != "" {
		v := r.PaymentIntentID
		intentID = &v
	}

	return reservationModel{
		ID:                r.ID,
		PropertyID:        r.PropertyID,
		UserID:            r.UserID,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		Amount:            r.Amount,
		Status:            string(r.Status),
		BookedAt:          r.BookedAt,
		ExpiresAt:         r.ExpiresAt,
		CompletedAt:       r.CompletedAt,
		CheckoutSessionID: sessionID,
		PaymentIntentID:   intentID,
	}
}

// IsAvailable reports whether no active reservation overlaps [start, end) for
// the property. Half-open ranges: existing.start < end AND existing.end > start.
func (r *ReservationRepository) IsAvailable(ctx context.Context, propertyID uuid.UUID, start, end time.Time) (bool, error) {
	var cnt int64
	tx := r.db.WithContext(ctx).Model(&reservationModel{}).
		Where("property_id = ? AND status IN ? AND start_date < ? AND end_date > ?",
			propertyID, activeStatuses, end, start).
		Count(&cnt)
	if tx.Error != nil {
		return false, tx.Error
	}
	return cnt == 0, nil
}

// CreateHold performs the admission check and the pending insert as one
// transaction. The property row is locked first so two concurrent holds on
// overlapping ranges serialize and exactly one of them wins.
func (r *ReservationRepository) CreateHold(ctx context.Context, res *domain.Reservation) error {
	m := toReservationModel(res)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p propertyModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", res.PropertyID).First(&p).Error; err != nil {
			return err
		}

		var cnt int64
		if err := tx.Model(&reservationModel{}).
			Where("property_id = ? AND status IN ? AND start_date < ? AND end_date > ?",
				res.PropertyID, activeStatuses, res.EndDate, res.StartDate).
			Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			return ErrRangeConflict
		}

		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		return tx.Model(&propertyModel{}).Where("id = ?", res.PropertyID).Update("available", false).Error
	})
	if err != nil {
		return err
	}
	*res = *toDomainReservation(m)
	return nil
}

// DiscardHold rolls back a hold whose checkout session could not be created.
// The row is removed rather than kept as canceled: the attempt never became
// visible to the booker.
func (r *ReservationRepository) DiscardHold(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m reservationModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND status = ?", id, domain.ReservationPending).First(&m).Error; err != nil {
			return err
		}
		if err := tx.Delete(&reservationModel{}, "id = ?", id).Error; err != nil {
			return err
		}
		return resyncAvailability(tx, m.PropertyID, time.Now().UTC())
	})
}

func (r *ReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	var m reservationModel
	tx := r.db.WithContext(ctx).Where("id = ?", id).First(&m)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainReservation(m), nil
}

func (r *ReservationRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Reservation, error) {
	var m reservationModel
	tx := r.db.WithContext(ctx).Where("checkout_session_id = ?", sessionID).First(&m)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainReservation(m), nil
}

// SetPaymentSession stamps the checkout correlation ids once the provider
// session exists. Amount and range are immutable and never touched here.
func (r *ReservationRepository) SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID, intentID string) error {
	updates := map[string]interface{}{"checkout_session_id": sessionID}
	if intentID != "" {
		updates["payment_intent_id"] = intentID
	}
	tx := r.db.WithContext(ctx).Model(&reservationModel{}).Where("id = ?", id).Updates(updates)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ReservationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Reservation, error) {
	var ms []reservationModel
	tx := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("booked_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&ms)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainReservations(ms), nil
}

func (r *ReservationRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]domain.Reservation, error) {
	var ms []reservationModel
	tx := r.db.WithContext(ctx).
		Where("property_id = ?", propertyID).
		Order("start_date DESC").
		Find(&ms)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainReservations(ms), nil
}

// ListEndedBy returns active reservations whose stay concluded by the cutoff
// and that the completion sweep has not finalized yet. Keying off the
// completed_at stamp instead of a time window means downtime never loses a
// stay; it just waits for the next sweep.
func (r *ReservationRepository) ListEndedBy(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	var ms []reservationModel
	tx := r.db.WithContext(ctx).
		Where("status IN ? AND end_date <= ? AND completed_at IS NULL", activeStatuses, cutoff).
		Order("end_date ASC").
		Find(&ms)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainReservations(ms), nil
}

func (r *ReservationRepository) ListStartingBy(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	var ms []reservationModel
	tx := r.db.WithContext(ctx).
		Where("status IN ? AND start_date <= ?", activeStatuses, cutoff).
		Order("start_date ASC").
		Find(&ms)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainReservations(ms), nil
}

// ListExpiredHolds returns pending reservations whose hold deadline passed
// without a payment confirmation.
func (r *ReservationRepository) ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	var ms []reservationModel
	tx := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", domain.ReservationPending, now).
		Order("expires_at ASC").
		Find(&ms)
	if tx.Error != nil {
		return nil, tx.Error
	}
	return toDomainReservations(ms), nil
}

// MarkPaidIdempotent transitions pending -> paid keyed by the checkout
// session id. A second delivery of the same event finds the row already paid
// and reports changed=false without touching anything.
func (r *ReservationRepository) MarkPaidIdempotent(ctx context.Context, sessionID, intentID string) (bool, *domain.Reservation, error) {
	var (
		changed bool
		m       reservationModel
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("checkout_session_id = ?", sessionID).First(&m).Error; err != nil {
			return err
		}
		if m.Status == string(domain.ReservationPaid) {
			changed = false
			return nil
		}
		if m.Status != string(domain.ReservationPending) {
			return ErrStateConflict
		}

		updates := map[string]interface{}{
			"status":     domain.ReservationPaid,
			"expires_at": nil,
		}
		if intentID != "" {
			updates["payment_intent_id"] = intentID
		}
		if err := tx.Model(&reservationModel{}).Where("id = ?", m.ID).Updates(updates).Error; err != nil {
			return err
		}

		m.Status = string(domain.ReservationPaid)
		m.ExpiresAt = nil
		if intentID != "" {
			m.PaymentIntentID = &intentID
		}
		changed = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return changed, toDomainReservation(m), nil
}

// Cancel releases a pending or paid reservation on user/admin request. The
// cancel of an already-released property is rejected as a double release.
func (r *ReservationRepository) Cancel(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	var m reservationModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&m).Error; err != nil {
			return err
		}
		if m.Status != string(domain.ReservationPending) && m.Status != string(domain.ReservationPaid) {
			return ErrStateConflict
		}

		var p propertyModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", m.PropertyID).First(&p).Error; err != nil {
			return err
		}
		if p.Available {
			return ErrPropertyReleased
		}

		if err := tx.Model(&reservationModel{}).Where("id = ?", m.ID).
			Updates(map[string]interface{}{
				"status":     domain.ReservationCanceled,
				"expires_at": nil,
			}).Error; err != nil {
			return err
		}
		m.Status = string(domain.ReservationCanceled)
		m.ExpiresAt = nil
		return resyncAvailability(tx, m.PropertyID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return toDomainReservation(m), nil
}

// Expire moves a still-pending reservation to expired and releases the
// property it held. Paid reservations are left alone.
func (r *ReservationRepository) Expire(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	var m reservationModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&m).Error; err != nil {
			return err
		}
		if m.Status != string(domain.ReservationPending) {
			return ErrStateConflict
		}

		if err := tx.Model(&reservationModel{}).Where("id = ?", m.ID).
			Updates(map[string]interface{}{
				"status":     domain.ReservationExpired,
				"expires_at": nil,
			}).Error; err != nil {
			return err
		}
		m.Status = string(domain.ReservationExpired)
		m.ExpiresAt = nil
		return resyncAvailability(tx, m.PropertyID, time.Now().UTC())
	})
	if err != nil {
		return nil, err
	}
	return toDomainReservation(m), nil
}

// CompleteStay stamps a reservation as finalized and recomputes the
// property's availability from aggregate occupancy. A second attempt finds
// the stamp already set and reports ErrStateConflict so the caller sends no
// second notification.
func (r *ReservationRepository) CompleteStay(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m reservationModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).First(&m).Error; err != nil {
			return err
		}
		if m.CompletedAt != nil {
			return ErrStateConflict
		}

		if err := tx.Model(&reservationModel{}).Where("id = ?", m.ID).
			Update("completed_at", now).Error; err != nil {
			return err
		}
		return resyncAvailability(tx, m.PropertyID, now)
	})
}

// resyncAvailability derives available from aggregate occupancy: false iff an
// active reservation covers now. A single release therefore never unmasks a
// property another stay still occupies.
func resyncAvailability(tx *gorm.DB, propertyID uuid.UUID, now time.Time) error {
	var cnt int64
	if err := tx.Model(&reservationModel{}).
		Where("property_id = ? AND status IN ? AND start_date <= ? AND end_date > ?",
			propertyID, activeStatuses, now, now).
		Count(&cnt).Error; err != nil {
		return err
	}
	return tx.Model(&propertyModel{}).Where("id = ?", propertyID).Update("available", cnt == 0).Error
}

func toDomainReservations(ms []reservationModel) []domain.Reservation {
	out := make([]domain.Reservation, 0, len(ms))
	for _, m := range ms {
		out = append(out, *toDomainReservation(m))
	}
	return out
}
