package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"shortlet/internal/domain"
	"shortlet/internal/mail"
	"shortlet/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Service is the reservation lifecycle manager: the only writer of
// reservation state. Handlers, the payment reconciler and the sweeper all
// drive transitions through it.
type Service struct {
	reservations ReservationRepository
	properties   PropertyReader
	users        UserReader
	gateway      PaymentGateway
	mailer       mail.EmailSender
	log          *slog.Logger

	holdTTL  time.Duration
	currency string
}

func NewService(
	reservations ReservationRepository,
	properties PropertyReader,
	users UserReader,
	gateway PaymentGateway,
	mailer mail.EmailSender,
	log *slog.Logger,
	holdTTL time.Duration,
	currency string,
) *Service {
	return &Service{
		reservations: reservations,
		properties:   properties,
		users:        users,
		gateway:      gateway,
		mailer:       mailer,
		log:          log,
		holdTTL:      holdTTL,
		currency:     currency,
	}
}

// Create admits the range, writes the pending hold and opens a checkout
// session. A hold whose session cannot be created is rolled back so no range
// stays blocked without a payment path.
func (s *Service) Create(ctx context.Context, req CreateReservationRequest) (*CreateReservationResult, error) {
	start := domain.ToNaiveUTC(req.StartDate)
	end := domain.ToNaiveUTC(req.EndDate)

	property, err := s.properties.GetByID(ctx, req.PropertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load property: %w", err)
	}

	guest, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	nights := domain.NightsBetween(start, end)
	now := time.Now().UTC()
	expiresAt := now.Add(s.holdTTL)

	r := &domain.Reservation{
		ID:         uuid.New(),
		PropertyID: property.ID,
		UserID:     guest.ID,
		StartDate:  start,
		EndDate:    end,
		Amount:     nights * property.NightlyRate,
		Status:     domain.ReservationPending,
		BookedAt:   now,
		ExpiresAt:  &expiresAt,
	}

	if err := s.reservations.CreateHold(ctx, r); err != nil {
		if errors.Is(err, repository.ErrRangeConflict) || isOverlapConstraint(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create hold: %w", err)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		ReservationID: r.ID,
		Amount:        r.Amount,
		Currency:      s.currency,
		Description:   fmt.Sprintf("Booking: %s", property.Title),
		CustomerEmail: guest.Email,
	})
	if err != nil {
		// No checkout path means a phantom hold; roll it back.
		if derr := s.reservations.DiscardHold(ctx, r.ID); derr != nil {
			s.log.Error("failed to discard hold after checkout failure",
				"reservation_id", r.ID, "error", derr)
		}
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}

	if err := s.reservations.SetPaymentSession(ctx, r.ID, session.ID, session.PaymentIntentID); err != nil {
		// Without the stored session id the confirmation webhook can never
		// find this hold; discard it rather than leave a phantom.
		if derr := s.reservations.DiscardHold(ctx, r.ID); derr != nil {
			s.log.Error("failed to discard hold after session store failure",
				"reservation_id", r.ID, "error", derr)
		}
		return nil, fmt.Errorf("store payment session: %w", err)
	}
	r.CheckoutSessionID = session.ID
	r.PaymentIntentID = session.PaymentIntentID

	return &CreateReservationResult{Reservation: r, CheckoutURL: session.URL}, nil
}

// GetByID returns a reservation to its booker or an admin.
func (s *Service) GetByID(ctx context.Context, id, requesterID uuid.UUID, role string) (*domain.Reservation, error) {
	r, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if r.UserID != requesterID && role != string(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	return r, nil
}

// History returns the requester's reservations, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Reservation, error) {
	return s.reservations.ListByUser(ctx, userID, limit, offset)
}

// PropertyReservations returns all reservations for a property. Only the
// property's owner (or an admin) may see them.
func (s *Service) PropertyReservations(ctx context.Context, propertyID, requesterID uuid.UUID, role string) ([]domain.Reservation, error) {
	property, err := s.properties.GetByID(ctx, propertyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if property.OwnerID != requesterID && role != string(domain.RoleAdmin) {
		return nil, ErrForbidden
	}
	return s.reservations.ListByProperty(ctx, propertyID)
}

// Upcoming returns active reservations starting by the cutoff. Admin view.
func (s *Service) Upcoming(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	return s.reservations.ListStartingBy(ctx, domain.ToNaiveUTC(cutoff))
}

// Availability answers whether the property is free for [start, end).
func (s *Service) Availability(ctx context.Context, propertyID uuid.UUID, start, end time.Time) (bool, error) {
	return s.reservations.IsAvailable(ctx, propertyID, domain.ToNaiveUTC(start), domain.ToNaiveUTC(end))
}

// Cancel releases a pending or paid reservation on the booker's (or an
// admin's) request. Canceling an already-released property is rejected.
func (s *Service) Cancel(ctx context.Context, id, requesterID uuid.UUID, role string) (*domain.Reservation, error) {
	r, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if r.UserID != requesterID && role != string(domain.RoleAdmin) {
		return nil, ErrForbidden
	}

	canceled, err := s.reservations.Cancel(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrPropertyReleased), errors.Is(err, repository.ErrStateConflict):
			return nil, ErrNotBooked
		case errors.Is(err, gorm.ErrRecordNotFound):
			return nil, ErrNotFound
		}
		return nil, err
	}
	return canceled, nil
}

// ConfirmBySession applies a payment confirmation keyed by checkout session.
// Idempotent: redelivery of a confirmation for an already-paid reservation
// reports changed=false and touches nothing.
func (s *Service) ConfirmBySession(ctx context.Context, sessionID, intentID string) (bool, *domain.Reservation, error) {
	changed, r, err := s.reservations.MarkPaidIdempotent(ctx, sessionID, intentID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return false, nil, ErrNotFound
		case errors.Is(err, repository.ErrStateConflict):
			return false, nil, ErrNotPending
		}
		return false, nil, err
	}
	return changed, r, nil
}

// ExpireBySession expires the hold tied to a timed-out checkout session.
// A session that already paid is left alone.
func (s *Service) ExpireBySession(ctx context.Context, sessionID string) (bool, *domain.Reservation, error) {
	r, err := s.reservations.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil, ErrNotFound
		}
		return false, nil, err
	}
	if r.Status != domain.ReservationPending {
		return false, r, nil
	}

	expired, err := s.reservations.Expire(ctx, r.ID)
	if err != nil {
		if errors.Is(err, repository.ErrStateConflict) {
			// Lost the race against the confirmation or the sweeper.
			return false, r, nil
		}
		return false, nil, err
	}
	return true, expired, nil
}

// SweepExpiredHolds expires every pending reservation whose hold deadline
// passed. One failed item never aborts the batch.
func (s *Service) SweepExpiredHolds(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.reservations.ListExpiredHolds(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list expired holds: %w", err)
	}

	expired := 0
	for _, r := range stale {
		if _, err := s.reservations.Expire(ctx, r.ID); err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				continue
			}
			s.log.Error("failed to expire stale hold", "reservation_id", r.ID, "error", err)
			continue
		}
		expired++
	}
	return expired, nil
}

// CompleteEndedStays finalizes every un-finalized stay that concluded by
// now: stamps it completed, releases the property and tells both parties.
// The stamp makes the sweep safe to rerun and restart; a stay is finalized
// and notified at most once. Notification failures are logged and never
// block the release or the rest of the batch.
func (s *Service) CompleteEndedStays(ctx context.Context, now time.Time) (int, error) {
	ended, err := s.reservations.ListEndedBy(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list ended stays: %w", err)
	}

	completed := 0
	for _, r := range ended {
		if err := s.reservations.CompleteStay(ctx, r.ID, now); err != nil {
			if errors.Is(err, repository.ErrStateConflict) {
				// Another sweep finalized it between the listing and here.
				continue
			}
			s.log.Error("failed to finalize ended stay",
				"reservation_id", r.ID, "property_id", r.PropertyID, "error", err)
			continue
		}
		completed++
		s.notifyStayConcluded(ctx, &r)
	}
	return completed, nil
}

func (s *Service) notifyStayConcluded(ctx context.Context, r *domain.Reservation) {
	property, err := s.properties.GetByID(ctx, r.PropertyID)
	if err != nil {
		s.log.Error("stay-concluded notice: property lookup failed", "property_id", r.PropertyID, "error", err)
		return
	}

	if guest, err := s.users.GetByID(ctx, r.UserID); err != nil {
		s.log.Error("stay-concluded notice: guest lookup failed", "user_id", r.UserID, "error", err)
	} else if err := s.mailer.SendEmail(ctx, mail.SendEmailParams{
		SendTo:   guest.Email,
		Subject:  "Your stay has ended",
		BodyHTML: fmt.Sprintf("<h2>Your stay at '%s' has ended.</h2>", property.Title),
		Tag:      "stay-concluded",
	}); err != nil {
		s.log.Error("stay-concluded notice: guest email failed", "reservation_id", r.ID, "error", err)
	}

	if host, err := s.users.GetByID(ctx, property.OwnerID); err != nil {
		s.log.Error("stay-concluded notice: host lookup failed", "user_id", property.OwnerID, "error", err)
	} else if err := s.mailer.SendEmail(ctx, mail.SendEmailParams{
		SendTo:   host.Email,
		Subject:  "A stay at your property has ended",
		BodyHTML: fmt.Sprintf("<h2>The stay at your property '%s' has ended.</h2>", property.Title),
		Tag:      "stay-concluded",
	}); err != nil {
		s.log.Error("stay-concluded notice: host email failed", "reservation_id", r.ID, "error", err)
	}
}

// isOverlapConstraint recognizes the database-level overlap guard, the
// second line of defense behind the locked admission check.
func isOverlapConstraint(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23P01" || pgErr.Code == "23505"
	}
	return false
}
