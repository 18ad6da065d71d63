package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shortlet/internal/domain"
	"shortlet/internal/mail"
	"shortlet/internal/modules/reservation"
)

var (
	// ErrSessionUnknown means a provider event references a checkout session
	// this system has no reservation for. That is state divergence, not a
	// droppable duplicate; callers must surface it.
	ErrSessionUnknown = errors.New("payment event references an unknown checkout session")
)

// Service reconciles asynchronous payment-provider events against
// reservations. Events are delivered at least once; every handler here keys
// off the checkout session id plus a status guard and applies each side
// effect at most once.
type Service struct {
	lifecycle  LifecycleManager
	properties propertyReader
	users      userReader
	mailer     mail.EmailSender
	log        *slog.Logger
}

func NewService(
	lifecycle LifecycleManager,
	properties propertyReader,
	users userReader,
	mailer mail.EmailSender,
	log *slog.Logger,
) *Service {
	return &Service{
		lifecycle:  lifecycle,
		properties: properties,
		users:      users,
		mailer:     mailer,
		log:        log,
	}
}

// HandleCheckoutCompleted applies a completed checkout. Redelivery of the
// same event finds the reservation already paid and does nothing, including
// no second confirmation email.
func (s *Service) HandleCheckoutCompleted(ctx context.Context, sessionID, intentID string) error {
	changed, r, err := s.lifecycle.ConfirmBySession(ctx, sessionID, intentID)
	if err != nil {
		switch {
		case errors.Is(err, reservation.ErrNotFound):
			return fmt.Errorf("%w: session_id=%s", ErrSessionUnknown, sessionID)
		case errors.Is(err, reservation.ErrNotPending):
			// Confirmation arrived after the hold expired or was canceled.
			// The money side diverged from the booking side; make it loud.
			s.log.Error("payment confirmed for a non-pending reservation",
				"session_id", sessionID)
			return fmt.Errorf("confirm session %s: %w", sessionID, err)
		}
		return fmt.Errorf("confirm session %s: %w", sessionID, err)
	}
	if !changed {
		s.log.Info("duplicate checkout confirmation ignored", "session_id", sessionID)
		return nil
	}

	s.notifyConfirmed(ctx, r)
	return nil
}

// HandleCheckoutExpired expires the hold behind a timed-out checkout
// session. An already-paid reservation is left untouched.
func (s *Service) HandleCheckoutExpired(ctx context.Context, sessionID string) error {
	changed, r, err := s.lifecycle.ExpireBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, reservation.ErrNotFound) {
			return fmt.Errorf("%w: session_id=%s", ErrSessionUnknown, sessionID)
		}
		return fmt.Errorf("expire session %s: %w", sessionID, err)
	}
	if !changed {
		s.log.Info("checkout expiry ignored", "session_id", sessionID, "status", r.Status)
		return nil
	}

	if guest, err := s.users.GetByID(ctx, r.UserID); err != nil {
		s.log.Error("payment-expired notice: guest lookup failed", "user_id", r.UserID, "error", err)
	} else if err := s.mailer.SendEmail(ctx, mail.SendEmailParams{
		SendTo:  guest.Email,
		Subject: "Booking expired",
		BodyHTML: fmt.Sprintf(
			"<h2>Your booking from %s to %s has expired. Payment failed.</h2>",
			r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02")),
		Tag: "booking-expired",
	}); err != nil {
		s.log.Error("payment-expired notice: email failed", "reservation_id", r.ID, "error", err)
	}
	return nil
}

func (s *Service) notifyConfirmed(ctx context.Context, r *domain.Reservation) {
	property, err := s.properties.GetByID(ctx, r.PropertyID)
	if err != nil {
		s.log.Error("confirmation notice: property lookup failed", "property_id", r.PropertyID, "error", err)
		return
	}

	stay := fmt.Sprintf("from %s to %s",
		r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"))

	if guest, err := s.users.GetByID(ctx, r.UserID); err != nil {
		s.log.Error("confirmation notice: guest lookup failed", "user_id", r.UserID, "error", err)
	} else if err := s.mailer.SendEmail(ctx, mail.SendEmailParams{
		SendTo:   guest.Email,
		Subject:  "Booking confirmation",
		BodyHTML: fmt.Sprintf("<h2>Your booking for '%s' %s is confirmed.</h2>", property.Title, stay),
		Tag:      "booking-confirmed",
	}); err != nil {
		s.log.Error("confirmation notice: guest email failed", "reservation_id", r.ID, "error", err)
	}

	if host, err := s.users.GetByID(ctx, property.OwnerID); err != nil {
		s.log.Error("confirmation notice: host lookup failed", "user_id", property.OwnerID, "error", err)
	} else if err := s.mailer.SendEmail(ctx, mail.SendEmailParams{
		SendTo:   host.Email,
		Subject:  "Your property was booked",
		BodyHTML: fmt.Sprintf("<h2>Your property '%s' was booked %s.</h2>", property.Title, stay),
		Tag:      "booking-confirmed",
	}); err != nil {
		s.log.Error("confirmation notice: host email failed", "reservation_id", r.ID, "error", err)
	}
}
