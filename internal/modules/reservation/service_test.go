package reservation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"shortlet/internal/domain"
	"shortlet/internal/mail"
	"shortlet/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// Mock repositories
type MockReservationRepository struct {
	mock.Mock
}

func (m *MockReservationRepository) CreateHold(ctx context.Context, r *domain.Reservation) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReservationRepository) DiscardHold(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockReservationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) GetBySessionID(ctx context.Context, sessionID string) (*domain.Reservation, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) SetPaymentSession(ctx context.Context, id uuid.UUID, sessionID, intentID string) error {
	args := m.Called(ctx, id, sessionID, intentID)
	return args.Error(0)
}

func (m *MockReservationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Reservation, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListByProperty(ctx context.Context, propertyID uuid.UUID) ([]domain.Reservation, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListStartingBy(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListEndedBy(ctx context.Context, cutoff time.Time) ([]domain.Reservation, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) ListExpiredHolds(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) IsAvailable(ctx context.Context, propertyID uuid.UUID, start, end time.Time) (bool, error) {
	args := m.Called(ctx, propertyID, start, end)
	return args.Bool(0), args.Error(1)
}

func (m *MockReservationRepository) MarkPaidIdempotent(ctx context.Context, sessionID, intentID string) (bool, *domain.Reservation, error) {
	args := m.Called(ctx, sessionID, intentID)
	if args.Get(1) == nil {
		return args.Bool(0), nil, args.Error(2)
	}
	return args.Bool(0), args.Get(1).(*domain.Reservation), args.Error(2)
}

func (m *MockReservationRepository) Cancel(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) Expire(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepository) CompleteStay(ctx context.Context, id uuid.UUID, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

type MockPropertyReader struct {
	mock.Mock
}

func (m *MockPropertyReader) GetByID(ctx context.Context, id uuid.UUID) (*domain.Property, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Property), args.Error(1)
}

type MockUserReader struct {
	mock.Mock
}

func (m *MockUserReader) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*CheckoutSession), args.Error(1)
}

type MockEmailSender struct {
	mock.Mock
}

func (m *MockEmailSender) SendEmail(ctx context.Context, params mail.SendEmailParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func newTestService(repo *MockReservationRepository, props *MockPropertyReader, users *MockUserReader, gw *MockPaymentGateway, mailer *MockEmailSender) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, props, users, gw, mailer, log, 15*time.Minute, "usd")
}

func TestService_Create_Success(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	propertyID := uuid.New()
	userID := uuid.New()

	mockProps.On("GetByID", mock.Anything, propertyID).Return(&domain.Property{
		ID:          propertyID,
		OwnerID:     uuid.New(),
		Title:       "Sea-view flat",
		NightlyRate: 100,
		Available:   true,
	}, nil)
	mockUsers.On("GetByID", mock.Anything, userID).Return(&domain.User{
		ID:    userID,
		Email: "guest@example.com",
		Role:  domain.RoleGuest,
	}, nil)
	mockRepo.On("CreateHold", mock.Anything, mock.Anything).Return(nil)
	mockGateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(&CheckoutSession{
		ID:              "cs_test_123",
		PaymentIntentID: "pi_test_123",
		URL:             "https://checkout.example.com/cs_test_123",
	}, nil)
	mockRepo.On("SetPaymentSession", mock.Anything, mock.Anything, "cs_test_123", "pi_test_123").Return(nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 3)
	result, err := service.Create(context.Background(), CreateReservationRequest{
		PropertyID: propertyID,
		StartDate:  start,
		EndDate:    end,
		UserID:     userID,
	})

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, int64(300), result.Reservation.Amount)
	assert.Equal(t, domain.ReservationPending, result.Reservation.Status)
	assert.Equal(t, "cs_test_123", result.Reservation.CheckoutSessionID)
	assert.Equal(t, "https://checkout.example.com/cs_test_123", result.CheckoutURL)
	if assert.NotNil(t, result.Reservation.ExpiresAt) {
		assert.Equal(t, result.Reservation.BookedAt.Add(15*time.Minute), *result.Reservation.ExpiresAt)
	}
	mockRepo.AssertExpectations(t)
}

// A stay shorter than one day is still billed a single night.
func TestService_Create_MinimumOneNight(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	propertyID := uuid.New()
	userID := uuid.New()

	mockProps.On("GetByID", mock.Anything, propertyID).Return(&domain.Property{
		ID:          propertyID,
		NightlyRate: 250,
	}, nil)
	mockUsers.On("GetByID", mock.Anything, userID).Return(&domain.User{ID: userID, Email: "guest@example.com"}, nil)
	mockRepo.On("CreateHold", mock.Anything, mock.Anything).Return(nil)
	mockGateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(&CheckoutSession{ID: "cs_1", URL: "https://pay"}, nil)
	mockRepo.On("SetPaymentSession", mock.Anything, mock.Anything, "cs_1", "").Return(nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	day := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	result, err := service.Create(context.Background(), CreateReservationRequest{
		PropertyID: propertyID,
		StartDate:  day,
		EndDate:    day,
		UserID:     userID,
	})

	assert.NoError(t, err)
	assert.Equal(t, int64(250), result.Reservation.Amount)
}

func TestService_Create_RangeConflict(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	propertyID := uuid.New()
	userID := uuid.New()

	mockProps.On("GetByID", mock.Anything, propertyID).Return(&domain.Property{ID: propertyID, NightlyRate: 100}, nil)
	mockUsers.On("GetByID", mock.Anything, userID).Return(&domain.User{ID: userID, Email: "guest@example.com"}, nil)
	mockRepo.On("CreateHold", mock.Anything, mock.Anything).Return(repository.ErrRangeConflict)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	_, err := service.Create(context.Background(), CreateReservationRequest{
		PropertyID: propertyID,
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, 2),
		UserID:     userID,
	})

	assert.ErrorIs(t, err, ErrConflict)
	mockGateway.AssertNotCalled(t, "CreateCheckoutSession", mock.Anything, mock.Anything)
}

// If the checkout session cannot be opened the hold must not stay behind
// blocking the range.
func TestService_Create_CheckoutFailureRollsBackHold(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	propertyID := uuid.New()
	userID := uuid.New()

	mockProps.On("GetByID", mock.Anything, propertyID).Return(&domain.Property{ID: propertyID, NightlyRate: 100}, nil)
	mockUsers.On("GetByID", mock.Anything, userID).Return(&domain.User{ID: userID, Email: "guest@example.com"}, nil)
	mockRepo.On("CreateHold", mock.Anything, mock.Anything).Return(nil)
	mockGateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(nil, errors.New("stripe: api unreachable"))
	mockRepo.On("DiscardHold", mock.Anything, mock.Anything).Return(nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	_, err := service.Create(context.Background(), CreateReservationRequest{
		PropertyID: propertyID,
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, 2),
		UserID:     userID,
	})

	assert.ErrorIs(t, err, ErrCheckoutFailed)
	mockRepo.AssertCalled(t, "DiscardHold", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "SetPaymentSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// Failing to store the session id leaves the hold unconfirmable; it must be
// discarded just like a failed checkout, not left for the sweep.
func TestService_Create_SessionStoreFailureRollsBackHold(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	propertyID := uuid.New()
	userID := uuid.New()

	mockProps.On("GetByID", mock.Anything, propertyID).Return(&domain.Property{ID: propertyID, NightlyRate: 100}, nil)
	mockUsers.On("GetByID", mock.Anything, userID).Return(&domain.User{ID: userID, Email: "guest@example.com"}, nil)
	mockRepo.On("CreateHold", mock.Anything, mock.Anything).Return(nil)
	mockGateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(&CheckoutSession{ID: "cs_orphan", URL: "https://pay"}, nil)
	mockRepo.On("SetPaymentSession", mock.Anything, mock.Anything, "cs_orphan", "").Return(errors.New("connection reset"))
	mockRepo.On("DiscardHold", mock.Anything, mock.Anything).Return(nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	_, err := service.Create(context.Background(), CreateReservationRequest{
		PropertyID: propertyID,
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, 2),
		UserID:     userID,
	})

	assert.Error(t, err)
	mockRepo.AssertCalled(t, "DiscardHold", mock.Anything, mock.Anything)
}

func TestService_Create_PropertyNotFound(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	propertyID := uuid.New()
	mockProps.On("GetByID", mock.Anything, propertyID).Return(nil, gorm.ErrRecordNotFound)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	start := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	_, err := service.Create(context.Background(), CreateReservationRequest{
		PropertyID: propertyID,
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, 1),
		UserID:     uuid.New(),
	})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_Cancel_ReleasedProperty(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	reservationID := uuid.New()
	userID := uuid.New()

	mockRepo.On("GetByID", mock.Anything, reservationID).Return(&domain.Reservation{
		ID:     reservationID,
		UserID: userID,
		Status: domain.ReservationPaid,
	}, nil)
	mockRepo.On("Cancel", mock.Anything, reservationID).Return(nil, repository.ErrPropertyReleased)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	_, err := service.Cancel(context.Background(), reservationID, userID, string(domain.RoleGuest))

	assert.ErrorIs(t, err, ErrNotBooked)
}

func TestService_Cancel_Forbidden(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	reservationID := uuid.New()
	booker := uuid.New()
	stranger := uuid.New()

	mockRepo.On("GetByID", mock.Anything, reservationID).Return(&domain.Reservation{
		ID:     reservationID,
		UserID: booker,
		Status: domain.ReservationPaid,
	}, nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	_, err := service.Cancel(context.Background(), reservationID, stranger, string(domain.RoleGuest))

	assert.ErrorIs(t, err, ErrForbidden)
	mockRepo.AssertNotCalled(t, "Cancel", mock.Anything, reservationID)
}

func TestService_Cancel_AdminMayCancelAnyBooking(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	reservationID := uuid.New()
	booker := uuid.New()
	admin := uuid.New()

	mockRepo.On("GetByID", mock.Anything, reservationID).Return(&domain.Reservation{
		ID:     reservationID,
		UserID: booker,
		Status: domain.ReservationPaid,
	}, nil)
	mockRepo.On("Cancel", mock.Anything, reservationID).Return(&domain.Reservation{
		ID:     reservationID,
		UserID: booker,
		Status: domain.ReservationCanceled,
	}, nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	canceled, err := service.Cancel(context.Background(), reservationID, admin, string(domain.RoleAdmin))

	assert.NoError(t, err)
	assert.Equal(t, domain.ReservationCanceled, canceled.Status)
}

func TestService_ConfirmBySession_DuplicateDelivery(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	paid := &domain.Reservation{
		ID:                uuid.New(),
		Status:            domain.ReservationPaid,
		CheckoutSessionID: "cs_done",
	}
	mockRepo.On("MarkPaidIdempotent", mock.Anything, "cs_done", "pi_done").Return(false, paid, nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	changed, r, err := service.ConfirmBySession(context.Background(), "cs_done", "pi_done")

	assert.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.ReservationPaid, r.Status)
}

func TestService_ConfirmBySession_NotPending(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	mockRepo.On("MarkPaidIdempotent", mock.Anything, "cs_canceled", "pi_x").Return(false, nil, repository.ErrStateConflict)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	_, _, err := service.ConfirmBySession(context.Background(), "cs_canceled", "pi_x")

	assert.ErrorIs(t, err, ErrNotPending)
}

// An expiry event for a session that already paid must change nothing.
func TestService_ExpireBySession_AlreadyPaidIsNoOp(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	paid := &domain.Reservation{
		ID:                uuid.New(),
		Status:            domain.ReservationPaid,
		CheckoutSessionID: "cs_paid",
	}
	mockRepo.On("GetBySessionID", mock.Anything, "cs_paid").Return(paid, nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	changed, r, err := service.ExpireBySession(context.Background(), "cs_paid")

	assert.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, domain.ReservationPaid, r.Status)
	mockRepo.AssertNotCalled(t, "Expire", mock.Anything, mock.Anything)
}

func TestService_ExpireBySession_PendingHold(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	pending := &domain.Reservation{
		ID:                uuid.New(),
		Status:            domain.ReservationPending,
		CheckoutSessionID: "cs_pending",
	}
	mockRepo.On("GetBySessionID", mock.Anything, "cs_pending").Return(pending, nil)
	mockRepo.On("Expire", mock.Anything, pending.ID).Return(&domain.Reservation{
		ID:     pending.ID,
		Status: domain.ReservationExpired,
	}, nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	changed, r, err := service.ExpireBySession(context.Background(), "cs_pending")

	assert.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, domain.ReservationExpired, r.Status)
}

// One hold losing a race against its own confirmation must not abort the
// rest of the sweep.
func TestService_SweepExpiredHolds_SkipsRacedHold(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	a := domain.Reservation{ID: uuid.New(), Status: domain.ReservationPending}
	b := domain.Reservation{ID: uuid.New(), Status: domain.ReservationPending}
	c := domain.Reservation{ID: uuid.New(), Status: domain.ReservationPending}

	mockRepo.On("ListExpiredHolds", mock.Anything, now).Return([]domain.Reservation{a, b, c}, nil)
	mockRepo.On("Expire", mock.Anything, a.ID).Return(&a, nil)
	// b was paid between the listing and the expiry attempt
	mockRepo.On("Expire", mock.Anything, b.ID).Return(nil, repository.ErrStateConflict)
	mockRepo.On("Expire", mock.Anything, c.ID).Return(&c, nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	expired, err := service.SweepExpiredHolds(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 2, expired)
	mockRepo.AssertExpectations(t)
}

func TestService_CompleteEndedStays_NotifiesBothParties(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	ownerID := uuid.New()
	guestID := uuid.New()
	propertyID := uuid.New()
	ended := domain.Reservation{
		ID:         uuid.New(),
		PropertyID: propertyID,
		UserID:     guestID,
		Status:     domain.ReservationPaid,
	}

	mockRepo.On("ListEndedBy", mock.Anything, now).Return([]domain.Reservation{ended}, nil)
	mockRepo.On("CompleteStay", mock.Anything, ended.ID, now).Return(nil)
	mockProps.On("GetByID", mock.Anything, propertyID).Return(&domain.Property{
		ID:      propertyID,
		OwnerID: ownerID,
		Title:   "Sea-view flat",
	}, nil)
	mockUsers.On("GetByID", mock.Anything, guestID).Return(&domain.User{ID: guestID, Email: "guest@example.com"}, nil)
	mockUsers.On("GetByID", mock.Anything, ownerID).Return(&domain.User{ID: ownerID, Email: "host@example.com"}, nil)
	mockMailer.On("SendEmail", mock.Anything, mock.MatchedBy(func(p mail.SendEmailParams) bool {
		return p.SendTo == "guest@example.com"
	})).Return(nil)
	mockMailer.On("SendEmail", mock.Anything, mock.MatchedBy(func(p mail.SendEmailParams) bool {
		return p.SendTo == "host@example.com"
	})).Return(nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	completed, err := service.CompleteEndedStays(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 1, completed)
	mockMailer.AssertNumberOfCalls(t, "SendEmail", 2)
}

// A stay another sweep already finalized is skipped silently; a failed
// finalization keeps the stay out of the count but does not stop the batch.
// Neither case sends mail for the skipped stay.
func TestService_CompleteEndedStays_SkipsFinalizedAndFailed(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	raced := domain.Reservation{ID: uuid.New(), PropertyID: uuid.New(), UserID: uuid.New(), Status: domain.ReservationPaid}
	broken := domain.Reservation{ID: uuid.New(), PropertyID: uuid.New(), UserID: uuid.New(), Status: domain.ReservationPaid}
	healthy := domain.Reservation{ID: uuid.New(), PropertyID: uuid.New(), UserID: uuid.New(), Status: domain.ReservationPaid}

	mockRepo.On("ListEndedBy", mock.Anything, now).Return([]domain.Reservation{raced, broken, healthy}, nil)
	mockRepo.On("CompleteStay", mock.Anything, raced.ID, now).Return(repository.ErrStateConflict)
	mockRepo.On("CompleteStay", mock.Anything, broken.ID, now).Return(errors.New("deadlock detected"))
	mockRepo.On("CompleteStay", mock.Anything, healthy.ID, now).Return(nil)

	ownerID := uuid.New()
	mockProps.On("GetByID", mock.Anything, healthy.PropertyID).Return(&domain.Property{
		ID:      healthy.PropertyID,
		OwnerID: ownerID,
		Title:   "Quiet flat",
	}, nil)
	mockUsers.On("GetByID", mock.Anything, healthy.UserID).Return(&domain.User{ID: healthy.UserID, Email: "guest@example.com"}, nil)
	mockUsers.On("GetByID", mock.Anything, ownerID).Return(&domain.User{ID: ownerID, Email: "host@example.com"}, nil)
	mockMailer.On("SendEmail", mock.Anything, mock.Anything).Return(nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	completed, err := service.CompleteEndedStays(context.Background(), now)

	assert.NoError(t, err)
	assert.Equal(t, 1, completed)
	mockMailer.AssertNumberOfCalls(t, "SendEmail", 2)
}

func TestService_GetByID_ForbiddenForStranger(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	reservationID := uuid.New()
	booker := uuid.New()

	mockRepo.On("GetByID", mock.Anything, reservationID).Return(&domain.Reservation{
		ID:     reservationID,
		UserID: booker,
	}, nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	_, err := service.GetByID(context.Background(), reservationID, uuid.New(), string(domain.RoleGuest))

	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_PropertyReservations_OwnerOnly(t *testing.T) {
	mockRepo := new(MockReservationRepository)
	mockProps := new(MockPropertyReader)
	mockUsers := new(MockUserReader)
	mockGateway := new(MockPaymentGateway)
	mockMailer := new(MockEmailSender)

	propertyID := uuid.New()
	ownerID := uuid.New()

	mockProps.On("GetByID", mock.Anything, propertyID).Return(&domain.Property{
		ID:      propertyID,
		OwnerID: ownerID,
	}, nil)
	mockRepo.On("ListByProperty", mock.Anything, propertyID).Return([]domain.Reservation{}, nil)

	service := newTestService(mockRepo, mockProps, mockUsers, mockGateway, mockMailer)

	_, err := service.PropertyReservations(context.Background(), propertyID, uuid.New(), string(domain.RoleGuest))
	assert.ErrorIs(t, err, ErrForbidden)

	list, err := service.PropertyReservations(context.Background(), propertyID, ownerID, string(domain.RoleHost))
	assert.NoError(t, err)
	assert.Empty(t, list)
}
