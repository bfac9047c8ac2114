package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pulsefit/booking-api/internal/dto"
	"github.com/pulsefit/booking-api/internal/models"
	appErrors "github.com/pulsefit/booking-api/pkg/errors"
)

type checkerStub struct {
	result  *models.AvailabilityResult
	lastReq dto.CheckAvailabilityRequest
}

func (c *checkerStub) CheckAvailability(_ context.Context, req dto.CheckAvailabilityRequest) (*models.AvailabilityResult, error) {
	c.lastReq = req
	cp := *c.result
	return &cp, nil
}

type bookingStoreStub struct {
	db       *sqlx.DB
	bookings map[string]*models.Booking
	created  *models.Booking
	statuses map[string]models.BookingStatus
}

func (s *bookingStoreStub) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, nil)
}

func (s *bookingStoreStub) Create(_ context.Context, _ sqlx.ExtContext, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = "b-new"
	}
	cp := *booking
	s.created = &cp
	s.bookings[booking.ID] = &cp
	return nil
}

func (s *bookingStoreStub) FindByID(_ context.Context, id string) (*models.Booking, error) {
	booking, ok := s.bookings[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *booking
	return &cp, nil
}

func (s *bookingStoreStub) UpdateStatus(_ context.Context, id string, status models.BookingStatus) error {
	booking, ok := s.bookings[id]
	if !ok {
		return sql.ErrNoRows
	}
	booking.Status = status
	s.statuses[id] = status
	return nil
}

func (s *bookingStoreStub) Reschedule(_ context.Context, _ sqlx.ExtContext, id string, date time.Time, startTime, endTime string) error {
	booking, ok := s.bookings[id]
	if !ok {
		return sql.ErrNoRows
	}
	booking.Date = date
	booking.StartTime = startTime
	booking.EndTime = endTime
	return nil
}

func (s *bookingStoreStub) ListForClient(_ context.Context, clientID string, _ int) ([]models.Booking, error) {
	var list []models.Booking
	for _, booking := range s.bookings {
		if booking.ClientID == clientID {
			list = append(list, *booking)
		}
	}
	return list, nil
}

func (s *bookingStoreStub) ListForTrainerRange(_ context.Context, trainerID string, _, _ time.Time) ([]models.Booking, error) {
	var list []models.Booking
	for _, booking := range s.bookings {
		if booking.TrainerID == trainerID {
			list = append(list, *booking)
		}
	}
	return list, nil
}

type invalidatorStub struct {
	trainers []string
}

func (s *invalidatorStub) InvalidateTrainer(_ context.Context, trainerID string) {
	s.trainers = append(s.trainers, trainerID)
}

type bookingFixture struct {
	store    *bookingStoreStub
	checker  *checkerStub
	policies *policyStoreMock
	cache    *invalidatorStub
	mock     sqlmock.Sqlmock
	cleanup  func()
}

func newBookingFixture(t *testing.T) *bookingFixture {
	rawDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	db := sqlx.NewDb(rawDB, "sqlmock")
	return &bookingFixture{
		store: &bookingStoreStub{
			db:       db,
			bookings: map[string]*models.Booking{},
			statuses: map[string]models.BookingStatus{},
		},
		checker:  &checkerStub{result: &models.AvailabilityResult{Available: true, Reasons: []string{}, Conflicts: []models.Conflict{}}},
		policies: &policyStoreMock{},
		cache:    &invalidatorStub{},
		mock:     mock,
		cleanup:  func() { rawDB.Close() },
	}
}

func (f *bookingFixture) service() *BookingService {
	return NewBookingService(f.store, f.checker, f.policies, f.cache, nil, zap.NewNop())
}

func createReq() dto.CreateBookingRequest {
	return dto.CreateBookingRequest{
		TrainerID:   "trainer-1",
		ClientID:    "client-1",
		Date:        "2025-03-10",
		StartTime:   "09:00",
		EndTime:     "10:00",
		SessionType: "strength",
	}
}

func TestBookingServiceCreate(t *testing.T) {
	fixture := newBookingFixture(t)
	defer fixture.cleanup()
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()
	svc := fixture.service()

	booking, err := svc.Create(context.Background(), createReq())
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	assert.Equal(t, "09:00:00", booking.StartTime)
	assert.Equal(t, "10:00:00", booking.EndTime)
	assert.Equal(t, []string{"trainer-1"}, fixture.cache.trainers)
	assert.Equal(t, "client-1", fixture.checker.lastReq.ClientID)
	assert.NoError(t, fixture.mock.ExpectationsWereMet())
}

func TestBookingServiceCreatePendingWhenApprovalRequired(t *testing.T) {
	fixture := newBookingFixture(t)
	defer fixture.cleanup()
	fixture.policies.rules = &models.BookingRules{TrainerID: "trainer-1", RequireApproval: true, AllowWeekendBooking: true, AllowSelfBooking: true}
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()
	svc := fixture.service()

	booking, err := svc.Create(context.Background(), createReq())
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
}

func TestBookingServiceCreateSlotUnavailable(t *testing.T) {
	fixture := newBookingFixture(t)
	defer fixture.cleanup()
	fixture.checker.result = &models.AvailabilityResult{
		Available: false,
		Reasons:   []string{"outside trainer's available hours"},
	}
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectRollback()
	svc := fixture.service()

	_, err := svc.Create(context.Background(), createReq())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSlotUnavailable.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "outside trainer's available hours")
	assert.Nil(t, fixture.store.created)
}

func TestBookingServiceCreateInvalidInterval(t *testing.T) {
	fixture := newBookingFixture(t)
	defer fixture.cleanup()
	svc := fixture.service()

	req := createReq()
	req.StartTime = "10:00"
	req.EndTime = "09:00"
	_, err := svc.Create(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceCancelAuthorization(t *testing.T) {
	fixture := newBookingFixture(t)
	defer fixture.cleanup()
	fixture.store.bookings["b-1"] = &models.Booking{
		ID:        "b-1",
		TrainerID: "trainer-1",
		ClientID:  "client-1",
		Status:    models.BookingStatusConfirmed,
	}
	svc := fixture.service()

	_, err := svc.Cancel(context.Background(), "b-1", "stranger", models.RoleClient)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	booking, err := svc.Cancel(context.Background(), "b-1", "client-1", models.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusCancelled, booking.Status)
	assert.Contains(t, fixture.cache.trainers, "trainer-1")

	_, err = svc.Cancel(context.Background(), "b-1", "client-1", models.RoleClient)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceConfirmTrainerOnly(t *testing.T) {
	fixture := newBookingFixture(t)
	defer fixture.cleanup()
	fixture.store.bookings["b-1"] = &models.Booking{
		ID:        "b-1",
		TrainerID: "trainer-1",
		ClientID:  "client-1",
		Status:    models.BookingStatusPending,
	}
	svc := fixture.service()

	_, err := svc.Confirm(context.Background(), "b-1", "client-1", models.RoleClient)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	booking, err := svc.Confirm(context.Background(), "b-1", "trainer-1", models.RoleTrainer)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
}

func TestBookingServiceRescheduleExcludesItself(t *testing.T) {
	fixture := newBookingFixture(t)
	defer fixture.cleanup()
	fixture.store.bookings["b-1"] = &models.Booking{
		ID:        "b-1",
		TrainerID: "trainer-1",
		ClientID:  "client-1",
		Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00:00",
		EndTime:   "10:00:00",
		Status:    models.BookingStatusConfirmed,
	}
	fixture.mock.ExpectBegin()
	fixture.mock.ExpectCommit()
	svc := fixture.service()

	booking, err := svc.Reschedule(context.Background(), dto.RescheduleBookingRequest{
		BookingID: "b-1",
		Date:      "2025-03-11",
		StartTime: "14:00",
		EndTime:   "15:00",
		ClientID:  "client-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "b-1", fixture.checker.lastReq.ExcludeBookingID)
	assert.Equal(t, "14:00:00", booking.StartTime)
	assert.Equal(t, "2025-03-11", booking.Date.Format("2006-01-02"))
}

func TestBookingServiceRescheduleCancelled(t *testing.T) {
	fixture := newBookingFixture(t)
	defer fixture.cleanup()
	fixture.store.bookings["b-1"] = &models.Booking{
		ID:        "b-1",
		TrainerID: "trainer-1",
		ClientID:  "client-1",
		Status:    models.BookingStatusCancelled,
	}
	svc := fixture.service()

	_, err := svc.Reschedule(context.Background(), dto.RescheduleBookingRequest{
		BookingID: "b-1",
		Date:      "2025-03-11",
		StartTime: "14:00",
		EndTime:   "15:00",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBookingServiceGetByIDRestricted(t *testing.T) {
	fixture := newBookingFixture(t)
	defer fixture.cleanup()
	fixture.store.bookings["b-1"] = &models.Booking{
		ID:        "b-1",
		TrainerID: "trainer-1",
		ClientID:  "client-1",
		Status:    models.BookingStatusConfirmed,
	}
	svc := fixture.service()

	_, err := svc.GetByID(context.Background(), "b-1", "other-client", models.RoleClient)
	require.Error(t, err)

	booking, err := svc.GetByID(context.Background(), "b-1", "trainer-1", models.RoleTrainer)
	require.NoError(t, err)
	assert.Equal(t, "b-1", booking.ID)
}
