package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefit/booking-api/internal/dto"
	"github.com/pulsefit/booking-api/internal/middleware"
	"github.com/pulsefit/booking-api/internal/models"
	"github.com/pulsefit/booking-api/internal/service"
	appErrors "github.com/pulsefit/booking-api/pkg/errors"
)

type bookingServiceMock struct {
	booking        *models.Booking
	bookings       []models.Booking
	err            error
	lastCreate     dto.CreateBookingRequest
	lastReschedule dto.RescheduleBookingRequest
	lastBookingID  string
	lastActorID    string
	lastActorRole  models.UserRole
}

func (m *bookingServiceMock) Create(_ context.Context, req dto.CreateBookingRequest) (*models.Booking, error) {
	m.lastCreate = req
	if m.err != nil {
		return nil, m.err
	}
	return m.booking, nil
}

func (m *bookingServiceMock) GetByID(_ context.Context, bookingID, actorID string, actorRole models.UserRole) (*models.Booking, error) {
	m.lastBookingID, m.lastActorID, m.lastActorRole = bookingID, actorID, actorRole
	if m.err != nil {
		return nil, m.err
	}
	return m.booking, nil
}

func (m *bookingServiceMock) ListForClient(_ context.Context, clientID string, limit int) ([]models.Booking, error) {
	m.lastActorID = clientID
	if m.err != nil {
		return nil, m.err
	}
	return m.bookings, nil
}

func (m *bookingServiceMock) Cancel(_ context.Context, bookingID, actorID string, actorRole models.UserRole) (*models.Booking, error) {
	m.lastBookingID, m.lastActorID, m.lastActorRole = bookingID, actorID, actorRole
	if m.err != nil {
		return nil, m.err
	}
	return m.booking, nil
}

func (m *bookingServiceMock) Confirm(_ context.Context, bookingID, actorID string, actorRole models.UserRole) (*models.Booking, error) {
	m.lastBookingID, m.lastActorID, m.lastActorRole = bookingID, actorID, actorRole
	if m.err != nil {
		return nil, m.err
	}
	return m.booking, nil
}

func (m *bookingServiceMock) Reschedule(_ context.Context, req dto.RescheduleBookingRequest) (*models.Booking, error) {
	m.lastReschedule = req
	if m.err != nil {
		return nil, m.err
	}
	return m.booking, nil
}

func newBookingTestContext(t *testing.T, method, target string, payload interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, target, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestBookingHandlerCreate(t *testing.T) {
	mock := &bookingServiceMock{booking: &models.Booking{
		ID:        "b-1",
		TrainerID: "trainer-1",
		ClientID:  "client-1",
		Status:    models.BookingStatusConfirmed,
	}}
	handler := NewBookingHandler(mock, service.NewMetricsService())

	c, w := newBookingTestContext(t, http.MethodPost, "/bookings", dto.CreateBookingRequest{
		TrainerID:   "trainer-1",
		Date:        "2025-03-10",
		StartTime:   "09:00",
		EndTime:     "10:00",
		SessionType: "personal",
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "client-1", mock.lastCreate.ClientID)

	var envelope struct {
		Data models.Booking `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "b-1", envelope.Data.ID)
	assert.Equal(t, models.BookingStatusConfirmed, envelope.Data.Status)
}

func TestBookingHandlerCreateUnauthenticated(t *testing.T) {
	handler := NewBookingHandler(&bookingServiceMock{}, service.NewMetricsService())

	c, w := newBookingTestContext(t, http.MethodPost, "/bookings", dto.CreateBookingRequest{})
	handler.Create(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBookingHandlerCreateSlotTaken(t *testing.T) {
	mock := &bookingServiceMock{err: appErrors.Clone(appErrors.ErrSlotUnavailable, "time slot conflicts with an existing booking")}
	handler := NewBookingHandler(mock, service.NewMetricsService())

	c, w := newBookingTestContext(t, http.MethodPost, "/bookings", dto.CreateBookingRequest{
		TrainerID: "trainer-1",
		Date:      "2025-03-10",
		StartTime: "09:00",
		EndTime:   "10:00",
	})
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})

	handler.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "SLOT_UNAVAILABLE", envelope.Error.Code)
}

func TestBookingHandlerGet(t *testing.T) {
	mock := &bookingServiceMock{booking: &models.Booking{ID: "b-9", ClientID: "client-1"}}
	handler := NewBookingHandler(mock, service.NewMetricsService())

	c, w := newBookingTestContext(t, http.MethodGet, "/bookings/b-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "b-9"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b-9", mock.lastBookingID)
	assert.Equal(t, "client-1", mock.lastActorID)
	assert.Equal(t, models.RoleClient, mock.lastActorRole)
}

func TestBookingHandlerListBadLimit(t *testing.T) {
	handler := NewBookingHandler(&bookingServiceMock{}, service.NewMetricsService())

	c, w := newBookingTestContext(t, http.MethodGet, "/bookings?limit=abc", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})

	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBookingHandlerCancelForbidden(t *testing.T) {
	mock := &bookingServiceMock{err: appErrors.Clone(appErrors.ErrForbidden, "only the booking participants may cancel")}
	handler := NewBookingHandler(mock, service.NewMetricsService())

	c, w := newBookingTestContext(t, http.MethodPost, "/bookings/b-1/cancel", nil)
	c.Params = gin.Params{{Key: "id", Value: "b-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "stranger", Role: models.RoleClient})

	handler.Cancel(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestBookingHandlerReschedule(t *testing.T) {
	mock := &bookingServiceMock{booking: &models.Booking{ID: "b-1", Status: models.BookingStatusConfirmed}}
	handler := NewBookingHandler(mock, service.NewMetricsService())

	c, w := newBookingTestContext(t, http.MethodPost, "/bookings/b-1/reschedule", dto.RescheduleBookingRequest{
		Date:      "2025-03-12",
		StartTime: "14:00",
		EndTime:   "15:00",
	})
	c.Params = gin.Params{{Key: "id", Value: "b-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})

	handler.Reschedule(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "b-1", mock.lastReschedule.BookingID)
	assert.Equal(t, "client-1", mock.lastReschedule.ClientID)
}
