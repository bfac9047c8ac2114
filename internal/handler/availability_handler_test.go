package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefit/booking-api/internal/dto"
	"github.com/pulsefit/booking-api/internal/middleware"
	"github.com/pulsefit/booking-api/internal/models"
	"github.com/pulsefit/booking-api/internal/service"
	appErrors "github.com/pulsefit/booking-api/pkg/errors"
)

type availabilityServiceMock struct {
	checkResult *models.AvailabilityResult
	checkErr    error
	slots       []models.AvailableSlot
	slotsFn     func(dto.AvailableSlotsRequest) []models.AvailableSlot
	slotsErr    error
	lastCheck   dto.CheckAvailabilityRequest
	lastSlots   dto.AvailableSlotsRequest
}

func (m *availabilityServiceMock) CheckAvailability(_ context.Context, req dto.CheckAvailabilityRequest) (*models.AvailabilityResult, error) {
	m.lastCheck = req
	if m.checkErr != nil {
		return nil, m.checkErr
	}
	return m.checkResult, nil
}

func (m *availabilityServiceMock) GetAvailableSlots(_ context.Context, req dto.AvailableSlotsRequest) ([]models.AvailableSlot, error) {
	m.lastSlots = req
	if m.slotsErr != nil {
		return nil, m.slotsErr
	}
	if m.slotsFn != nil {
		return m.slotsFn(req), nil
	}
	return m.slots, nil
}

type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: map[string][]byte{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
		}
	}
	return nil
}

func newAvailabilityHandlerTest(mock *availabilityServiceMock) *AvailabilityHandler {
	return NewAvailabilityHandler(mock, service.NewCacheService(nil, nil, 0, nil, false), service.NewMetricsService())
}

func TestAvailabilityHandlerCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &availabilityServiceMock{checkResult: &models.AvailabilityResult{
		Available: false,
		Reasons:   []string{"weekend booking not allowed"},
		Conflicts: []models.Conflict{},
	}}
	handler := newAvailabilityHandlerTest(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(dto.CheckAvailabilityRequest{
		TrainerID: "trainer-1",
		Date:      "2025-03-15",
		StartTime: "09:00",
		EndTime:   "10:00",
	})
	req, _ := http.NewRequest(http.MethodPost, "/availability/check", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "client-1", Role: models.RoleClient})

	handler.Check(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "client-1", mock.lastCheck.ClientID)

	var envelope struct {
		Data models.AvailabilityResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.False(t, envelope.Data.Available)
	assert.Contains(t, envelope.Data.Reasons, "weekend booking not allowed")
}

func TestAvailabilityHandlerCheckInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAvailabilityHandlerTest(&availabilityServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/availability/check", bytes.NewReader([]byte(`not-json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Check(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerSlots(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &availabilityServiceMock{slots: []models.AvailableSlot{
		{Date: "2025-03-10", StartTime: "09:00", EndTime: "10:00", DurationMinutes: 60},
	}}
	handler := newAvailabilityHandlerTest(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/trainers/trainer-1/slots?start_date=2025-03-10&end_date=2025-03-16&duration_minutes=60", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "trainerId", Value: "trainer-1"}}

	handler.Slots(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "trainer-1", mock.lastSlots.TrainerID)
	assert.Equal(t, 60, mock.lastSlots.DurationMinutes)

	var envelope struct {
		Data []models.AvailableSlot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "09:00", envelope.Data[0].StartTime)
}

func slotsRequestAs(t *testing.T, handler *AvailabilityHandler, requesterID string) []models.AvailableSlot {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/trainers/trainer-1/slots?start_date=2025-03-10&end_date=2025-03-16&duration_minutes=60", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "trainerId", Value: "trainer-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: requesterID, Role: models.RoleClient})

	handler.Slots(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data []models.AvailableSlot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope.Data
}

func TestAvailabilityHandlerSlotsCacheIsScopedToRequester(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// The booking-rules policy sees the requester, so a trainer browsing their
	// own calendar can get an empty listing where a client would get slots.
	mock := &availabilityServiceMock{slotsFn: func(req dto.AvailableSlotsRequest) []models.AvailableSlot {
		if req.ClientID == "trainer-1" {
			return nil
		}
		return []models.AvailableSlot{{Date: "2025-03-10", StartTime: "09:00", EndTime: "10:00", DurationMinutes: 60}}
	}}
	cacheSvc := service.NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	handler := NewAvailabilityHandler(mock, cacheSvc, service.NewMetricsService())

	trainerView := slotsRequestAs(t, handler, "trainer-1")
	require.Empty(t, trainerView)

	// The trainer's cached empty listing must not leak to a client.
	clientView := slotsRequestAs(t, handler, "client-9")
	require.NotEmpty(t, clientView)
	assert.Equal(t, "09:00", clientView[0].StartTime)

	// Repeat requests keep serving each requester their own listing.
	assert.Empty(t, slotsRequestAs(t, handler, "trainer-1"))
	assert.NotEmpty(t, slotsRequestAs(t, handler, "client-9"))
}

func TestAvailabilityHandlerSlotsErrorPassthrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &availabilityServiceMock{slotsErr: appErrors.Clone(appErrors.ErrNotTrainer, "")}
	handler := newAvailabilityHandlerTest(mock)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/trainers/client-1/slots?start_date=2025-03-10&end_date=2025-03-16", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "trainerId", Value: "client-1"}}

	handler.Slots(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAvailabilityHandlerSlotsBadDuration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newAvailabilityHandlerTest(&availabilityServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/trainers/trainer-1/slots?start_date=2025-03-10&end_date=2025-03-16&duration_minutes=long", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "trainerId", Value: "trainer-1"}}

	handler.Slots(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
