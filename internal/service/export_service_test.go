package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefit/booking-api/internal/models"
	appErrors "github.com/pulsefit/booking-api/pkg/errors"
)

type exportBookingsStub struct {
	rows []models.Booking
}

func (s *exportBookingsStub) ListForTrainerRange(_ context.Context, _ string, _, _ time.Time) ([]models.Booking, error) {
	return s.rows, nil
}

type exportBlockedStub struct {
	rows []models.BlockedTime
}

func (s *exportBlockedStub) ListForRange(_ context.Context, _ string, _, _ time.Time) ([]models.BlockedTime, error) {
	return s.rows, nil
}

type exportUsersStub struct {
	user *models.User
}

func (s *exportUsersStub) FindByID(_ context.Context, _ string) (*models.User, error) {
	return s.user, nil
}

func newExportFixture() *ExportService {
	users := &exportUsersStub{user: &models.User{
		ID:       "trainer-1",
		FullName: "Jamie Cole",
		Role:     models.RoleTrainer,
		Active:   true,
	}}
	bookings := &exportBookingsStub{rows: []models.Booking{{
		ID:          "b-1",
		TrainerID:   "trainer-1",
		Date:        time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime:   "09:00:00",
		EndTime:     "10:00:00",
		ClientName:  "Ava Reed",
		SessionType: "personal",
		Status:      models.BookingStatusConfirmed,
	}}}
	blocked := &exportBlockedStub{rows: []models.BlockedTime{{
		ID:        "blk-1",
		TrainerID: "trainer-1",
		Date:      time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		StartTime: "13:00:00",
		EndTime:   "14:00:00",
		Reason:    "dentist",
	}}}
	return NewExportService(users, bookings, blocked, nil, nil, nil)
}

func TestScheduleExportCSV(t *testing.T) {
	svc := newExportFixture()

	result, err := svc.ScheduleExport(context.Background(), "trainer-1", "2025-03-10", "2025-03-16", ExportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "schedule_trainer-1_2025-03-10_2025-03-16.csv", result.Filename)
	assert.Equal(t, "text/csv", result.ContentType)

	content := string(result.Payload)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Date,Start,End,Type,Client,Session,Status,Notes", lines[0])
	assert.Contains(t, content, "2025-03-10,09:00,10:00,booking,Ava Reed,personal,confirmed,")
	assert.Contains(t, content, "2025-03-11,13:00,14:00,blocked,,,,dentist")
}

func TestScheduleExportPDF(t *testing.T) {
	svc := newExportFixture()

	result, err := svc.ScheduleExport(context.Background(), "trainer-1", "2025-03-10", "2025-03-16", ExportFormatPDF)
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Payload), "%PDF"))
}

func TestScheduleExportRejectsNonTrainer(t *testing.T) {
	svc := newExportFixture()
	svc.users = &exportUsersStub{user: &models.User{ID: "client-1", Role: models.RoleClient, Active: true}}

	_, err := svc.ScheduleExport(context.Background(), "client-1", "2025-03-10", "2025-03-16", ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotTrainer.Code, appErrors.FromError(err).Code)
}

func TestScheduleExportValidation(t *testing.T) {
	svc := newExportFixture()

	_, err := svc.ScheduleExport(context.Background(), "trainer-1", "2025-03-16", "2025-03-10", ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidDateRange.Code, appErrors.FromError(err).Code)

	_, err = svc.ScheduleExport(context.Background(), "trainer-1", "2025-03-10", "2025-03-16", ExportFormat("xlsx"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
