package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsefit/booking-api/internal/models"
)

func newTrainerPolicyRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTrainerPolicyRepositoryGetCapacity(t *testing.T) {
	db, mock, cleanup := newTrainerPolicyRepoMock(t)
	defer cleanup()
	repo := NewTrainerPolicyRepository(db)

	rows := sqlmock.NewRows([]string{"id", "trainer_id", "max_daily_sessions", "max_weekly_sessions", "session_duration_minutes", "break_between_sessions_minutes", "created_at", "updated_at"}).
		AddRow("cap-1", "trainer-1", 6, 25, 60, 15, time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM trainer_capacity WHERE trainer_id = \$1 LIMIT 1`).
		WithArgs("trainer-1").
		WillReturnRows(rows)

	capacity, err := repo.GetCapacity(context.Background(), "trainer-1")
	require.NoError(t, err)
	assert.Equal(t, 6, capacity.MaxDailySessions)
	assert.Equal(t, 15, capacity.BreakBetweenSessionsMinutes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerPolicyRepositoryGetCapacityNotConfigured(t *testing.T) {
	db, mock, cleanup := newTrainerPolicyRepoMock(t)
	defer cleanup()
	repo := NewTrainerPolicyRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM trainer_capacity WHERE trainer_id = \$1 LIMIT 1`).
		WithArgs("trainer-1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetCapacity(context.Background(), "trainer-1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerPolicyRepositoryUpsertCapacity(t *testing.T) {
	db, mock, cleanup := newTrainerPolicyRepoMock(t)
	defer cleanup()
	repo := NewTrainerPolicyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO trainer_capacity")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	capacity := &models.TrainerCapacity{
		TrainerID:              "trainer-1",
		MaxDailySessions:       6,
		SessionDurationMinutes: 45,
	}
	require.NoError(t, repo.UpsertCapacity(context.Background(), capacity))
	assert.NotEmpty(t, capacity.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerPolicyRepositoryGetBookingRules(t *testing.T) {
	db, mock, cleanup := newTrainerPolicyRepoMock(t)
	defer cleanup()
	repo := NewTrainerPolicyRepository(db)

	rows := sqlmock.NewRows([]string{"id", "trainer_id", "allow_self_booking", "allow_weekend_booking", "require_approval", "advance_booking_days", "earliest_booking_time", "latest_booking_time", "created_at", "updated_at"}).
		AddRow("rules-1", "trainer-1", false, true, true, 14, "08:00", "20:00", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM booking_rules WHERE trainer_id = \$1 LIMIT 1`).
		WithArgs("trainer-1").
		WillReturnRows(rows)

	rules, err := repo.GetBookingRules(context.Background(), "trainer-1")
	require.NoError(t, err)
	assert.True(t, rules.RequireApproval)
	assert.Equal(t, 14, rules.AdvanceBookingDays)
	require.NotNil(t, rules.EarliestBookingTime)
	assert.Equal(t, "08:00", *rules.EarliestBookingTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrainerPolicyRepositoryUpsertBookingRules(t *testing.T) {
	db, mock, cleanup := newTrainerPolicyRepoMock(t)
	defer cleanup()
	repo := NewTrainerPolicyRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO booking_rules")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	rules := &models.BookingRules{
		TrainerID:           "trainer-1",
		AllowWeekendBooking: true,
		AdvanceBookingDays:  30,
	}
	require.NoError(t, repo.UpsertBookingRules(context.Background(), rules))
	assert.NotEmpty(t, rules.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
