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

func newAvailabilityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func weeklyAvailabilityRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "trainer_id", "day_of_week", "morning_available", "morning_start", "morning_end", "evening_available", "evening_start", "evening_end", "created_at", "updated_at"})
}

func TestAvailabilityRepositoryGetForWeekday(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := weeklyAvailabilityRows().
		AddRow("wa-1", "trainer-1", 1, true, "09:00", "12:00", true, "17:00", "21:00", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM weekly_availability WHERE trainer_id = \$1 AND day_of_week = \$2 LIMIT 1`).
		WithArgs("trainer-1", 1).
		WillReturnRows(rows)

	window, err := repo.GetForWeekday(context.Background(), "trainer-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, window.DayOfWeek)
	assert.True(t, window.MorningAvailable)
	require.NotNil(t, window.MorningStart)
	assert.Equal(t, "09:00", *window.MorningStart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryGetForWeekdayNotConfigured(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM weekly_availability WHERE trainer_id = \$1 AND day_of_week = \$2 LIMIT 1`).
		WithArgs("trainer-1", 0).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetForWeekday(context.Background(), "trainer-1", 0)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryListByTrainer(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	rows := weeklyAvailabilityRows().
		AddRow("wa-1", "trainer-1", 1, true, "09:00", "12:00", false, nil, nil, time.Now(), time.Now()).
		AddRow("wa-2", "trainer-1", 3, true, "08:00", "11:00", true, "18:00", "20:00", time.Now(), time.Now())
	mock.ExpectQuery(`SELECT .+ FROM weekly_availability WHERE trainer_id = \$1 ORDER BY day_of_week`).
		WithArgs("trainer-1").
		WillReturnRows(rows)

	windows, err := repo.ListByTrainer(context.Background(), "trainer-1")
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, 3, windows[1].DayOfWeek)
	assert.Nil(t, windows[0].EveningStart)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryUpsert(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO weekly_availability")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	morningStart, morningEnd := "09:00", "12:00"
	window := &models.WeeklyAvailability{
		TrainerID:        "trainer-1",
		DayOfWeek:        1,
		MorningAvailable: true,
		MorningStart:     &morningStart,
		MorningEnd:       &morningEnd,
	}
	require.NoError(t, repo.Upsert(context.Background(), window))
	assert.NotEmpty(t, window.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAvailabilityRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newAvailabilityRepoMock(t)
	defer cleanup()
	repo := NewAvailabilityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM weekly_availability WHERE trainer_id = $1 AND day_of_week = $2")).
		WithArgs("trainer-1", 5).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "trainer-1", 5)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
