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

func newBlockedTimeRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBlockedTimeRepositoryListForDate(t *testing.T) {
	db, mock, cleanup := newBlockedTimeRepoMock(t)
	defer cleanup()
	repo := NewBlockedTimeRepository(db)

	date := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "trainer_id", "date", "start_time", "end_time", "reason", "created_at"}).
		AddRow("blk-1", "trainer-1", date, "09:30", "10:30", "physio appointment", time.Now())
	mock.ExpectQuery(`SELECT .+ FROM blocked_times WHERE trainer_id = \$1 AND date = \$2 ORDER BY start_time`).
		WithArgs("trainer-1", "2025-03-10").
		WillReturnRows(rows)

	list, err := repo.ListForDate(context.Background(), "trainer-1", date)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "physio appointment", list[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockedTimeRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newBlockedTimeRepoMock(t)
	defer cleanup()
	repo := NewBlockedTimeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO blocked_times")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	blocked := &models.BlockedTime{
		TrainerID: "trainer-1",
		Date:      time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "09:30",
		EndTime:   "10:30",
		Reason:    "physio appointment",
	}
	require.NoError(t, repo.Create(context.Background(), blocked))
	assert.NotEmpty(t, blocked.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlockedTimeRepositoryDeleteNotFound(t *testing.T) {
	db, mock, cleanup := newBlockedTimeRepoMock(t)
	defer cleanup()
	repo := NewBlockedTimeRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM blocked_times WHERE id = $1 AND trainer_id = $2")).
		WithArgs("blk-404", "trainer-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "trainer-1", "blk-404")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
