package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pulsefit/booking-api/internal/models"
)

// BlockedTimeRepository persists date-specific exclusions that override the
// weekly windows.
type BlockedTimeRepository struct {
	db *sqlx.DB
}

// NewBlockedTimeRepository constructs repository.
func NewBlockedTimeRepository(db *sqlx.DB) *BlockedTimeRepository {
	return &BlockedTimeRepository{db: db}
}

const blockedTimeColumns = `id, trainer_id, date, start_time, end_time, reason, created_at`

// ListForDate returns every blocked interval for the trainer on one date.
func (r *BlockedTimeRepository) ListForDate(ctx context.Context, trainerID string, date time.Time) ([]models.BlockedTime, error) {
	const query = `SELECT ` + blockedTimeColumns + ` FROM blocked_times WHERE trainer_id = $1 AND date = $2 ORDER BY start_time`
	var rows []models.BlockedTime
	if err := r.db.SelectContext(ctx, &rows, query, trainerID, date.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list blocked times: %w", err)
	}
	return rows, nil
}

// ListForRange returns blocked intervals for the trainer between two dates
// inclusive.
func (r *BlockedTimeRepository) ListForRange(ctx context.Context, trainerID string, from, to time.Time) ([]models.BlockedTime, error) {
	const query = `SELECT ` + blockedTimeColumns + ` FROM blocked_times WHERE trainer_id = $1 AND date BETWEEN $2 AND $3 ORDER BY date, start_time`
	var rows []models.BlockedTime
	if err := r.db.SelectContext(ctx, &rows, query, trainerID, from.Format("2006-01-02"), to.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list blocked times for range: %w", err)
	}
	return rows, nil
}

// Create stores a new blocked interval.
func (r *BlockedTimeRepository) Create(ctx context.Context, blocked *models.BlockedTime) error {
	if blocked.ID == "" {
		blocked.ID = uuid.NewString()
	}
	if blocked.CreatedAt.IsZero() {
		blocked.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO blocked_times (id, trainer_id, date, start_time, end_time, reason, created_at) VALUES (:id, :trainer_id, :date, :start_time, :end_time, :reason, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, blocked); err != nil {
		return fmt.Errorf("create blocked time: %w", err)
	}
	return nil
}

// Delete removes a blocked interval owned by the trainer.
func (r *BlockedTimeRepository) Delete(ctx context.Context, trainerID, id string) error {
	const query = `DELETE FROM blocked_times WHERE id = $1 AND trainer_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, trainerID)
	if err != nil {
		return fmt.Errorf("delete blocked time: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("blocked time rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
