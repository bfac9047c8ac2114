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

// AvailabilityRepository persists trainers' recurring weekly windows.
type AvailabilityRepository struct {
	db *sqlx.DB
}

// NewAvailabilityRepository constructs repository.
func NewAvailabilityRepository(db *sqlx.DB) *AvailabilityRepository {
	return &AvailabilityRepository{db: db}
}

const weeklyAvailabilityColumns = `id, trainer_id, day_of_week, morning_available, morning_start, morning_end, evening_available, evening_start, evening_end, created_at, updated_at`

// GetForWeekday returns the trainer's window for one weekday. sql.ErrNoRows
// means no window is configured for that day.
func (r *AvailabilityRepository) GetForWeekday(ctx context.Context, trainerID string, weekday int) (*models.WeeklyAvailability, error) {
	const query = `SELECT ` + weeklyAvailabilityColumns + ` FROM weekly_availability WHERE trainer_id = $1 AND day_of_week = $2 LIMIT 1`
	var window models.WeeklyAvailability
	if err := r.db.GetContext(ctx, &window, query, trainerID, weekday); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get weekly availability: %w", err)
	}
	return &window, nil
}

// ListByTrainer returns every configured weekday window for a trainer.
func (r *AvailabilityRepository) ListByTrainer(ctx context.Context, trainerID string) ([]models.WeeklyAvailability, error) {
	const query = `SELECT ` + weeklyAvailabilityColumns + ` FROM weekly_availability WHERE trainer_id = $1 ORDER BY day_of_week`
	var windows []models.WeeklyAvailability
	if err := r.db.SelectContext(ctx, &windows, query, trainerID); err != nil {
		return nil, fmt.Errorf("list weekly availability: %w", err)
	}
	return windows, nil
}

// Upsert replaces the trainer's window for the weekday carried by the payload.
func (r *AvailabilityRepository) Upsert(ctx context.Context, window *models.WeeklyAvailability) error {
	if window.ID == "" {
		window.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if window.CreatedAt.IsZero() {
		window.CreatedAt = now
	}
	window.UpdatedAt = now

	const query = `
INSERT INTO weekly_availability (id, trainer_id, day_of_week, morning_available, morning_start, morning_end, evening_available, evening_start, evening_end, created_at, updated_at)
VALUES (:id, :trainer_id, :day_of_week, :morning_available, :morning_start, :morning_end, :evening_available, :evening_start, :evening_end, :created_at, :updated_at)
ON CONFLICT (trainer_id, day_of_week) DO UPDATE SET
	morning_available = EXCLUDED.morning_available,
	morning_start = EXCLUDED.morning_start,
	morning_end = EXCLUDED.morning_end,
	evening_available = EXCLUDED.evening_available,
	evening_start = EXCLUDED.evening_start,
	evening_end = EXCLUDED.evening_end,
	updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, window); err != nil {
		return fmt.Errorf("upsert weekly availability: %w", err)
	}
	return nil
}

// Delete removes the trainer's window for one weekday.
func (r *AvailabilityRepository) Delete(ctx context.Context, trainerID string, weekday int) error {
	const query = `DELETE FROM weekly_availability WHERE trainer_id = $1 AND day_of_week = $2`
	result, err := r.db.ExecContext(ctx, query, trainerID, weekday)
	if err != nil {
		return fmt.Errorf("delete weekly availability: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("weekly availability rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
