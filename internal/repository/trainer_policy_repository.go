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

// TrainerPolicyRepository persists per-trainer capacity limits and booking
// rules. Both tables hold at most one row per trainer; absence means
// unrestricted.
type TrainerPolicyRepository struct {
	db *sqlx.DB
}

// NewTrainerPolicyRepository constructs repository.
func NewTrainerPolicyRepository(db *sqlx.DB) *TrainerPolicyRepository {
	return &TrainerPolicyRepository{db: db}
}

// GetCapacity returns the trainer's capacity config, or sql.ErrNoRows when
// none is set.
func (r *TrainerPolicyRepository) GetCapacity(ctx context.Context, trainerID string) (*models.TrainerCapacity, error) {
	const query = `SELECT id, trainer_id, max_daily_sessions, max_weekly_sessions, session_duration_minutes, break_between_sessions_minutes, created_at, updated_at FROM trainer_capacity WHERE trainer_id = $1 LIMIT 1`
	var capacity models.TrainerCapacity
	if err := r.db.GetContext(ctx, &capacity, query, trainerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get trainer capacity: %w", err)
	}
	return &capacity, nil
}

// UpsertCapacity stores or replaces the trainer's capacity config.
func (r *TrainerPolicyRepository) UpsertCapacity(ctx context.Context, capacity *models.TrainerCapacity) error {
	if capacity.ID == "" {
		capacity.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if capacity.CreatedAt.IsZero() {
		capacity.CreatedAt = now
	}
	capacity.UpdatedAt = now

	const query = `
INSERT INTO trainer_capacity (id, trainer_id, max_daily_sessions, max_weekly_sessions, session_duration_minutes, break_between_sessions_minutes, created_at, updated_at)
VALUES (:id, :trainer_id, :max_daily_sessions, :max_weekly_sessions, :session_duration_minutes, :break_between_sessions_minutes, :created_at, :updated_at)
ON CONFLICT (trainer_id) DO UPDATE SET
	max_daily_sessions = EXCLUDED.max_daily_sessions,
	max_weekly_sessions = EXCLUDED.max_weekly_sessions,
	session_duration_minutes = EXCLUDED.session_duration_minutes,
	break_between_sessions_minutes = EXCLUDED.break_between_sessions_minutes,
	updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, capacity); err != nil {
		return fmt.Errorf("upsert trainer capacity: %w", err)
	}
	return nil
}

// GetBookingRules returns the trainer's booking rules, or sql.ErrNoRows when
// none are set.
func (r *TrainerPolicyRepository) GetBookingRules(ctx context.Context, trainerID string) (*models.BookingRules, error) {
	const query = `SELECT id, trainer_id, allow_self_booking, allow_weekend_booking, require_approval, advance_booking_days, earliest_booking_time, latest_booking_time, created_at, updated_at FROM booking_rules WHERE trainer_id = $1 LIMIT 1`
	var rules models.BookingRules
	if err := r.db.GetContext(ctx, &rules, query, trainerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get booking rules: %w", err)
	}
	return &rules, nil
}

// UpsertBookingRules stores or replaces the trainer's booking rules.
func (r *TrainerPolicyRepository) UpsertBookingRules(ctx context.Context, rules *models.BookingRules) error {
	if rules.ID == "" {
		rules.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rules.CreatedAt.IsZero() {
		rules.CreatedAt = now
	}
	rules.UpdatedAt = now

	const query = `
INSERT INTO booking_rules (id, trainer_id, allow_self_booking, allow_weekend_booking, require_approval, advance_booking_days, earliest_booking_time, latest_booking_time, created_at, updated_at)
VALUES (:id, :trainer_id, :allow_self_booking, :allow_weekend_booking, :require_approval, :advance_booking_days, :earliest_booking_time, :latest_booking_time, :created_at, :updated_at)
ON CONFLICT (trainer_id) DO UPDATE SET
	allow_self_booking = EXCLUDED.allow_self_booking,
	allow_weekend_booking = EXCLUDED.allow_weekend_booking,
	require_approval = EXCLUDED.require_approval,
	advance_booking_days = EXCLUDED.advance_booking_days,
	earliest_booking_time = EXCLUDED.earliest_booking_time,
	latest_booking_time = EXCLUDED.latest_booking_time,
	updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, rules); err != nil {
		return fmt.Errorf("upsert booking rules: %w", err)
	}
	return nil
}
