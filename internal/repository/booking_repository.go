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

// BookingRepository persists client sessions booked against trainer calendars.
// Overlap detection runs in SQL against HH:MM:SS time strings, which compare
// correctly as text.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository constructs repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

func (r *BookingRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// BeginTx opens a transaction for callers that re-validate before inserting.
func (r *BookingRepository) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	return tx, nil
}

// FindOverlapping returns non-cancelled bookings colliding with the candidate
// interval. Either bound of an existing booking falling inside the candidate,
// or the existing booking covering it entirely, counts as a collision.
// excludeID removes one booking from consideration, so editing a booking never
// conflicts with itself.
func (r *BookingRepository) FindOverlapping(ctx context.Context, trainerID string, date time.Time, startTime, endTime, excludeID string) ([]models.Booking, error) {
	const query = `
SELECT b.id, b.trainer_id, b.client_id, COALESCE(u.full_name, '') AS client_name, b.session_type, b.date, b.start_time, b.end_time, b.status, b.notes, b.created_at, b.updated_at
FROM bookings b
LEFT JOIN users u ON u.id = b.client_id
WHERE b.trainer_id = $1
  AND b.date = $2
  AND b.status <> 'cancelled'
  AND ($5 = '' OR b.id <> $5)
  AND (
	(b.start_time >= $3 AND b.start_time < $4)
	OR (b.end_time > $3 AND b.end_time <= $4)
	OR (b.start_time <= $3 AND b.end_time >= $4)
  )
ORDER BY b.start_time`
	var rows []models.Booking
	if err := r.db.SelectContext(ctx, &rows, query, trainerID, date.Format("2006-01-02"), startTime, endTime, excludeID); err != nil {
		return nil, fmt.Errorf("find overlapping bookings: %w", err)
	}
	return rows, nil
}

// CountForDate counts the trainer's non-cancelled bookings on one date.
func (r *BookingRepository) CountForDate(ctx context.Context, trainerID string, date time.Time, excludeID string) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE trainer_id = $1 AND date = $2 AND status <> 'cancelled' AND ($3 = '' OR id <> $3)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, trainerID, date.Format("2006-01-02"), excludeID); err != nil {
		return 0, fmt.Errorf("count bookings for date: %w", err)
	}
	return count, nil
}

// CountForRange counts the trainer's non-cancelled bookings between two dates
// inclusive.
func (r *BookingRepository) CountForRange(ctx context.Context, trainerID string, from, to time.Time, excludeID string) (int, error) {
	const query = `SELECT COUNT(*) FROM bookings WHERE trainer_id = $1 AND date BETWEEN $2 AND $3 AND status <> 'cancelled' AND ($4 = '' OR id <> $4)`
	var count int
	if err := r.db.GetContext(ctx, &count, query, trainerID, from.Format("2006-01-02"), to.Format("2006-01-02"), excludeID); err != nil {
		return 0, fmt.Errorf("count bookings for range: %w", err)
	}
	return count, nil
}

// Create inserts a booking, optionally inside a caller-owned transaction.
func (r *BookingRepository) Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.Status == "" {
		booking.Status = models.BookingStatusPending
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	const query = `INSERT INTO bookings (id, trainer_id, client_id, session_type, date, start_time, end_time, status, notes, created_at, updated_at) VALUES (:id, :trainer_id, :client_id, :session_type, :date, :start_time, :end_time, :status, :notes, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, booking); err != nil {
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

// FindByID loads a booking together with its client's display name.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	const query = `
SELECT b.id, b.trainer_id, b.client_id, COALESCE(u.full_name, '') AS client_name, b.session_type, b.date, b.start_time, b.end_time, b.status, b.notes, b.created_at, b.updated_at
FROM bookings b
LEFT JOIN users u ON u.id = b.client_id
WHERE b.id = $1 LIMIT 1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find booking by id: %w", err)
	}
	return &booking, nil
}

// UpdateStatus transitions a booking to a new lifecycle state.
func (r *BookingRepository) UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error {
	const query = `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("booking status rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Reschedule moves a booking to a new date and interval, optionally inside a
// caller-owned transaction.
func (r *BookingRepository) Reschedule(ctx context.Context, exec sqlx.ExtContext, id string, date time.Time, startTime, endTime string) error {
	const query = `UPDATE bookings SET date = $2, start_time = $3, end_time = $4, updated_at = $5 WHERE id = $1`
	result, err := r.exec(exec).ExecContext(ctx, query, id, date.Format("2006-01-02"), startTime, endTime, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reschedule booking: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reschedule rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListForTrainerRange returns the trainer's bookings between two dates
// inclusive, ordered chronologically. Cancelled bookings are included so
// exports show the full history.
func (r *BookingRepository) ListForTrainerRange(ctx context.Context, trainerID string, from, to time.Time) ([]models.Booking, error) {
	const query = `
SELECT b.id, b.trainer_id, b.client_id, COALESCE(u.full_name, '') AS client_name, b.session_type, b.date, b.start_time, b.end_time, b.status, b.notes, b.created_at, b.updated_at
FROM bookings b
LEFT JOIN users u ON u.id = b.client_id
WHERE b.trainer_id = $1 AND b.date BETWEEN $2 AND $3
ORDER BY b.date, b.start_time`
	var rows []models.Booking
	if err := r.db.SelectContext(ctx, &rows, query, trainerID, from.Format("2006-01-02"), to.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list bookings for trainer: %w", err)
	}
	return rows, nil
}

// ListForClient returns the client's bookings ordered most recent first.
func (r *BookingRepository) ListForClient(ctx context.Context, clientID string, limit int) ([]models.Booking, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT b.id, b.trainer_id, b.client_id, COALESCE(u.full_name, '') AS client_name, b.session_type, b.date, b.start_time, b.end_time, b.status, b.notes, b.created_at, b.updated_at
FROM bookings b
LEFT JOIN users u ON u.id = b.client_id
WHERE b.client_id = $1
ORDER BY b.date DESC, b.start_time DESC LIMIT %d`, limit)
	var rows []models.Booking
	if err := r.db.SelectContext(ctx, &rows, query, clientID); err != nil {
		return nil, fmt.Errorf("list bookings for client: %w", err)
	}
	return rows, nil
}
