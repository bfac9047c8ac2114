package models

import "time"

// BookingStatus enumerates the lifecycle states of a booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// Booking represents a client session reserved against a trainer's calendar.
// StartTime/EndTime are local times of day in HH:MM:SS form; Date is the
// session day at midnight. Cancelled bookings are terminal and never block
// other candidates.
type Booking struct {
	ID          string        `db:"id" json:"id"`
	TrainerID   string        `db:"trainer_id" json:"trainer_id"`
	ClientID    string        `db:"client_id" json:"client_id"`
	ClientName  string        `db:"client_name" json:"client_name,omitempty"`
	SessionType string        `db:"session_type" json:"session_type"`
	Date        time.Time     `db:"date" json:"date"`
	StartTime   string        `db:"start_time" json:"start_time"`
	EndTime     string        `db:"end_time" json:"end_time"`
	Status      BookingStatus `db:"status" json:"status"`
	Notes       string        `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// IsBlocking reports whether the booking occupies calendar time.
func (b *Booking) IsBlocking() bool {
	return b != nil && b.Status != BookingStatusCancelled
}
