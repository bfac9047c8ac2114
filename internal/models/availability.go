package models

import "time"

// WeeklyAvailability captures a trainer's recurring open hours for one weekday.
// Day numbering follows time.Weekday: 0=Sunday through 6=Saturday. Each weekday
// carries at most a morning and an evening sub-window; a sub-window is only
// meaningful when its available flag is set and both bounds are present.
type WeeklyAvailability struct {
	ID               string    `db:"id" json:"id"`
	TrainerID        string    `db:"trainer_id" json:"trainer_id"`
	DayOfWeek        int       `db:"day_of_week" json:"day_of_week"`
	MorningAvailable bool      `db:"morning_available" json:"morning_available"`
	MorningStart     *string   `db:"morning_start" json:"morning_start,omitempty"`
	MorningEnd       *string   `db:"morning_end" json:"morning_end,omitempty"`
	EveningAvailable bool      `db:"evening_available" json:"evening_available"`
	EveningStart     *string   `db:"evening_start" json:"evening_start,omitempty"`
	EveningEnd       *string   `db:"evening_end" json:"evening_end,omitempty"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// BlockedTime is a date-specific exclusion overriding the weekly window.
type BlockedTime struct {
	ID        string    `db:"id" json:"id"`
	TrainerID string    `db:"trainer_id" json:"trainer_id"`
	Date      time.Time `db:"date" json:"date"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	Reason    string    `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TrainerCapacity limits how many sessions a trainer takes and how sessions
// are spaced. Absence of a row means unlimited.
type TrainerCapacity struct {
	ID                          string    `db:"id" json:"id"`
	TrainerID                   string    `db:"trainer_id" json:"trainer_id"`
	MaxDailySessions            int       `db:"max_daily_sessions" json:"max_daily_sessions"`
	MaxWeeklySessions           int       `db:"max_weekly_sessions" json:"max_weekly_sessions"`
	SessionDurationMinutes      int       `db:"session_duration_minutes" json:"session_duration_minutes"`
	BreakBetweenSessionsMinutes int       `db:"break_between_sessions_minutes" json:"break_between_sessions_minutes"`
	CreatedAt                   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                   time.Time `db:"updated_at" json:"updated_at"`
}

// BookingRules captures trainer level booking policy. Absence of a row means
// unrestricted.
type BookingRules struct {
	ID                  string    `db:"id" json:"id"`
	TrainerID           string    `db:"trainer_id" json:"trainer_id"`
	AllowSelfBooking    bool      `db:"allow_self_booking" json:"allow_self_booking"`
	AllowWeekendBooking bool      `db:"allow_weekend_booking" json:"allow_weekend_booking"`
	RequireApproval     bool      `db:"require_approval" json:"require_approval"`
	AdvanceBookingDays  int       `db:"advance_booking_days" json:"advance_booking_days"`
	EarliestBookingTime *string   `db:"earliest_booking_time" json:"earliest_booking_time,omitempty"`
	LatestBookingTime   *string   `db:"latest_booking_time" json:"latest_booking_time,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

// Conflict types attached to availability verdicts.
const (
	ConflictTypeBlockedTime     = "blocked_time"
	ConflictTypeExistingBooking = "existing_booking"
)

// Conflict describes one interval that collides with a candidate slot.
type Conflict struct {
	Type        string `json:"type"`
	BookingID   string `json:"booking_id,omitempty"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Reason      string `json:"reason,omitempty"`
	ClientName  string `json:"client_name,omitempty"`
	SessionType string `json:"session_type,omitempty"`
}

// AvailabilityResult is the structured verdict for a single candidate slot.
type AvailabilityResult struct {
	Available bool       `json:"available"`
	Reasons   []string   `json:"reasons"`
	Conflicts []Conflict `json:"conflicts"`
}

// AvailableSlot is a computed, not yet booked candidate produced by the slot
// enumerator. It is never persisted.
type AvailableSlot struct {
	Date             string    `json:"date"`
	StartTime        string    `json:"start_time"`
	EndTime          string    `json:"end_time"`
	StartsAt         time.Time `json:"starts_at"`
	EndsAt           time.Time `json:"ends_at"`
	Display          string    `json:"display"`
	DurationMinutes  int       `json:"duration_minutes"`
	RequiresApproval bool      `json:"requires_approval"`
}
