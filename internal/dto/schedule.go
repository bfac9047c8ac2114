package dto

// UpsertWeeklyAvailabilityRequest replaces a trainer's window for one weekday.
// Day numbering follows time.Weekday: 0=Sunday through 6=Saturday.
type UpsertWeeklyAvailabilityRequest struct {
	DayOfWeek        int     `json:"day_of_week" validate:"min=0,max=6"`
	MorningAvailable bool    `json:"morning_available"`
	MorningStart     *string `json:"morning_start" validate:"omitempty"`
	MorningEnd       *string `json:"morning_end" validate:"omitempty"`
	EveningAvailable bool    `json:"evening_available"`
	EveningStart     *string `json:"evening_start" validate:"omitempty"`
	EveningEnd       *string `json:"evening_end" validate:"omitempty"`
}

// CreateBlockedTimeRequest records a date-specific exclusion.
type CreateBlockedTimeRequest struct {
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	Reason    string `json:"reason" validate:"omitempty,max=255"`
}

// UpsertCapacityRequest stores session limits and spacing for a trainer.
type UpsertCapacityRequest struct {
	MaxDailySessions            int `json:"max_daily_sessions" validate:"min=0"`
	MaxWeeklySessions           int `json:"max_weekly_sessions" validate:"min=0"`
	SessionDurationMinutes      int `json:"session_duration_minutes" validate:"omitempty,min=15,max=480"`
	BreakBetweenSessionsMinutes int `json:"break_between_sessions_minutes" validate:"min=0,max=240"`
}

// UpsertBookingRulesRequest stores trainer level booking policy.
type UpsertBookingRulesRequest struct {
	AllowSelfBooking    bool    `json:"allow_self_booking"`
	AllowWeekendBooking bool    `json:"allow_weekend_booking"`
	RequireApproval     bool    `json:"require_approval"`
	AdvanceBookingDays  int     `json:"advance_booking_days" validate:"min=0,max=365"`
	EarliestBookingTime *string `json:"earliest_booking_time" validate:"omitempty"`
	LatestBookingTime   *string `json:"latest_booking_time" validate:"omitempty"`
}
