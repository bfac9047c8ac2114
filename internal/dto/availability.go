package dto

// CheckAvailabilityRequest asks whether one candidate slot is bookable.
// Times accept HH:MM or HH:MM:SS; full datetimes are tolerated and reduced to
// their time component.
type CheckAvailabilityRequest struct {
	TrainerID        string `json:"trainer_id" validate:"required"`
	Date             string `json:"date" validate:"required"`
	StartTime        string `json:"start_time" validate:"required"`
	EndTime          string `json:"end_time" validate:"required"`
	ExcludeBookingID string `json:"exclude_booking_id,omitempty"`
	ClientID         string `json:"-"`
}

// AvailableSlotsRequest asks for every bookable slot in an inclusive date range.
type AvailableSlotsRequest struct {
	TrainerID       string `json:"trainer_id" validate:"required"`
	StartDate       string `json:"start_date" validate:"required"`
	EndDate         string `json:"end_date" validate:"required"`
	DurationMinutes int    `json:"duration_minutes" validate:"omitempty,min=15,max=480"`
	ClientID        string `json:"-"`
}
