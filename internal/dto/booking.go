package dto

// CreateBookingRequest reserves a session against a trainer's calendar.
type CreateBookingRequest struct {
	TrainerID   string `json:"trainer_id" validate:"required"`
	Date        string `json:"date" validate:"required"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	SessionType string `json:"session_type" validate:"omitempty,max=64"`
	Notes       string `json:"notes" validate:"omitempty,max=1000"`
	ClientID    string `json:"-"`
}

// RescheduleBookingRequest moves an existing booking to a new slot.
type RescheduleBookingRequest struct {
	BookingID string `json:"-" validate:"required"`
	Date      string `json:"date" validate:"required"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
	ClientID  string `json:"-"`
}
