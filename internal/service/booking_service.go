package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/pulsefit/booking-api/internal/dto"
	"github.com/pulsefit/booking-api/internal/models"
	appErrors "github.com/pulsefit/booking-api/pkg/errors"
)

type bookingStore interface {
	BeginTx(ctx context.Context) (*sqlx.Tx, error)
	Create(ctx context.Context, exec sqlx.ExtContext, booking *models.Booking) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	UpdateStatus(ctx context.Context, id string, status models.BookingStatus) error
	Reschedule(ctx context.Context, exec sqlx.ExtContext, id string, date time.Time, startTime, endTime string) error
	ListForClient(ctx context.Context, clientID string, limit int) ([]models.Booking, error)
	ListForTrainerRange(ctx context.Context, trainerID string, from, to time.Time) ([]models.Booking, error)
}

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, req dto.CheckAvailabilityRequest) (*models.AvailabilityResult, error)
}

type slotCacheInvalidator interface {
	InvalidateTrainer(ctx context.Context, trainerID string)
}

// BookingService drives the booking lifecycle: create, cancel, reschedule.
// Every mutation re-validates availability inside the write transaction so a
// verdict obtained moments earlier cannot be stale at commit time, and the
// bookings table's exclusion constraint backstops concurrent writers that
// validated simultaneously.
type BookingService struct {
	bookings  bookingStore
	checker   availabilityChecker
	policies  trainerPolicyReader
	slotCache slotCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(
	bookings bookingStore,
	checker availabilityChecker,
	policies trainerPolicyReader,
	slotCache slotCacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *BookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BookingService{
		bookings:  bookings,
		checker:   checker,
		policies:  policies,
		slotCache: slotCache,
		validator: validate,
		logger:    logger,
	}
}

// Create books a session for the client after the slot passes a final
// availability check inside the insert transaction.
func (s *BookingService) Create(ctx context.Context, req dto.CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	start, err := ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, err
	}
	if start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	status := models.BookingStatusConfirmed
	if rules, err := s.policies.GetBookingRules(ctx, req.TrainerID); err == nil && rules.RequireApproval {
		status = models.BookingStatusPending
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking rules")
	}

	tx, err := s.bookings.BeginTx(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	verdict, err := s.checker.CheckAvailability(ctx, dto.CheckAvailabilityRequest{
		TrainerID: req.TrainerID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		ClientID:  req.ClientID,
	})
	if err != nil {
		return nil, err
	}
	if !verdict.Available {
		return nil, s.slotUnavailable(verdict)
	}

	booking := &models.Booking{
		TrainerID:   req.TrainerID,
		ClientID:    req.ClientID,
		SessionType: req.SessionType,
		Date:        date,
		StartTime:   start.Format(),
		EndTime:     end.Format(),
		Status:      status,
		Notes:       req.Notes,
	}
	if err := s.bookings.Create(ctx, tx, booking); err != nil {
		if isOverlapViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "slot was taken by a concurrent booking")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	if err := tx.Commit(); err != nil {
		if isOverlapViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "slot was taken by a concurrent booking")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit booking")
	}

	s.invalidateSlots(ctx, req.TrainerID)
	s.logger.Info("booking created",
		zap.String("booking_id", booking.ID),
		zap.String("trainer_id", booking.TrainerID),
		zap.String("date", req.Date),
		zap.String("status", string(booking.Status)))
	return booking, nil
}

// Cancel transitions a booking to cancelled. Only the booking's client, the
// trainer, or an admin may cancel; cancelling twice is a no-op conflict.
func (s *BookingService) Cancel(ctx context.Context, bookingID, actorID string, actorRole models.UserRole) (*models.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && actorID != booking.ClientID && actorID != booking.TrainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to cancel this booking")
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "booking is already cancelled")
	}

	if err := s.bookings.UpdateStatus(ctx, bookingID, models.BookingStatusCancelled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}

	booking.Status = models.BookingStatusCancelled
	s.invalidateSlots(ctx, booking.TrainerID)
	s.logger.Info("booking cancelled", zap.String("booking_id", bookingID), zap.String("actor_id", actorID))
	return booking, nil
}

// Confirm approves a pending booking. Trainer or admin only.
func (s *BookingService) Confirm(ctx context.Context, bookingID, actorID string, actorRole models.UserRole) (*models.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && actorID != booking.TrainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to confirm this booking")
	}
	if booking.Status != models.BookingStatusPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending bookings can be confirmed")
	}

	if err := s.bookings.UpdateStatus(ctx, bookingID, models.BookingStatusConfirmed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to confirm booking")
	}
	booking.Status = models.BookingStatusConfirmed
	s.invalidateSlots(ctx, booking.TrainerID)
	return booking, nil
}

// Reschedule moves a booking to a new slot. The availability check passes the
// booking's own ID as the exclusion, so the move never collides with itself.
func (s *BookingService) Reschedule(ctx context.Context, req dto.RescheduleBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}

	booking, err := s.loadBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if req.ClientID != "" && req.ClientID != booking.ClientID && req.ClientID != booking.TrainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to reschedule this booking")
	}
	if booking.Status == models.BookingStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cancelled bookings cannot be rescheduled")
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date, expected YYYY-MM-DD")
	}
	start, err := ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, err
	}
	if start >= end {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end time must be after start time")
	}

	tx, err := s.bookings.BeginTx(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	verdict, err := s.checker.CheckAvailability(ctx, dto.CheckAvailabilityRequest{
		TrainerID:        booking.TrainerID,
		Date:             req.Date,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
		ExcludeBookingID: booking.ID,
		ClientID:         booking.ClientID,
	})
	if err != nil {
		return nil, err
	}
	if !verdict.Available {
		return nil, s.slotUnavailable(verdict)
	}

	if err := s.bookings.Reschedule(ctx, tx, booking.ID, date, start.Format(), end.Format()); err != nil {
		if isOverlapViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "slot was taken by a concurrent booking")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reschedule booking")
	}
	if err := tx.Commit(); err != nil {
		if isOverlapViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrSlotUnavailable, "slot was taken by a concurrent booking")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit reschedule")
	}

	booking.Date = date
	booking.StartTime = start.Format()
	booking.EndTime = end.Format()
	s.invalidateSlots(ctx, booking.TrainerID)
	s.logger.Info("booking rescheduled", zap.String("booking_id", booking.ID), zap.String("date", req.Date))
	return booking, nil
}

// GetByID loads one booking, restricted to its participants and admins.
func (s *BookingService) GetByID(ctx context.Context, bookingID, actorID string, actorRole models.UserRole) (*models.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if actorRole != models.RoleAdmin && actorID != booking.ClientID && actorID != booking.TrainerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this booking")
	}
	return booking, nil
}

// ListForClient returns the client's recent bookings.
func (s *BookingService) ListForClient(ctx context.Context, clientID string, limit int) ([]models.Booking, error) {
	list, err := s.bookings.ListForClient(ctx, clientID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return list, nil
}

// ListForTrainer returns the trainer's bookings between two dates inclusive.
func (s *BookingService) ListForTrainer(ctx context.Context, trainerID, startDate, endDate string) ([]models.Booking, error) {
	from, err := time.Parse(dateLayout, startDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date, expected YYYY-MM-DD")
	}
	to, err := time.Parse(dateLayout, endDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid end date, expected YYYY-MM-DD")
	}
	if from.After(to) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateRange, "")
	}
	list, err := s.bookings.ListForTrainerRange(ctx, trainerID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	return list, nil
}

func (s *BookingService) loadBooking(ctx context.Context, id string) (*models.Booking, error) {
	booking, err := s.bookings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

func (s *BookingService) slotUnavailable(verdict *models.AvailabilityResult) error {
	message := "requested slot is not available"
	if len(verdict.Reasons) > 0 {
		message = message + ": " + strings.Join(verdict.Reasons, "; ")
	}
	return appErrors.Clone(appErrors.ErrSlotUnavailable, message)
}

func (s *BookingService) invalidateSlots(ctx context.Context, trainerID string) {
	if s.slotCache == nil {
		return
	}
	s.slotCache.InvalidateTrainer(ctx, trainerID)
}

// isOverlapViolation detects the bookings table's exclusion and uniqueness
// constraints firing under concurrent writes.
func isOverlapViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23P01" || pqErr.Code == "23505"
}
