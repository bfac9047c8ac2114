package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pulsefit/booking-api/internal/dto"
	"github.com/pulsefit/booking-api/internal/models"
	appErrors "github.com/pulsefit/booking-api/pkg/errors"
)

type scheduleAvailabilityStore interface {
	GetForWeekday(ctx context.Context, trainerID string, weekday int) (*models.WeeklyAvailability, error)
	ListByTrainer(ctx context.Context, trainerID string) ([]models.WeeklyAvailability, error)
	Upsert(ctx context.Context, window *models.WeeklyAvailability) error
	Delete(ctx context.Context, trainerID string, weekday int) error
}

type scheduleBlockedStore interface {
	ListForRange(ctx context.Context, trainerID string, from, to time.Time) ([]models.BlockedTime, error)
	Create(ctx context.Context, blocked *models.BlockedTime) error
	Delete(ctx context.Context, trainerID, id string) error
}

type schedulePolicyStore interface {
	GetCapacity(ctx context.Context, trainerID string) (*models.TrainerCapacity, error)
	UpsertCapacity(ctx context.Context, capacity *models.TrainerCapacity) error
	GetBookingRules(ctx context.Context, trainerID string) (*models.BookingRules, error)
	UpsertBookingRules(ctx context.Context, rules *models.BookingRules) error
}

// ScheduleService manages the trainer-facing schedule configuration: weekly
// windows, blocked intervals, capacity limits and booking rules. Every write
// invalidates the trainer's cached slot listings.
type ScheduleService struct {
	windows   scheduleAvailabilityStore
	blocked   scheduleBlockedStore
	policies  schedulePolicyStore
	slotCache slotCacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs a ScheduleService.
func NewScheduleService(
	windows scheduleAvailabilityStore,
	blocked scheduleBlockedStore,
	policies schedulePolicyStore,
	slotCache slotCacheInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		windows:   windows,
		blocked:   blocked,
		policies:  policies,
		slotCache: slotCache,
		validator: validate,
		logger:    logger,
	}
}

// GetWeeklyAvailability returns every configured weekday window.
func (s *ScheduleService) GetWeeklyAvailability(ctx context.Context, trainerID string) ([]models.WeeklyAvailability, error) {
	windows, err := s.windows.ListByTrainer(ctx, trainerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weekly availability")
	}
	return windows, nil
}

// UpsertWeeklyAvailability replaces the trainer's window for one weekday. A
// sub-window marked available must carry parseable bounds with start before
// end; rejecting bad bounds here keeps the availability engine from ever
// reading a malformed window it would have to fail closed on.
func (s *ScheduleService) UpsertWeeklyAvailability(ctx context.Context, trainerID string, req dto.UpsertWeeklyAvailabilityRequest) (*models.WeeklyAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability payload")
	}
	if err := validateSubWindow("morning", req.MorningAvailable, req.MorningStart, req.MorningEnd); err != nil {
		return nil, err
	}
	if err := validateSubWindow("evening", req.EveningAvailable, req.EveningStart, req.EveningEnd); err != nil {
		return nil, err
	}

	window := &models.WeeklyAvailability{
		TrainerID:        trainerID,
		DayOfWeek:        req.DayOfWeek,
		MorningAvailable: req.MorningAvailable,
		MorningStart:     req.MorningStart,
		MorningEnd:       req.MorningEnd,
		EveningAvailable: req.EveningAvailable,
		EveningStart:     req.EveningStart,
		EveningEnd:       req.EveningEnd,
	}
	if err := s.windows.Upsert(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store weekly availability")
	}

	s.invalidate(ctx, trainerID)
	s.logger.Info("weekly availability updated",
		zap.String("trainer_id", trainerID),
		zap.Int("day_of_week", req.DayOfWeek))
	return window, nil
}

// DeleteWeeklyAvailability removes the trainer's window for one weekday.
func (s *ScheduleService) DeleteWeeklyAvailability(ctx context.Context, trainerID string, weekday int) error {
	if weekday < 0 || weekday > 6 {
		return appErrors.Clone(appErrors.ErrValidation, "day_of_week must be between 0 and 6")
	}
	if err := s.windows.Delete(ctx, trainerID, weekday); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no availability configured for that day")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete weekly availability")
	}
	s.invalidate(ctx, trainerID)
	return nil
}

// ListBlockedTimes returns the trainer's blocked intervals between two dates.
func (s *ScheduleService) ListBlockedTimes(ctx context.Context, trainerID, startDate, endDate string) ([]models.BlockedTime, error) {
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
	rows, err := s.blocked.ListForRange(ctx, trainerID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list blocked times")
	}
	return rows, nil
}

// CreateBlockedTime records a date-specific exclusion.
func (s *ScheduleService) CreateBlockedTime(ctx context.Context, trainerID string, req dto.CreateBlockedTimeRequest) (*models.BlockedTime, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid blocked time payload")
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

	blocked := &models.BlockedTime{
		TrainerID: trainerID,
		Date:      date,
		StartTime: start.Format(),
		EndTime:   end.Format(),
		Reason:    req.Reason,
	}
	if err := s.blocked.Create(ctx, blocked); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store blocked time")
	}

	s.invalidate(ctx, trainerID)
	s.logger.Info("blocked time created",
		zap.String("trainer_id", trainerID),
		zap.String("date", req.Date))
	return blocked, nil
}

// DeleteBlockedTime removes one blocked interval owned by the trainer.
func (s *ScheduleService) DeleteBlockedTime(ctx context.Context, trainerID, id string) error {
	if err := s.blocked.Delete(ctx, trainerID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "blocked time not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete blocked time")
	}
	s.invalidate(ctx, trainerID)
	return nil
}

// GetCapacity returns the trainer's capacity config; nil when unrestricted.
func (s *ScheduleService) GetCapacity(ctx context.Context, trainerID string) (*models.TrainerCapacity, error) {
	capacity, err := s.policies.GetCapacity(ctx, trainerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load capacity")
	}
	return capacity, nil
}

// UpsertCapacity stores the trainer's capacity config.
func (s *ScheduleService) UpsertCapacity(ctx context.Context, trainerID string, req dto.UpsertCapacityRequest) (*models.TrainerCapacity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid capacity payload")
	}

	capacity := &models.TrainerCapacity{
		TrainerID:                   trainerID,
		MaxDailySessions:            req.MaxDailySessions,
		MaxWeeklySessions:           req.MaxWeeklySessions,
		SessionDurationMinutes:      req.SessionDurationMinutes,
		BreakBetweenSessionsMinutes: req.BreakBetweenSessionsMinutes,
	}
	if err := s.policies.UpsertCapacity(ctx, capacity); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store capacity")
	}

	s.invalidate(ctx, trainerID)
	return capacity, nil
}

// GetBookingRules returns the trainer's booking rules; nil when unrestricted.
func (s *ScheduleService) GetBookingRules(ctx context.Context, trainerID string) (*models.BookingRules, error) {
	rules, err := s.policies.GetBookingRules(ctx, trainerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking rules")
	}
	return rules, nil
}

// UpsertBookingRules stores the trainer's booking rules.
func (s *ScheduleService) UpsertBookingRules(ctx context.Context, trainerID string, req dto.UpsertBookingRulesRequest) (*models.BookingRules, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking rules payload")
	}
	if (req.EarliestBookingTime == nil) != (req.LatestBookingTime == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "earliest and latest booking times must be set together")
	}
	if req.EarliestBookingTime != nil {
		earliest, err := ParseTimeOfDay(*req.EarliestBookingTime)
		if err != nil {
			return nil, err
		}
		latest, err := ParseTimeOfDay(*req.LatestBookingTime)
		if err != nil {
			return nil, err
		}
		if earliest > latest {
			return nil, appErrors.Clone(appErrors.ErrValidation, "earliest booking time must not be after latest")
		}
	}

	rules := &models.BookingRules{
		TrainerID:           trainerID,
		AllowSelfBooking:    req.AllowSelfBooking,
		AllowWeekendBooking: req.AllowWeekendBooking,
		RequireApproval:     req.RequireApproval,
		AdvanceBookingDays:  req.AdvanceBookingDays,
		EarliestBookingTime: req.EarliestBookingTime,
		LatestBookingTime:   req.LatestBookingTime,
	}
	if err := s.policies.UpsertBookingRules(ctx, rules); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store booking rules")
	}

	s.invalidate(ctx, trainerID)
	return rules, nil
}

func (s *ScheduleService) invalidate(ctx context.Context, trainerID string) {
	if s.slotCache == nil {
		return
	}
	s.slotCache.InvalidateTrainer(ctx, trainerID)
}

func validateSubWindow(name string, available bool, start, end *string) error {
	if !available {
		return nil
	}
	if start == nil || end == nil {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s window requires start and end times", name))
	}
	from, err := ParseTimeOfDay(*start)
	if err != nil {
		return err
	}
	to, err := ParseTimeOfDay(*end)
	if err != nil {
		return err
	}
	if from >= to {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s window end must be after start", name))
	}
	return nil
}
