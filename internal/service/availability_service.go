package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/pulsefit/booking-api/internal/dto"
	"github.com/pulsefit/booking-api/internal/models"
	appErrors "github.com/pulsefit/booking-api/pkg/errors"
)

const dateLayout = "2006-01-02"

type availabilityUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AvailabilityConfig tunes the slot enumerator.
type AvailabilityConfig struct {
	DefaultSlotMinutes int
	MaxRangeDays       int
}

// AvailabilityService answers two questions about a trainer's calendar: is a
// specific candidate slot bookable, and which slots are bookable over a date
// range. It owns no state between calls; every verdict is a pure function of
// repository data and the injected clock.
//
// The engine is advisory: it performs no locking between a positive verdict
// and the later creation of a booking. BookingService closes that race by
// re-running CheckAvailability inside the insert transaction.
type AvailabilityService struct {
	users    availabilityUserReader
	windows  weeklyAvailabilityReader
	blocked  blockedTimeReader
	bookings bookingConflictReader
	policies trainerPolicyReader
	clock    Clock
	logger   *zap.Logger
	cfg      AvailabilityConfig

	// pipeline holds the constraint policies in their contractual evaluation
	// order. The first failing policy terminates evaluation, so this ordering
	// determines which explanation a caller sees when several problems exist.
	pipeline []availabilityPolicy
}

// NewAvailabilityService wires the availability engine.
func NewAvailabilityService(
	users availabilityUserReader,
	windows weeklyAvailabilityReader,
	blocked blockedTimeReader,
	bookings bookingConflictReader,
	policies trainerPolicyReader,
	clock Clock,
	logger *zap.Logger,
	cfg AvailabilityConfig,
) *AvailabilityService {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultSlotMinutes <= 0 {
		cfg.DefaultSlotMinutes = 60
	}
	s := &AvailabilityService{
		users:    users,
		windows:  windows,
		blocked:  blocked,
		bookings: bookings,
		policies: policies,
		clock:    clock,
		logger:   logger,
		cfg:      cfg,
	}
	s.pipeline = []availabilityPolicy{
		&weeklyWindowPolicy{windows: windows, logger: logger},
		&blockedTimePolicy{blocked: blocked, logger: logger},
		&bookingConflictPolicy{bookings: bookings},
		&capacityPolicy{policies: policies, bookings: bookings},
		&bookingRulesPolicy{policies: policies, clock: clock, logger: logger},
	}
	return s
}

// CheckAvailability evaluates one candidate slot for a trainer. It never
// returns a domain failure as an error: role mismatches, policy violations,
// unreadable data and repository faults all resolve to a structured
// available=false result. The only errors escaping are malformed request
// payloads.
func (s *AvailabilityService) CheckAvailability(ctx context.Context, req dto.CheckAvailabilityRequest) (*models.AvailabilityResult, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", req.Date))
	}

	trainer, err := s.users.FindByID(ctx, req.TrainerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer")
	}
	if !trainer.IsTrainer() {
		return unavailable("user is not a trainer"), nil
	}

	start, err := ParseTimeOfDay(req.StartTime)
	if err != nil {
		s.logParseFailure(req.TrainerID, req.StartTime, err)
		return unavailable("invalid start time format"), nil
	}
	end, err := ParseTimeOfDay(req.EndTime)
	if err != nil {
		s.logParseFailure(req.TrainerID, req.EndTime, err)
		return unavailable("invalid end time format"), nil
	}
	if start >= end {
		return unavailable("end time must be after start time"), nil
	}

	result := s.runPipeline(ctx, availabilityRequest{
		Trainer:          trainer,
		Date:             date,
		Start:            start,
		End:              end,
		ExcludeBookingID: req.ExcludeBookingID,
		ClientID:         req.ClientID,
	})
	return &result, nil
}

// runPipeline executes the ordered policies for a parsed candidate. Policy
// errors and panics degrade to a generic unavailable verdict; they must never
// reach the caller.
func (s *AvailabilityService) runPipeline(ctx context.Context, req availabilityRequest) (result models.AvailabilityResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("availability evaluation panicked",
				zap.String("trainer_id", req.Trainer.ID),
				zap.Any("recover", r))
			result = *unavailable("availability could not be determined")
		}
	}()

	for _, policy := range s.pipeline {
		verdict, err := policy.Check(ctx, req)
		if err != nil {
			s.logger.Error("availability policy failed",
				zap.String("policy", policy.Name()),
				zap.String("trainer_id", req.Trainer.ID),
				zap.Error(err))
			return *unavailable("availability could not be determined")
		}
		if !verdict.OK {
			return models.AvailabilityResult{
				Available: false,
				Reasons:   verdict.Reasons,
				Conflicts: append([]models.Conflict{}, verdict.Conflicts...),
			}
		}
	}
	return models.AvailabilityResult{Available: true, Reasons: []string{}, Conflicts: []models.Conflict{}}
}

// GetAvailableSlots enumerates bookable candidate slots between two dates
// inclusive. An inverted date range is the one loud failure of the engine;
// every other problem narrows the result instead of erroring.
func (s *AvailabilityService) GetAvailableSlots(ctx context.Context, req dto.AvailableSlotsRequest) ([]models.AvailableSlot, error) {
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid start date %q, expected YYYY-MM-DD", req.StartDate))
	}
	endDate, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid end date %q, expected YYYY-MM-DD", req.EndDate))
	}
	if startDate.After(endDate) {
		return nil, appErrors.Clone(appErrors.ErrInvalidDateRange, "")
	}
	if s.cfg.MaxRangeDays > 0 {
		if int(endDate.Sub(startDate).Hours()/24) >= s.cfg.MaxRangeDays {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range must span fewer than %d days", s.cfg.MaxRangeDays))
		}
	}

	trainer, err := s.users.FindByID(ctx, req.TrainerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "trainer not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load trainer")
	}
	if !trainer.IsTrainer() {
		return nil, appErrors.Clone(appErrors.ErrNotTrainer, "")
	}

	capacity, err := s.policies.GetCapacity(ctx, req.TrainerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load capacity config")
	}
	rules, err := s.policies.GetBookingRules(ctx, req.TrainerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking rules")
	}

	windows, err := s.windows.ListByTrainer(ctx, req.TrainerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly availability")
	}
	windowByWeekday := make(map[int]models.WeeklyAvailability, len(windows))
	for _, w := range windows {
		windowByWeekday[w.DayOfWeek] = w
	}

	slotMinutes := s.cfg.DefaultSlotMinutes
	if req.DurationMinutes > 0 {
		slotMinutes = req.DurationMinutes
	}
	breakMinutes := 0
	if capacity != nil {
		if capacity.SessionDurationMinutes > 0 {
			slotMinutes = capacity.SessionDurationMinutes
		}
		if capacity.BreakBetweenSessionsMinutes > 0 {
			breakMinutes = capacity.BreakBetweenSessionsMinutes
		}
	}

	requiresApproval := rules != nil && rules.RequireApproval
	now := s.clock.Now()

	var slots []models.AvailableSlot
	for date := startDate; !date.After(endDate); date = date.AddDate(0, 0, 1) {
		weekday := date.Weekday()
		if rules != nil && !rules.AllowWeekendBooking && (weekday == time.Saturday || weekday == time.Sunday) {
			continue
		}
		window, ok := windowByWeekday[int(weekday)]
		if !ok {
			continue
		}

		// Morning before evening; candidates inside a sub-window ascend by
		// construction, so day ordering falls out of the outer loop.
		for _, sub := range []struct {
			available  bool
			start, end *string
		}{
			{window.MorningAvailable, window.MorningStart, window.MorningEnd},
			{window.EveningAvailable, window.EveningStart, window.EveningEnd},
		} {
			if !sub.available || sub.start == nil || sub.end == nil {
				continue
			}
			windowStart, startErr := ParseTimeOfDay(*sub.start)
			windowEnd, endErr := ParseTimeOfDay(*sub.end)
			if startErr != nil || endErr != nil {
				s.logger.Warn("skipping weekly window with invalid bounds",
					zap.String("trainer_id", req.TrainerID),
					zap.Int("weekday", int(weekday)),
					zap.Stringp("start", sub.start),
					zap.Stringp("end", sub.end))
				continue
			}

			for cursor := windowStart; cursor.AddMinutes(slotMinutes) <= windowEnd; cursor = cursor.AddMinutes(slotMinutes + breakMinutes) {
				slotEnd := cursor.AddMinutes(slotMinutes)
				if !cursor.At(date).After(now) {
					continue
				}
				verdict := s.runPipeline(ctx, availabilityRequest{
					Trainer:  trainer,
					Date:     date,
					Start:    cursor,
					End:      slotEnd,
					ClientID: req.ClientID,
				})
				if !verdict.Available {
					continue
				}
				slots = append(slots, models.AvailableSlot{
					Date:             date.Format(dateLayout),
					StartTime:        cursor.Short(),
					EndTime:          slotEnd.Short(),
					StartsAt:         cursor.At(date).UTC(),
					EndsAt:           slotEnd.At(date).UTC(),
					Display:          fmt.Sprintf("%s – %s", cursor.Clock12(), slotEnd.Clock12()),
					DurationMinutes:  slotMinutes,
					RequiresApproval: requiresApproval,
				})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].StartsAt.Before(slots[j].StartsAt)
	})
	return slots, nil
}

func (s *AvailabilityService) logParseFailure(trainerID, raw string, err error) {
	s.logger.Warn("rejecting candidate with unparseable time",
		zap.String("trainer_id", trainerID),
		zap.String("raw", raw),
		zap.Strings("layouts", timeOfDayLayouts),
		zap.Error(err))
}

func unavailable(reason string) *models.AvailabilityResult {
	return &models.AvailabilityResult{
		Available: false,
		Reasons:   []string{reason},
		Conflicts: []models.Conflict{},
	}
}
