package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/pulsefit/booking-api/internal/models"
)

type weeklyAvailabilityReader interface {
	GetForWeekday(ctx context.Context, trainerID string, weekday int) (*models.WeeklyAvailability, error)
	ListByTrainer(ctx context.Context, trainerID string) ([]models.WeeklyAvailability, error)
}

type blockedTimeReader interface {
	ListForDate(ctx context.Context, trainerID string, date time.Time) ([]models.BlockedTime, error)
}

type bookingConflictReader interface {
	FindOverlapping(ctx context.Context, trainerID string, date time.Time, startTime, endTime, excludeID string) ([]models.Booking, error)
	CountForDate(ctx context.Context, trainerID string, date time.Time, excludeID string) (int, error)
	CountForRange(ctx context.Context, trainerID string, from, to time.Time, excludeID string) (int, error)
}

type trainerPolicyReader interface {
	GetCapacity(ctx context.Context, trainerID string) (*models.TrainerCapacity, error)
	GetBookingRules(ctx context.Context, trainerID string) (*models.BookingRules, error)
}

// availabilityRequest is one fully parsed candidate slot flowing through the
// policy pipeline. Start/End form a half-open interval [Start, End).
type availabilityRequest struct {
	Trainer          *models.User
	Date             time.Time
	Start            TimeOfDay
	End              TimeOfDay
	ExcludeBookingID string
	ClientID         string
}

// PolicyResult is the verdict of a single constraint policy. A failed result
// carries human-readable reasons and, where relevant, structured conflicts.
type PolicyResult struct {
	OK        bool
	Reasons   []string
	Conflicts []models.Conflict
}

func policyPass() PolicyResult {
	return PolicyResult{OK: true}
}

func policyFail(reasons ...string) PolicyResult {
	return PolicyResult{Reasons: reasons}
}

// availabilityPolicy evaluates one independent booking constraint. Policies
// fail closed: ambiguous or unparseable data never passes. A returned error
// signals an infrastructure problem, not a policy verdict.
type availabilityPolicy interface {
	Name() string
	Check(ctx context.Context, req availabilityRequest) (PolicyResult, error)
}

// overlaps applies the three-way half-open interval overlap test: either bound
// of the existing interval falls inside the candidate, or the existing
// interval fully covers it.
func overlaps(candStart, candEnd, otherStart, otherEnd TimeOfDay) bool {
	if otherStart >= candStart && otherStart < candEnd {
		return true
	}
	if otherEnd > candStart && otherEnd <= candEnd {
		return true
	}
	return otherStart <= candStart && otherEnd >= candEnd
}

// --- Weekly availability ---

type weeklyWindowPolicy struct {
	windows weeklyAvailabilityReader
	logger  *zap.Logger
}

func (p *weeklyWindowPolicy) Name() string { return "weekly_availability" }

func (p *weeklyWindowPolicy) Check(ctx context.Context, req availabilityRequest) (PolicyResult, error) {
	weekday := req.Date.Weekday()
	window, err := p.windows.GetForWeekday(ctx, req.Trainer.ID, int(weekday))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return policyFail(fmt.Sprintf("not available on %s", weekday)), nil
		}
		return PolicyResult{}, fmt.Errorf("load weekly availability: %w", err)
	}

	// Morning first; evening is only consulted when the morning window does
	// not fully contain the candidate.
	contained, ok := p.contains(window.MorningAvailable, window.MorningStart, window.MorningEnd, req)
	if !ok {
		return policyFail("trainer's weekly schedule has an invalid time value"), nil
	}
	if !contained {
		contained, ok = p.contains(window.EveningAvailable, window.EveningStart, window.EveningEnd, req)
		if !ok {
			return policyFail("trainer's weekly schedule has an invalid time value"), nil
		}
	}
	if !contained {
		return policyFail("outside trainer's available hours"), nil
	}
	return policyPass(), nil
}

// contains reports whether the candidate falls entirely within the sub-window.
// The second return value is false when a window bound fails to parse; that is
// a distinct fail-closed outcome, never a silent pass.
func (p *weeklyWindowPolicy) contains(available bool, start, end *string, req availabilityRequest) (bool, bool) {
	if !available || start == nil || end == nil {
		return false, true
	}
	windowStart, err := ParseTimeOfDay(*start)
	if err != nil {
		p.logger.Warn("unparseable weekly window bound",
			zap.String("trainer_id", req.Trainer.ID),
			zap.String("raw", *start),
			zap.Error(err))
		return false, false
	}
	windowEnd, err := ParseTimeOfDay(*end)
	if err != nil {
		p.logger.Warn("unparseable weekly window bound",
			zap.String("trainer_id", req.Trainer.ID),
			zap.String("raw", *end),
			zap.Error(err))
		return false, false
	}
	return req.Start >= windowStart && req.End <= windowEnd, true
}

// --- Blocked time ---

type blockedTimePolicy struct {
	blocked blockedTimeReader
	logger  *zap.Logger
}

func (p *blockedTimePolicy) Name() string { return "blocked_time" }

func (p *blockedTimePolicy) Check(ctx context.Context, req availabilityRequest) (PolicyResult, error) {
	rows, err := p.blocked.ListForDate(ctx, req.Trainer.ID, req.Date)
	if err != nil {
		return PolicyResult{}, fmt.Errorf("load blocked intervals: %w", err)
	}

	var result PolicyResult
	for _, row := range rows {
		start, startErr := ParseTimeOfDay(row.StartTime)
		end, endErr := ParseTimeOfDay(row.EndTime)
		if startErr != nil || endErr != nil {
			p.logger.Warn("unparseable blocked interval",
				zap.String("trainer_id", req.Trainer.ID),
				zap.String("blocked_id", row.ID),
				zap.String("start", row.StartTime),
				zap.String("end", row.EndTime))
			// Fail closed: an interval we cannot evaluate blocks the candidate.
			result.Reasons = append(result.Reasons, "trainer has an unreadable blocked interval on this date")
			continue
		}
		if !overlaps(req.Start, req.End, start, end) {
			continue
		}
		reason := fmt.Sprintf("blocked from %s to %s", start.Short(), end.Short())
		if row.Reason != "" {
			reason = fmt.Sprintf("%s (%s)", reason, row.Reason)
		}
		result.Reasons = append(result.Reasons, reason)
		result.Conflicts = append(result.Conflicts, models.Conflict{
			Type:      models.ConflictTypeBlockedTime,
			StartTime: start.Short(),
			EndTime:   end.Short(),
			Reason:    row.Reason,
		})
	}
	if len(result.Reasons) > 0 {
		return result, nil
	}
	return policyPass(), nil
}

// --- Booking conflicts ---

type bookingConflictPolicy struct {
	bookings bookingConflictReader
}

func (p *bookingConflictPolicy) Name() string { return "booking_conflict" }

func (p *bookingConflictPolicy) Check(ctx context.Context, req availabilityRequest) (PolicyResult, error) {
	rows, err := p.bookings.FindOverlapping(ctx, req.Trainer.ID, req.Date, req.Start.Format(), req.End.Format(), req.ExcludeBookingID)
	if err != nil {
		return PolicyResult{}, fmt.Errorf("load overlapping bookings: %w", err)
	}

	var result PolicyResult
	for _, booking := range rows {
		if !booking.IsBlocking() {
			continue
		}
		start, end := booking.StartTime, booking.EndTime
		if parsed, err := ParseTimeOfDay(start); err == nil {
			start = parsed.Short()
		}
		if parsed, err := ParseTimeOfDay(end); err == nil {
			end = parsed.Short()
		}
		result.Reasons = append(result.Reasons, fmt.Sprintf("conflicts with an existing booking from %s to %s", start, end))
		result.Conflicts = append(result.Conflicts, models.Conflict{
			Type:        models.ConflictTypeExistingBooking,
			BookingID:   booking.ID,
			StartTime:   start,
			EndTime:     end,
			ClientName:  booking.ClientName,
			SessionType: booking.SessionType,
		})
	}
	if len(result.Reasons) == 0 {
		return policyPass(), nil
	}
	return result, nil
}

// --- Capacity ---

type capacityPolicy struct {
	policies trainerPolicyReader
	bookings bookingConflictReader
}

func (p *capacityPolicy) Name() string { return "capacity" }

func (p *capacityPolicy) Check(ctx context.Context, req availabilityRequest) (PolicyResult, error) {
	capacity, err := p.policies.GetCapacity(ctx, req.Trainer.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return policyPass(), nil
		}
		return PolicyResult{}, fmt.Errorf("load capacity config: %w", err)
	}

	if capacity.MaxDailySessions > 0 {
		count, err := p.bookings.CountForDate(ctx, req.Trainer.ID, req.Date, req.ExcludeBookingID)
		if err != nil {
			return PolicyResult{}, fmt.Errorf("count daily bookings: %w", err)
		}
		if count >= capacity.MaxDailySessions {
			return policyFail(fmt.Sprintf("trainer has reached the daily limit of %d sessions", capacity.MaxDailySessions)), nil
		}
	}

	if capacity.MaxWeeklySessions > 0 {
		weekStart, weekEnd := isoWeekRange(req.Date)
		count, err := p.bookings.CountForRange(ctx, req.Trainer.ID, weekStart, weekEnd, req.ExcludeBookingID)
		if err != nil {
			return PolicyResult{}, fmt.Errorf("count weekly bookings: %w", err)
		}
		if count >= capacity.MaxWeeklySessions {
			return policyFail(fmt.Sprintf("trainer has reached the weekly limit of %d sessions", capacity.MaxWeeklySessions)), nil
		}
	}

	return policyPass(), nil
}

// isoWeekRange returns the Monday and Sunday bounding the ISO week containing
// the given date, both at midnight in the date's location.
func isoWeekRange(date time.Time) (time.Time, time.Time) {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	offset := (int(midnight.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	weekStart := midnight.AddDate(0, 0, -offset)
	return weekStart, weekStart.AddDate(0, 0, 6)
}

// --- Booking rules ---

type bookingRulesPolicy struct {
	policies trainerPolicyReader
	clock    Clock
	logger   *zap.Logger
}

func (p *bookingRulesPolicy) Name() string { return "booking_rules" }

// Check evaluates the configured rules in order: self-booking, weekend,
// earliest/latest start, advance horizon, past instant. The past-instant check
// is unconditional; only the other rules are gated on a configured rules row.
func (p *bookingRulesPolicy) Check(ctx context.Context, req availabilityRequest) (PolicyResult, error) {
	rules, err := p.policies.GetBookingRules(ctx, req.Trainer.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			rules = nil
		} else {
			return PolicyResult{}, fmt.Errorf("load booking rules: %w", err)
		}
	}

	now := p.clock.Now()
	startInstant := req.Start.At(req.Date)

	if rules != nil {
		if !rules.AllowSelfBooking && req.ClientID != "" && req.ClientID == req.Trainer.ID {
			return policyFail("self-booking not allowed"), nil
		}

		weekday := req.Date.Weekday()
		if !rules.AllowWeekendBooking && (weekday == time.Saturday || weekday == time.Sunday) {
			return policyFail("weekend booking not allowed"), nil
		}

		if rules.EarliestBookingTime != nil && rules.LatestBookingTime != nil {
			earliest, earliestErr := ParseTimeOfDay(*rules.EarliestBookingTime)
			latest, latestErr := ParseTimeOfDay(*rules.LatestBookingTime)
			if earliestErr != nil || latestErr != nil {
				p.logger.Warn("unparseable booking rule time bound",
					zap.String("trainer_id", req.Trainer.ID),
					zap.Stringp("earliest", rules.EarliestBookingTime),
					zap.Stringp("latest", rules.LatestBookingTime))
				return policyFail("trainer's booking rules have an invalid time value"), nil
			}
			if req.Start < earliest || req.Start > latest {
				return policyFail(fmt.Sprintf("bookings must start between %s and %s", earliest.Short(), latest.Short())), nil
			}
		}

		if rules.AdvanceBookingDays > 0 {
			horizon := now.AddDate(0, 0, rules.AdvanceBookingDays)
			if startInstant.After(horizon) {
				return policyFail(fmt.Sprintf("bookings may be made at most %d days in advance", rules.AdvanceBookingDays)), nil
			}
		}
	}

	if startInstant.Before(now) {
		return policyFail("cannot book in the past"), nil
	}

	return policyPass(), nil
}
