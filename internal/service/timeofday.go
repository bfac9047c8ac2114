package service

import (
	"fmt"
	"strings"
	"time"

	appErrors "github.com/pulsefit/booking-api/pkg/errors"
)

// TimeOfDay is a comparable local time of day expressed as minutes since
// midnight. All schedule arithmetic in the availability engine happens on this
// type; raw strings are only parsed once at the boundary.
type TimeOfDay int

// Accepted layouts, tried in priority order. Datetime layouts contribute only
// their time component.
var timeOfDayLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"15:04:05",
	"15:04",
}

// ParseTimeOfDay normalises heterogeneous time representations into a
// TimeOfDay. Seconds are truncated. Unparseable input yields
// ErrInvalidTimeFormat listing every attempted layout.
func ParseTimeOfDay(raw string) (TimeOfDay, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		for _, layout := range timeOfDayLayouts {
			parsed, err := time.Parse(layout, trimmed)
			if err != nil {
				continue
			}
			return TimeOfDay(parsed.Hour()*60 + parsed.Minute()), nil
		}
	}
	return 0, appErrors.Wrap(
		fmt.Errorf("value %q matches none of %s", raw, strings.Join(timeOfDayLayouts, ", ")),
		appErrors.ErrInvalidTimeFormat.Code,
		appErrors.ErrInvalidTimeFormat.Status,
		appErrors.ErrInvalidTimeFormat.Message,
	)
}

// AddMinutes returns the time of day shifted forward by m minutes.
func (t TimeOfDay) AddMinutes(m int) TimeOfDay {
	return t + TimeOfDay(m)
}

// Format renders the canonical HH:MM:SS representation.
func (t TimeOfDay) Format() string {
	return fmt.Sprintf("%02d:%02d:00", int(t)/60, int(t)%60)
}

// Short renders the HH:MM representation used in API payloads.
func (t TimeOfDay) Short() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Clock12 renders a 12-hour display string such as "9:05 AM".
func (t TimeOfDay) Clock12() string {
	hour := int(t) / 60
	minute := int(t) % 60
	suffix := "AM"
	switch {
	case hour == 0:
		hour = 12
	case hour == 12:
		suffix = "PM"
	case hour > 12:
		hour -= 12
		suffix = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", hour, minute, suffix)
}

// At anchors the time of day on the given date, producing an absolute instant
// in the date's location.
func (t TimeOfDay) At(date time.Time) time.Time {
	midnight := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	return midnight.Add(time.Duration(t) * time.Minute)
}
