package scanner

import (
	"fmt"
	"time"

	"lms/internal/config"
)

// nextRun computes the next scheduled scan time after `from`: Hourly fires at minute
// 0 of every hour regardless of UpdateStartTime; Daily/Weekly/Monthly fire at
// UpdateStartTime (local HH:MM); Never never schedules.
func nextRun(period config.UpdatePeriod, startTime string, from time.Time) (time.Time, bool) {
	switch period {
	case config.UpdateNever:
		return time.Time{}, false
	case config.UpdateHourly:
		next := from.Truncate(time.Hour).Add(time.Hour)
		return next, true
	case config.UpdateDaily:
		return nextAtClock(from, startTime, 1)
	case config.UpdateWeekly:
		return nextAtClock(from, startTime, 7)
	case config.UpdateMonthly:
		return nextAtClockMonthly(from, startTime)
	default:
		return time.Time{}, false
	}
}

func parseClock(startTime string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", startTime)
	if err != nil {
		return 0, 0, fmt.Errorf("scanner: invalid schedule time %q: %w", startTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

func nextAtClock(from time.Time, startTime string, everyNDays int) (time.Time, bool) {
	hour, minute, err := parseClock(startTime)
	if err != nil {
		return time.Time{}, false
	}
	candidate := time.Date(from.Year(), from.Month(), from.Day(), hour, minute, 0, 0, from.Location())
	if !candidate.After(from) {
		candidate = candidate.AddDate(0, 0, everyNDays)
	}
	return candidate, true
}

func nextAtClockMonthly(from time.Time, startTime string) (time.Time, bool) {
	hour, minute, err := parseClock(startTime)
	if err != nil {
		return time.Time{}, false
	}
	candidate := time.Date(from.Year(), from.Month(), 1, hour, minute, 0, 0, from.Location())
	if !candidate.After(from) {
		candidate = candidate.AddDate(0, 1, 0)
	}
	return candidate, true
}
