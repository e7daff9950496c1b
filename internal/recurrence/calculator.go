// Package recurrence computes the next occurrence of a recurring
// scheduled alert. It is pure calendar arithmetic with no I/O so the
// scheduler can be tested without a store.
package recurrence

import (
	"errors"
	"time"

	"github.com/beaconhq/alert-pipeline/internal/model"
)

var (
	// ErrInvalidRecurrence is returned for malformed patterns (non-positive
	// interval, unknown frequency). Callers must treat it as "cannot recur"
	// and deactivate rather than loop forever.
	ErrInvalidRecurrence = errors.New("invalid recurrence pattern")

	// ErrRecurrenceFinished is returned when the computed next occurrence
	// falls past the pattern's end date. Callers deactivate the alert.
	ErrRecurrenceFinished = errors.New("recurrence finished")
)

// Next returns the occurrence following after according to the pattern.
//
// Daily and weekly additions are plain day counts. Monthly and yearly
// additions are calendar-aware: when the source day does not exist in the
// target month the result clamps to that month's last day, so Jan 31 plus
// one month is Feb 28 (or Feb 29 in a leap year), never an overflow into
// March.
func Next(after time.Time, p model.RecurrencePattern) (time.Time, error) {
	if p.Interval <= 0 {
		return time.Time{}, ErrInvalidRecurrence
	}

	var next time.Time
	switch p.Frequency {
	case model.FrequencyDaily:
		next = after.AddDate(0, 0, p.Interval)
	case model.FrequencyWeekly:
		next = after.AddDate(0, 0, 7*p.Interval)
	case model.FrequencyMonthly:
		next = addMonthsClamped(after, p.Interval)
	case model.FrequencyYearly:
		next = addMonthsClamped(after, 12*p.Interval)
	default:
		return time.Time{}, ErrInvalidRecurrence
	}

	if p.EndsAt != nil && next.After(*p.EndsAt) {
		return time.Time{}, ErrRecurrenceFinished
	}

	return next, nil
}

// addMonthsClamped adds months keeping the day-of-month, clamping to the
// last valid day of the target month instead of letting time.AddDate
// normalize the overflow into the following month.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	m := int(month) - 1 + months
	year += m / 12
	month = time.Month(m%12 + 1)

	if last := daysIn(year, month); day > last {
		day = last
	}

	return time.Date(year, month, day, hour, min, sec, t.Nanosecond(), t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
