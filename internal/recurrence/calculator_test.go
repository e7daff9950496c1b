package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beaconhq/alert-pipeline/internal/model"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 30, 0, 0, time.UTC)
}

func TestNext_DailyAndWeekly(t *testing.T) {
	start := date(2025, time.March, 10)

	next, err := Next(start, model.RecurrencePattern{Frequency: model.FrequencyDaily, Interval: 1})
	require.NoError(t, err)
	require.Equal(t, date(2025, time.March, 11), next)

	next, err = Next(start, model.RecurrencePattern{Frequency: model.FrequencyDaily, Interval: 3})
	require.NoError(t, err)
	require.Equal(t, date(2025, time.March, 13), next)

	next, err = Next(start, model.RecurrencePattern{Frequency: model.FrequencyWeekly, Interval: 1})
	require.NoError(t, err)
	require.Equal(t, date(2025, time.March, 17), next)

	next, err = Next(start, model.RecurrencePattern{Frequency: model.FrequencyWeekly, Interval: 2})
	require.NoError(t, err)
	require.Equal(t, date(2025, time.March, 24), next)
}

func TestNext_MonthlyClampsToEndOfMonth(t *testing.T) {
	// Jan 31 + 1 month must be the last valid day of February, not an
	// overflow into March.
	next, err := Next(date(2025, time.January, 31), model.RecurrencePattern{
		Frequency: model.FrequencyMonthly,
		Interval:  1,
	})
	require.NoError(t, err)
	require.Equal(t, date(2025, time.February, 28), next)

	// Leap year February keeps the 29th.
	next, err = Next(date(2024, time.January, 31), model.RecurrencePattern{
		Frequency: model.FrequencyMonthly,
		Interval:  1,
	})
	require.NoError(t, err)
	require.Equal(t, date(2024, time.February, 29), next)

	// A mid-month day is unaffected.
	next, err = Next(date(2025, time.January, 15), model.RecurrencePattern{
		Frequency: model.FrequencyMonthly,
		Interval:  1,
	})
	require.NoError(t, err)
	require.Equal(t, date(2025, time.February, 15), next)

	// Multi-month intervals cross year boundaries.
	next, err = Next(date(2025, time.October, 31), model.RecurrencePattern{
		Frequency: model.FrequencyMonthly,
		Interval:  4,
	})
	require.NoError(t, err)
	require.Equal(t, date(2026, time.February, 28), next)
}

func TestNext_Yearly(t *testing.T) {
	next, err := Next(date(2025, time.June, 12), model.RecurrencePattern{
		Frequency: model.FrequencyYearly,
		Interval:  1,
	})
	require.NoError(t, err)
	require.Equal(t, date(2026, time.June, 12), next)

	// Feb 29 clamps to Feb 28 in non-leap target years.
	next, err = Next(date(2024, time.February, 29), model.RecurrencePattern{
		Frequency: model.FrequencyYearly,
		Interval:  1,
	})
	require.NoError(t, err)
	require.Equal(t, date(2025, time.February, 28), next)
}

func TestNext_PreservesTimeOfDay(t *testing.T) {
	start := time.Date(2025, time.January, 31, 18, 45, 30, 0, time.UTC)
	next, err := Next(start, model.RecurrencePattern{
		Frequency: model.FrequencyMonthly,
		Interval:  1,
	})
	require.NoError(t, err)
	require.Equal(t, time.Date(2025, time.February, 28, 18, 45, 30, 0, time.UTC), next)
}

func TestNext_EndDate(t *testing.T) {
	start := date(2025, time.March, 10)

	// Next occurrence past the end date finishes the recurrence.
	ends := date(2025, time.March, 14)
	_, err := Next(start, model.RecurrencePattern{
		Frequency: model.FrequencyWeekly,
		Interval:  1,
		EndsAt:    &ends,
	})
	require.ErrorIs(t, err, ErrRecurrenceFinished)

	// An occurrence landing exactly on the end date still runs.
	ends = date(2025, time.March, 17)
	next, err := Next(start, model.RecurrencePattern{
		Frequency: model.FrequencyWeekly,
		Interval:  1,
		EndsAt:    &ends,
	})
	require.NoError(t, err)
	require.Equal(t, ends, next)
}

func TestNext_InvalidPattern(t *testing.T) {
	start := date(2025, time.March, 10)

	_, err := Next(start, model.RecurrencePattern{Frequency: model.FrequencyDaily, Interval: 0})
	require.ErrorIs(t, err, ErrInvalidRecurrence)

	_, err = Next(start, model.RecurrencePattern{Frequency: model.FrequencyDaily, Interval: -2})
	require.ErrorIs(t, err, ErrInvalidRecurrence)

	_, err = Next(start, model.RecurrencePattern{Frequency: "hourly", Interval: 1})
	require.ErrorIs(t, err, ErrInvalidRecurrence)
}
