package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

func TestDueDateMonthly(t *testing.T) {
	rule := Rule{Recurrence: domain.RecurrenceMonthly, DueDay: 15}

	due, ok := DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceMonthly, Year: 2025, Index: 3})
	require.True(t, ok)
	assert.Equal(t, date(2025, time.March, 15), due)
}

func TestDueDateClampsToMonthLength(t *testing.T) {
	t.Run("dueDay 31 in April clamps to April 30", func(t *testing.T) {
		rule := Rule{Recurrence: domain.RecurrenceMonthly, DueDay: 31}
		due, ok := DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceMonthly, Year: 2025, Index: 4})
		require.True(t, ok)
		assert.Equal(t, date(2025, time.April, 30), due)
	})

	t.Run("Feb 29 in a non-leap year clamps to Feb 28", func(t *testing.T) {
		rule := Rule{Recurrence: domain.RecurrenceAnnual, DueDay: 29, DueMonth: 2}
		due, ok := DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceAnnual, Year: 2025})
		require.True(t, ok)
		assert.Equal(t, date(2025, time.February, 28), due)
	})

	t.Run("Feb 29 in a leap year stays", func(t *testing.T) {
		rule := Rule{Recurrence: domain.RecurrenceAnnual, DueDay: 29, DueMonth: 2}
		due, ok := DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceAnnual, Year: 2024})
		require.True(t, ok)
		assert.Equal(t, date(2024, time.February, 29), due)
	})
}

func TestDueDateQuarterIndexing(t *testing.T) {
	// dueMonth selects the constituent month of the quarter: Q1 2025 is
	// Jan/Feb/Mar, so dueMonth=2 lands in February.
	rule := Rule{Recurrence: domain.RecurrenceQuarterly, DueDay: 10, DueMonth: 2}
	due, ok := DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceQuarterly, Year: 2025, Index: 1})
	require.True(t, ok)
	assert.Equal(t, date(2025, time.February, 10), due)

	// Q3 2025 is Jul/Aug/Sep; dueMonth=3 lands in September.
	rule.DueMonth = 3
	due, ok = DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceQuarterly, Year: 2025, Index: 3})
	require.True(t, ok)
	assert.Equal(t, date(2025, time.September, 10), due)
}

func TestDueDateSemiannual(t *testing.T) {
	// H2 2025 is Jul..Dec; dueMonth=6 lands in December.
	rule := Rule{Recurrence: domain.RecurrenceSemiannual, DueDay: 20, DueMonth: 6}
	due, ok := DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceSemiannual, Year: 2025, Index: 2})
	require.True(t, ok)
	assert.Equal(t, date(2025, time.December, 20), due)
}

func TestDueDateDailyAndWeekly(t *testing.T) {
	t.Run("daily due date is the anchor day", func(t *testing.T) {
		rule := Rule{Recurrence: domain.RecurrenceDaily}
		anchor := domain.PeriodAnchor{Recurrence: domain.RecurrenceDaily, Day: date(2025, time.March, 15)}
		due, ok := DueDate(rule, anchor)
		require.True(t, ok)
		assert.Equal(t, date(2025, time.March, 15), due)
	})

	t.Run("weekly due date is the week's Monday", func(t *testing.T) {
		rule := Rule{Recurrence: domain.RecurrenceWeekly}
		// Thursday 2025-03-20 is in the week of Monday 2025-03-17.
		anchor := domain.PeriodAnchor{Recurrence: domain.RecurrenceWeekly, Day: date(2025, time.March, 20)}
		due, ok := DueDate(rule, anchor)
		require.True(t, ok)
		assert.Equal(t, date(2025, time.March, 17), due)
	})
}

func TestDueDateValidityWindow(t *testing.T) {
	rule := Rule{
		Recurrence: domain.RecurrenceMonthly,
		DueDay:     15,
		ValidFrom:  datePtr(2025, time.January, 1),
		ValidUntil: datePtr(2025, time.June, 30),
	}

	t.Run("inside window", func(t *testing.T) {
		_, ok := DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceMonthly, Year: 2025, Index: 3})
		assert.True(t, ok)
	})

	t.Run("before validFrom not applicable", func(t *testing.T) {
		_, ok := DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceMonthly, Year: 2024, Index: 12})
		assert.False(t, ok)
	})

	t.Run("after validUntil not applicable", func(t *testing.T) {
		_, ok := DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceMonthly, Year: 2025, Index: 7})
		assert.False(t, ok)
	})

	t.Run("window bounds are inclusive", func(t *testing.T) {
		bounded := Rule{
			Recurrence: domain.RecurrenceMonthly,
			DueDay:     15,
			ValidFrom:  datePtr(2025, time.March, 15),
			ValidUntil: datePtr(2025, time.March, 15),
		}
		due, ok := DueDate(bounded, domain.PeriodAnchor{Recurrence: domain.RecurrenceMonthly, Year: 2025, Index: 3})
		require.True(t, ok)
		assert.Equal(t, date(2025, time.March, 15), due)
	})
}

func TestDueDateMismatchedAnchor(t *testing.T) {
	rule := Rule{Recurrence: domain.RecurrenceMonthly, DueDay: 15}
	_, ok := DueDate(rule, domain.PeriodAnchor{Recurrence: domain.RecurrenceQuarterly, Year: 2025, Index: 1})
	assert.False(t, ok)
}

func TestValidateRule(t *testing.T) {
	valid := []Rule{
		{Recurrence: domain.RecurrenceDaily},
		{Recurrence: domain.RecurrenceWeekly},
		{Recurrence: domain.RecurrenceMonthly, DueDay: 31},
		{Recurrence: domain.RecurrenceQuarterly, DueDay: 10, DueMonth: 3},
		{Recurrence: domain.RecurrenceSemiannual, DueDay: 1, DueMonth: 6},
		{Recurrence: domain.RecurrenceAnnual, DueDay: 29, DueMonth: 2},
	}
	for _, r := range valid {
		assert.NoError(t, ValidateRule(r), r.Recurrence)
	}

	invalid := []Rule{
		{Recurrence: domain.Recurrence("fortnightly")},
		{Recurrence: domain.RecurrenceDaily, DueDay: 1},
		{Recurrence: domain.RecurrenceMonthly, DueDay: 0},
		{Recurrence: domain.RecurrenceMonthly, DueDay: 32},
		{Recurrence: domain.RecurrenceMonthly, DueDay: 15, DueMonth: 2},
		{Recurrence: domain.RecurrenceQuarterly, DueDay: 10, DueMonth: 4},
		{Recurrence: domain.RecurrenceQuarterly, DueDay: 10, DueMonth: 0},
		{Recurrence: domain.RecurrenceSemiannual, DueDay: 10, DueMonth: 7},
		{Recurrence: domain.RecurrenceAnnual, DueDay: 10, DueMonth: 13},
	}
	for _, r := range invalid {
		err := ValidateRule(r)
		require.Error(t, err, "%+v", r)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRecurrence), "%+v", r)
	}

	t.Run("reversed validity window", func(t *testing.T) {
		r := Rule{
			Recurrence: domain.RecurrenceMonthly,
			DueDay:     15,
			ValidFrom:  datePtr(2025, time.June, 1),
			ValidUntil: datePtr(2025, time.January, 1),
		}
		err := ValidateRule(r)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestDeadline(t *testing.T) {
	due := date(2025, time.March, 15)
	assert.Equal(t, date(2025, time.March, 18), Deadline(due, 3))
	assert.Equal(t, due, Deadline(due, 0))
}
