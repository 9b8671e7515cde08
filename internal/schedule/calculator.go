// Package schedule computes concrete due dates from recurrence rules.
// This is pure domain logic - no I/O, no side effects. Rules are validated
// at definition write time (ValidateRule), so DueDate is total over valid
// rules and never fails, it only reports periods as not applicable.
package schedule

import (
	"fmt"
	"time"

	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
)

// Rule is the recurrence portion of an obligation definition. Services build
// it from the stored definition; the calculator treats it as immutable input.
type Rule struct {
	Recurrence domain.Recurrence
	// DueDay is the calendar day of the selected month (1..31, clamped to
	// month length). Unused for DAILY/WEEKLY.
	DueDay int
	// DueMonth selects the month: for ANNUAL the calendar month (1..12),
	// for QUARTERLY/SEMIANNUAL the 1-based constituent month of the period
	// (1..3 / 1..6). Unused for MONTHLY/DAILY/WEEKLY.
	DueMonth int
	// ValidFrom/ValidUntil bound the periods that produce occurrences,
	// inclusive on both ends. Either may be open (nil).
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// ValidateRule checks dueDay/dueMonth ranges for the recurrence kind and the
// validity-window ordering. Called when a definition is created or edited so
// invalid rules never reach the calculator.
// Errors: CodeInvalidRecurrence for parameter ranges, CodeInvalidInput for a
// reversed validity window.
func ValidateRule(r Rule) error {
	if !r.Recurrence.IsValid() {
		return dErrors.New(dErrors.CodeInvalidRecurrence, "unsupported recurrence: "+r.Recurrence.String())
	}
	invalid := func(format string, args ...any) error {
		return dErrors.New(dErrors.CodeInvalidRecurrence, fmt.Sprintf(format, args...))
	}
	switch r.Recurrence {
	case domain.RecurrenceDaily, domain.RecurrenceWeekly:
		if r.DueDay != 0 || r.DueMonth != 0 {
			return invalid("%s obligations take no dueDay/dueMonth", r.Recurrence)
		}
	case domain.RecurrenceMonthly:
		if r.DueDay < 1 || r.DueDay > 31 {
			return invalid("monthly dueDay %d out of range 1..31", r.DueDay)
		}
		if r.DueMonth != 0 {
			return invalid("monthly obligations take no dueMonth")
		}
	case domain.RecurrenceQuarterly:
		if r.DueDay < 1 || r.DueDay > 31 {
			return invalid("quarterly dueDay %d out of range 1..31", r.DueDay)
		}
		if r.DueMonth < 1 || r.DueMonth > 3 {
			return invalid("quarterly dueMonth %d out of range 1..3", r.DueMonth)
		}
	case domain.RecurrenceSemiannual:
		if r.DueDay < 1 || r.DueDay > 31 {
			return invalid("semiannual dueDay %d out of range 1..31", r.DueDay)
		}
		if r.DueMonth < 1 || r.DueMonth > 6 {
			return invalid("semiannual dueMonth %d out of range 1..6", r.DueMonth)
		}
	case domain.RecurrenceAnnual:
		if r.DueDay < 1 || r.DueDay > 31 {
			return invalid("annual dueDay %d out of range 1..31", r.DueDay)
		}
		if r.DueMonth < 1 || r.DueMonth > 12 {
			return invalid("annual dueMonth %d out of range 1..12", r.DueMonth)
		}
	}
	if r.ValidFrom != nil && r.ValidUntil != nil && r.ValidFrom.After(*r.ValidUntil) {
		return dErrors.New(dErrors.CodeInvalidInput, "validFrom must not be after validUntil")
	}
	return nil
}

// DueDate computes the due date for one period of the rule. The second
// return is false when the period produces no occurrence: the date falls
// outside [ValidFrom, ValidUntil], or the anchor's recurrence does not match
// the rule's.
//
// Day-of-month values past the end of the selected month clamp to its last
// day (dueDay=31 in April -> April 30; Feb 29 in a non-leap year -> Feb 28).
func DueDate(r Rule, anchor domain.PeriodAnchor) (time.Time, bool) {
	if anchor.Recurrence != r.Recurrence {
		return time.Time{}, false
	}

	var due time.Time
	switch r.Recurrence {
	case domain.RecurrenceDaily:
		due = dateOnly(anchor.Day)
	case domain.RecurrenceWeekly:
		due = weekMonday(anchor.Day)
	case domain.RecurrenceMonthly:
		due = clampedDate(anchor.Year, anchor.FirstMonth(), r.DueDay)
	case domain.RecurrenceQuarterly, domain.RecurrenceSemiannual:
		month := time.Month(int(anchor.FirstMonth()) + r.DueMonth - 1)
		due = clampedDate(anchor.Year, month, r.DueDay)
	case domain.RecurrenceAnnual:
		due = clampedDate(anchor.Year, time.Month(r.DueMonth), r.DueDay)
	default:
		return time.Time{}, false
	}

	if r.ValidFrom != nil && due.Before(dateOnly(*r.ValidFrom)) {
		return time.Time{}, false
	}
	if r.ValidUntil != nil && due.After(dateOnly(*r.ValidUntil)) {
		return time.Time{}, false
	}
	return due, true
}

// Deadline adds the grace period to a due date, yielding the enforceable
// deadline used for on-time/late classification.
func Deadline(dueDate time.Time, gracePeriodDays int) time.Time {
	return dueDate.AddDate(0, 0, gracePeriodDays)
}

// clampedDate builds a date clamping day to the length of the month.
func clampedDate(year int, month time.Month, day int) time.Time {
	last := lastDayOfMonth(year, month)
	if day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekMonday normalizes any day to its ISO week's Monday, the fixed weekly
// reference day.
func weekMonday(t time.Time) time.Time {
	t = dateOnly(t)
	weekday := int(t.Weekday())
	if weekday == 0 { // Sunday
		weekday = 7
	}
	return t.AddDate(0, 0, 1-weekday)
}
