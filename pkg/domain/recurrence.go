package domain

import (
	dErrors "obligo/pkg/domain-errors"
)

// Recurrence is the closed set of reporting cadences. Kind-specific
// interpretation of dueDay/dueMonth lives in internal/schedule; this type
// only carries the tag and its structural facts.
type Recurrence string

const (
	RecurrenceDaily      Recurrence = "daily"
	RecurrenceWeekly     Recurrence = "weekly"
	RecurrenceMonthly    Recurrence = "monthly"
	RecurrenceQuarterly  Recurrence = "quarterly"
	RecurrenceSemiannual Recurrence = "semiannual"
	RecurrenceAnnual     Recurrence = "annual"
)

// validRecurrences is the single source of truth for supported cadences.
var validRecurrences = map[Recurrence]bool{
	RecurrenceDaily:      true,
	RecurrenceWeekly:     true,
	RecurrenceMonthly:    true,
	RecurrenceQuarterly:  true,
	RecurrenceSemiannual: true,
	RecurrenceAnnual:     true,
}

// ParseRecurrence constructs a Recurrence from external input.
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseRecurrence(s string) (Recurrence, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "recurrence cannot be empty")
	}
	r := Recurrence(s)
	if !r.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported recurrence: "+s)
	}
	return r, nil
}

// IsValid checks whether the recurrence is one of the supported kinds.
func (r Recurrence) IsValid() bool { return validRecurrences[r] }

func (r Recurrence) String() string { return string(r) }

// PeriodMonths returns how many constituent calendar months one period of
// this recurrence spans. Zero for sub-monthly cadences.
func (r Recurrence) PeriodMonths() int {
	switch r {
	case RecurrenceMonthly:
		return 1
	case RecurrenceQuarterly:
		return 3
	case RecurrenceSemiannual:
		return 6
	case RecurrenceAnnual:
		return 12
	default:
		return 0
	}
}
