package domain

import (
	"fmt"
	"time"

	dErrors "obligo/pkg/domain-errors"
)

// PeriodAnchor identifies one concrete period of a recurrence: a given month,
// quarter, half-year, year, ISO week, or day. Anchors are produced by external
// callers (period enumeration is a collaborator concern) and consumed by the
// due-date calculator.
//
// Canonical labels, one per period:
//
//	monthly    2025-03
//	quarterly  2025-Q1
//	semiannual 2025-H2
//	annual     2025
//	weekly     2025-W12
//	daily      2025-03-15
type PeriodAnchor struct {
	Recurrence Recurrence
	Year       int
	// Index is the 1-based period ordinal within the year: month 1..12,
	// quarter 1..4, half 1..2. Unused for ANNUAL, DAILY, WEEKLY.
	Index int
	// Day anchors DAILY (the day itself) and WEEKLY (any day of the ISO
	// week). Unused for month-granularity recurrences.
	Day time.Time
}

// Validate checks structural consistency of the anchor.
func (p PeriodAnchor) Validate() error {
	if !p.Recurrence.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unsupported recurrence: "+p.Recurrence.String())
	}
	switch p.Recurrence {
	case RecurrenceDaily, RecurrenceWeekly:
		if p.Day.IsZero() {
			return dErrors.New(dErrors.CodeInvalidInput, "daily/weekly anchors require a day")
		}
		return nil
	case RecurrenceAnnual:
		if p.Year < 1 {
			return dErrors.New(dErrors.CodeInvalidInput, "anchor year is required")
		}
		return nil
	}
	if p.Year < 1 {
		return dErrors.New(dErrors.CodeInvalidInput, "anchor year is required")
	}
	max := 12 / p.Recurrence.PeriodMonths()
	if p.Index < 1 || p.Index > max {
		return dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("anchor index %d out of range 1..%d for %s", p.Index, max, p.Recurrence))
	}
	return nil
}

// Label returns the canonical period label. Occurrences are keyed by
// (definitionCode, label), so the format is stable API.
func (p PeriodAnchor) Label() string {
	switch p.Recurrence {
	case RecurrenceMonthly:
		return fmt.Sprintf("%04d-%02d", p.Year, p.Index)
	case RecurrenceQuarterly:
		return fmt.Sprintf("%04d-Q%d", p.Year, p.Index)
	case RecurrenceSemiannual:
		return fmt.Sprintf("%04d-H%d", p.Year, p.Index)
	case RecurrenceAnnual:
		return fmt.Sprintf("%04d", p.Year)
	case RecurrenceWeekly:
		year, week := p.Day.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case RecurrenceDaily:
		return p.Day.Format("2006-01-02")
	}
	return ""
}

// FirstMonth returns the first constituent calendar month of the period.
// Only meaningful for month-granularity recurrences.
func (p PeriodAnchor) FirstMonth() time.Month {
	switch p.Recurrence {
	case RecurrenceMonthly:
		return time.Month(p.Index)
	case RecurrenceQuarterly:
		return time.Month((p.Index-1)*3 + 1)
	case RecurrenceSemiannual:
		return time.Month((p.Index-1)*6 + 1)
	default:
		return time.January
	}
}

// ParsePeriodLabel parses a canonical label back into an anchor for the given
// recurrence. The label format must match the recurrence kind.
func ParsePeriodLabel(r Recurrence, label string) (PeriodAnchor, error) {
	anchor := PeriodAnchor{Recurrence: r}
	malformed := func() (PeriodAnchor, error) {
		return PeriodAnchor{}, dErrors.New(dErrors.CodeInvalidInput,
			fmt.Sprintf("malformed %s period label: %q", r, label))
	}
	switch r {
	case RecurrenceMonthly:
		if _, err := fmt.Sscanf(label, "%04d-%02d", &anchor.Year, &anchor.Index); err != nil {
			return malformed()
		}
	case RecurrenceQuarterly:
		if _, err := fmt.Sscanf(label, "%04d-Q%d", &anchor.Year, &anchor.Index); err != nil {
			return malformed()
		}
	case RecurrenceSemiannual:
		if _, err := fmt.Sscanf(label, "%04d-H%d", &anchor.Year, &anchor.Index); err != nil {
			return malformed()
		}
	case RecurrenceAnnual:
		if _, err := fmt.Sscanf(label, "%04d", &anchor.Year); err != nil {
			return malformed()
		}
	case RecurrenceDaily:
		day, err := time.ParseInLocation("2006-01-02", label, time.UTC)
		if err != nil {
			return malformed()
		}
		anchor.Day = day
		anchor.Year = day.Year()
	case RecurrenceWeekly:
		var week int
		if _, err := fmt.Sscanf(label, "%04d-W%02d", &anchor.Year, &week); err != nil {
			return malformed()
		}
		if week < 1 || week > 53 {
			return malformed()
		}
		anchor.Day = isoWeekMonday(anchor.Year, week)
	default:
		return PeriodAnchor{}, dErrors.New(dErrors.CodeInvalidInput, "unsupported recurrence: "+r.String())
	}
	if err := anchor.Validate(); err != nil {
		return PeriodAnchor{}, err
	}
	if anchor.Label() != label {
		return malformed()
	}
	return anchor, nil
}

// isoWeekMonday returns the Monday of the given ISO week. January 4th is
// always in ISO week 1, so week N's Monday is week 1's Monday plus N-1 weeks.
func isoWeekMonday(year, week int) time.Time {
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 { // Sunday
		weekday = 7
	}
	monday := jan4.AddDate(0, 0, 1-weekday)
	return monday.AddDate(0, 0, (week-1)*7)
}
