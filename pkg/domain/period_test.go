package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "obligo/pkg/domain-errors"
)

func TestPeriodAnchorLabel(t *testing.T) {
	cases := []struct {
		name   string
		anchor PeriodAnchor
		want   string
	}{
		{"monthly", PeriodAnchor{Recurrence: RecurrenceMonthly, Year: 2025, Index: 3}, "2025-03"},
		{"quarterly", PeriodAnchor{Recurrence: RecurrenceQuarterly, Year: 2025, Index: 1}, "2025-Q1"},
		{"semiannual", PeriodAnchor{Recurrence: RecurrenceSemiannual, Year: 2025, Index: 2}, "2025-H2"},
		{"annual", PeriodAnchor{Recurrence: RecurrenceAnnual, Year: 2025}, "2025"},
		{"daily", PeriodAnchor{Recurrence: RecurrenceDaily, Day: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)}, "2025-03-15"},
		{"weekly", PeriodAnchor{Recurrence: RecurrenceWeekly, Day: time.Date(2025, 3, 18, 0, 0, 0, 0, time.UTC)}, "2025-W12"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.anchor.Label())
		})
	}
}

func TestParsePeriodLabelRoundTrip(t *testing.T) {
	cases := []struct {
		rec   Recurrence
		label string
	}{
		{RecurrenceMonthly, "2025-03"},
		{RecurrenceMonthly, "2025-12"},
		{RecurrenceQuarterly, "2025-Q4"},
		{RecurrenceSemiannual, "2025-H1"},
		{RecurrenceAnnual, "2025"},
		{RecurrenceDaily, "2025-02-28"},
		{RecurrenceWeekly, "2025-W01"},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			anchor, err := ParsePeriodLabel(tc.rec, tc.label)
			require.NoError(t, err)
			assert.Equal(t, tc.label, anchor.Label())
		})
	}
}

func TestParsePeriodLabelRejectsMalformed(t *testing.T) {
	cases := []struct {
		rec   Recurrence
		label string
	}{
		{RecurrenceMonthly, "2025-13"},
		{RecurrenceMonthly, "2025-Q1"},
		{RecurrenceQuarterly, "2025-Q5"},
		{RecurrenceSemiannual, "2025-H3"},
		{RecurrenceAnnual, "not-a-year"},
		{RecurrenceDaily, "2025-02-30"},
		{RecurrenceWeekly, "2025-W60"},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			_, err := ParsePeriodLabel(tc.rec, tc.label)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestIsoWeekMonday(t *testing.T) {
	// 2025-W12 runs Mon Mar 17 .. Sun Mar 23.
	anchor, err := ParsePeriodLabel(RecurrenceWeekly, "2025-W12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 17, 0, 0, 0, 0, time.UTC), anchor.Day)
	assert.Equal(t, time.Monday, anchor.Day.Weekday())
}

func TestFirstMonth(t *testing.T) {
	assert.Equal(t, time.July, PeriodAnchor{Recurrence: RecurrenceQuarterly, Year: 2025, Index: 3}.FirstMonth())
	assert.Equal(t, time.July, PeriodAnchor{Recurrence: RecurrenceSemiannual, Year: 2025, Index: 2}.FirstMonth())
	assert.Equal(t, time.March, PeriodAnchor{Recurrence: RecurrenceMonthly, Year: 2025, Index: 3}.FirstMonth())
}

func TestPayloadRefValidate(t *testing.T) {
	t.Run("file only is valid", func(t *testing.T) {
		require.NoError(t, PayloadRef{FileRef: "blob://reports/r1.pdf"}.Validate())
	})
	t.Run("link only is valid", func(t *testing.T) {
		require.NoError(t, PayloadRef{LinkURL: "https://portal.example/filing/9"}.Validate())
	})
	t.Run("both rejected", func(t *testing.T) {
		err := PayloadRef{FileRef: "f", LinkURL: "l"}.Validate()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
	t.Run("neither rejected", func(t *testing.T) {
		err := PayloadRef{}.Validate()
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}
