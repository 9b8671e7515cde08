package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	occmodels "obligo/internal/occurrence/models"
	"obligo/pkg/domain"
)

// The canonical deadline used throughout: due 2025-03-15 plus 3 grace days.
var deadline = time.Date(2025, time.March, 18, 0, 0, 0, 0, time.UTC)

func unsubmitted() *occmodels.Occurrence {
	return &occmodels.Occurrence{
		ID:             domain.NewOccurrenceID(),
		DefinitionCode: "REP-010",
		PeriodLabel:    "2025-03",
		DueDate:        deadline.AddDate(0, 0, -3),
		Deadline:       deadline,
	}
}

func submitted(at time.Time) *occmodels.Occurrence {
	occ := unsubmitted()
	occ.Submission = &occmodels.Submission{
		Payload:     domain.PayloadRef{FileRef: "blob://report.pdf"},
		SubmittedBy: "user:ana.perez",
		SubmittedAt: at,
	}
	return occ
}

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 12, 0, 0, 0, time.UTC)
}

func TestDueAlerts(t *testing.T) {
	none := map[Tier]bool{}

	tests := []struct {
		name  string
		occ   *occmodels.Occurrence
		now   time.Time
		fired map[Tier]bool
		want  []Tier
	}{
		{
			name:  "far before deadline nothing fires",
			occ:   unsubmitted(),
			now:   day(1),
			fired: none,
			want:  nil,
		},
		{
			name:  "seven days out fires approaching_7d",
			occ:   unsubmitted(),
			now:   day(11),
			fired: none,
			want:  []Tier{TierApproaching7d},
		},
		{
			name:  "one day out fires both approaching tiers",
			occ:   unsubmitted(),
			now:   day(17),
			fired: none,
			want:  []Tier{TierApproaching7d, TierApproaching1d},
		},
		{
			name:  "deadline day fires no overdue yet",
			occ:   unsubmitted(),
			now:   day(18),
			fired: map[Tier]bool{TierApproaching7d: true, TierApproaching1d: true},
			want:  nil,
		},
		{
			name:  "past deadline fires overdue",
			occ:   unsubmitted(),
			now:   day(19),
			fired: map[Tier]bool{TierApproaching7d: true, TierApproaching1d: true},
			want:  []Tier{TierOverdue},
		},
		{
			name:  "missed evaluation runs catch up all tiers",
			occ:   unsubmitted(),
			now:   day(20),
			fired: none,
			want:  []Tier{TierApproaching7d, TierApproaching1d, TierOverdue},
		},
		{
			name:  "previously fired tiers are suppressed",
			occ:   unsubmitted(),
			now:   day(20),
			fired: map[Tier]bool{TierApproaching7d: true, TierOverdue: true},
			want:  []Tier{TierApproaching1d},
		},
		{
			name:  "all fired nothing re-emits",
			occ:   unsubmitted(),
			now:   day(25),
			fired: map[Tier]bool{TierApproaching7d: true, TierApproaching1d: true, TierOverdue: true},
			want:  nil,
		},
		{
			name:  "submitted fires nothing regardless of now",
			occ:   submitted(day(16)),
			now:   day(25),
			fired: none,
			want:  nil,
		},
		{
			name:  "late submission discards unfired tiers",
			occ:   submitted(day(21)),
			now:   day(21),
			fired: map[Tier]bool{TierApproaching7d: true},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DueAlerts(tt.occ, tt.now, tt.fired))
		})
	}
}

func TestDueAlertsIsPure(t *testing.T) {
	occ := unsubmitted()
	fired := map[Tier]bool{TierApproaching7d: true}

	first := DueAlerts(occ, day(20), fired)
	second := DueAlerts(occ, day(20), fired)

	assert.Equal(t, first, second)
	assert.Equal(t, map[Tier]bool{TierApproaching7d: true}, fired, "input set is not mutated")
	assert.Nil(t, occ.Submission)
}

func TestActivationTime(t *testing.T) {
	assert.Equal(t, time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC),
		TierApproaching7d.ActivationTime(deadline))
	assert.Equal(t, time.Date(2025, time.March, 17, 0, 0, 0, 0, time.UTC),
		TierApproaching1d.ActivationTime(deadline))
	assert.Equal(t, time.Date(2025, time.March, 19, 0, 0, 0, 0, time.UTC),
		TierOverdue.ActivationTime(deadline))
}

func TestParseTier(t *testing.T) {
	for _, tier := range Tiers {
		parsed, err := ParseTier(string(tier))
		assert.NoError(t, err)
		assert.Equal(t, tier, parsed)
	}
	_, err := ParseTier("urgent")
	assert.Error(t, err)
}
