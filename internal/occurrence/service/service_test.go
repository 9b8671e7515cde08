package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"obligo/internal/audit"
	"obligo/internal/classify"
	defmodels "obligo/internal/definition/models"
	"obligo/internal/occurrence/models"
	"obligo/internal/occurrence/service/mocks"
	"obligo/internal/occurrence/store"
	"obligo/pkg/domain"
	dErrors "obligo/pkg/domain-errors"
	"obligo/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	defs    *mocks.MockDefinitions
	trail   *audit.InMemoryStore
	store   *store.InMemoryStore
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.defs = mocks.NewMockDefinitions(s.ctrl)
	s.trail = audit.NewInMemoryStore()
	s.store = store.NewInMemoryStore()
	auditor := audit.NewService(s.trail, slog.New(slog.DiscardHandler))
	s.service = NewService(s.store, s.defs, auditor, nil)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func monthlyDef() *defmodels.Definition {
	return &defmodels.Definition{
		Code:            "REP-010",
		Name:            "Monthly liquidity report",
		EntityRef:       "regulator:cnbv",
		Recurrence:      domain.RecurrenceMonthly,
		DueDay:          15,
		GracePeriodDays: 3,
		PreparerRef:     "user:ana.perez",
		SupervisorRef:   "user:luis.gomez",
		Active:          true,
	}
}

// ctxAt builds a request context with a fixed now and an authenticated actor.
func ctxAt(now time.Time, actor string, role requestcontext.Role) context.Context {
	ctx := requestcontext.WithTime(context.Background(), now)
	return requestcontext.WithActor(ctx, actor, role)
}

func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, time.UTC)
}

func (s *ServiceSuite) TestEnsureMaterializes() {
	s.defs.EXPECT().Get(gomock.Any(), domain.DefinitionCode("REP-010")).Return(monthlyDef(), nil).Times(2)
	ctx := ctxAt(at(2025, time.March, 1, 9), "user:ana.perez", requestcontext.RolePreparer)

	first, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-03"})
	s.Require().NoError(err)
	s.Equal(at(2025, time.March, 15, 0), first.DueDate)
	s.Equal(at(2025, time.March, 18, 0), first.Deadline)
	s.Equal(classify.OutcomePending, first.Classification.Outcome)

	second, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-03"})
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID, "repeated ensure returns the same occurrence")

	events, err := s.trail.ListByOccurrence(ctx, first.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1, "only the materializing call is audited")
	s.Equal(audit.ActionOccurrenceMaterialized, events[0].Action)
}

func (s *ServiceSuite) TestEnsureUnknownDefinition() {
	s.defs.EXPECT().Get(gomock.Any(), domain.DefinitionCode("NOPE-1")).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "definition not found: NOPE-1"))

	ctx := ctxAt(at(2025, time.March, 1, 9), "user:ana.perez", requestcontext.RolePreparer)
	_, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "NOPE-1", PeriodLabel: "2025-03"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestEnsureDeactivatedDefinition() {
	def := monthlyDef()
	def.Active = false
	s.defs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(def, nil)

	ctx := ctxAt(at(2025, time.March, 1, 9), "user:ana.perez", requestcontext.RolePreparer)
	_, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-03"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotApplicable))
}

// Deactivation only stops new periods from materializing. Periods that
// already exist keep resolving through ensure, unchanged and unaudited.
func (s *ServiceSuite) TestEnsureReturnsExistingAfterDeactivation() {
	id := s.materialize()

	inactive := monthlyDef()
	inactive.Active = false
	s.defs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(inactive, nil).Times(2)

	ctx := ctxAt(at(2025, time.April, 1, 9), "user:ana.perez", requestcontext.RolePreparer)
	view, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-03"})
	s.Require().NoError(err)
	s.Equal(id, view.ID)

	// A period that never materialized stays blocked.
	_, err = s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-04"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotApplicable))

	events, err := s.trail.ListByOccurrence(context.Background(), id.String())
	s.Require().NoError(err)
	s.Len(events, 1, "re-ensure of an existing occurrence is not audited")
}

func (s *ServiceSuite) TestEnsureOutsideValidityWindow() {
	def := monthlyDef()
	validUntil := at(2025, time.February, 28, 0)
	def.ValidUntil = &validUntil
	s.defs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(def, nil)

	ctx := ctxAt(at(2025, time.March, 1, 9), "user:ana.perez", requestcontext.RolePreparer)
	_, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-03"})
	s.True(dErrors.HasCode(err, dErrors.CodeNotApplicable))
}

func (s *ServiceSuite) TestEnsureMalformedPeriodLabel() {
	s.defs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(monthlyDef(), nil)

	ctx := ctxAt(at(2025, time.March, 1, 9), "user:ana.perez", requestcontext.RolePreparer)
	_, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-Q1"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// The canonical lifecycle: materialized in March, observed overdue two days
// past the deadline, submitted three days late, corrected afterwards. The
// outcome fixes at submission and never changes again.
func (s *ServiceSuite) TestLifecycle() {
	s.defs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(monthlyDef(), nil)

	ensured, err := s.service.Ensure(
		ctxAt(at(2025, time.March, 1, 9), "user:ana.perez", requestcontext.RolePreparer),
		models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-03"},
	)
	s.Require().NoError(err)

	// Two days past the deadline, still unsubmitted.
	overdueView, err := s.service.Get(
		ctxAt(at(2025, time.March, 20, 9), "user:ana.perez", requestcontext.RolePreparer),
		ensured.ID,
	)
	s.Require().NoError(err)
	s.Equal(classify.OutcomeOverdue, overdueView.Classification.Outcome)
	s.Equal(classify.TierCritical, overdueView.Classification.Tier)
	s.Equal(-2, overdueView.Classification.DaysToDeadline)

	// Late submission on March 21.
	submitted, err := s.service.Submit(
		ctxAt(at(2025, time.March, 21, 10), "user:ana.perez", requestcontext.RolePreparer),
		ensured.ID,
		models.SubmitRequest{Payload: domain.PayloadRef{FileRef: "blob://reports/rep-010-2025-03.pdf"}},
	)
	s.Require().NoError(err)
	s.Equal(classify.OutcomeLate, submitted.Classification.Outcome)
	s.Require().NotNil(submitted.Classification.DaysDeviation)
	s.Equal(3, *submitted.Classification.DaysDeviation)

	// A correction months later leaves the outcome untouched.
	corrected, err := s.service.Correct(
		ctxAt(at(2025, time.June, 2, 15), "user:luis.gomez", requestcontext.RoleSupervisor),
		ensured.ID,
		models.CorrectRequest{
			Payload: domain.PayloadRef{FileRef: "blob://reports/rep-010-2025-03-v2.pdf"},
			Reason:  "restated liquidity figures after reconciliation",
		},
	)
	s.Require().NoError(err)
	s.Equal(classify.OutcomeLate, corrected.Classification.Outcome)
	s.Equal(3, *corrected.Classification.DaysDeviation)
	s.Require().Len(corrected.Corrections, 1)
	s.Equal(1, corrected.Corrections[0].Seq)

	events, err := s.trail.ListByOccurrence(context.Background(), ensured.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal(audit.ActionOccurrenceMaterialized, events[0].Action)
	s.Equal(audit.ActionSubmissionRecorded, events[1].Action)
	s.Equal(audit.ActionCorrectionAppended, events[2].Action)
}

func (s *ServiceSuite) TestSubmitTwice() {
	id := s.materialize()

	ctx := ctxAt(at(2025, time.March, 16, 10), "user:ana.perez", requestcontext.RolePreparer)
	_, err := s.service.Submit(ctx, id, models.SubmitRequest{
		Payload: domain.PayloadRef{LinkURL: "https://filings.example.com/rep-010"},
	})
	s.Require().NoError(err)

	_, err = s.service.Submit(ctx, id, models.SubmitRequest{
		Payload: domain.PayloadRef{FileRef: "blob://second-attempt.pdf"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeAlreadySubmitted))

	// The first submission stays authoritative.
	view, err := s.service.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal("https://filings.example.com/rep-010", view.Submission.Payload.LinkURL)
}

func (s *ServiceSuite) TestSubmitRecordsEvidenceLink() {
	id := s.materialize()
	ctx := ctxAt(at(2025, time.March, 16, 10), "user:luis.gomez", requestcontext.RoleSupervisor)

	view, err := s.service.Submit(ctx, id, models.SubmitRequest{
		Payload:         domain.PayloadRef{FileRef: "blob://rep-010-2025-03.pdf"},
		EvidenceLinkRef: "https://filings.example.com/receipts/8817",
	})
	s.Require().NoError(err)
	s.Require().NotNil(view.Submission)
	s.Equal("https://filings.example.com/receipts/8817", view.Submission.EvidenceLinkRef)

	// Corrections amend the payload; the submission record, evidence link
	// included, stays as written.
	corrected, err := s.service.Correct(ctx, id, models.CorrectRequest{
		Payload: domain.PayloadRef{FileRef: "blob://rep-010-2025-03-v2.pdf"},
		Reason:  "restated figures",
	})
	s.Require().NoError(err)
	s.Equal("https://filings.example.com/receipts/8817", corrected.Submission.EvidenceLinkRef)
}

func (s *ServiceSuite) TestSubmitPayloadValidation() {
	id := s.materialize()
	ctx := ctxAt(at(2025, time.March, 16, 10), "user:ana.perez", requestcontext.RolePreparer)

	_, err := s.service.Submit(ctx, id, models.SubmitRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest), "neither variant")

	_, err = s.service.Submit(ctx, id, models.SubmitRequest{
		Payload: domain.PayloadRef{FileRef: "blob://x", LinkURL: "https://y"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest), "both variants")
}

func (s *ServiceSuite) TestSubmitUnknownOccurrence() {
	ctx := ctxAt(at(2025, time.March, 16, 10), "user:ana.perez", requestcontext.RolePreparer)
	_, err := s.service.Submit(ctx, domain.NewOccurrenceID(), models.SubmitRequest{
		Payload: domain.PayloadRef{FileRef: "blob://x"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestCorrectBeforeSubmission() {
	id := s.materialize()
	ctx := ctxAt(at(2025, time.March, 16, 10), "user:luis.gomez", requestcontext.RoleSupervisor)

	_, err := s.service.Correct(ctx, id, models.CorrectRequest{
		Payload: domain.PayloadRef{FileRef: "blob://x"},
		Reason:  "premature",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeNotSubmitted))
}

func (s *ServiceSuite) TestCorrectRequiresSupervisor() {
	id := s.materialize()
	ctx := ctxAt(at(2025, time.March, 16, 10), "user:ana.perez", requestcontext.RolePreparer)

	_, err := s.service.Correct(ctx, id, models.CorrectRequest{
		Payload: domain.PayloadRef{FileRef: "blob://x"},
		Reason:  "fix",
	})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *ServiceSuite) TestCorrectRequiresReason() {
	id := s.materialize()
	ctx := ctxAt(at(2025, time.March, 16, 10), "user:luis.gomez", requestcontext.RoleSupervisor)
	_, err := s.service.Submit(ctx, id, models.SubmitRequest{
		Payload: domain.PayloadRef{FileRef: "blob://x"},
	})
	s.Require().NoError(err)

	_, err = s.service.Correct(ctx, id, models.CorrectRequest{
		Payload: domain.PayloadRef{FileRef: "blob://y"},
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestCorrectionSequenceIncreases() {
	id := s.materialize()
	ctx := ctxAt(at(2025, time.March, 16, 10), "user:luis.gomez", requestcontext.RoleSupervisor)
	_, err := s.service.Submit(ctx, id, models.SubmitRequest{
		Payload: domain.PayloadRef{FileRef: "blob://v1"},
	})
	s.Require().NoError(err)

	for i := 1; i <= 3; i++ {
		view, err := s.service.Correct(ctx, id, models.CorrectRequest{
			Payload: domain.PayloadRef{FileRef: "blob://v2"},
			Reason:  "amendment",
		})
		s.Require().NoError(err)
		s.Len(view.Corrections, i)
		s.Equal(i, view.Corrections[i-1].Seq)
	}
}

// An audit failure must abort the business operation.
func (s *ServiceSuite) TestAuditFailureFailsSubmission() {
	auditor := mocks.NewMockAuditor(s.ctrl)
	svc := NewService(s.store, s.defs, auditor, nil)

	id := s.materialize()
	auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("outbox unavailable"))

	ctx := ctxAt(at(2025, time.March, 16, 10), "user:ana.perez", requestcontext.RolePreparer)
	_, err := svc.Submit(ctx, id, models.SubmitRequest{
		Payload: domain.PayloadRef{FileRef: "blob://x"},
	})
	s.Require().Error(err)
}

func (s *ServiceSuite) TestPendingAndOverdueLists() {
	s.defs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(monthlyDef(), nil).Times(2)
	ctx := ctxAt(at(2025, time.April, 1, 9), "user:ana.perez", requestcontext.RolePreparer)

	march, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-03"})
	s.Require().NoError(err)
	april, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-04"})
	s.Require().NoError(err)

	pending, err := s.service.ListPending(ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(april.ID, pending[0].ID)

	overdue, err := s.service.ListOverdue(ctx)
	s.Require().NoError(err)
	s.Require().Len(overdue, 1)
	s.Equal(march.ID, overdue[0].ID)

	// Submitting removes the occurrence from both worklists.
	_, err = s.service.Submit(ctx, march.ID, models.SubmitRequest{
		Payload: domain.PayloadRef{FileRef: "blob://march.pdf"},
	})
	s.Require().NoError(err)
	overdue, err = s.service.ListOverdue(ctx)
	s.Require().NoError(err)
	s.Empty(overdue)
}

func (s *ServiceSuite) TestHistoryRange() {
	s.defs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(monthlyDef(), nil).Times(3)
	ctx := ctxAt(at(2025, time.July, 1, 9), "user:ana.perez", requestcontext.RolePreparer)

	for _, label := range []string{"2025-03", "2025-04", "2025-05"} {
		_, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: label})
		s.Require().NoError(err)
	}

	views, err := s.service.ListHistory(ctx, at(2025, time.April, 1, 0), at(2025, time.May, 31, 0))
	s.Require().NoError(err)
	s.Require().Len(views, 2)
	s.Equal("2025-04", views[0].PeriodLabel)
	s.Equal("2025-05", views[1].PeriodLabel)

	_, err = s.service.ListHistory(ctx, at(2025, time.June, 1, 0), at(2025, time.May, 1, 0))
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestConcurrentEnsure() {
	s.defs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(monthlyDef(), nil).AnyTimes()
	ctx := ctxAt(at(2025, time.March, 1, 9), "user:ana.perez", requestcontext.RolePreparer)

	const workers = 20
	ids := make([]domain.OccurrenceID, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(i int) {
			defer wg.Done()
			view, err := s.service.Ensure(ctx, models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-03"})
			s.Require().NoError(err)
			ids[i] = view.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		s.Equal(ids[0], id, "all concurrent ensures converge on one occurrence")
	}
	events, err := s.trail.ListByOccurrence(context.Background(), ids[0].String())
	s.Require().NoError(err)
	s.Len(events, 1, "exactly one materialization event")
}

func (s *ServiceSuite) TestConcurrentSubmit() {
	id := s.materialize()
	ctx := ctxAt(at(2025, time.March, 16, 10), "user:ana.perez", requestcontext.RolePreparer)

	const workers = 10
	successes := make(chan struct{}, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := s.service.Submit(ctx, id, models.SubmitRequest{
				Payload: domain.PayloadRef{FileRef: "blob://race.pdf"},
			})
			if err == nil {
				successes <- struct{}{}
			} else {
				s.True(dErrors.HasCode(err, dErrors.CodeAlreadySubmitted))
			}
		}()
	}
	wg.Wait()
	close(successes)
	s.Len(successes, 1, "exactly one submitter wins")
}

// materialize ensures the March 2025 occurrence of REP-010 and returns its ID.
func (s *ServiceSuite) materialize() domain.OccurrenceID {
	s.defs.EXPECT().Get(gomock.Any(), gomock.Any()).Return(monthlyDef(), nil)
	view, err := s.service.Ensure(
		ctxAt(at(2025, time.March, 1, 9), "user:ana.perez", requestcontext.RolePreparer),
		models.EnsureRequest{DefinitionCode: "REP-010", PeriodLabel: "2025-03"},
	)
	s.Require().NoError(err)
	return view.ID
}
