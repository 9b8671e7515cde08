package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"obligo/internal/occurrence/models"
	"obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

// PostgresStore persists occurrences in PostgreSQL. The invariants live in
// the schema: a unique index on (definition_code, period_label) makes ensure
// idempotent under concurrency, and SetSubmission's guarded UPDATE makes the
// submission single-fire.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) CreateIfAbsent(ctx context.Context, occ *models.Occurrence) (*models.Occurrence, bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO occurrences (id, definition_code, period_label, due_date, deadline, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (definition_code, period_label) DO NOTHING
	`,
		uuid.UUID(occ.ID),
		occ.DefinitionCode.String(),
		occ.PeriodLabel,
		occ.DueDate,
		occ.Deadline,
		occ.CreatedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert occurrence: %w", err)
	}

	created := tag.RowsAffected() == 1
	// Read back the winning row either way; a concurrent ensure may have
	// materialized it first.
	winner, err := s.FindByDefinitionAndPeriod(ctx, occ.DefinitionCode, occ.PeriodLabel)
	if err != nil {
		return nil, false, err
	}
	return winner, created, nil
}

const occurrenceColumns = `
	id, definition_code, period_label, due_date, deadline, created_at,
	submitted_at, submitted_by, submitted_file_ref, submitted_link_url,
	submitted_evidence_link, submitted_note
`

func (s *PostgresStore) FindByID(ctx context.Context, id domain.OccurrenceID) (*models.Occurrence, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE id = $1`,
		uuid.UUID(id),
	)
	occ, err := scanOccurrence(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find occurrence: %w", err)
	}
	if err := s.attachCorrections(ctx, []*models.Occurrence{occ}); err != nil {
		return nil, err
	}
	return occ, nil
}

func (s *PostgresStore) FindByDefinitionAndPeriod(ctx context.Context, code domain.DefinitionCode, periodLabel string) (*models.Occurrence, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences WHERE definition_code = $1 AND period_label = $2`,
		code.String(), periodLabel,
	)
	occ, err := scanOccurrence(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find occurrence by period: %w", err)
	}
	if err := s.attachCorrections(ctx, []*models.Occurrence{occ}); err != nil {
		return nil, err
	}
	return occ, nil
}

// SetSubmission is a compare-and-set on submitted_at IS NULL. Exactly one of
// any number of concurrent submitters sees RowsAffected == 1.
func (s *PostgresStore) SetSubmission(ctx context.Context, id domain.OccurrenceID, sub models.Submission) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE occurrences SET
			submitted_at = $2, submitted_by = $3,
			submitted_file_ref = $4, submitted_link_url = $5,
			submitted_evidence_link = $6, submitted_note = $7
		WHERE id = $1 AND submitted_at IS NULL
	`,
		uuid.UUID(id),
		sub.SubmittedAt,
		sub.SubmittedBy.String(),
		sub.Payload.FileRef,
		sub.Payload.LinkURL,
		sub.EvidenceLinkRef,
		sub.Note,
	)
	if err != nil {
		return fmt.Errorf("set submission: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM occurrences WHERE id = $1)`, uuid.UUID(id),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check occurrence exists: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

// AppendCorrection serializes writers per occurrence with a row lock so
// sequence numbers are gapless and strictly increasing.
func (s *PostgresStore) AppendCorrection(ctx context.Context, id domain.OccurrenceID, corr models.Correction) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin correction: %w", err)
	}
	defer tx.Rollback(ctx)

	var submittedAt *time.Time
	err = tx.QueryRow(ctx,
		`SELECT submitted_at FROM occurrences WHERE id = $1 FOR UPDATE`,
		uuid.UUID(id),
	).Scan(&submittedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("lock occurrence: %w", err)
	}
	if submittedAt == nil {
		return 0, sentinel.ErrInvalidState
	}

	var seq int
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM corrections WHERE occurrence_id = $1`,
		uuid.UUID(id),
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next correction seq: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO corrections (occurrence_id, seq, file_ref, link_url, reason, corrected_by, corrected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		uuid.UUID(id),
		seq,
		corr.Payload.FileRef,
		corr.Payload.LinkURL,
		corr.Reason,
		corr.CorrectedBy.String(),
		corr.CorrectedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert correction: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit correction: %w", err)
	}
	return seq, nil
}

func (s *PostgresStore) ListByDefinition(ctx context.Context, code domain.DefinitionCode) ([]*models.Occurrence, error) {
	return s.listWhere(ctx,
		`WHERE definition_code = $1 ORDER BY due_date, period_label`,
		code.String(),
	)
}

func (s *PostgresStore) ListUnsubmitted(ctx context.Context) ([]*models.Occurrence, error) {
	return s.listWhere(ctx, `WHERE submitted_at IS NULL ORDER BY deadline`)
}

func (s *PostgresStore) ListByDueDateRange(ctx context.Context, from, to time.Time) ([]*models.Occurrence, error) {
	return s.listWhere(ctx,
		`WHERE due_date >= $1 AND due_date <= $2 ORDER BY due_date, period_label`,
		from, to,
	)
}

func (s *PostgresStore) listWhere(ctx context.Context, clause string, args ...any) ([]*models.Occurrence, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+occurrenceColumns+` FROM occurrences `+clause, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	defer rows.Close()

	var occs []*models.Occurrence
	for rows.Next() {
		occ, err := scanOccurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan occurrence: %w", err)
		}
		occs = append(occs, occ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate occurrences: %w", err)
	}
	if err := s.attachCorrections(ctx, occs); err != nil {
		return nil, err
	}
	return occs, nil
}

func (s *PostgresStore) attachCorrections(ctx context.Context, occs []*models.Occurrence) error {
	if len(occs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(occs))
	byID := make(map[domain.OccurrenceID]*models.Occurrence, len(occs))
	for i, occ := range occs {
		ids[i] = uuid.UUID(occ.ID)
		byID[occ.ID] = occ
	}

	rows, err := s.pool.Query(ctx, `
		SELECT occurrence_id, seq, file_ref, link_url, reason, corrected_by, corrected_at
		FROM corrections
		WHERE occurrence_id = ANY($1)
		ORDER BY occurrence_id, seq
	`, ids)
	if err != nil {
		return fmt.Errorf("list corrections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			occID       uuid.UUID
			corr        models.Correction
			correctedBy string
		)
		err := rows.Scan(&occID, &corr.Seq, &corr.Payload.FileRef, &corr.Payload.LinkURL,
			&corr.Reason, &correctedBy, &corr.CorrectedAt)
		if err != nil {
			return fmt.Errorf("scan correction: %w", err)
		}
		corr.CorrectedBy = domain.ActorRef(correctedBy)
		if occ, ok := byID[domain.OccurrenceID(occID)]; ok {
			occ.Corrections = append(occ.Corrections, corr)
		}
	}
	return rows.Err()
}

func scanOccurrence(row pgx.Row) (*models.Occurrence, error) {
	var (
		occ          models.Occurrence
		id           uuid.UUID
		code         string
		submittedAt  *time.Time
		submittedBy  *string
		fileRef      *string
		linkURL      *string
		evidenceLink *string
		note         *string
	)
	err := row.Scan(
		&id,
		&code,
		&occ.PeriodLabel,
		&occ.DueDate,
		&occ.Deadline,
		&occ.CreatedAt,
		&submittedAt,
		&submittedBy,
		&fileRef,
		&linkURL,
		&evidenceLink,
		&note,
	)
	if err != nil {
		return nil, err
	}
	occ.ID = domain.OccurrenceID(id)
	occ.DefinitionCode = domain.DefinitionCode(code)
	if submittedAt != nil {
		sub := models.Submission{SubmittedAt: *submittedAt}
		if submittedBy != nil {
			sub.SubmittedBy = domain.ActorRef(*submittedBy)
		}
		if fileRef != nil {
			sub.Payload.FileRef = *fileRef
		}
		if linkURL != nil {
			sub.Payload.LinkURL = *linkURL
		}
		if evidenceLink != nil {
			sub.EvidenceLinkRef = *evidenceLink
		}
		if note != nil {
			sub.Note = *note
		}
		occ.Submission = &sub
	}
	return &occ, nil
}
