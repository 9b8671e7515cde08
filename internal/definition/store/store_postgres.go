package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"obligo/internal/definition/models"
	"obligo/pkg/domain"
	"obligo/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// PostgresStore persists definitions in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, def *models.Definition) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO definitions (
			code, name, entity_ref, recurrence, due_day, due_month,
			grace_period_days, valid_from, valid_until,
			preparer_ref, supervisor_ref, active, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		def.Code.String(),
		def.Name,
		string(def.EntityRef),
		def.Recurrence.String(),
		def.DueDay,
		def.DueMonth,
		def.GracePeriodDays,
		def.ValidFrom,
		def.ValidUntil,
		def.PreparerRef.String(),
		def.SupervisorRef.String(),
		def.Active,
		def.CreatedAt,
		def.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert definition: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, def *models.Definition) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE definitions SET
			name = $2, entity_ref = $3, recurrence = $4, due_day = $5,
			due_month = $6, grace_period_days = $7, valid_from = $8,
			valid_until = $9, preparer_ref = $10, supervisor_ref = $11,
			active = $12, updated_at = $13
		WHERE code = $1
	`,
		def.Code.String(),
		def.Name,
		string(def.EntityRef),
		def.Recurrence.String(),
		def.DueDay,
		def.DueMonth,
		def.GracePeriodDays,
		def.ValidFrom,
		def.ValidUntil,
		def.PreparerRef.String(),
		def.SupervisorRef.String(),
		def.Active,
		def.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update definition: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const definitionColumns = `
	code, name, entity_ref, recurrence, due_day, due_month,
	grace_period_days, valid_from, valid_until,
	preparer_ref, supervisor_ref, active, created_at, updated_at
`

func (s *PostgresStore) FindByCode(ctx context.Context, code domain.DefinitionCode) (*models.Definition, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+definitionColumns+` FROM definitions WHERE code = $1`,
		code.String(),
	)
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find definition: %w", err)
	}
	return def, nil
}

func (s *PostgresStore) List(ctx context.Context, includeInactive bool) ([]*models.Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM definitions`
	if !includeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY code`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	var defs []*models.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan definition: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definitions: %w", err)
	}
	return defs, nil
}

func scanDefinition(row pgx.Row) (*models.Definition, error) {
	var (
		def           models.Definition
		code          string
		entityRef     string
		recurrence    string
		preparerRef   string
		supervisorRef string
	)
	err := row.Scan(
		&code,
		&def.Name,
		&entityRef,
		&recurrence,
		&def.DueDay,
		&def.DueMonth,
		&def.GracePeriodDays,
		&def.ValidFrom,
		&def.ValidUntil,
		&preparerRef,
		&supervisorRef,
		&def.Active,
		&def.CreatedAt,
		&def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	def.Code = domain.DefinitionCode(code)
	def.EntityRef = domain.EntityRef(entityRef)
	def.Recurrence = domain.Recurrence(recurrence)
	def.PreparerRef = domain.ActorRef(preparerRef)
	def.SupervisorRef = domain.ActorRef(supervisorRef)
	return &def, nil
}
