package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/review-service/internal/domain"
)

// SubmissionFilter captures listing parameters.
type SubmissionFilter struct {
	OwnerID     *string
	Statuses    []domain.SubmissionStatus
	SearchTerm  *string
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time
	Limit       int
	Offset      int
}

// SubmissionRepository is the authoritative store for submissions. Update and
// Delete are conditional on the version the caller loaded.
type SubmissionRepository interface {
	Create(ctx context.Context, sub *domain.Submission) error
	GetByID(ctx context.Context, id string) (*domain.Submission, error)
	Update(ctx context.Context, sub *domain.Submission) error
	Delete(ctx context.Context, id string, version int64) error
	ListWithFilter(ctx context.Context, filter SubmissionFilter) ([]domain.Submission, error)
}

type submissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository instantiates repository.
func NewSubmissionRepository(pool *pgxpool.Pool) SubmissionRepository {
	return &submissionRepository{pool: pool}
}

const submissionColumns = `id::text, owner_id::text, status, name, description, caps, version, created_at, updated_at`

func (r *submissionRepository) Create(ctx context.Context, sub *domain.Submission) error {
	const query = `
        INSERT INTO submissions (id, owner_id, status, name, description, caps, version, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,1,$7,$8)
        RETURNING version`
	return r.pool.QueryRow(ctx, query,
		sub.ID,
		sub.OwnerID,
		sub.Status,
		sub.Name,
		sub.Description,
		int16(sub.Caps),
		sub.CreatedAt,
		sub.UpdatedAt,
	).Scan(&sub.Version)
}

func (r *submissionRepository) Update(ctx context.Context, sub *domain.Submission) error {
	const query = `
        UPDATE submissions SET status=$1, name=$2, description=$3, caps=$4, updated_at=$5, version=version+1
        WHERE id=$6 AND version=$7
        RETURNING version`
	var version int64
	err := r.pool.QueryRow(ctx, query,
		sub.Status,
		sub.Name,
		sub.Description,
		int16(sub.Caps),
		sub.UpdatedAt,
		sub.ID,
		sub.Version,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.conflictOrMissing(ctx, sub.ID)
	}
	if err != nil {
		return err
	}
	sub.Version = version
	return nil
}

func (r *submissionRepository) Delete(ctx context.Context, id string, version int64) error {
	const query = `DELETE FROM submissions WHERE id=$1 AND version=$2`
	cmd, err := r.pool.Exec(ctx, query, id, version)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return r.conflictOrMissing(ctx, id)
	}
	return nil
}

func (r *submissionRepository) conflictOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM submissions WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: submission %s changed since it was loaded", domain.ErrConcurrentModification, id)
	}
	return domain.ErrNotFound
}

func (r *submissionRepository) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id=$1`
	sub, err := scanSubmission(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err)
	}
	return sub, nil
}

func (r *submissionRepository) ListWithFilter(ctx context.Context, filter SubmissionFilter) ([]domain.Submission, error) {
	clauses, args := filterClauses(filter)
	limit, offset := pageBounds(filter.Limit, filter.Offset)

	query := fmt.Sprintf(`SELECT %s FROM submissions WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		submissionColumns, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *sub)
	}
	return result, rows.Err()
}

func filterClauses(filter SubmissionFilter) ([]string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.OwnerID != nil {
		args = append(args, *filter.OwnerID)
		clauses = append(clauses, fmt.Sprintf("owner_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.UpdatedFrom != nil {
		args = append(args, *filter.UpdatedFrom)
		clauses = append(clauses, fmt.Sprintf("updated_at >= $%d", len(args)))
	}
	if filter.UpdatedTo != nil {
		args = append(args, *filter.UpdatedTo)
		clauses = append(clauses, fmt.Sprintf("updated_at <= $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(name) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}
	return clauses, args
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanSubmission(row pgx.Row) (*domain.Submission, error) {
	var (
		sub  domain.Submission
		caps int16
	)
	if err := row.Scan(
		&sub.ID,
		&sub.OwnerID,
		&sub.Status,
		&sub.Name,
		&sub.Description,
		&caps,
		&sub.Version,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return nil, err
	}
	sub.Caps = domain.CapabilitySet(caps)
	return &sub, nil
}
