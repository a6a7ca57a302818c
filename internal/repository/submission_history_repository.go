package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/review-service/internal/domain"
)

// SubmissionHistoryRepository stores audit entries.
type SubmissionHistoryRepository interface {
	Create(ctx context.Context, history *domain.SubmissionHistory) error
	ListBySubmission(ctx context.Context, submissionID string, limit, offset int) ([]domain.SubmissionHistory, error)
}

type submissionHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionHistoryRepository builds repository.
func NewSubmissionHistoryRepository(pool *pgxpool.Pool) SubmissionHistoryRepository {
	return &submissionHistoryRepository{pool: pool}
}

func (r *submissionHistoryRepository) Create(ctx context.Context, history *domain.SubmissionHistory) error {
	const query = `
        INSERT INTO submission_history (submission_id, actor_id, actor_role, action, event, old_status, new_status)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id::text, created_at`
	return r.pool.QueryRow(ctx, query,
		history.SubmissionID,
		history.ActorID,
		history.ActorRole,
		history.Action,
		history.Event,
		history.OldStatus,
		history.NewStatus,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *submissionHistoryRepository) ListBySubmission(ctx context.Context, submissionID string, limit, offset int) ([]domain.SubmissionHistory, error) {
	limit, offset = pageBounds(limit, offset)
	const query = `
        SELECT id::text, submission_id::text, actor_id::text, actor_role, action, event, old_status, new_status, created_at
        FROM submission_history WHERE submission_id=$1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, submissionID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SubmissionHistory
	for rows.Next() {
		var history domain.SubmissionHistory
		if err := rows.Scan(
			&history.ID,
			&history.SubmissionID,
			&history.ActorID,
			&history.ActorRole,
			&history.Action,
			&history.Event,
			&history.OldStatus,
			&history.NewStatus,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}
