package repo

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"batchforge/internal/domain"
)

// JobHistoryPG records job submissions and outcomes in PostgreSQL for audit.
// It is optional infrastructure: a nil receiver is a no-op, so the
// orchestrator runs without a database.
type JobHistoryPG struct {
	pool *pgxpool.Pool
}

// NewJobHistory creates a history recorder backed by PostgreSQL.
func NewJobHistory(pool *pgxpool.Pool) *JobHistoryPG {
	return &JobHistoryPG{pool: pool}
}

// EnsureSchema creates the history table when it does not exist yet.
func (r *JobHistoryPG) EnsureSchema(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS job_history (
    id            TEXT PRIMARY KEY,
    batch_id      TEXT NOT NULL,
    config_ref    TEXT NOT NULL,
    prompt        TEXT NOT NULL,
    priority      TEXT NOT NULL,
    status        TEXT NOT NULL,
    attempt       INT NOT NULL DEFAULT 0,
    last_error    TEXT NOT NULL DEFAULT '',
    result        TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL,
    finished_at   TIMESTAMPTZ
);
`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

// RecordSubmitted inserts one row per job of a freshly submitted batch.
func (r *JobHistoryPG) RecordSubmitted(ctx context.Context, jobs []domain.Job) error {
	if r == nil || r.pool == nil || len(jobs) == 0 {
		return nil
	}
	query := `
INSERT INTO job_history (id, batch_id, config_ref, prompt, priority, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	batch := &pgx.Batch{}
	for _, job := range jobs {
		batch.Queue(query,
			job.ID,
			job.BatchID,
			job.ConfigRef,
			job.Prompt,
			job.Priority.String(),
			job.Status,
			job.CreatedAt,
		)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// RecordOutcome updates a job row after a terminal transition.
func (r *JobHistoryPG) RecordOutcome(ctx context.Context, job domain.Job) error {
	if r == nil || r.pool == nil {
		return nil
	}
	query := `
UPDATE job_history
SET status = $2,
    attempt = $3,
    last_error = $4,
    result = $5,
    finished_at = $6
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Status,
		job.Attempt,
		job.LastError,
		job.Result,
		job.FinishedAt,
	)
	return err
}
