// Package jobs is a small Postgres-backed queue for the two pieces of work that
// run outside a scan: recommendation engine retraining (slow, CPU-bound SOM
// training requested through the API, which shouldn't block the HTTP request) and
// periodic artwork-cache statistics logging. It is not a general task runner;
// transcoding and metadata extraction stay external collaborators.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"lms/internal/database"
)

const (
	JobTypeEngineRebuild    = "engine_rebuild"
	JobTypeCacheMaintenance = "cache_maintenance"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Job mirrors one row of the job_queue table. Payload is kept as raw JSON and
// decoded into PayloadData by the Queue once its job type is known.
type Job struct {
	ID          int64
	JobType     string
	Payload     []byte
	Status      string
	CreatedAt   time.Time
	ProcessedAt *time.Time
	Attempts    int
	LastError   *string

	PayloadData any
}

// EngineRebuildPayload requests a recommendation engine reload.
type EngineRebuildPayload struct {
	Force bool `json:"force"`
}

// CacheMaintenancePayload carries no parameters today; kept as a struct rather
// than an empty payload so a future field doesn't change the job's wire shape.
type CacheMaintenancePayload struct{}

type Queue struct {
	db *database.DB
}

func NewQueue(db *database.DB) *Queue {
	return &Queue{db: db}
}

func (q *Queue) Enqueue(ctx context.Context, jobType string, payload any) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal payload: %w", err)
	}

	const query = `
		INSERT INTO job_queue (job_type, payload, status, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, job_type, payload, status, created_at, processed_at, attempts, last_error
	`

	var job Job
	if err := q.db.QueryRowContext(ctx, query, jobType, payloadBytes, JobStatusPending).
		Scan(&job.ID, &job.JobType, &job.Payload, &job.Status, &job.CreatedAt, &job.ProcessedAt, &job.Attempts, &job.LastError); err != nil {
		return nil, fmt.Errorf("jobs: enqueue %s: %w", jobType, err)
	}

	job.PayloadData = payload
	return &job, nil
}

// Dequeue claims the oldest pending job matching jobTypes, if any, marking it
// processing inside the same transaction so two workers never race for it
// (FOR UPDATE SKIP LOCKED).
func (q *Queue) Dequeue(ctx context.Context, jobTypes []string) (*Job, error) {
	tx, err := q.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobs: begin dequeue transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const query = `
		SELECT id, job_type, payload, status, created_at, processed_at, attempts, last_error
		FROM job_queue
		WHERE status = $1 AND job_type = ANY($2)
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED
	`

	var job Job
	if err := tx.QueryRow(ctx, query, JobStatusPending, jobTypes).
		Scan(&job.ID, &job.JobType, &job.Payload, &job.Status, &job.CreatedAt, &job.ProcessedAt, &job.Attempts, &job.LastError); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("jobs: dequeue: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE job_queue SET status = $1, attempts = attempts + 1 WHERE id = $2`, JobStatusProcessing, job.ID); err != nil {
		return nil, fmt.Errorf("jobs: mark %d processing: %w", job.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("jobs: commit dequeue: %w", err)
	}

	if err := q.unmarshalPayload(&job); err != nil {
		return nil, fmt.Errorf("jobs: unmarshal payload for job %d: %w", job.ID, err)
	}

	return &job, nil
}

func (q *Queue) Complete(ctx context.Context, jobID int64) error {
	const query = `UPDATE job_queue SET status = $1, processed_at = NOW() WHERE id = $2`
	if _, err := q.db.ExecContext(ctx, query, JobStatusCompleted, jobID); err != nil {
		return fmt.Errorf("jobs: complete %d: %w", jobID, err)
	}
	return nil
}

func (q *Queue) Fail(ctx context.Context, jobID int64, errorMsg string) error {
	const query = `UPDATE job_queue SET status = $1, last_error = $2, processed_at = NOW() WHERE id = $3`
	if _, err := q.db.ExecContext(ctx, query, JobStatusFailed, errorMsg, jobID); err != nil {
		return fmt.Errorf("jobs: fail %d: %w", jobID, err)
	}
	return nil
}

// Retry resets the job to pending if it still has attempts left, otherwise fails
// it permanently.
func (q *Queue) Retry(ctx context.Context, jobID int64, maxAttempts int) error {
	const query = `
		UPDATE job_queue
		SET status = CASE WHEN attempts < $2 THEN $3 ELSE $4 END,
		    last_error = CASE WHEN attempts >= $2 THEN 'max retry attempts exceeded' ELSE last_error END
		WHERE id = $1
	`
	if _, err := q.db.ExecContext(ctx, query, jobID, maxAttempts, JobStatusPending, JobStatusFailed); err != nil {
		return fmt.Errorf("jobs: retry %d: %w", jobID, err)
	}
	return nil
}

func (q *Queue) GetJob(ctx context.Context, jobID int64) (*Job, error) {
	const query = `
		SELECT id, job_type, payload, status, created_at, processed_at, attempts, last_error
		FROM job_queue WHERE id = $1
	`
	var job Job
	if err := q.db.QueryRowContext(ctx, query, jobID).
		Scan(&job.ID, &job.JobType, &job.Payload, &job.Status, &job.CreatedAt, &job.ProcessedAt, &job.Attempts, &job.LastError); err != nil {
		return nil, fmt.Errorf("jobs: get %d: %w", jobID, err)
	}
	if err := q.unmarshalPayload(&job); err != nil {
		return nil, fmt.Errorf("jobs: unmarshal payload for job %d: %w", jobID, err)
	}
	return &job, nil
}

func (q *Queue) ListJobs(ctx context.Context, status string, limit, offset int) ([]Job, error) {
	const query = `
		SELECT id, job_type, payload, status, created_at, processed_at, attempts, last_error
		FROM job_queue
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := q.db.QueryContext(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("jobs: list: %w", err)
	}
	defer rows.Close()

	var out []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.JobType, &job.Payload, &job.Status, &job.CreatedAt, &job.ProcessedAt, &job.Attempts, &job.LastError); err != nil {
			return nil, fmt.Errorf("jobs: scan: %w", err)
		}
		if err := q.unmarshalPayload(&job); err == nil {
			out = append(out, job)
		}
	}
	return out, rows.Err()
}

func (q *Queue) CleanupCompleted(ctx context.Context, olderThan time.Time) (int, error) {
	const query = `DELETE FROM job_queue WHERE status = $1 AND processed_at < $2`
	tag, err := q.db.ExecContext(ctx, query, JobStatusCompleted, olderThan)
	if err != nil {
		return 0, fmt.Errorf("jobs: cleanup completed: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (q *Queue) unmarshalPayload(job *Job) error {
	if len(job.Payload) == 0 {
		return nil
	}
	switch job.JobType {
	case JobTypeEngineRebuild:
		var p EngineRebuildPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return err
		}
		job.PayloadData = p
	case JobTypeCacheMaintenance:
		var p CacheMaintenancePayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return err
		}
		job.PayloadData = p
	}
	return nil
}
