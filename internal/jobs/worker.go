package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"lms/internal/database"
)

type JobHandler interface {
	Handle(ctx context.Context, job *Job) error
}

type JobHandlerFunc func(ctx context.Context, job *Job) error

func (f JobHandlerFunc) Handle(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// WorkerPool runs a small fixed number of polling workers against one Queue. Since
// this queue only ever carries engine-rebuild and cache-maintenance jobs, a single
// worker is the realistic default; the pool stays generic so a caller can size it up.
type WorkerPool struct {
	queue       *Queue
	handlers    map[string]JobHandler
	workerCount int
	logger      *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewWorkerPool(workerCount int, db *database.DB, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		queue:       NewQueue(db),
		handlers:    make(map[string]JobHandler),
		workerCount: workerCount,
		logger:      logger,
		stopCh:      make(chan struct{}),
	}
}

func (wp *WorkerPool) RegisterHandler(jobType string, handler JobHandler) {
	wp.handlers[jobType] = handler
}

func (wp *WorkerPool) Queue() *Queue {
	return wp.queue
}

func (wp *WorkerPool) Start(ctx context.Context) {
	wp.logger.Info("starting job worker pool", "workers", wp.workerCount)
	for i := 0; i < wp.workerCount; i++ {
		id := i + 1
		wp.wg.Add(1)
		go wp.run(ctx, id)
	}

	wp.wg.Add(1)
	go wp.cleanupRoutine(ctx)
}

func (wp *WorkerPool) Stop() {
	close(wp.stopCh)
	wp.wg.Wait()
}

func (wp *WorkerPool) EnqueueJob(ctx context.Context, jobType string, payload any) (*Job, error) {
	return wp.queue.Enqueue(ctx, jobType, payload)
}

func (wp *WorkerPool) run(ctx context.Context, id int) {
	defer wp.wg.Done()

	wp.logger.Info("job worker started", "worker", id)
	defer wp.logger.Info("job worker stopped", "worker", id)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wp.stopCh:
			return
		case <-ticker.C:
			if err := wp.processOne(ctx, id); err != nil {
				wp.logger.Error("job worker error", "worker", id, "error", err)
			}
		}
	}
}

func (wp *WorkerPool) processOne(ctx context.Context, workerID int) error {
	jobTypes := make([]string, 0, len(wp.handlers))
	for jobType := range wp.handlers {
		jobTypes = append(jobTypes, jobType)
	}
	if len(jobTypes) == 0 {
		return nil
	}

	job, err := wp.queue.Dequeue(ctx, jobTypes)
	if err != nil {
		return fmt.Errorf("jobs: dequeue: %w", err)
	}
	if job == nil {
		return nil
	}

	wp.logger.Info("job worker processing job", "worker", workerID, "job_id", job.ID, "job_type", job.JobType)

	handler, exists := wp.handlers[job.JobType]
	if !exists {
		return wp.queue.Fail(ctx, job.ID, fmt.Sprintf("no handler for job type: %s", job.JobType))
	}

	jobCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	start := time.Now()
	err = handler.Handle(jobCtx, job)
	duration := time.Since(start)

	if err != nil {
		wp.logger.Error("job failed", "worker", workerID, "job_id", job.ID, "duration", duration, "error", err)
		const maxAttempts = 3
		if job.Attempts < maxAttempts {
			return wp.queue.Retry(ctx, job.ID, maxAttempts)
		}
		return wp.queue.Fail(ctx, job.ID, err.Error())
	}

	wp.logger.Info("job completed", "worker", workerID, "job_id", job.ID, "duration", duration)
	return wp.queue.Complete(ctx, job.ID)
}

func (wp *WorkerPool) cleanupRoutine(ctx context.Context) {
	defer wp.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-wp.stopCh:
			return
		case <-ticker.C:
			olderThan := time.Now().Add(-24 * time.Hour)
			count, err := wp.queue.CleanupCompleted(ctx, olderThan)
			if err != nil {
				wp.logger.Error("job cleanup failed", "error", err)
			} else if count > 0 {
				wp.logger.Info("cleaned up completed jobs", "count", count)
			}
		}
	}
}

// ListenForNewJobs blocks on Postgres LISTEN "new_job" and logs each notification at
// debug level. It does not wake workers: they pick jobs up through their normal
// Dequeue call on the next poll tick.
func (wp *WorkerPool) ListenForNewJobs(ctx context.Context, db *database.DB) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("jobs: acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN new_job"); err != nil {
		return fmt.Errorf("jobs: listen: %w", err)
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wp.logger.Error("job notification wait failed", "error", err)
			continue
		}
		if notification.Channel == "new_job" {
			wp.logger.Debug("new job notification received", "payload", notification.Payload)
		}
	}
}

// NotifyNewJob sends a Postgres NOTIFY "new_job" carrying jobType. A
// ListenForNewJobs loop only logs it; workers still wait for their next poll tick.
func NotifyNewJob(ctx context.Context, db *database.DB, jobType string) error {
	_, err := db.ExecContext(ctx, "NOTIFY new_job, $1", jobType)
	return err
}
