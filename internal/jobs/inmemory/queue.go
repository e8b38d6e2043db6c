package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/family-ledger/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var errQueueClosed = errors.New("queue is closed")

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Jobs do not survive a restart; it suits a single-instance deployment.
type Queue struct {
	jobChan    chan *jobs.SyncJob
	closeChan  chan struct{}
	wg         sync.WaitGroup
	mu         sync.RWMutex
	store      jobs.JobStore
	closed     bool
	workers    int
	maxRetries int
	backoff    time.Duration
	log        zerolog.Logger
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishSync blocks.
func NewQueue(bufferSize, workers, maxRetries int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		jobChan:    make(chan *jobs.SyncJob, bufferSize),
		closeChan:  make(chan struct{}),
		store:      store,
		workers:    workers,
		maxRetries: maxRetries,
		backoff:    time.Second,
		log:        zerolog.Nop(),
	}
}

// SetBackoff sets the base retry delay; retry n waits n times this value.
func (q *Queue) SetBackoff(d time.Duration) { q.backoff = d }

// SetLogger sets the logger used for jobs that could not be requeued.
func (q *Queue) SetLogger(log zerolog.Logger) { q.log = log }

// PublishSync implements the Publisher interface. The lock is not held while
// waiting for buffer space, so Stop never waits on a blocked publisher.
func (q *Queue) PublishSync(ctx context.Context, job *jobs.SyncJob) error {
	q.mu.RLock()
	closed := q.closed
	q.mu.RUnlock()
	if closed {
		return errQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = q.maxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("failed to save job: %w", err)
		}
	}

	select {
	case <-q.closeChan:
		q.abandon(job, errQueueClosed)
		return errQueueClosed
	default:
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		q.abandon(job, ctx.Err())
		return ctx.Err()
	case <-q.closeChan:
		q.abandon(job, errQueueClosed)
		return errQueueClosed
	}
}

// abandon marks a job that will never run as failed.
func (q *Queue) abandon(job *jobs.SyncJob, cause error) {
	job.Status = jobs.JobStatusFailed
	job.Error = cause.Error()
	if q.store != nil {
		_ = q.store.SaveJob(context.Background(), job)
	}
}

// Start implements the Consumer interface.
// The handler is called concurrently, one call per worker at a time.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return errQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}

			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job with retry logic.
func (q *Queue) processJob(ctx context.Context, job *jobs.SyncJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	err := runHandler(ctx, handler, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	retry := false
	if err != nil {
		job.Error = err.Error()
		if job.RetryCount < job.MaxRetries {
			job.RetryCount++
			job.Status = jobs.JobStatusRetrying
			retry = true
		} else {
			job.Status = jobs.JobStatusFailed
		}
	} else {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
	}

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	if retry {
		next := *job
		next.Status = jobs.JobStatusPending
		next.StartedAt = nil
		next.CompletedAt = nil
		time.AfterFunc(time.Duration(job.RetryCount)*q.backoff, func() {
			if err := q.PublishSync(ctx, &next); err != nil {
				q.log.Error().Err(err).
					Str("job_id", next.JobID).
					Int("retry", next.RetryCount).
					Msg("Could not requeue job, marking it failed")
				q.abandon(&next, err)
			}
		})
	}
}

// runHandler turns a handler panic into a job error.
func runHandler(ctx context.Context, handler jobs.JobHandler, job jobs.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

// Stop implements the Consumer interface. Jobs being handled run to
// completion; jobs still buffered are marked failed.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case job := <-q.jobChan:
			q.abandon(job, errQueueClosed)
		default:
			return nil
		}
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
