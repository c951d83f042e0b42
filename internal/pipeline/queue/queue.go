package queue

import (
	"context"
	"log"
	"sync"
	"time"

	"eventscout-backend/internal/event/domain"
)

// Job kinds processed by the pipeline worker.
const (
	KindSyncInbox = "sync_inbox_once"
	KindExtract   = "extract_and_materialize"
	kindShutdown  = "shutdown"
)

// Job is a unit of pipeline work. Jobs are transient: created by a
// trigger (HTTP, push notification, periodic loop) or by a stage
// chaining the next one, consumed exactly once, never persisted.
type Job struct {
	Kind   string
	UserID string

	// Extraction payload, set for KindExtract jobs: the Stage-1/2
	// survivors plus the newest (received_at, message_id) seen among
	// filter-rejected messages so the cursor can move past them.
	Candidates []domain.CandidateEmail
	RejectedAt *time.Time
	RejectedID string

	// Sync payload.
	MaxResults int
}

// Handler processes one job. Errors are logged and the job is dropped;
// there is no requeue.
type Handler func(ctx context.Context, job Job) error

// Queue is a single-consumer in-process job queue. One worker
// goroutine processes jobs strictly in enqueue order, which serializes
// all pipeline database writes without explicit locking. Stop enqueues
// a shutdown sentinel and waits, so an in-flight job and everything
// queued before Stop finish before the process exits.
type Queue struct {
	jobs    chan Job
	handler Handler

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

func New(size int, handler Handler) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		jobs:    make(chan Job, size),
		handler: handler,
		done:    make(chan struct{}),
	}
}

// Start launches the worker goroutine. Safe to call once.
func (q *Queue) Start() {
	q.startOnce.Do(func() {
		go q.run()
	})
}

// Enqueue submits a job. Returns false when the queue is full; callers
// treat a full queue as backpressure and drop the trigger, since every
// trigger is re-issuable (periodic loops fire again, push
// notifications are redelivered).
func (q *Queue) Enqueue(job Job) bool {
	select {
	case q.jobs <- job:
		return true
	default:
		log.Printf("[Queue] full, dropping %s job for user %s", job.Kind, job.UserID)
		return false
	}
}

// Stop drains the queue gracefully: a sentinel job goes in behind
// everything already queued, and Stop blocks until the worker consumes
// it. No in-flight work is cancelled.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() {
		q.jobs <- Job{Kind: kindShutdown}
	})
	<-q.done
}

func (q *Queue) run() {
	for job := range q.jobs {
		if job.Kind == kindShutdown {
			close(q.done)
			return
		}
		q.process(job)
	}
}

func (q *Queue) process(job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Queue] panic in %s job for user %s: %v", job.Kind, job.UserID, r)
		}
	}()

	start := time.Now()
	if err := q.handler(context.Background(), job); err != nil {
		log.Printf("[Queue] %s job for user %s failed after %s: %v", job.Kind, job.UserID, time.Since(start).Round(time.Millisecond), err)
		return
	}
	log.Printf("[Queue] %s job for user %s done in %s", job.Kind, job.UserID, time.Since(start).Round(time.Millisecond))
}

// SchedulePeriodic enqueues a sync job for the user every interval
// until ctx is cancelled. The loop holds no state; cancelling it mid-
// sleep loses nothing.
func (q *Queue) SchedulePeriodic(ctx context.Context, userID string, interval time.Duration, maxResults int) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.Enqueue(Job{Kind: KindSyncInbox, UserID: userID, MaxResults: maxResults})
			}
		}
	}()
}
