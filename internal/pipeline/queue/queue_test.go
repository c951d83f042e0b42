package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu   sync.Mutex
	jobs []Job
}

func (r *recorder) handle(ctx context.Context, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job)
	return nil
}

func (r *recorder) seen() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Job(nil), r.jobs...)
}

func TestQueueProcessesInOrder(t *testing.T) {
	rec := &recorder{}
	q := New(16, rec.handle)
	q.Start()

	for i := 0; i < 5; i++ {
		if !q.Enqueue(Job{Kind: KindSyncInbox, UserID: "u1", MaxResults: i}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	q.Stop()

	jobs := rec.seen()
	if len(jobs) != 5 {
		t.Fatalf("processed %d jobs, want 5", len(jobs))
	}
	for i, job := range jobs {
		if job.MaxResults != i {
			t.Errorf("job %d out of order: %+v", i, job)
		}
	}
}

func TestQueueStopDrainsPendingJobs(t *testing.T) {
	var processed int
	var mu sync.Mutex
	q := New(16, func(ctx context.Context, job Job) error {
		time.Sleep(10 * time.Millisecond)
		mu.Lock()
		processed++
		mu.Unlock()
		return nil
	})
	q.Start()

	for i := 0; i < 4; i++ {
		q.Enqueue(Job{Kind: KindSyncInbox, UserID: "u1"})
	}
	q.Stop()

	mu.Lock()
	defer mu.Unlock()
	if processed != 4 {
		t.Errorf("Stop returned with %d/4 jobs processed", processed)
	}
}

func TestQueueSurvivesPanickingJob(t *testing.T) {
	rec := &recorder{}
	q := New(16, func(ctx context.Context, job Job) error {
		if job.UserID == "boom" {
			panic("handler exploded")
		}
		return rec.handle(ctx, job)
	})
	q.Start()

	q.Enqueue(Job{Kind: KindSyncInbox, UserID: "boom"})
	q.Enqueue(Job{Kind: KindSyncInbox, UserID: "u2"})
	q.Stop()

	jobs := rec.seen()
	if len(jobs) != 1 || jobs[0].UserID != "u2" {
		t.Errorf("worker did not continue past panic: %+v", jobs)
	}
}

func TestQueueEnqueueRejectsWhenFull(t *testing.T) {
	q := New(1, func(ctx context.Context, job Job) error { return nil })
	// Worker not started, so the buffer fills.

	if !q.Enqueue(Job{Kind: KindSyncInbox}) {
		t.Fatal("first enqueue should fit")
	}
	if q.Enqueue(Job{Kind: KindSyncInbox}) {
		t.Error("second enqueue should report backpressure")
	}
}

func TestSchedulePeriodicStopsOnCancel(t *testing.T) {
	rec := &recorder{}
	q := New(64, rec.handle)
	q.Start()

	ctx, cancel := context.WithCancel(context.Background())
	q.SchedulePeriodic(ctx, "u1", 5*time.Millisecond, 10)

	time.Sleep(30 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	before := len(rec.seen())
	if before == 0 {
		t.Fatal("periodic loop never fired")
	}
	time.Sleep(30 * time.Millisecond)
	if after := len(rec.seen()); after != before {
		t.Errorf("loop still enqueueing after cancel: %d -> %d", before, after)
	}
}
