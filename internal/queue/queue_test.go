package queue

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"batchforge/internal/domain"
)

func newTestJob(priority domain.Priority, maxAttempts int) *domain.Job {
	return domain.NewJob("batch-1", "preset-a", "a red cat", priority, maxAttempts)
}

func TestEnqueueRejectsInvalidJobs(t *testing.T) {
	q := New(Options{})

	if err := q.Enqueue(&domain.Job{}); !errors.Is(err, domain.ErrInvalidJob) {
		t.Fatalf("expected ErrInvalidJob for missing id, got %v", err)
	}

	done := newTestJob(domain.PriorityNormal, 3)
	done.Status = domain.JobStatusCompleted
	if err := q.Enqueue(done); !errors.Is(err, domain.ErrInvalidJob) {
		t.Fatalf("expected ErrInvalidJob for terminal status, got %v", err)
	}

	job := newTestJob(domain.PriorityNormal, 3)
	if err := q.Enqueue(job); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	if err := q.Enqueue(job); !errors.Is(err, domain.ErrInvalidJob) {
		t.Fatalf("expected ErrInvalidJob for duplicate id, got %v", err)
	}
}

func TestDequeueOrdersByPriorityThenFIFO(t *testing.T) {
	q := New(Options{})

	var normal, high []string
	for i := 0; i < 10; i++ {
		j := newTestJob(domain.PriorityNormal, 3)
		normal = append(normal, j.ID)
		if err := q.Enqueue(j); err != nil {
			t.Fatalf("enqueue normal: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		j := newTestJob(domain.PriorityHigh, 3)
		high = append(high, j.ID)
		if err := q.Enqueue(j); err != nil {
			t.Fatalf("enqueue high: %v", err)
		}
	}

	for i := 0; i < 10; i++ {
		got := q.Dequeue()
		if got == nil {
			t.Fatalf("dequeue %d returned nil", i)
		}
		if got.ID != high[i] {
			t.Fatalf("dequeue %d: got %s want high job %s", i, got.ID, high[i])
		}
	}
	for i := 0; i < 10; i++ {
		got := q.Dequeue()
		if got == nil {
			t.Fatalf("dequeue normal %d returned nil", i)
		}
		if got.ID != normal[i] {
			t.Fatalf("dequeue normal %d: got %s want %s", i, got.ID, normal[i])
		}
	}
	if got := q.Dequeue(); got != nil {
		t.Fatalf("expected empty queue, got job %s", got.ID)
	}
}

func TestMarkFailedRetriesUntilExhausted(t *testing.T) {
	q := New(Options{})
	job := newTestJob(domain.PriorityNormal, 3)
	if err := q.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for attempt := 1; attempt <= 3; attempt++ {
		got := q.Dequeue()
		if got == nil {
			t.Fatalf("attempt %d: no job available", attempt)
		}
		if err := q.MarkRunning(got.ID); err != nil {
			t.Fatalf("attempt %d: MarkRunning: %v", attempt, err)
		}
		status, err := q.MarkFailed(got.ID, fmt.Errorf("backend boom %d", attempt))
		if err != nil {
			t.Fatalf("attempt %d: MarkFailed: %v", attempt, err)
		}
		want := domain.JobStatusRetrying
		if attempt == 3 {
			want = domain.JobStatusFailed
		}
		if status != want {
			t.Fatalf("attempt %d: status %s, want %s", attempt, status, want)
		}
	}

	final, err := q.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Attempt != 3 {
		t.Fatalf("attempt count = %d, want 3", final.Attempt)
	}
	if final.LastError != "backend boom 3" {
		t.Fatalf("lastError = %q", final.LastError)
	}
	if q.Dequeue() != nil {
		t.Fatalf("failed job must not be dequeued again")
	}
}

func TestRetryingJobKeepsPriority(t *testing.T) {
	q := New(Options{})
	high := newTestJob(domain.PriorityHigh, 3)
	low := newTestJob(domain.PriorityLow, 3)
	if err := q.Enqueue(high); err != nil {
		t.Fatalf("enqueue high: %v", err)
	}
	if err := q.Enqueue(low); err != nil {
		t.Fatalf("enqueue low: %v", err)
	}

	got := q.Dequeue()
	if got.ID != high.ID {
		t.Fatalf("expected high job first, got %s", got.ID)
	}
	if err := q.MarkRunning(got.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if _, err := q.MarkFailed(got.ID, errors.New("transient")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	// The retrying high job must still preempt the untouched low job.
	got = q.Dequeue()
	if got == nil || got.ID != high.ID {
		t.Fatalf("expected retrying high job to dequeue first")
	}
	if got.Status != domain.JobStatusRetrying {
		t.Fatalf("status = %s, want retrying", got.Status)
	}
}

func TestCancelSemantics(t *testing.T) {
	q := New(Options{})
	job := newTestJob(domain.PriorityNormal, 3)
	if err := q.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := q.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got := q.Dequeue(); got != nil {
		t.Fatalf("cancelled job must not dequeue, got %s", got.ID)
	}
	if err := q.Cancel(job.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cancelling a terminal job should be ErrNotFound, got %v", err)
	}
	if err := q.Cancel("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("cancelling unknown id should be ErrNotFound, got %v", err)
	}
}

func TestCancelledRunningJobOutcomeIsDiscarded(t *testing.T) {
	q := New(Options{})
	job := newTestJob(domain.PriorityNormal, 3)
	if err := q.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got := q.Dequeue()
	if err := q.MarkRunning(got.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := q.Cancel(got.ID); err != nil {
		t.Fatalf("Cancel running: %v", err)
	}

	if err := q.MarkCompleted(got.ID, "generated/x.png"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("completion of cancelled job must be rejected, got %v", err)
	}
	if _, err := q.MarkFailed(got.ID, errors.New("late failure")); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("failure of cancelled job must be rejected, got %v", err)
	}
	final, _ := q.Get(got.ID)
	if final.Status != domain.JobStatusCancelled {
		t.Fatalf("status = %s, want cancelled", final.Status)
	}
}

func TestTerminalJobNeverTransitions(t *testing.T) {
	q := New(Options{})
	job := newTestJob(domain.PriorityNormal, 1)
	if err := q.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got := q.Dequeue()
	if err := q.MarkRunning(got.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := q.MarkCompleted(got.ID, "generated/a.png"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	if err := q.MarkRunning(got.ID); err == nil {
		t.Fatalf("completed job must not run again")
	}
	if _, err := q.MarkFailed(got.ID, errors.New("nope")); err == nil {
		t.Fatalf("completed job must not fail")
	}
	if err := q.Cancel(got.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("completed job must not cancel, got %v", err)
	}
}

func TestStatsSumMatchesGetAll(t *testing.T) {
	q := New(Options{})
	for i := 0; i < 4; i++ {
		if err := q.Enqueue(newTestJob(domain.PriorityNormal, 3)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	first := q.Dequeue()
	if err := q.MarkRunning(first.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := q.MarkCompleted(first.ID, "generated/1.png"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	second := q.Dequeue()
	if err := q.Cancel(second.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	stats := q.Stats()
	sum := 0
	for _, n := range stats.ByStatus {
		sum += n
	}
	all := q.GetAll()
	if sum != len(all) || stats.Total != len(all) {
		t.Fatalf("stats sum %d / total %d, GetAll length %d", sum, stats.Total, len(all))
	}
	if stats.ByStatus[domain.JobStatusCompleted] != 1 {
		t.Fatalf("completed count = %d, want 1", stats.ByStatus[domain.JobStatusCompleted])
	}
	if stats.ByStatus[domain.JobStatusCancelled] != 1 {
		t.Fatalf("cancelled count = %d, want 1", stats.ByStatus[domain.JobStatusCancelled])
	}
}

func TestRetryReArmsFailedJob(t *testing.T) {
	q := New(Options{})
	job := newTestJob(domain.PriorityNormal, 1)
	if err := q.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got := q.Dequeue()
	if err := q.MarkRunning(got.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if _, err := q.MarkFailed(got.ID, errors.New("hard failure")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	if err := q.Retry(got.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	rearmed := q.Dequeue()
	if rearmed == nil || rearmed.ID != got.ID {
		t.Fatalf("re-armed job should dequeue again")
	}
	if rearmed.Attempt != 0 {
		t.Fatalf("attempt should reset, got %d", rearmed.Attempt)
	}

	pending := newTestJob(domain.PriorityNormal, 3)
	if err := q.Enqueue(pending); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Retry(pending.ID); !errors.Is(err, domain.ErrInvalidJob) {
		t.Fatalf("retrying a pending job should fail, got %v", err)
	}
}

func TestClearCompletedAndClearAll(t *testing.T) {
	q := New(Options{})
	for i := 0; i < 3; i++ {
		if err := q.Enqueue(newTestJob(domain.PriorityNormal, 3)); err != nil {
			t.Fatalf("enqueue: %v", err)
		}
	}
	done := q.Dequeue()
	if err := q.MarkRunning(done.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := q.MarkCompleted(done.ID, "generated/a.png"); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	if removed := q.ClearCompleted(); removed != 1 {
		t.Fatalf("ClearCompleted removed %d, want 1", removed)
	}

	running := q.Dequeue()
	if err := q.MarkRunning(running.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if removed := q.ClearAll(); removed != 1 {
		t.Fatalf("ClearAll removed %d, want 1", removed)
	}
	if got := q.Dequeue(); got != nil {
		t.Fatalf("queue should be drained, got %s", got.ID)
	}
	// The running job survives so its outcome can still be recorded.
	if err := q.MarkCompleted(running.ID, "generated/b.png"); err != nil {
		t.Fatalf("MarkCompleted after ClearAll: %v", err)
	}
}

func TestRetryDelayPostponesEligibility(t *testing.T) {
	q := New(Options{RetryDelay: 30 * time.Millisecond})
	job := newTestJob(domain.PriorityNormal, 2)
	if err := q.Enqueue(job); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	got := q.Dequeue()
	if err := q.MarkRunning(got.ID); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if _, err := q.MarkFailed(got.ID, errors.New("transient")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	if early := q.Dequeue(); early != nil {
		t.Fatalf("job should not be eligible before the retry delay")
	}

	deadline := time.After(time.Second)
	for {
		if again := q.Dequeue(); again != nil {
			if again.ID != got.ID {
				t.Fatalf("unexpected job %s", again.ID)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("job never became eligible after retry delay")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
