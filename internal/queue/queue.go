package queue

import (
	"container/heap"
	"fmt"
	"sort"
	"sync"
	"time"

	"batchforge/internal/domain"
)

// Options tunes queue behavior.
type Options struct {
	// RetryDelay postpones re-eligibility of a retrying job. Zero keeps the
	// baseline behavior: a retrying job can be dequeued again immediately.
	RetryDelay time.Duration
}

// Queue is a priority-aware, in-memory job queue. It is the sole mutator of
// job status and attempt counters; all operations are serialized behind one
// mutex. Workers never hold the lock while a generation call is in flight.
type Queue struct {
	mu         sync.Mutex
	jobs       map[string]*domain.Job
	ready      readyHeap
	seq        uint64
	wake       chan struct{}
	retryDelay time.Duration
}

type entry struct {
	id       string
	priority domain.Priority
	seq      uint64
}

// readyHeap orders eligible jobs by priority (higher first), then FIFO.
type readyHeap []entry

func (h readyHeap) Len() int { return len(h) }

func (h readyHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// New creates an empty queue.
func New(opts Options) *Queue {
	return &Queue{
		jobs:       make(map[string]*domain.Job),
		wake:       make(chan struct{}, 1),
		retryDelay: opts.RetryDelay,
	}
}

// Notify returns a channel that receives a signal whenever a job may have
// become eligible for dequeue. The channel is buffered; consumers should
// combine it with polling Dequeue.
func (q *Queue) Notify() <-chan struct{} {
	return q.wake
}

func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Enqueue adds a job in pending state. It fails with ErrInvalidJob when the
// job has no id, carries a terminal status, or reuses an existing id.
func (q *Queue) Enqueue(job *domain.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job has no id: %w", domain.ErrInvalidJob)
	}
	if job.Status.Terminal() {
		return fmt.Errorf("job %s already %s: %w", job.ID, job.Status, domain.ErrInvalidJob)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already enqueued: %w", job.ID, domain.ErrInvalidJob)
	}

	stored := *job
	stored.Status = domain.JobStatusPending
	if stored.MaxAttempts <= 0 {
		stored.MaxAttempts = domain.DefaultMaxAttempts
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	q.jobs[stored.ID] = &stored
	q.push(stored.ID)
	q.notify()
	return nil
}

// push appends a ready entry for the given job. Caller holds the lock.
func (q *Queue) push(id string) {
	job := q.jobs[id]
	q.seq++
	heap.Push(&q.ready, entry{id: id, priority: job.Priority, seq: q.seq})
}

// Dequeue removes and returns a snapshot of the highest-priority eligible
// job, or nil when none is available. It never blocks.
func (q *Queue) Dequeue() *domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.ready.Len() > 0 {
		e := heap.Pop(&q.ready).(entry)
		job, ok := q.jobs[e.id]
		if !ok {
			continue
		}
		// Stale entries for cancelled or already-claimed jobs are skipped.
		if job.Status != domain.JobStatusPending && job.Status != domain.JobStatusRetrying {
			continue
		}
		snapshot := *job
		return &snapshot
	}
	return nil
}

// MarkRunning transitions a pending or retrying job to running and counts
// the dispatch attempt.
func (q *Queue) MarkRunning(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if job.Status != domain.JobStatusPending && job.Status != domain.JobStatusRetrying {
		return fmt.Errorf("job %s is %s: %w", id, job.Status, domain.ErrInvalidJob)
	}
	job.Status = domain.JobStatusRunning
	job.Attempt++
	now := time.Now().UTC()
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	return nil
}

// MarkCompleted transitions a running job to completed and records the
// artifact reference. Completing a cancelled job fails so the caller
// discards the outcome.
func (q *Queue) MarkCompleted(id, result string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if job.Status != domain.JobStatusRunning {
		return fmt.Errorf("job %s is %s: %w", id, job.Status, domain.ErrNotFound)
	}
	job.Status = domain.JobStatusCompleted
	job.Result = result
	now := time.Now().UTC()
	job.FinishedAt = &now
	return nil
}

// MarkFailed records a dispatch failure and decides between retrying and
// failed. The returned status tells the caller which way it went. Failing a
// cancelled job is rejected so no retry is scheduled for discarded work.
func (q *Queue) MarkFailed(id string, cause error) (domain.JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return "", fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if job.Status != domain.JobStatusRunning {
		return job.Status, fmt.Errorf("job %s is %s: %w", id, job.Status, domain.ErrNotFound)
	}
	if cause != nil {
		job.LastError = cause.Error()
	}
	if job.Attempt < job.MaxAttempts {
		job.Status = domain.JobStatusRetrying
		if q.retryDelay > 0 {
			id := job.ID
			time.AfterFunc(q.retryDelay, func() { q.requeue(id) })
		} else {
			q.push(job.ID)
			q.notify()
		}
		return domain.JobStatusRetrying, nil
	}
	job.Status = domain.JobStatusFailed
	now := time.Now().UTC()
	job.FinishedAt = &now
	return domain.JobStatusFailed, nil
}

// requeue makes a delayed retrying job eligible again, unless it was
// cancelled in the meantime.
func (q *Queue) requeue(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || job.Status != domain.JobStatusRetrying {
		return
	}
	q.push(id)
	q.notify()
}

// Cancel transitions a non-terminal job to cancelled. Cancelling running
// work is advisory: the in-flight call is not aborted here, but its eventual
// outcome will be discarded by MarkCompleted/MarkFailed.
func (q *Queue) Cancel(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok || job.Status.Terminal() {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	job.Status = domain.JobStatusCancelled
	now := time.Now().UTC()
	job.FinishedAt = &now
	return nil
}

// Retry re-arms a failed or cancelled job. This is an explicit operator
// action: the attempt counter restarts and the job queues at its original
// priority.
func (q *Queue) Retry(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	if job.Status != domain.JobStatusFailed && job.Status != domain.JobStatusCancelled {
		return fmt.Errorf("job %s is %s: %w", id, job.Status, domain.ErrInvalidJob)
	}
	job.Status = domain.JobStatusPending
	job.Attempt = 0
	job.StartedAt = nil
	job.FinishedAt = nil
	q.push(id)
	q.notify()
	return nil
}

// Get returns a snapshot of one job.
func (q *Queue) Get(id string) (domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("job %s: %w", id, domain.ErrNotFound)
	}
	return *job, nil
}

// Stats aggregates job counts by status and by priority.
type Stats struct {
	Total      int                      `json:"total"`
	ByStatus   map[domain.JobStatus]int `json:"byStatus"`
	ByPriority map[string]int           `json:"byPriority"`
}

// Stats returns aggregate counts over every job the queue knows about.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		Total:      len(q.jobs),
		ByStatus:   make(map[domain.JobStatus]int),
		ByPriority: make(map[string]int),
	}
	for _, job := range q.jobs {
		s.ByStatus[job.Status]++
		s.ByPriority[job.Priority.String()]++
	}
	return s
}

// GetAll returns snapshots of every job, oldest first.
func (q *Queue) GetAll() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.Job, 0, len(q.jobs))
	for _, job := range q.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ClearCompleted removes completed jobs and returns how many were dropped.
func (q *Queue) ClearCompleted() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, job := range q.jobs {
		if job.Status == domain.JobStatusCompleted {
			delete(q.jobs, id)
			removed++
		}
	}
	return removed
}

// ClearAll removes every job that is not currently running and empties the
// ready ordering. Running jobs stay so their in-flight outcome can still be
// recorded.
func (q *Queue) ClearAll() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, job := range q.jobs {
		if job.Status == domain.JobStatusRunning {
			continue
		}
		delete(q.jobs, id)
		removed++
	}
	q.ready = q.ready[:0]
	return removed
}
