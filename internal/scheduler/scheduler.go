package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"batchforge/internal/domain"
	"batchforge/internal/infra"
	"batchforge/internal/preset"
	"batchforge/internal/providers/image"
	"batchforge/internal/queue"
	"batchforge/internal/wildcard"
)

const idlePollInterval = 200 * time.Millisecond

// Store persists generated artifacts and returns the canonical key.
type Store interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Remove(ctx context.Context, key string) error
}

// History records submissions and terminal outcomes for audit. Implementations
// must tolerate being called from multiple workers.
type History interface {
	RecordSubmitted(ctx context.Context, jobs []domain.Job) error
	RecordOutcome(ctx context.Context, job domain.Job) error
}

// Options wires the scheduler's collaborators.
type Options struct {
	Workers     int
	CallTimeout time.Duration
	Queue       *queue.Queue
	Generator   image.Generator
	Store       Store
	History     History
	Pools       map[string]*wildcard.Pool
	Presets     *preset.Library
	Progress    Sink
	Logger      infra.Logger
}

type configProgress struct {
	total int
	done  int
}

// Scheduler expands batch requests into jobs and drives a bounded worker
// pool that drains the queue against the generation backend. All shared
// counters live behind one mutex; the queue has its own.
type Scheduler struct {
	workers     int
	callTimeout time.Duration
	queue       *queue.Queue
	gen         image.Generator
	store       Store
	history     History
	pools       map[string]*wildcard.Pool
	presets     *preset.Library
	progress    Sink
	logger      infra.Logger

	// resolveMu serializes wildcard resolution: pool cursor state is owned
	// by one resolution session at a time.
	resolveMu sync.Mutex

	mu        sync.Mutex
	running   bool
	stop      chan struct{}
	wg        sync.WaitGroup
	inFlight  map[string]context.CancelFunc
	total     int
	done      int
	perConfig map[string]*configProgress
}

// New constructs a scheduler. The worker pool is not started yet.
func New(opts Options) *Scheduler {
	workers := opts.Workers
	if workers <= 0 {
		workers = 2
	}
	callTimeout := opts.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}
	presets := opts.Presets
	if presets == nil {
		presets = preset.Empty()
	}
	return &Scheduler{
		workers:     workers,
		callTimeout: callTimeout,
		queue:       opts.Queue,
		gen:         opts.Generator,
		store:       opts.Store,
		history:     opts.History,
		pools:       opts.Pools,
		presets:     presets,
		progress:    opts.Progress,
		logger:      opts.Logger,
		inFlight:    make(map[string]context.CancelFunc),
		perConfig:   make(map[string]*configProgress),
	}
}

// Submit expands a batch request into jobs and enqueues them. The prompt
// list is taken verbatim from PreResolved when present; otherwise the
// literal prompt (or the preset's base template) goes through wildcard
// resolution when it contains placeholders, and is repeated as-is when not.
func (s *Scheduler) Submit(ctx context.Context, req domain.BatchRequest) (*domain.BatchHandle, error) {
	cfg, err := s.presets.Get(req.ConfigRef)
	if err != nil {
		return nil, err
	}

	count := req.Count
	if count <= 0 {
		count = 1
	}

	var prompts []string
	var warnings []string
	switch {
	case len(req.PreResolved) > 0:
		prompts = req.PreResolved
	default:
		template := req.LiteralPrompt
		if template == "" {
			template = cfg.BasePrompt
		}
		if template == "" {
			return nil, fmt.Errorf("batch has no prompt source: %w", domain.ErrInvalidJob)
		}
		prompts, warnings, err = s.resolvePrompts(template, count)
		if err != nil {
			return nil, err
		}
	}

	maxAttempts := req.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = cfg.MaxAttempts
	}
	priority := cfg.JobPriority()
	if req.Priority != "" {
		priority = domain.ParsePriority(req.Priority)
	}

	batchID := uuid.NewString()
	handle := &domain.BatchHandle{
		BatchID:  batchID,
		Total:    len(prompts),
		Warnings: warnings,
	}

	jobs := make([]domain.Job, 0, len(prompts))
	for _, prompt := range prompts {
		job := domain.NewJob(batchID, req.ConfigRef, prompt, priority, maxAttempts)
		if err := s.queue.Enqueue(job); err != nil {
			return nil, fmt.Errorf("enqueue batch %s: %w", batchID, err)
		}
		handle.JobIDs = append(handle.JobIDs, job.ID)
		jobs = append(jobs, *job)
	}

	s.mu.Lock()
	s.total += len(jobs)
	cp := s.perConfig[req.ConfigRef]
	if cp == nil {
		cp = &configProgress{}
		s.perConfig[req.ConfigRef] = cp
	}
	cp.total += len(jobs)
	s.mu.Unlock()

	if s.history != nil {
		if err := s.history.RecordSubmitted(ctx, jobs); err != nil {
			s.logger.Error().Err(err).Str("batch_id", batchID).Msg("scheduler: record batch history failed")
		}
	}
	for _, w := range warnings {
		s.logger.Warn().Str("batch_id", batchID).Msg("scheduler: " + w)
	}
	s.logger.Info().
		Str("batch_id", batchID).
		Str("config", req.ConfigRef).
		Int("jobs", len(jobs)).
		Str("priority", priority.String()).
		Msg("scheduler: batch submitted")

	return handle, nil
}

func (s *Scheduler) resolvePrompts(template string, count int) ([]string, []string, error) {
	if !wildcard.HasPlaceholders(template) {
		prompts := make([]string, count)
		for i := range prompts {
			prompts[i] = template
		}
		return prompts, nil, nil
	}

	s.resolveMu.Lock()
	defer s.resolveMu.Unlock()

	res, err := wildcard.Resolve(template, count, s.pools)
	if err != nil {
		return nil, nil, err
	}
	return res.Prompts, res.Warnings, nil
}

// Start launches the worker pool. Calling Start on a running scheduler is a
// no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.worker(i, stop)
	}
	s.logger.Info().Int("workers", s.workers).Msg("scheduler: started")
}

// Stop halts dequeuing and waits for in-flight jobs to finish. In-flight
// generation calls are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("scheduler: stopped")
}

func (s *Scheduler) worker(id int, stop <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}

		job := s.queue.Dequeue()
		if job == nil {
			select {
			case <-stop:
				return
			case <-s.queue.Notify():
			case <-time.After(idlePollInterval):
			}
			continue
		}
		s.process(job)
	}
}

// process dispatches one job. The queue lock is never held while the
// generation call is in flight.
func (s *Scheduler) process(job *domain.Job) {
	if err := s.queue.MarkRunning(job.ID); err != nil {
		// Lost the claim, e.g. the job was cancelled after dequeue.
		s.logger.Debug().Err(err).Str("job_id", job.ID).Msg("scheduler: skipping job")
		return
	}

	callCtx, cancel := context.WithTimeout(context.Background(), s.callTimeout)
	s.mu.Lock()
	s.inFlight[job.ID] = cancel
	s.mu.Unlock()

	asset, err := s.gen.Generate(callCtx, s.buildRequest(job))

	s.mu.Lock()
	delete(s.inFlight, job.ID)
	s.mu.Unlock()
	cancel()

	if err != nil {
		s.recordFailure(job, err)
		return
	}

	key := fmt.Sprintf("generated/%s/%s.png", job.BatchID, job.ID)
	savedKey, err := s.store.Write(context.Background(), key, asset.Data)
	if err != nil {
		s.recordFailure(job, fmt.Errorf("persist artifact: %w", err))
		return
	}

	if err := s.queue.MarkCompleted(job.ID, savedKey); err != nil {
		// Cancelled while generating: the outcome is discarded and the
		// already-written artifact must not linger.
		s.logger.Info().Str("job_id", job.ID).Msg("scheduler: discarding outcome of cancelled job")
		if err := s.store.Remove(context.Background(), savedKey); err != nil {
			s.logger.Warn().Err(err).Str("key", savedKey).Msg("scheduler: discarded artifact cleanup failed")
		}
		s.finalize(job.ID, false)
		return
	}
	s.logger.Debug().
		Str("job_id", job.ID).
		Str("result", savedKey).
		Int64("seed", asset.Seed).
		Msg("scheduler: job completed")
	s.finalize(job.ID, true)
}

func (s *Scheduler) recordFailure(job *domain.Job, cause error) {
	status, err := s.queue.MarkFailed(job.ID, cause)
	if err != nil {
		s.logger.Info().Str("job_id", job.ID).Msg("scheduler: discarding failure of cancelled job")
		s.finalize(job.ID, false)
		return
	}
	if status == domain.JobStatusFailed {
		cause = fmt.Errorf("%w: %w", domain.ErrRetriesExhausted, cause)
	}
	s.logger.Warn().
		Err(cause).
		Str("job_id", job.ID).
		Str("status", string(status)).
		Msg("scheduler: dispatch failed")
	s.finalize(job.ID, status == domain.JobStatusFailed)
}

// finalize updates aggregate counters, records history and emits one
// progress event. countDone is true only for terminal success or terminal
// failure; retrying and cancelled jobs never advance the done counter.
func (s *Scheduler) finalize(jobID string, countDone bool) {
	job, err := s.queue.Get(jobID)
	if err != nil {
		return
	}

	s.mu.Lock()
	if countDone {
		s.done++
		if cp := s.perConfig[job.ConfigRef]; cp != nil {
			cp.done++
		}
	}
	event := Event{
		JobID:           job.ID,
		BatchID:         job.BatchID,
		ConfigRef:       job.ConfigRef,
		Status:          job.Status,
		CurrentImage:    s.done,
		TotalImages:     s.total,
		ProgressPercent: percent(s.done, s.total),
		Active:          s.running,
	}
	s.mu.Unlock()

	if job.Status.Terminal() && s.history != nil {
		if err := s.history.RecordOutcome(context.Background(), job); err != nil {
			s.logger.Error().Err(err).Str("job_id", job.ID).Msg("scheduler: record outcome failed")
		}
	}
	if s.progress != nil {
		s.progress(event)
	}
}

func (s *Scheduler) buildRequest(job *domain.Job) image.GenerateRequest {
	req := image.GenerateRequest{
		Prompt: job.Prompt,
		JobID:  job.ID,
	}
	if cfg, err := s.presets.Get(job.ConfigRef); err == nil {
		req.NegativePrompt = cfg.NegativePrompt
		req.Model = cfg.Model
		req.Sampler = cfg.Sampler
		req.Steps = cfg.Steps
		req.CFGScale = cfg.CFGScale
		req.Width = cfg.Width
		req.Height = cfg.Height
	}
	return req
}

// CancelJob cancels one job wherever it is in its lifecycle. For a job that
// is not in flight the terminal transition is reported to the progress sink
// here; an in-flight job gets its backend call cancelled and the worker's
// discard path reports it instead.
func (s *Scheduler) CancelJob(id string) error {
	if err := s.queue.Cancel(id); err != nil {
		return err
	}

	s.mu.Lock()
	cancel, running := s.inFlight[id]
	s.mu.Unlock()
	if running {
		cancel()
		return nil
	}

	s.finalize(id, false)
	return nil
}

// CancelCurrent cancels every running job and forwards the cancellation to
// the in-flight backend calls.
func (s *Scheduler) CancelCurrent() int {
	s.mu.Lock()
	cancels := make(map[string]context.CancelFunc, len(s.inFlight))
	for id, cancel := range s.inFlight {
		cancels[id] = cancel
	}
	s.mu.Unlock()

	cancelled := 0
	for id, cancel := range cancels {
		if err := s.queue.Cancel(id); err == nil {
			cancelled++
		}
		cancel()
	}
	if cancelled > 0 {
		s.logger.Info().Int("jobs", cancelled).Msg("scheduler: cancelled running jobs")
	}
	return cancelled
}

// ConfigProgress is the per-configuration slice of the aggregate counters.
type ConfigProgress struct {
	Total int `json:"total"`
	Done  int `json:"done"`
}

// Status is the aggregate scheduler view exposed to callers.
type Status struct {
	Active          bool                      `json:"active"`
	CurrentImage    int                       `json:"currentImage"`
	TotalImages     int                       `json:"totalImages"`
	ProgressPercent float64                   `json:"progressPercent"`
	PerConfig       map[string]ConfigProgress `json:"perConfig"`
}

// Status reports the aggregate progress across all submitted batches.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Active:          s.running,
		CurrentImage:    s.done,
		TotalImages:     s.total,
		ProgressPercent: percent(s.done, s.total),
		PerConfig:       make(map[string]ConfigProgress, len(s.perConfig)),
	}
	for ref, cp := range s.perConfig {
		st.PerConfig[ref] = ConfigProgress{Total: cp.total, Done: cp.done}
	}
	return st
}

func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}
