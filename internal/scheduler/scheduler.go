// Package scheduler runs enrichment jobs: it draws pending facilities from
// the record store in bounded batches, dispatches them through the
// registered per-type processor, and keeps job counters and logs current
// for the polling API.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lodgeleads/enrich/internal/config"
	"github.com/lodgeleads/enrich/internal/facility"
	"github.com/lodgeleads/enrich/internal/model"
)

// Outcome is a processor's verdict for one record.
type Outcome struct {
	// Found reports whether the processor resolved what it was after
	// (a website, an email).
	Found bool
	// Message is a human-readable one-liner for the job log.
	Message string
}

// Processor runs one facility through a pipeline. Implementations own the
// facility status transitions and store writes; the scheduler owns job
// bookkeeping.
type Processor interface {
	Type() model.JobType
	Process(ctx context.Context, f *model.Facility) (Outcome, error)
}

// Settings are per-job overrides of the configured defaults.
type Settings struct {
	// Concurrency bounds in-flight records per batch. 0 = configured default.
	Concurrency int `json:"concurrency,omitempty"`
	// RateLimit paces record dispatch in records/second. 0 = unpaced.
	RateLimit float64 `json:"rate_limit,omitempty"`
}

type jobControl struct {
	mu        sync.Mutex
	cancelled bool
}

func (c *jobControl) cancel() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
}

func (c *jobControl) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

// Scheduler starts, tracks and cancels jobs.
type Scheduler struct {
	store      facility.Store
	jobs       *JobStore
	processors map[model.JobType]Processor
	defaults   config.JobsConfig

	mu       sync.Mutex
	controls map[string]*jobControl
	wg       sync.WaitGroup
}

// New creates a Scheduler dispatching to the given processors.
func New(store facility.Store, jobs *JobStore, cfg config.JobsConfig, processors ...Processor) *Scheduler {
	byType := make(map[model.JobType]Processor, len(processors))
	for _, p := range processors {
		byType[p.Type()] = p
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	return &Scheduler{
		store:      store,
		jobs:       jobs,
		processors: byType,
		defaults:   cfg,
		controls:   make(map[string]*jobControl),
	}
}

// Start validates the request, creates the job and launches its run loop.
// Validation failures (unknown type, bad selector, unknown ids) surface
// immediately; nothing about the run itself ever does.
func (s *Scheduler) Start(ctx context.Context, jobType model.JobType, sel facility.Selector, settings Settings) (string, error) {
	proc, ok := s.processors[jobType]
	if !ok || !jobType.Valid() {
		return "", eris.Errorf("scheduler: unknown job type %q", jobType)
	}
	if err := sel.Validate(); err != nil {
		return "", err
	}
	if sel.Mode == facility.ModeIDs {
		for _, id := range sel.IDs {
			if _, err := s.store.Get(ctx, id); err != nil {
				return "", eris.Wrapf(err, "scheduler: selector id %s", id)
			}
		}
	}

	job := s.jobs.Create(jobType)
	ctl := &jobControl{}
	s.mu.Lock()
	s.controls[job.ID] = ctl
	s.mu.Unlock()

	if sel.Mode == facility.ModeIDs {
		s.jobs.mutate(job.ID, func(j *model.Job) { j.Counters.Total = len(sel.IDs) })
	}

	// The caller's context scopes validation only. HTTP request contexts
	// die as soon as the 202 is written, so the run loop gets a detached
	// context and the cancel flag stays the single way to stop a job.
	runCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(runCtx, job.ID, proc, sel, settings, ctl)
	}()

	zap.L().Info("scheduler: job started",
		zap.String("job_id", job.ID),
		zap.String("type", string(jobType)),
		zap.String("mode", string(sel.Mode)),
	)
	return job.ID, nil
}

// Cancel requests a job stop. Batches in flight finish; no new batch is
// dispatched. Cancelling a terminal job reports the current status without
// error.
func (s *Scheduler) Cancel(jobID string) (model.Job, error) {
	job, err := s.jobs.Get(jobID)
	if err != nil {
		return model.Job{}, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	s.mu.Lock()
	ctl := s.controls[jobID]
	s.mu.Unlock()
	if ctl != nil {
		ctl.cancel()
	}
	s.jobs.appendLog(jobID, model.LogWarning, "cancellation requested")
	return s.jobs.Get(jobID)
}

// Get returns the job snapshot.
func (s *Scheduler) Get(jobID string) (model.Job, error) {
	return s.jobs.Get(jobID)
}

// List returns all job snapshots, newest first.
func (s *Scheduler) List() []model.Job {
	return s.jobs.List()
}

// Wait blocks until every running job loop has returned. For tests and
// graceful shutdown.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// run is the batch loop. It exits when the pending draw comes back empty,
// the cancel flag is set, the context dies, or the store faults.
func (s *Scheduler) run(ctx context.Context, jobID string, proc Processor, sel facility.Selector, settings Settings, ctl *jobControl) {
	concurrency := settings.Concurrency
	if concurrency <= 0 {
		concurrency = s.defaults.Concurrency
	}
	rateLimit := settings.RateLimit
	if rateLimit <= 0 {
		rateLimit = s.defaults.RateLimit
	}
	var limiter *rate.Limiter
	if rateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(rateLimit), 1)
	}

	s.jobs.mutate(jobID, func(j *model.Job) { j.Status = model.JobRunning })
	s.jobs.appendLog(jobID, model.LogInfo,
		fmt.Sprintf("run started (concurrency %d)", concurrency))

	seen := make(map[string]bool)
	final := model.JobCompleted

	for {
		if ctl.isCancelled() || ctx.Err() != nil {
			final = model.JobCancelled
			break
		}

		batch, err := s.store.ListPending(ctx, proc.Type(), sel, concurrency, seen)
		if err != nil {
			// Store faults are the one thing that fails a job.
			final = model.JobFailed
			s.jobs.appendLog(jobID, model.LogError, "record store fault: "+err.Error())
			zap.L().Error("scheduler: pending draw failed",
				zap.String("job_id", jobID), zap.Error(err))
			break
		}
		if len(batch) == 0 {
			break
		}

		for _, f := range batch {
			seen[f.ID] = true
		}
		if sel.Mode != facility.ModeIDs {
			s.jobs.mutate(jobID, func(j *model.Job) { j.Counters.Total += len(batch) })
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for _, f := range batch {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					break
				}
			}
			g.Go(func() error {
				s.processOne(gctx, jobID, proc, f)
				return nil
			})
		}
		_ = g.Wait()
	}

	now := time.Now().UTC()
	s.jobs.mutate(jobID, func(j *model.Job) {
		j.Status = final
		j.CurrentItem = ""
		j.FinishedAt = &now
	})
	job, _ := s.jobs.Get(jobID)
	s.jobs.appendLog(jobID, levelFor(final),
		fmt.Sprintf("run %s: %d done, %d found, %d errors",
			final, job.Counters.Done, job.Counters.Found, job.Counters.Errors))

	s.mu.Lock()
	delete(s.controls, jobID)
	s.mu.Unlock()

	zap.L().Info("scheduler: job finished",
		zap.String("job_id", jobID),
		zap.String("status", string(final)),
		zap.Int("done", job.Counters.Done),
		zap.Int("found", job.Counters.Found),
		zap.Int("errors", job.Counters.Errors),
	)
}

// processOne runs a single record and folds the outcome into the job.
// Record failures log once and count; they never propagate.
func (s *Scheduler) processOne(ctx context.Context, jobID string, proc Processor, f model.Facility) {
	s.jobs.mutate(jobID, func(j *model.Job) { j.CurrentItem = f.Name })

	outcome, err := proc.Process(ctx, &f)

	s.jobs.mutate(jobID, func(j *model.Job) {
		j.Counters.Done++
		switch {
		case err != nil:
			j.Counters.Errors++
		case outcome.Found:
			j.Counters.Found++
		default:
			j.Counters.NotFound++
		}
	})

	switch {
	case err != nil:
		s.jobs.appendLog(jobID, model.LogError, f.Name+": "+err.Error())
	case outcome.Found:
		s.jobs.appendLog(jobID, model.LogSuccess, f.Name+": "+outcome.Message)
	default:
		msg := outcome.Message
		if msg == "" {
			msg = "no result"
		}
		s.jobs.appendLog(jobID, model.LogWarning, f.Name+": "+msg)
	}
}

func levelFor(status model.JobStatus) model.LogLevel {
	switch status {
	case model.JobCompleted:
		return model.LogSuccess
	case model.JobFailed:
		return model.LogError
	default:
		return model.LogWarning
	}
}
