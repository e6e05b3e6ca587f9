package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/lodgeleads/enrich/internal/facility"
	"github.com/lodgeleads/enrich/internal/model"
	"github.com/lodgeleads/enrich/internal/scheduler"
)

// runFlags are the selector and pacing flags shared by discover and email.
type runFlags struct {
	ids         []string
	failed      bool
	concurrency int
	rateLimit   float64
}

func (f *runFlags) selector() facility.Selector {
	switch {
	case len(f.ids) > 0:
		return facility.Selector{Mode: facility.ModeIDs, IDs: f.ids}
	case f.failed:
		return facility.Selector{Mode: facility.ModeFailed}
	default:
		return facility.Selector{Mode: facility.ModeAll}
	}
}

func (f *runFlags) settings() scheduler.Settings {
	return scheduler.Settings{Concurrency: f.concurrency, RateLimit: f.rateLimit}
}

// runJob starts a job and blocks until it finishes, echoing progress.
// An interrupt cancels the job and waits for in-flight records to settle.
func runJob(ctx context.Context, env *engine, jobType model.JobType, flags *runFlags) error {
	jobID, err := env.scheduler.Start(ctx, jobType, flags.selector(), flags.settings())
	if err != nil {
		return err
	}
	fmt.Printf("job %s started\n", jobID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastDone int
	for {
		select {
		case <-ctx.Done():
			if _, err := env.scheduler.Cancel(jobID); err != nil {
				return err
			}
			env.scheduler.Wait()
			job, _ := env.scheduler.Get(jobID)
			printSummary(job)
			return nil
		case <-ticker.C:
			job, err := env.scheduler.Get(jobID)
			if err != nil {
				return err
			}
			if job.Counters.Done != lastDone {
				lastDone = job.Counters.Done
				fmt.Printf("  %d/%d done, %d found, %d errors\n",
					job.Counters.Done, job.Counters.Total,
					job.Counters.Found, job.Counters.Errors)
			}
			if job.Status.Terminal() {
				printSummary(job)
				if job.Status == model.JobFailed {
					return eris.Errorf("job %s failed", jobID)
				}
				return nil
			}
		}
	}
}

func printSummary(job model.Job) {
	fmt.Printf("job %s %s: %d done, %d found, %d not found, %d errors (%.0f%% success)\n",
		job.ID, job.Status,
		job.Counters.Done, job.Counters.Found, job.Counters.NotFound,
		job.Counters.Errors, job.Counters.SuccessRate())
}
