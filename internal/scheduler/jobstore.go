package scheduler

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/lodgeleads/enrich/internal/model"
)

// ErrJobNotFound is returned for unknown job ids.
var ErrJobNotFound = eris.New("scheduler: job not found")

// JobStore holds job state in memory. Jobs are mutated only through it, so
// every read sees a consistent snapshot.
type JobStore struct {
	mu     sync.RWMutex
	jobs   map[string]*model.Job
	logCap int
}

// NewJobStore creates a JobStore trimming logs to logCap entries per job.
func NewJobStore(logCap int) *JobStore {
	if logCap <= 0 {
		logCap = 500
	}
	return &JobStore{
		jobs:   make(map[string]*model.Job),
		logCap: logCap,
	}
}

// Create registers a new queued job and returns its snapshot.
func (s *JobStore) Create(jobType model.JobType) model.Job {
	job := &model.Job{
		ID:        uuid.NewString(),
		Type:      jobType,
		Status:    model.JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return snapshot(job)
}

// Get returns a copy of the job.
func (s *JobStore) Get(id string) (model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return model.Job{}, ErrJobNotFound
	}
	return snapshot(job), nil
}

// List returns copies of all jobs, newest first.
func (s *JobStore) List() []model.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, snapshot(job))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// mutate applies fn to the job under the write lock.
func (s *JobStore) mutate(id string, fn func(*model.Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

// appendLog adds one leveled entry, trimming the log to the cap.
func (s *JobStore) appendLog(id string, level model.LogLevel, msg string) {
	s.mutate(id, func(job *model.Job) {
		job.Logs = append(job.Logs, model.JobLogEntry{
			Timestamp: time.Now().UTC(),
			Level:     level,
			Message:   msg,
		})
		if over := len(job.Logs) - s.logCap; over > 0 {
			job.Logs = append([]model.JobLogEntry(nil), job.Logs[over:]...)
		}
	})
}

func snapshot(job *model.Job) model.Job {
	out := *job
	out.Logs = append([]model.JobLogEntry(nil), job.Logs...)
	if job.FinishedAt != nil {
		t := *job.FinishedAt
		out.FinishedAt = &t
	}
	return out
}
