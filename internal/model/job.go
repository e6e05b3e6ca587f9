package model

import "time"

// JobType selects which pipeline a job runs records through.
type JobType string

const (
	JobTypeWebsite JobType = "website-discovery"
	JobTypeEmail   JobType = "email-crawl"
)

// Valid reports whether the job type is one the scheduler knows.
func (t JobType) Valid() bool {
	return t == JobTypeWebsite || t == JobTypeEmail
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether the status admits no further mutation
// (except log trimming).
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// LogLevel classifies job log entries.
type LogLevel string

const (
	LogInfo    LogLevel = "INFO"
	LogSuccess LogLevel = "SUCCESS"
	LogWarning LogLevel = "WARNING"
	LogError   LogLevel = "ERROR"
)

// JobLogEntry is one timestamped message in a job's append-only log.
type JobLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
}

// JobCounters aggregates per-record outcomes for a job.
type JobCounters struct {
	Total    int `json:"total"`
	Done     int `json:"done"`
	Errors   int `json:"errors"`
	Found    int `json:"found"`
	NotFound int `json:"not_found"`
}

// SuccessRate returns found/done as a percentage, 0 when nothing is done.
func (c JobCounters) SuccessRate() float64 {
	if c.Done == 0 {
		return 0
	}
	return float64(c.Found) / float64(c.Done) * 100
}

// Job represents one discovery or email run over a subset of facilities.
// It is created by the scheduler and mutated only by it.
type Job struct {
	ID          string        `json:"id"`
	Type        JobType       `json:"job_type"`
	Status      JobStatus     `json:"status"`
	Counters    JobCounters   `json:"counters"`
	CurrentItem string        `json:"current_item,omitempty"`
	Logs        []JobLogEntry `json:"logs,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
}

// ETA estimates remaining time from the average per-record pace so far.
// Returns zero until at least one record is done.
func (j *Job) ETA(now time.Time) time.Duration {
	c := j.Counters
	if c.Done == 0 || c.Done >= c.Total {
		return 0
	}
	elapsed := now.Sub(j.CreatedAt)
	perItem := elapsed / time.Duration(c.Done)
	return perItem * time.Duration(c.Total-c.Done)
}
