package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/resonantfield/tapedeck/internal/logging"
)

// JobStatus is the lifecycle state of one JobQueue entry, mirroring the
// teacher's retry-queue state machine (processor.JobQueue) one-for-one.
type JobStatus int

const (
	JobPending JobStatus = iota
	JobRunning
	JobSucceeded
	JobFailed
	JobStale
)

func (s JobStatus) String() string {
	switch s {
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	case JobStale:
		return "stale"
	default:
		return "pending"
	}
}

// RetryConfig governs exponential backoff for a retryable Job, carried over
// field-for-field from the teacher's RetryConfig.
type RetryConfig struct {
	Enabled      bool
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig returns sane defaults for file decode/export retries:
// up to 5 attempts, starting at 500ms, doubling, capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Enabled:      true,
		MaxRetries:   5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}

// Action is a unit of decode/IO/export work the job queue can run and
// retry. Generalized from the teacher's post-detection Action interface
// (actions_types.go) to file-system work: decoding a source into the
// sourcecache, writing an export/render to disk, or flushing a recording
// session to its final WAV.
type Action interface {
	Execute(ctx context.Context) error
	Description() string
}

// Job is one queued unit of work plus its retry bookkeeping.
type Job struct {
	ID          uint64
	Action      Action
	Status      JobStatus
	Attempts    int
	Config      RetryConfig
	CreatedAt   time.Time
	NextAttempt time.Time
	LastError   error
}

// JobExecutionTimeout bounds a single Action.Execute call; a decode or
// export that hangs past this is treated as failed and retried rather than
// leaking a goroutine forever.
const JobExecutionTimeout = 2 * time.Minute

// StaleAfter is how long a job may sit without a successful attempt before
// it is marked stale and stops retrying, mirroring the teacher's
// DefaultJobLifetime concept scaled down for interactive file operations.
const StaleAfter = 10 * time.Minute

// JobQueue runs decode/IO Actions off the audio and control threads,
// retrying transient failures (a source file briefly locked by another
// process, an export target on a momentarily full disk) with exponential
// backoff. Modeled directly on processor.JobQueue's check-interval +
// mutex-guarded-slice + WaitGroup shape, trimmed of the teacher's
// generic TypedJobQueue variant (engine jobs are never genuinely divergent
// in payload type the way post-detection actions are).
type JobQueue struct {
	mu       sync.Mutex
	jobs     []*Job
	nextID   uint64
	stopCh   chan struct{}
	running  sync.WaitGroup
	logger   *slog.Logger
	interval time.Duration
}

// NewJobQueue returns a stopped job queue; call Start to begin processing.
func NewJobQueue() *JobQueue {
	logger := logging.ForService("engine")
	if logger == nil {
		logger = slog.Default()
	}
	return &JobQueue{
		logger:   logger.With("component", "jobqueue"),
		interval: 2 * time.Second,
	}
}

// Enqueue adds action to the queue and returns its Job handle.
func (q *JobQueue) Enqueue(action Action, config RetryConfig) *Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	job := &Job{
		ID:        q.nextID,
		Action:    action,
		Status:    JobPending,
		Config:    config,
		CreatedAt: time.Now(),
	}
	q.jobs = append(q.jobs, job)
	return job
}

// Start begins the background processing loop. Safe to call once; a
// second call is a no-op since stopCh would already be non-nil.
func (q *JobQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.stopCh != nil {
		q.mu.Unlock()
		return
	}
	q.stopCh = make(chan struct{})
	q.mu.Unlock()

	q.running.Add(1)
	go q.loop(ctx)
}

// Stop signals the processing loop to exit and waits for in-flight jobs to
// finish.
func (q *JobQueue) Stop() {
	q.mu.Lock()
	stopCh := q.stopCh
	q.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	q.running.Wait()
}

func (q *JobQueue) loop(ctx context.Context) {
	defer q.running.Done()
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.markStale()
			q.processDue(ctx)
		}
	}
}

func (q *JobQueue) markStale() {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for _, j := range q.jobs {
		if j.Status == JobPending && now.Sub(j.CreatedAt) > StaleAfter {
			j.Status = JobStale
		}
	}
}

func (q *JobQueue) processDue(ctx context.Context) {
	q.mu.Lock()
	due := make([]*Job, 0)
	now := time.Now()
	for _, j := range q.jobs {
		if j.Status == JobPending && now.After(j.NextAttempt) {
			j.Status = JobRunning
			due = append(due, j)
		}
	}
	q.mu.Unlock()

	for _, j := range due {
		q.execute(ctx, j)
	}
}

func (q *JobQueue) execute(ctx context.Context, job *Job) {
	jobCtx, cancel := context.WithTimeout(ctx, JobExecutionTimeout)
	defer cancel()

	job.Attempts++
	err := job.Action.Execute(jobCtx)

	q.mu.Lock()
	defer q.mu.Unlock()

	if err == nil {
		job.Status = JobSucceeded
		return
	}

	job.LastError = err
	if !job.Config.Enabled || job.Attempts >= job.Config.MaxRetries {
		job.Status = JobFailed
		q.logger.Warn("job failed, retries exhausted",
			"action", job.Action.Description(), "attempts", job.Attempts, "error", err)
		return
	}

	job.Status = JobPending
	job.NextAttempt = time.Now().Add(backoffDelay(job.Config, job.Attempts))
	q.logger.Debug("job failed, retry scheduled",
		"action", job.Action.Description(), "attempt", job.Attempts, "next", job.NextAttempt)
}

func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	return delay
}

// Stats summarizes queue composition for the diagnostics endpoint.
type Stats struct {
	Pending, Running, Succeeded, Failed, Stale int
}

// Stats returns a snapshot of job counts by status.
func (q *JobQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	var s Stats
	for _, j := range q.jobs {
		switch j.Status {
		case JobPending:
			s.Pending++
		case JobRunning:
			s.Running++
		case JobSucceeded:
			s.Succeeded++
		case JobFailed:
			s.Failed++
		case JobStale:
			s.Stale++
		}
	}
	return s
}
