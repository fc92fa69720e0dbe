package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingAction struct {
	failures int32
	calls    int32
}

func (a *countingAction) Execute(ctx context.Context) error {
	n := atomic.AddInt32(&a.calls, 1)
	if n <= a.failures {
		return errors.New("transient decode failure")
	}
	return nil
}

func (a *countingAction) Description() string { return "counting-action" }

func TestJobQueue_SucceedsFirstTry(t *testing.T) {
	q := NewJobQueue()
	q.interval = 5 * time.Millisecond
	action := &countingAction{}
	job := q.Enqueue(action, DefaultRetryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.Eventually(t, func() bool {
		return job.Status == JobSucceeded
	}, time.Second, 5*time.Millisecond)
}

func TestJobQueue_RetriesThenSucceeds(t *testing.T) {
	q := NewJobQueue()
	q.interval = 5 * time.Millisecond
	action := &countingAction{failures: 2}
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = 5 * time.Millisecond
	cfg.MaxDelay = 10 * time.Millisecond
	job := q.Enqueue(action, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.Eventually(t, func() bool {
		return job.Status == JobSucceeded
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, job.Attempts, 3)
}

func TestJobQueue_ExhaustsRetriesAndFails(t *testing.T) {
	q := NewJobQueue()
	q.interval = 5 * time.Millisecond
	action := &countingAction{failures: 100}
	cfg := RetryConfig{Enabled: true, MaxRetries: 2, InitialDelay: 5 * time.Millisecond, MaxDelay: 10 * time.Millisecond, Multiplier: 2}
	job := q.Enqueue(action, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	require.Eventually(t, func() bool {
		return job.Status == JobFailed
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, job.Attempts)
}

func TestJobQueue_StatsCountsByStatus(t *testing.T) {
	q := NewJobQueue()
	q.Enqueue(&countingAction{}, DefaultRetryConfig())
	q.Enqueue(&countingAction{}, DefaultRetryConfig())
	stats := q.Stats()
	assert.Equal(t, 2, stats.Pending)
}

func TestBackoffDelay_CapsAtMaxDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, Multiplier: 10, MaxDelay: 5 * time.Second}
	d := backoffDelay(cfg, 5)
	assert.Equal(t, 5*time.Second, d)
}
