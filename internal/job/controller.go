package job

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/taxlien-works/harvest/pkg/models"
)

// Runner builds an orchestrator for one job. Each job gets its own browser
// session, so the build happens when the job starts, not when it is queued.
// The returned cleanup tears the session down.
type Runner func(ctx context.Context) (*Orchestrator, func(), error)

// Controller tracks running and finished jobs. Jobs run on their own
// goroutines; callers observe them through state snapshots.
type Controller struct {
	runner Runner

	mu   sync.Mutex
	jobs map[string]*trackedJob
}

type trackedJob struct {
	mu     sync.Mutex
	state  models.JobState
	cancel atomic.Bool
	done   chan struct{}
}

// NewController returns a controller using runner to build per-job pipelines.
func NewController(runner Runner) *Controller {
	return &Controller{
		runner: runner,
		jobs:   make(map[string]*trackedJob),
	}
}

// StartJob queues a job for the criterion and returns its id immediately.
func (c *Controller) StartJob(ctx context.Context, crit models.SearchCriterion) string {
	id := uuid.NewString()
	j := &trackedJob{
		state: models.JobState{
			ID:        id,
			Criterion: crit,
			Status:    models.StatusPending,
			StartedAt: time.Now(),
		},
		done: make(chan struct{}),
	}

	c.mu.Lock()
	c.jobs[id] = j
	c.mu.Unlock()

	go c.run(ctx, id, j, crit)
	return id
}

func (c *Controller) run(ctx context.Context, id string, j *trackedJob, crit models.SearchCriterion) {
	defer close(j.done)

	orch, cleanup, err := c.runner(ctx)
	if err != nil {
		j.mu.Lock()
		j.state.Status = models.StatusFailed
		j.state.Error = err.Error()
		j.state.FinishedAt = time.Now()
		j.mu.Unlock()
		log.Error().Err(err).Str("job", id).Msg("Job pipeline setup failed")
		return
	}
	defer cleanup()

	final := orch.Run(ctx, id, crit, j.cancel.Load, func(snapshot models.JobState) {
		j.mu.Lock()
		j.state = snapshot
		j.mu.Unlock()
	})

	j.mu.Lock()
	j.state = final
	j.mu.Unlock()
}

// CancelJob requests cooperative cancellation. The in-flight record finishes
// before the job transitions to cancelled.
func (c *Controller) CancelJob(id string) error {
	c.mu.Lock()
	j, ok := c.jobs[id]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown job %s", id)
	}
	j.cancel.Store(true)
	log.Info().Str("job", id).Msg("Cancellation requested")
	return nil
}

// GetJobState returns a snapshot of the job's state, valid while running.
func (c *Controller) GetJobState(id string) (models.JobState, error) {
	c.mu.Lock()
	j, ok := c.jobs[id]
	c.mu.Unlock()
	if !ok {
		return models.JobState{}, fmt.Errorf("unknown job %s", id)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, nil
}

// Wait blocks until the job reaches a terminal state and returns it.
func (c *Controller) Wait(id string) (models.JobState, error) {
	c.mu.Lock()
	j, ok := c.jobs[id]
	c.mu.Unlock()
	if !ok {
		return models.JobState{}, fmt.Errorf("unknown job %s", id)
	}
	<-j.done
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state, nil
}
