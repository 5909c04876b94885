package usecases

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// IndexBuilder runs one index build to completion.
type IndexBuilder interface {
	BuildIndex(ctx context.Context, corpusRoot, docsRoot string) (*entities.BuildReport, error)
}

// BuildCoordinator runs builds in the background, one at a time, and owns the
// build status. Only the finisher goroutine writes a terminal state; readers
// get snapshot copies.
type BuildCoordinator struct {
	builder    IndexBuilder
	corpusRoot string
	docsRoot   string
	now        func() time.Time

	mu     sync.RWMutex
	status entities.BuildStatus
	done   chan struct{}
}

type buildResult struct {
	report *entities.BuildReport
	err    error
}

// NewBuildCoordinator creates a coordinator that builds corpusRoot/docsRoot.
func NewBuildCoordinator(builder IndexBuilder, corpusRoot, docsRoot string) *BuildCoordinator {
	done := make(chan struct{})
	close(done)
	return &BuildCoordinator{
		builder:    builder,
		corpusRoot: corpusRoot,
		docsRoot:   docsRoot,
		now:        time.Now,
		status: entities.BuildStatus{
			State:   entities.BuildNotStarted,
			Message: "index has not been built yet",
		},
		done: done,
	}
}

// Trigger starts a build unless one is already running. It never blocks on
// the build and never queues: a concurrent trigger is rejected.
// The build does not inherit ctx cancellation.
func (c *BuildCoordinator) Trigger(ctx context.Context) entities.TriggerResult {
	c.mu.Lock()
	if c.status.State == entities.BuildRunning {
		c.mu.Unlock()
		return entities.TriggerAlreadyRunning
	}
	id := uuid.NewString()
	c.status = entities.BuildStatus{
		ID:        id,
		State:     entities.BuildRunning,
		Message:   "indexing in progress",
		StartedAt: c.now(),
	}
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	logger.Info("index build %s started", id)

	results := make(chan buildResult, 1)
	go c.run(context.WithoutCancel(ctx), results)
	go c.finish(results, done)
	return entities.TriggerAccepted
}

// Status returns a snapshot of the current build status.
func (c *BuildCoordinator) Status() entities.BuildStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.status
	if s.State == entities.BuildRunning {
		s.Duration = c.now().Sub(s.StartedAt)
	}
	if s.Report != nil {
		report := *s.Report
		s.Report = &report
	}
	return s
}

// Wait returns a channel closed when the current (or last) build finishes.
func (c *BuildCoordinator) Wait() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.done
}

// run is the worker; it reports exactly one result.
func (c *BuildCoordinator) run(ctx context.Context, results chan<- buildResult) {
	var res buildResult
	defer func() {
		if r := recover(); r != nil {
			res = buildResult{err: fmt.Errorf("index build panicked: %v", r)}
		}
		results <- res
	}()
	res.report, res.err = c.builder.BuildIndex(ctx, c.corpusRoot, c.docsRoot)
}

// finish drains the result channel once and records the terminal state.
func (c *BuildCoordinator) finish(results <-chan buildResult, done chan struct{}) {
	res := <-results

	c.mu.Lock()
	defer close(done)
	defer c.mu.Unlock()

	c.status.FinishedAt = c.now()
	c.status.Duration = c.status.FinishedAt.Sub(c.status.StartedAt)
	c.status.Report = res.report
	if res.err != nil {
		c.status.State = entities.BuildError
		c.status.Message = "indexing failed"
		c.status.Error = res.err.Error()
		logger.Error("index build %s failed after %s: %v", c.status.ID, c.status.Duration, res.err)
		return
	}
	c.status.State = entities.BuildCompleted
	c.status.Message = "indexing completed"
	logger.Info("index build %s completed in %s", c.status.ID, c.status.Duration)
}
