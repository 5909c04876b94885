package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
)

// gatedBuilder blocks every build until release is closed.
type gatedBuilder struct {
	started chan struct{}
	release chan struct{}
	report  *entities.BuildReport
	err     error
	ctxErr  error
}

func newGatedBuilder() *gatedBuilder {
	return &gatedBuilder{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		report:  &entities.BuildReport{Files: 2, Chunks: 5},
	}
}

func (b *gatedBuilder) BuildIndex(ctx context.Context, corpusRoot, docsRoot string) (*entities.BuildReport, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-b.release
	b.ctxErr = ctx.Err()
	return b.report, b.err
}

type panicBuilder struct{}

func (panicBuilder) BuildIndex(ctx context.Context, corpusRoot, docsRoot string) (*entities.BuildReport, error) {
	panic("boom")
}

func waitDone(t *testing.T, c *BuildCoordinator) {
	t.Helper()
	select {
	case <-c.Wait():
	case <-time.After(5 * time.Second):
		t.Fatal("build did not finish")
	}
}

func TestBuildCoordinator_InitialStatus(t *testing.T) {
	c := NewBuildCoordinator(newGatedBuilder(), "/repo", "")

	s := c.Status()
	assert.Equal(t, entities.BuildNotStarted, s.State)
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.Report)
}

func TestBuildCoordinator_RejectsWhileRunning(t *testing.T) {
	b := newGatedBuilder()
	c := NewBuildCoordinator(b, "/repo", "")

	require.Equal(t, entities.TriggerAccepted, c.Trigger(context.Background()))
	<-b.started
	running := c.Status()
	require.True(t, running.IsRunning())

	assert.Equal(t, entities.TriggerAlreadyRunning, c.Trigger(context.Background()))
	again := c.Status()
	assert.Equal(t, running.ID, again.ID)
	assert.Equal(t, running.StartedAt, again.StartedAt)

	close(b.release)
	waitDone(t, c)

	done := c.Status()
	assert.Equal(t, entities.BuildCompleted, done.State)
	assert.Empty(t, done.Error)
	require.NotNil(t, done.Report)
	assert.Equal(t, 5, done.Report.Chunks)
	assert.False(t, done.FinishedAt.Before(done.StartedAt))
}

func TestBuildCoordinator_ErrorState(t *testing.T) {
	b := newGatedBuilder()
	b.err = errors.New("store unreachable")
	close(b.release)
	c := NewBuildCoordinator(b, "/repo", "")

	c.Trigger(context.Background())
	waitDone(t, c)

	s := c.Status()
	assert.Equal(t, entities.BuildError, s.State)
	assert.Equal(t, "store unreachable", s.Error)
}

func TestBuildCoordinator_PanicBecomesError(t *testing.T) {
	c := NewBuildCoordinator(panicBuilder{}, "/repo", "")

	c.Trigger(context.Background())
	waitDone(t, c)

	s := c.Status()
	assert.Equal(t, entities.BuildError, s.State)
	assert.Contains(t, s.Error, "boom")
}

func TestBuildCoordinator_RetriggerAfterFinish(t *testing.T) {
	b := newGatedBuilder()
	close(b.release)
	c := NewBuildCoordinator(b, "/repo", "")

	c.Trigger(context.Background())
	waitDone(t, c)
	first := c.Status().ID

	assert.Equal(t, entities.TriggerAccepted, c.Trigger(context.Background()))
	waitDone(t, c)
	assert.NotEqual(t, first, c.Status().ID)
}

func TestBuildCoordinator_BuildOutlivesCallerContext(t *testing.T) {
	b := newGatedBuilder()
	c := NewBuildCoordinator(b, "/repo", "")
	ctx, cancel := context.WithCancel(context.Background())

	c.Trigger(ctx)
	<-b.started
	cancel()
	close(b.release)
	waitDone(t, c)

	assert.NoError(t, b.ctxErr)
	assert.Equal(t, entities.BuildCompleted, c.Status().State)
}

func TestBuildCoordinator_StatusReportIsCopy(t *testing.T) {
	b := newGatedBuilder()
	close(b.release)
	c := NewBuildCoordinator(b, "/repo", "")
	c.Trigger(context.Background())
	waitDone(t, c)

	s := c.Status()
	s.Report.Chunks = 999
	assert.Equal(t, 5, c.Status().Report.Chunks)
}
