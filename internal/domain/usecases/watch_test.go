package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
)

type chanWatcher struct {
	events chan ports.FileEvent
}

func (w *chanWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	return w.events, nil
}

func (w *chanWatcher) Stop() error { return nil }

type countingTrigger struct {
	mu     sync.Mutex
	n      int
	result entities.TriggerResult
	fired  chan struct{}
}

func (c *countingTrigger) Trigger(ctx context.Context) entities.TriggerResult {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	c.fired <- struct{}{}
	return c.result
}

func (c *countingTrigger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func TestAutoReindexer_DebouncesBursts(t *testing.T) {
	w := &chanWatcher{events: make(chan ports.FileEvent, 10)}
	trig := &countingTrigger{result: entities.TriggerAccepted, fired: make(chan struct{}, 10)}
	r := NewAutoReindexer(w, trig, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, "/repo") }()

	for i := 0; i < 5; i++ {
		w.events <- ports.FileEvent{Path: "/repo/main.go", Operation: ports.FileModified}
	}

	select {
	case <-trig.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("rebuild was not triggered")
	}
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, trig.count())

	cancel()
	require.NoError(t, <-done)
}

func TestAutoReindexer_StopsWhenEventsClose(t *testing.T) {
	w := &chanWatcher{events: make(chan ports.FileEvent)}
	r := NewAutoReindexer(w, &countingTrigger{fired: make(chan struct{}, 1)}, 0)
	assert.Equal(t, DefaultDebounce, r.debounce)

	close(w.events)
	assert.NoError(t, r.Run(context.Background(), "/repo"))
}

func TestAutoReindexer_RejectedTriggerIsDropped(t *testing.T) {
	logs := captureLogs(t)
	w := &chanWatcher{events: make(chan ports.FileEvent, 1)}
	trig := &countingTrigger{result: entities.TriggerAlreadyRunning, fired: make(chan struct{}, 1)}
	r := NewAutoReindexer(w, trig, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, "/repo") }()

	w.events <- ports.FileEvent{Path: "/repo/a.go", Operation: ports.FileCreated}
	<-trig.fired
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, 1, trig.count())
	assert.Contains(t, logs.String(), "rebuild skipped")
}
