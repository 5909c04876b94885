package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/0xcro3dile/coderag-go/internal/domain/entities"
	"github.com/0xcro3dile/coderag-go/internal/domain/ports"
	"github.com/0xcro3dile/coderag-go/internal/logger"
)

// DefaultDebounce is how long the tree must be quiet before a rebuild.
const DefaultDebounce = 2 * time.Second

// BuildTrigger starts a background build.
type BuildTrigger interface {
	Trigger(ctx context.Context) entities.TriggerResult
}

// AutoReindexer turns bursts of file changes into single full rebuilds.
type AutoReindexer struct {
	watcher  ports.FileWatcher
	trigger  BuildTrigger
	debounce time.Duration
}

// NewAutoReindexer creates a reindexer. A non-positive debounce uses DefaultDebounce.
func NewAutoReindexer(watcher ports.FileWatcher, trigger BuildTrigger, debounce time.Duration) *AutoReindexer {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &AutoReindexer{watcher: watcher, trigger: trigger, debounce: debounce}
}

// Run watches dir until ctx is done or the watcher closes its channel.
// A change arriving while a build runs is logged and dropped, not queued.
func (r *AutoReindexer) Run(ctx context.Context, dir string) error {
	events, err := r.watcher.Watch(ctx, dir)
	if err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	logger.Info("watching %s for changes", dir)

	timer := time.NewTimer(r.debounce)
	timer.Stop()
	defer timer.Stop()
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			logger.Debug("%s %s", ev.Operation, ev.Path)
			timer.Reset(r.debounce)
			pending = true
		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if r.trigger.Trigger(ctx) == entities.TriggerAlreadyRunning {
				logger.Warn("change detected while indexing, rebuild skipped")
				continue
			}
			logger.Info("change detected, rebuilding index")
		}
	}
}
