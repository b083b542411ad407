package extraction

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/JaimeStill/sift/pkg/lifecycle"
	"github.com/JaimeStill/sift/pkg/metrics"
)

// Dispatcher runs collaborator calls in the background with bounded concurrency.
// Go never blocks the caller; work waits for a slot in its own goroutine.
type Dispatcher struct {
	sem    *semaphore.Weighted
	ctx    context.Context
	mu     sync.RWMutex
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher allowing limit concurrent calls.
func NewDispatcher(limit int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sem:    semaphore.NewWeighted(int64(max(limit, 1))),
		ctx:    context.Background(),
		logger: logger.With("system", "dispatcher"),
	}
}

// Start binds dispatched work to the coordinator context and drains it on shutdown.
func (d *Dispatcher) Start(lc *lifecycle.Coordinator) error {
	d.mu.Lock()
	d.ctx = lc.Context()
	d.mu.Unlock()

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		d.logger.Info("waiting for dispatched work")
		d.wg.Wait()
		d.logger.Info("dispatcher drained")
	})

	return nil
}

// Go schedules fn. The context passed to fn is cancelled on shutdown.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context)) {
	d.mu.RLock()
	ctx := d.ctx
	d.mu.RUnlock()

	d.wg.Go(func() {
		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.logger.Warn("dispatch abandoned", "task", name, "error", err)
			return
		}
		defer d.sem.Release(1)

		metrics.DispatchStarted()
		defer metrics.DispatchFinished()

		d.logger.Debug("dispatch started", "task", name)
		fn(ctx)
	})
}

// Wait blocks until every dispatched task has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
