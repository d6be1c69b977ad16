// Package worker runs periodic background maintenance tasks.
//
// Tasks are registered before Start and executed sequentially on every tick.
// The server uses this for session cleanup and datastore connectivity
// re-checks.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultInterval is the delay between maintenance runs.
	DefaultInterval = 15 * time.Minute

	// DefaultTaskTimeout bounds a single task execution.
	DefaultTaskTimeout = 1 * time.Minute

	// DefaultShutdownTimeout is how long Stop waits for an in-flight run.
	DefaultShutdownTimeout = 10 * time.Second
)

// Config controls the worker's schedule.
type Config struct {
	Interval        time.Duration
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Validate checks the configuration and applies defaults to zero values.
func (c *Config) Validate() error {
	if c.Interval < 0 || c.TaskTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.TaskTimeout == 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	return nil
}

// =============================================================================
// Worker
// =============================================================================

// TaskFunc is a single maintenance task. A failing task is logged and
// retried on the next tick; it never stops the worker.
type TaskFunc func(ctx context.Context) error

type task struct {
	name string
	run  TaskFunc
}

// Worker manages periodic execution of registered maintenance tasks.
type Worker struct {
	tasks  []task
	config Config
	logger *slog.Logger

	// Synchronization
	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New creates a new Worker with the given configuration.
// The worker must be started with Start() and stopped with Stop().
func New(config Config, logger *slog.Logger) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Worker{
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}, nil
}

// Register adds a maintenance task. Call this before Start().
func (w *Worker) Register(name string, run TaskFunc) {
	w.tasks = append(w.tasks, task{name: name, run: run})
	w.logger.Debug("registered maintenance task", "task", name)
}

// Start begins the maintenance loop in a background goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)

	w.logger.Info("maintenance worker started",
		"tasks", len(w.tasks),
		"interval", w.config.Interval,
	)
}

// Stop signals the worker to stop and waits for it to finish.
// It respects the configured ShutdownTimeout.
func (w *Worker) Stop() {
	w.logger.Info("stopping maintenance worker")
	close(w.stopCh)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("maintenance worker stopped")
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("maintenance worker shutdown timeout exceeded")
	}
}

// run is the main loop. It executes all tasks on every tick until stopCh is
// closed or the context is cancelled.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runTasks(ctx)
		}
	}
}

// runTasks executes each registered task with a per-task timeout.
func (w *Worker) runTasks(ctx context.Context) {
	for _, t := range w.tasks {
		taskCtx, cancel := context.WithTimeout(ctx, w.config.TaskTimeout)
		start := time.Now()

		if err := t.run(taskCtx); err != nil {
			w.logger.Warn("maintenance task failed",
				"task", t.name,
				"duration_ms", time.Since(start).Milliseconds(),
				"error", err,
			)
		} else {
			w.logger.Debug("maintenance task completed",
				"task", t.name,
				"duration_ms", time.Since(start).Milliseconds(),
			)
		}

		cancel()
	}
}
