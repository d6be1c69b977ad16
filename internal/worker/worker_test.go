package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultInterval, cfg.Interval)
	assert.Equal(t, DefaultTaskTimeout, cfg.TaskTimeout)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)

	bad := Config{Interval: -time.Second}
	assert.Error(t, bad.Validate())
}

func TestWorkerRunsTasksPeriodically(t *testing.T) {
	w, err := New(Config{Interval: 10 * time.Millisecond, ShutdownTimeout: time.Second}, testLogger())
	require.NoError(t, err)

	var runs atomic.Int64
	w.Register("counter", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	w.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	w.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int64(2))
}

func TestWorkerSurvivesFailingTask(t *testing.T) {
	w, err := New(Config{Interval: 10 * time.Millisecond, ShutdownTimeout: time.Second}, testLogger())
	require.NoError(t, err)

	var failing, healthy atomic.Int64
	w.Register("failing", func(ctx context.Context) error {
		failing.Add(1)
		return errors.New("boom")
	})
	w.Register("healthy", func(ctx context.Context) error {
		healthy.Add(1)
		return nil
	})

	w.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	w.Stop()

	// A failing task is retried on later ticks and never blocks others.
	assert.GreaterOrEqual(t, failing.Load(), int64(2))
	assert.GreaterOrEqual(t, healthy.Load(), int64(2))
}

func TestWorkerStopsOnContextCancel(t *testing.T) {
	w, err := New(Config{Interval: 5 * time.Millisecond, ShutdownTimeout: time.Second}, testLogger())
	require.NoError(t, err)

	var runs atomic.Int64
	w.Register("counter", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	w.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	time.Sleep(20 * time.Millisecond)

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}
