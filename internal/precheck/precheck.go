// Package precheck verifies connectivity to the primary datastore.
//
// Before the server accepts traffic (and periodically afterwards), the
// checker pings the datastore a fixed number of times with exponential
// backoff. The last observed status is cached for the health endpoint.
package precheck

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rgoodwin/beacon/internal/metrics"
)

// =============================================================================
// Configuration
// =============================================================================

const (
	// DefaultAttempts is the number of connection attempts per check.
	DefaultAttempts = 3

	// DefaultInitialBackoff is the delay before the second attempt; it
	// doubles for each attempt after that (1s, 2s, 4s, ...).
	DefaultInitialBackoff = 1 * time.Second
)

// Config controls a Checker's retry behavior.
type Config struct {
	Attempts       int
	InitialBackoff time.Duration
}

// Validate applies defaults to zero values.
func (c *Config) Validate() {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = DefaultInitialBackoff
	}
}

// =============================================================================
// Checker
// =============================================================================

// Pinger is the datastore handle subset the checker needs.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker runs connectivity checks against the primary datastore.
type Checker struct {
	db     Pinger
	config Config
	logger *slog.Logger

	mu        sync.RWMutex
	healthy   bool
	lastError error
	lastCheck time.Time
}

// New creates a Checker for the given datastore handle.
func New(db Pinger, config Config, logger *slog.Logger) *Checker {
	config.Validate()
	return &Checker{
		db:     db,
		config: config,
		logger: logger,
	}
}

// Check pings the datastore, retrying with exponential backoff.
//
// All attempts must fail for the check to fail; the first success wins. The
// result is cached and readable via Healthy().
func (c *Checker) Check(ctx context.Context) error {
	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 1; attempt <= c.config.Attempts; attempt++ {
		err := c.db.PingContext(ctx)
		if err == nil {
			metrics.PrecheckAttempts.WithLabelValues("ok").Inc()
			c.record(true, nil)
			if attempt > 1 {
				c.logger.Info("datastore reachable after retry", "attempt", attempt)
			}
			return nil
		}

		metrics.PrecheckAttempts.WithLabelValues("failed").Inc()
		lastErr = err
		c.logger.Warn("datastore ping failed",
			"attempt", attempt,
			"max_attempts", c.config.Attempts,
			"error", err,
		)

		if attempt == c.config.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			c.record(false, ctx.Err())
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	err := fmt.Errorf("datastore unreachable after %d attempts: %w", c.config.Attempts, lastErr)
	c.record(false, err)
	return err
}

// Healthy returns the cached result of the most recent check.
func (c *Checker) Healthy() (bool, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy, c.lastCheck
}

// LastError returns the error from the most recent failed check, or nil.
func (c *Checker) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *Checker) record(healthy bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthy = healthy
	c.lastError = err
	c.lastCheck = time.Now()
}
