// Package workers contains background workers for the admin shell.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refreshable reloads its data from the backend. *session.List implements it.
type Refreshable interface {
	Refresh(ctx context.Context) error
}

// RefresherConfig configures the refresher worker.
type RefresherConfig struct {
	// Interval is the time between refreshes.
	// Default: 60 seconds.
	Interval time.Duration

	// Timeout bounds a single refresh.
	// Default: 10 seconds.
	Timeout time.Duration
}

// DefaultRefresherConfig returns the default configuration.
func DefaultRefresherConfig() RefresherConfig {
	return RefresherConfig{
		Interval: 60 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// Refresher periodically reloads a list view so records created or changed
// elsewhere show up without a manual refresh.
type Refresher struct {
	target Refreshable
	config RefresherConfig
	logger *slog.Logger

	mu       sync.Mutex
	failures int

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefresher creates a new refresher worker.
func NewRefresher(target Refreshable, config RefresherConfig, logger *slog.Logger) *Refresher {
	defaults := DefaultRefresherConfig()
	if config.Interval == 0 {
		config.Interval = defaults.Interval
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Refresher{
		target: target,
		config: config,
		logger: logger.With("component", "refresher"),
	}
}

// Start begins the background goroutine. The first refresh happens one
// interval after Start; the view is expected to have loaded on activation.
func (r *Refresher) Start() {
	r.ctx, r.cancel = context.WithCancel(context.Background())

	r.wg.Add(1)
	go r.run()

	r.logger.Debug("refresher started", "interval", r.config.Interval)
}

// Stop cancels the worker and waits for an in-progress refresh to finish.
func (r *Refresher) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.logger.Debug("refresher stopped")
}

// Failures returns the number of consecutive failed refreshes.
func (r *Refresher) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

func (r *Refresher) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			_ = r.refresh(r.ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	err := r.target.Refresh(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.failures++
		r.logger.Warn("refresh failed", "error", err, "consecutive_failures", r.failures)
		return err
	}
	if r.failures > 0 {
		r.logger.Info("refresh recovered", "after_failures", r.failures)
	}
	r.failures = 0
	return nil
}
