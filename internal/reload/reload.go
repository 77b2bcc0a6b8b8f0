// Package reload coordinates configuration reloads. Requests are recorded
// from any goroutine (signal handler, HTTP handler, file watcher) but the
// reload itself always runs on the event-loop goroutine, which owns the
// output directory.
package reload

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/1ay1/neowall-sub002/internal/config"
)

// Coordinator tracks reload requests and performs the config re-read.
type Coordinator struct {
	logger *slog.Logger
	path   string

	requested  atomic.Bool
	inProgress atomic.Bool

	// wake nudges the event loop so a request is serviced promptly instead
	// of at the next timer expiry.
	wake func()
}

// NewCoordinator builds a coordinator for the config file at path. wake may
// be nil when no loop needs nudging (tests).
func NewCoordinator(path string, wake func(), logger *slog.Logger) *Coordinator {
	return &Coordinator{
		logger: logger.With("component", "reload"),
		path:   path,
		wake:   wake,
	}
}

// Request marks a reload as wanted. Safe from any goroutine; coalesces with
// an already-pending request.
func (c *Coordinator) Request() {
	if c.requested.Swap(true) {
		return
	}
	c.logger.Info("reload requested")
	if c.wake != nil {
		c.wake()
	}
}

// TakeRequest consumes a pending request. Called by the event loop once per
// iteration.
func (c *Coordinator) TakeRequest() bool {
	return c.requested.Swap(false)
}

// Pending reports whether a request is waiting without consuming it.
func (c *Coordinator) Pending() bool {
	return c.requested.Load()
}

// InProgress reports whether a reload is currently being applied. Rendering
// is skipped while true so no frame is drawn from half-applied state.
func (c *Coordinator) InProgress() bool {
	return c.inProgress.Load()
}

// Apply re-reads the config file. On any load or validation error the
// returned config is unusable and the caller keeps its current one; the
// daemon never dies or degrades because of a bad edit.
func (c *Coordinator) Apply() (config.Config, error) {
	c.inProgress.Store(true)
	defer c.inProgress.Store(false)

	cfg, err := config.LoadFile(c.path)
	if err != nil {
		c.logger.Error("reload failed, keeping previous config", "error", err)
		return config.Config{}, err
	}
	c.logger.Info("config reloaded", "path", c.path, "outputs", len(cfg.Outputs))
	return cfg, nil
}

// Watch polls the config file's modification time and requests a reload
// when it changes. Runs until ctx is done; intended for its own goroutine.
func (c *Coordinator) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	var last time.Time
	if info, err := os.Stat(c.path); err == nil {
		last = info.ModTime()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(c.path)
			if err != nil {
				// Editors replace files non-atomically; a transient
				// missing file is not a change.
				continue
			}
			if mt := info.ModTime(); mt.After(last) {
				last = mt
				c.logger.Info("config file changed", "path", c.path)
				c.Request()
			}
		}
	}
}
