// Package cleanup provides background worker
package cleanup

import (
	"context"
	"time"

	"github.com/sharpline/sharpline-go/internal/infrastructure/caching/interfaces"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
)

// Worker sweeps expired entries out of an in-memory cache.
type Worker struct {
	cache  interfaces.ExpiringCache
	config *Config
	logger *logging.ChanneledLogger
}

// NewWorker creates a new cleanup worker with injected configuration
func NewWorker(cache interfaces.ExpiringCache, config *Config, logger *logging.ChanneledLogger) *Worker {
	return &Worker{
		cache:  cache,
		config: config,
		logger: logger,
	}
}

// Start begins the cleanup worker routine, using the configured interval.
// It returns when ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	interval := w.config.CleanupInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Cache().Info("Cache cleanup worker started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			w.logger.Cache().Info("Cache cleanup worker stopping")
			return
		case now := <-ticker.C:
			w.RunOnce(now)
		}
	}
}

// RunOnce performs a single sweep and returns the number of purged entries.
func (w *Worker) RunOnce(now time.Time) int {
	start := time.Now()
	purged := w.cache.PurgeExpired(now)
	if purged > 0 {
		w.logger.Cache().Info("Cache cleanup finished", "purged", purged, "remaining", w.cache.Len(), "duration", time.Since(start))
	} else {
		w.logger.Cache().Debug("Cache cleanup completed - no expired items found", "duration", time.Since(start))
	}
	return purged
}
