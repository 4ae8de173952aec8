package janitor

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"mediaconv/worker/repository"
)

// Janitor periodically deletes expired task rows and unlinks the files
// they referenced. Purge tasks from the maintenance queue trigger the same
// sweep on demand.
type Janitor struct {
	repo      repository.Repository
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

func New(repo repository.Repository, retention, interval time.Duration, logger *zap.Logger) *Janitor {
	return &Janitor{
		repo:      repo,
		retention: retention,
		interval:  interval,
		logger:    logger,
	}
}

// Run blocks until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("Janitor shutting down")
			return
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil {
				j.logger.Error("Scheduled cleanup failed", zap.Error(err))
			}
		}
	}
}

// Sweep deletes everything older than the retention window and returns how
// many files were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-j.retention)
	paths, err := j.repo.DeleteExpired(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range paths {
		if err := os.Remove(path); err != nil {
			if !os.IsNotExist(err) {
				j.logger.Warn("Failed to remove expired file",
					zap.String("path", path),
					zap.Error(err),
				)
			}
			continue
		}
		removed++
	}

	j.logger.Info("Cleanup finished",
		zap.Time("cutoff", cutoff),
		zap.Int("files", len(paths)),
		zap.Int("removed", removed),
	)
	return removed, nil
}
