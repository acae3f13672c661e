package server

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ralt/spkrepo/internal/repository"
)

// RunReloader refreshes repo every interval until ctx is done. A
// non-positive interval returns immediately.
func RunReloader(ctx context.Context, repo *repository.Repository, interval time.Duration, logger logrus.FieldLogger) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s, err := repo.Refresh(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.WithField("action", "reload").Warnf("Periodic refresh failed: %v", err)
				continue
			}
			logger.WithFields(logrus.Fields{
				"action":   "reload",
				"packages": len(s.Names()),
			}).Debug("Periodic refresh done")
		}
	}
}
