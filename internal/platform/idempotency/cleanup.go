package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	defaultCleanupBatch = 200
	maxCleanupRounds    = 10
)

// RunCleanup purges submissions past their retention or lease every interval until ctx is
// cancelled.
func RunCleanup(ctx context.Context, store Store, interval time.Duration, batchSize int, logger *zap.Logger) {
	if store == nil || interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := PurgeExpired(ctx, store, time.Now().UTC(), batchSize)
			if err != nil {
				logger.Error("order submission cleanup failed", zap.Error(err), zap.Int("removed", removed))
				continue
			}
			if removed > 0 {
				logger.Info("order submissions purged", zap.Int("count", removed))
			}
		}
	}
}

// PurgeExpired removes expired submissions batch by batch until a short batch signals the
// backlog is drained. The number of rounds per call is capped.
func PurgeExpired(ctx context.Context, store Store, now time.Time, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = defaultCleanupBatch
	}
	total := 0
	for round := 0; round < maxCleanupRounds; round++ {
		removed, err := store.CleanupExpired(ctx, now, batchSize)
		total += removed
		if err != nil {
			return total, err
		}
		if removed < batchSize {
			break
		}
	}
	return total, nil
}
