// Package worker runs the periodic sweeps.
package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-bot/internal/clock"
)

var errPanicked = errors.New("sweep item panicked")

// runEvery calls sweep on every tick until ctx is done. A sweep never runs
// concurrently with itself.
func runEvery(ctx context.Context, c clock.Clock, interval time.Duration, name string, logger *zap.Logger, sweep func(context.Context)) error {
	ticker := c.NewTicker(interval)
	defer ticker.Stop()
	logger.Info("sweep scheduled", zap.String("sweep", name), zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("sweep stopped", zap.String("sweep", name))
			return nil
		case <-ticker.C:
			sweep(ctx)
		}
	}
}
