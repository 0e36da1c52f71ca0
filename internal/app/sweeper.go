package app

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// IdleSweeper is implemented by session stores that can drop idle players.
type IdleSweeper interface {
	SweepIdle(maxIdle time.Duration) int
}

// RunSweeper calls SweepIdle every interval until ctx is done.
func RunSweeper(ctx context.Context, sweeper IdleSweeper, interval, maxIdle time.Duration, log logrus.FieldLogger) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sweeper.SweepIdle(maxIdle); n > 0 {
				log.WithField("removed", n).Debug("idle sessions swept")
			}
		}
	}
}
