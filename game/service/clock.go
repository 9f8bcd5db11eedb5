package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultTickInterval is the reference clock cadence
const DefaultTickInterval = 100 * time.Millisecond

// RunClock ticks every active session at the given cadence until ctx is done.
// Each tick carries the wall time measured since the previous one, so a late
// tick never loses time.
func RunClock(ctx context.Context, svc GameService, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("game clock started")
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("game clock stopped")
			return
		case now := <-ticker.C:
			delta := now.Sub(last)
			last = now
			svc.TickAll(ctx, delta)
		}
	}
}
