package engine

import (
	"context"
	"time"
)

// DefaultResolution is how often the real-time driver feeds wall-clock
// time into the scheduler.
const DefaultResolution = 100 * time.Millisecond

// startDriver launches the real-time driver for the current generation.
// Caller holds e.mu.
func (e *Engine) startDriver() {
	if e.baseCtx == nil || e.driverCancel != nil {
		return
	}
	e.driverGen++
	ctx, cancel := context.WithCancel(e.baseCtx)
	e.driverCancel = cancel
	go e.drive(ctx, e.driverGen)
}

// stopDriver tears the driver down. Any advance already in flight from the
// old goroutine is discarded by the generation check. Caller holds e.mu.
func (e *Engine) stopDriver() {
	if e.driverCancel == nil {
		return
	}
	e.driverCancel()
	e.driverCancel = nil
	e.driverGen++
}

// drive is the heartbeat loop. It only measures time; all mutation happens
// under the engine lock in advanceFrom.
func (e *Engine) drive(ctx context.Context, gen uint64) {
	e.logger.Debugf("real-time driver %d started", gen)

	ticker := time.NewTicker(e.resolution)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			e.logger.Debugf("real-time driver %d stopped", gen)
			return
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			last = now
			if !e.advanceFrom(gen, elapsed) {
				return
			}
		}
	}
}
