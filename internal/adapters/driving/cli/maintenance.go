package cli

import (
	"context"

	"github.com/custodia-labs/passage/internal/logger"
)

// startMaintenance runs the scheduler in the background for long-running
// commands. The returned function stops it.
func startMaintenance(ctx context.Context) func() {
	if scheduler == nil {
		return func() {}
	}

	schedulerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := scheduler.Start(schedulerCtx); err != nil && schedulerCtx.Err() == nil {
			// Scheduler errors shouldn't stop the command
			logger.Warn("scheduler stopped: %v", err)
		}
	}()

	return func() {
		if err := scheduler.Stop(); err != nil {
			logger.Warn("scheduler stop error: %v", err)
		}
		cancel()
		<-done
	}
}
