package driving

import "context"

// Scheduler runs periodic corpus maintenance such as verification and
// index compaction.
type Scheduler interface {
	// Start begins running scheduled tasks.
	// Blocks until context is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops all running tasks.
	Stop() error
}
