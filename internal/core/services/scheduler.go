package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/custodia-labs/passage/internal/core/domain"
	"github.com/custodia-labs/passage/internal/core/ports/driving"
	"github.com/custodia-labs/passage/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// Maintenance task IDs.
const (
	TaskVerify  = "verify"
	TaskCompact = "compact"
)

// Scheduler runs corpus maintenance in the background: a periodic
// consistency check that rebuilds the index on corruption, and periodic
// index compaction. A zero interval disables the task.
type Scheduler struct {
	corpus          driving.CorpusService
	verifyInterval  time.Duration
	compactInterval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// busy prevents a task from overlapping its previous run.
	busy sync.Map
}

// NewScheduler creates a scheduler for the intervals in settings.
func NewScheduler(settings domain.CorpusSettings, corpus driving.CorpusService) *Scheduler {
	return &Scheduler{
		corpus:          corpus,
		verifyInterval:  settings.VerifyInterval,
		compactInterval: settings.CompactInterval,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	return s.run(ctx, stopCh)
}

// Stop gracefully shuts down the scheduler and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// run is the main scheduler loop.
func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	verifyC, stopVerify := tick(s.verifyInterval)
	defer stopVerify()
	compactC, stopCompact := tick(s.compactInterval)
	defer stopCompact()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-verifyC:
			s.runTask(ctx, TaskVerify, s.verify)
		case <-compactC:
			s.runTask(ctx, TaskCompact, s.corpus.Compact)
		}
	}
}

// tick returns a ticker channel and its stop function. A zero interval
// gives a nil channel, which never fires.
func tick(d time.Duration) (<-chan time.Time, func()) {
	if d <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// runTask executes one task in the background unless it is still running.
func (s *Scheduler) runTask(ctx context.Context, id string, fn func(context.Context) error) {
	if _, loaded := s.busy.LoadOrStore(id, struct{}{}); loaded {
		logger.Debug("scheduler: %s still running, skipping", id)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.busy.Delete(id)

		start := time.Now()
		if err := fn(ctx); err != nil {
			logger.Error("scheduler: %s failed after %s: %v", id, time.Since(start), err)
			return
		}
		logger.Debug("scheduler: %s finished in %s", id, time.Since(start))
	}()
}

// verify checks the corpus and rebuilds the index when it is corrupt.
func (s *Scheduler) verify(ctx context.Context) error {
	err := s.corpus.Verify(ctx)
	if err == nil || !errors.Is(err, domain.ErrIndexCorruption) {
		return err
	}
	logger.Warn("scheduler: index inconsistent, rebuilding: %v", err)
	return s.corpus.Rebuild(ctx)
}
