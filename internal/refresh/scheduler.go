// Package refresh turns external signal movements into debounced simulation
// refreshes and learning-trace updates.
package refresh

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"risklab/internal/domain"
)

// DefaultDebounceWindow is the coalescing window for signal ingestion.
const DefaultDebounceWindow = 2 * time.Second

// ProcessFunc consumes one coalesced batch of signal updates.
type ProcessFunc func(ctx context.Context, updates []domain.SignalUpdate)

// Scheduler owns the debounce timer and the pending-update queue. Updates
// ingested within the window coalesce into one batch, merged by signal id
// with the latest value winning. Each ingest cancels and reschedules the
// timer, so only the last-scheduled one fires.
type Scheduler struct {
	window  time.Duration
	process ProcessFunc
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]domain.SignalUpdate
	timer   *time.Timer
	stopped bool

	inflight sync.WaitGroup
}

// SchedulerOptions contains configuration for creating a Scheduler.
type SchedulerOptions struct {
	Window  time.Duration // defaults to DefaultDebounceWindow
	Process ProcessFunc
	Logger  *zap.Logger
}

// NewScheduler creates a debounce scheduler.
func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	if opts.Process == nil {
		return nil, fmt.Errorf("%w: scheduler requires a process func", domain.ErrInvalidConfig)
	}
	window := opts.Window
	if window <= 0 {
		window = DefaultDebounceWindow
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		window:  window,
		process: opts.Process,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]domain.SignalUpdate),
	}, nil
}

// Ingest merges updates into the pending batch and reschedules the debounce
// timer. Updates without a signal id are skipped; updates after Stop are
// dropped.
func (s *Scheduler) Ingest(updates []domain.SignalUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	merged := 0
	for _, u := range updates {
		if u.SignalID == "" {
			continue
		}
		s.pending[u.SignalID] = u
		merged++
	}
	if merged == 0 {
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.window, s.fire)

	s.logger.Debug("signal updates pending",
		zap.Int("merged", merged),
		zap.Int("pending", len(s.pending)),
	)
}

// Pending reports the number of coalesced updates awaiting the timer.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Flush processes any pending updates immediately on the caller's
// goroutine, canceling the scheduled timer.
func (s *Scheduler) Flush(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	batch := s.drainLocked()
	if len(batch) == 0 {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	s.process(ctx, batch)
}

// Stop drops pending updates, cancels the timer and waits for an in-flight
// pass to run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = make(map[string]domain.SignalUpdate)
	s.mu.Unlock()

	s.inflight.Wait()
	s.cancel()
}

// fire runs on the timer goroutine once the window elapses untouched.
func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	batch := s.drainLocked()
	if len(batch) == 0 {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	defer s.inflight.Done()
	s.logger.Debug("debounce window elapsed", zap.Int("batch", len(batch)))
	s.process(s.ctx, batch)
}

// drainLocked empties the pending map into a batch sorted by signal id.
// The caller holds the lock.
func (s *Scheduler) drainLocked() []domain.SignalUpdate {
	if len(s.pending) == 0 {
		return nil
	}
	batch := make([]domain.SignalUpdate, 0, len(s.pending))
	for _, u := range s.pending {
		batch = append(batch, u)
	}
	s.pending = make(map[string]domain.SignalUpdate)

	sort.Slice(batch, func(i, j int) bool { return batch[i].SignalID < batch[j].SignalID })
	return batch
}
