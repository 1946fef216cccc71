package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"risklab/internal/domain"
)

// batchRecorder captures processed batches for assertions.
type batchRecorder struct {
	mu      sync.Mutex
	batches [][]domain.SignalUpdate
	fired   chan struct{}
}

func newBatchRecorder() *batchRecorder {
	return &batchRecorder{fired: make(chan struct{}, 16)}
}

func (r *batchRecorder) process(_ context.Context, updates []domain.SignalUpdate) {
	r.mu.Lock()
	r.batches = append(r.batches, updates)
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *batchRecorder) waitFired(t *testing.T) {
	t.Helper()
	select {
	case <-r.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a debounce fire")
	}
}

func (r *batchRecorder) snapshot() [][]domain.SignalUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]domain.SignalUpdate, len(r.batches))
	copy(out, r.batches)
	return out
}

func TestNewScheduler_RequiresProcess(t *testing.T) {
	_, err := NewScheduler(SchedulerOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestScheduler_CoalescesBurstIntoOnePass(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newBatchRecorder()
	s, err := NewScheduler(SchedulerOptions{Window: 150 * time.Millisecond, Process: rec.process})
	require.NoError(t, err)
	defer s.Stop()

	// Three updates inside one window coalesce into a single pass
	s.Ingest([]domain.SignalUpdate{{SignalID: "sig-a", ChangePercent: 0.08}})
	time.Sleep(20 * time.Millisecond)
	s.Ingest([]domain.SignalUpdate{{SignalID: "sig-b", ChangePercent: -0.06}})
	time.Sleep(20 * time.Millisecond)
	s.Ingest([]domain.SignalUpdate{{SignalID: "sig-c", ChangePercent: 0.20}})

	rec.waitFired(t)
	time.Sleep(300 * time.Millisecond)

	batches := rec.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 3)
	assert.Equal(t, "sig-a", batches[0][0].SignalID)
	assert.Equal(t, "sig-b", batches[0][1].SignalID)
	assert.Equal(t, "sig-c", batches[0][2].SignalID)
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_LatestValueWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newBatchRecorder()
	s, err := NewScheduler(SchedulerOptions{Window: 100 * time.Millisecond, Process: rec.process})
	require.NoError(t, err)
	defer s.Stop()

	s.Ingest([]domain.SignalUpdate{{SignalID: "sig-a", OldValue: 100, NewValue: 102, ChangePercent: 0.02}})
	s.Ingest([]domain.SignalUpdate{{SignalID: "sig-a", OldValue: 100, NewValue: 108, ChangePercent: 0.08}})

	rec.waitFired(t)

	batches := rec.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 1)
	assert.Equal(t, 0.08, batches[0][0].ChangePercent)
	assert.Equal(t, 108.0, batches[0][0].NewValue)
}

func TestScheduler_FlushFiresImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newBatchRecorder()
	s, err := NewScheduler(SchedulerOptions{Window: 200 * time.Millisecond, Process: rec.process})
	require.NoError(t, err)
	defer s.Stop()

	s.Ingest([]domain.SignalUpdate{
		{SignalID: "sig-a", ChangePercent: 0.08},
		{SignalID: "sig-b", ChangePercent: 0.06},
	})
	s.Flush(context.Background())

	batches := rec.snapshot()
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 2)
	assert.Equal(t, 0, s.Pending())

	// The scheduled timer was canceled, nothing fires later
	time.Sleep(400 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)

	// Flushing with nothing pending is a no-op
	s.Flush(context.Background())
	assert.Len(t, rec.snapshot(), 1)
}

func TestScheduler_StopDropsPending(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newBatchRecorder()
	s, err := NewScheduler(SchedulerOptions{Window: 100 * time.Millisecond, Process: rec.process})
	require.NoError(t, err)

	s.Ingest([]domain.SignalUpdate{{SignalID: "sig-a", ChangePercent: 0.08}})
	s.Stop()

	time.Sleep(250 * time.Millisecond)
	assert.Empty(t, rec.snapshot())

	// Ingest after Stop is dropped
	s.Ingest([]domain.SignalUpdate{{SignalID: "sig-b", ChangePercent: 0.06}})
	assert.Equal(t, 0, s.Pending())
}

func TestScheduler_StopWaitsForInFlightPass(t *testing.T) {
	defer goleak.VerifyNone(t)

	started := make(chan struct{})
	done := make(chan struct{})
	s, err := NewScheduler(SchedulerOptions{
		Window: 20 * time.Millisecond,
		Process: func(context.Context, []domain.SignalUpdate) {
			close(started)
			time.Sleep(80 * time.Millisecond)
			close(done)
		},
	})
	require.NoError(t, err)

	s.Ingest([]domain.SignalUpdate{{SignalID: "sig-a", ChangePercent: 0.08}})

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the pass to start")
	}

	s.Stop()

	select {
	case <-done:
	default:
		t.Fatal("Stop returned before the in-flight pass completed")
	}
}

func TestScheduler_IgnoresEmptyUpdates(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := newBatchRecorder()
	s, err := NewScheduler(SchedulerOptions{Window: 50 * time.Millisecond, Process: rec.process})
	require.NoError(t, err)
	defer s.Stop()

	s.Ingest(nil)
	s.Ingest([]domain.SignalUpdate{{SignalID: ""}})

	assert.Equal(t, 0, s.Pending())
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}
