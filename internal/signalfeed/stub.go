package signalfeed

import (
	"context"
	"fmt"
	"sync"

	"risklab/internal/domain"
)

// StubFeed is an in-memory Feed for tests and one-shot runs. Values are
// seeded up front; Push mutates them and fans updates out to subscribers.
type StubFeed struct {
	mu     sync.RWMutex
	values map[string]float64
	subs   []stubSubscription
	closed bool
}

type stubSubscription struct {
	signalIDs map[string]bool // empty matches every signal
	ch        chan domain.SignalUpdate
}

// NewStubFeed creates a stub feed with initial signal values.
func NewStubFeed(initial map[string]float64) *StubFeed {
	values := make(map[string]float64, len(initial))
	for id, v := range initial {
		values[id] = v
	}
	return &StubFeed{values: values}
}

// Subscribe streams pushed updates matching the given signal ids.
func (f *StubFeed) Subscribe(_ context.Context, signalIDs []string) (<-chan domain.SignalUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, fmt.Errorf("feed closed")
	}

	filter := make(map[string]bool, len(signalIDs))
	for _, id := range signalIDs {
		filter[id] = true
	}

	ch := make(chan domain.SignalUpdate, 256)
	f.subs = append(f.subs, stubSubscription{signalIDs: filter, ch: ch})
	return ch, nil
}

// Snapshot returns the current values for the requested ids, omitting
// unknown ones.
func (f *StubFeed) Snapshot(_ context.Context, signalIDs []string) (map[string]float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return nil, fmt.Errorf("feed closed")
	}

	values := make(map[string]float64)
	if len(signalIDs) == 0 {
		for id, v := range f.values {
			values[id] = v
		}
		return values, nil
	}
	for _, id := range signalIDs {
		if v, ok := f.values[id]; ok {
			values[id] = v
		}
	}
	return values, nil
}

// Push records the update's new value and delivers it to matching
// subscribers. Full subscriber buffers drop the update rather than block.
func (f *StubFeed) Push(update domain.SignalUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || update.SignalID == "" {
		return
	}

	f.values[update.SignalID] = update.NewValue
	for _, sub := range f.subs {
		if len(sub.signalIDs) > 0 && !sub.signalIDs[update.SignalID] {
			continue
		}
		select {
		case sub.ch <- update:
		default:
		}
	}
}

// Close closes every subscriber channel.
func (f *StubFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	for _, sub := range f.subs {
		close(sub.ch)
	}
	f.subs = nil
	return nil
}

// Compile-time interface check.
var _ Feed = (*StubFeed)(nil)
