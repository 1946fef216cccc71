// Package signalfeed delivers external signal values to the refresh path.
package signalfeed

import (
	"context"

	"risklab/internal/domain"
)

// Feed defines the external signal source interface.
type Feed interface {
	// Subscribe streams updates for the given signal ids. An empty list
	// subscribes to every signal the feed carries.
	Subscribe(ctx context.Context, signalIDs []string) (<-chan domain.SignalUpdate, error)

	// Snapshot returns the current numeric values for a set of signal ids.
	// Unknown ids are omitted from the result.
	Snapshot(ctx context.Context, signalIDs []string) (map[string]float64, error)

	// Close closes the feed.
	Close() error
}
