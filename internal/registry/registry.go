// Package registry provides read access to decisions and their latest
// simulation results for the dashboard and the refresh controller.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"risklab/internal/domain"
	"risklab/internal/simulation"
	"risklab/internal/storage"
)

// Registry is a read facade over the decision and document stores. Storage
// not-found errors surface as domain.ErrNotFound so callers stay decoupled
// from the storage layer.
type Registry struct {
	decisions storage.DecisionStore
	documents storage.DocumentStore
}

// NewRegistry creates a new Registry. The document store may be nil when no
// result persistence is configured; PriorResults then reports not found.
func NewRegistry(decisions storage.DecisionStore, documents storage.DocumentStore) *Registry {
	return &Registry{
		decisions: decisions,
		documents: documents,
	}
}

// Get retrieves one decision with its options, variables and links.
func (r *Registry) Get(ctx context.Context, decisionID string) (*domain.Decision, error) {
	decision, err := r.decisions.GetByID(ctx, decisionID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: decision %q", domain.ErrNotFound, decisionID)
		}
		return nil, fmt.Errorf("get decision: %w", err)
	}
	return decision, nil
}

// ListByTenant retrieves all decisions registered for a tenant.
func (r *Registry) ListByTenant(ctx context.Context, tenant string) ([]*domain.Decision, error) {
	decisions, err := r.decisions.ListByTenant(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list decisions by tenant: %w", err)
	}
	return decisions, nil
}

// ListBySignal retrieves the decisions linked to a signal. The refresh
// controller uses this to find recompute candidates.
func (r *Registry) ListBySignal(ctx context.Context, signalID string) ([]*domain.Decision, error) {
	decisions, err := r.decisions.ListBySignal(ctx, signalID)
	if err != nil {
		return nil, fmt.Errorf("list decisions by signal: %w", err)
	}
	return decisions, nil
}

// PriorResults retrieves the latest stored simulation results for a
// decision. Returns domain.ErrNotFound when the decision has never been
// simulated or no document store is configured.
func (r *Registry) PriorResults(ctx context.Context, tenant, decisionID string) (*simulation.StoredResults, error) {
	if r.documents == nil {
		return nil, fmt.Errorf("%w: no result store configured", domain.ErrNotFound)
	}

	doc, err := r.documents.Get(ctx, tenant, decisionID, simulation.DocKeyLatestResults)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: no results for decision %q", domain.ErrNotFound, decisionID)
		}
		return nil, fmt.Errorf("get latest results: %w", err)
	}

	var results simulation.StoredResults
	if err := json.Unmarshal(doc, &results); err != nil {
		return nil, fmt.Errorf("%w: decode latest results for decision %q: %v", domain.ErrComputationFailure, decisionID, err)
	}
	return &results, nil
}
