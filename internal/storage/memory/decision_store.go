package memory

import (
	"context"
	"sort"
	"sync"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// DecisionStore is an in-memory implementation of storage.DecisionStore.
type DecisionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Decision // keyed by decision id
}

// NewDecisionStore creates a new in-memory decision store.
func NewDecisionStore() *DecisionStore {
	return &DecisionStore{
		data: make(map[string]*domain.Decision),
	}
}

// cloneDecision copies a decision including its nested slices so callers
// cannot mutate stored state through returned values.
func cloneDecision(d *domain.Decision) *domain.Decision {
	c := *d
	c.Options = append([]domain.Option(nil), d.Options...)
	c.Variables = append([]domain.ScenarioVariable(nil), d.Variables...)
	c.Links = append([]domain.SignalLink(nil), d.Links...)
	c.Dependence = append([]domain.DependenceConfig(nil), d.Dependence...)
	c.Overrides = append([]domain.BayesianOverride(nil), d.Overrides...)
	if d.Utility != nil {
		u := *d.Utility
		c.Utility = &u
	}
	if d.Game != nil {
		g := *d.Game
		g.StrategyByOption = make(map[string]int, len(d.Game.StrategyByOption))
		for k, v := range d.Game.StrategyByOption {
			g.StrategyByOption[k] = v
		}
		c.Game = &g
	}
	if d.Copula != nil {
		cp := *d.Copula
		cp.Keys = append([]string(nil), d.Copula.Keys...)
		cp.Target = make([][]float64, len(d.Copula.Target))
		for i, row := range d.Copula.Target {
			cp.Target[i] = append([]float64(nil), row...)
		}
		c.Copula = &cp
	}
	return &c
}

// Insert adds a new decision. Returns ErrDuplicateKey if the id exists.
func (s *DecisionStore) Insert(_ context.Context, d *domain.Decision) error {
	if d == nil || d.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[d.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[d.ID] = cloneDecision(d)
	return nil
}

// GetByID retrieves a decision by its ID. Returns ErrNotFound if not exists.
func (s *DecisionStore) GetByID(_ context.Context, decisionID string) (*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.data[decisionID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return cloneDecision(d), nil
}

// ListByTenant retrieves all decisions for a tenant, ordered by ID ASC.
func (s *DecisionStore) ListByTenant(_ context.Context, tenant string) ([]*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Decision
	for _, d := range s.data {
		if d.Tenant == tenant {
			result = append(result, cloneDecision(d))
		}
	}

	// Sort by id ASC
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// ListBySignal retrieves decisions with a link to the signal, ordered by ID ASC.
func (s *DecisionStore) ListBySignal(_ context.Context, signalID string) ([]*domain.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Decision
	for _, d := range s.data {
		for _, link := range d.Links {
			if link.SignalID == signalID {
				result = append(result, cloneDecision(d))
				break
			}
		}
	}

	// Sort by id ASC
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.DecisionStore = (*DecisionStore)(nil)
