package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"risklab/internal/domain"
	"risklab/internal/storage"
)

// DecisionStore implements storage.DecisionStore using PostgreSQL.
// Nested configuration lives in JSONB columns; filterable fields are
// scalar columns.
type DecisionStore struct {
	pool *Pool
}

// NewDecisionStore creates a new DecisionStore.
func NewDecisionStore(pool *Pool) *DecisionStore {
	return &DecisionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.DecisionStore = (*DecisionStore)(nil)

const decisionColumns = `
	decision_id, tenant, label, seed, runs,
	options, variables, links,
	utility, game, dependence, copula, overrides
`

// Insert adds a new decision. Returns ErrDuplicateKey if the id exists.
func (s *DecisionStore) Insert(ctx context.Context, d *domain.Decision) error {
	if d == nil || d.ID == "" {
		return storage.ErrInvalidInput
	}

	options, err := json.Marshal(d.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	variables, err := json.Marshal(d.Variables)
	if err != nil {
		return fmt.Errorf("marshal variables: %w", err)
	}
	links := d.Links
	if links == nil {
		links = []domain.SignalLink{}
	}
	linksJSON, err := json.Marshal(links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}
	utility, err := marshalOptional(d.Utility)
	if err != nil {
		return fmt.Errorf("marshal utility: %w", err)
	}
	game, err := marshalOptional(d.Game)
	if err != nil {
		return fmt.Errorf("marshal game: %w", err)
	}
	var dependence []byte
	if len(d.Dependence) > 0 {
		if dependence, err = json.Marshal(d.Dependence); err != nil {
			return fmt.Errorf("marshal dependence: %w", err)
		}
	}
	copula, err := marshalOptional(d.Copula)
	if err != nil {
		return fmt.Errorf("marshal copula: %w", err)
	}
	var overrides []byte
	if len(d.Overrides) > 0 {
		if overrides, err = json.Marshal(d.Overrides); err != nil {
			return fmt.Errorf("marshal overrides: %w", err)
		}
	}

	query := `
		INSERT INTO decisions (
			decision_id, tenant, label, seed, runs,
			options, variables, links,
			utility, game, dependence, copula, overrides
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13
		)
	`

	_, err = s.pool.Exec(ctx, query,
		d.ID, d.Tenant, d.Label, d.Seed, d.Runs,
		options, variables, linksJSON,
		utility, game, dependence, copula, overrides,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// GetByID retrieves a decision by its ID. Returns ErrNotFound if not exists.
func (s *DecisionStore) GetByID(ctx context.Context, decisionID string) (*domain.Decision, error) {
	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE decision_id = $1`

	row := s.pool.QueryRow(ctx, query, decisionID)
	d, err := scanDecision(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get decision by id: %w", err)
	}
	return d, nil
}

// ListByTenant retrieves all decisions for a tenant, ordered by ID ASC.
func (s *DecisionStore) ListByTenant(ctx context.Context, tenant string) ([]*domain.Decision, error) {
	query := `SELECT ` + decisionColumns + ` FROM decisions WHERE tenant = $1 ORDER BY decision_id ASC`

	rows, err := s.pool.Query(ctx, query, tenant)
	if err != nil {
		return nil, fmt.Errorf("list decisions by tenant: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// ListBySignal retrieves decisions with a link to the signal, ordered by ID ASC.
func (s *DecisionStore) ListBySignal(ctx context.Context, signalID string) ([]*domain.Decision, error) {
	// JSONB containment over the links array, served by the GIN index
	query := `
		SELECT ` + decisionColumns + `
		FROM decisions
		WHERE links @> jsonb_build_array(jsonb_build_object('signalId', $1::text))
		ORDER BY decision_id ASC
	`

	rows, err := s.pool.Query(ctx, query, signalID)
	if err != nil {
		return nil, fmt.Errorf("list decisions by signal: %w", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// marshalOptional marshals a pointer config, passing SQL NULL for nil.
func marshalOptional[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// scanDecision scans a single row into a Decision.
func scanDecision(row pgx.Row) (*domain.Decision, error) {
	var d domain.Decision
	var options, variables, links, utility, game, dependence, copula, overrides []byte

	err := row.Scan(
		&d.ID, &d.Tenant, &d.Label, &d.Seed, &d.Runs,
		&options, &variables, &links,
		&utility, &game, &dependence, &copula, &overrides,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(options, &d.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	if err := json.Unmarshal(variables, &d.Variables); err != nil {
		return nil, fmt.Errorf("unmarshal variables: %w", err)
	}
	if err := json.Unmarshal(links, &d.Links); err != nil {
		return nil, fmt.Errorf("unmarshal links: %w", err)
	}
	if utility != nil {
		if err := json.Unmarshal(utility, &d.Utility); err != nil {
			return nil, fmt.Errorf("unmarshal utility: %w", err)
		}
	}
	if game != nil {
		if err := json.Unmarshal(game, &d.Game); err != nil {
			return nil, fmt.Errorf("unmarshal game: %w", err)
		}
	}
	if dependence != nil {
		if err := json.Unmarshal(dependence, &d.Dependence); err != nil {
			return nil, fmt.Errorf("unmarshal dependence: %w", err)
		}
	}
	if copula != nil {
		if err := json.Unmarshal(copula, &d.Copula); err != nil {
			return nil, fmt.Errorf("unmarshal copula: %w", err)
		}
	}
	if overrides != nil {
		if err := json.Unmarshal(overrides, &d.Overrides); err != nil {
			return nil, fmt.Errorf("unmarshal overrides: %w", err)
		}
	}
	return &d, nil
}

// scanDecisions scans multiple rows into a slice of Decision.
func scanDecisions(rows pgx.Rows) ([]*domain.Decision, error) {
	var decisions []*domain.Decision

	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, fmt.Errorf("scan decision row: %w", err)
		}
		decisions = append(decisions, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decision rows: %w", err)
	}
	return decisions, nil
}
