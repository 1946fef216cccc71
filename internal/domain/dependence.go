package domain

import (
	"fmt"
	"math"
)

// Rank-correlation targets outside this range are rejected: the reordering
// cannot reliably reach correlations this extreme from finite samples.
const MaxTargetRho = 0.9

// DependenceConfig requests a pairwise rank correlation between two
// scenario variables.
type DependenceConfig struct {
	VarA      string  `json:"varA"`
	VarB      string  `json:"varB"`
	TargetRho float64 `json:"targetRho"` // in [-MaxTargetRho, MaxTargetRho]
}

// Validate checks the variable pair and the target range.
func (c DependenceConfig) Validate() error {
	if c.VarA == "" || c.VarB == "" {
		return fmt.Errorf("%w: dependence config requires both variable keys", ErrInvalidConfig)
	}
	if c.VarA == c.VarB {
		return fmt.Errorf("%w: dependence between %q and itself", ErrInvalidConfig, c.VarA)
	}
	if math.Abs(c.TargetRho) > MaxTargetRho {
		return fmt.Errorf("%w: target rho %v outside [-%v, %v]", ErrInvalidConfig, c.TargetRho, MaxTargetRho, MaxTargetRho)
	}
	return nil
}

// CopulaConfig requests a full k-variable correlation structure.
type CopulaConfig struct {
	Keys   []string    `json:"keys"`   // k variable keys, matrix order
	Target [][]float64 `json:"target"` // k x k, symmetric, unit diagonal, entries in [-1, 1]
}

// Validate checks squareness, symmetry, diagonal and entry range.
func (c CopulaConfig) Validate() error {
	k := len(c.Keys)
	if k < 2 {
		return fmt.Errorf("%w: copula requires at least 2 variables, got %d", ErrInvalidConfig, k)
	}
	seen := make(map[string]bool, k)
	for _, key := range c.Keys {
		if key == "" {
			return fmt.Errorf("%w: copula variable key is empty", ErrInvalidConfig)
		}
		if seen[key] {
			return fmt.Errorf("%w: copula variable %q listed twice", ErrInvalidConfig, key)
		}
		seen[key] = true
	}
	if len(c.Target) != k {
		return fmt.Errorf("%w: copula matrix has %d rows for %d variables", ErrInvalidConfig, len(c.Target), k)
	}
	for i, row := range c.Target {
		if len(row) != k {
			return fmt.Errorf("%w: copula matrix row %d has %d entries, want %d", ErrInvalidConfig, i, len(row), k)
		}
		for j, v := range row {
			if math.IsNaN(v) || v < -1 || v > 1 {
				return fmt.Errorf("%w: copula entry [%d][%d] = %v outside [-1, 1]", ErrInvalidConfig, i, j, v)
			}
		}
		if math.Abs(c.Target[i][i]-1) > 1e-12 {
			return fmt.Errorf("%w: copula diagonal [%d][%d] must be 1, got %v", ErrInvalidConfig, i, i, c.Target[i][i])
		}
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			if math.Abs(c.Target[i][j]-c.Target[j][i]) > 1e-12 {
				return fmt.Errorf("%w: copula matrix asymmetric at [%d][%d]", ErrInvalidConfig, i, j)
			}
		}
	}
	return nil
}
