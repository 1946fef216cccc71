package dependence

import (
	"fmt"
	"math"

	"risklab/internal/domain"
)

// BuildMatrix merges pairwise dependence requests into one copula config
// over the distinct variables involved, identity elsewhere. Conflicting
// requests for the same pair are rejected.
func BuildMatrix(configs []domain.DependenceConfig) (*domain.CopulaConfig, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("%w: no dependence configs", domain.ErrInvalidConfig)
	}

	pos := make(map[string]int)
	var keys []string
	add := func(key string) {
		if _, ok := pos[key]; !ok {
			pos[key] = len(keys)
			keys = append(keys, key)
		}
	}
	for _, c := range configs {
		if err := c.Validate(); err != nil {
			return nil, err
		}
		add(c.VarA)
		add(c.VarB)
	}

	k := len(keys)
	target := make([][]float64, k)
	for i := range target {
		target[i] = make([]float64, k)
		target[i][i] = 1
	}
	set := make(map[[2]int]bool)
	for _, c := range configs {
		i, j := pos[c.VarA], pos[c.VarB]
		if i > j {
			i, j = j, i
		}
		if set[[2]int{i, j}] && math.Abs(target[i][j]-c.TargetRho) > 1e-12 {
			return nil, fmt.Errorf("%w: conflicting dependence for pair (%s, %s)", domain.ErrInvalidConfig, c.VarA, c.VarB)
		}
		set[[2]int{i, j}] = true
		target[i][j] = c.TargetRho
		target[j][i] = c.TargetRho
	}

	return &domain.CopulaConfig{Keys: keys, Target: target}, nil
}

// cholesky returns the lower-triangular factor L with L*L^T = m. A
// non-positive-definite matrix is an invalid correlation target.
func cholesky(m [][]float64) ([][]float64, error) {
	k := len(m)
	l := make([][]float64, k)
	for i := range l {
		l[i] = make([]float64, k)
	}
	for i := 0; i < k; i++ {
		for j := 0; j <= i; j++ {
			sum := m[i][j]
			for p := 0; p < j; p++ {
				sum -= l[i][p] * l[j][p]
			}
			if i == j {
				if sum <= 0 {
					return nil, fmt.Errorf("%w: correlation matrix is not positive definite", domain.ErrInvalidConfig)
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}
	return l, nil
}

// solveLower solves L*x = b by forward substitution.
func solveLower(l [][]float64, b []float64) []float64 {
	k := len(b)
	x := make([]float64, k)
	for i := 0; i < k; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= l[i][j] * x[j]
		}
		x[i] = sum / l[i][i]
	}
	return x
}

// mulLower computes L*x for lower-triangular L.
func mulLower(l [][]float64, x []float64) []float64 {
	k := len(x)
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		var sum float64
		for j := 0; j <= i; j++ {
			sum += l[i][j] * x[j]
		}
		out[i] = sum
	}
	return out
}
