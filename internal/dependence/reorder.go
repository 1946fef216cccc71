package dependence

import (
	"fmt"
	"math"
	"sort"

	"risklab/internal/domain"
)

// Reorder permutes each variable's sample vector in place so that the joint
// Spearman correlation approximates the target matrix, using rank-based
// Iman-Conover with van der Waerden scores. The multiset of values per
// variable never changes, only their order. Returns the achieved matrix and
// its Frobenius distance to the target.
//
// The transform is fully deterministic: scores derive from sample ranks, no
// extra randomness enters.
func Reorder(cfg domain.CopulaConfig, samples map[string][]float64) (*domain.DependenceReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	k := len(cfg.Keys)
	n := -1
	for _, key := range cfg.Keys {
		vec, ok := samples[key]
		if !ok {
			return nil, fmt.Errorf("%w: no samples for variable %q", domain.ErrInvalidConfig, key)
		}
		if n == -1 {
			n = len(vec)
		} else if len(vec) != n {
			return nil, fmt.Errorf("%w: variable %q has %d samples, want %d", domain.ErrInvalidConfig, key, len(vec), n)
		}
	}
	if n < domain.MinDependenceRuns {
		return nil, fmt.Errorf("%w: dependence needs at least %d runs, got %d", domain.ErrInsufficientSamples, domain.MinDependenceRuns, n)
	}

	target, err := cholesky(cfg.Target)
	if err != nil {
		return nil, err
	}

	// Normal scores of each variable's own ranks. Independent inputs give
	// near-orthogonal columns; the residual correlation is removed below.
	scores := make([][]float64, k)
	for j, key := range cfg.Keys {
		r := ranks(samples[key])
		col := make([]float64, n)
		for i := range col {
			col[i] = normalQuantile(r[i] / float64(n+1))
		}
		scores[j] = col
	}

	// Decorrelate the score columns before imposing the target structure.
	// When the score correlation is numerically non-definite the raw scores
	// are close enough to orthogonal to use directly.
	var scoreChol [][]float64
	if c, err := cholesky(pearsonMatrix(scores)); err == nil {
		scoreChol = c
	}

	transformed := make([][]float64, k)
	for j := range transformed {
		transformed[j] = make([]float64, n)
	}
	row := make([]float64, k)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			row[j] = scores[j][i]
		}
		z := row
		if scoreChol != nil {
			z = solveLower(scoreChol, row)
		}
		w := mulLower(target, z)
		for j := 0; j < k; j++ {
			transformed[j][i] = w[j]
		}
	}

	// Rank-match: the run with the p-th smallest transformed score receives
	// the p-th smallest original value.
	reordered := make([][]float64, k)
	for j, key := range cfg.Keys {
		vec := samples[key]
		sorted := append([]float64(nil), vec...)
		sort.Float64s(sorted)

		out := make([]float64, n)
		for pos, origIdx := range argsort(transformed[j]) {
			out[origIdx] = sorted[pos]
		}
		copy(vec, out)
		reordered[j] = vec
	}

	achieved := spearmanMatrix(reordered)
	return &domain.DependenceReport{
		Keys:           append([]string(nil), cfg.Keys...),
		Target:         cfg.Target,
		Achieved:       achieved,
		FrobeniusError: FrobeniusError(cfg.Target, achieved),
	}, nil
}

// ReorderPairwise merges pairwise requests and applies Reorder.
func ReorderPairwise(configs []domain.DependenceConfig, samples map[string][]float64) (*domain.DependenceReport, error) {
	cfg, err := BuildMatrix(configs)
	if err != nil {
		return nil, err
	}
	return Reorder(*cfg, samples)
}

// pearsonMatrix computes the pairwise Pearson matrix of column vectors.
func pearsonMatrix(cols [][]float64) [][]float64 {
	k := len(cols)
	m := make([][]float64, k)
	for i := range m {
		m[i] = make([]float64, k)
		m[i][i] = 1
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			r := pearson(cols[i], cols[j])
			m[i][j] = r
			m[j][i] = r
		}
	}
	return m
}

// normalQuantile is the standard normal inverse CDF.
func normalQuantile(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}
