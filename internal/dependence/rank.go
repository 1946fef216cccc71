package dependence

import (
	"math"
	"sort"
)

// ranks returns 1-based ranks with ties averaged.
func ranks(values []float64) []float64 {
	n := len(values)
	idx := argsort(values)

	r := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j+1 < n && values[idx[j+1]] == values[idx[i]] {
			j++
		}
		// Tied block [i, j] shares the average of its rank span.
		avg := float64(i+j+2) / 2
		for k := i; k <= j; k++ {
			r[idx[k]] = avg
		}
		i = j + 1
	}
	return r
}

// argsort returns index order sorting values ascending, stable on ties.
func argsort(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })
	return idx
}

// Spearman computes the rank correlation of two equal-length vectors.
// Returns 0 when either vector is constant.
func Spearman(a, b []float64) float64 {
	return pearson(ranks(a), ranks(b))
}

func pearson(a, b []float64) float64 {
	n := float64(len(a))
	if n == 0 {
		return 0
	}

	var sumA, sumB float64
	for i := range a {
		sumA += a[i]
		sumB += b[i]
	}
	meanA, meanB := sumA/n, sumB/n

	var cov, varA, varB float64
	for i := range a {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// spearmanMatrix computes the pairwise Spearman matrix of column vectors.
func spearmanMatrix(cols [][]float64) [][]float64 {
	k := len(cols)
	m := make([][]float64, k)
	for i := range m {
		m[i] = make([]float64, k)
		m[i][i] = 1
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			rho := Spearman(cols[i], cols[j])
			m[i][j] = rho
			m[j][i] = rho
		}
	}
	return m
}

// FrobeniusError is the Frobenius norm of the elementwise difference of two
// equally shaped matrices.
func FrobeniusError(target, achieved [][]float64) float64 {
	var sum float64
	for i := range target {
		for j := range target[i] {
			d := target[i][j] - achieved[i][j]
			sum += d * d
		}
	}
	return math.Sqrt(sum)
}
