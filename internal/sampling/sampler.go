package sampling

import (
	"fmt"
	"math"
	"math/rand"

	"risklab/internal/domain"
)

// Sampler draws from parametric distributions using an injected RNG. The
// caller owns seeding, so equal seeds replay equal streams.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler creates a sampler over a dedicated deterministic stream.
func NewSampler(seed int64) *Sampler {
	return &Sampler{rng: rand.New(rand.NewSource(seed))}
}

// Draw produces n samples from the given distribution. The caller is
// responsible for validating parameters; Draw only guards division hazards.
func (s *Sampler) Draw(spec domain.DistributionSpec, n int) ([]float64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: sample count must be > 0, got %d", domain.ErrInvalidConfig, n)
	}

	out := make([]float64, n)
	switch spec.Kind {
	case domain.DistNormal:
		p := spec.Normal
		for i := range out {
			out[i] = p.Mean + p.Stdev*s.rng.NormFloat64()
		}
	case domain.DistLognormal:
		p := spec.Lognormal
		for i := range out {
			out[i] = math.Exp(p.Mu + p.Sigma*s.rng.NormFloat64())
		}
	case domain.DistUniform:
		p := spec.Uniform
		for i := range out {
			out[i] = p.Min + (p.Max-p.Min)*s.rng.Float64()
		}
	case domain.DistTriangular:
		p := spec.Triangular
		for i := range out {
			out[i] = triangularInv(p.Min, p.Mode, p.Max, s.rng.Float64())
		}
	default:
		return nil, fmt.Errorf("%w: unknown distribution kind %q", domain.ErrInvalidConfig, spec.Kind)
	}
	return out, nil
}

// Bernoulli draws n indicator values with P(1) = p.
func (s *Sampler) Bernoulli(p float64, n int) []int {
	out := make([]int, n)
	for i := range out {
		if s.rng.Float64() < p {
			out[i] = 1
		}
	}
	return out
}

// triangularInv is the inverse CDF of the triangular distribution.
func triangularInv(min, mode, max, u float64) float64 {
	span := max - min
	cut := (mode - min) / span
	if u < cut {
		return min + math.Sqrt(u*span*(mode-min))
	}
	return max - math.Sqrt((1-u)*span*(max-mode))
}
