package bayes

import (
	"fmt"

	"risklab/internal/domain"
)

// Blend combines a declared prior with implied-from-history evidence using
// the conjugate Normal-Normal update: posterior precision is the sum of
// precisions, posterior mean the precision-weighted average. The posterior
// variance is strictly below both inputs.
func Blend(priorMean, priorVar, likelihoodMean, likelihoodVar float64) (domain.Posterior, error) {
	if priorVar <= 0 {
		return domain.Posterior{}, fmt.Errorf("%w: prior variance must be > 0, got %v", domain.ErrInvalidConfig, priorVar)
	}
	if likelihoodVar <= 0 {
		return domain.Posterior{}, fmt.Errorf("%w: likelihood variance must be > 0, got %v", domain.ErrInvalidConfig, likelihoodVar)
	}

	priorPrec := 1 / priorVar
	likPrec := 1 / likelihoodVar
	postPrec := priorPrec + likPrec

	return domain.Posterior{
		Mean: (priorMean*priorPrec + likelihoodMean*likPrec) / postPrec,
		Var:  1 / postPrec,
	}, nil
}

// Apply resolves an override into its posterior.
func Apply(o domain.BayesianOverride) (domain.Posterior, error) {
	if err := o.Validate(); err != nil {
		return domain.Posterior{}, err
	}
	return Blend(o.PriorMean, o.PriorVar, o.LikelihoodMean, o.LikelihoodVar)
}
