package domain

import "fmt"

// BayesianOverride replaces a variable's declared location/spread with the
// posterior of a user prior and implied-from-history evidence.
type BayesianOverride struct {
	VariableKey    string  `json:"variableKey"`
	PriorMean      float64 `json:"priorMean"`
	PriorVar       float64 `json:"priorVar"` // must be > 0
	LikelihoodMean float64 `json:"likelihoodMean"`
	LikelihoodVar  float64 `json:"likelihoodVar"` // must be > 0
}

// Validate checks the key and that both variances are positive.
func (o BayesianOverride) Validate() error {
	if o.VariableKey == "" {
		return fmt.Errorf("%w: bayesian override requires a variable key", ErrInvalidConfig)
	}
	if o.PriorVar <= 0 {
		return fmt.Errorf("%w: override %q prior variance must be > 0, got %v", ErrInvalidConfig, o.VariableKey, o.PriorVar)
	}
	if o.LikelihoodVar <= 0 {
		return fmt.Errorf("%w: override %q likelihood variance must be > 0, got %v", ErrInvalidConfig, o.VariableKey, o.LikelihoodVar)
	}
	return nil
}

// Posterior is the result of conjugate Normal-Normal blending.
type Posterior struct {
	Mean float64
	Var  float64
}
