package simulation

import (
	"fmt"
	"math"

	"risklab/internal/domain"
)

// Validate checks the request before any sampling happens. Cross-field
// rules live here; per-value rules live on the domain types.
func (r Request) Validate() error {
	if len(r.Options) == 0 {
		return fmt.Errorf("%w: at least one option is required", domain.ErrInvalidConfig)
	}
	if len(r.Variables) == 0 {
		return fmt.Errorf("%w: at least one scenario variable is required", domain.ErrInvalidConfig)
	}
	if r.Runs <= 0 {
		return fmt.Errorf("%w: runs must be positive, got %d", domain.ErrInvalidConfig, r.Runs)
	}

	optionIDs := make(map[string]bool, len(r.Options))
	for _, o := range r.Options {
		if err := o.Validate(); err != nil {
			return err
		}
		if optionIDs[o.ID] {
			return fmt.Errorf("%w: duplicate option id %q", domain.ErrInvalidConfig, o.ID)
		}
		optionIDs[o.ID] = true
	}

	globalKeys := make(map[string]bool)
	variableKeys := make(map[string]*domain.ScenarioVariable, len(r.Variables))
	for i := range r.Variables {
		v := &r.Variables[i]
		if err := v.Validate(); err != nil {
			return err
		}
		if variableKeys[v.Key] != nil {
			return fmt.Errorf("%w: duplicate variable key %q", domain.ErrInvalidConfig, v.Key)
		}
		variableKeys[v.Key] = v
		if v.AppliesTo == "" {
			globalKeys[v.Key] = true
		} else if !optionIDs[v.AppliesTo] {
			return fmt.Errorf("%w: variable %q applies to unknown option %q", domain.ErrInvalidConfig, v.Key, v.AppliesTo)
		}
	}

	// Every option needs at least one variable contributing to its outcome.
	for _, o := range r.Options {
		covered := false
		for i := range r.Variables {
			if r.Variables[i].AppliesTo == "" || r.Variables[i].AppliesTo == o.ID {
				covered = true
				break
			}
		}
		if !covered {
			return fmt.Errorf("%w: option %q has no scenario variables", domain.ErrInvalidConfig, o.ID)
		}
	}

	if r.Copula != nil && len(r.Dependence) > 0 {
		return fmt.Errorf("%w: copula matrix and pairwise dependence are mutually exclusive", domain.ErrInvalidConfig)
	}

	dependenceKeys := make([]string, 0)
	if r.Copula != nil {
		if err := r.Copula.Validate(); err != nil {
			return err
		}
		dependenceKeys = append(dependenceKeys, r.Copula.Keys...)
	}
	for _, d := range r.Dependence {
		if err := d.Validate(); err != nil {
			return err
		}
		dependenceKeys = append(dependenceKeys, d.VarA, d.VarB)
	}
	if len(dependenceKeys) > 0 {
		// Dependence couples variables across every option's sample set, so
		// participants must exist in all of them.
		for _, key := range dependenceKeys {
			if variableKeys[key] == nil {
				return fmt.Errorf("%w: dependence references unknown variable %q", domain.ErrInvalidConfig, key)
			}
			if !globalKeys[key] {
				return fmt.Errorf("%w: dependence variable %q must be global, not option-scoped", domain.ErrInvalidConfig, key)
			}
		}
		if r.Runs < domain.MinDependenceRuns {
			return fmt.Errorf("%w: dependence modeling needs at least %d runs, got %d",
				domain.ErrInsufficientSamples, domain.MinDependenceRuns, r.Runs)
		}
	}

	overrideKeys := make(map[string]bool, len(r.Overrides))
	for _, o := range r.Overrides {
		if err := o.Validate(); err != nil {
			return err
		}
		if overrideKeys[o.VariableKey] {
			return fmt.Errorf("%w: duplicate override for variable %q", domain.ErrInvalidConfig, o.VariableKey)
		}
		overrideKeys[o.VariableKey] = true
		v := variableKeys[o.VariableKey]
		if v == nil {
			return fmt.Errorf("%w: override references unknown variable %q", domain.ErrInvalidConfig, o.VariableKey)
		}
		if v.Dist.Kind != domain.DistNormal && v.Dist.Kind != domain.DistLognormal {
			return fmt.Errorf("%w: override on variable %q requires a normal or lognormal distribution, got %s",
				domain.ErrInvalidConfig, o.VariableKey, v.Dist.Kind)
		}
	}

	if r.Utility != nil {
		if err := r.Utility.Validate(); err != nil {
			return err
		}
	}
	if r.Game != nil {
		if err := r.Game.Validate(); err != nil {
			return err
		}
		for optionID := range r.Game.StrategyByOption {
			if !optionIDs[optionID] {
				return fmt.Errorf("%w: game strategy references unknown option %q", domain.ErrInvalidConfig, optionID)
			}
		}
	}
	return nil
}

func sqrtVar(v float64) float64 {
	return math.Sqrt(v)
}
