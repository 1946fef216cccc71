package domain

import "fmt"

// Option is one alternative under a decision.
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Validate checks the option id.
func (o Option) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%w: option id is empty", ErrInvalidConfig)
	}
	return nil
}

// SignalLink ties an external signal to a scenario variable. Direction is
// the declared correlation sign: +1 shifts the variable with the signal,
// -1 against it.
type SignalLink struct {
	SignalID    string `json:"signalId"`
	VariableKey string `json:"variableKey"`
	Direction   int    `json:"direction"` // +1 or -1
}

// Decision is the registry payload for one decision: its options, stochastic
// inputs, signal links and simulation configuration.
type Decision struct {
	ID     string `json:"id"`
	Tenant string `json:"tenant"`
	Label  string `json:"label"`

	Options   []Option           `json:"options"`
	Variables []ScenarioVariable `json:"variables"`
	Links     []SignalLink       `json:"links,omitempty"`

	// Simulation configuration, reused verbatim on signal-triggered refresh.
	Seed       int64              `json:"seed"`
	Runs       int                `json:"runs"`
	Utility    *UtilityParams     `json:"utility,omitempty"`
	Game       *GameConfig        `json:"game,omitempty"`
	Dependence []DependenceConfig `json:"dependence,omitempty"`
	Copula     *CopulaConfig      `json:"copula,omitempty"`
	Overrides  []BayesianOverride `json:"overrides,omitempty"`
}

// Validate checks structural integrity: ids present, at least one option and
// one variable, links referencing declared variables, valid sub-configs.
func (d Decision) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: decision id is empty", ErrInvalidConfig)
	}
	if len(d.Options) == 0 {
		return fmt.Errorf("%w: decision %q has no options", ErrInvalidConfig, d.ID)
	}
	if len(d.Variables) == 0 {
		return fmt.Errorf("%w: decision %q has no scenario variables", ErrInvalidConfig, d.ID)
	}
	if d.Runs <= 0 {
		return fmt.Errorf("%w: decision %q runs must be > 0, got %d", ErrInvalidConfig, d.ID, d.Runs)
	}

	optionIDs := make(map[string]bool, len(d.Options))
	for _, o := range d.Options {
		if o.ID == "" {
			return fmt.Errorf("%w: decision %q has an option with empty id", ErrInvalidConfig, d.ID)
		}
		if optionIDs[o.ID] {
			return fmt.Errorf("%w: decision %q option %q declared twice", ErrInvalidConfig, d.ID, o.ID)
		}
		optionIDs[o.ID] = true
	}

	varKeys := make(map[string]bool, len(d.Variables))
	for _, v := range d.Variables {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("decision %q: %w", d.ID, err)
		}
		if varKeys[v.Key] {
			return fmt.Errorf("%w: decision %q variable %q declared twice", ErrInvalidConfig, d.ID, v.Key)
		}
		varKeys[v.Key] = true
		if v.AppliesTo != "" && !optionIDs[v.AppliesTo] {
			return fmt.Errorf("%w: decision %q variable %q applies to unknown option %q", ErrInvalidConfig, d.ID, v.Key, v.AppliesTo)
		}
	}

	for _, l := range d.Links {
		if l.SignalID == "" {
			return fmt.Errorf("%w: decision %q has a link with empty signal id", ErrInvalidConfig, d.ID)
		}
		if !varKeys[l.VariableKey] {
			return fmt.Errorf("%w: decision %q links signal %q to unknown variable %q", ErrInvalidConfig, d.ID, l.SignalID, l.VariableKey)
		}
		if l.Direction != 1 && l.Direction != -1 {
			return fmt.Errorf("%w: decision %q link %q direction must be +1 or -1, got %d", ErrInvalidConfig, d.ID, l.SignalID, l.Direction)
		}
	}
	return nil
}

// LinkedSignalIDs returns the distinct signal ids this decision listens to.
func (d Decision) LinkedSignalIDs() []string {
	seen := make(map[string]bool, len(d.Links))
	ids := make([]string, 0, len(d.Links))
	for _, l := range d.Links {
		if !seen[l.SignalID] {
			seen[l.SignalID] = true
			ids = append(ids, l.SignalID)
		}
	}
	return ids
}
