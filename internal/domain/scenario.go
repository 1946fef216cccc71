package domain

import "fmt"

// DistributionKind identifies a parametric distribution family.
type DistributionKind string

// Supported distribution kinds
const (
	DistNormal     DistributionKind = "normal"
	DistLognormal  DistributionKind = "lognormal"
	DistUniform    DistributionKind = "uniform"
	DistTriangular DistributionKind = "triangular"
)

// NormalParams parameterizes a normal distribution.
type NormalParams struct {
	Mean  float64 `json:"mean"`
	Stdev float64 `json:"stdev"` // must be > 0
}

// LognormalParams parameterizes a lognormal distribution by the mean and
// standard deviation of the underlying normal.
type LognormalParams struct {
	Mu    float64 `json:"mu"`
	Sigma float64 `json:"sigma"` // must be > 0
}

// UniformParams parameterizes a uniform distribution on [Min, Max).
type UniformParams struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"` // must be > Min
}

// TriangularParams parameterizes a triangular distribution.
type TriangularParams struct {
	Min  float64 `json:"min"`
	Mode float64 `json:"mode"` // Min <= Mode <= Max
	Max  float64 `json:"max"`  // must be > Min
}

// DistributionSpec is a tagged variant: Kind selects which parameter block
// must be non-nil. Exactly one block is set on a valid spec.
type DistributionSpec struct {
	Kind DistributionKind `json:"kind"`

	Normal     *NormalParams     `json:"normal,omitempty"`
	Lognormal  *LognormalParams  `json:"lognormal,omitempty"`
	Uniform    *UniformParams    `json:"uniform,omitempty"`
	Triangular *TriangularParams `json:"triangular,omitempty"`
}

// Validate checks that the parameter block matching Kind is present, that
// no other block is set, and that the parameters are in range.
func (d DistributionSpec) Validate() error {
	set := 0
	if d.Normal != nil {
		set++
	}
	if d.Lognormal != nil {
		set++
	}
	if d.Uniform != nil {
		set++
	}
	if d.Triangular != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: distribution %q must set exactly one parameter block, got %d", ErrInvalidConfig, d.Kind, set)
	}

	switch d.Kind {
	case DistNormal:
		if d.Normal == nil {
			return fmt.Errorf("%w: kind %q requires normal params", ErrInvalidConfig, d.Kind)
		}
		if d.Normal.Stdev <= 0 {
			return fmt.Errorf("%w: normal stdev must be > 0, got %v", ErrInvalidConfig, d.Normal.Stdev)
		}
	case DistLognormal:
		if d.Lognormal == nil {
			return fmt.Errorf("%w: kind %q requires lognormal params", ErrInvalidConfig, d.Kind)
		}
		if d.Lognormal.Sigma <= 0 {
			return fmt.Errorf("%w: lognormal sigma must be > 0, got %v", ErrInvalidConfig, d.Lognormal.Sigma)
		}
	case DistUniform:
		if d.Uniform == nil {
			return fmt.Errorf("%w: kind %q requires uniform params", ErrInvalidConfig, d.Kind)
		}
		if d.Uniform.Max <= d.Uniform.Min {
			return fmt.Errorf("%w: uniform requires min < max, got [%v, %v]", ErrInvalidConfig, d.Uniform.Min, d.Uniform.Max)
		}
	case DistTriangular:
		if d.Triangular == nil {
			return fmt.Errorf("%w: kind %q requires triangular params", ErrInvalidConfig, d.Kind)
		}
		t := d.Triangular
		if t.Max <= t.Min {
			return fmt.Errorf("%w: triangular requires min < max, got [%v, %v]", ErrInvalidConfig, t.Min, t.Max)
		}
		if t.Mode < t.Min || t.Mode > t.Max {
			return fmt.Errorf("%w: triangular mode %v outside [%v, %v]", ErrInvalidConfig, t.Mode, t.Min, t.Max)
		}
	default:
		return fmt.Errorf("%w: unknown distribution kind %q", ErrInvalidConfig, d.Kind)
	}
	return nil
}

// VariableChannel classifies how a variable enters the combined outcome.
type VariableChannel string

// Channel constants. Return-channel samples add to the outcome, cost-channel
// samples subtract.
const (
	ChannelReturn VariableChannel = "return"
	ChannelCost   VariableChannel = "cost"
)

// ScenarioVariable is one stochastic input to a simulation.
type ScenarioVariable struct {
	Key       string           `json:"key"`                 // unique within a decision
	AppliesTo string           `json:"appliesTo,omitempty"` // option id, or "" for all options
	Channel   VariableChannel  `json:"channel,omitempty"`   // defaults to ChannelReturn when empty
	Dist      DistributionSpec `json:"dist"`                // tagged distribution variant
	Weight    float64          `json:"weight"`              // must be > 0
}

// Validate checks key, weight, channel and the distribution spec.
func (v ScenarioVariable) Validate() error {
	if v.Key == "" {
		return fmt.Errorf("%w: scenario variable key is empty", ErrInvalidConfig)
	}
	if v.Weight <= 0 {
		return fmt.Errorf("%w: variable %q weight must be > 0, got %v", ErrInvalidConfig, v.Key, v.Weight)
	}
	switch v.Channel {
	case ChannelReturn, ChannelCost, "":
	default:
		return fmt.Errorf("%w: variable %q has unknown channel %q", ErrInvalidConfig, v.Key, v.Channel)
	}
	if err := v.Dist.Validate(); err != nil {
		return fmt.Errorf("variable %q: %w", v.Key, err)
	}
	return nil
}

// EffectiveChannel returns the channel, defaulting to ChannelReturn.
func (v ScenarioVariable) EffectiveChannel() VariableChannel {
	if v.Channel == "" {
		return ChannelReturn
	}
	return v.Channel
}
