package domain

import "fmt"

// UtilityMode identifies a utility-function family.
type UtilityMode string

// Supported utility families
const (
	UtilityCARA        UtilityMode = "CARA"
	UtilityCRRA        UtilityMode = "CRRA"
	UtilityExponential UtilityMode = "EXPONENTIAL"
	UtilityQuadratic   UtilityMode = "QUADRATIC"
	UtilityPower       UtilityMode = "POWER"
)

// UtilityParams selects a utility family and its shape.
type UtilityParams struct {
	Mode        UtilityMode `json:"mode"`
	Coefficient float64     `json:"coefficient"` // risk-aversion coefficient, must be > 0
	Scale       float64     `json:"scale"`       // outcome normalization divisor, must be > 0
}

// Validate checks the mode and parameter ranges.
func (p UtilityParams) Validate() error {
	switch p.Mode {
	case UtilityCARA, UtilityCRRA, UtilityExponential, UtilityQuadratic, UtilityPower:
	default:
		return fmt.Errorf("%w: unknown utility mode %q", ErrInvalidConfig, p.Mode)
	}
	if p.Coefficient <= 0 {
		return fmt.Errorf("%w: utility coefficient must be > 0, got %v", ErrInvalidConfig, p.Coefficient)
	}
	if p.Scale <= 0 {
		return fmt.Errorf("%w: utility scale must be > 0, got %v", ErrInvalidConfig, p.Scale)
	}
	if p.Mode == UtilityPower && p.Coefficient > 1 {
		return fmt.Errorf("%w: power exponent must be in (0, 1], got %v", ErrInvalidConfig, p.Coefficient)
	}
	return nil
}
