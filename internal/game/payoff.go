package game

import (
	"fmt"

	"risklab/internal/domain"
)

// ApplyPayoff multiplies each run's outcome by the payoff cell selected by
// the option's strategy row and that run's drawn opponent move. Outcomes are
// modified in place.
func ApplyPayoff(outcomes []float64, moves []int, cfg domain.GameConfig, optionID string) error {
	if len(moves) != len(outcomes) {
		return fmt.Errorf("%w: %d moves for %d outcomes", domain.ErrInvalidConfig, len(moves), len(outcomes))
	}
	row := cfg.StrategyRow(optionID)
	if row != 0 && row != 1 {
		return fmt.Errorf("%w: option %q strategy row %d outside {0, 1}", domain.ErrInvalidConfig, optionID, row)
	}

	for i, move := range moves {
		if move != 0 && move != 1 {
			return fmt.Errorf("%w: run %d drew move %d outside {0, 1}", domain.ErrInvalidConfig, i, move)
		}
		outcomes[i] *= cfg.Payoff[row][move]
	}
	return nil
}

// ExpectedMultiplier is the mean payoff for an option under the configured
// move probability. Used for reporting, not simulation.
func ExpectedMultiplier(cfg domain.GameConfig, optionID string) float64 {
	row := cfg.StrategyRow(optionID)
	return cfg.Payoff[row][0]*(1-cfg.MoveProbability) + cfg.Payoff[row][1]*cfg.MoveProbability
}
