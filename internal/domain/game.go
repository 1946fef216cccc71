package domain

import (
	"fmt"
	"math"
)

// GameConfig applies a 2x2 strategic payoff to simulated outcomes. Each run
// draws an opponent move from MoveProbability; the option's own strategy row
// and the drawn column select the multiplier.
type GameConfig struct {
	MoveProbability  float64        `json:"moveProbability"`            // P(opponent plays column 1), in [0, 1]
	Payoff           [2][2]float64  `json:"payoff"`                     // [own strategy][opponent move] multiplier
	StrategyByOption map[string]int `json:"strategyByOption,omitempty"` // option id -> own strategy row; missing = row 0
}

// Validate checks probability, payoff finiteness and strategy rows.
func (g GameConfig) Validate() error {
	if g.MoveProbability < 0 || g.MoveProbability > 1 {
		return fmt.Errorf("%w: move probability %v outside [0, 1]", ErrInvalidConfig, g.MoveProbability)
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if math.IsNaN(g.Payoff[i][j]) || math.IsInf(g.Payoff[i][j], 0) {
				return fmt.Errorf("%w: payoff [%d][%d] is not finite", ErrInvalidConfig, i, j)
			}
		}
	}
	for optionID, row := range g.StrategyByOption {
		if row != 0 && row != 1 {
			return fmt.Errorf("%w: option %q strategy row %d outside {0, 1}", ErrInvalidConfig, optionID, row)
		}
	}
	return nil
}

// StrategyRow returns the configured row for an option, defaulting to 0.
func (g GameConfig) StrategyRow(optionID string) int {
	if g.StrategyByOption == nil {
		return 0
	}
	return g.StrategyByOption[optionID]
}
