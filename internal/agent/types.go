package agent

import "github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/quality"

// #region source
// Source supplies every random draw the agent makes. *rand.Rand from
// math/rand/v2 satisfies it; tests inject fixed sequences.
type Source interface {
	Float64() float64
	IntN(n int) int
}
// #endregion source

// #region config
// Config holds the learning parameters.
type Config struct {
	Alpha   float64 `json:"alpha"`   // learning rate
	Gamma   float64 `json:"gamma"`   // discount
	Epsilon float64 `json:"epsilon"` // exploration probability
}

// DefaultConfig returns alpha=0.1, gamma=0.6, epsilon=0.1.
func DefaultConfig() Config {
	return Config{
		Alpha:   0.1,
		Gamma:   0.6,
		Epsilon: 0.1,
	}
}
// #endregion config

// #region key
type key struct {
	state  quality.State
	action quality.Action
}
// #endregion key
