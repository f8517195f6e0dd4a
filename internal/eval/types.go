package eval

// #region eval-config
// EvalConfig holds thresholds for pre-persist batch validation.
type EvalConfig struct {
	MaxAbsReward     float64 // one step moves quality by at most 0.1
	MaxAbsTableValue float64 // reject a diverging learning table
	MaxDegradedRatio float64 // warn when this share of records fell back to NEUTRAL
}

// DefaultEvalConfig returns sensible defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxAbsReward:     0.1 + 1e-9,
		MaxAbsTableValue: 10.0,
		MaxDegradedRatio: 0.5,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of batch validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
