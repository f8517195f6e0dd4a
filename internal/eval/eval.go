package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

// #region eval-harness
// EvalHarness runs lightweight validation on a refined batch before it is
// handed to the durable store.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run validates records, log and table. degraded is the number of records
// whose classification fell back to NEUTRAL.
func (h *EvalHarness) Run(batch record.Batch, table map[string]float64, degraded int) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, value float64, pass bool, reason string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass})
		if !pass {
			failReasons = append(failReasons, reason)
		}
	}

	// 1. Refined quality stays on the 0..10 rating scale
	outOfRange := 0
	for _, r := range batch.Records {
		if !finite(r.RefinedQuality) || r.RefinedQuality < 0 || r.RefinedQuality > 10 {
			outOfRange++
		}
	}
	check("quality_out_of_range", float64(outOfRange), outOfRange == 0,
		fmt.Sprintf("%d records outside [0,10]", outOfRange))

	// 2. Asset ids are sequential and unique, in input order
	badIDs := 0
	for i, r := range batch.Records {
		if r.AssetID != record.AssetID(i) {
			badIDs++
		}
	}
	check("asset_id_mismatch", float64(badIDs), badIDs == 0,
		fmt.Sprintf("%d asset ids out of sequence", badIDs))

	// 3. One log entry per record
	check("log_length", float64(len(batch.Log)), len(batch.Log) == len(batch.Records),
		fmt.Sprintf("log has %d entries for %d records", len(batch.Log), len(batch.Records)))

	// 4. Rewards are finite and bounded by the step size
	maxReward := 0.0
	for _, e := range batch.Log {
		if !finite(e.Reward) {
			maxReward = math.Inf(1)
			break
		}
		maxReward = math.Max(maxReward, math.Abs(e.Reward))
	}
	check("max_abs_reward", maxReward, maxReward <= h.config.MaxAbsReward,
		fmt.Sprintf("reward magnitude %.4f exceeds %.4f", maxReward, h.config.MaxAbsReward))

	// 5. Table values are finite and bounded
	maxValue := 0.0
	for _, v := range table {
		if !finite(v) {
			maxValue = math.Inf(1)
			break
		}
		maxValue = math.Max(maxValue, math.Abs(v))
	}
	check("max_abs_table_value", maxValue, maxValue <= h.config.MaxAbsTableValue,
		fmt.Sprintf("table value %.4f exceeds %.4f", maxValue, h.config.MaxAbsTableValue))

	// 6. Degraded share: informational only, does not fail
	ratio := 0.0
	if n := len(batch.Records); n > 0 {
		ratio = float64(degraded) / float64(n)
	}
	metrics = append(metrics, EvalMetric{
		Name:  "degraded_ratio",
		Value: ratio,
		Pass:  ratio <= h.config.MaxDegradedRatio,
	})

	reason := "all checks passed"
	if len(failReasons) == 1 {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
	} else if len(failReasons) > 1 {
		reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
	}

	return EvalResult{
		Passed:  len(failReasons) == 0,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// #endregion helpers
