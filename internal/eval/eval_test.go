package eval

import (
	"math"
	"testing"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

func makeBatch(qualities ...float64) record.Batch {
	var b record.Batch
	for i, q := range qualities {
		id := record.AssetID(i)
		b.Records = append(b.Records, record.Record{AssetID: id, RefinedQuality: q})
		b.Log = append(b.Log, record.LogEntry{AssetID: id, Action: "hold", Reward: 0})
	}
	return b
}

func metric(r EvalResult, name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

func TestEvalPassesOnWellFormedBatch(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	b := makeBatch(9, 1, 5)
	b.Log[0].Reward = 0.1
	b.Log[1].Reward = -0.1

	result := h.Run(b, map[string]float64{"high|1|increase": 0.01}, 0)

	if !result.Passed {
		t.Fatalf("expected pass, got fail: %s", result.Reason)
	}
	if len(result.Metrics) != 6 {
		t.Fatalf("expected 6 metrics, got %d", len(result.Metrics))
	}
}

func TestEvalFailsOnQualityOutOfRange(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(makeBatch(11, math.NaN()), nil, 0)

	if result.Passed {
		t.Fatal("expected fail")
	}
	m, _ := metric(result, "quality_out_of_range")
	if m.Value != 2 {
		t.Errorf("expected 2 bad records, got %v", m.Value)
	}
}

func TestEvalFailsOnAssetIDGap(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	b := makeBatch(5, 5)
	b.Records[1].AssetID = "asset_003"

	if h.Run(b, nil, 0).Passed {
		t.Fatal("expected fail on out-of-sequence id")
	}
}

func TestEvalFailsOnLogLengthMismatch(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	b := makeBatch(5, 5)
	b.Log = b.Log[:1]

	if h.Run(b, nil, 0).Passed {
		t.Fatal("expected fail on short log")
	}
}

func TestEvalFailsOnRewardAndTable(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	b := makeBatch(5)
	b.Log[0].Reward = math.Inf(1)

	result := h.Run(b, map[string]float64{"low|-1|hold": 99}, 0)
	if result.Passed {
		t.Fatal("expected fail")
	}
	if result.Reason == "" || result.Reason == "all checks passed" {
		t.Errorf("unexpected reason %q", result.Reason)
	}
	for _, name := range []string{"max_abs_reward", "max_abs_table_value"} {
		if m, ok := metric(result, name); !ok || m.Pass {
			t.Errorf("%s: expected failing metric", name)
		}
	}
}

func TestEvalDegradedInformationalOnly(t *testing.T) {
	h := NewEvalHarness(DefaultEvalConfig())
	result := h.Run(makeBatch(5, 5), nil, 2)

	if !result.Passed {
		t.Fatalf("degraded ratio must not fail the batch: %s", result.Reason)
	}
	m, _ := metric(result, "degraded_ratio")
	if m.Value != 1 || m.Pass {
		t.Errorf("expected failing informational metric at 1.0, got %+v", m)
	}
}
