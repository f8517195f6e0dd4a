package agent

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/quality"
)

// #region mock

// fixedSource replays scripted draws, cycling when exhausted.
type fixedSource struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (f *fixedSource) Float64() float64 {
	if len(f.floats) == 0 {
		return 0.99
	}
	v := f.floats[f.fi%len(f.floats)]
	f.fi++
	return v
}

func (f *fixedSource) IntN(n int) int {
	if len(f.ints) == 0 {
		return 0
	}
	v := f.ints[f.ii%len(f.ints)] % n
	f.ii++
	return v
}

var (
	highPos = quality.State{Bucket: quality.BucketHigh, Sign: quality.SignPositive}
	lowNeg  = quality.State{Bucket: quality.BucketLow, Sign: quality.SignNegative}
)

func greedy() Config {
	cfg := DefaultConfig()
	cfg.Epsilon = 0
	return cfg
}

// #endregion mock

// #region policy-tests

func TestPolicy_GreedyPicksMax(t *testing.T) {
	a := New(greedy(), &fixedSource{})
	a.table[key{highPos, quality.ActionDecrease}] = 0.5
	a.table[key{highPos, quality.ActionIncrease}] = 0.2

	for i := 0; i < 50; i++ {
		if got := a.Policy(highPos); got != quality.ActionDecrease {
			t.Fatalf("call %d: expected decrease, got %s", i, got)
		}
	}
}

func TestPolicy_NegativeValuesStillArgmax(t *testing.T) {
	a := New(greedy(), &fixedSource{})
	a.table[key{lowNeg, quality.ActionIncrease}] = -0.3
	a.table[key{lowNeg, quality.ActionDecrease}] = -0.1
	a.table[key{lowNeg, quality.ActionHold}] = -0.2

	if got := a.Policy(lowNeg); got != quality.ActionDecrease {
		t.Fatalf("expected decrease, got %s", got)
	}
}

func TestPolicy_TiesUniform(t *testing.T) {
	a := New(greedy(), rand.New(rand.NewPCG(7, 11)))

	const n = 3000
	counts := map[quality.Action]int{}
	for i := 0; i < n; i++ {
		counts[a.Policy(highPos)]++
	}
	if len(counts) != 3 {
		t.Fatalf("expected all 3 actions to be chosen, got %v", counts)
	}
	for act, c := range counts {
		// expected 1000 each; allow a generous statistical band
		if c < 850 || c > 1150 {
			t.Errorf("action %s chosen %d/%d times, outside uniform band", act, c, n)
		}
	}
}

func TestPolicy_PartialTieOnlyAmongMaxima(t *testing.T) {
	a := New(greedy(), rand.New(rand.NewPCG(1, 2)))
	a.table[key{highPos, quality.ActionIncrease}] = 0.4
	a.table[key{highPos, quality.ActionHold}] = 0.4
	a.table[key{highPos, quality.ActionDecrease}] = 0.1

	seen := map[quality.Action]bool{}
	for i := 0; i < 200; i++ {
		seen[a.Policy(highPos)] = true
	}
	if seen[quality.ActionDecrease] {
		t.Error("decrease is not maximal and must never be chosen")
	}
	if !seen[quality.ActionIncrease] || !seen[quality.ActionHold] {
		t.Errorf("expected both tied actions, got %v", seen)
	}
}

func TestPolicy_Explores(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Epsilon = 1
	// Every draw explores; IntN picks index 2 (hold) despite increase being best.
	a := New(cfg, &fixedSource{floats: []float64{0.3}, ints: []int{2}})
	a.table[key{highPos, quality.ActionIncrease}] = 10

	if got := a.Policy(highPos); got != quality.ActionHold {
		t.Fatalf("expected exploratory hold, got %s", got)
	}
}

func TestPolicy_ResampledPerCall(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Epsilon = 0.5
	src := &fixedSource{floats: []float64{0.1, 0.9}, ints: []int{1}}
	a := New(cfg, src)
	a.table[key{highPos, quality.ActionIncrease}] = 1

	first := a.Policy(highPos)  // explore → index 1 (decrease)
	second := a.Policy(highPos) // exploit → increase
	if first != quality.ActionDecrease || second != quality.ActionIncrease {
		t.Fatalf("expected decrease then increase, got %s then %s", first, second)
	}
}

// #endregion policy-tests

// #region update-tests

func TestUpdate_Formula(t *testing.T) {
	a := New(DefaultConfig(), &fixedSource{})
	a.table[key{highPos, quality.ActionIncrease}] = 0.2
	a.table[key{lowNeg, quality.ActionHold}] = 0.5

	got := a.Update(highPos, quality.ActionIncrease, 0.1, lowNeg)
	// 0.2 + 0.1 * (0.1 + 0.6*0.5 - 0.2) = 0.22
	if math.Abs(got-0.22) > 1e-12 {
		t.Fatalf("expected 0.22, got %v", got)
	}
	if a.Value(highPos, quality.ActionIncrease) != got {
		t.Fatal("table not updated in place")
	}
}

func TestUpdate_UnseenNextState(t *testing.T) {
	a := New(DefaultConfig(), &fixedSource{})
	got := a.Update(highPos, quality.ActionIncrease, 0.1, lowNeg)
	if math.Abs(got-0.01) > 1e-12 {
		t.Fatalf("expected 0.01, got %v", got)
	}
}

func TestUpdate_Converges(t *testing.T) {
	a := New(DefaultConfig(), &fixedSource{})
	const v = 0.5
	const r = 0.1
	a.table[key{lowNeg, quality.ActionHold}] = v

	for i := 0; i < 500; i++ {
		a.Update(highPos, quality.ActionIncrease, r, lowNeg)
	}
	want := r + a.config.Gamma*v
	if got := a.Value(highPos, quality.ActionIncrease); math.Abs(got-want) > 1e-6 {
		t.Fatalf("expected convergence to %v, got %v", want, got)
	}
}

func TestValue_UnknownIsZero(t *testing.T) {
	a := New(DefaultConfig(), nil)
	if v := a.Value(highPos, quality.Action("bogus")); v != 0 {
		t.Fatalf("expected 0 for unknown pair, got %v", v)
	}
}

// #endregion update-tests

// #region export-tests

func TestExport_SnapshotIsIndependent(t *testing.T) {
	a := New(DefaultConfig(), &fixedSource{})
	a.Update(highPos, quality.ActionIncrease, 0.1, lowNeg)

	snap := a.Export()
	if len(snap) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(snap))
	}
	if _, ok := snap["high|1|increase"]; !ok {
		t.Fatalf("unexpected keys: %v", snap)
	}

	snap["high|1|increase"] = 99
	if a.Value(highPos, quality.ActionIncrease) == 99 {
		t.Fatal("mutating the export changed the live table")
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	a := New(DefaultConfig(), &fixedSource{})
	a.Update(highPos, quality.ActionIncrease, 0.1, lowNeg)
	a.Update(lowNeg, quality.ActionDecrease, 0.1, lowNeg)

	b := New(DefaultConfig(), &fixedSource{})
	if err := b.Load(a.Export()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	for _, s := range quality.States() {
		for _, act := range quality.Actions() {
			if a.Value(s, act) != b.Value(s, act) {
				t.Fatalf("mismatch at %s/%s", s, act)
			}
		}
	}
}

func TestParseKey_Errors(t *testing.T) {
	bad := []string{"", "high|1", "huge|1|increase", "high|0|increase", "high|x|increase", "high|1|jump"}
	for _, raw := range bad {
		if _, _, err := ParseKey(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestNewSeeded_Deterministic(t *testing.T) {
	a := NewSeeded(DefaultConfig(), 42)
	b := NewSeeded(DefaultConfig(), 42)
	for i := 0; i < 100; i++ {
		if a.Policy(highPos) != b.Policy(highPos) {
			t.Fatalf("seeded agents diverged at call %d", i)
		}
	}
}

// #endregion export-tests
