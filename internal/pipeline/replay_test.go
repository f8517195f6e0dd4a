package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/agent"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/durable"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/ledger"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/signals"
)

func processIntoLedger(t *testing.T, cfg Config) (*ledger.Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := ledger.NewStore(filepath.Join(root, "ledger.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	p := New(Options{
		Producer: signals.NewProducer(keywordClassifier{}, nil, signals.DefaultProducerConfig(), nil),
		Store:    durable.NewStore(nil, durable.NewLocalDir(filepath.Join(root, "blob")), nil),
		Ledger:   store,
		Config:   cfg,
	})
	items := append(exampleBatch(), exampleBatch()...)
	sum, err := p.Process(context.Background(), items)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return store, sum.RunID
}

func TestReplay_MatchesStoredRun(t *testing.T) {
	cfg := Config{Agent: agent.Config{Alpha: 0.1, Gamma: 0.6, Epsilon: 0.3}}
	store, id := processIntoLedger(t, cfg)

	run, err := store.GetRun(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Seed == 0 {
		t.Fatal("a drawn seed must be recorded")
	}

	res := Replay(run)
	if !res.Matched {
		t.Fatalf("expected replay to match, got %v", res.Mismatches)
	}
	if len(res.Records) != 6 {
		t.Errorf("expected 6 replayed records, got %d", len(res.Records))
	}
}

func TestReplay_DetectsTampering(t *testing.T) {
	store, id := processIntoLedger(t, Config{Agent: agent.DefaultConfig(), Seed: 3})
	run, err := store.GetRun(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}

	run.Records[1].RefinedQuality += 3
	run.Table["low|-1|hold"] = 42

	res := Replay(run)
	if res.Matched {
		t.Fatal("expected mismatch")
	}
	if len(res.Mismatches) < 2 {
		t.Errorf("expected record and table mismatches, got %v", res.Mismatches)
	}
}

func TestReplay_ContinualRun(t *testing.T) {
	cfg := Config{Agent: agent.DefaultConfig(), Seed: 11, Continual: true}
	root := t.TempDir()
	store, err := ledger.NewStore(filepath.Join(root, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	p := New(Options{
		Producer: signals.NewProducer(keywordClassifier{}, nil, signals.DefaultProducerConfig(), nil),
		Store:    durable.NewStore(nil, durable.NewLocalDir(filepath.Join(root, "blob")), nil),
		Ledger:   store,
		Config:   cfg,
	})
	if _, err := p.Process(context.Background(), exampleBatch()); err != nil {
		t.Fatal(err)
	}
	second, err := p.Process(context.Background(), exampleBatch())
	if err != nil {
		t.Fatal(err)
	}

	run, err := store.GetRun(context.Background(), second.RunID)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Initial) == 0 {
		t.Fatal("second run must start from the first run's table")
	}
	if res := Replay(run); !res.Matched {
		t.Fatalf("expected match, got %v", res.Mismatches)
	}
}

func TestRefine_GreedyTieBreakAndUpdate(t *testing.T) {
	ag := agent.New(agent.Config{Alpha: 0.1, Gamma: 0.6, Epsilon: 0}, stubSource{})
	recs, _ := Normalize(exampleBatch()[:1], fixedNow)
	recs[0].MaskedText = "I love [MASKED]'s work"

	refined, logs, steps := Refine(ag, recs, []signals.Classification{{Label: "POSITIVE", Score: 0.98}})

	// All values tie at 0; IntN returns 0, picking the first action.
	if logs[0].Action != "increase" {
		t.Fatalf("expected increase, got %s", logs[0].Action)
	}
	if refined[0].RefinedQuality != 9 {
		t.Errorf("expected 9, got %v", refined[0].RefinedQuality)
	}
	// 0 + 0.1*(0.1 + 0.6*0 - 0)
	if !approx(steps[0].NewValue, 0.01) {
		t.Errorf("expected 0.01, got %v", steps[0].NewValue)
	}
	if steps[0].State.String() != "high|1" || steps[0].Next.String() != "high|1" {
		t.Errorf("unexpected states %s -> %s", steps[0].State, steps[0].Next)
	}
}
