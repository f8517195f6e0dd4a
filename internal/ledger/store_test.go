package ledger

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/agent"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, at time.Time) Run {
	return Run{
		ID:        id,
		CreatedAt: at,
		Seed:      1<<63 + 7,
		Agent:     agent.DefaultConfig(),
		Outcome:   "fallback",
		Backend:   "local",
		Location:  "/tmp/refined_1.json",
		Records: []record.Record{
			{AssetID: "asset_001", Text: "I love John's work", Rating: 8, OrigRating: 8,
				Timestamp: "2024-01-01T00:00:00Z", MaskedText: "I love [MASKED]'s work",
				SentimentLabel: "POSITIVE", Confidence: 0.98, RefinedQuality: 9},
			{AssetID: "asset_002", Text: "terrible", Rating: 2, OrigRating: 2,
				Timestamp: "2024-01-01T00:00:00Z", MaskedText: "terrible",
				SentimentLabel: "NEGATIVE", Confidence: 0.9, RefinedQuality: 1},
		},
		Log: []record.LogEntry{
			{AssetID: "asset_001", OriginalText: "I love John's work", MaskedText: "I love [MASKED]'s work", Action: "increase", Reward: 0.1},
			{AssetID: "asset_002", OriginalText: "terrible", MaskedText: "terrible", Action: "decrease", Reward: 0.1},
		},
		Table: map[string]float64{
			"high|1|increase": 0.01,
			"low|-1|decrease": 0.01,
		},
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	want := sampleRun("run-1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	id, err := s.SaveRun(ctx, want)
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if id != "run-1" {
		t.Fatalf("expected run-1, got %s", id)
	}

	got, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Seed != want.Seed {
		t.Errorf("seed: expected %d, got %d", want.Seed, got.Seed)
	}
	if got.Agent != want.Agent {
		t.Errorf("agent: expected %+v, got %+v", want.Agent, got.Agent)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) {
		t.Errorf("created_at: expected %v, got %v", want.CreatedAt, got.CreatedAt)
	}
	if len(got.Records) != 2 || got.Records[0] != want.Records[0] || got.Records[1] != want.Records[1] {
		t.Errorf("records mismatch: %+v", got.Records)
	}
	if len(got.Log) != 2 || got.Log[1] != want.Log[1] {
		t.Errorf("log mismatch: %+v", got.Log)
	}
	if len(got.Table) != 2 || got.Table["high|1|increase"] != 0.01 {
		t.Errorf("table mismatch: %v", got.Table)
	}
	if got.Initial != nil {
		t.Errorf("expected no initial table, got %v", got.Initial)
	}
}

func TestSaveRun_InitialTable(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	run := sampleRun("cont", time.Now())
	run.Initial = map[string]float64{"low|1|increase": 0.25}

	if _, err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	got, err := s.GetRun(ctx, "cont")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Initial["low|1|increase"] != 0.25 {
		t.Errorf("initial table mismatch: %v", got.Initial)
	}
}

func TestSaveRun_GeneratesID(t *testing.T) {
	s := tempDB(t)
	id, err := s.SaveRun(context.Background(), Run{Outcome: "primary"})
	if err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("expected uuid, got %q", id)
	}
}

func TestSaveRun_BadTableKeyRollsBack(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	run := sampleRun("bad", time.Now())
	run.Table = map[string]float64{"nope": 1}

	if _, err := s.SaveRun(ctx, run); err == nil {
		t.Fatal("expected error for malformed key")
	}
	if _, err := s.GetRun(ctx, "bad"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected rollback, got %v", err)
	}
}

func TestLatest_EmptyIsNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.Latest(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.LatestTable(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLatest_ReturnsNewest(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := sampleRun("older", base)
	newer := sampleRun("newer", base.Add(time.Minute))
	newer.Table = map[string]float64{"medium|-1|hold": -0.5}

	// Insert out of order.
	if _, err := s.SaveRun(ctx, newer); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveRun(ctx, older); err != nil {
		t.Fatal(err)
	}

	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ID != "newer" {
		t.Fatalf("expected newer, got %s", got.ID)
	}

	table, err := s.LatestTable(ctx)
	if err != nil {
		t.Fatalf("LatestTable: %v", err)
	}
	if table["medium|-1|hold"] != -0.5 || len(table) != 1 {
		t.Errorf("unexpected table %v", table)
	}
}

func TestLatest_SubsecondOrdering(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// .1 and .12 compare wrongly as trimmed strings.
	if _, err := s.SaveRun(ctx, sampleRun("older", base.Add(100*time.Millisecond))); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveRun(ctx, sampleRun("newer", base.Add(120*time.Millisecond))); err != nil {
		t.Fatal(err)
	}

	got, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if got.ID != "newer" {
		t.Fatalf("expected newer, got %s", got.ID)
	}
	if !got.CreatedAt.Equal(base.Add(120 * time.Millisecond)) {
		t.Errorf("created_at round trip: got %v", got.CreatedAt)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "newer" || runs[1].ID != "older" {
		t.Errorf("unexpected order: %+v", runs)
	}
}

func TestListRuns(t *testing.T) {
	s := tempDB(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if _, err := s.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "c" || runs[1].ID != "b" {
		t.Errorf("unexpected order: %s, %s", runs[0].ID, runs[1].ID)
	}
	if runs[0].Records != 2 {
		t.Errorf("expected 2 records, got %d", runs[0].Records)
	}
}

func TestGetRun_Missing(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetRun(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewStoreWithDB_Memory(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	defer db.Close()

	s, err := NewStoreWithDB(db)
	if err != nil {
		t.Fatalf("NewStoreWithDB: %v", err)
	}
	if s.DB() != db {
		t.Fatal("expected same handle")
	}
	if _, err := s.SaveRun(context.Background(), sampleRun("m", time.Now())); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}
}

func TestClosedDB(t *testing.T) {
	s := tempDB(t)
	s.Close()
	if _, err := s.SaveRun(context.Background(), sampleRun("x", time.Now())); err == nil {
		t.Fatal("expected error on closed db")
	}
	if _, err := s.Latest(context.Background()); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a db error, got %v", err)
	}
}
