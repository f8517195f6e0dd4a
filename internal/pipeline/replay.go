package pipeline

import (
	"fmt"
	"maps"
	"slices"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/agent"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/ledger"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/mask"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/signals"
)

// #region types
// ReplayResult compares a stored run with a fresh re-run of its inputs.
type ReplayResult struct {
	RunID      string
	Matched    bool
	Mismatches []string
	Records    []record.Record
	Log        []record.LogEntry
	Table      map[string]float64
}
// #endregion types

// #region replay
// Replay re-runs a stored batch in memory with the run's seed, agent
// config, starting table and recorded classifications, and reports every
// difference from what was stored. No I/O: the classifier is not called
// and nothing is persisted.
func Replay(run ledger.Run) ReplayResult {
	recs := make([]record.Record, len(run.Records))
	classes := make([]signals.Classification, len(run.Records))
	for i, r := range run.Records {
		recs[i] = record.Record{
			AssetID:    r.AssetID,
			Text:       r.Text,
			Rating:     r.Rating,
			OrigRating: r.Rating,
			Timestamp:  r.Timestamp,
			MaskedText: mask.Mask(r.Text),
		}
		classes[i] = signals.Classification{Label: r.SentimentLabel, Score: r.Confidence}
	}

	ag := agent.NewSeeded(run.Agent, run.Seed)
	result := ReplayResult{RunID: run.ID}
	if len(run.Initial) > 0 {
		if err := ag.Load(run.Initial); err != nil {
			result.Mismatches = append(result.Mismatches, fmt.Sprintf("initial table: %v", err))
			return result
		}
	}

	result.Records, result.Log, _ = Refine(ag, recs, classes)
	result.Table = ag.Export()
	result.Mismatches = append(result.Mismatches, diffRecords(run.Records, result.Records)...)
	result.Mismatches = append(result.Mismatches, diffLog(run.Log, result.Log)...)
	result.Mismatches = append(result.Mismatches, diffTable(run.Table, result.Table)...)
	result.Matched = len(result.Mismatches) == 0
	return result
}
// #endregion replay

// #region diff
func diffRecords(want, got []record.Record) []string {
	if len(want) != len(got) {
		return []string{fmt.Sprintf("records: stored %d, replayed %d", len(want), len(got))}
	}
	var out []string
	for i := range want {
		w, g := want[i], got[i]
		// OrigRating is not stored separately; it always equals Rating.
		w.OrigRating, g.OrigRating = w.Rating, g.Rating
		if w != g {
			out = append(out, fmt.Sprintf("record %s: stored %+v, replayed %+v", w.AssetID, w, g))
		}
	}
	return out
}

func diffLog(want, got []record.LogEntry) []string {
	if len(want) != len(got) {
		return []string{fmt.Sprintf("log: stored %d, replayed %d", len(want), len(got))}
	}
	var out []string
	for i := range want {
		if want[i] != got[i] {
			out = append(out, fmt.Sprintf("log %s: stored %s/%v, replayed %s/%v",
				want[i].AssetID, want[i].Action, want[i].Reward, got[i].Action, got[i].Reward))
		}
	}
	return out
}

func diffTable(want, got map[string]float64) []string {
	keys := slices.Sorted(maps.Keys(want))
	for k := range got {
		if _, ok := want[k]; !ok {
			keys = append(keys, k)
		}
	}
	var out []string
	for _, k := range keys {
		w, wok := want[k]
		g, gok := got[k]
		if wok != gok || w != g {
			out = append(out, fmt.Sprintf("table %s: stored %v, replayed %v", k, w, g))
		}
	}
	return out
}
// #endregion diff
