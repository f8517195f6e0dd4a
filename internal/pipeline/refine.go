package pipeline

import (
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/agent"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/quality"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/signals"
)

// #region step
// Step is the learning decision taken for one record.
type Step struct {
	State    quality.State
	Action   quality.Action
	Before   float64
	After    float64
	Target   float64
	Reward   float64
	Next     quality.State
	NewValue float64
}
// #endregion step

// #region refine
// Refine runs the learning loop over masked records strictly in input
// order. classes[i] is the classification of recs[i]. Each record gets
// exactly one policy draw and one table update.
func Refine(ag *agent.Agent, recs []record.Record, classes []signals.Classification) ([]record.Record, []record.LogEntry, []Step) {
	refined := make([]record.Record, len(recs))
	logs := make([]record.LogEntry, len(recs))
	steps := make([]Step, len(recs))

	for i, rec := range recs {
		c := classes[i]

		q := quality.FromRating(rec.Rating)
		s := quality.StateOf(q, c.Label)
		act := ag.Policy(s)
		nq := ag.ApplyAction(q, act)

		target := quality.TargetOf(c.Label)
		r := quality.Reward(q, nq, target)
		next := quality.StateOf(nq, c.Label)
		v := ag.Update(s, act, r, next)

		rec.SentimentLabel = c.Label
		rec.Confidence = c.Score
		rec.RefinedQuality = quality.ToRating(nq)
		refined[i] = rec

		logs[i] = record.LogEntry{
			AssetID:      rec.AssetID,
			OriginalText: rec.Text,
			MaskedText:   rec.MaskedText,
			Action:       string(act),
			Reward:       r,
		}
		steps[i] = Step{
			State: s, Action: act, Before: q, After: nq,
			Target: target, Reward: r, Next: next, NewValue: v,
		}
	}
	return refined, logs, steps
}
// #endregion refine
