// Package pipeline turns a raw batch into refined, persisted records:
// normalize, mask, classify, refine with a per-batch learning agent, check,
// persist durably, then record the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/agent"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/durable"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/eval"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/ledger"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/mask"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/outputs"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/signals"
)

// ErrCheckFailed means the refined batch failed validation and was not
// persisted.
var ErrCheckFailed = errors.New("refined batch failed checks")

// #region interfaces
// Ledger records persisted runs. *ledger.Store satisfies it.
type Ledger interface {
	SaveRun(ctx context.Context, run ledger.Run) (string, error)
	LatestTable(ctx context.Context) (map[string]float64, error)
}
// #endregion interfaces

// #region config
// Config holds the learning parameters applied to every batch.
type Config struct {
	Agent agent.Config
	// Seed fixes the agent's random source. 0 draws a fresh seed per batch;
	// the seed used is recorded with the run either way.
	Seed uint64
	// Continual starts each batch's agent from the latest stored table
	// instead of an empty one.
	Continual bool
}

// DefaultConfig returns per-batch agents with default learning parameters.
func DefaultConfig() Config {
	return Config{Agent: agent.DefaultConfig()}
}
// #endregion config

// #region pipeline-struct
// Pipeline processes one batch at a time. Concurrent Process calls are
// serialized so each run owns its agent and the ledger sees runs in order.
type Pipeline struct {
	mu sync.Mutex

	producer *signals.Producer
	store    *durable.Store
	ledger   Ledger
	outputs  *outputs.Writer
	checks   *eval.EvalHarness
	metrics  *metrics.Collector
	config   Config
	now      func() time.Time
	newAgent func(agent.Config, uint64) *agent.Agent
	logger   *slog.Logger
}

// Options wires the pipeline's collaborators. Producer and Store are
// required; the rest may be nil.
type Options struct {
	Producer *signals.Producer
	Store    *durable.Store
	Ledger   Ledger
	Outputs  *outputs.Writer
	Checks   *eval.EvalHarness
	Metrics  *metrics.Collector
	Config   Config
	Logger   *slog.Logger
}

// New creates a Pipeline.
func New(opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checks := opts.Checks
	if checks == nil {
		checks = eval.NewEvalHarness(eval.DefaultEvalConfig())
	}
	return &Pipeline{
		producer: opts.Producer,
		store:    opts.Store,
		ledger:   opts.Ledger,
		outputs:  opts.Outputs,
		checks:   checks,
		metrics:  opts.Metrics,
		config:   opts.Config,
		now:      time.Now,
		newAgent: agent.NewSeeded,
		logger:   logger.With("component", "pipeline"),
	}
}
// #endregion pipeline-struct

// #region summary
// Summary reports one processed batch.
type Summary struct {
	RunID    string
	Seed     uint64
	Records  []record.Record
	Log      []record.LogEntry
	Table    map[string]float64
	Degraded int
	Outcome  durable.Outcome
	Checks   eval.EvalResult
}
// #endregion summary

// #region process
// Process runs a batch end to end. It returns an error wrapping
// ErrValidation for a malformed batch, ErrCheckFailed when the refined
// batch fails validation, and durable.ErrPersistence when neither store
// accepted it. In all three cases nothing is recorded.
func (p *Pipeline) Process(ctx context.Context, items []record.Input) (Summary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := p.now()
	sum, err := p.process(ctx, items, start)
	result := "ok"
	switch {
	case errors.Is(err, ErrValidation):
		result = "invalid"
	case err != nil:
		result = "failed"
	}
	p.metrics.ObserveBatch(result, p.now().Sub(start))
	return sum, err
}

func (p *Pipeline) process(ctx context.Context, items []record.Input, start time.Time) (Summary, error) {
	// 1. Ingest
	cleaned, err := Normalize(items, start)
	if err != nil {
		return Summary{}, err
	}
	runID := uuid.New().String()
	log := p.logger.With("run_id", runID)
	log.Info("batch accepted", "records", len(cleaned))

	// 2. Mask
	masked := make([]record.Record, len(cleaned))
	maskedTexts := make([]string, len(cleaned))
	origTexts := make([]string, len(cleaned))
	for i, rec := range cleaned {
		rec.MaskedText = mask.Mask(rec.Text)
		masked[i] = rec
		maskedTexts[i] = rec.MaskedText
		origTexts[i] = rec.Text
	}

	// 3. Signals: classification of masked text, entities of original text
	sigs, err := p.producer.Prepare(ctx, maskedTexts, origTexts)
	if err != nil {
		return Summary{}, fmt.Errorf("prepare signals: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return Summary{}, fmt.Errorf("prepare signals: %w", err)
	}

	classes := make([]signals.Classification, len(sigs))
	metadata := make([]record.Metadata, len(sigs))
	degraded := 0
	for i, sg := range sigs {
		if sg.Result.Degraded() {
			degraded++
			p.metrics.ObserveDegraded(sg.Result.Err.Reason)
			log.Warn("classification degraded to neutral",
				"asset_id", masked[i].AssetID, "reason", sg.Result.Err.Reason, "error", sg.Result.Err.Err)
		}
		classes[i] = sg.Result.Resolve()
		metadata[i] = record.Metadata{AssetID: masked[i].AssetID, Text: masked[i].Text, Entities: sg.Entities}
	}

	// 4. Refine
	seed := p.config.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	ag := p.newAgent(p.config.Agent, seed)
	initial, err := p.initialTable(ctx)
	if err != nil {
		return Summary{}, err
	}
	if len(initial) > 0 {
		if err := ag.Load(initial); err != nil {
			return Summary{}, fmt.Errorf("load initial table: %w", err)
		}
	}

	refined, entries, steps := Refine(ag, masked, classes)
	for i, st := range steps {
		p.metrics.ObserveRecord(string(st.Action), st.Reward)
		log.Debug("refined",
			"asset_id", refined[i].AssetID,
			"state", st.State.String(),
			"action", st.Action,
			"quality", st.Before,
			"new_quality", st.After,
			"reward", st.Reward,
			"q", st.NewValue)
	}
	table := ag.Export()

	// 5. Check
	batch := record.Batch{RunID: runID, Records: refined, Log: entries}
	checks := p.checks.Run(batch, table, degraded)
	if !checks.Passed {
		log.Error("batch checks failed", "reason", checks.Reason)
		return Summary{}, fmt.Errorf("%w: %s", ErrCheckFailed, checks.Reason)
	}

	// 6. Persist
	outcome, err := p.store.Persist(ctx, batch)
	p.metrics.ObserveStore(string(outcome.Kind))
	if err != nil {
		log.Error("batch not persisted", "error", err)
		return Summary{}, err
	}

	// 7. Record
	if p.ledger != nil {
		_, err := p.ledger.SaveRun(ctx, ledger.Run{
			ID:        runID,
			CreatedAt: outcome.At,
			Seed:      seed,
			Agent:     ag.Config(),
			Outcome:   string(outcome.Kind),
			Backend:   outcome.Backend,
			Location:  outcome.Location,
			Records:   refined,
			Log:       entries,
			Table:     table,
			Initial:   initial,
		})
		if err != nil {
			return Summary{}, fmt.Errorf("record run: %w", err)
		}
	}

	if err := p.outputs.Write(outputs.Artifacts{
		Cleaned:  cleaned,
		Metadata: metadata,
		Refined:  refined,
		Log:      entries,
		Table:    table,
	}); err != nil {
		log.Warn("output artifacts not written", "error", err)
	}

	log.Info("batch refined",
		"records", len(refined),
		"degraded", degraded,
		"outcome", outcome.Kind,
		"location", outcome.Location)

	return Summary{
		RunID:    runID,
		Seed:     seed,
		Records:  refined,
		Log:      entries,
		Table:    table,
		Degraded: degraded,
		Outcome:  outcome,
		Checks:   checks,
	}, nil
}

func (p *Pipeline) initialTable(ctx context.Context) (map[string]float64, error) {
	if !p.config.Continual || p.ledger == nil {
		return nil, nil
	}
	table, err := p.ledger.LatestTable(ctx)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load latest table: %w", err)
	}
	return table, nil
}
// #endregion process
