// Package signals runs the external classifier and entity extractor over a
// batch and turns their answers into typed per-record signals.
package signals

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

// #region producer

// Producer fetches classifications and entities. classifier and extractor
// may be nil: classification then always degrades, entities are empty.
type Producer struct {
	classifier Classifier
	extractor  Extractor
	config     ProducerConfig
	logger     *slog.Logger
}

// NewProducer creates a Producer.
func NewProducer(classifier Classifier, extractor Extractor, config ProducerConfig, logger *slog.Logger) *Producer {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		classifier: classifier,
		extractor:  extractor,
		config:     config,
		logger:     logger.With("component", "signals"),
	}
}

// #endregion producer

// #region classify

// Classify runs the classifier on text. Every failure is folded into a
// ClassifierError; it never returns a bare error.
func (p *Producer) Classify(ctx context.Context, text string) Result {
	if p.classifier == nil {
		return Result{Err: &ClassifierError{Reason: "unavailable", Err: ErrNoClassifier}}
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	c, err := p.classifier.Classify(ctx, text)
	if err != nil {
		return Result{Err: &ClassifierError{Reason: "rpc", Err: err}}
	}
	if err := validate(c); err != nil {
		return Result{Err: &ClassifierError{Reason: "invalid_response", Err: err}}
	}
	return Result{Classification: c}
}

func validate(c Classification) error {
	if c.Label == "" {
		return fmt.Errorf("empty label")
	}
	if math.IsNaN(c.Score) || c.Score < 0 || c.Score > 1 {
		return fmt.Errorf("score %v outside [0,1]", c.Score)
	}
	return nil
}

// #endregion classify

// #region entities

// Entities returns the named entities in text. Extraction is auxiliary, so
// failures are logged and yield an empty list.
func (p *Producer) Entities(ctx context.Context, text string) []record.Entity {
	if p.extractor == nil {
		return []record.Entity{}
	}
	ents, err := p.extractor.Extract(ctx, text)
	if err != nil {
		p.logger.Debug("entity extraction failed", "error", err)
		return []record.Entity{}
	}
	if ents == nil {
		return []record.Entity{}
	}
	return ents
}

// #endregion entities

// #region prepare

// Prepare fetches signals for a whole batch with bounded concurrency.
// classifyTexts[i] is sent to the classifier and entityTexts[i] to the
// extractor; the returned slice is indexed like the inputs, so callers can
// consume it strictly in order.
func (p *Producer) Prepare(ctx context.Context, classifyTexts, entityTexts []string) ([]Signal, error) {
	if len(classifyTexts) != len(entityTexts) {
		return nil, fmt.Errorf("prepare: %d classify texts vs %d entity texts", len(classifyTexts), len(entityTexts))
	}

	out := make([]Signal, len(classifyTexts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Concurrency)

	for i := range classifyTexts {
		g.Go(func() error {
			out[i] = Signal{
				Result:   p.Classify(gctx, classifyTexts[i]),
				Entities: p.Entities(gctx, entityTexts[i]),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	return out, nil
}

// #endregion prepare
