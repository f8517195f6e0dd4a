package signals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/quality"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

// #region collaborator-interfaces

// Classifier abstracts the sentiment RPC so Producer can be tested without gRPC.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// Extractor abstracts the named-entity RPC.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]record.Entity, error)
}

// #endregion collaborator-interfaces

// #region classification

// Classification is a sentiment label with its confidence in [0,1].
type Classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Neutral is substituted whenever classification fails.
var Neutral = Classification{Label: quality.LabelNeutral, Score: 0.0}

// #endregion classification

// #region classifier-error

// ErrNoClassifier is reported when no classifier is wired.
var ErrNoClassifier = errors.New("no classifier configured")

// ClassifierError is the single failure class of the classification stage.
type ClassifierError struct {
	Reason string // "unavailable" | "rpc" | "invalid_response"
	Err    error
}

func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classifier %s: %v", e.Reason, e.Err)
}

func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// #endregion classifier-error

// #region result

// Result is the typed outcome of classifying one text. Exactly one of
// Classification or Err is meaningful.
type Result struct {
	Classification Classification
	Err            *ClassifierError
}

// Degraded reports whether the neutral default stands in for a failure.
func (r Result) Degraded() bool {
	return r.Err != nil
}

// Resolve returns the classification, or Neutral when degraded.
func (r Result) Resolve() Classification {
	if r.Err != nil {
		return Neutral
	}
	return r.Classification
}

// Signal bundles everything the producer learns about one record.
type Signal struct {
	Result   Result
	Entities []record.Entity
}

// #endregion result

// #region config

// ProducerConfig holds tuning knobs for the prefetch stage.
type ProducerConfig struct {
	Concurrency int           // max in-flight classifier calls (>= 1)
	Timeout     time.Duration // per-call deadline, 0 = none
}

// DefaultProducerConfig returns sensible defaults.
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// #endregion config
