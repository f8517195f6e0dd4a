package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

// ErrValidation rejects a batch before anything is processed or persisted.
var ErrValidation = errors.New("invalid batch")

// DefaultRating is used for every record when no item carries a rating.
const DefaultRating = 5.0

// Ratings must lie in [MinRating, MaxRating].
const (
	MinRating = 0.0
	MaxRating = 10.0
)

// #region normalize
// Normalize validates a raw batch (text required, ratings in [0,10]) and
// fills derived fields: missing ratings
// become the mean of present ratings (or DefaultRating when none are
// present), missing timestamps become now, and asset ids are assigned in
// input order.
func Normalize(items []record.Input, now time.Time) ([]record.Record, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrValidation)
	}

	var sum float64
	var present int
	for i, it := range items {
		if it.Text == nil {
			return nil, fmt.Errorf("%w: item %d has no text", ErrValidation, i)
		}
		if it.Rating != nil {
			r := *it.Rating
			// NaN fails both comparisons.
			if !(r >= MinRating && r <= MaxRating) {
				return nil, fmt.Errorf("%w: item %d rating %v outside [0,10]", ErrValidation, i, r)
			}
			sum += r
			present++
		}
	}

	fill := DefaultRating
	if present > 0 {
		fill = sum / float64(present)
	}
	ts := now.UTC().Format(time.RFC3339)

	out := make([]record.Record, len(items))
	for i, it := range items {
		rating := fill
		if it.Rating != nil {
			rating = *it.Rating
		}
		stamp := ts
		if it.Timestamp != nil && *it.Timestamp != "" {
			stamp = *it.Timestamp
		}
		out[i] = record.Record{
			AssetID:    record.AssetID(i),
			Text:       *it.Text,
			Rating:     rating,
			OrigRating: rating,
			Timestamp:  stamp,
		}
	}
	return out, nil
}
// #endregion normalize
