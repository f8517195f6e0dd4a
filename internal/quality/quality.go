// Package quality holds the pure functions that map ratings, sentiment labels
// and actions onto the normalized [0,1] quality scale.
package quality

import (
	"math"
	"strings"
)

// #region constants

const (
	// Step is the fixed magnitude of an increase or decrease.
	Step = 0.1

	lowUpper    = 0.4
	mediumUpper = 0.7
)

// #endregion constants

// #region clamp

// Clamp restricts q to [0, 1]. NaN maps to 0.
func Clamp(q float64) float64 {
	if math.IsNaN(q) || q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}

// FromRating converts a 0..10 rating to a clamped quality.
func FromRating(rating float64) float64 {
	return Clamp(rating / 10.0)
}

// ToRating scales a quality back to 0..10, rounded to two decimals.
func ToRating(q float64) float64 {
	return math.Round(Clamp(q)*10*100) / 100
}

// #endregion clamp

// #region bucketize

// BucketOf maps a quality onto its band. Boundaries are half-open:
// 0.4 is medium and 0.7 is high.
func BucketOf(q float64) Bucket {
	switch {
	case q < lowUpper:
		return BucketLow
	case q < mediumUpper:
		return BucketMedium
	default:
		return BucketHigh
	}
}

// SignOf returns SignPositive iff label is POSITIVE (case-insensitive).
func SignOf(label string) Sign {
	if strings.EqualFold(label, LabelPositive) {
		return SignPositive
	}
	return SignNegative
}

// TargetOf returns the quality a label drives toward: 1.0 for POSITIVE, else 0.0.
func TargetOf(label string) float64 {
	if SignOf(label) == SignPositive {
		return 1.0
	}
	return 0.0
}

// StateOf builds the table key for a quality and a sentiment label.
func StateOf(q float64, label string) State {
	return State{Bucket: BucketOf(q), Sign: SignOf(label)}
}

// #endregion bucketize

// #region apply

// Apply returns the quality after taking action a. Unknown actions hold.
func Apply(q float64, a Action) float64 {
	switch a {
	case ActionIncrease:
		return Clamp(math.Min(1.0, q+Step))
	case ActionDecrease:
		return Clamp(math.Max(0.0, q-Step))
	default:
		return Clamp(q)
	}
}

// #endregion apply

// #region reward

// Reward scores a quality move against the sentiment target. A positive
// drive (target > 0.5) rewards growth; otherwise shrinkage is rewarded.
func Reward(oldQuality, newQuality, target float64) float64 {
	if target > 0.5 {
		return newQuality - oldQuality
	}
	return oldQuality - newQuality
}

// #endregion reward
