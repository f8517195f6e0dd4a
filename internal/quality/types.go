package quality

import "fmt"

// #region bucket

// Bucket is the coarse quality band used as the first half of a State.
type Bucket string

const (
	BucketLow    Bucket = "low"
	BucketMedium Bucket = "medium"
	BucketHigh   Bucket = "high"
)

// #endregion bucket

// #region sign

// Sign collapses a sentiment label into a binary drive.
type Sign int

const (
	SignNegative Sign = -1
	SignPositive Sign = 1
)

// #endregion sign

// #region labels

// Sentiment labels produced by the classifier. Only LabelPositive is
// treated specially; every other label drives quality down.
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
	LabelNeutral  = "NEUTRAL"
)

// #endregion labels

// #region action

// Action is one of the three levers available to adjust quality.
type Action string

const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
	ActionHold     Action = "hold"
)

// Actions returns the fixed action set in its canonical order.
func Actions() []Action {
	return []Action{ActionIncrease, ActionDecrease, ActionHold}
}

// Valid reports whether a is a member of the fixed action set.
func (a Action) Valid() bool {
	switch a {
	case ActionIncrease, ActionDecrease, ActionHold:
		return true
	}
	return false
}

// #endregion action

// #region state

// State indexes the learning table: (quality bucket, sentiment sign).
type State struct {
	Bucket Bucket
	Sign   Sign
}

// String encodes the state as "<bucket>|<sign>", e.g. "high|1".
func (s State) String() string {
	return fmt.Sprintf("%s|%d", s.Bucket, s.Sign)
}

// States enumerates all six reachable states.
func States() []State {
	var out []State
	for _, b := range []Bucket{BucketLow, BucketMedium, BucketHigh} {
		for _, sg := range []Sign{SignPositive, SignNegative} {
			out = append(out, State{Bucket: b, Sign: sg})
		}
	}
	return out
}

// #endregion state
