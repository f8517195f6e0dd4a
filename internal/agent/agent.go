// Package agent implements the tabular Q-learning core that picks quality
// adjustments and learns from their rewards.
package agent

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/quality"
)

// #region agent-struct

// Agent owns one learning table. All reads and writes go through mu so an
// agent deliberately shared between batches stays single-writer.
type Agent struct {
	mu      sync.Mutex
	table   map[key]float64
	actions []quality.Action
	config  Config
	rng     Source
}

// #endregion agent-struct

// #region constructor

// New creates an agent with an empty table. A nil rng gets a randomly
// seeded PCG generator.
func New(config Config, rng Source) *Agent {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Agent{
		table:   make(map[key]float64),
		actions: quality.Actions(),
		config:  config,
		rng:     rng,
	}
}

// NewSeeded creates an agent whose exploration and tie-break draws are
// fully determined by seed.
func NewSeeded(config Config, seed uint64) *Agent {
	return New(config, rand.New(rand.NewPCG(seed, seed)))
}

// Config returns the learning parameters.
func (a *Agent) Config() Config {
	return a.config
}

// #endregion constructor

// #region value

// Value returns Q(state, action), 0 for unseen pairs.
func (a *Agent) Value(s quality.State, act quality.Action) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.table[key{s, act}]
}

func (a *Agent) maxValue(s quality.State) float64 {
	best := a.table[key{s, a.actions[0]}]
	for _, act := range a.actions[1:] {
		if v := a.table[key{s, act}]; v > best {
			best = v
		}
	}
	return best
}

// #endregion value

// #region policy

// Policy picks an action epsilon-greedily. Ties for the best value are
// broken uniformly at random rather than by enumeration order.
func (a *Agent) Policy(s quality.State) quality.Action {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.rng.Float64() < a.config.Epsilon {
		return a.actions[a.rng.IntN(len(a.actions))]
	}

	best := a.maxValue(s)
	var candidates []quality.Action
	for _, act := range a.actions {
		if a.table[key{s, act}] == best {
			candidates = append(candidates, act)
		}
	}
	return candidates[a.rng.IntN(len(candidates))]
}

// #endregion policy

// #region apply-action

// ApplyAction returns the clamped quality after taking act.
func (a *Agent) ApplyAction(q float64, act quality.Action) float64 {
	return quality.Apply(q, act)
}

// #endregion apply-action

// #region update

// Update applies one temporal-difference step and returns the new value:
//
//	Q(s,a) <- Q(s,a) + alpha * (r + gamma * max_a' Q(next,a') - Q(s,a))
//
// An unseen next state contributes 0 to the target.
func (a *Agent) Update(s quality.State, act quality.Action, reward float64, next quality.State) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key{s, act}
	old := a.table[k]
	future := a.maxValue(next)
	updated := old + a.config.Alpha*(reward+a.config.Gamma*future-old)
	a.table[k] = updated
	return updated
}

// #endregion update

// #region export

// Export returns a snapshot of every learned pair keyed by
// "<bucket>|<sign>|<action>". The live table is unaffected.
func (a *Agent) Export() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[string]float64, len(a.table))
	for k, v := range a.table {
		out[EncodeKey(k.state, k.action)] = v
	}
	return out
}

// Load merges a previously exported snapshot into the table.
func (a *Agent) Load(snapshot map[string]float64) error {
	parsed := make(map[key]float64, len(snapshot))
	for raw, v := range snapshot {
		s, act, err := ParseKey(raw)
		if err != nil {
			return err
		}
		parsed[key{s, act}] = v
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for k, v := range parsed {
		a.table[k] = v
	}
	return nil
}

// EncodeKey renders a (state, action) pair as "<bucket>|<sign>|<action>".
func EncodeKey(s quality.State, act quality.Action) string {
	return s.String() + "|" + string(act)
}

// ParseKey is the inverse of EncodeKey.
func ParseKey(raw string) (quality.State, quality.Action, error) {
	parts := strings.Split(raw, "|")
	if len(parts) != 3 {
		return quality.State{}, "", fmt.Errorf("table key %q: want 3 fields", raw)
	}

	bucket := quality.Bucket(parts[0])
	switch bucket {
	case quality.BucketLow, quality.BucketMedium, quality.BucketHigh:
	default:
		return quality.State{}, "", fmt.Errorf("table key %q: unknown bucket", raw)
	}

	sign, err := strconv.Atoi(parts[1])
	if err != nil || (sign != int(quality.SignPositive) && sign != int(quality.SignNegative)) {
		return quality.State{}, "", fmt.Errorf("table key %q: bad sign", raw)
	}

	act := quality.Action(parts[2])
	if !act.Valid() {
		return quality.State{}, "", fmt.Errorf("table key %q: unknown action", raw)
	}

	return quality.State{Bucket: bucket, Sign: quality.Sign(sign)}, act, nil
}

// #endregion export
