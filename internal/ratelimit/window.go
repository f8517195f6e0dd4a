package ratelimit

import (
	"context"
	"sync"
	"time"
)

// #region window
// Window is an in-process strict sliding window: a call is admitted only
// if fewer than Max admitted calls for its key fall inside the trailing
// Period. Same semantics as Redis, without sharing across replicas.
type Window struct {
	config Config
	mu     sync.Mutex
	calls  map[string][]time.Time
	now    func() time.Time
}

// NewWindow creates an in-process sliding-window limiter.
func NewWindow(config Config) *Window {
	return &Window{
		config: config.normalized(),
		calls:  make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow implements Limiter. It never returns an error.
func (w *Window) Allow(_ context.Context, key string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.config.Period)
	live := w.calls[key]
	i := 0
	for i < len(live) && !live[i].After(cutoff) {
		i++
	}
	live = live[i:]

	if len(live) >= w.config.Max {
		w.calls[key] = live
		return false, nil
	}
	w.calls[key] = append(live, now)
	return true, nil
}
// #endregion window
