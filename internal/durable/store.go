// Package durable persists refined batches to a remote primary store and,
// when that fails for any reason, to a local fallback directory.
package durable

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// #region store-struct

// Store attempts the primary backend first, then the local fallback.
// A nil primary counts as a primary failure.
type Store struct {
	primary  Backend
	fallback *LocalDir
	now      func() time.Time
	logger   *slog.Logger
}

// NewStore creates a Store. primary may be nil.
func NewStore(primary Backend, fallback *LocalDir, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		primary:  primary,
		fallback: fallback,
		now:      time.Now,
		logger:   logger.With("component", "durable"),
	}
}

// #endregion store-struct

// #region persist

// Persist writes payload to exactly one of {primary, fallback}. It returns
// ErrPersistence only when both fail. No retries beyond the single
// primary-to-fallback step.
func (s *Store) Persist(ctx context.Context, payload any) (Outcome, error) {
	at := s.now().UTC()
	ts := at.Format(timestampLayout)
	name := artifactName(ts)

	loc, primaryErr := s.writePrimary(ctx, name, payload)
	if primaryErr == nil {
		s.logger.Info("persisted to primary store", "backend", s.primary.Name(), "location", loc)
		return Outcome{Kind: PrimaryOK, Backend: s.primary.Name(), Location: loc, At: at}, nil
	}

	s.logger.Warn("primary store failed, falling back to local write", "error", primaryErr)

	path, fallbackErr := s.writeFallback(ts, name, payload)
	if fallbackErr != nil {
		s.logger.Error("fallback write failed", "error", fallbackErr)
		out := Outcome{
			Kind:    BothFailed,
			Reasons: []string{primaryErr.Error(), fallbackErr.Error()},
			At:      at,
		}
		return out, fmt.Errorf("%w: primary: %v; fallback: %v", ErrPersistence, primaryErr, fallbackErr)
	}

	s.logger.Info("persisted to local fallback", "path", path)
	return Outcome{
		Kind:     FallbackOK,
		Backend:  "local",
		Location: path,
		Reasons:  []string{primaryErr.Error()},
		At:       at,
	}, nil
}

// #endregion persist

// #region helpers

func (s *Store) writePrimary(ctx context.Context, name string, payload any) (string, error) {
	if s.primary == nil {
		return "", ErrPrimaryNotConfigured
	}
	body, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	loc, err := s.primary.Put(ctx, name, body)
	if err != nil {
		return "", fmt.Errorf("%s put: %w", s.primary.Name(), err)
	}
	return loc, nil
}

func (s *Store) writeFallback(ts, name string, payload any) (string, error) {
	if s.fallback == nil {
		return "", fmt.Errorf("no fallback directory configured")
	}
	return s.fallback.Write(ts, name, payload)
}

// #endregion helpers
