package durable

import (
	"context"
	"errors"
	"time"
)

// #region errors

var (
	// ErrPersistence means neither the primary nor the fallback write succeeded.
	ErrPersistence = errors.New("persistence failed: primary and fallback writes both failed")

	// ErrPrimaryNotConfigured is the primary failure reported when no remote
	// store is configured. It triggers the fallback like any other failure.
	ErrPrimaryNotConfigured = errors.New("primary store not configured")
)

// #endregion errors

// #region backend

// Backend is a remote, network-backed object store.
type Backend interface {
	// Name identifies the backend in logs and outcomes ("s3", "gcs", "mongo").
	Name() string
	// Put stores body under name and returns a location string.
	Put(ctx context.Context, name string, body []byte) (string, error)
}

// #endregion backend

// #region outcome

// Kind tags which path, if any, made the write durable.
type Kind string

const (
	PrimaryOK  Kind = "primary"
	FallbackOK Kind = "fallback"
	BothFailed Kind = "failed"
)

// Outcome reports how a Persist call ended. Reasons holds the primary
// failure for FallbackOK, and both failures for BothFailed.
type Outcome struct {
	Kind     Kind
	Backend  string
	Location string
	Reasons  []string
	At       time.Time
}

// Degraded reports a successful write that only reached the fallback.
func (o Outcome) Degraded() bool {
	return o.Kind == FallbackOK
}

// #endregion outcome
