package durable

import (
	"context"
	"fmt"
	"io"
)

// PrimaryConfig selects and configures the remote store.
type PrimaryConfig struct {
	Kind       string // "s3" | "gcs" | "mongo" | "" (none)
	Bucket     string
	Prefix     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	MongoURI   string
	Database   string
	Collection string
}

// unavailable is a Backend that fails every Put with the error that
// prevented the real backend from being built.
type unavailable struct {
	kind string
	err  error
}

func (u unavailable) Name() string { return u.kind }

func (u unavailable) Put(context.Context, string, []byte) (string, error) {
	return "", u.err
}

// OpenPrimary builds the configured backend. An empty Kind returns a nil
// Backend; a backend that cannot be built is returned as one that always
// fails, so misconfiguration is handled as a primary-write failure rather
// than a startup error. The returned closer is never nil.
func OpenPrimary(ctx context.Context, cfg PrimaryConfig) (Backend, io.Closer) {
	var (
		b   Backend
		c   io.Closer = nopCloser{}
		err error
	)
	switch cfg.Kind {
	case "":
		return nil, c
	case "s3":
		b, err = NewS3Backend(ctx, cfg)
	case "gcs":
		var g *GCSBackend
		if g, err = NewGCSBackend(ctx, cfg); err == nil {
			b, c = g, g
		}
	case "mongo":
		var m *MongoBackend
		if m, err = NewMongoBackend(ctx, cfg); err == nil {
			b, c = m, m
		}
	default:
		err = fmt.Errorf("unknown primary kind %q", cfg.Kind)
	}
	if err != nil {
		return unavailable{kind: cfg.Kind, err: err}, c
	}
	return b, c
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
