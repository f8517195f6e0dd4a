package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/codec"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/config"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/durable"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/ledger"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/metrics"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/outputs"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/pipeline"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/ratelimit"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/signals"
)

// #region app
// app owns every long-lived component of one process.
type app struct {
	ledger   *ledger.Store
	pipeline *pipeline.Pipeline
	metrics  *metrics.Collector
	closers  []io.Closer
}

// build wires the pipeline from cfg. Remote collaborators that are not
// configured are left out: no classifier degrades every record to neutral,
// no primary store sends every batch to the fallback directory.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{metrics: metrics.New()}

	var (
		classifier signals.Classifier
		extractor  signals.Extractor
	)
	if cfg.ClassifierAddr != "" {
		c, err := codec.NewClient(cfg.ClassifierAddr)
		if err != nil {
			return nil, fmt.Errorf("classifier: %w", err)
		}
		a.closers = append(a.closers, c)
		classifier = c
		if cfg.ExtractorAddr == cfg.ClassifierAddr {
			extractor = c
		}
	}
	if cfg.ExtractorAddr != "" && extractor == nil {
		c, err := codec.NewClient(cfg.ExtractorAddr)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("extractor: %w", err)
		}
		a.closers = append(a.closers, c)
		extractor = c
	}
	producer := signals.NewProducer(classifier, extractor, signals.ProducerConfig{
		Concurrency: cfg.Prefetch,
		Timeout:     cfg.ClassifyTimeout,
	}, logger)

	primary, closer := durable.OpenPrimary(ctx, cfg.Primary)
	a.closers = append(a.closers, closer)
	if primary == nil {
		logger.Warn("no primary store configured, batches will be written to the fallback directory",
			"fallback_dir", cfg.FallbackDir)
	}
	var fallback *durable.LocalDir
	if cfg.FallbackDir != "" {
		fallback = durable.NewLocalDir(cfg.FallbackDir)
	}
	store := durable.NewStore(primary, fallback, logger)

	runs, err := ledger.NewStore(cfg.DB)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a.ledger = runs
	a.closers = append(a.closers, runs)

	a.pipeline = pipeline.New(pipeline.Options{
		Producer: producer,
		Store:    store,
		Ledger:   runs,
		Outputs:  outputs.NewWriter(cfg.Outputs),
		Metrics:  a.metrics,
		Config: pipeline.Config{
			Agent:     cfg.Agent,
			Seed:      cfg.Seed,
			Continual: cfg.Continual,
		},
		Logger: logger,
	})
	return a, nil
}

// Close releases components in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// #endregion app

// #region limiter
// newLimiter returns a Redis-backed limiter shared across instances when
// redis-addr is set, otherwise an in-process one of the configured mode.
func newLimiter(cfg config.Config) (ratelimit.Limiter, io.Closer) {
	if cfg.RedisAddr == "" {
		if cfg.RateLimitMode == "bucket" {
			return ratelimit.NewLocal(cfg.RateLimit), nopCloser{}
		}
		return ratelimit.NewWindow(cfg.RateLimit), nopCloser{}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return ratelimit.NewRedis(client, cfg.RateLimit), client
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// #endregion limiter

// openLedger opens the run ledger alone, for commands that only read it.
func openLedger(cfg config.Config) (*ledger.Store, error) {
	s, err := ledger.NewStore(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", cfg.DB, err)
	}
	return s, nil
}
