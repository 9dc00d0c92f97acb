// Package shard replays independent event streams concurrently, one cloned
// Reporter per stream.
package shard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	reporter "github.com/ethereum-optimism/infra/op-reporter"
	"github.com/ethereum-optimism/infra/op-reporter/events"
	"github.com/ethereum-optimism/infra/op-reporter/metrics"
)

// Shard results recorded in metrics
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultCanceled = "canceled"
)

// Stream is the recorded event log of one shard
type Stream struct {
	Name   string
	Events []events.Event
}

// Result is the outcome of replaying one stream
type Result struct {
	ID       string
	Name     string
	Reporter *reporter.Reporter
	Duration time.Duration
	Err      error
}

// Config configures a Runner
type Config struct {
	// Concurrency limits the shards replayed at once, 0 means unlimited
	Concurrency int
	Log         log.Logger
	Metrics     metrics.Metricer
}

// Runner replays streams onto clones of a base Reporter
type Runner struct {
	concurrency int
	log         log.Logger
	metrics     metrics.Metricer
	tracer      trace.Tracer
}

// NewRunner creates a Runner
func NewRunner(cfg Config) *Runner {
	if cfg.Log == nil {
		cfg.Log = log.Root()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NoopMetrics
	}
	return &Runner{
		concurrency: cfg.Concurrency,
		log:         cfg.Log.New("component", "shard-runner"),
		metrics:     cfg.Metrics,
		tracer:      otel.Tracer("op-reporter shard"),
	}
}

// Run clones base once per stream and replays every stream in its own
// goroutine. The results are in stream order and are returned even on error,
// together with the first error. That error cancels the remaining shards.
func (r *Runner) Run(ctx context.Context, base *reporter.Reporter, streams []Stream) ([]*Result, error) {
	ctx, span := r.tracer.Start(ctx, "replay")
	defer span.End()
	span.SetAttributes(attribute.Int("shards", len(streams)))

	results := make([]*Result, len(streams))
	for i, s := range streams {
		results[i] = &Result{
			ID:       uuid.New().String(),
			Name:     s.Name,
			Reporter: base.Clone(),
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}

	for i := range streams {
		stream, res := streams[i], results[i]
		g.Go(func() error {
			return r.runShard(gctx, stream, res)
		})
	}

	err := g.Wait()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return results, err
}

func (r *Runner) runShard(ctx context.Context, stream Stream, res *Result) error {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("shard %s", stream.Name))
	defer span.End()
	span.SetAttributes(
		attribute.String("shard.id", res.ID),
		attribute.Int("shard.events", len(stream.Events)),
	)

	logger := r.log.New("shard", res.ID, "stream", stream.Name)
	logger.Debug("Shard started", "events", len(stream.Events))

	start := time.Now()
	err := events.Dispatch(ctx, res.Reporter, stream.Events)
	res.Duration = time.Since(start)

	switch {
	case err == nil:
		r.metrics.RecordShard(ResultSuccess)
		logger.Debug("Shard finished", "duration", res.Duration)
		return nil
	case errors.Is(err, context.Canceled):
		r.metrics.RecordShard(ResultCanceled)
		logger.Info("Shard canceled", "duration", res.Duration)
	default:
		r.metrics.RecordShard(ResultFailure)
		logger.Error("Shard failed", "err", err, "duration", res.Duration)
	}

	res.Err = fmt.Errorf("shard %s: %w", stream.Name, err)
	span.RecordError(res.Err)
	span.SetStatus(codes.Error, res.Err.Error())
	return res.Err
}
