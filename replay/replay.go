// Package replay drives recorded event logs through the reporter as a
// run-once cliapp lifecycle.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/ethereum-optimism/optimism/op-service/cliapp"
	"github.com/prometheus/client_golang/prometheus"

	reporter "github.com/ethereum-optimism/infra/op-reporter"
	"github.com/ethereum-optimism/infra/op-reporter/events"
	"github.com/ethereum-optimism/infra/op-reporter/logging"
	"github.com/ethereum-optimism/infra/op-reporter/metrics"
	"github.com/ethereum-optimism/infra/op-reporter/reporting"
	"github.com/ethereum-optimism/infra/op-reporter/shard"
)

// replayer implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &replayer{}

// replayer replays every configured event log once, then shuts the app down.
type replayer struct {
	config  *reporter.CLIConfig
	version string
	out     io.Writer
	metrics *metrics.Metrics
	base    *reporter.Reporter
	runner  *shard.Runner
	shards  []*shard.Result

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

// New creates the replay service. Progress lines and the summary table are
// written to out, nil means stdout. reg receives the reporter metrics.
func New(config *reporter.CLIConfig, version string, out io.Writer, reg prometheus.Registerer, shutdownCallback func(error)) (*replayer, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if out == nil {
		out = os.Stdout
	}

	config.Log.Debug("Creating replayer with config",
		"eventFiles", config.EventFiles,
		"optionsFile", config.OptionsFile,
		"deviceInfoConfig", config.DeviceInfoConfig,
		"concurrency", config.Concurrency)

	m := metrics.NewMetrics(reg)
	base := reporter.New(reporter.Config{
		Options:    config.Options,
		Classifier: config.Classifier,
		Sink:       logging.NewConsoleSink(out, config.Log, len(config.EventFiles) > 1),
		Log:        config.Log,
		Metrics:    m,
	})

	return &replayer{
		config:  config,
		version: version,
		out:     out,
		metrics: m,
		base:    base,
		runner: shard.NewRunner(shard.Config{
			Concurrency: config.Concurrency,
			Log:         config.Log,
			Metrics:     m,
		}),
		shutdownCallback: shutdownCallback,
	}, nil
}

// Start replays the event logs and returns once every shard is done.
// Start implements the cliapp.Lifecycle interface.
func (r *replayer) Start(ctx context.Context) error {
	r.running.Store(true)
	r.config.Log.Info("Starting op-reporter replay", "version", r.version, "shards", len(r.config.EventFiles))

	streams, err := r.loadStreams()
	if err != nil {
		return reporter.NewRuntimeError(err)
	}

	r.shards, err = r.runner.Run(ctx, r.base, streams)
	if err != nil {
		r.config.Log.Error("Replay failed", "err", err)
		return reporter.NewRuntimeError(err)
	}

	totals := reporting.ComputeTotals(r.summaries())
	if r.config.SummaryTable {
		if err := r.printResultsTable(); err != nil {
			return reporter.NewRuntimeError(err)
		}
	}
	r.config.Log.Info("Replay completed",
		"packages", totals.Packages,
		"passed", totals.Passed,
		"failed", totals.Failed,
		"notExecuted", totals.NotExecuted)

	if r.config.FailOnTestFailure && totals.Failed > 0 {
		r.config.Log.Warn("Replay completed with failures, returning exit code 1")
		return reporter.NewTestFailureError(totals.Failed)
	}

	go func() {
		r.shutdownCallback(nil)
	}()
	return nil
}

func (r *replayer) loadStreams() ([]shard.Stream, error) {
	streams := make([]shard.Stream, 0, len(r.config.EventFiles))
	for _, path := range r.config.EventFiles {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		evs, err := events.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		r.config.Log.Debug("Loaded event log", "path", path, "events", len(evs))
		streams = append(streams, shard.Stream{Name: path, Events: evs})
	}
	return streams, nil
}

func (r *replayer) summaries() []reporting.ShardSummary {
	out := make([]reporting.ShardSummary, 0, len(r.shards))
	for _, s := range r.shards {
		out = append(out, reporting.ShardSummary{
			Shard:     s.Name,
			Device:    s.Reporter.DeviceSerial(),
			Summaries: s.Reporter.Summaries(),
		})
	}
	return out
}

// printResultsTable prints the per-package results of every shard.
func (r *replayer) printResultsTable() error {
	table, err := reporting.NewTableFormatter("Replay Results", r.config.ColorTable).Format(r.summaries())
	if err != nil {
		return fmt.Errorf("failed to format results table: %w", err)
	}
	_, err = io.WriteString(r.out, table)
	return err
}

// Stop implements the cliapp.Lifecycle interface.
func (r *replayer) Stop(ctx context.Context) error {
	if !r.running.Load() {
		return nil
	}
	r.running.Store(false)
	r.config.Log.Info("op-reporter stopped")
	return nil
}

// Stopped implements the cliapp.Lifecycle interface.
func (r *replayer) Stopped() bool {
	return !r.running.Load()
}
