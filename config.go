package reporter

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/op-reporter/deviceinfo"
	"github.com/ethereum-optimism/infra/op-reporter/flags"
)

// CLIConfig holds the application configuration
type CLIConfig struct {
	EventFiles        []string               // Event logs to replay, one shard each
	Options           Options                // Reporter options, file merged with flags
	OptionsFile       string                 // Optional YAML options file
	DeviceInfoConfig  string                 // Optional YAML classifier config
	Classifier        *deviceinfo.Classifier // Loaded from DeviceInfoConfig, or the defaults
	Concurrency       int                    // Shards replayed at once (0 = all)
	SummaryTable      bool                   // Print the results table after the replay
	ColorTable        bool                   // Color the results table by overall status
	FailOnTestFailure bool                   // Exit with code 1 when any test failed
	Log               log.Logger
}

// NewCLIConfig creates a new CLIConfig from cli context
func NewCLIConfig(ctx *cli.Context, log log.Logger) (*CLIConfig, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	var eventFiles []string
	for _, f := range ctx.StringSlice(flags.Events.Name) {
		if f == "" {
			continue
		}
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for event log '%s': %w", f, err)
		}
		eventFiles = append(eventFiles, abs)
	}
	if len(eventFiles) == 0 {
		return nil, errors.New("at least one event log is required")
	}

	var opts Options
	optionsFile := ctx.String(flags.OptionsFile.Name)
	if optionsFile != "" {
		if err := LoadOptions(optionsFile, &opts, log); err != nil {
			return nil, err
		}
	}
	if ctx.IsSet(flags.QuietOutput.Name) {
		opts.QuietOutput = ctx.Bool(flags.QuietOutput.Name)
	}
	if ctx.IsSet(flags.Strict.Name) {
		opts.Strict = ctx.Bool(flags.Strict.Name)
	}

	classifier := deviceinfo.Default()
	diConfig := ctx.String(flags.DeviceInfoConfig.Name)
	if diConfig != "" {
		var err error
		classifier, err = deviceinfo.Load(diConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load device info config: %w", err)
		}
	}

	return &CLIConfig{
		EventFiles:        eventFiles,
		Options:           opts,
		OptionsFile:       optionsFile,
		DeviceInfoConfig:  diConfig,
		Classifier:        classifier,
		Concurrency:       ctx.Int(flags.Concurrency.Name),
		SummaryTable:      ctx.Bool(flags.SummaryTable.Name),
		ColorTable:        ctx.Bool(flags.ColorTable.Name),
		FailOnTestFailure: ctx.Bool(flags.FailOnTestFailure.Name),
		Log:               log,
	}, nil
}
