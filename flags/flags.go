package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
)

const EnvVarPrefix = "OP_REPORTER"

var (
	Events = &cli.StringSliceFlag{
		Name:     "events",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "EVENTS"),
		Usage:    "Path to a recorded JSON-lines event log. Repeat to replay several shards concurrently",
	}
	QuietOutput = &cli.BoolFlag{
		Name:    "quiet-output",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "QUIET_OUTPUT"),
		Usage:   "Send progress lines to the log only, instead of printing them",
	}
	Strict = &cli.BoolFlag{
		Name:    "strict",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "STRICT"),
		Usage:   "Abort on events that arrive out of lifecycle order instead of dropping them",
	}
	OptionsFile = &cli.StringFlag{
		Name:    "options",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "OPTIONS"),
		Usage:   "Path to a YAML reporter options file (eg. 'options.yaml'). Flags override the file",
	}
	DeviceInfoConfig = &cli.StringFlag{
		Name:    "device-info-config",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DEVICE_INFO_CONFIG"),
		Usage:   "Path to a YAML device info classifier config. Defaults to the CTS collectors",
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONCURRENCY"),
		Usage:   "Maximum number of shards replayed at once (0 = all)",
		Action:  validateConcurrency,
	}
	SummaryTable = &cli.BoolFlag{
		Name:    "summary-table",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SUMMARY_TABLE"),
		Usage:   "Print a table of per-package results once every shard is replayed",
	}
	ColorTable = &cli.BoolFlag{
		Name:    "color-table",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COLOR_TABLE"),
		Usage:   "Color the summary table by overall status",
	}
	FailOnTestFailure = &cli.BoolFlag{
		Name:    "fail-on-test-failure",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "FAIL_ON_TEST_FAILURE"),
		Usage:   "Exit with code 1 when any replayed test failed",
	}
)

func validateConcurrency(_ *cli.Context, v int) error {
	if v < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", v)
	}
	return nil
}

var requiredFlags = []cli.Flag{
	Events,
}

var optionalFlags = []cli.Flag{
	QuietOutput,
	Strict,
	OptionsFile,
	DeviceInfoConfig,
	Concurrency,
	SummaryTable,
	ColorTable,
	FailOnTestFailure,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return nil
}
