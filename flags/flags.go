package flags

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-testengine/types"
)

const EnvVarPrefix = "OP_TESTENGINE"

var (
	Include = &cli.StringSliceFlag{
		Name:    "include",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "INCLUDE"),
		Usage:   "Element path patterns to run (eg. 'payments.*', '**.smoke'). Comma-separated or repeated. Empty runs everything.",
	}
	Exclude = &cli.StringSliceFlag{
		Name:    "exclude",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXCLUDE"),
		Usage:   "Element path patterns to skip. Exclusion wins over inclusion.",
	}
	Profile = &cli.StringFlag{
		Name:    "profile",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROFILE"),
		Usage:   "Path to a profile file (.yaml, .yml or .toml) with session defaults and per-path overrides",
	}
	ProfileName = &cli.StringFlag{
		Name:    "profile-name",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROFILE_NAME"),
		Usage:   "Profile to use from the profile file. May be omitted when the file defines a single profile.",
	}
	Compartment = &cli.StringFlag{
		Name:    "compartment",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "COMPARTMENT"),
		Usage:   "Default compartment of the session: 'sequential', 'parallel' or 'parallel(N)'",
		Action: func(_ *cli.Context, v string) error {
			return validateCompartment(v)
		},
	}
	Concurrency = &cli.IntFlag{
		Name:    "concurrency",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "CONCURRENCY"),
		Usage:   "Maximum number of tests running at once across the session. 0 picks a value from the number of CPUs.",
	}
	DefaultTimeout = &cli.DurationFlag{
		Name:    "default-timeout",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DEFAULT_TIMEOUT"),
		Usage:   "Timeout applied to elements that declare none (e.g. '30s'). 0 disables it.",
	}
	Serial = &cli.BoolFlag{
		Name:    "serial",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERIAL"),
		Usage:   "Run every compartment sequentially with a pool of one",
	}
	LogDir = &cli.StringFlag{
		Name:    "log-dir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOG_DIR"),
		Usage:   "Directory receiving the per-run event log and summary. Empty disables file output.",
	}
	RunID = &cli.StringFlag{
		Name:    "run-id",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_ID"),
		Usage:   "Identifier of the run. A random UUID is used when empty.",
	}
	ShowProgress = &cli.BoolFlag{
		Name:    "show-progress",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SHOW_PROGRESS"),
		Usage:   "Periodically log the running elements",
	}
	ProgressInterval = &cli.DurationFlag{
		Name:    "progress-interval",
		Value:   30 * time.Second,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PROGRESS_INTERVAL"),
		Usage:   "Interval between progress logs",
	}
	List = &cli.BoolFlag{
		Name:    "list",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LIST"),
		Usage:   "Print the paths of the selected elements and exit without running them",
	}
)

var requiredFlags = []cli.Flag{}

var optionalFlags = []cli.Flag{
	Include,
	Exclude,
	Profile,
	ProfileName,
	Compartment,
	Concurrency,
	DefaultTimeout,
	Serial,
	LogDir,
	RunID,
	ShowProgress,
	ProgressInterval,
	List,
}

var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

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

func validateCompartment(v string) error {
	if v == "" {
		return nil
	}
	if _, err := types.ParseCompartment(v, 0); err != nil {
		return fmt.Errorf("compartment must be one of sequential, parallel or parallel(N): %w", err)
	}
	return nil
}
