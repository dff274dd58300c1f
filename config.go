package testengine

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-testengine/flags"
	"github.com/ethereum-optimism/infra/op-testengine/runner"
	"github.com/ethereum-optimism/infra/op-testengine/types"
)

// Config holds the application configuration
type Config struct {
	Include          []string          // Selection include patterns from the command line
	Exclude          []string          // Selection exclude patterns from the command line
	ProfilePath      string            // Absolute path of the profile file, empty when none
	ProfileName      string            // Profile to use from the profile file
	Compartment      *types.Compartment // Session default compartment, nil keeps the built-in default
	Concurrency      int               // Session-wide test pool size (0 = auto-determine)
	DefaultTimeout   time.Duration     // Timeout for elements declaring none, 0 disables
	Serial           bool              // Whether to run every compartment sequentially
	LogDir           string            // Directory receiving run directories, empty disables file output
	RunID            string            // Fixed run ID, empty generates one per run
	ShowProgress     bool              // Whether to log running elements periodically
	ProgressInterval time.Duration     // Interval between progress logs when ShowProgress is true
	List             bool              // Print the selected elements instead of running them
	ServiceAddr      string            // Listen address of the status service, empty disables it
	Log              log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, fmt.Errorf("missing required flags: %w", err)
	}

	cfg := &Config{
		Include:          ctx.StringSlice(flags.Include.Name),
		Exclude:          ctx.StringSlice(flags.Exclude.Name),
		ProfileName:      ctx.String(flags.ProfileName.Name),
		Concurrency:      ctx.Int(flags.Concurrency.Name),
		DefaultTimeout:   ctx.Duration(flags.DefaultTimeout.Name),
		Serial:           ctx.Bool(flags.Serial.Name),
		RunID:            ctx.String(flags.RunID.Name),
		ShowProgress:     ctx.Bool(flags.ShowProgress.Name),
		ProgressInterval: ctx.Duration(flags.ProgressInterval.Name),
		List:             ctx.Bool(flags.List.Name),
		Log:              log,
	}

	if cfg.Concurrency < 0 {
		return nil, fmt.Errorf("concurrency must not be negative, got %d", cfg.Concurrency)
	}
	if cfg.DefaultTimeout < 0 {
		return nil, fmt.Errorf("default timeout must not be negative, got %s", cfg.DefaultTimeout)
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = runner.DefaultProgressInterval
	}

	if c := ctx.String(flags.Compartment.Name); c != "" {
		compartment, err := types.ParseCompartment(c, 0)
		if err != nil {
			return nil, err
		}
		cfg.Compartment = &compartment
	}

	if profile := ctx.String(flags.Profile.Name); profile != "" {
		abs, err := filepath.Abs(profile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for profile '%s': %w", profile, err)
		}
		cfg.ProfilePath = abs
	}

	if logDir := ctx.String(flags.LogDir.Name); logDir != "" {
		abs, err := filepath.Abs(logDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err)
		}
		cfg.LogDir = abs
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if metricsCfg.Enabled {
		if err := metricsCfg.Check(); err != nil {
			return nil, fmt.Errorf("invalid metrics config: %w", err)
		}
		cfg.ServiceAddr = net.JoinHostPort(metricsCfg.ListenAddr, strconv.Itoa(metricsCfg.ListenPort))
	}

	return cfg, nil
}

// SessionDefaults returns the session level configuration given on the
// command line. Profile defaults are applied on top of it.
func (c *Config) SessionDefaults() types.Configuration {
	var defaults types.Configuration
	if c.DefaultTimeout > 0 {
		timeout := c.DefaultTimeout
		defaults.Timeout = &timeout
	}
	if c.Compartment != nil {
		compartment := *c.Compartment
		defaults.Compartment = &compartment
	}
	return defaults
}
