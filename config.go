package taskstatus

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/sharnoff/taskstatus/internal/errors"
	"github.com/sharnoff/taskstatus/internal/log"
	"github.com/sharnoff/taskstatus/internal/tracing"
)

// Config is a serialisable representation of the package's process-wide settings. It can be
// populated from JSON or YAML; fields left out of a file keep their DefaultConfig values.
type Config struct {
	Log         LogConfig         `json:"log" yaml:"log"`
	Diagnostics DiagnosticsConfig `json:"diagnostics" yaml:"diagnostics"`
	Tracing     TracingConfig     `json:"tracing" yaml:"tracing"`
}

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type DiagnosticsConfig struct {
	// CaptureStacks records where each task was spawned and where each status record was
	// registered. Off by default; every registration pays for a stack walk.
	CaptureStacks bool `json:"captureStacks" yaml:"captureStacks"`
}

type TracingConfig struct {
	Enabled        bool   `json:"enabled" yaml:"enabled"`
	ServiceName    string `json:"serviceName" yaml:"serviceName"`
	ServiceVersion string `json:"serviceVersion" yaml:"serviceVersion"`
	// OutputFile receives the stdout exporter's output. Empty means standard output.
	OutputFile string `json:"outputFile" yaml:"outputFile"`
}

// DefaultConfig returns the settings the package runs with if Setup is never called.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: log.FormatText,
		},
		Tracing: TracingConfig{
			ServiceName:    "taskstatus",
			ServiceVersion: "dev",
		},
	}
}

// Validate returns aggregated error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}

	var errs *multierror.Error
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = multierror.Append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", log.FormatText, log.FormatJSON:
	default:
		errs = multierror.Append(errs, fmt.Errorf("log.format must be %q or %q, got %q", log.FormatText, log.FormatJSON, c.Log.Format))
	}
	if c.Tracing.Enabled && c.Tracing.ServiceName == "" {
		errs = multierror.Append(errs, fmt.Errorf("tracing.serviceName must be set when tracing is enabled"))
	}
	return errs.ErrorOrNil()
}

// LoadConfig reads a YAML file over DefaultConfig and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStackTrace(err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WithStackTraceAndPrefix(err, "parsing %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WithStackTrace(err)
	}
	return cfg, nil
}

// Setup applies cfg to the shared logger, stack capture and tracing. A nil cfg applies
// DefaultConfig.
func Setup(cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return errors.WithStackTrace(err)
	}

	if err := log.SetLevel(cfg.Log.Level); err != nil {
		return errors.WithStackTrace(err)
	}
	if err := log.SetFormat(cfg.Log.Format); err != nil {
		return errors.WithStackTrace(err)
	}

	captureStacks.Store(cfg.Diagnostics.CaptureStacks)

	if cfg.Tracing.Enabled {
		if err := tracing.Init(cfg.Tracing.ServiceName, cfg.Tracing.ServiceVersion, cfg.Tracing.OutputFile); err != nil {
			return errors.WithStackTraceAndPrefix(err, "initialising tracing")
		}
	}

	log.Logger().WithFields(logrus.Fields{
		"level":          cfg.Log.Level,
		"capture_stacks": cfg.Diagnostics.CaptureStacks,
		"tracing":        cfg.Tracing.Enabled,
	}).Debug("taskstatus configured")
	return nil
}

// Shutdown flushes and stops tracing started by Setup, closing its output file.
func Shutdown(ctx context.Context) error {
	if err := tracing.Shutdown(ctx); err != nil {
		return errors.WithStackTrace(err)
	}
	return nil
}
