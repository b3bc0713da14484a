// SPDX-License-Identifier: Apache-2.0

// Package cli holds the flags and process setup shared by both binaries.
package cli

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/kusari-oss/triage/internal/core/config"
	"github.com/kusari-oss/triage/internal/logging"
	"github.com/kusari-oss/triage/internal/telemetry"
	"github.com/kusari-oss/triage/internal/version"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds the final span flush
const shutdownTimeout = 5 * time.Second

// Env is the configuration and logger built once per process
type Env struct {
	ConfigPath string
	LogFormat  string
	LogLevel   string

	// Lookup resolves environment variables; os.LookupEnv when nil
	Lookup config.LookupFunc

	Config *config.Config
	Logger *slog.Logger
}

// BindFlags registers the persistent flags on the root command
func (e *Env) BindFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&e.ConfigPath, "config", "c", "", "Config file (default ~/.triage/config.yaml)")
	cmd.PersistentFlags().StringVar(&e.LogFormat, "log-format", "", "Log format: text or json")
	cmd.PersistentFlags().StringVar(&e.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
}

// Load reads the configuration and builds the logger. Flags override the
// config file and environment. Logs go to stderr so command output stays clean.
func (e *Env) Load(cmd *cobra.Command) error {
	lookup := e.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfg, err := config.LoadConfig(e.ConfigPath, lookup)
	if err != nil {
		return err
	}
	if e.LogFormat != "" {
		cfg.Logging.Format = e.LogFormat
	}
	if e.LogLevel != "" {
		cfg.Logging.Level = e.LogLevel
	}

	logger, err := logging.New(cfg.Logging.Format, cfg.Logging.Level, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	e.Config = cfg
	e.Logger = logger
	return nil
}

// StartTracing installs the configured tracer provider for service. The
// returned function flushes pending spans and is safe to defer. Stdout
// spans go to stderr so command output stays clean.
func (e *Env) StartTracing(cmd *cobra.Command, service string) (func(), error) {
	provider, err := telemetry.Setup(cmd.Context(), telemetry.Config{
		Exporter:       e.Config.Tracing.Exporter,
		Endpoint:       e.Config.Tracing.Endpoint,
		Insecure:       e.Config.Tracing.Insecure,
		SampleRate:     e.Config.Tracing.SampleRate,
		ServiceName:    service,
		ServiceVersion: version.Version,
	}, cmd.ErrOrStderr(), e.Logger)
	if err != nil {
		return nil, err
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			e.Logger.Warn("failed to flush spans", slog.String("error", err.Error()))
		}
	}, nil
}
