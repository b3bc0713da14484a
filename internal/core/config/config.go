// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kusari-oss/triage/internal/core/models"
	"gopkg.in/yaml.v3"
)

// Constants for default paths
const (
	DefaultConfigDir      = ".triage"
	DefaultConfigFileName = "config.yaml"
	HomeEnvVar            = "TRIAGE_HOME"
)

// Defaults applied before the config file and environment
const (
	DefaultLogFormat   = "text"
	DefaultLogLevel    = "info"
	DefaultAgentBind   = ":8080"
	DefaultGuardBind   = ":8081"
	DefaultQuery       = "AppTraces | where Timestamp > ago(30m) | take 100"
	DefaultTimespan    = "PT30M"
	DefaultTimeout     = 20 * time.Second
	DefaultConcurrency = 4
	DefaultRateLimit   = 5.0
	DefaultRateBurst   = 10

	// The dispatcher paces itself below the guard's default limit
	DefaultRemediationRateLimit = 4.0
	DefaultRemediationRateBurst = 8

	DefaultTraceExporter   = "none"
	DefaultTraceSampleRate = 1.0
)

// LookupFunc resolves an environment variable
type LookupFunc func(key string) (string, bool)

// Config holds the configuration of both binaries. It is built once at
// startup and passed to the components that need it.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Tracing      TracingConfig      `yaml:"tracing"`
	LogAnalytics LogAnalyticsConfig `yaml:"log_analytics"`
	Search       SearchConfig       `yaml:"search"`
	OpenAI       OpenAIConfig       `yaml:"openai"`
	Teams        TeamsConfig        `yaml:"teams"`
	Remediation  RemediationConfig  `yaml:"remediation"`
	Server       ServerConfig       `yaml:"server"`
	Guard        GuardConfig        `yaml:"guard"`
}

// LoggingConfig selects the log handler
type LoggingConfig struct {
	Format string `yaml:"format"`
	Level  string `yaml:"level"`
}

// TracingConfig selects the span exporter. Exporter is none, stdout or otlp.
type TracingConfig struct {
	Exporter   string  `yaml:"exporter"`
	Endpoint   string  `yaml:"endpoint,omitempty"` // host:port; OTEL_EXPORTER_OTLP_ENDPOINT applies when empty
	Insecure   bool    `yaml:"insecure,omitempty"`
	SampleRate float64 `yaml:"sample_rate"`
}

// LogAnalyticsConfig configures the telemetry source
type LogAnalyticsConfig struct {
	WorkspaceID string `yaml:"workspace_id"`
	Token       string `yaml:"token"`
	Endpoint    string `yaml:"endpoint"`
	Query       string `yaml:"query"`
	Timespan    string `yaml:"timespan"`
}

// SearchConfig configures the knowledge source
type SearchConfig struct {
	Endpoint   string `yaml:"endpoint"`
	Index      string `yaml:"index"`
	APIKey     string `yaml:"api_key"`
	APIVersion string `yaml:"api_version"`
	Top        int    `yaml:"top"`
}

// OpenAIConfig configures the plan generator
type OpenAIConfig struct {
	Endpoint   string `yaml:"endpoint"`
	APIKey     string `yaml:"api_key"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
}

// TeamsConfig configures the notification sink
type TeamsConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// RemediationConfig configures the dispatcher
type RemediationConfig struct {
	URL           string        `yaml:"url"`
	Key           string        `yaml:"key"`
	Timeout       time.Duration `yaml:"timeout"`
	Concurrency   int           `yaml:"concurrency"`
	RateLimit     float64       `yaml:"rate_limit"`
	RateBurst     int           `yaml:"rate_burst"`
	ApprovalRules []string      `yaml:"approval_rules,omitempty"`
}

// ServerConfig configures the agent HTTP server
type ServerConfig struct {
	Bind      string  `yaml:"bind"`
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// GuardConfig configures the remediation guard server
type GuardConfig struct {
	Bind           string                            `yaml:"bind"`
	AllowedActions []string                          `yaml:"allowed_actions"`
	Schemas        map[string]map[string]interface{} `yaml:"schemas,omitempty"`
	Handlers       map[string]HandlerConfig          `yaml:"handlers,omitempty"`
	RateLimit      float64                           `yaml:"rate_limit"`
	RateBurst      int                               `yaml:"rate_burst"`
}

// HandlerConfig binds an action to a command. Args are templates over the action params.
type HandlerConfig struct {
	Type        string   `yaml:"type" json:"type"`
	Command     string   `yaml:"command" json:"command"`
	Args        []string `yaml:"args,omitempty" json:"args,omitempty"`
	WorkingDir  string   `yaml:"working_dir,omitempty" json:"working_dir,omitempty"`
	Environment []string `yaml:"environment,omitempty" json:"environment,omitempty"`
}

// NewDefaultConfig creates a default configuration. Every collaborator is
// unconfigured and degrades gracefully.
func NewDefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Format: DefaultLogFormat, Level: DefaultLogLevel},
		Tracing: TracingConfig{Exporter: DefaultTraceExporter, SampleRate: DefaultTraceSampleRate},
		LogAnalytics: LogAnalyticsConfig{
			Query:    DefaultQuery,
			Timespan: DefaultTimespan,
		},
		Remediation: RemediationConfig{
			Timeout:     DefaultTimeout,
			Concurrency: DefaultConcurrency,
			RateLimit:   DefaultRemediationRateLimit,
			RateBurst:   DefaultRemediationRateBurst,
		},
		Server: ServerConfig{
			Bind:      DefaultAgentBind,
			RateLimit: DefaultRateLimit,
			RateBurst: DefaultRateBurst,
		},
		Guard: GuardConfig{
			Bind:           DefaultGuardBind,
			AllowedActions: append([]string(nil), models.DefaultActions...),
			RateLimit:      DefaultRateLimit,
			RateBurst:      DefaultRateBurst,
		},
	}
}

// ExpandPathWithTilde expands ~ to the user home directory
func ExpandPathWithTilde(path string, lookup LookupFunc) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home := homeDir(lookup)
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// homeDir returns the home directory, respecting TRIAGE_HOME
func homeDir(lookup LookupFunc) string {
	if lookup != nil {
		if home, ok := lookup(HomeEnvVar); ok && home != "" {
			return home
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// GlobalConfigFilePath returns the path of the per-user config file
func GlobalConfigFilePath(lookup LookupFunc) string {
	home := homeDir(lookup)
	if home == "" {
		return ""
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFileName)
}

// LoadConfig builds the configuration from defaults, then a config file,
// then environment overrides. An explicit path must exist; when path is
// empty the per-user config file is used if present.
func LoadConfig(path string, lookup LookupFunc) (*Config, error) {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}

	config := NewDefaultConfig()

	explicit := path != ""
	if !explicit {
		path = GlobalConfigFilePath(lookup)
	} else {
		path = ExpandPathWithTilde(path, lookup)
	}

	if path != "" {
		err := loadConfigFileInto(path, config)
		switch {
		case err == nil:
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, err
		}
	}

	if err := applyEnv(config, lookup); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadConfigFileInto(path string, config *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides settings with the environment variables that are set
func applyEnv(config *Config, lookup LookupFunc) error {
	overrides := map[string]*string{
		"LOG_ANALYTICS_WORKSPACE_ID": &config.LogAnalytics.WorkspaceID,
		"LOG_ANALYTICS_TOKEN":        &config.LogAnalytics.Token,
		"LOG_ANALYTICS_ENDPOINT":     &config.LogAnalytics.Endpoint,
		"KQL_QUERY":                  &config.LogAnalytics.Query,
		"SEARCH_ENDPOINT":            &config.Search.Endpoint,
		"SEARCH_INDEX":               &config.Search.Index,
		"SEARCH_API_KEY":             &config.Search.APIKey,
		"OPENAI_ENDPOINT":            &config.OpenAI.Endpoint,
		"OPENAI_API_KEY":             &config.OpenAI.APIKey,
		"OPENAI_DEPLOYMENT":          &config.OpenAI.Deployment,
		"TEAMS_WEBHOOK_URL":          &config.Teams.WebhookURL,
		"REMEDIATION_URL":            &config.Remediation.URL,
		"REMEDIATION_KEY":            &config.Remediation.Key,
		"TRIAGE_LOG_FORMAT":          &config.Logging.Format,
		"TRIAGE_LOG_LEVEL":           &config.Logging.Level,
		"TRIAGE_TRACE_EXPORTER":      &config.Tracing.Exporter,
		"TRIAGE_TRACE_ENDPOINT":      &config.Tracing.Endpoint,
		"TRIAGE_BIND":                &config.Server.Bind,
		"REMEDY_BIND":                &config.Guard.Bind,
	}
	for key, target := range overrides {
		if value, ok := lookup(key); ok && value != "" {
			*target = value
		}
	}

	if value, ok := lookup("REMEDIATION_TIMEOUT"); ok && value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid REMEDIATION_TIMEOUT %q: %w", value, err)
		}
		config.Remediation.Timeout = timeout
	}

	if value, ok := lookup("REMEDIATION_CONCURRENCY"); ok && value != "" {
		concurrency, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid REMEDIATION_CONCURRENCY %q: %w", value, err)
		}
		config.Remediation.Concurrency = concurrency
	}

	if value, ok := lookup("REMEDIATION_RATE_LIMIT"); ok && value != "" {
		limit, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid REMEDIATION_RATE_LIMIT %q: %w", value, err)
		}
		config.Remediation.RateLimit = limit
	}

	if value, ok := lookup("REMEDY_ALLOWED_ACTIONS"); ok && value != "" {
		var actions []string
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				actions = append(actions, name)
			}
		}
		config.Guard.AllowedActions = actions
	}

	return nil
}

// Validate checks the settings that cannot degrade gracefully
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q: must be text or json", c.Logging.Format)
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "", "none", "stdout", "otlp":
	default:
		return fmt.Errorf("invalid trace exporter %q: must be none, stdout or otlp", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("trace sample rate must be between 0 and 1")
	}
	if c.Remediation.Timeout < 0 {
		return fmt.Errorf("remediation timeout cannot be negative")
	}
	if c.Remediation.Concurrency < 0 {
		return fmt.Errorf("remediation concurrency cannot be negative")
	}
	if c.Server.RateLimit < 0 || c.Guard.RateLimit < 0 || c.Remediation.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}
	if len(c.Guard.AllowedActions) == 0 {
		return fmt.Errorf("guard requires at least one allowed action")
	}
	return nil
}
